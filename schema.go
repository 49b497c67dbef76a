package tablemap

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Physical table layout. One table exposes a fixed set of generic key
// attributes that entity types bind their own attributes onto.
const (
	TableIndexName = "table" // name of the primary table index
	MaxLSIs        = 5       // lsi0..lsi4, sort key only
	MaxGSIs        = 20      // gsi0..gsi19, partition and sort key

	AttributeNamePartition = "pk"
	AttributeNameSort      = "sk"

	// DefaultDelimiter joins the components of a composed key value.
	DefaultDelimiter = "~"
)

// Role identifies which half of an index key pair a slot occupies.
type Role string

const (
	RolePartition Role = "partition"
	RoleSort      Role = "sort"
)

// IndexSlot identifies one physical key attribute: an index name
// ("table", "lsi0".."lsi4", "gsi0".."gsi19") and a role within it.
type IndexSlot struct {
	Index string
	Role  Role
}

// PartitionSlot returns the partition key slot of the named index.
func PartitionSlot(index string) IndexSlot {
	return IndexSlot{Index: index, Role: RolePartition}
}

// SortSlot returns the sort key slot of the named index.
func SortSlot(index string) IndexSlot {
	return IndexSlot{Index: index, Role: RoleSort}
}

func (s IndexSlot) String() string {
	return s.Index + "." + string(s.Role)
}

type indexKind int

const (
	kindTable indexKind = iota
	kindLSI
	kindGSI
)

// parseIndex validates an index name against the physical layout and
// returns its kind and ordinal. Only the canonical spellings are
// accepted; variants like "lsi01" or "gsi+1" would mint attributes the
// table does not have. The caller reports IndexOverflow.
func parseIndex(name string) (kind indexKind, ordinal int, ok bool) {
	switch {
	case name == TableIndexName:
		return kindTable, 0, true
	case strings.HasPrefix(name, "lsi"):
		n, ok := parseOrdinal(name[3:], MaxLSIs)
		if !ok {
			return 0, 0, false
		}
		return kindLSI, n, true
	case strings.HasPrefix(name, "gsi"):
		n, ok := parseOrdinal(name[3:], MaxGSIs)
		if !ok {
			return 0, 0, false
		}
		return kindGSI, n, true
	default:
		return 0, 0, false
	}
}

func parseOrdinal(s string, max int) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n >= max || s != strconv.Itoa(n) {
		return 0, false
	}
	return n, true
}

// AttributeName returns the physical attribute this slot is stored under.
func (s IndexSlot) AttributeName() string {
	switch {
	case s.Index == TableIndexName && s.Role == RolePartition:
		return AttributeNamePartition
	case s.Index == TableIndexName && s.Role == RoleSort:
		return AttributeNameSort
	case s.Role == RolePartition:
		return s.Index + "_pk"
	default:
		return s.Index + "_sk"
	}
}

// isPhysicalAttribute reports whether name is one of the generic key
// attributes. Human attributes may not shadow these.
func isPhysicalAttribute(name string) bool {
	switch name {
	case AttributeNamePartition, AttributeNameSort:
		return true
	}
	base, suffix, found := strings.Cut(name, "_")
	if !found {
		return false
	}
	kind, _, ok := parseIndex(base)
	if !ok {
		return false
	}
	switch kind {
	case kindLSI:
		return suffix == "sk"
	case kindGSI:
		return suffix == "pk" || suffix == "sk"
	default:
		return false
	}
}

// AttributeType is the declared scalar type of a human attribute.
// Validation of values against the type is the responsibility of the
// schema framework in front of the engine; the engine uses the type for
// key attribute definitions when provisioning test tables.
type AttributeType string

const (
	TypeString AttributeType = "S"
	TypeNumber AttributeType = "N"
	TypeBinary AttributeType = "B"
	TypeBool   AttributeType = "BOOL"
)

// AttributeDefinition declares one human-readable attribute of an
// entity type.
type AttributeDefinition struct {
	// Name is unique within the entity type.
	Name string

	// Type is the declared scalar type. Defaults to TypeString.
	Type AttributeType

	// Mutators names the registered transformations applied, in order,
	// whenever the attribute is assigned.
	Mutators []string

	// Immutable marks the attribute as write-once: after the first
	// persisted value, any change is rejected.
	Immutable bool

	// Default is applied at construction when the attribute is absent.
	Default any
}

// KeyComposition builds one physical key value from human attributes:
// either a direct reference to a single attribute, or an ordered join
// of several attributes with a delimiter.
type KeyComposition struct {
	// Attributes are the human attribute names, in join order.
	Attributes []string

	// Delimiter joins the components. Defaults to DefaultDelimiter.
	// Ignored for single-attribute compositions.
	Delimiter string
}

// Compose builds a KeyComposition over the named attributes with the
// default delimiter.
func Compose(attributes ...string) KeyComposition {
	return KeyComposition{Attributes: attributes}
}

func (c KeyComposition) delimiter() string {
	if c.Delimiter == "" {
		return DefaultDelimiter
	}
	return c.Delimiter
}

// joined reports whether the composition concatenates multiple attributes.
func (c KeyComposition) joined() bool { return len(c.Attributes) > 1 }

// dependsOn reports whether the composed value is derived from the
// named human attribute.
func (c KeyComposition) dependsOn(attribute string) bool {
	for _, a := range c.Attributes {
		if a == attribute {
			return true
		}
	}
	return false
}

// compose evaluates the composition against the item's human
// attributes. Single-attribute compositions pass the value through
// verbatim; joined compositions concatenate the stringified components.
// A missing component aborts with the attribute name.
func (c KeyComposition) compose(attrs map[string]any) (value any, missing string) {
	if !c.joined() {
		v, ok := attrs[c.Attributes[0]]
		if !ok || v == nil {
			return nil, c.Attributes[0]
		}
		return v, ""
	}
	parts := make([]string, len(c.Attributes))
	for i, name := range c.Attributes {
		v, ok := attrs[name]
		if !ok || v == nil {
			return nil, name
		}
		s, ok := keyString(v)
		if !ok {
			return nil, name
		}
		parts[i] = s
	}
	return strings.Join(parts, c.delimiter()), ""
}

// keyString renders a scalar component value deterministically, so a
// value composed at query time is byte-identical to the value composed
// when the item was written.
func keyString(v any) (string, bool) {
	switch v := v.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	case bool:
		return strconv.FormatBool(v), true
	case int:
		return strconv.Itoa(v), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return "", false
	}
}

// attributeEqual reports whether two attribute values hold the same
// scalar. Values are compared by their key renderings, so a number
// written as an int and read back as a float64 still matches and byte
// slices never hit a raw interface comparison. Values outside the
// scalar set fall back to deep equality.
func attributeEqual(a, b any) bool {
	as, aok := keyString(a)
	bs, bok := keyString(b)
	if aok && bok {
		return as == bs
	}
	return reflect.DeepEqual(a, b)
}

// Binding maps one physical index slot to the composition that fills it.
type Binding struct {
	Slot        IndexSlot
	Composition KeyComposition
}

// BindSlot is a convenience constructor for a Binding.
func BindSlot(slot IndexSlot, composition KeyComposition) Binding {
	return Binding{Slot: slot, Composition: composition}
}

// EntitySchema is the declarative description of one entity type: its
// attributes and the index map binding physical slots to composed
// values. EntitySchema values are inputs to Registry.Register; the
// resolved, inheritance-merged form is Schema.
type EntitySchema struct {
	// Type names the entity type. Required, unique per registry.
	Type string

	// Parent optionally names a previously registered entity type whose
	// attributes and bindings are inherited.
	Parent string

	// Attributes declares the entity's human attributes, in order.
	Attributes []AttributeDefinition

	// Bindings is the entity's index map.
	Bindings []Binding
}

// Schema is the resolved, immutable form of an entity type: parent
// chains walked, attributes merged, mutator pipelines bound. Schemas
// are built once at registration and shared across goroutines without
// synchronization.
type Schema struct {
	entityType string
	parentType string

	attrs     map[string]AttributeDefinition
	attrOrder []string

	bindings  map[IndexSlot]KeyComposition
	slotOrder []IndexSlot

	pipelines map[string][]mutatorStage
}

type mutatorStage struct {
	name string
	fn   MutatorFunc
}

// EntityType returns the resolved entity type name.
func (s *Schema) EntityType() string { return s.entityType }

// Attribute returns the merged definition for the named attribute.
func (s *Schema) Attribute(name string) (AttributeDefinition, bool) {
	def, ok := s.attrs[name]
	return def, ok
}

// Attributes returns the merged attribute definitions in declaration
// order, parent attributes first.
func (s *Schema) Attributes() []AttributeDefinition {
	defs := make([]AttributeDefinition, 0, len(s.attrOrder))
	for _, name := range s.attrOrder {
		defs = append(defs, s.attrs[name])
	}
	return defs
}

// Binding returns the composition bound to the given slot.
func (s *Schema) Binding(slot IndexSlot) (KeyComposition, bool) {
	c, ok := s.bindings[slot]
	return c, ok
}

// Bindings returns the resolved index map in binding order, parent
// bindings first.
func (s *Schema) Bindings() []Binding {
	out := make([]Binding, 0, len(s.slotOrder))
	for _, slot := range s.slotOrder {
		out = append(out, Binding{Slot: slot, Composition: s.bindings[slot]})
	}
	return out
}

// indexKeys resolves the physical attribute names and compositions for
// querying the named index. An LSI shares the table's partition key.
func (s *Schema) indexKeys(index string) (partition, sort Binding, ok bool) {
	kind, _, valid := parseIndex(index)
	if !valid {
		return Binding{}, Binding{}, false
	}

	pkSlot := PartitionSlot(index)
	if kind == kindLSI {
		pkSlot = PartitionSlot(TableIndexName)
	}
	skSlot := SortSlot(index)

	pkComp, ok := s.bindings[pkSlot]
	if !ok {
		return Binding{}, Binding{}, false
	}
	skComp, ok := s.bindings[skSlot]
	if !ok {
		return Binding{}, Binding{}, false
	}
	return Binding{Slot: pkSlot, Composition: pkComp}, Binding{Slot: skSlot, Composition: skComp}, true
}

// validate enforces the slot invariants on a resolved schema: the table
// key pair fully bound, LSI slots sort-role only, GSI pairs bound
// together, and every composition component declared as an attribute.
func (s *Schema) validate() error {
	if _, ok := s.bindings[PartitionSlot(TableIndexName)]; !ok {
		return schemaConflict(s.entityType, "table partition key slot is not bound")
	}
	if _, ok := s.bindings[SortSlot(TableIndexName)]; !ok {
		return schemaConflict(s.entityType, "table sort key slot is not bound")
	}

	gsiRoles := make(map[string]map[Role]bool)
	for slot, comp := range s.bindings {
		kind, _, ok := parseIndex(slot.Index)
		if !ok {
			return indexOverflow(s.entityType, "slot %s is outside the physical index set", slot)
		}
		switch kind {
		case kindLSI:
			if slot.Role != RoleSort {
				return schemaConflict(s.entityType, "slot %s: local secondary indexes bind a sort key only", slot)
			}
		case kindGSI:
			if gsiRoles[slot.Index] == nil {
				gsiRoles[slot.Index] = make(map[Role]bool)
			}
			gsiRoles[slot.Index][slot.Role] = true
		}

		if len(comp.Attributes) == 0 {
			return schemaConflict(s.entityType, "slot %s has an empty composition", slot)
		}
		for _, name := range comp.Attributes {
			if _, ok := s.attrs[name]; !ok {
				return schemaConflict(s.entityType, "slot %s references undeclared attribute %q", slot, name)
			}
		}
	}

	for index, roles := range gsiRoles {
		if !roles[RolePartition] || !roles[RoleSort] {
			return schemaConflict(s.entityType, "index %s must bind its partition and sort key slots as a pair", index)
		}
	}

	for name := range s.attrs {
		if isPhysicalAttribute(name) {
			return schemaConflict(s.entityType, "attribute %q collides with a physical key attribute", name)
		}
	}

	return nil
}
