package tablemap

import "fmt"

// Record is one resolved item instance: the human attributes a caller
// reasons about plus the physical index values synthesized from them.
// Records are owned by the caller and created per operation; the engine
// never retains them across calls.
type Record struct {
	schema *Schema
	attrs  map[string]any
	keys   map[string]any

	// original holds the attributes as last seen in storage. Nil for
	// records that have never been persisted or hydrated.
	original map[string]any
}

// NewRecord constructs a record from a mapping of attribute name to
// value, as produced by the validation framework in front of the
// engine. Defaults are applied for absent attributes, then each value
// runs through its mutator pipeline. A mutator failure aborts with no
// partial state.
func (s *Schema) NewRecord(attrs map[string]any) (*Record, error) {
	resolved := make(map[string]any, len(attrs))

	for name, value := range attrs {
		if _, ok := s.attrs[name]; !ok {
			return nil, fmt.Errorf("tablemap: %s has no attribute %q", s.entityType, name)
		}
		mutated, err := s.mutate(name, value)
		if err != nil {
			return nil, err
		}
		resolved[name] = mutated
	}

	for _, name := range s.attrOrder {
		def := s.attrs[name]
		if def.Default == nil {
			continue
		}
		if _, ok := resolved[name]; ok {
			continue
		}
		mutated, err := s.mutate(name, def.Default)
		if err != nil {
			return nil, err
		}
		resolved[name] = mutated
	}

	return &Record{schema: s, attrs: resolved}, nil
}

// Hydrate rebuilds a record from a stored item. Physical key attributes
// are split from human attributes, and the item is checked against the
// shadow attribute rule before it is returned to the caller.
func (s *Schema) Hydrate(item map[string]any) (*Record, error) {
	if err := s.ValidateStored(item); err != nil {
		return nil, err
	}

	attrs := make(map[string]any)
	keys := make(map[string]any)
	for name, value := range item {
		if isPhysicalAttribute(name) {
			keys[name] = value
			continue
		}
		if _, ok := s.attrs[name]; ok {
			attrs[name] = value
		}
	}

	original := make(map[string]any, len(attrs))
	for name, value := range attrs {
		original[name] = value
	}

	return &Record{schema: s, attrs: attrs, keys: keys, original: original}, nil
}

// Schema returns the schema the record was resolved against.
func (r *Record) Schema() *Schema { return r.schema }

// Get returns the named human attribute.
func (r *Record) Get(name string) (any, bool) {
	v, ok := r.attrs[name]
	return v, ok
}

// Set assigns a human attribute, running its mutator pipeline first.
// On a mutator failure the record is left exactly as it was.
func (r *Record) Set(name string, value any) error {
	if _, ok := r.schema.attrs[name]; !ok {
		return fmt.Errorf("tablemap: %s has no attribute %q", r.schema.entityType, name)
	}
	mutated, err := r.schema.mutate(name, value)
	if err != nil {
		return err
	}
	r.attrs[name] = mutated
	return nil
}

// Unset removes a human attribute. The next partial update emits a
// REMOVE clause for it.
func (r *Record) Unset(name string) {
	delete(r.attrs, name)
}

// Attributes returns a copy of the record's human attributes.
func (r *Record) Attributes() map[string]any {
	out := make(map[string]any, len(r.attrs))
	for name, value := range r.attrs {
		out[name] = value
	}
	return out
}

// IndexValues returns a copy of the physical key attributes as of the
// last synthesis or hydration.
func (r *Record) IndexValues() map[string]any {
	out := make(map[string]any, len(r.keys))
	for name, value := range r.keys {
		out[name] = value
	}
	return out
}

// Changed returns the names of attributes that differ from the stored
// original: added, modified, or unset. For records that were never
// hydrated it returns every attribute.
func (r *Record) Changed() []string {
	var changed []string
	if r.original == nil {
		for _, name := range r.schema.attrOrder {
			if _, ok := r.attrs[name]; ok {
				changed = append(changed, name)
			}
		}
		return changed
	}
	for _, name := range r.schema.attrOrder {
		current, hasCurrent := r.attrs[name]
		previous, hasPrevious := r.original[name]
		if hasCurrent != hasPrevious || (hasCurrent && !attributeEqual(current, previous)) {
			changed = append(changed, name)
		}
	}
	return changed
}

// synthesize recomputes every physical slot from the current
// attributes, overwriting stale values. Called at persistence
// boundaries so attributes and index values leave the engine
// mutually consistent.
func (r *Record) synthesize() error {
	keys, err := r.schema.Synthesize(r.attrs)
	if err != nil {
		return err
	}
	r.keys = keys
	return nil
}

// item merges human and physical attributes into the stored shape.
func (r *Record) item() map[string]any {
	item := make(map[string]any, len(r.attrs)+len(r.keys))
	for name, value := range r.attrs {
		item[name] = value
	}
	for name, value := range r.keys {
		item[name] = value
	}
	return item
}

// markStored snapshots the current attributes as the persisted
// original, so later diffs and immutability checks compare against
// what the backend accepted.
func (r *Record) markStored() {
	original := make(map[string]any, len(r.attrs))
	for name, value := range r.attrs {
		original[name] = value
	}
	r.original = original
}
