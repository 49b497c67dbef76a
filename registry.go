package tablemap

// Registry resolves entity type names to their merged schemas. It is
// populated during startup, typically from init functions or a single
// setup path, and is read-only afterwards: Register and RegisterMutator
// must not race with Resolve. After registration completes the registry
// is safe for unsynchronized concurrent reads.
type Registry struct {
	schemas  map[string]*Schema
	mutators map[string]MutatorFunc
}

// NewRegistry creates an empty registry with the built-in mutators
// pre-registered.
func NewRegistry() *Registry {
	return &Registry{
		schemas:  make(map[string]*Schema),
		mutators: builtinMutators(),
	}
}

// RegisterMutator registers a named mutator for use in attribute
// pipelines. Re-registering a name replaces the previous function, so
// callers can override the built-ins.
func (r *Registry) RegisterMutator(name string, fn MutatorFunc) {
	r.mutators[name] = fn
}

// Register resolves and validates an entity schema. A parent type must
// be registered before its children. Registration failures are fatal
// configuration errors: ErrSchemaConflict for bad declarations and
// inheritance, ErrIndexOverflow for slots outside the physical layout.
func (r *Registry) Register(def EntitySchema) error {
	if def.Type == "" {
		return schemaConflict(def.Type, "entity type name is required")
	}
	if _, exists := r.schemas[def.Type]; exists {
		return schemaConflict(def.Type, "entity type already registered")
	}

	schema := &Schema{
		entityType: def.Type,
		parentType: def.Parent,
		attrs:      make(map[string]AttributeDefinition),
		bindings:   make(map[IndexSlot]KeyComposition),
		pipelines:  make(map[string][]mutatorStage),
	}

	if def.Parent != "" {
		parent, ok := r.schemas[def.Parent]
		if !ok {
			return schemaConflict(def.Type, "parent type %q is not registered", def.Parent)
		}
		for _, name := range parent.attrOrder {
			schema.attrs[name] = parent.attrs[name]
			schema.attrOrder = append(schema.attrOrder, name)
		}
		for _, slot := range parent.slotOrder {
			schema.bindings[slot] = parent.bindings[slot]
			schema.slotOrder = append(schema.slotOrder, slot)
		}
	}

	for _, attr := range def.Attributes {
		if attr.Name == "" {
			return schemaConflict(def.Type, "attribute with empty name")
		}
		if attr.Type == "" {
			attr.Type = TypeString
		}
		if inherited, ok := schema.attrs[attr.Name]; ok {
			// A child may tighten an inherited attribute but never
			// relax immutability the parent established.
			if inherited.Immutable && !attr.Immutable {
				return schemaConflict(def.Type,
					"attribute %q: parent %q marks it immutable", attr.Name, def.Parent)
			}
			schema.attrs[attr.Name] = attr
			continue
		}
		schema.attrs[attr.Name] = attr
		schema.attrOrder = append(schema.attrOrder, attr.Name)
	}

	for _, binding := range def.Bindings {
		if _, bound := schema.bindings[binding.Slot]; bound {
			return schemaConflict(def.Type, "slot %s is already bound", binding.Slot)
		}
		schema.bindings[binding.Slot] = binding.Composition
		schema.slotOrder = append(schema.slotOrder, binding.Slot)
	}

	for _, name := range schema.attrOrder {
		attr := schema.attrs[name]
		stages := make([]mutatorStage, 0, len(attr.Mutators))
		for _, mutator := range attr.Mutators {
			fn, ok := r.mutators[mutator]
			if !ok {
				return schemaConflict(def.Type,
					"attribute %q uses unregistered mutator %q", name, mutator)
			}
			stages = append(stages, mutatorStage{name: mutator, fn: fn})
		}
		if len(stages) > 0 {
			schema.pipelines[name] = stages
		}
	}

	if err := schema.validate(); err != nil {
		return err
	}

	r.schemas[def.Type] = schema
	return nil
}

// MustRegister registers the schema and panics on failure. Intended for
// init-time model definition where a bad schema should abort startup.
func (r *Registry) MustRegister(def EntitySchema) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

// Resolve returns the merged schema for the entity type.
func (r *Registry) Resolve(entityType string) (*Schema, error) {
	schema, ok := r.schemas[entityType]
	if !ok {
		return nil, ErrUnknownEntityType
	}
	return schema, nil
}

// Types returns the registered entity type names in no particular order.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		types = append(types, name)
	}
	return types
}
