package tablemap

// Key synthesis only ever flows from human attributes to index values.
// The reverse direction is a validation pass: every attribute that
// participates in a composition is also stored directly (the shadow
// attribute rule), so a read never needs to split an index value apart.

// Synthesize computes every bound slot's physical value from the item's
// human attributes. Stale physical values are overwritten. A missing
// component aborts with a CompositionError before any request is built.
func (s *Schema) Synthesize(attrs map[string]any) (map[string]any, error) {
	keys := make(map[string]any, len(s.slotOrder))
	for _, slot := range s.slotOrder {
		value, missing := s.bindings[slot].compose(attrs)
		if missing != "" {
			return nil, &CompositionError{Slot: slot, Attribute: missing}
		}
		keys[slot.AttributeName()] = value
	}
	return keys, nil
}

// SynthesizeAffected recomputes only the slots whose composition
// depends on at least one changed attribute. Unaffected slots are left
// out of the result so partial updates do not touch them.
func (s *Schema) SynthesizeAffected(attrs map[string]any, changed []string) (map[string]any, error) {
	keys := make(map[string]any)
	for _, slot := range s.slotOrder {
		comp := s.bindings[slot]
		affected := false
		for _, name := range changed {
			if comp.dependsOn(name) {
				affected = true
				break
			}
		}
		if !affected {
			continue
		}
		value, missing := comp.compose(attrs)
		if missing != "" {
			return nil, &CompositionError{Slot: slot, Attribute: missing}
		}
		keys[slot.AttributeName()] = value
	}
	return keys, nil
}

// shadowAttributes returns the set of human attributes that participate
// in at least one composition and therefore must be stored on every item.
func (s *Schema) shadowAttributes() map[string]bool {
	shadow := make(map[string]bool)
	for _, slot := range s.slotOrder {
		for _, name := range s.bindings[slot].Attributes {
			shadow[name] = true
		}
	}
	return shadow
}

// ValidateStored checks a read item against the shadow attribute rule.
// An item missing a human attribute that feeds a bound slot was written
// by a non-conforming path; it is reported, never repaired.
func (s *Schema) ValidateStored(item map[string]any) error {
	for name := range s.shadowAttributes() {
		if v, ok := item[name]; !ok || v == nil {
			return &InconsistentItemError{EntityType: s.entityType, Attribute: name}
		}
	}
	return nil
}
