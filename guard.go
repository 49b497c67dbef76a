package tablemap

// checkImmutable compares a proposed item against the previously
// persisted attributes. Once an immutable attribute holds a value,
// changing or unsetting it is rejected. A create has no previous item,
// so the first write is always permitted; races against concurrent
// writers are covered by the conditional guards the request builders
// attach.
func checkImmutable(schema *Schema, previous, proposed map[string]any) error {
	if previous == nil {
		return nil
	}
	for _, name := range schema.attrOrder {
		if !schema.attrs[name].Immutable {
			continue
		}
		before, had := previous[name]
		if !had || before == nil {
			continue
		}
		after, has := proposed[name]
		if !has || !attributeEqual(after, before) {
			return &ImmutabilityViolation{Attribute: name}
		}
	}
	return nil
}

// immutableGuards returns the persisted values of immutable attributes,
// used to build equality conditions so a concurrent writer cannot slip
// a change past the local check.
func immutableGuards(schema *Schema, previous map[string]any) map[string]any {
	if previous == nil {
		return nil
	}
	guards := make(map[string]any)
	for _, name := range schema.attrOrder {
		if !schema.attrs[name].Immutable {
			continue
		}
		if value, ok := previous[name]; ok && value != nil {
			guards[name] = value
		}
	}
	return guards
}
