package tablemap

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// MutatorFunc transforms an attribute value at set-time, before the
// value participates in any key composition. Mutators must be pure:
// same input, same output, no retained state.
type MutatorFunc func(attribute string, value any) (any, error)

// Built-in mutators registered on every new Registry. Callers add their
// own with Registry.RegisterMutator.
const (
	MutatorLowercase = "lowercase"
	MutatorTrimSpace = "trimspace"
	MutatorSHA256    = "sha256"
)

func builtinMutators() map[string]MutatorFunc {
	return map[string]MutatorFunc{
		MutatorLowercase: mutateLowercase,
		MutatorTrimSpace: mutateTrimSpace,
		MutatorSHA256:    mutateSHA256,
	}
}

func mutateLowercase(attribute string, value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("%q is not a string", attribute)
	}
	return strings.ToLower(s), nil
}

func mutateTrimSpace(attribute string, value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("%q is not a string", attribute)
	}
	return strings.TrimSpace(s), nil
}

func mutateSHA256(attribute string, value any) (any, error) {
	s, ok := keyString(value)
	if !ok {
		return nil, fmt.Errorf("%q is not a scalar", attribute)
	}
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:]), nil
}

// mutate runs the attribute's pipeline over value, each stage receiving
// the previous stage's output. The first failing stage aborts with a
// MutationError; the caller must leave its state untouched in that case.
func (s *Schema) mutate(attribute string, value any) (any, error) {
	for _, stage := range s.pipelines[attribute] {
		next, err := stage.fn(attribute, value)
		if err != nil {
			return nil, &MutationError{Attribute: attribute, Mutator: stage.name, Err: err}
		}
		value = next
	}
	return value, nil
}
