package tablemap

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks. Registration-time failures
// (ErrSchemaConflict, ErrIndexOverflow) are fatal and should abort
// startup; operation-time failures are detected before any backend
// call except ErrConditionFailed, which the backend reports.
var (
	// ErrUnknownEntityType is returned when resolving a type that was never registered.
	ErrUnknownEntityType = errors.New("tablemap: unknown entity type")

	// ErrSchemaConflict is returned when a schema registration is invalid,
	// including bad inheritance and slot rebinding.
	ErrSchemaConflict = errors.New("tablemap: schema conflict")

	// ErrIndexOverflow is returned when a binding references an index slot
	// outside the physical table layout.
	ErrIndexOverflow = errors.New("tablemap: index slot out of range")

	// ErrMutation is returned when an attribute mutator fails.
	ErrMutation = errors.New("tablemap: attribute mutation failed")

	// ErrComposition is returned when a bound slot cannot be composed
	// because a component attribute is absent.
	ErrComposition = errors.New("tablemap: key composition failed")

	// ErrImmutable is returned when a write would change an immutable attribute.
	ErrImmutable = errors.New("tablemap: immutable attribute changed")

	// ErrInconsistentItem is returned when a read item is missing a human
	// attribute the schema requires to be stored alongside its index values.
	ErrInconsistentItem = errors.New("tablemap: stored item is inconsistent with schema")

	// ErrConditionFailed is returned when the backend rejects a conditional
	// write. The operation may be retried by the caller.
	ErrConditionFailed = errors.New("tablemap: conditional check failed")

	// ErrItemNotFound is returned when an item is not found.
	ErrItemNotFound = errors.New("tablemap: item not found")

	// ErrIndexNotFound is returned when a query names an index the
	// schema does not bind, or when no bound index matches the queried
	// attributes.
	ErrIndexNotFound = errors.New("tablemap: no suitable index")
)

// SchemaError describes an invalid schema registration.
type SchemaError struct {
	EntityType string
	Reason     string
	overflow   bool
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema %q: %s", e.EntityType, e.Reason)
}

func (e *SchemaError) Is(target error) bool {
	if e.overflow {
		return target == ErrIndexOverflow
	}
	return target == ErrSchemaConflict
}

func schemaConflict(entityType, format string, args ...any) error {
	return &SchemaError{EntityType: entityType, Reason: fmt.Sprintf(format, args...)}
}

func indexOverflow(entityType, format string, args ...any) error {
	return &SchemaError{EntityType: entityType, Reason: fmt.Sprintf(format, args...), overflow: true}
}

// MutationError reports a failed attribute mutator, naming the attribute
// and the mutator stage that failed.
type MutationError struct {
	Attribute string
	Mutator   string
	Err       error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("mutator %q on attribute %q: %v", e.Mutator, e.Attribute, e.Err)
}

func (e *MutationError) Is(target error) bool { return target == ErrMutation }
func (e *MutationError) Unwrap() error        { return e.Err }

// CompositionError reports a bound index slot whose composed value could
// not be built from the item's human attributes.
type CompositionError struct {
	Slot      IndexSlot
	Attribute string
}

func (e *CompositionError) Error() string {
	return fmt.Sprintf("slot %s: missing component attribute %q", e.Slot, e.Attribute)
}

func (e *CompositionError) Is(target error) bool { return target == ErrComposition }

// ImmutabilityViolation reports an attempt to change an attribute that
// was persisted with the immutable flag.
type ImmutabilityViolation struct {
	Attribute string
}

func (e *ImmutabilityViolation) Error() string {
	return fmt.Sprintf("attribute %q is immutable once persisted", e.Attribute)
}

func (e *ImmutabilityViolation) Is(target error) bool { return target == ErrImmutable }

// InconsistentItemError reports a read item that violates the schema:
// an attribute participating in an index composition was not stored as a
// human-readable attribute. Such items were written by a non-conforming
// path and are surfaced rather than repaired.
type InconsistentItemError struct {
	EntityType string
	Attribute  string
}

func (e *InconsistentItemError) Error() string {
	return fmt.Sprintf("%s item is missing stored attribute %q", e.EntityType, e.Attribute)
}

func (e *InconsistentItemError) Is(target error) bool { return target == ErrInconsistentItem }

// ConditionFailedError reports a backend conditional-check failure with
// enough context for the caller to decide on a retry.
type ConditionFailedError struct {
	Operation  string
	EntityType string
	Key        string
	Err        error
}

func (e *ConditionFailedError) Error() string {
	return fmt.Sprintf("%s %s %q: conditional check failed", e.Operation, e.EntityType, e.Key)
}

func (e *ConditionFailedError) Is(target error) bool { return target == ErrConditionFailed }
func (e *ConditionFailedError) Unwrap() error        { return e.Err }
