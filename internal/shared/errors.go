package shared

import (
	"errors"
	"fmt"
)

// Sentinel errors for the engine's failure taxonomy. Typed errors below match
// these through Is so callers can branch with errors.Is while still receiving
// the violated field or rule.
var (
	// ErrValidation indicates malformed, missing or contradictory input.
	ErrValidation = errors.New("validation failed")
	// ErrForbidden indicates the actor lacks rights for the action.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict indicates a uniqueness violation.
	ErrConflict = errors.New("conflict")
	// ErrState indicates an illegal state transition or an edit against a locked record.
	ErrState = errors.New("invalid state")
	// ErrNotFound indicates an unknown id reference.
	ErrNotFound = errors.New("not found")
)

// ValidationError names the field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Validationf builds a ValidationError for a field.
func Validationf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// AuthorizationError carries the rule the actor failed.
type AuthorizationError struct {
	Rule string
}

func (e *AuthorizationError) Error() string { return "forbidden: " + e.Rule }

func (e *AuthorizationError) Is(target error) bool { return target == ErrForbidden }

// ConflictError names the uniqueness constraint that was violated.
type ConflictError struct {
	Resource string
	Detail   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: %s: %s", e.Resource, e.Detail)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// StateError describes a rejected state transition.
type StateError struct {
	From   string
	To     string
	Reason string
}

func (e *StateError) Error() string {
	if e.To == "" {
		return fmt.Sprintf("state: %s: %s", e.From, e.Reason)
	}
	return fmt.Sprintf("state: %s -> %s: %s", e.From, e.To, e.Reason)
}

func (e *StateError) Is(target error) bool { return target == ErrState }

// NotFoundError names the missing resource.
type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
