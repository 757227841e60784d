package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrForbidden  = errors.New("forbidden")
	ErrConflict   = errors.New("conflict")

	ErrAlreadyResolved = fmt.Errorf("system event already resolved: %w", ErrConflict)
)

// ValidationError reports malformed or missing caller input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// AuthorizationError is returned when the caller's role does not satisfy the
// access policy of an operation. No side effect has happened when it is returned.
type AuthorizationError struct {
	CallerID  string
	Role      Role
	Operation string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("role %q may not %s", e.Role, e.Operation)
}

func (e *AuthorizationError) Is(target error) bool {
	return target == ErrForbidden
}
