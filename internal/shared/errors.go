package shared

import (
	"errors"
	"fmt"
)

// Error kinds. Domain errors wrap exactly one of these so callers can branch on
// the kind with errors.Is without knowing the specific sentinel.
var (
	// ErrValidation marks input rejected before any write.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrPartialFailure marks a business write that succeeded while a follow-up step did not.
	ErrPartialFailure = errors.New("partial failure")
	// ErrExternalStore wraps failures talking to Postgres or Redis.
	ErrExternalStore = errors.New("external store failure")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// NewError returns an error with message msg that matches kind under errors.Is.
func NewError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// ErrCompanyNotFound is returned for unknown tenants.
var ErrCompanyNotFound = NewError(ErrNotFound, "company not found")

// Validation builds a validation error with a formatted message.
func Validation(format string, args ...any) error {
	return NewError(ErrValidation, fmt.Sprintf(format, args...))
}

// StoreError tags err as an external store failure for operation op.
func StoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrExternalStore, op, err)
}

// UserSafeMessage returns a message that may be shown to API clients.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound):
		return err.Error()
	default:
		return "internal server error"
	}
}
