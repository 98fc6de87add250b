package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when an optimistic concurrency check fails.
	// The caller may retry the assessment; the write is never silently applied.
	ErrConflict = errors.New("concurrent modification conflict")

	// ErrInvalidInput marks malformed store arguments.
	ErrInvalidInput = errors.New("invalid input")
)

// ValidationError reports a malformed or missing required field. It is
// surfaced immediately with zero side effects and is never retried.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// AssessmentError wraps a fatal failure of one assessment call. All partial
// writes from the call have been rolled back by the time it is returned.
type AssessmentError struct {
	CustomerID string
	Op         string
	Err        error
}

func (e *AssessmentError) Error() string {
	return fmt.Sprintf("risk assessment failed for customer %s during %s: %v", e.CustomerID, e.Op, e.Err)
}

func (e *AssessmentError) Unwrap() error {
	return e.Err
}
