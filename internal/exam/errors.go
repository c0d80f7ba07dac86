package exam

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure that reaches a caller of this package wraps one of these.
var (
	ErrNotFound    = errors.New("test not found")
	ErrValidation  = errors.New("validation failed")
	ErrExpired     = errors.New("test has already ended")
	ErrEntryClosed = errors.New("entry window has closed")
	ErrTransient   = errors.New("temporary failure, try again")

	ErrWrongPhase = fmt.Errorf("%w: action not allowed in current phase", ErrValidation)
	ErrTimeUp     = fmt.Errorf("%w: time is up", ErrValidation)
	ErrSubmitting = fmt.Errorf("%w: submission in progress", ErrValidation)
)

// FieldError reports a validation failure on a single input field.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrValidation.
func (e *FieldError) Unwrap() error {
	return ErrValidation
}

func fieldError(field, reason string) error {
	return &FieldError{Field: field, Reason: reason}
}

// Retryable reports whether the failure may succeed on a later attempt.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrNotFound)
}

// Transient marks err as a retryable infrastructure failure.
func Transient(op string, err error) error {
	if err == nil || errors.Is(err, ErrTransient) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrTransient, op, err)
}

// Kind names the error kind for transport layers.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrEntryClosed):
		return "entry_closed"
	case errors.Is(err, ErrValidation):
		return "validation"
	default:
		return "transient"
	}
}
