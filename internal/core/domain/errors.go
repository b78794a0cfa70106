package domain

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the directory.
var (
	ErrValidation            = errors.New("validation failed")
	ErrNotFound              = errors.New("not found")
	ErrUnavailable           = errors.New("backend unavailable")
	ErrRateLimited           = errors.New("rate limit exceeded")
	ErrIdempotencyInProgress = errors.New("request with this idempotency key is in progress")
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of field errors. It matches ErrValidation
// with errors.Is.
type ValidationErrors []FieldError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ErrValidation.Error()
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", e[0].Error(), len(e)-1)
}

// Is lets errors.Is(err, ErrValidation) match.
func (e ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

// Add appends a field error.
func (e *ValidationErrors) Add(field, value, message string) {
	*e = append(*e, FieldError{Field: field, Value: value, Message: message})
}

// Err returns nil when no errors were collected.
func (e ValidationErrors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// Unavailable wraps a backend failure so that it matches ErrUnavailable.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
