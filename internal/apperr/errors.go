// Package apperr defines the error kinds shared by the chat components
// and the HTTP layer that maps them onto status codes.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConflict  = errors.New("participant name already in use")
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("requester is not the author")
	ErrStore     = errors.New("store failure")
	ErrNotReady  = errors.New("store not connected")
)

// FieldError is one failing field of a rejected payload.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every failing field of a payload.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Messages returns the human-readable message of each field error.
func (e *ValidationError) Messages() []string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return msgs
}

// Invalid builds a ValidationError for a single field.
func Invalid(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// Store wraps an underlying persistence failure as ErrStore.
func Store(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrStore, err)
}
