package domain

import (
	"errors"
	"fmt"
)

// Infrastructure error kinds. Components wrap these with %w so callers can
// branch with errors.Is regardless of the backend that failed.
var (
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	ErrIndexUnavailable     = errors.New("vector index unavailable")
	ErrCollectionNotFound   = errors.New("collection not found")
	ErrLLMFailure           = errors.New("llm failure")
)

// Sentinel errors for validation failures.
var (
	ErrEmptyQuery       = errors.New("empty query")
	ErrEmptyPatientID   = errors.New("empty patient id")
	ErrInvalidTopK      = errors.New("top_k must be positive")
	ErrInvalidEntryType = errors.New("invalid entry type")
	ErrEmptyHistoryText = errors.New("history entry has no text")
)

// Schema violations. Payloads and filters are built by this module, never
// taken from a request, so these are internal faults and are not wrapped in
// a ValidationError.
var (
	ErrInvalidPayload = errors.New("invalid payload")
	ErrInvalidFilter  = errors.New("invalid filter")
)

// ValidationError wraps a sentinel with context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
