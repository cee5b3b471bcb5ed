package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors forming the failure taxonomy. Callers classify with
// errors.Is; wrapping sites add the dependency and operation.
var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrUpstreamUnavailable = errors.New("upstream model endpoint unavailable")
	ErrStoreUnavailable    = errors.New("vector store unavailable")
	ErrQueryFailed         = errors.New("time-series query failed")
	ErrMalformedResponse   = errors.New("malformed upstream response")
	ErrSchemaViolation     = errors.New("payload schema violation")
)

// ValidationError wraps ErrInvalidArgument with the offending field.
type ValidationError struct {
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s (value=%q): %s", e.Field, e.Value, ErrInvalidArgument)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidArgument }

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, value string) *ValidationError {
	return &ValidationError{Field: field, Value: value}
}

// SchemaError wraps ErrSchemaViolation with the wire key that failed.
type SchemaError struct {
	Key    string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("payload key %q: %s: %s", e.Key, e.Reason, ErrSchemaViolation)
}

func (e *SchemaError) Unwrap() error { return ErrSchemaViolation }
