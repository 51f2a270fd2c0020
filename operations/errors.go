package operations

import (
	"errors"
	"fmt"
)

// ErrUnknownOperation is returned when deserialization encounters a variant
// tag that has not been registered.
var ErrUnknownOperation = errors.New("unknown operation tag")

// BindError reports a construction-time argument/schema mismatch: an
// unrecognized keyword, a missing required field, surplus positional
// arguments or a value of the wrong kind for an operation field.
type BindError struct {
	Tag    string
	Field  string // empty when the error is not tied to a single field
	Reason string
}

func (e *BindError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("bind %s: %s", e.Tag, e.Reason)
	}

	return fmt.Sprintf("bind %s: field %q: %s", e.Tag, e.Field, e.Reason)
}

func newBindError(tag, field, format string, args ...any) *BindError {
	return &BindError{Tag: tag, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// SerializationError reports a value outside the closed value variant: not a
// primitive, not a nested operation and not a homogeneous collection of
// either.
type SerializationError struct {
	Path   string // location of the offending value, e.g. "fields.left[2]"
	GoType string
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("value at %s is not serializable: unsupported type %s", e.Path, e.GoType)
}

func newSerializationError(path string, v any) *SerializationError {
	return &SerializationError{Path: path, GoType: fmt.Sprintf("%T", v)}
}
