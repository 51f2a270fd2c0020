package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"

	"github.com/opforge/memo-framework/operations"
)

// ErrKeyNotFound is returned by Get when no result is stored for the
// operation's canonical key.
var ErrKeyNotFound = errors.New("key not found")

// BackendError wraps a backend-specific failure (an I/O error, a driver
// error) with the backend name and the failing store operation.
type BackendError struct {
	Backend string
	Op      string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s store: %s: %v", e.Backend, e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// Store persists operation results keyed by canonical operation key.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the stored result for op, or an error wrapping
	// ErrKeyNotFound when none is stored. Backends that serialize values
	// return the deserialized form, so numbers come back as float64 and
	// structured values as []any / map[string]any.
	Get(ctx context.Context, op *operations.Operation) (any, error)

	// Put stores the result for op, overwriting any previous result under
	// the same canonical key.
	Put(ctx context.Context, op *operations.Operation, value any) error

	// Contains reports whether a result is stored for op.
	Contains(ctx context.Context, op *operations.Operation) (bool, error)

	// Delete removes the stored result for op. Deleting an absent key is
	// not an error.
	Delete(ctx context.Context, op *operations.Operation) error

	// Clear removes every stored result.
	Clear(ctx context.Context) error

	// Keys iterates over the canonical keys of all stored results, in no
	// particular order. A non-nil error ends the iteration.
	Keys(ctx context.Context) iter.Seq2[string, error]
}

// GetAs retrieves the stored result for op and coerces it to T through a
// JSON round-trip when the stored form does not match, which is the usual
// case for backends that persist values as JSON.
func GetAs[T any](ctx context.Context, s Store, op *operations.Operation) (T, error) {
	var zero T

	v, err := s.Get(ctx, op)
	if err != nil {
		return zero, err
	}
	if tv, ok := v.(T); ok {
		return tv, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return zero, fmt.Errorf("cannot convert stored %T to %T: %w", v, zero, err)
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return zero, fmt.Errorf("cannot convert stored %T to %T: %w", v, zero, err)
	}

	return out, nil
}
