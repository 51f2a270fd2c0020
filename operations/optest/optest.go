// Package optest provides helpers for testing code built on operations.
// Variants are registered in caller-supplied registries so tests never
// collide through the default registry.
package optest

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opforge/memo-framework/operations"
)

// ErrApply is the failure returned by variants created with Fail.
var ErrApply = errors.New("apply failed")

// Calls counts apply invocations for a test variant.
type Calls struct {
	n atomic.Int32
}

func (c *Calls) inc() {
	c.n.Add(1)
}

// Count returns how many times the variant's apply has run.
func (c *Calls) Count() int {
	return int(c.n.Load())
}

// Value registers a leaf variant under tag with a single primitive field
// "value" whose apply returns the field as bound.
func Value(t *testing.T, reg *operations.Registry, tag string) (*operations.Variant, *Calls) {
	t.Helper()

	calls := &Calls{}
	schema := operations.MustNewSchema(operations.PrimitiveField("value"))
	v, err := operations.NewVariantIn(reg, tag, nil, "returns its bound value", schema,
		func(_ context.Context, _ operations.Resolver, op *operations.Operation) (any, error) {
			calls.inc()
			val, _ := op.Get("value")

			return val, nil
		})
	require.NoError(t, err)

	return v, calls
}

// Add registers a variant under tag with operation fields "left" and "right"
// whose apply resolves both operands and returns their sum as a float64.
func Add(t *testing.T, reg *operations.Registry, tag string) (*operations.Variant, *Calls) {
	t.Helper()

	calls := &Calls{}
	schema := operations.MustNewSchema(
		operations.OperationField("left"),
		operations.OperationField("right"),
	)
	v, err := operations.NewVariantIn(reg, tag, nil, "adds two operand operations", schema,
		func(ctx context.Context, res operations.Resolver, op *operations.Operation) (any, error) {
			calls.inc()
			left, err := op.Resolve(ctx, res, "left")
			if err != nil {
				return nil, err
			}
			right, err := op.Resolve(ctx, res, "right")
			if err != nil {
				return nil, err
			}

			return toFloat(left) + toFloat(right), nil
		})
	require.NoError(t, err)

	return v, calls
}

// Fail registers a no-field variant under tag whose apply always returns
// ErrApply.
func Fail(t *testing.T, reg *operations.Registry, tag string) (*operations.Variant, *Calls) {
	t.Helper()

	calls := &Calls{}
	schema := operations.MustNewSchema()
	v, err := operations.NewVariantIn(reg, tag, nil, "always fails", schema,
		func(_ context.Context, _ operations.Resolver, _ *operations.Operation) (any, error) {
			calls.inc()

			return nil, ErrApply
		})
	require.NoError(t, err)

	return v, calls
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}
