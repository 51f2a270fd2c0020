package operations

import (
	"context"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numberVariant(t *testing.T, reg *Registry) *Variant {
	t.Helper()

	v, err := NewVariantIn(reg, "number", semver.MustParse("1.0.0"), "a constant",
		MustNewSchema(PrimitiveField("n")),
		func(_ context.Context, _ Resolver, op *Operation) (any, error) {
			n, _ := op.Get("n")
			return n, nil
		})
	require.NoError(t, err)

	return v
}

func addVariant(t *testing.T, reg *Registry) *Variant {
	t.Helper()

	v, err := NewVariantIn(reg, "add", nil, "adds two operands",
		MustNewSchema(OperationField("left"), OperationField("right")),
		func(ctx context.Context, res Resolver, op *Operation) (any, error) {
			left, err := op.Resolve(ctx, res, "left")
			if err != nil {
				return nil, err
			}
			right, err := op.Resolve(ctx, res, "right")
			if err != nil {
				return nil, err
			}

			return left.(int) + right.(int), nil
		})
	require.NoError(t, err)

	return v
}

func Test_NewVariant(t *testing.T) {
	t.Parallel()

	nopApply := func(context.Context, Resolver, *Operation) (any, error) { return nil, nil }

	t.Run("registers in the given registry", func(t *testing.T) {
		t.Parallel()

		reg := NewRegistry()
		v, err := NewVariantIn(reg, "noop", nil, "", MustNewSchema(), nopApply)
		require.NoError(t, err)

		got, err := reg.Lookup("noop")
		require.NoError(t, err)
		assert.Same(t, v, got)
	})

	t.Run("rejects an empty tag", func(t *testing.T) {
		t.Parallel()

		_, err := NewVariantIn(NewRegistry(), "", nil, "", MustNewSchema(), nopApply)
		require.ErrorContains(t, err, "tag must not be empty")
	})

	t.Run("rejects a nil apply", func(t *testing.T) {
		t.Parallel()

		_, err := NewVariantIn(NewRegistry(), "noop", nil, "", MustNewSchema(), nil)
		require.ErrorContains(t, err, "apply function must not be nil")
	})

	t.Run("exposes definition metadata", func(t *testing.T) {
		t.Parallel()

		v := numberVariant(t, NewRegistry())
		assert.Equal(t, "number", v.Tag())
		assert.Equal(t, "1.0.0", v.Version())
		assert.Equal(t, "a constant", v.Description())
		assert.Equal(t, 1, v.Schema().Len())
	})
}

func Test_Variant_Bind(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	v, err := NewVariantIn(reg, "window", nil, "",
		MustNewSchema(
			PrimitiveField("series"),
			PrimitiveFieldDefault("size", 7),
		),
		func(_ context.Context, _ Resolver, _ *Operation) (any, error) { return nil, nil })
	require.NoError(t, err)

	t.Run("binds positionally in declaration order", func(t *testing.T) {
		t.Parallel()

		op, err := v.New("temps", 3)
		require.NoError(t, err)

		series, ok := op.Get("series")
		require.True(t, ok)
		assert.Equal(t, "temps", series)
		size, _ := op.Get("size")
		assert.Equal(t, 3, size)
	})

	t.Run("binds keywords by name", func(t *testing.T) {
		t.Parallel()

		op, err := v.Bind(nil, map[string]any{"series": "temps", "size": 3})
		require.NoError(t, err)

		size, _ := op.Get("size")
		assert.Equal(t, 3, size)
	})

	t.Run("applies defaults for unset fields", func(t *testing.T) {
		t.Parallel()

		op, err := v.New("temps")
		require.NoError(t, err)

		size, _ := op.Get("size")
		assert.Equal(t, 7, size)
	})

	t.Run("missing required field", func(t *testing.T) {
		t.Parallel()

		_, err := v.New()
		var bindErr *BindError
		require.ErrorAs(t, err, &bindErr)
		assert.Equal(t, "series", bindErr.Field)
		assert.Contains(t, bindErr.Reason, "missing required field")
	})

	t.Run("unknown keyword", func(t *testing.T) {
		t.Parallel()

		_, err := v.Bind(nil, map[string]any{"series": "temps", "stride": 2})
		var bindErr *BindError
		require.ErrorAs(t, err, &bindErr)
		assert.Equal(t, "stride", bindErr.Field)
	})

	t.Run("surplus positional arguments", func(t *testing.T) {
		t.Parallel()

		_, err := v.New("temps", 3, "extra")
		var bindErr *BindError
		require.ErrorAs(t, err, &bindErr)
		assert.Contains(t, bindErr.Reason, "at most 2 positional arguments")
	})

	t.Run("field bound both positionally and by name", func(t *testing.T) {
		t.Parallel()

		_, err := v.Bind([]any{"temps"}, map[string]any{"series": "other"})
		var bindErr *BindError
		require.ErrorAs(t, err, &bindErr)
		assert.Equal(t, "series", bindErr.Field)
	})

	t.Run("rejects a wrong kind for an operation field", func(t *testing.T) {
		t.Parallel()

		addv := addVariant(t, NewRegistry())
		_, err := addv.New(1, 2)
		var bindErr *BindError
		require.ErrorAs(t, err, &bindErr)
		assert.Contains(t, bindErr.Reason, "expected a nested operation")
	})
}

func Test_Bind_RejectsUnserializableValues(t *testing.T) {
	t.Parallel()

	numv := numberVariant(t, NewRegistry())

	tests := []struct {
		name     string
		value    any
		wantPath string
	}{
		{
			name:     "arbitrary struct",
			value:    struct{ X int }{X: 1},
			wantPath: "fields.n",
		},
		{
			name:     "channel inside a slice",
			value:    []any{1, make(chan int)},
			wantPath: "fields.n[1]",
		},
		{
			name:     "non-string map keys",
			value:    map[int]string{1: "a"},
			wantPath: "fields.n",
		},
		{
			name:     "operation in a primitive position",
			value:    numv.MustNew(1),
			wantPath: "fields.n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := numv.New(tt.value)
			var serErr *SerializationError
			require.ErrorAs(t, err, &serErr)
			assert.Equal(t, tt.wantPath, serErr.Path)
		})
	}
}

func Test_Operation_KeyDeterminism(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	numv := numberVariant(t, reg)
	addv := addVariant(t, reg)

	t.Run("key is independent of binding style", func(t *testing.T) {
		t.Parallel()

		one := numv.MustNew(1)
		two := numv.MustNew(2)

		positional, err := addv.New(one, two)
		require.NoError(t, err)
		byName, err := addv.Bind(nil, map[string]any{"right": two, "left": one})
		require.NoError(t, err)

		assert.Equal(t, positional.Key(), byName.Key())
		assert.True(t, positional.Equal(byName))
	})

	t.Run("equivalent numerics produce the same key", func(t *testing.T) {
		t.Parallel()

		asInt := numv.MustNew(1)
		asFloat := numv.MustNew(1.0)
		assert.Equal(t, asInt.Key(), asFloat.Key())
	})

	t.Run("different values produce different keys", func(t *testing.T) {
		t.Parallel()

		assert.NotEqual(t, numv.MustNew(1).Key(), numv.MustNew(2).Key())
	})

	t.Run("key is stable JSON", func(t *testing.T) {
		t.Parallel()

		op := numv.MustNew(42)
		assert.Equal(t, `{"fields":{"n":42},"tag":"number"}`, op.Key())
	})

	t.Run("digest is a hex sha256 of the key", func(t *testing.T) {
		t.Parallel()

		op := numv.MustNew(42)
		assert.Len(t, op.Digest(), 64)
		assert.Equal(t, op.Digest(), numv.MustNew(42).Digest())
	})
}

func Test_Operation_Equal(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	numv := numberVariant(t, reg)

	one := numv.MustNew(1)
	assert.True(t, one.Equal(numv.MustNew(1)))
	assert.False(t, one.Equal(numv.MustNew(2)))
	assert.False(t, one.Equal(nil))

	var nilOp *Operation
	assert.True(t, nilOp.Equal(nil))
}

func Test_Operation_Resolve(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	numv := numberVariant(t, reg)
	addv := addVariant(t, reg)

	ctx := t.Context()

	t.Run("resolves nested operation fields", func(t *testing.T) {
		t.Parallel()

		runner := NewRunner(WithCapacity(CapacityUnbounded))
		op := addv.MustNew(numv.MustNew(2), numv.MustNew(3))
		left, err := op.Resolve(ctx, runner, "left")
		require.NoError(t, err)
		assert.Equal(t, 2, left)
	})

	t.Run("resolves slice fields element-wise", func(t *testing.T) {
		t.Parallel()

		sumv, err := NewVariantIn(reg, "sum", nil, "",
			MustNewSchema(OperationSliceField("terms")),
			func(ctx context.Context, res Resolver, op *Operation) (any, error) {
				return op.Resolve(ctx, res, "terms")
			})
		require.NoError(t, err)

		op := sumv.MustNew([]*Operation{numv.MustNew(1), numv.MustNew(2)})
		terms, err := op.Resolve(ctx, NewRunner(), "terms")
		require.NoError(t, err)
		assert.Equal(t, []any{1, 2}, terms)
	})

	t.Run("resolves map fields element-wise", func(t *testing.T) {
		t.Parallel()

		pickv, err := NewVariantIn(reg, "pick", nil, "",
			MustNewSchema(OperationMapField("inputs")),
			func(ctx context.Context, res Resolver, op *Operation) (any, error) {
				return op.Resolve(ctx, res, "inputs")
			})
		require.NoError(t, err)

		op := pickv.MustNew(map[string]*Operation{"a": numv.MustNew(1)})
		inputs, err := op.Resolve(ctx, NewRunner(), "inputs")
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"a": 1}, inputs)
	})

	t.Run("unknown field", func(t *testing.T) {
		t.Parallel()

		op := numv.MustNew(1)
		_, err := op.Resolve(ctx, NewRunner(), "missing")
		var bindErr *BindError
		require.ErrorAs(t, err, &bindErr)
	})
}

func Test_NewSchema(t *testing.T) {
	t.Parallel()

	t.Run("rejects duplicate field names", func(t *testing.T) {
		t.Parallel()

		_, err := NewSchema(PrimitiveField("n"), PrimitiveField("n"))
		require.ErrorContains(t, err, `duplicate field "n"`)
	})

	t.Run("rejects empty field names", func(t *testing.T) {
		t.Parallel()

		_, err := NewSchema(PrimitiveField(""))
		require.ErrorContains(t, err, "field name must not be empty")
	})

	t.Run("rejects defaults outside the value model", func(t *testing.T) {
		t.Parallel()

		_, err := NewSchema(PrimitiveFieldDefault("n", make(chan int)))
		require.ErrorContains(t, err, `default for field "n"`)
	})
}
