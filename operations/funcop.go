package operations

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/Masterminds/semver/v3"
)

var (
	ctxType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errType = reflect.TypeOf((*error)(nil)).Elem()
)

type funcConfig struct {
	registry    *Registry
	params      []string
	opParams    map[string]struct{}
	defaults    map[string]any
	version     *semver.Version
	description string
}

// FuncOption configures FromFunc.
type FuncOption func(*funcConfig)

// WithParams names the function's parameters in order. Go reflection does
// not expose parameter names, so without this option parameters are named
// arg0..argN. A leading context.Context parameter is not named; it is fed
// from the execution context.
func WithParams(names ...string) FuncOption {
	return func(c *funcConfig) {
		c.params = names
	}
}

// WithOperationParams flags the named parameters as nested-operation fields.
// Callers pass an *Operation for these arguments; the synthesized apply
// resolves it and the function receives the resolved value, so the
// parameter's Go type should be the result type (or any).
func WithOperationParams(names ...string) FuncOption {
	return func(c *funcConfig) {
		for _, name := range names {
			c.opParams[name] = struct{}{}
		}
	}
}

// WithDefault declares a default value for the named parameter, applied when
// the argument is left unset.
func WithDefault(name string, value any) FuncOption {
	return func(c *funcConfig) {
		c.defaults[name] = value
	}
}

// WithVersion sets the synthesized variant's version.
func WithVersion(version *semver.Version) FuncOption {
	return func(c *funcConfig) {
		c.version = version
	}
}

// WithDescription sets the synthesized variant's description.
func WithDescription(description string) FuncOption {
	return func(c *funcConfig) {
		c.description = description
	}
}

// WithFuncRegistry registers the synthesized variant in reg instead of the
// default registry.
func WithFuncRegistry(reg *Registry) FuncOption {
	return func(c *funcConfig) {
		c.registry = reg
	}
}

// FromFunc reflects fn's signature once and synthesizes a variant whose
// field schema mirrors the parameters. fn must be a non-variadic function
// returning (T) or (T, error); an optional leading context.Context parameter
// receives the execution context.
//
// Method values (obj.Method) are plain functions and are supported; the
// bound receiver is captured by the method value and does not contribute to
// the canonical key, so receiver state that affects the result must be
// passed as an explicit field.
//
// Reflection happens here, at definition time, never per invocation.
func FromFunc(tag string, fn any, opts ...FuncOption) (*Variant, error) {
	cfg := funcConfig{
		registry: DefaultRegistry,
		opParams: make(map[string]struct{}),
		defaults: make(map[string]any),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func || fv.IsNil() {
		return nil, fmt.Errorf("from func %s: fn must be a non-nil function, got %T", tag, fn)
	}
	ft := fv.Type()
	if ft.IsVariadic() {
		return nil, fmt.Errorf("from func %s: variadic functions are not supported", tag)
	}

	switch ft.NumOut() {
	case 1:
		if ft.Out(0) == errType {
			return nil, fmt.Errorf("from func %s: fn must return a value, not only an error", tag)
		}
	case 2:
		if !ft.Out(1).Implements(errType) {
			return nil, fmt.Errorf("from func %s: second return value must be an error", tag)
		}
	default:
		return nil, fmt.Errorf("from func %s: fn must return (T) or (T, error)", tag)
	}

	start := 0
	if ft.NumIn() > 0 && ft.In(0) == ctxType {
		start = 1
	}
	numFields := ft.NumIn() - start

	names := cfg.params
	if names == nil {
		names = make([]string, numFields)
		for i := range numFields {
			names[i] = fmt.Sprintf("arg%d", i)
		}
	}
	if len(names) != numFields {
		return nil, fmt.Errorf("from func %s: got %d parameter names for %d parameters",
			tag, len(names), numFields)
	}

	known := make(map[string]struct{}, numFields)
	fields := make([]FieldSpec, numFields)
	for i, name := range names {
		known[name] = struct{}{}
		fs := PrimitiveField(name)
		if _, ok := cfg.opParams[name]; ok {
			fs = OperationField(name)
		}
		if def, ok := cfg.defaults[name]; ok {
			fs.Default, fs.HasDefault = def, true
		}
		fields[i] = fs
	}
	for name := range cfg.opParams {
		if _, ok := known[name]; !ok {
			return nil, fmt.Errorf("from func %s: operation parameter %q does not exist", tag, name)
		}
	}
	for name := range cfg.defaults {
		if _, ok := known[name]; !ok {
			return nil, fmt.Errorf("from func %s: default for unknown parameter %q", tag, name)
		}
	}

	schema, err := NewSchema(fields...)
	if err != nil {
		return nil, fmt.Errorf("from func %s: %w", tag, err)
	}

	apply := func(ctx context.Context, res Resolver, op *Operation) (any, error) {
		if ctx == nil {
			ctx = context.Background()
		}

		in := make([]reflect.Value, 0, ft.NumIn())
		if start == 1 {
			in = append(in, reflect.ValueOf(ctx))
		}
		for i, name := range names {
			resolved, err := op.Resolve(ctx, res, name)
			if err != nil {
				return nil, err
			}
			arg, err := conformValue(resolved, ft.In(start+i))
			if err != nil {
				return nil, fmt.Errorf("operation %s: argument %q: %w", tag, name, err)
			}
			in = append(in, arg)
		}

		out := fv.Call(in)
		if len(out) == 2 && !out[1].IsNil() {
			return nil, out[1].Interface().(error)
		}

		return out[0].Interface(), nil
	}

	return NewVariantIn(cfg.registry, tag, cfg.version, cfg.description, schema, apply)
}

// MustFromFunc is like FromFunc but panics on error. Intended for
// package-level variant definitions.
func MustFromFunc(tag string, fn any, opts ...FuncOption) *Variant {
	v, err := FromFunc(tag, fn, opts...)
	if err != nil {
		panic(err)
	}

	return v
}

// conformValue adapts a resolved value to the parameter type. Direct
// assignment and numeric conversion cover the common cases; everything else
// goes through a JSON round-trip so envelope-decoded values (float64 for
// numbers, map[string]any for structs) regain their declared types.
func conformValue(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}

	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	if isNumericKind(rv.Kind()) && isNumericKind(t.Kind()) {
		return rv.Convert(t), nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("cannot convert %T to %s: %w", v, t, err)
	}
	ptr := reflect.New(t)
	if err := json.Unmarshal(data, ptr.Interface()); err != nil {
		return reflect.Value{}, fmt.Errorf("cannot convert %T to %s: %w", v, t, err)
	}

	return ptr.Elem(), nil
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
