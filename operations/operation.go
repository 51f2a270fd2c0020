package operations

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Definition is the metadata for a variant: its stable tag, an optional
// semver version and a human-readable description. The tag is the identity
// used for canonical keys and envelope decoding.
type Definition struct {
	Tag         string          `json:"tag"`
	Version     *semver.Version `json:"version,omitempty"`
	Description string          `json:"description,omitempty"`
}

// Resolver computes the result of an operation-valued field. Apply functions
// never assume a nested operation is pre-computed; they ask the resolver.
// Runner implements Resolver.
type Resolver interface {
	// Execute computes value. Non-operations are returned unchanged.
	Execute(ctx context.Context, value any) (any, error)
}

// ApplyFunc is the variant-specific computation. It receives the bound
// operation instance and a resolver for its nested operation fields.
type ApplyFunc func(ctx context.Context, resolver Resolver, op *Operation) (any, error)

// Variant is a concrete operation kind: a definition, an ordered field
// schema and the apply logic. Variants are created once at definition time;
// instances are built with New or Bind.
type Variant struct {
	def    Definition
	schema Schema
	apply  ApplyFunc
}

// NewVariant creates a variant and registers it in the default registry.
// Version may be nil when the variant is not versioned.
func NewVariant(tag string, version *semver.Version, description string, schema Schema, apply ApplyFunc) (*Variant, error) {
	return NewVariantIn(DefaultRegistry, tag, version, description, schema, apply)
}

// NewVariantIn creates a variant and registers it in reg.
func NewVariantIn(reg *Registry, tag string, version *semver.Version, description string, schema Schema, apply ApplyFunc) (*Variant, error) {
	if tag == "" {
		return nil, fmt.Errorf("variant tag must not be empty")
	}
	if apply == nil {
		return nil, fmt.Errorf("variant %s: apply function must not be nil", tag)
	}

	v := &Variant{
		def: Definition{
			Tag:         tag,
			Version:     version,
			Description: description,
		},
		schema: schema,
		apply:  apply,
	}
	if err := reg.Register(v); err != nil {
		return nil, err
	}

	return v, nil
}

// MustNewVariant is like NewVariant but panics on error. Intended for
// package-level variant definitions.
func MustNewVariant(tag string, version *semver.Version, description string, schema Schema, apply ApplyFunc) *Variant {
	v, err := NewVariant(tag, version, description, schema, apply)
	if err != nil {
		panic(err)
	}

	return v
}

// Tag returns the variant tag.
func (v *Variant) Tag() string {
	return v.def.Tag
}

// Version returns the variant version in string form, or "" when unversioned.
func (v *Variant) Version() string {
	if v.def.Version == nil {
		return ""
	}

	return v.def.Version.String()
}

// Description returns the variant description.
func (v *Variant) Description() string {
	return v.def.Description
}

// Def returns the variant definition.
func (v *Variant) Def() Definition {
	return v.def
}

// Schema returns the variant's field schema.
func (v *Variant) Schema() Schema {
	return v.schema
}

// New binds positional arguments to the schema in declaration order and
// returns the resulting immutable operation.
func (v *Variant) New(args ...any) (*Operation, error) {
	return v.Bind(args, nil)
}

// MustNew is like New but panics on error.
func (v *Variant) MustNew(args ...any) *Operation {
	op, err := v.New(args...)
	if err != nil {
		panic(err)
	}

	return op
}

// Bind binds positional arguments in declaration order and keyword arguments
// by name, applies declared defaults for unset fields and validates every
// value against the field's kind. The canonical key is computed here, so a
// returned operation is always hashable and serializable.
func (v *Variant) Bind(args []any, kwargs map[string]any) (*Operation, error) {
	fields := v.schema.fields
	if len(args) > len(fields) {
		return nil, newBindError(v.def.Tag, "",
			"takes at most %d positional arguments, got %d", len(fields), len(args))
	}

	values := make([]any, len(fields))
	bound := make([]bool, len(fields))
	for i, arg := range args {
		values[i] = arg
		bound[i] = true
	}
	for name, arg := range kwargs {
		i, ok := v.schema.lookup(name)
		if !ok {
			return nil, newBindError(v.def.Tag, name, "unknown field")
		}
		if bound[i] {
			return nil, newBindError(v.def.Tag, name, "bound both positionally and by name")
		}
		values[i] = arg
		bound[i] = true
	}
	for i, fs := range fields {
		if bound[i] {
			continue
		}
		if !fs.HasDefault {
			return nil, newBindError(v.def.Tag, fs.Name, "missing required field")
		}
		values[i] = fs.Default
	}

	for i, fs := range fields {
		if err := validateFieldValue(fs, values[i], v.def.Tag); err != nil {
			return nil, err
		}
	}

	op := &Operation{variant: v, values: values}
	env, err := op.envelopeMap()
	if err != nil {
		return nil, err
	}
	keyBytes, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("operation %s: encode canonical key: %w", v.def.Tag, err)
	}
	op.key = string(keyBytes)

	return op, nil
}

// Operation is an immutable instance of a variant: the variant identity plus
// field values in schema order. Equality and hashing are structural.
type Operation struct {
	variant *Variant
	values  []any
	key     string
}

// Variant returns the operation's variant.
func (o *Operation) Variant() *Variant {
	return o.variant
}

// Tag returns the variant tag.
func (o *Operation) Tag() string {
	return o.variant.def.Tag
}

// Key returns the canonical key: the compact JSON encoding of the tagged
// envelope with sorted object keys. It is deterministic across processes
// and across keyword binding order, and identical for structurally equal
// operations.
func (o *Operation) Key() string {
	return o.key
}

// Digest returns the hex sha256 of the canonical key, suitable as a compact
// content address.
func (o *Operation) Digest() string {
	sum := sha256.Sum256([]byte(o.key))
	return hex.EncodeToString(sum[:])
}

// Equal reports structural equality: same variant tag and recursively equal
// field values.
func (o *Operation) Equal(other *Operation) bool {
	if o == nil || other == nil {
		return o == other
	}

	return o.key == other.key
}

// Get returns the bound value of the named field.
func (o *Operation) Get(name string) (any, bool) {
	i, ok := o.variant.schema.lookup(name)
	if !ok {
		return nil, false
	}

	return o.values[i], true
}

// Resolve returns the named field's value with any nested operations
// computed through the resolver. Primitive fields are returned as bound;
// operation collections are resolved element-wise.
func (o *Operation) Resolve(ctx context.Context, r Resolver, name string) (any, error) {
	i, ok := o.variant.schema.lookup(name)
	if !ok {
		return nil, newBindError(o.variant.def.Tag, name, "unknown field")
	}
	fs := o.variant.schema.fields[i]
	v := o.values[i]
	if v == nil {
		return nil, nil
	}

	switch fs.Kind {
	case KindOperation:
		return r.Execute(ctx, v)
	case KindOperationSlice:
		ops := v.([]*Operation)
		out := make([]any, len(ops))
		for j, op := range ops {
			res, err := r.Execute(ctx, op)
			if err != nil {
				return nil, err
			}
			out[j] = res
		}

		return out, nil
	case KindOperationMap:
		ops := v.(map[string]*Operation)
		out := make(map[string]any, len(ops))
		for k, op := range ops {
			res, err := r.Execute(ctx, op)
			if err != nil {
				return nil, err
			}
			out[k] = res
		}

		return out, nil
	default:
		return v, nil
	}
}

// envelopeMap builds the canonical JSON-compatible representation used both
// for the canonical key and for the envelope codec.
func (o *Operation) envelopeMap() (map[string]any, error) {
	fields := make(map[string]any, len(o.values))
	for i, fs := range o.variant.schema.fields {
		cv, err := canonicalValue(o.values[i])
		if err != nil {
			return nil, err
		}
		fields[fs.Name] = cv
	}

	return map[string]any{"tag": o.variant.def.Tag, "fields": fields}, nil
}
