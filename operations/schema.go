package operations

import (
	"errors"
	"fmt"
)

// FieldKind distinguishes primitive fields from fields that hold nested
// operations or homogeneous collections of them.
type FieldKind int

const (
	KindPrimitive FieldKind = iota
	KindOperation
	KindOperationSlice
	KindOperationMap
)

func (k FieldKind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindOperation:
		return "operation"
	case KindOperationSlice:
		return "operation slice"
	case KindOperationMap:
		return "operation map"
	default:
		return fmt.Sprintf("FieldKind(%d)", int(k))
	}
}

// FieldSpec declares a single named, typed parameter of a variant. Fields
// without a default are required at bind time.
type FieldSpec struct {
	Name       string
	Kind       FieldKind
	Default    any
	HasDefault bool
}

// PrimitiveField declares a required primitive field.
func PrimitiveField(name string) FieldSpec {
	return FieldSpec{Name: name, Kind: KindPrimitive}
}

// PrimitiveFieldDefault declares a primitive field with a default value,
// applied when the field is left unset.
func PrimitiveFieldDefault(name string, def any) FieldSpec {
	return FieldSpec{Name: name, Kind: KindPrimitive, Default: def, HasDefault: true}
}

// OperationField declares a required field holding a nested operation.
func OperationField(name string) FieldSpec {
	return FieldSpec{Name: name, Kind: KindOperation}
}

// OperationSliceField declares a field holding an ordered collection of
// nested operations.
func OperationSliceField(name string) FieldSpec {
	return FieldSpec{Name: name, Kind: KindOperationSlice}
}

// OperationMapField declares a field holding a string-keyed collection of
// nested operations.
func OperationMapField(name string) FieldSpec {
	return FieldSpec{Name: name, Kind: KindOperationMap}
}

// Schema is the ordered, immutable field list owned by one variant. It is
// built once at variant definition time and shared by every instance.
type Schema struct {
	fields []FieldSpec
	index  map[string]int
}

// NewSchema builds a schema from the given field specs, preserving
// declaration order. Field names must be unique and non-empty, and declared
// defaults must themselves satisfy the field's kind.
func NewSchema(fields ...FieldSpec) (Schema, error) {
	index := make(map[string]int, len(fields))
	for i, fs := range fields {
		if fs.Name == "" {
			return Schema{}, errors.New("schema: field name must not be empty")
		}
		if _, ok := index[fs.Name]; ok {
			return Schema{}, fmt.Errorf("schema: duplicate field %q", fs.Name)
		}
		if fs.HasDefault {
			if err := validateFieldValue(fs, fs.Default, "<schema>"); err != nil {
				return Schema{}, fmt.Errorf("schema: default for field %q: %w", fs.Name, err)
			}
		}
		index[fs.Name] = i
	}

	return Schema{fields: append([]FieldSpec(nil), fields...), index: index}, nil
}

// MustNewSchema is like NewSchema but panics on error. Intended for
// package-level variant definitions.
func MustNewSchema(fields ...FieldSpec) Schema {
	s, err := NewSchema(fields...)
	if err != nil {
		panic(err)
	}

	return s
}

// Len returns the number of declared fields.
func (s Schema) Len() int {
	return len(s.fields)
}

// Fields returns a copy of the declared field specs in declaration order.
func (s Schema) Fields() []FieldSpec {
	return append([]FieldSpec(nil), s.fields...)
}

func (s Schema) lookup(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// validateFieldValue checks a bound value against the field's kind. Kind
// mismatches on operation fields are reported by the caller as BindErrors;
// values outside the closed variant surface as SerializationErrors.
func validateFieldValue(fs FieldSpec, v any, tag string) error {
	path := "fields." + fs.Name

	switch fs.Kind {
	case KindPrimitive:
		return validatePrimitive(path, v)
	case KindOperation:
		if v == nil {
			return nil
		}
		if _, ok := v.(*Operation); !ok {
			return newBindError(tag, fs.Name, "expected a nested operation, got %T", v)
		}

		return nil
	case KindOperationSlice:
		if v == nil {
			return nil
		}
		ops, ok := v.([]*Operation)
		if !ok {
			return newBindError(tag, fs.Name, "expected []*Operation, got %T", v)
		}
		for i, op := range ops {
			if op == nil {
				return newBindError(tag, fs.Name, "nil operation at index %d", i)
			}
		}

		return nil
	case KindOperationMap:
		if v == nil {
			return nil
		}
		ops, ok := v.(map[string]*Operation)
		if !ok {
			return newBindError(tag, fs.Name, "expected map[string]*Operation, got %T", v)
		}
		for k, op := range ops {
			if op == nil {
				return newBindError(tag, fs.Name, "nil operation at key %q", k)
			}
		}

		return nil
	default:
		return fmt.Errorf("schema: unknown field kind %v", fs.Kind)
	}
}
