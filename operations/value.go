package operations

import (
	"fmt"
	"reflect"
)

// The value model is a closed variant: a field value is either a primitive
// (nil, bool, string, numeric, or a sequence / string-keyed mapping of
// primitives), a nested *Operation, or a homogeneous collection of
// operations. Validation is eager at bind time so an operation can never
// hold a value its envelope cannot represent.

// validatePrimitive checks v against the primitive subset of the value
// variant. path identifies the value in error messages.
func validatePrimitive(path string, v any) error {
	if v == nil {
		return nil
	}
	if _, ok := v.(*Operation); ok {
		return newSerializationError(path, v)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return nil
	case reflect.Slice, reflect.Array:
		for i := range rv.Len() {
			elemPath := fmt.Sprintf("%s[%d]", path, i)
			if err := validatePrimitive(elemPath, rv.Index(i).Interface()); err != nil {
				return err
			}
		}

		return nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return newSerializationError(path, v)
		}
		iter := rv.MapRange()
		for iter.Next() {
			elemPath := fmt.Sprintf("%s[%q]", path, iter.Key().String())
			if err := validatePrimitive(elemPath, iter.Value().Interface()); err != nil {
				return err
			}
		}

		return nil
	default:
		return newSerializationError(path, v)
	}
}

// canonicalValue converts a validated field value into its JSON-compatible
// canonical form: nested operations are replaced by their envelope maps,
// collections are rebuilt as []any / map[string]any and primitives pass
// through unchanged. encoding/json emits map keys in sorted order, which
// makes the resulting encoding deterministic.
func canonicalValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if op, ok := v.(*Operation); ok {
		return op.envelopeMap()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range rv.Len() {
			cv, err := canonicalValue(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = cv
		}

		return out, nil
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			cv, err := canonicalValue(iter.Value().Interface())
			if err != nil {
				return nil, err
			}
			out[iter.Key().String()] = cv
		}

		return out, nil
	default:
		return v, nil
	}
}
