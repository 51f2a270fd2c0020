package operations

import (
	"encoding/json"
	"fmt"

	"github.com/goccy/go-yaml"
)

// Envelope is the JSON-compatible tagged serialization of an operation:
// the variant tag plus the canonical form of every field, with nested
// operations recursively enveloped the same way.
type Envelope struct {
	Tag    string         `json:"tag" yaml:"tag"`
	Fields map[string]any `json:"fields" yaml:"fields"`
}

// ToEnvelope serializes the operation to its tagged envelope.
func (o *Operation) ToEnvelope() (Envelope, error) {
	env, err := o.envelopeMap()
	if err != nil {
		return Envelope{}, err
	}

	return Envelope{Tag: o.variant.def.Tag, Fields: env["fields"].(map[string]any)}, nil
}

// FromEnvelope decodes an envelope against the default registry.
// The round-trip law holds: FromEnvelope(ToEnvelope(x)) is structurally
// equal to x.
func FromEnvelope(env Envelope) (*Operation, error) {
	return FromEnvelopeIn(DefaultRegistry, env)
}

// FromEnvelopeIn decodes an envelope, resolving the variant tag in reg.
// Unregistered tags fail with ErrUnknownOperation; fields not declared by
// the variant's schema fail with a BindError.
func FromEnvelopeIn(reg *Registry, env Envelope) (*Operation, error) {
	variant, err := reg.Lookup(env.Tag)
	if err != nil {
		return nil, err
	}

	kwargs := make(map[string]any, len(env.Fields))
	for name, raw := range env.Fields {
		i, ok := variant.schema.lookup(name)
		if !ok {
			return nil, newBindError(env.Tag, name, "unknown field")
		}

		decoded, err := decodeFieldValue(reg, env.Tag, variant.schema.fields[i], raw)
		if err != nil {
			return nil, err
		}
		kwargs[name] = decoded
	}

	return variant.Bind(nil, kwargs)
}

// decodeFieldValue interprets a raw envelope value according to the field's
// declared kind. The schema, not the shape of the data, decides whether a
// mapping is a nested envelope or a plain primitive mapping.
func decodeFieldValue(reg *Registry, tag string, fs FieldSpec, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}

	switch fs.Kind {
	case KindOperation:
		return decodeNested(reg, tag, fs, raw)
	case KindOperationSlice:
		items, ok := raw.([]any)
		if !ok {
			return nil, newBindError(tag, fs.Name, "expected a sequence of envelopes, got %T", raw)
		}
		ops := make([]*Operation, len(items))
		for i, item := range items {
			op, err := decodeNested(reg, tag, fs, item)
			if err != nil {
				return nil, err
			}
			ops[i] = op
		}

		return ops, nil
	case KindOperationMap:
		items, ok := raw.(map[string]any)
		if !ok {
			return nil, newBindError(tag, fs.Name, "expected a mapping of envelopes, got %T", raw)
		}
		ops := make(map[string]*Operation, len(items))
		for k, item := range items {
			op, err := decodeNested(reg, tag, fs, item)
			if err != nil {
				return nil, err
			}
			ops[k] = op
		}

		return ops, nil
	default:
		return raw, nil
	}
}

func decodeNested(reg *Registry, tag string, fs FieldSpec, raw any) (*Operation, error) {
	switch val := raw.(type) {
	case *Operation:
		return val, nil
	case Envelope:
		return FromEnvelopeIn(reg, val)
	case map[string]any:
		nestedTag, ok := val["tag"].(string)
		if !ok {
			return nil, newBindError(tag, fs.Name, "nested envelope is missing a tag")
		}
		fields, _ := val["fields"].(map[string]any)

		return FromEnvelopeIn(reg, Envelope{Tag: nestedTag, Fields: fields})
	default:
		return nil, newBindError(tag, fs.Name, "expected a nested envelope, got %T", raw)
	}
}

// EncodeJSON serializes the operation's envelope as JSON. The encoding is
// canonical: object keys are sorted, so it is byte-identical to Key().
func EncodeJSON(o *Operation) ([]byte, error) {
	env, err := o.envelopeMap()
	if err != nil {
		return nil, err
	}

	return json.Marshal(env)
}

// DecodeJSON decodes a JSON envelope against the default registry.
func DecodeJSON(data []byte) (*Operation, error) {
	return DecodeJSONIn(DefaultRegistry, data)
}

// DecodeJSONIn decodes a JSON envelope against reg.
func DecodeJSONIn(reg *Registry, data []byte) (*Operation, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	return FromEnvelopeIn(reg, env)
}

// EncodeYAML serializes the operation's envelope as YAML.
func EncodeYAML(o *Operation) ([]byte, error) {
	env, err := o.ToEnvelope()
	if err != nil {
		return nil, err
	}

	return yaml.Marshal(env)
}

// DecodeYAML decodes a YAML envelope against the default registry.
func DecodeYAML(data []byte) (*Operation, error) {
	return DecodeYAMLIn(DefaultRegistry, data)
}

// DecodeYAMLIn decodes a YAML envelope against reg.
func DecodeYAMLIn(reg *Registry, data []byte) (*Operation, error) {
	var env Envelope
	if err := yaml.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	return FromEnvelopeIn(reg, env)
}
