// Package validation coerces untrusted upstream JSON into typed field
// maps. Untyped maps never flow past the upstream client boundary:
// every payload is validated against an explicit schema here, with
// defaults for optional fields and a hard error for required ones.
package validation

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
)

// Kind is the expected type of a schema field.
type Kind int

// Field kinds
const (
	KindInt Kind = iota
	KindFloat
	KindString
	KindBool
	KindObject
)

// Field describes one expected field of an upstream payload.
type Field struct {
	// Name is the canonical key in the coerced output
	Name string

	// Kind is the type the raw value is coerced to
	Kind Kind

	// Required fields cause a coercion error when missing or
	// uncoercible; optional fields fall back to Default
	Required bool

	// Default is used when an optional field is missing or invalid
	Default any
}

// Schema is the ordered field list for one upstream payload shape.
type Schema []Field

// Coerce validates raw upstream data against the schema and returns a
// typed field map. The error is non-nil only for missing or
// uncoercible required fields; callers surface it as a malformed
// response.
func Coerce(raw map[string]any, schema Schema) (map[string]any, error) {
	out := make(map[string]any, len(schema))
	for _, f := range schema {
		v, ok := raw[f.Name]
		if ok {
			if coerced, valid := coerceValue(v, f.Kind); valid {
				out[f.Name] = coerced
				continue
			}
			logrus.WithFields(logrus.Fields{
				"field": f.Name,
				"value": v,
			}).Debug("Field failed type coercion")
		}
		if f.Required {
			return nil, fmt.Errorf("required field %q missing or invalid", f.Name)
		}
		out[f.Name] = f.Default
	}
	return out, nil
}

// coerceValue converts a decoded JSON value to the requested kind.
// Tendermint RPC encodes most numbers as strings, so numeric kinds
// accept strings as well.
func coerceValue(v any, kind Kind) (any, bool) {
	switch kind {
	case KindInt:
		n, ok := AsInt64(v)
		return n, ok
	case KindFloat:
		f, ok := AsFloat(v)
		return f, ok
	case KindString:
		s, ok := v.(string)
		return s, ok
	case KindBool:
		b, ok := v.(bool)
		return b, ok
	case KindObject:
		m, ok := v.(map[string]any)
		return m, ok
	default:
		return nil, false
	}
}

// AsInt64 converts a decoded JSON value to an int64.
func AsInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// AsFloat converts a decoded JSON value to a float64.
func AsFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// AsString converts a decoded JSON value to a string.
func AsString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// Dig walks nested JSON objects by key path. It returns false when any
// intermediate value is missing or not an object.
func Dig(raw map[string]any, path ...string) (any, bool) {
	var cur any = raw
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
