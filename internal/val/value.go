package val

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode/utf16"
)

// Value is a sealed interface over the JSON value space.
// Only Null, Bool, Int, Float, String, Array, and Object implement it.
// Integers and floats are distinct types so that integer identity
// survives round trips, but Equal treats 1 and 1.0 as the same number
// (JSON has one number line).
type Value interface {
	value() // Sealed - only these types implement it
}

// Null represents a JSON null.
// An explicit type keeps nil out of the sealed value space.
type Null struct{}

func (Null) value() {}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// Bool represents a JSON boolean.
type Bool bool

func (Bool) value() {}

// Int represents a JSON number with no fractional part, as int64.
type Int int64

func (Int) value() {}

// Float represents a JSON number with a fractional part or exponent.
type Float float64

func (Float) value() {}

// String represents a JSON string.
type String string

func (String) value() {}

// Array represents a JSON array.
type Array []Value

func (Array) value() {}

// Object represents a JSON object. Iteration order is unspecified;
// use SortedKeys for deterministic traversal.
type Object map[string]Value

func (Object) value() {}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings compares UTF-8 bytes, which produces a DIFFERENT
// order for strings outside the ASCII range.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings by UTF-16 code units as required
// by RFC 8785. Must use unicode/utf16.Encode for correct surrogate
// handling.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := len(a16)
	if len(b16) < minLen {
		minLen = len(b16)
	}

	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	if len(a16) < len(b16) {
		return -1
	}
	if len(a16) > len(b16) {
		return 1
	}
	return 0
}

// Unmarshal decodes JSON text into a Value. Numbers are decoded with
// json.Number so integers beyond 2^53 keep full precision; a number
// with a fraction or exponent becomes Float, anything else Int.
func Unmarshal(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after JSON value")
	}

	return convert(raw)
}

// convert recursively converts a decoded Go value to a Value.
func convert(v any) (Value, error) {
	switch raw := v.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(raw), nil
	case string:
		return String(raw), nil
	case json.Number:
		s := string(raw)
		if strings.ContainsAny(s, ".eE") {
			f, err := raw.Float64()
			if err != nil {
				return nil, fmt.Errorf("number out of float64 range: %s", s)
			}
			return Float(f), nil
		}
		n, err := raw.Int64()
		if err != nil {
			// Integer literal wider than int64; carry it as a float
			// rather than failing the whole document.
			f, ferr := raw.Float64()
			if ferr != nil {
				return nil, fmt.Errorf("number out of range: %s", s)
			}
			return Float(f), nil
		}
		return Int(n), nil
	case []any:
		arr := make(Array, len(raw))
		for i, elem := range raw {
			cv, err := convert(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = cv
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(raw))
		for k, elem := range raw {
			cv, err := convert(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = cv
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// UnmarshalJSON implements json.Unmarshaler for Object.
func (obj *Object) UnmarshalJSON(data []byte) error {
	v, err := Unmarshal(data)
	if err != nil {
		return err
	}
	o, ok := v.(Object)
	if !ok {
		return fmt.Errorf("expected JSON object, got %T", v)
	}
	*obj = o
	return nil
}

// UnmarshalJSON implements json.Unmarshaler for Array.
func (arr *Array) UnmarshalJSON(data []byte) error {
	v, err := Unmarshal(data)
	if err != nil {
		return err
	}
	a, ok := v.(Array)
	if !ok {
		return fmt.Errorf("expected JSON array, got %T", v)
	}
	*arr = a
	return nil
}

// MarshalJSON implements json.Marshaler for Object with RFC 8785 key
// ordering. This is NOT the canonical form (it may HTML-escape and
// does not NFC-normalize); use MarshalCanonical for stable bytes.
func (obj Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	keys := obj.SortedKeys()
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := Marshal(obj[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Marshal renders a Value as JSON bytes with sorted object keys.
// NOT canonical; use MarshalCanonical for hashing and goldens.
func Marshal(v Value) ([]byte, error) {
	switch raw := v.(type) {
	case Null:
		return []byte("null"), nil
	case Bool:
		return json.Marshal(bool(raw))
	case Int:
		return json.Marshal(int64(raw))
	case Float:
		return json.Marshal(float64(raw))
	case String:
		return json.Marshal(string(raw))
	case Array:
		return marshalArray(raw)
	case Object:
		return raw.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}

func marshalArray(arr Array) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')

	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemBytes, err := Marshal(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(elemBytes)
	}

	buf.WriteByte(']')
	return buf.Bytes(), nil
}
