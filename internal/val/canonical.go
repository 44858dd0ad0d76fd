package val

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces canonical JSON bytes for a Value. This is
// the only serialization used for content addressing, golden files,
// and archive lines.
//
// Differences from standard json.Marshal:
//  1. Object keys sorted by UTF-16 code units (RFC 8785), not UTF-8 bytes
//  2. No HTML escaping (< > & are NOT escaped)
//  3. U+2028/U+2029 are NOT escaped
//  4. Strings are NFC normalized
//  5. Floats render in Go's shortest round-trip form ("2" for 2.0,
//     "0.1" for 0.1) — stable across runs, which is what callers need;
//     exact ECMAScript float notation is not claimed.
func MarshalCanonical(v Value) ([]byte, error) {
	switch raw := v.(type) {
	case nil:
		return nil, fmt.Errorf("nil Value is not marshalable; use Null{}")
	case Null:
		return []byte("null"), nil
	case Bool:
		if raw {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case Int:
		return []byte(strconv.FormatInt(int64(raw), 10)), nil
	case Float:
		return []byte(strconv.FormatFloat(float64(raw), 'g', -1, 64)), nil
	case String:
		return marshalCanonicalString(string(raw))
	case Array:
		return marshalCanonicalArray(raw)
	case Object:
		return marshalCanonicalObject(raw)
	default:
		return nil, fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

// marshalCanonicalString produces a canonical JSON string: NFC
// normalized, no HTML escaping, U+2028/U+2029 left literal. Only
// control characters, backslash, and quote are escaped.
func marshalCanonicalString(s string) ([]byte, error) {
	// NFC normalize at the serialization boundary
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}

	// json.Encoder adds a trailing newline, remove it
	result := buf.Bytes()
	if len(result) > 0 && result[len(result)-1] == '\n' {
		result = result[:len(result)-1]
	}

	// Go's encoder escapes U+2028/U+2029 for JavaScript embedding;
	// canonical JSON wants them literal.
	return unescapeLineSeparators(result), nil
}

// unescapeLineSeparators rewrites   and   escapes back to
// literal characters. It walks escape-aware so a literal backslash
// followed by the text "u2028" (encoded as \\u2028) is untouched.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}

	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); {
		c := data[i]
		if c != '\\' || i+1 >= len(data) {
			out = append(out, c)
			i++
			continue
		}
		if i+6 <= len(data) && data[i+1] == 'u' && data[i+2] == '2' && data[i+3] == '0' && data[i+4] == '2' {
			switch data[i+5] {
			case '8':
				out = append(out, " "...)
				i += 6
				continue
			case '9':
				out = append(out, " "...)
				i += 6
				continue
			}
		}
		// Some other escape sequence: copy the backslash and the
		// escaped byte together so \\ never splits across iterations.
		out = append(out, c, data[i+1])
		i += 2
	}
	return out
}

func marshalCanonicalArray(arr Array) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')

	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemBytes, err := MarshalCanonical(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(elemBytes)
	}

	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func marshalCanonicalObject(obj Object) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	keys := obj.SortedKeys()
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}

		keyBytes, err := marshalCanonicalString(k)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := MarshalCanonical(obj[k])
		if err != nil {
			return nil, fmt.Errorf("value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
