package store

import (
	"fmt"

	"github.com/roach88/rewind/internal/val"
)

// canonicalJSON re-encodes raw JSON text as RFC 8785 canonical JSON
// TEXT for storage. Canonical storage means byte comparison of stored
// columns equals structural comparison of the values.
func canonicalJSON(raw string) (string, error) {
	v, err := val.Unmarshal([]byte(raw))
	if err != nil {
		return "", fmt.Errorf("parse json: %w", err)
	}
	data, err := val.MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("canonicalize json: %w", err)
	}
	return string(data), nil
}

// canonicalArguments canonicalizes tool call arguments, additionally
// requiring an object at the top level. Tool arguments are always a
// named-parameter object.
func canonicalArguments(raw string) (string, error) {
	v, err := val.Unmarshal([]byte(raw))
	if err != nil {
		return "", fmt.Errorf("parse arguments: %w", err)
	}
	if _, ok := v.(val.Object); !ok {
		return "", fmt.Errorf("arguments must be a JSON object, got %T", v)
	}
	data, err := val.MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("canonicalize arguments: %w", err)
	}
	return string(data), nil
}
