package tree

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// snapshotEnvelope is the snapshot wire shape: {"root": <node>}.
type snapshotEnvelope struct {
	Root *Dir `json:"root"`
}

// EncodeSnapshot serializes the tree as gzip-compressed JSON.
// Output is deterministic for a given tree: JSON map keys are sorted
// and the gzip header carries no timestamp.
func EncodeSnapshot(t *Tree) ([]byte, error) {
	payload, err := json.Marshal(snapshotEnvelope{Root: t.root})
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		return nil, fmt.Errorf("compress snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeSnapshot deserializes snapshot bytes, accepting both wire
// formats: gzip-compressed JSON first, then the legacy uncompressed
// variant. When neither applies it returns *SnapshotDecodeError with
// both causes; recovery policy (empty tree vs hard failure) belongs
// to the caller, not the codec.
func DecodeSnapshot(data []byte) (*Tree, error) {
	t, compressedErr := decodeCompressed(data)
	if compressedErr == nil {
		return t, nil
	}

	t, legacyErr := decodeLegacy(data)
	if legacyErr == nil {
		return t, nil
	}

	return nil, &SnapshotDecodeError{Compressed: compressedErr, Legacy: legacyErr}
}

func decodeCompressed(data []byte) (*Tree, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	payload, err := io.ReadAll(zr)
	if err != nil {
		return nil, err
	}
	return decodeEnvelope(payload)
}

func decodeLegacy(data []byte) (*Tree, error) {
	return decodeEnvelope(data)
}

func decodeEnvelope(payload []byte) (*Tree, error) {
	var env snapshotEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, err
	}
	if env.Root == nil {
		return nil, fmt.Errorf("snapshot has no root field")
	}
	return &Tree{root: env.Root}, nil
}
