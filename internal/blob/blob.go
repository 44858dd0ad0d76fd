package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// refDomain separates blob hashes from every other hash in the
// system. Changing it invalidates all stored refs.
const refDomain = "rewind/blob/v1"

// refPrefix names the digest algorithm in the ref itself.
const refPrefix = "sha256:"

// Store is the blob persistence contract. Save is idempotent: saving
// the same bytes twice returns the same ref.
type Store interface {
	// Read returns the payload for ref. A missing blob is a *RefError
	// with code NOT_FOUND.
	Read(ctx context.Context, ref string) ([]byte, error)

	// Save persists data and returns its content-addressed ref.
	Save(ctx context.Context, data []byte) (string, error)
}

// ComputeRef derives the content-addressed ref for data:
// sha256 over refDomain || 0x00 || data, hex encoded.
func ComputeRef(data []byte) string {
	h := sha256.New()
	h.Write([]byte(refDomain))
	h.Write([]byte{0})
	h.Write(data)
	return refPrefix + hex.EncodeToString(h.Sum(nil))
}

// parseRef validates a ref and returns its hex digest.
func parseRef(op, ref string) (string, error) {
	digest, ok := strings.CutPrefix(ref, refPrefix)
	if !ok || len(digest) != 64 || !isLowerHex(digest) {
		return "", &RefError{Op: op, Ref: ref, Code: ErrCodeBadRef}
	}
	return digest, nil
}

func isLowerHex(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

// RefErrorCode classifies blob access failures.
type RefErrorCode string

const (
	// ErrCodeNotFound indicates no blob exists for the ref.
	ErrCodeNotFound RefErrorCode = "NOT_FOUND"

	// ErrCodeBadRef indicates the ref is not a valid sha256 ref.
	ErrCodeBadRef RefErrorCode = "BAD_REF"

	// ErrCodeIO indicates the underlying storage failed.
	ErrCodeIO RefErrorCode = "IO_FAILURE"
)

// RefError reports a failed blob operation.
type RefError struct {
	Op   string
	Ref  string
	Code RefErrorCode
	Err  error
}

func (e *RefError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("blob %s failed [%s] %s: %v", e.Op, e.Code, e.Ref, e.Err)
	}
	return fmt.Sprintf("blob %s failed [%s] %s", e.Op, e.Code, e.Ref)
}

func (e *RefError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a missing-blob error.
func IsNotFound(err error) bool {
	var re *RefError
	if errors.As(err, &re) {
		return re.Code == ErrCodeNotFound
	}
	return false
}
