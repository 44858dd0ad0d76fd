package blob

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// FSStore keeps blobs as files under a root directory, sharded by the
// first two digest characters to keep directories small.
type FSStore struct {
	dir string
}

var _ Store = (*FSStore)(nil)

// NewFSStore opens a blob directory, creating it if needed.
func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &RefError{Op: "open", Code: ErrCodeIO, Err: err}
	}
	return &FSStore{dir: dir}, nil
}

func (s *FSStore) path(digest string) string {
	return filepath.Join(s.dir, digest[:2], digest)
}

// Read implements Store.
func (s *FSStore) Read(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	digest, err := parseRef("read", ref)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(digest))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &RefError{Op: "read", Ref: ref, Code: ErrCodeNotFound}
	}
	if err != nil {
		return nil, &RefError{Op: "read", Ref: ref, Code: ErrCodeIO, Err: err}
	}
	return data, nil
}

// Save implements Store. Writes go through a uniquely named temp file
// and a rename, so concurrent saves of the same payload are safe and
// a crash never leaves a half-written blob at the final path.
func (s *FSStore) Save(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ref := ComputeRef(data)
	digest := ref[len(refPrefix):]
	final := s.path(digest)

	// Content-addressed: an existing file already holds these bytes.
	if _, err := os.Stat(final); err == nil {
		return ref, nil
	}

	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return "", &RefError{Op: "save", Ref: ref, Code: ErrCodeIO, Err: err}
	}
	tmp := final + "." + uuid.NewString() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", &RefError{Op: "save", Ref: ref, Code: ErrCodeIO, Err: err}
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return "", &RefError{Op: "save", Ref: ref, Code: ErrCodeIO, Err: err}
	}
	return ref, nil
}
