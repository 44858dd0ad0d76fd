package blob

import (
	"context"
	"sync"
)

// MemStore is an in-memory Store for tests and ephemeral runs.
type MemStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory blob store.
func NewMemStore() *MemStore {
	return &MemStore{blobs: map[string][]byte{}}
}

// Read implements Store.
func (s *MemStore) Read(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := parseRef("read", ref); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[ref]
	if !ok {
		return nil, &RefError{Op: "read", Ref: ref, Code: ErrCodeNotFound}
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Save implements Store.
func (s *MemStore) Save(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ref := ComputeRef(data)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[ref]; !ok {
		stored := make([]byte, len(data))
		copy(stored, data)
		s.blobs[ref] = stored
	}
	return ref, nil
}

// Len reports how many distinct blobs are stored.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
