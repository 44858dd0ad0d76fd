package testutil

import (
	"context"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rewind/internal/blob"
	"github.com/roach88/rewind/internal/store"
	"github.com/roach88/rewind/internal/tree"
)

func TestNewID_UniqueAndSortable(t *testing.T) {
	ids := make([]string, 50)
	for i := range ids {
		ids[i] = NewID()
	}

	seen := map[string]bool{}
	for _, id := range ids {
		assert.Len(t, id, 36)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}

	// v7 ids generated in sequence sort in generation order.
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	assert.Equal(t, ids, sorted)
}

func TestFixture_SeedsFullChain(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(filepath.Join(t.TempDir(), "fixture.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	f := NewFixture(s, blob.NewMemStore())

	sessionID, err := f.Session(ctx, "demo", 1000)
	require.NoError(t, err)
	turnID, err := f.Turn(ctx, sessionID, 1, 1000)
	require.NoError(t, err)
	callID, err := f.ToolCall(ctx, turnID, "write_file", `{"path": "/a.ts"}`, nil, 2000)
	require.NoError(t, err)
	_, err = f.Diff(ctx, callID, "/a.ts", "@@ -0,0 +1,1 @@\n+hello\n", 2000)
	require.NoError(t, err)

	tr := tree.New()
	require.NoError(t, tr.WriteFile("/a.ts", "hello\n", 2500))
	_, err = f.Snapshot(ctx, sessionID, tr, 2500)
	require.NoError(t, err)

	// Everything is visible through the normal read surface.
	sessions, err := s.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "demo", sessions[0].Label)

	ev, err := s.FetchToolCallEvent(ctx, sessionID, callID)
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, "write_file", ev.Name)
	assert.Nil(t, ev.Result)

	diffs, err := s.FetchDiffsForSession(ctx, sessionID, 0, 3000)
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	assert.Equal(t, "/a.ts", diffs[0].FilePath)

	snap, err := s.FetchLatestSnapshot(ctx, sessionID, 3000)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, int64(2500), snap.SnapshotAt)
}
