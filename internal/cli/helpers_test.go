package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/rewind/internal/blob"
	"github.com/roach88/rewind/internal/store"
	"github.com/roach88/rewind/internal/testutil"
)

// testEnv provides database and blob paths for command tests.
type testEnv struct {
	dbPath  string
	blobDir string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	return testEnv{
		dbPath:  filepath.Join(dir, "rewind.db"),
		blobDir: filepath.Join(dir, "blobs"),
	}
}

// rootOptions builds RootOptions pointing at the test stores, the way
// parsed global flags would.
func (e testEnv) rootOptions(format string) *RootOptions {
	return &RootOptions{Format: format, Database: e.dbPath, BlobDir: e.blobDir}
}

// seed opens the test stores, hands a fixture to fn, and closes the
// database again so the command under test reopens it cleanly.
func (e testEnv) seed(t *testing.T, fn func(ctx context.Context, fix *testutil.Fixture)) {
	t.Helper()

	st, err := store.Open(e.dbPath)
	require.NoError(t, err)
	defer func() { require.NoError(t, st.Close()) }()

	blobs, err := blob.NewFSStore(e.blobDir)
	require.NoError(t, err)

	fn(context.Background(), testutil.NewFixture(st, blobs))
}

// roundTrip re-decodes a generic JSON payload into a typed result.
func roundTrip(t *testing.T, data interface{}, out interface{}) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func strptr(s string) *string { return &s }

// replacePatch builds a single-hunk unified diff replacing old with
// new for a one-line file without a trailing newline.
func replacePatch(old, new string) string {
	return "@@ -1 +1 @@\n-" + old + "\n\\ No newline at end of file\n+" + new + "\n\\ No newline at end of file\n"
}
