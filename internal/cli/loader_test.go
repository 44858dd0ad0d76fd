package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rewind/internal/rehydrate"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rewind.cue")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func requireLoadError(t *testing.T, err error, code string) *LoadError {
	t.Helper()
	require.Error(t, err)
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, code, loadErr.Code)
	return loadErr
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "rewind.db", cfg.StorePath)
	assert.Equal(t, ".rewind/blobs", cfg.BlobDir)
	assert.Equal(t, rehydrate.RecoverEmpty, cfg.Recovery)
	assert.Equal(t, DefaultRetentionMs, cfg.Prune.RetentionMs)
	assert.Equal(t, 1000, cfg.Prune.BatchSize)
	assert.Equal(t, 0, cfg.Prune.MaxBatches)
	assert.True(t, cfg.Prune.Archive)
}

func TestLoadConfigFullFile(t *testing.T) {
	path := writeConfig(t, `
store: path: "/var/lib/rewind/history.db"
blob: dir: "/var/lib/rewind/blobs"
snapshot: recovery: "strict"
prune: {
	retention_ms: 86400000
	batch_size:   250
	max_batches:  4
	archive:      false
}
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/rewind/history.db", cfg.StorePath)
	assert.Equal(t, "/var/lib/rewind/blobs", cfg.BlobDir)
	assert.Equal(t, rehydrate.RecoverStrict, cfg.Recovery)
	assert.Equal(t, int64(86400000), cfg.Prune.RetentionMs)
	assert.Equal(t, 250, cfg.Prune.BatchSize)
	assert.Equal(t, 4, cfg.Prune.MaxBatches)
	assert.False(t, cfg.Prune.Archive)
}

func TestLoadConfigPartialFile(t *testing.T) {
	path := writeConfig(t, `store: path: "custom.db"`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "custom.db", cfg.StorePath)
	assert.Equal(t, ".rewind/blobs", cfg.BlobDir)
	assert.Equal(t, rehydrate.RecoverEmpty, cfg.Recovery)
	assert.Equal(t, DefaultRetentionMs, cfg.Prune.RetentionMs)
}

func TestLoadConfigMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.cue")

	_, err := LoadConfig(path)
	loadErr := requireLoadError(t, err, ErrCodeConfigRead)
	assert.Equal(t, path, loadErr.Path)
}

func TestLoadConfigParseError(t *testing.T) {
	path := writeConfig(t, `store: {`)

	_, err := LoadConfig(path)
	requireLoadError(t, err, ErrCodeConfigParse)
}

func TestLoadConfigInvalidRecovery(t *testing.T) {
	path := writeConfig(t, `snapshot: recovery: "sometimes"`)

	_, err := LoadConfig(path)
	loadErr := requireLoadError(t, err, ErrCodeConfigInvalid)
	assert.Contains(t, loadErr.Message, "snapshot.recovery")
}

func TestLoadConfigInvalidRetention(t *testing.T) {
	path := writeConfig(t, `prune: retention_ms: -5`)

	_, err := LoadConfig(path)
	loadErr := requireLoadError(t, err, ErrCodeConfigInvalid)
	assert.Contains(t, loadErr.Message, "prune.retention_ms")
}

func TestLoadConfigZeroBatchSize(t *testing.T) {
	path := writeConfig(t, `prune: batch_size: 0`)

	_, err := LoadConfig(path)
	loadErr := requireLoadError(t, err, ErrCodeConfigInvalid)
	assert.Contains(t, loadErr.Message, "prune.batch_size")
}

func TestLoadConfigWrongFieldType(t *testing.T) {
	path := writeConfig(t, `store: path: 42`)

	_, err := LoadConfig(path)
	loadErr := requireLoadError(t, err, ErrCodeConfigInvalid)
	assert.Contains(t, loadErr.Message, "store.path")
}

func TestLoadErrorFormat(t *testing.T) {
	withPath := &LoadError{Code: ErrCodeConfigRead, Path: "/etc/rewind.cue", Message: "no such file"}
	assert.Equal(t, "E001: /etc/rewind.cue: no such file", withPath.Error())

	bare := &LoadError{Code: ErrCodeConfigInvalid, Message: "bad value"}
	assert.Equal(t, "E003: bad value", bare.Error())
}
