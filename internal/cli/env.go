package cli

import (
	"log/slog"

	"github.com/roach88/rewind/internal/blob"
	"github.com/roach88/rewind/internal/store"
)

// environment carries the opened store and blob directory for one
// command invocation. Resolution order for paths is flag, then config
// file, then built-in default.
type environment struct {
	cfg   Config
	store *store.Store
	blobs *blob.FSStore
}

func openEnvironment(opts *RootOptions) (*environment, error) {
	cfg, err := LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.StorePath = opts.Database
	}
	if opts.BlobDir != "" {
		cfg.BlobDir = opts.BlobDir
	}

	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	blobs, err := blob.NewFSStore(cfg.BlobDir)
	if err != nil {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("failed to close store", "error", closeErr)
		}
		return nil, WrapExitError(ExitCommandError, "failed to open blob store", err)
	}

	return &environment{cfg: cfg, store: st, blobs: blobs}, nil
}

// Close releases the store. Blob directories hold no open handles.
func (e *environment) Close() {
	if err := e.store.Close(); err != nil {
		slog.Error("failed to close store", "error", err)
	}
}
