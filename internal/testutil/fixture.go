package testutil

import (
	"context"

	"github.com/google/uuid"

	"github.com/roach88/rewind/internal/blob"
	"github.com/roach88/rewind/internal/store"
	"github.com/roach88/rewind/internal/temporal"
	"github.com/roach88/rewind/internal/tree"
)

// NewID returns a time-sortable UUIDv7 string.
//
// The store breaks ordering ties by id under binary collation, so
// v7 ids keep fixture rows in creation order without tests having to
// hand-pick ids.
//
// Panics if UUID generation fails (should never happen in practice).
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Fixture seeds bitemporal records with generated ids and open
// intervals, for tests that want a populated store without the
// plumbing. Every method returns the id of the row it wrote.
type Fixture struct {
	Store *store.Store
	Blobs blob.Store
}

// NewFixture creates a Fixture over the given store. blobs may be nil
// when no snapshot rows are seeded.
func NewFixture(s *store.Store, blobs blob.Store) *Fixture {
	return &Fixture{Store: s, Blobs: blobs}
}

// Session writes a current session row opened at the given instant.
func (f *Fixture) Session(ctx context.Context, label string, at int64) (string, error) {
	id := NewID()
	err := f.Store.PutSession(ctx, temporal.Session{
		ID: id, Label: label, Interval: temporal.OpenAt(at),
	})
	return id, err
}

// Turn writes a current turn row under the given session.
func (f *Fixture) Turn(ctx context.Context, sessionID string, seq, at int64) (string, error) {
	id := NewID()
	err := f.Store.PutTurn(ctx, temporal.Turn{
		ID: id, SessionID: sessionID, Seq: seq, Interval: temporal.OpenAt(at),
	})
	return id, err
}

// ToolCall writes a current tool call row under the given turn. result
// nil records a null historical output.
func (f *Fixture) ToolCall(ctx context.Context, turnID, name, argsJSON string, result *string, at int64) (string, error) {
	id := NewID()
	err := f.Store.PutToolCall(ctx, temporal.ToolCallEvent{
		ID: id, TurnID: turnID, Name: name,
		ArgumentsJSON: argsJSON, Result: result,
		Interval: temporal.OpenAt(at),
	})
	return id, err
}

// Diff writes a current diff hunk row under the given tool call.
func (f *Fixture) Diff(ctx context.Context, toolCallID, filePath, patchText string, at int64) (string, error) {
	id := NewID()
	err := f.Store.PutDiffHunk(ctx, temporal.DiffHunk{
		ID: id, ToolCallID: toolCallID, FilePath: filePath,
		PatchContent: patchText, Interval: temporal.OpenAt(at),
	})
	return id, err
}

// Snapshot encodes the tree, saves the payload to the blob store, and
// writes a current snapshot row pointing at it.
func (f *Fixture) Snapshot(ctx context.Context, sessionID string, t *tree.Tree, at int64) (string, error) {
	data, err := tree.EncodeSnapshot(t)
	if err != nil {
		return "", err
	}
	ref, err := f.Blobs.Save(ctx, data)
	if err != nil {
		return "", err
	}

	id := NewID()
	err = f.Store.PutSnapshot(ctx, temporal.Snapshot{
		ID: id, SessionID: sessionID, BlobRef: ref,
		SnapshotAt: at, Interval: temporal.OpenAt(at),
	})
	return id, err
}
