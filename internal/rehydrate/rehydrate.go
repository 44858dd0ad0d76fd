package rehydrate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/rewind/internal/patch"
	"github.com/roach88/rewind/internal/temporal"
	"github.com/roach88/rewind/internal/tree"
)

// Repository is the slice of the event store the Rehydrator needs.
// Both lookups treat absence as a structured (nil, nil) result; a
// returned error is a store failure and always fatal.
type Repository interface {
	// FetchLatestSnapshot returns the snapshot with the greatest
	// snapshot_at <= atOrBefore for the session, or (nil, nil).
	FetchLatestSnapshot(ctx context.Context, sessionID string, atOrBefore int64) (*temporal.Snapshot, error)

	// FetchDiffsForSession returns diff hunks whose vt_start falls in
	// (afterExclusive, uptoInclusive], ascending by vt_start with a
	// stable id tie-break.
	FetchDiffsForSession(ctx context.Context, sessionID string, afterExclusive, uptoInclusive int64) ([]temporal.DiffHunk, error)
}

// BlobReader resolves snapshot blob refs to payload bytes.
type BlobReader interface {
	Read(ctx context.Context, ref string) ([]byte, error)
}

// RecoveryPolicy decides what happens when a snapshot payload exists
// but cannot be decoded.
type RecoveryPolicy int

const (
	// RecoverEmpty starts reconstruction from an empty tree, keeping
	// the snapshot's time for diff scoping. This is the default.
	RecoverEmpty RecoveryPolicy = iota

	// RecoverStrict fails reconstruction with the decode error.
	RecoverStrict
)

// SkippedPatch records one diff that could not be applied.
type SkippedPatch struct {
	FilePath string `json:"file_path"`
	VTStart  int64  `json:"vt_start"`
	Reason   string `json:"reason"`
}

// Result is a completed reconstruction. SnapshotAt is 0 when no
// snapshot was used; SnapshotRecovered is true when the snapshot
// payload was undecodable and RecoverEmpty substituted an empty tree.
type Result struct {
	Tree              *tree.Tree
	SnapshotAt        int64
	SnapshotRecovered bool
	Applied           int
	Skipped           []SkippedPatch
}

// Rehydrator reconstructs workspace trees from snapshots plus diffs.
type Rehydrator struct {
	repo   Repository
	blobs  BlobReader
	policy RecoveryPolicy
}

// Option allows configuration of rehydrator parameters.
type Option func(*Rehydrator)

// WithRecovery sets the snapshot decode-failure policy.
func WithRecovery(p RecoveryPolicy) Option {
	return func(r *Rehydrator) {
		r.policy = p
	}
}

// New creates a Rehydrator over the given repository and blob reader.
func New(repo Repository, blobs BlobReader, opts ...Option) *Rehydrator {
	r := &Rehydrator{
		repo:   repo,
		blobs:  blobs,
		policy: RecoverEmpty,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Rehydrate reconstructs the session's workspace as of targetTime.
//
// The result is deterministic for an unchanged store: the same
// (sessionID, targetTime) yields a structurally identical tree. The
// call takes no locks against concurrent writers; callers needing a
// consistent cut of a live store must fix targetTime strictly below
// any in-flight writes.
//
// The returned tree is exclusively owned by the caller.
func (r *Rehydrator) Rehydrate(ctx context.Context, sessionID string, targetTime int64) (*Result, error) {
	result := &Result{Skipped: []SkippedPatch{}}

	t, lastSnapshotTime, err := r.baseTree(ctx, sessionID, targetTime, result)
	if err != nil {
		return nil, err
	}
	result.Tree = t

	diffs, err := r.repo.FetchDiffsForSession(ctx, sessionID, lastSnapshotTime, targetTime)
	if err != nil {
		return nil, fmt.Errorf("fetch diffs: %w", err)
	}

	for _, d := range diffs {
		// Diff streams are unbounded; honor cancellation per patch.
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := patch.Apply(t, d.FilePath, d.PatchContent, d.VTStart); err != nil {
			slog.Warn("skipping unappliable diff",
				"session_id", sessionID,
				"diff_id", d.ID,
				"file_path", d.FilePath,
				"vt_start", d.VTStart,
				"reason", err)
			result.Skipped = append(result.Skipped, SkippedPatch{
				FilePath: d.FilePath,
				VTStart:  d.VTStart,
				Reason:   err.Error(),
			})
			continue
		}
		result.Applied++
	}

	slog.Debug("rehydrated workspace",
		"session_id", sessionID,
		"target_time", targetTime,
		"snapshot_at", result.SnapshotAt,
		"applied", result.Applied,
		"skipped", len(result.Skipped))

	return result, nil
}

// baseTree resolves the starting tree and the snapshot scope time.
// No snapshot: empty tree, scope 0 (all diffs up to targetTime apply).
// Snapshot present: decoded tree, scope snapshot_at. Decode failure is
// resolved by the recovery policy; the scope time stays snapshot_at
// either way, so diff scoping does not depend on payload health.
func (r *Rehydrator) baseTree(ctx context.Context, sessionID string, targetTime int64, result *Result) (*tree.Tree, int64, error) {
	snap, err := r.repo.FetchLatestSnapshot(ctx, sessionID, targetTime)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch latest snapshot: %w", err)
	}
	if snap == nil {
		return tree.New(), 0, nil
	}
	result.SnapshotAt = snap.SnapshotAt

	// The store asserted this blob exists; losing it is a store
	// integrity failure, not a decode failure, so no recovery applies.
	data, err := r.blobs.Read(ctx, snap.BlobRef)
	if err != nil {
		return nil, 0, fmt.Errorf("read snapshot blob %s: %w", snap.BlobRef, err)
	}

	t, err := tree.DecodeSnapshot(data)
	if err != nil {
		if r.policy == RecoverStrict {
			return nil, 0, fmt.Errorf("decode snapshot %s: %w", snap.ID, err)
		}
		slog.Warn("snapshot undecodable, starting from empty tree",
			"session_id", sessionID,
			"snapshot_id", snap.ID,
			"snapshot_at", snap.SnapshotAt,
			"reason", err)
		result.SnapshotRecovered = true
		return tree.New(), snap.SnapshotAt, nil
	}

	return t, snap.SnapshotAt, nil
}
