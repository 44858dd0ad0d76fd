package prune

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/rewind/internal/temporal"
	"github.com/roach88/rewind/internal/val"
)

// DefaultBatchSize is the deletion batch size used when Options does
// not set one.
const DefaultBatchSize = 1000

// Store is the slice of the event store the pruner needs.
type Store interface {
	// FetchExpired returns rows whose tt_end is strictly below the
	// threshold, oldest first. limit <= 0 returns all of them.
	FetchExpired(ctx context.Context, threshold int64, limit int) ([]temporal.ExpiredEntity, error)

	// DeleteByIDs hard-deletes the given rows and reports how many
	// were actually removed.
	DeleteByIDs(ctx context.Context, ids []string) (int, error)
}

// BlobWriter persists archive payloads.
type BlobWriter interface {
	Save(ctx context.Context, data []byte) (string, error)
}

// Options configures one pruning run.
type Options struct {
	// RetentionMs is how far back history is kept: rows whose tt_end
	// closed before now-RetentionMs expire.
	RetentionMs int64

	// BatchSize bounds each deletion batch. Zero means
	// DefaultBatchSize.
	BatchSize int

	// MaxBatches caps how many batches one run deletes. Zero means
	// unbounded.
	MaxBatches int

	// Archive writes all expired rows to the blob store as JSONL
	// before any deletion.
	Archive bool
}

// Result reports what one run did. On error the counts still reflect
// the work completed before the failure.
type Result struct {
	Archived   int    `json:"archived"`
	Deleted    int    `json:"deleted"`
	Batches    int    `json:"batches"`
	ArchiveRef string `json:"archive_ref,omitempty"`
}

// Pruner deletes expired history in bounded batches.
type Pruner struct {
	store Store
	blobs BlobWriter
	clock temporal.Clock
}

// Option allows configuration of pruner parameters.
type Option func(*Pruner)

// WithClock substitutes the clock, used by tests to pin the threshold.
func WithClock(c temporal.Clock) Option {
	return func(p *Pruner) {
		p.clock = c
	}
}

// New creates a Pruner over the given store and blob writer. blobs may
// be nil when archival is never requested.
func New(store Store, blobs BlobWriter, opts ...Option) *Pruner {
	p := &Pruner{
		store: store,
		blobs: blobs,
		clock: temporal.SystemClock{},
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Run performs one pruning pass.
//
// The threshold is fixed once at the start, so rows closing during the
// run never expire mid-pass. Deletion proceeds in batches of
// Options.BatchSize until a batch comes back short or MaxBatches is
// reached; because expiry is threshold-based, whatever remains is
// picked up by the next run.
func (p *Pruner) Run(ctx context.Context, opts Options) (Result, error) {
	var result Result

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	now := p.clock.Now()
	threshold := now - opts.RetentionMs

	slog.Debug("prune starting",
		"threshold", threshold,
		"batch_size", batchSize,
		"max_batches", opts.MaxBatches,
		"archive", opts.Archive)

	if opts.Archive {
		archived, ref, err := p.archive(ctx, threshold, now)
		if err != nil {
			return result, err
		}
		result.Archived = archived
		result.ArchiveRef = ref
	}

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if opts.MaxBatches > 0 && result.Batches == opts.MaxBatches {
			break
		}

		batch, err := p.store.FetchExpired(ctx, threshold, batchSize)
		if err != nil {
			return result, fmt.Errorf("fetch expired batch: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		ids := make([]string, len(batch))
		for i, e := range batch {
			ids[i] = e.ID
		}

		deleted, err := p.store.DeleteByIDs(ctx, ids)
		if err != nil {
			return result, fmt.Errorf("delete expired batch: %w", err)
		}
		result.Deleted += deleted
		result.Batches++

		slog.Debug("pruned batch",
			"batch", result.Batches,
			"deleted", deleted)

		// A short batch means the store is drained below the threshold.
		if len(batch) < batchSize {
			break
		}
	}

	slog.Info("prune finished",
		"archived", result.Archived,
		"deleted", result.Deleted,
		"batches", result.Batches)

	return result, nil
}

// archive serializes every expired row as one canonical-JSON line and
// saves the payload to the blob store. Zero expired rows skip the
// save.
func (p *Pruner) archive(ctx context.Context, threshold, now int64) (int, string, error) {
	if p.blobs == nil {
		return 0, "", fmt.Errorf("archival requested without a blob store")
	}

	expired, err := p.store.FetchExpired(ctx, threshold, 0)
	if err != nil {
		return 0, "", fmt.Errorf("fetch expired for archive: %w", err)
	}
	if len(expired) == 0 {
		return 0, "", nil
	}

	var buf bytes.Buffer
	for _, e := range expired {
		line, err := archiveLine(e, threshold, now)
		if err != nil {
			return 0, "", fmt.Errorf("serialize expired row %s: %w", e.ID, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	ref, err := p.blobs.Save(ctx, buf.Bytes())
	if err != nil {
		return 0, "", fmt.Errorf("save archive: %w", err)
	}

	slog.Info("archived expired history",
		"entities", len(expired),
		"ref", ref)

	return len(expired), ref, nil
}

// archiveLine flattens one expired row into a canonical-JSON object.
// Row properties come first; labels and the underscore-prefixed
// bookkeeping keys overwrite them on collision, so the archive's own
// fields are always trustworthy.
func archiveLine(e temporal.ExpiredEntity, threshold, now int64) ([]byte, error) {
	line := make(val.Object, len(e.Properties)+4)
	for k, v := range e.Properties {
		line[k] = v
	}

	labels := make(val.Array, len(e.Labels))
	for i, l := range e.Labels {
		labels[i] = val.String(l)
	}
	line["labels"] = labels
	line["_archived_at"] = val.Int(now)
	line["_node_id"] = val.String(e.ID)
	line["_threshold"] = val.Int(threshold)

	return val.MarshalCanonical(line)
}
