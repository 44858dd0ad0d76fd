package store

import (
	"context"
	"fmt"

	"github.com/roach88/rewind/internal/temporal"
)

// PutSession inserts a session version row.
// Uses ON CONFLICT(id) DO NOTHING for idempotency per CP-4.
func (s *Store) PutSession(ctx context.Context, sess temporal.Session) error {
	if err := sess.Validate(); err != nil {
		return fmt.Errorf("put session: %w", err)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions
		(id, label, vt_start, vt_end, tt_start, tt_end)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		sess.ID,
		sess.Label,
		sess.VTStart,
		sess.VTEnd,
		sess.TTStart,
		sess.TTEnd,
	)
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}

	return nil
}

// PutTurn inserts a turn version row.
// Uses ON CONFLICT(id) DO NOTHING for idempotency per CP-4.
func (s *Store) PutTurn(ctx context.Context, turn temporal.Turn) error {
	if err := turn.Validate(); err != nil {
		return fmt.Errorf("put turn: %w", err)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO turns
		(id, session_id, seq, vt_start, vt_end, tt_start, tt_end)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		turn.ID,
		turn.SessionID,
		turn.Seq,
		turn.VTStart,
		turn.VTEnd,
		turn.TTStart,
		turn.TTEnd,
	)
	if err != nil {
		return fmt.Errorf("put turn: %w", err)
	}

	return nil
}

// PutToolCall inserts a tool call version row. Arguments and result
// are re-encoded as canonical JSON per CP-3 so stored bytes compare
// structurally; a nil Result stores SQL NULL, preserving the
// historical null.
func (s *Store) PutToolCall(ctx context.Context, ev temporal.ToolCallEvent) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("put tool call: %w", err)
	}

	argsText, err := canonicalArguments(ev.ArgumentsJSON)
	if err != nil {
		return fmt.Errorf("put tool call: %w", err)
	}

	var resultText any
	if ev.Result != nil {
		text, err := canonicalJSON(*ev.Result)
		if err != nil {
			return fmt.Errorf("put tool call: %w", err)
		}
		resultText = text
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tool_calls
		(id, turn_id, name, arguments, result, vt_start, vt_end, tt_start, tt_end)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		ev.ID,
		ev.TurnID,
		ev.Name,
		argsText,
		resultText,
		ev.VTStart,
		ev.VTEnd,
		ev.TTStart,
		ev.TTEnd,
	)
	if err != nil {
		return fmt.Errorf("put tool call: %w", err)
	}

	return nil
}

// PutDiffHunk inserts a diff hunk version row.
// Uses ON CONFLICT(id) DO NOTHING for idempotency per CP-4.
func (s *Store) PutDiffHunk(ctx context.Context, d temporal.DiffHunk) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("put diff hunk: %w", err)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO diff_hunks
		(id, tool_call_id, file_path, patch, vt_start, vt_end, tt_start, tt_end)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		d.ID,
		d.ToolCallID,
		d.FilePath,
		d.PatchContent,
		d.VTStart,
		d.VTEnd,
		d.TTStart,
		d.TTEnd,
	)
	if err != nil {
		return fmt.Errorf("put diff hunk: %w", err)
	}

	return nil
}

// PutSnapshot inserts a snapshot version row pointing at a blob ref.
// Uses ON CONFLICT(id) DO NOTHING for idempotency per CP-4.
func (s *Store) PutSnapshot(ctx context.Context, snap temporal.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("put snapshot: %w", err)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots
		(id, session_id, blob_ref, snapshot_at, vt_start, vt_end, tt_start, tt_end)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		snap.ID,
		snap.SessionID,
		snap.BlobRef,
		snap.SnapshotAt,
		snap.VTStart,
		snap.VTEnd,
		snap.TTStart,
		snap.TTEnd,
	)
	if err != nil {
		return fmt.Errorf("put snapshot: %w", err)
	}

	return nil
}
