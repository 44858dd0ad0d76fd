package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/rewind/internal/temporal"
)

// FetchLatestSnapshot returns the current snapshot row with the
// greatest snapshot_at <= atOrBefore for the session, ties broken by
// id COLLATE BINARY DESC per CP-2.
//
// Returns (nil, nil) when the session has no usable snapshot; absence
// is a structured outcome, not an error.
func (s *Store) FetchLatestSnapshot(ctx context.Context, sessionID string, atOrBefore int64) (*temporal.Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, blob_ref, snapshot_at, vt_start, vt_end, tt_start, tt_end
		FROM snapshots
		WHERE session_id = ? AND snapshot_at <= ? AND tt_end = ?
		ORDER BY snapshot_at DESC, id COLLATE BINARY DESC
		LIMIT 1
	`, sessionID, atOrBefore, temporal.MaxDate)

	var snap temporal.Snapshot
	err := row.Scan(
		&snap.ID, &snap.SessionID, &snap.BlobRef, &snap.SnapshotAt,
		&snap.VTStart, &snap.VTEnd, &snap.TTStart, &snap.TTEnd,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest snapshot: %w", err)
	}
	return &snap, nil
}

// FetchDiffsForSession returns the current diff hunks causally
// reachable from the session (diff_hunks → tool_calls → turns) whose
// valid-time start falls in (afterExclusive, uptoInclusive].
// Results are ordered by vt_start ASC, id COLLATE BINARY ASC per CP-2
// so reconstruction applies them in one stable total order.
//
// Returns an empty slice (not nil) if no diffs fall in the window.
func (s *Store) FetchDiffsForSession(ctx context.Context, sessionID string, afterExclusive, uptoInclusive int64) ([]temporal.DiffHunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT dh.id, dh.tool_call_id, dh.file_path, dh.patch,
		       dh.vt_start, dh.vt_end, dh.tt_start, dh.tt_end
		FROM diff_hunks dh
		JOIN tool_calls tc ON dh.tool_call_id = tc.id
		JOIN turns t ON tc.turn_id = t.id
		WHERE t.session_id = ?
		  AND dh.vt_start > ? AND dh.vt_start <= ?
		  AND dh.tt_end = ?
		ORDER BY dh.vt_start ASC, dh.id COLLATE BINARY ASC
	`, sessionID, afterExclusive, uptoInclusive, temporal.MaxDate)
	if err != nil {
		return nil, fmt.Errorf("query diffs: %w", err)
	}
	defer rows.Close()

	var diffs []temporal.DiffHunk
	for rows.Next() {
		var d temporal.DiffHunk
		if err := rows.Scan(
			&d.ID, &d.ToolCallID, &d.FilePath, &d.PatchContent,
			&d.VTStart, &d.VTEnd, &d.TTStart, &d.TTEnd,
		); err != nil {
			return nil, fmt.Errorf("scan diff hunk: %w", err)
		}
		diffs = append(diffs, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diffs: %w", err)
	}

	// Return empty slice instead of nil
	if diffs == nil {
		diffs = []temporal.DiffHunk{}
	}

	return diffs, nil
}

// FetchToolCallEvent returns the current tool call row with the given
// id, scoped to the session through its turn.
//
// Returns (nil, nil) when no such event exists.
func (s *Store) FetchToolCallEvent(ctx context.Context, sessionID, eventID string) (*temporal.ToolCallEvent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT tc.id, tc.turn_id, t.session_id, tc.name, tc.arguments, tc.result,
		       tc.vt_start, tc.vt_end, tc.tt_start, tc.tt_end
		FROM tool_calls tc
		JOIN turns t ON tc.turn_id = t.id
		WHERE tc.id = ? AND t.session_id = ? AND tc.tt_end = ?
	`, eventID, sessionID, temporal.MaxDate)

	var ev temporal.ToolCallEvent
	var result sql.NullString
	err := row.Scan(
		&ev.ID, &ev.TurnID, &ev.SessionID, &ev.Name, &ev.ArgumentsJSON, &result,
		&ev.VTStart, &ev.VTEnd, &ev.TTStart, &ev.TTEnd,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query tool call event: %w", err)
	}
	if result.Valid {
		ev.Result = &result.String
	}
	return &ev, nil
}

// ListSessions returns all current sessions ordered by id COLLATE
// BINARY ASC per CP-2.
//
// Returns an empty slice (not nil) when the store holds no sessions.
func (s *Store) ListSessions(ctx context.Context) ([]temporal.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, label, vt_start, vt_end, tt_start, tt_end
		FROM sessions
		WHERE tt_end = ?
		ORDER BY id COLLATE BINARY ASC
	`, temporal.MaxDate)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []temporal.Session
	for rows.Next() {
		var sess temporal.Session
		if err := rows.Scan(
			&sess.ID, &sess.Label,
			&sess.VTStart, &sess.VTEnd, &sess.TTStart, &sess.TTEnd,
		); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	if sessions == nil {
		sessions = []temporal.Session{}
	}

	return sessions, nil
}
