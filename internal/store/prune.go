package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/rewind/internal/temporal"
	"github.com/roach88/rewind/internal/val"
)

// expiredTables names the version-row tables in deletion order,
// children before parents.
var expiredTables = []string{"diff_hunks", "tool_calls", "turns", "snapshots", "sessions"}

// deleteChunkSize bounds ids per DELETE statement, well under
// SQLite's bound-parameter limit.
const deleteChunkSize = 500

// FetchExpired returns version rows whose transaction time closed
// before threshold, across all five tables, ordered by (tt_end, id)
// ascending. limit <= 0 returns all expired rows; a positive limit
// caps the merged result.
//
// Returns an empty slice (not nil) when nothing has expired.
func (s *Store) FetchExpired(ctx context.Context, threshold int64, limit int) ([]temporal.ExpiredEntity, error) {
	var expired []temporal.ExpiredEntity

	for _, fetch := range []func(context.Context, int64, int) ([]temporal.ExpiredEntity, error){
		s.fetchExpiredSessions,
		s.fetchExpiredTurns,
		s.fetchExpiredToolCalls,
		s.fetchExpiredDiffHunks,
		s.fetchExpiredSnapshots,
	} {
		rows, err := fetch(ctx, threshold, limit)
		if err != nil {
			return nil, err
		}
		expired = append(expired, rows...)
	}

	// Five pre-sorted runs merge into one (tt_end, id) total order.
	sortExpired(expired)
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}

	if expired == nil {
		expired = []temporal.ExpiredEntity{}
	}

	return expired, nil
}

// sortExpired sorts entities by (tt_end, id) using insertion sort.
// Inputs are per-table pre-sorted runs, so the nearly-sorted case is
// the common one.
func sortExpired(entities []temporal.ExpiredEntity) {
	for i := 1; i < len(entities); i++ {
		j := i
		for j > 0 && expiredLess(entities[j], entities[j-1]) {
			entities[j], entities[j-1] = entities[j-1], entities[j]
			j--
		}
	}
}

func expiredLess(a, b temporal.ExpiredEntity) bool {
	if a.TTEnd != b.TTEnd {
		return a.TTEnd < b.TTEnd
	}
	return a.ID < b.ID
}

// DeleteByIDs hard-deletes version rows by id from all five tables in
// a single transaction and returns the summed RowsAffected. Unknown
// ids are not an error; ids are unique across tables so each id
// matches at most one row.
func (s *Store) DeleteByIDs(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("delete by ids: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	deleted := 0
	for start := 0; start < len(ids); start += deleteChunkSize {
		end := min(start+deleteChunkSize, len(ids))
		chunk := ids[start:end]

		placeholders := make([]byte, 0, len(chunk)*2-1)
		args := make([]any, len(chunk))
		for i, id := range chunk {
			if i > 0 {
				placeholders = append(placeholders, ',')
			}
			placeholders = append(placeholders, '?')
			args[i] = id
		}

		for _, table := range expiredTables {
			query := `DELETE FROM ` + table + ` WHERE id IN (` + string(placeholders) + `)`
			result, err := tx.ExecContext(ctx, query, args...)
			if err != nil {
				return 0, fmt.Errorf("delete from %s: %w", table, err)
			}
			affected, err := result.RowsAffected()
			if err != nil {
				return 0, fmt.Errorf("delete from %s: rows affected: %w", table, err)
			}
			deleted += int(affected)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("delete by ids: commit: %w", err)
	}

	return deleted, nil
}

// expiredQuery appends the shared expiry predicate and ordering, plus
// a LIMIT when limit > 0.
func expiredQuery(base string, threshold int64, limit int) (string, []any) {
	query := base + ` WHERE tt_end < ? ORDER BY tt_end ASC, id COLLATE BINARY ASC`
	args := []any{threshold}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return query, args
}

func (s *Store) fetchExpiredSessions(ctx context.Context, threshold int64, limit int) ([]temporal.ExpiredEntity, error) {
	query, args := expiredQuery(`
		SELECT id, label, vt_start, vt_end, tt_start, tt_end
		FROM sessions`, threshold, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query expired sessions: %w", err)
	}
	defer rows.Close()

	var out []temporal.ExpiredEntity
	for rows.Next() {
		var id, label string
		var iv temporal.Interval
		if err := rows.Scan(&id, &label, &iv.VTStart, &iv.VTEnd, &iv.TTStart, &iv.TTEnd); err != nil {
			return nil, fmt.Errorf("scan expired session: %w", err)
		}
		props := val.Object{"id": val.String(id), "label": val.String(label)}
		addIntervalProps(props, iv)
		out = append(out, temporal.ExpiredEntity{
			ID: id, Labels: []string{"Session"}, Properties: props, TTEnd: iv.TTEnd,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired sessions: %w", err)
	}
	return out, nil
}

func (s *Store) fetchExpiredTurns(ctx context.Context, threshold int64, limit int) ([]temporal.ExpiredEntity, error) {
	query, args := expiredQuery(`
		SELECT id, session_id, seq, vt_start, vt_end, tt_start, tt_end
		FROM turns`, threshold, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query expired turns: %w", err)
	}
	defer rows.Close()

	var out []temporal.ExpiredEntity
	for rows.Next() {
		var id, sessionID string
		var seq int64
		var iv temporal.Interval
		if err := rows.Scan(&id, &sessionID, &seq, &iv.VTStart, &iv.VTEnd, &iv.TTStart, &iv.TTEnd); err != nil {
			return nil, fmt.Errorf("scan expired turn: %w", err)
		}
		props := val.Object{"id": val.String(id), "session_id": val.String(sessionID), "seq": val.Int(seq)}
		addIntervalProps(props, iv)
		out = append(out, temporal.ExpiredEntity{
			ID: id, Labels: []string{"Turn"}, Properties: props, TTEnd: iv.TTEnd,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired turns: %w", err)
	}
	return out, nil
}

func (s *Store) fetchExpiredToolCalls(ctx context.Context, threshold int64, limit int) ([]temporal.ExpiredEntity, error) {
	query, args := expiredQuery(`
		SELECT id, turn_id, name, arguments, result, vt_start, vt_end, tt_start, tt_end
		FROM tool_calls`, threshold, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query expired tool calls: %w", err)
	}
	defer rows.Close()

	var out []temporal.ExpiredEntity
	for rows.Next() {
		var id, turnID, name, arguments string
		var result sql.NullString
		var iv temporal.Interval
		if err := rows.Scan(&id, &turnID, &name, &arguments, &result, &iv.VTStart, &iv.VTEnd, &iv.TTStart, &iv.TTEnd); err != nil {
			return nil, fmt.Errorf("scan expired tool call: %w", err)
		}
		props := val.Object{
			"id":        val.String(id),
			"turn_id":   val.String(turnID),
			"name":      val.String(name),
			"arguments": val.String(arguments),
		}
		if result.Valid {
			props["result"] = val.String(result.String)
		} else {
			props["result"] = val.Null{}
		}
		addIntervalProps(props, iv)
		out = append(out, temporal.ExpiredEntity{
			ID: id, Labels: []string{"ToolCall"}, Properties: props, TTEnd: iv.TTEnd,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired tool calls: %w", err)
	}
	return out, nil
}

func (s *Store) fetchExpiredDiffHunks(ctx context.Context, threshold int64, limit int) ([]temporal.ExpiredEntity, error) {
	query, args := expiredQuery(`
		SELECT id, tool_call_id, file_path, patch, vt_start, vt_end, tt_start, tt_end
		FROM diff_hunks`, threshold, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query expired diff hunks: %w", err)
	}
	defer rows.Close()

	var out []temporal.ExpiredEntity
	for rows.Next() {
		var id, toolCallID, filePath, patch string
		var iv temporal.Interval
		if err := rows.Scan(&id, &toolCallID, &filePath, &patch, &iv.VTStart, &iv.VTEnd, &iv.TTStart, &iv.TTEnd); err != nil {
			return nil, fmt.Errorf("scan expired diff hunk: %w", err)
		}
		props := val.Object{
			"id":           val.String(id),
			"tool_call_id": val.String(toolCallID),
			"file_path":    val.String(filePath),
			"patch":        val.String(patch),
		}
		addIntervalProps(props, iv)
		out = append(out, temporal.ExpiredEntity{
			ID: id, Labels: []string{"DiffHunk"}, Properties: props, TTEnd: iv.TTEnd,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired diff hunks: %w", err)
	}
	return out, nil
}

func (s *Store) fetchExpiredSnapshots(ctx context.Context, threshold int64, limit int) ([]temporal.ExpiredEntity, error) {
	query, args := expiredQuery(`
		SELECT id, session_id, blob_ref, snapshot_at, vt_start, vt_end, tt_start, tt_end
		FROM snapshots`, threshold, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query expired snapshots: %w", err)
	}
	defer rows.Close()

	var out []temporal.ExpiredEntity
	for rows.Next() {
		var id, sessionID, blobRef string
		var snapshotAt int64
		var iv temporal.Interval
		if err := rows.Scan(&id, &sessionID, &blobRef, &snapshotAt, &iv.VTStart, &iv.VTEnd, &iv.TTStart, &iv.TTEnd); err != nil {
			return nil, fmt.Errorf("scan expired snapshot: %w", err)
		}
		props := val.Object{
			"id":          val.String(id),
			"session_id":  val.String(sessionID),
			"blob_ref":    val.String(blobRef),
			"snapshot_at": val.Int(snapshotAt),
		}
		addIntervalProps(props, iv)
		out = append(out, temporal.ExpiredEntity{
			ID: id, Labels: []string{"Snapshot"}, Properties: props, TTEnd: iv.TTEnd,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired snapshots: %w", err)
	}
	return out, nil
}

func addIntervalProps(props val.Object, iv temporal.Interval) {
	props["vt_start"] = val.Int(iv.VTStart)
	props["vt_end"] = val.Int(iv.VTEnd)
	props["tt_start"] = val.Int(iv.TTStart)
	props["tt_end"] = val.Int(iv.TTEnd)
}
