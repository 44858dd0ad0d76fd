package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/rewind/internal/temporal"
)

// createTestStore creates a file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedChain writes a session and one turn so tool calls and diffs
// have somewhere to hang.
func seedChain(t *testing.T, s *Store, sessionID, turnID string, at int64) {
	t.Helper()
	ctx := context.Background()
	if err := s.PutSession(ctx, temporal.Session{
		ID: sessionID, Label: "test", Interval: temporal.OpenAt(at),
	}); err != nil {
		t.Fatalf("PutSession() failed: %v", err)
	}
	if err := s.PutTurn(ctx, temporal.Turn{
		ID: turnID, SessionID: sessionID, Seq: 1, Interval: temporal.OpenAt(at),
	}); err != nil {
		t.Fatalf("PutTurn() failed: %v", err)
	}
}

// createToolCall builds a minimal current tool call event.
func createToolCall(id, turnID, name string, at int64) temporal.ToolCallEvent {
	return temporal.ToolCallEvent{
		ID:            id,
		TurnID:        turnID,
		Name:          name,
		ArgumentsJSON: `{}`,
		Interval:      temporal.OpenAt(at),
	}
}

// createDiffHunk builds a minimal current diff hunk.
func createDiffHunk(id, toolCallID, filePath, patch string, at int64) temporal.DiffHunk {
	return temporal.DiffHunk{
		ID:           id,
		ToolCallID:   toolCallID,
		FilePath:     filePath,
		PatchContent: patch,
		Interval:     temporal.OpenAt(at),
	}
}
