package store

import (
	"context"
	"testing"

	"github.com/roach88/rewind/internal/temporal"
)

func TestPutSession_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	sess := temporal.Session{ID: "sess-1", Label: "first", Interval: temporal.OpenAt(1000)}
	if err := s.PutSession(ctx, sess); err != nil {
		t.Fatalf("first PutSession() failed: %v", err)
	}

	// Second write with a different label is silently ignored.
	dup := temporal.Session{ID: "sess-1", Label: "second", Interval: temporal.OpenAt(2000)}
	if err := s.PutSession(ctx, dup); err != nil {
		t.Fatalf("duplicate PutSession() failed: %v", err)
	}

	sessions, err := s.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions() failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("len(sessions) = %d, want 1", len(sessions))
	}
	if sessions[0].Label != "first" {
		t.Errorf("Label = %q, want %q (first write wins)", sessions[0].Label, "first")
	}
}

func TestPut_RejectsInvalidInterval(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	bad := temporal.Interval{VTStart: 2000, VTEnd: 1000, TTStart: 1000, TTEnd: 2000}

	if err := s.PutSession(ctx, temporal.Session{ID: "x", Interval: bad}); err == nil {
		t.Error("PutSession() with invalid interval succeeded, want error")
	}
	if err := s.PutTurn(ctx, temporal.Turn{ID: "x", SessionID: "s", Interval: bad}); err == nil {
		t.Error("PutTurn() with invalid interval succeeded, want error")
	}
	if err := s.PutToolCall(ctx, temporal.ToolCallEvent{
		ID: "x", TurnID: "t", Name: "read_file", ArgumentsJSON: "{}", Interval: bad,
	}); err == nil {
		t.Error("PutToolCall() with invalid interval succeeded, want error")
	}
	if err := s.PutDiffHunk(ctx, temporal.DiffHunk{ID: "x", ToolCallID: "tc", Interval: bad}); err == nil {
		t.Error("PutDiffHunk() with invalid interval succeeded, want error")
	}
	if err := s.PutSnapshot(ctx, temporal.Snapshot{ID: "x", SessionID: "s", Interval: bad}); err == nil {
		t.Error("PutSnapshot() with invalid interval succeeded, want error")
	}
}

func TestPutToolCall_CanonicalizesJSON(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedChain(t, s, "sess-1", "turn-1", 100)

	// Keys out of order, extra whitespace.
	result := `{ "z" : 1 , "a" : 2 }`
	ev := temporal.ToolCallEvent{
		ID:            "tc-1",
		TurnID:        "turn-1",
		Name:          "read_file",
		ArgumentsJSON: `{ "path" : "/a.ts" , "binary" : false }`,
		Result:        &result,
		Interval:      temporal.OpenAt(1000),
	}
	if err := s.PutToolCall(ctx, ev); err != nil {
		t.Fatalf("PutToolCall() failed: %v", err)
	}

	got, err := s.FetchToolCallEvent(ctx, "sess-1", "tc-1")
	if err != nil {
		t.Fatalf("FetchToolCallEvent() failed: %v", err)
	}
	if got.ArgumentsJSON != `{"binary":false,"path":"/a.ts"}` {
		t.Errorf("ArgumentsJSON = %q, want canonical form", got.ArgumentsJSON)
	}
	if got.Result == nil || *got.Result != `{"a":2,"z":1}` {
		t.Errorf("Result = %v, want canonical form", got.Result)
	}
}

func TestPutToolCall_RejectsMalformedJSON(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	ev := createToolCall("tc-1", "turn-1", "read_file", 1000)
	ev.ArgumentsJSON = `{not json`
	if err := s.PutToolCall(ctx, ev); err == nil {
		t.Error("PutToolCall() with malformed arguments succeeded, want error")
	}

	ev = createToolCall("tc-2", "turn-1", "read_file", 1000)
	ev.ArgumentsJSON = `[1, 2, 3]`
	if err := s.PutToolCall(ctx, ev); err == nil {
		t.Error("PutToolCall() with non-object arguments succeeded, want error")
	}

	ev = createToolCall("tc-3", "turn-1", "read_file", 1000)
	badResult := `{truncated`
	ev.Result = &badResult
	if err := s.PutToolCall(ctx, ev); err == nil {
		t.Error("PutToolCall() with malformed result succeeded, want error")
	}
}

func TestPutDiffHunk_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedChain(t, s, "sess-1", "turn-1", 100)

	if err := s.PutToolCall(ctx, createToolCall("tc-1", "turn-1", "write_file", 100)); err != nil {
		t.Fatalf("PutToolCall() failed: %v", err)
	}

	d := createDiffHunk("d-1", "tc-1", "/a.ts", "@@ -1 +1 @@\n-x\n+y\n", 1000)
	if err := s.PutDiffHunk(ctx, d); err != nil {
		t.Fatalf("first PutDiffHunk() failed: %v", err)
	}
	if err := s.PutDiffHunk(ctx, d); err != nil {
		t.Fatalf("duplicate PutDiffHunk() failed: %v", err)
	}

	diffs, err := s.FetchDiffsForSession(ctx, "sess-1", 0, 5000)
	if err != nil {
		t.Fatalf("FetchDiffsForSession() failed: %v", err)
	}
	if len(diffs) != 1 {
		t.Errorf("len(diffs) = %d, want 1", len(diffs))
	}
}

func TestPutSnapshot_RoundTripsFields(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	snap := temporal.Snapshot{
		ID:         "snap-1",
		SessionID:  "sess-1",
		BlobRef:    "sha256:deadbeef",
		SnapshotAt: 1234,
		Interval:   temporal.OpenAt(1234),
	}
	if err := s.PutSnapshot(ctx, snap); err != nil {
		t.Fatalf("PutSnapshot() failed: %v", err)
	}

	got, err := s.FetchLatestSnapshot(ctx, "sess-1", 2000)
	if err != nil {
		t.Fatalf("FetchLatestSnapshot() failed: %v", err)
	}
	if got == nil {
		t.Fatal("got = nil, want snapshot")
	}
	if *got != snap {
		t.Errorf("round trip mismatch: got %+v, want %+v", *got, snap)
	}
}
