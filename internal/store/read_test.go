package store

import (
	"context"
	"testing"

	"github.com/roach88/rewind/internal/temporal"
)

func TestFetchLatestSnapshot_Empty(t *testing.T) {
	s := createTestStore(t)

	snap, err := s.FetchLatestSnapshot(context.Background(), "no-such-session", 5000)
	if err != nil {
		t.Fatalf("FetchLatestSnapshot() failed: %v", err)
	}
	if snap != nil {
		t.Errorf("snap = %+v, want nil", snap)
	}
}

func TestFetchLatestSnapshot_PicksGreatestAtOrBefore(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedChain(t, s, "sess-1", "turn-1", 100)

	for _, snap := range []temporal.Snapshot{
		{ID: "snap-a", SessionID: "sess-1", BlobRef: "sha256:aa", SnapshotAt: 1000, Interval: temporal.OpenAt(1000)},
		{ID: "snap-b", SessionID: "sess-1", BlobRef: "sha256:bb", SnapshotAt: 2000, Interval: temporal.OpenAt(2000)},
		{ID: "snap-c", SessionID: "sess-1", BlobRef: "sha256:cc", SnapshotAt: 3000, Interval: temporal.OpenAt(3000)},
	} {
		if err := s.PutSnapshot(ctx, snap); err != nil {
			t.Fatalf("PutSnapshot(%s) failed: %v", snap.ID, err)
		}
	}

	cases := []struct {
		name   string
		target int64
		wantID string
	}{
		{"between second and third", 2500, "snap-b"},
		{"exactly at a snapshot", 2000, "snap-b"},
		{"after all", 9000, "snap-c"},
		{"at first", 1000, "snap-a"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			snap, err := s.FetchLatestSnapshot(ctx, "sess-1", tc.target)
			if err != nil {
				t.Fatalf("FetchLatestSnapshot() failed: %v", err)
			}
			if snap == nil {
				t.Fatal("snap = nil, want a snapshot")
			}
			if snap.ID != tc.wantID {
				t.Errorf("ID = %q, want %q", snap.ID, tc.wantID)
			}
		})
	}

	// Before the first snapshot: structured absence.
	snap, err := s.FetchLatestSnapshot(ctx, "sess-1", 999)
	if err != nil {
		t.Fatalf("FetchLatestSnapshot() failed: %v", err)
	}
	if snap != nil {
		t.Errorf("snap = %+v, want nil before first snapshot", snap)
	}
}

func TestFetchLatestSnapshot_IgnoresSupersededRows(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// Closed transaction time: the row was asserted then retracted.
	superseded := temporal.Snapshot{
		ID: "snap-old", SessionID: "sess-1", BlobRef: "sha256:old", SnapshotAt: 1000,
		Interval: temporal.ClosedAt(1000, 1500),
	}
	if err := s.PutSnapshot(ctx, superseded); err != nil {
		t.Fatalf("PutSnapshot() failed: %v", err)
	}

	snap, err := s.FetchLatestSnapshot(ctx, "sess-1", 5000)
	if err != nil {
		t.Fatalf("FetchLatestSnapshot() failed: %v", err)
	}
	if snap != nil {
		t.Errorf("snap = %+v, want nil (superseded rows invisible)", snap)
	}
}

func TestFetchLatestSnapshot_TieBreaksByIDDesc(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"snap-a", "snap-b"} {
		if err := s.PutSnapshot(ctx, temporal.Snapshot{
			ID: id, SessionID: "sess-1", BlobRef: "sha256:" + id, SnapshotAt: 1000,
			Interval: temporal.OpenAt(1000),
		}); err != nil {
			t.Fatalf("PutSnapshot(%s) failed: %v", id, err)
		}
	}

	snap, err := s.FetchLatestSnapshot(ctx, "sess-1", 1000)
	if err != nil {
		t.Fatalf("FetchLatestSnapshot() failed: %v", err)
	}
	if snap.ID != "snap-b" {
		t.Errorf("ID = %q, want snap-b (binary collation, descending)", snap.ID)
	}
}

func TestFetchDiffsForSession_Empty(t *testing.T) {
	s := createTestStore(t)

	diffs, err := s.FetchDiffsForSession(context.Background(), "sess-1", 0, 5000)
	if err != nil {
		t.Fatalf("FetchDiffsForSession() failed: %v", err)
	}
	if diffs == nil {
		t.Fatal("diffs is nil, want empty slice")
	}
	if len(diffs) != 0 {
		t.Errorf("len(diffs) = %d, want 0", len(diffs))
	}
}

func TestFetchDiffsForSession_WindowIsHalfOpen(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedChain(t, s, "sess-1", "turn-1", 100)

	if err := s.PutToolCall(ctx, createToolCall("tc-1", "turn-1", "write_file", 100)); err != nil {
		t.Fatalf("PutToolCall() failed: %v", err)
	}
	for _, d := range []temporal.DiffHunk{
		createDiffHunk("d-1000", "tc-1", "/a.ts", "@@ -1 +1 @@\n-x\n+y\n", 1000),
		createDiffHunk("d-2000", "tc-1", "/a.ts", "@@ -1 +1 @@\n-y\n+z\n", 2000),
		createDiffHunk("d-3000", "tc-1", "/a.ts", "@@ -1 +1 @@\n-z\n+w\n", 3000),
	} {
		if err := s.PutDiffHunk(ctx, d); err != nil {
			t.Fatalf("PutDiffHunk(%s) failed: %v", d.ID, err)
		}
	}

	// (1000, 3000]: excludes vt_start == 1000, includes vt_start == 3000.
	diffs, err := s.FetchDiffsForSession(ctx, "sess-1", 1000, 3000)
	if err != nil {
		t.Fatalf("FetchDiffsForSession() failed: %v", err)
	}
	if len(diffs) != 2 {
		t.Fatalf("len(diffs) = %d, want 2", len(diffs))
	}
	if diffs[0].ID != "d-2000" || diffs[1].ID != "d-3000" {
		t.Errorf("diff ids = [%s, %s], want [d-2000, d-3000]", diffs[0].ID, diffs[1].ID)
	}
}

func TestFetchDiffsForSession_OrderedByVTStartThenID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedChain(t, s, "sess-1", "turn-1", 100)

	if err := s.PutToolCall(ctx, createToolCall("tc-1", "turn-1", "write_file", 100)); err != nil {
		t.Fatalf("PutToolCall() failed: %v", err)
	}
	// Insert out of order; two share a vt_start.
	for _, d := range []temporal.DiffHunk{
		createDiffHunk("d-b", "tc-1", "/a.ts", "@@ -1 +1 @@\n-1\n+2\n", 2000),
		createDiffHunk("d-a", "tc-1", "/a.ts", "@@ -1 +1 @@\n-0\n+1\n", 2000),
		createDiffHunk("d-c", "tc-1", "/a.ts", "@@ -1 +1 @@\n-2\n+3\n", 1000),
	} {
		if err := s.PutDiffHunk(ctx, d); err != nil {
			t.Fatalf("PutDiffHunk(%s) failed: %v", d.ID, err)
		}
	}

	diffs, err := s.FetchDiffsForSession(ctx, "sess-1", 0, 5000)
	if err != nil {
		t.Fatalf("FetchDiffsForSession() failed: %v", err)
	}
	want := []string{"d-c", "d-a", "d-b"}
	if len(diffs) != len(want) {
		t.Fatalf("len(diffs) = %d, want %d", len(diffs), len(want))
	}
	for i, id := range want {
		if diffs[i].ID != id {
			t.Errorf("diffs[%d].ID = %q, want %q", i, diffs[i].ID, id)
		}
	}
}

func TestFetchDiffsForSession_ScopedBySession(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedChain(t, s, "sess-1", "turn-1", 100)
	seedChain(t, s, "sess-2", "turn-2", 100)

	if err := s.PutToolCall(ctx, createToolCall("tc-1", "turn-1", "write_file", 100)); err != nil {
		t.Fatalf("PutToolCall() failed: %v", err)
	}
	if err := s.PutToolCall(ctx, createToolCall("tc-2", "turn-2", "write_file", 100)); err != nil {
		t.Fatalf("PutToolCall() failed: %v", err)
	}
	if err := s.PutDiffHunk(ctx, createDiffHunk("d-mine", "tc-1", "/a.ts", "@@ -1 +1 @@\n-x\n+y\n", 1000)); err != nil {
		t.Fatalf("PutDiffHunk() failed: %v", err)
	}
	if err := s.PutDiffHunk(ctx, createDiffHunk("d-other", "tc-2", "/b.ts", "@@ -1 +1 @@\n-x\n+y\n", 1000)); err != nil {
		t.Fatalf("PutDiffHunk() failed: %v", err)
	}

	diffs, err := s.FetchDiffsForSession(ctx, "sess-1", 0, 5000)
	if err != nil {
		t.Fatalf("FetchDiffsForSession() failed: %v", err)
	}
	if len(diffs) != 1 {
		t.Fatalf("len(diffs) = %d, want 1", len(diffs))
	}
	if diffs[0].ID != "d-mine" {
		t.Errorf("ID = %q, want d-mine", diffs[0].ID)
	}
}

func TestFetchDiffsForSession_IgnoresSupersededRows(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedChain(t, s, "sess-1", "turn-1", 100)

	if err := s.PutToolCall(ctx, createToolCall("tc-1", "turn-1", "write_file", 100)); err != nil {
		t.Fatalf("PutToolCall() failed: %v", err)
	}
	retracted := temporal.DiffHunk{
		ID: "d-retracted", ToolCallID: "tc-1", FilePath: "/a.ts",
		PatchContent: "@@ -1 +1 @@\n-x\n+y\n",
		Interval:     temporal.Interval{VTStart: 1000, VTEnd: temporal.MaxDate, TTStart: 1000, TTEnd: 1500},
	}
	if err := s.PutDiffHunk(ctx, retracted); err != nil {
		t.Fatalf("PutDiffHunk() failed: %v", err)
	}

	diffs, err := s.FetchDiffsForSession(ctx, "sess-1", 0, 5000)
	if err != nil {
		t.Fatalf("FetchDiffsForSession() failed: %v", err)
	}
	if len(diffs) != 0 {
		t.Errorf("len(diffs) = %d, want 0 (retracted rows invisible)", len(diffs))
	}
}

func TestFetchToolCallEvent_Empty(t *testing.T) {
	s := createTestStore(t)

	ev, err := s.FetchToolCallEvent(context.Background(), "sess-1", "no-such-event")
	if err != nil {
		t.Fatalf("FetchToolCallEvent() failed: %v", err)
	}
	if ev != nil {
		t.Errorf("ev = %+v, want nil", ev)
	}
}

func TestFetchToolCallEvent_ResolvesSession(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedChain(t, s, "sess-1", "turn-1", 100)

	result := `{"content":"old"}`
	ev := temporal.ToolCallEvent{
		ID:            "tc-1",
		TurnID:        "turn-1",
		Name:          "read_file",
		ArgumentsJSON: `{"path":"/a.ts"}`,
		Result:        &result,
		Interval:      temporal.OpenAt(4000),
	}
	if err := s.PutToolCall(ctx, ev); err != nil {
		t.Fatalf("PutToolCall() failed: %v", err)
	}

	got, err := s.FetchToolCallEvent(ctx, "sess-1", "tc-1")
	if err != nil {
		t.Fatalf("FetchToolCallEvent() failed: %v", err)
	}
	if got == nil {
		t.Fatal("got = nil, want event")
	}
	if got.SessionID != "sess-1" {
		t.Errorf("SessionID = %q, want sess-1", got.SessionID)
	}
	if got.Name != "read_file" {
		t.Errorf("Name = %q, want read_file", got.Name)
	}
	if got.ArgumentsJSON != `{"path":"/a.ts"}` {
		t.Errorf("ArgumentsJSON = %q", got.ArgumentsJSON)
	}
	if got.Result == nil || *got.Result != `{"content":"old"}` {
		t.Errorf("Result = %v, want %q", got.Result, result)
	}
	if got.VTStart != 4000 {
		t.Errorf("VTStart = %d, want 4000", got.VTStart)
	}
}

func TestFetchToolCallEvent_NullResult(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedChain(t, s, "sess-1", "turn-1", 100)

	if err := s.PutToolCall(ctx, createToolCall("tc-1", "turn-1", "write_file", 4000)); err != nil {
		t.Fatalf("PutToolCall() failed: %v", err)
	}

	got, err := s.FetchToolCallEvent(ctx, "sess-1", "tc-1")
	if err != nil {
		t.Fatalf("FetchToolCallEvent() failed: %v", err)
	}
	if got == nil {
		t.Fatal("got = nil, want event")
	}
	if got.Result != nil {
		t.Errorf("Result = %q, want nil (historical null)", *got.Result)
	}
}

func TestFetchToolCallEvent_WrongSession(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedChain(t, s, "sess-1", "turn-1", 100)

	if err := s.PutToolCall(ctx, createToolCall("tc-1", "turn-1", "read_file", 4000)); err != nil {
		t.Fatalf("PutToolCall() failed: %v", err)
	}

	ev, err := s.FetchToolCallEvent(ctx, "sess-other", "tc-1")
	if err != nil {
		t.Fatalf("FetchToolCallEvent() failed: %v", err)
	}
	if ev != nil {
		t.Errorf("ev = %+v, want nil for foreign session", ev)
	}
}

func TestListSessions(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	sessions, err := s.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions() failed: %v", err)
	}
	if sessions == nil || len(sessions) != 0 {
		t.Fatalf("sessions = %v, want empty slice", sessions)
	}

	for _, sess := range []temporal.Session{
		{ID: "sess-b", Label: "two", Interval: temporal.OpenAt(2000)},
		{ID: "sess-a", Label: "one", Interval: temporal.OpenAt(1000)},
		{ID: "sess-z-gone", Label: "retracted", Interval: temporal.ClosedAt(500, 900)},
	} {
		if err := s.PutSession(ctx, sess); err != nil {
			t.Fatalf("PutSession(%s) failed: %v", sess.ID, err)
		}
	}

	sessions, err = s.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions() failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("len(sessions) = %d, want 2", len(sessions))
	}
	if sessions[0].ID != "sess-a" || sessions[1].ID != "sess-b" {
		t.Errorf("session ids = [%s, %s], want [sess-a, sess-b]", sessions[0].ID, sessions[1].ID)
	}
}
