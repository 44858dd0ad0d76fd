package temporal

import "github.com/roach88/rewind/internal/val"

// Session is the root of a causal chain. Labels are free-form.
type Session struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Interval
}

// Turn is one exchange within a session. Seq orders turns within
// their session independently of wall time.
type Turn struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Seq       int64  `json:"seq"`
	Interval
}

// ToolCallEvent is a recorded tool invocation. ArgumentsJSON is the
// argument text, canonicalized once at the write boundary; Result is
// the historical ground truth output, nil when the record held null.
// Reads return the stored text unmodified.
//
// SessionID is filled on reads (resolved through the turn); writes
// key on TurnID.
type ToolCallEvent struct {
	ID            string  `json:"id"`
	TurnID        string  `json:"turn_id"`
	SessionID     string  `json:"session_id"`
	Name          string  `json:"name"`
	ArgumentsJSON string  `json:"arguments_json"`
	Result        *string `json:"result"`
	Interval
}

// DiffHunk is one incremental unified-diff change to one file,
// causally reachable from a session through its tool call. The
// reconstruction ordering key is VTStart ascending, ties broken by ID
// under binary collation.
type DiffHunk struct {
	ID           string `json:"id"`
	ToolCallID   string `json:"tool_call_id"`
	FilePath     string `json:"file_path"`
	PatchContent string `json:"patch_content"`
	Interval
}

// Snapshot points at a full serialized workspace tree in the blob
// store. SnapshotAt is the instant the tree was captured.
type Snapshot struct {
	ID         string `json:"id"`
	SessionID  string `json:"session_id"`
	BlobRef    string `json:"blob_ref"`
	SnapshotAt int64  `json:"snapshot_at"`
	Interval
}

// ExpiredEntity is a row whose transaction time closed before the
// retention threshold, flattened for archival. Labels identifies the
// entity kind; Properties carries the row's fields.
type ExpiredEntity struct {
	ID         string     `json:"id"`
	Labels     []string   `json:"labels"`
	Properties val.Object `json:"properties"`
	TTEnd      int64      `json:"tt_end"`
}
