package replay

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/rewind/internal/rehydrate"
	"github.com/roach88/rewind/internal/temporal"
	"github.com/roach88/rewind/internal/val"
)

// EventSource fetches recorded tool call events. Absence is a
// structured (nil, nil) result; a returned error is a store failure.
type EventSource interface {
	FetchToolCallEvent(ctx context.Context, sessionID, eventID string) (*temporal.ToolCallEvent, error)
}

// WorkspaceSource reconstructs a session's workspace at an instant.
// Implemented by rehydrate.Rehydrator.
type WorkspaceSource interface {
	Rehydrate(ctx context.Context, sessionID string, targetTime int64) (*rehydrate.Result, error)
}

// Report is the outcome of one replay. Success reports whether replay
// ran to comparison; Matches reports whether the replayed output
// structurally equals the historical one. A divergence is Success true
// with Matches false, never a failure.
type Report struct {
	Success        bool      `json:"success"`
	Matches        bool      `json:"matches"`
	OriginalOutput val.Value `json:"original_output,omitempty"`
	ReplayOutput   val.Value `json:"replay_output,omitempty"`
	SkippedPatches int       `json:"skipped_patches"`
	Error          string    `json:"error,omitempty"`
}

// Engine replays recorded tool calls.
type Engine struct {
	events     EventSource
	workspaces WorkspaceSource
}

// New creates an Engine over the given event source and workspace
// source.
func New(events EventSource, workspaces WorkspaceSource) *Engine {
	return &Engine{
		events:     events,
		workspaces: workspaces,
	}
}

// Replay re-executes one recorded tool call and compares outputs.
//
// The workspace is reconstructed at the instant strictly before the
// call's valid time, so the tool sees exactly the state it saw
// historically. Execution runs under a clock frozen at the call's
// valid time and a random source seeded from it; both are scope
// values, so concurrent replays share nothing.
//
// Replay never returns an error and never panics across this
// boundary: every failure is captured in the Report.
func (e *Engine) Replay(ctx context.Context, sessionID, eventID string) (report Report) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("replay panicked",
				"session_id", sessionID,
				"event_id", eventID,
				"panic", r)
			report = Report{Error: fmt.Sprintf("replay panicked: %v", r)}
		}
	}()

	slog.Debug("replay looking up event",
		"session_id", sessionID,
		"event_id", eventID)

	event, err := e.events.FetchToolCallEvent(ctx, sessionID, eventID)
	if err != nil {
		return Report{Error: fmt.Sprintf("fetch tool call event: %v", err)}
	}
	if event == nil {
		return Report{Error: fmt.Sprintf("tool call event not found: %s", eventID)}
	}

	// The state the tool saw: everything strictly before its valid time.
	targetTime := event.VTStart - 1
	slog.Debug("replay rehydrating workspace",
		"session_id", sessionID,
		"target_time", targetTime)

	ws, err := e.workspaces.Rehydrate(ctx, sessionID, targetTime)
	if err != nil {
		return Report{Error: fmt.Sprintf("rehydrate workspace: %v", err)}
	}
	report.SkippedPatches = len(ws.Skipped)

	args, err := parseArguments(event.ArgumentsJSON)
	if err != nil {
		report.Error = fmt.Sprintf("parse tool arguments: %v", err)
		return report
	}

	// Decode the historical ground truth before touching the tree. A
	// corrupt record means the comparison would be meaningless.
	original := val.Value(val.Null{})
	if event.Result != nil {
		original, err = val.Unmarshal([]byte(*event.Result))
		if err != nil {
			report.Error = fmt.Sprintf("decode historical result: %v", err)
			return report
		}
	}

	scope := ToolContext{
		Tree:  ws.Tree,
		Clock: FixedClock(event.VTStart),
		Rand:  NewLCG(event.VTStart),
	}
	slog.Debug("replay executing tool",
		"event_id", eventID,
		"tool", event.Name)

	// Tool failures are outputs, not engine failures; the tree is
	// exclusively ours, so writes never touch the store.
	replayed := executeTool(scope, event.Name, args)

	report.Success = true
	report.OriginalOutput = original
	report.ReplayOutput = replayed
	report.Matches = val.Equal(original, replayed)

	slog.Debug("replay compared outputs",
		"session_id", sessionID,
		"event_id", eventID,
		"matches", report.Matches,
		"skipped_patches", report.SkippedPatches)

	return report
}

// parseArguments decodes the recorded argument text, which must be a
// JSON object.
func parseArguments(raw string) (val.Object, error) {
	v, err := val.Unmarshal([]byte(raw))
	if err != nil {
		return nil, err
	}
	obj, ok := v.(val.Object)
	if !ok {
		return nil, fmt.Errorf("tool arguments must be a JSON object")
	}
	return obj, nil
}
