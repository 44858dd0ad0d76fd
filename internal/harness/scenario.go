package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Step operation names.
const (
	StepRehydrate = "rehydrate"
	StepReplay    = "replay"
	StepPrune     = "prune"
)

// Assertion type constants.
const (
	AssertTreeFile              = "tree_file"
	AssertTreeMissing           = "tree_missing"
	AssertReplayMatches         = "replay_matches"
	AssertReplaySuccess         = "replay_success"
	AssertSkippedCount          = "skipped_count"
	AssertPrunedDeleted         = "pruned_deleted"
	AssertArchivedEqualsDeleted = "archived_equals_deleted"
	AssertRehydrateIdempotent   = "rehydrate_idempotent"
)

// Scenario defines a complete conformance test case loaded from YAML.
//
// Rows and steps refer to sessions and events by scenario-local
// handles ("s1", "e1"); the runner maps handles to generated row ids,
// so scenario files never depend on run-specific identifiers.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario verifies.
	Description string `yaml:"description"`

	// Now is the frozen clock instant in epoch milliseconds. Only
	// pruning consults the clock; scenarios without prune steps can
	// leave it zero.
	Now int64 `yaml:"now,omitempty"`

	// Fixture is the history seeded before any step runs.
	Fixture Fixture `yaml:"fixture,omitempty"`

	// Steps are executed in order against the seeded store.
	Steps []Step `yaml:"steps"`

	// Assertions are evaluated against step outcomes after all steps
	// complete.
	Assertions []Assertion `yaml:"assertions"`
}

// Fixture describes the seeded history. Everything is written through
// the real store writers; snapshots go through the real codec into the
// blob store.
type Fixture struct {
	Sessions  []SessionRow  `yaml:"sessions,omitempty"`
	Snapshots []SnapshotRow `yaml:"snapshots,omitempty"`
	Diffs     []DiffRow     `yaml:"diffs,omitempty"`
	Events    []EventRow    `yaml:"events,omitempty"`
	Expired   []ExpiredRow  `yaml:"expired,omitempty"`
}

// SessionRow seeds one current session.
type SessionRow struct {
	// Session is the scenario-local handle other rows refer to.
	Session string `yaml:"session"`
	Label   string `yaml:"label,omitempty"`

	// At is the instant the session opened, epoch milliseconds.
	At int64 `yaml:"at"`
}

// SnapshotRow seeds one workspace snapshot, given as a path → content
// map. The runner builds the tree, encodes it with the wire codec, and
// saves the payload to the blob store.
type SnapshotRow struct {
	Session string `yaml:"session"`

	// At is both snapshot_at and the files' modification time.
	At int64 `yaml:"at"`

	Files map[string]string `yaml:"files,omitempty"`
}

// DiffRow seeds one diff hunk carrying unified-diff text. Unless the
// diff names an event to attach to, the runner creates a bookkeeping
// tool call as its parent.
type DiffRow struct {
	Session string `yaml:"session"`

	// Event optionally attaches the diff to a fixture event's tool
	// call instead of a synthesized parent.
	Event string `yaml:"event,omitempty"`

	Path  string `yaml:"path"`
	Patch string `yaml:"patch"`
	At    int64  `yaml:"at"`
}

// EventRow seeds one recorded tool call.
type EventRow struct {
	// Event is the scenario-local handle replay steps refer to.
	Event   string `yaml:"event"`
	Session string `yaml:"session"`
	Tool    string `yaml:"tool"`

	// Args is the recorded argument object; omitted means no
	// arguments. Stored as canonical JSON.
	Args map[string]interface{} `yaml:"args,omitempty"`

	// Result is the recorded output. Omitted (or null) records a null
	// historical output.
	Result interface{} `yaml:"result,omitempty"`

	At int64 `yaml:"at"`
}

// ExpiredRow seeds superseded session versions whose transaction time
// closed at TTEnd, the raw material for prune steps. Count repeats the
// row; it defaults to 1.
type ExpiredRow struct {
	Label string `yaml:"label,omitempty"`
	At    int64  `yaml:"at,omitempty"`
	TTEnd int64  `yaml:"tt_end"`
	Count int    `yaml:"count,omitempty"`
}

// Step is one operation to execute. Op selects which fields apply.
type Step struct {
	// Op is "rehydrate", "replay", or "prune".
	Op string `yaml:"op"`

	// Session names the target session (rehydrate, replay).
	Session string `yaml:"session,omitempty"`

	// At is the rehydrate target time; omitted means latest.
	At *int64 `yaml:"at,omitempty"`

	// Event names the tool call to replay.
	Event string `yaml:"event,omitempty"`

	// Prune parameters; zero values mean the pruner's defaults
	// (retention 0 expires everything closed before now).
	RetentionMs int64 `yaml:"retention_ms,omitempty"`
	BatchSize   int   `yaml:"batch_size,omitempty"`
	MaxBatches  int   `yaml:"max_batches,omitempty"`
	Archive     bool  `yaml:"archive,omitempty"`
}

// Assertion checks one property of a step's outcome. Type selects
// which fields apply; Step indexes into the scenario's step list.
type Assertion struct {
	Type string `yaml:"type"`

	// Step is the 0-based index of the step the assertion inspects.
	Step int `yaml:"step,omitempty"`

	// Path and Content serve tree_file and tree_missing. Content
	// omitted asserts an empty file.
	Path    string `yaml:"path,omitempty"`
	Content string `yaml:"content,omitempty"`

	// Want serves replay_matches and replay_success; omitted means
	// true.
	Want *bool `yaml:"want,omitempty"`

	// Count serves skipped_count (skips expected) and pruned_deleted
	// (deletions expected).
	Count int `yaml:"count,omitempty"`

	// Batches optionally pins the batch count for pruned_deleted.
	Batches *int `yaml:"batches,omitempty"`
}

// LoadScenario reads and validates a scenario from a YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict decoding catches typos like "assertion:" vs "assertions:"
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var scenario Scenario
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("scenario validation failed: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks required fields and handle references so
// failures land at load time with positional messages instead of deep
// inside a run.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Now < 0 {
		return fmt.Errorf("now cannot be negative")
	}

	sessions, events, err := validateFixture(&s.Fixture)
	if err != nil {
		return err
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required (at least one step)")
	}
	for i := range s.Steps {
		if err := validateStep(i, &s.Steps[i], sessions, events); err != nil {
			return err
		}
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required (at least one assertion)")
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i], s.Steps); err != nil {
			return err
		}
	}

	return nil
}

// validateFixture checks fixture rows and returns the declared session
// handles and the event handle → session handle mapping for step
// validation.
func validateFixture(f *Fixture) (map[string]bool, map[string]string, error) {
	sessions := make(map[string]bool, len(f.Sessions))
	for i, row := range f.Sessions {
		if row.Session == "" {
			return nil, nil, fmt.Errorf("fixture.sessions[%d]: session handle is required", i)
		}
		if sessions[row.Session] {
			return nil, nil, fmt.Errorf("fixture.sessions[%d]: duplicate session handle %q", i, row.Session)
		}
		if row.At < 0 {
			return nil, nil, fmt.Errorf("fixture.sessions[%d]: at cannot be negative", i)
		}
		sessions[row.Session] = true
	}

	events := make(map[string]string, len(f.Events))
	for i, row := range f.Events {
		if row.Event == "" {
			return nil, nil, fmt.Errorf("fixture.events[%d]: event handle is required", i)
		}
		if _, dup := events[row.Event]; dup {
			return nil, nil, fmt.Errorf("fixture.events[%d]: duplicate event handle %q", i, row.Event)
		}
		if !sessions[row.Session] {
			return nil, nil, fmt.Errorf("fixture.events[%d]: unknown session %q", i, row.Session)
		}
		if row.Tool == "" {
			return nil, nil, fmt.Errorf("fixture.events[%d]: tool is required", i)
		}
		if row.At < 0 {
			return nil, nil, fmt.Errorf("fixture.events[%d]: at cannot be negative", i)
		}
		events[row.Event] = row.Session
	}

	for i, row := range f.Snapshots {
		if !sessions[row.Session] {
			return nil, nil, fmt.Errorf("fixture.snapshots[%d]: unknown session %q", i, row.Session)
		}
		if row.At < 0 {
			return nil, nil, fmt.Errorf("fixture.snapshots[%d]: at cannot be negative", i)
		}
	}

	for i, row := range f.Diffs {
		if !sessions[row.Session] {
			return nil, nil, fmt.Errorf("fixture.diffs[%d]: unknown session %q", i, row.Session)
		}
		if row.Path == "" {
			return nil, nil, fmt.Errorf("fixture.diffs[%d]: path is required", i)
		}
		if row.Patch == "" {
			return nil, nil, fmt.Errorf("fixture.diffs[%d]: patch is required", i)
		}
		if row.At < 0 {
			return nil, nil, fmt.Errorf("fixture.diffs[%d]: at cannot be negative", i)
		}
		if row.Event != "" {
			owner, ok := events[row.Event]
			if !ok {
				return nil, nil, fmt.Errorf("fixture.diffs[%d]: unknown event %q", i, row.Event)
			}
			if owner != row.Session {
				return nil, nil, fmt.Errorf("fixture.diffs[%d]: event %q belongs to session %q", i, row.Event, owner)
			}
		}
	}

	for i, row := range f.Expired {
		if row.TTEnd <= 0 {
			return nil, nil, fmt.Errorf("fixture.expired[%d]: tt_end must be positive", i)
		}
		if row.At > row.TTEnd {
			return nil, nil, fmt.Errorf("fixture.expired[%d]: at %d exceeds tt_end %d", i, row.At, row.TTEnd)
		}
		if row.Count < 0 {
			return nil, nil, fmt.Errorf("fixture.expired[%d]: count cannot be negative", i)
		}
	}

	return sessions, events, nil
}

func validateStep(index int, step *Step, sessions map[string]bool, events map[string]string) error {
	switch step.Op {
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)

	case StepRehydrate:
		if step.Session == "" {
			return fmt.Errorf("steps[%d]: session is required", index)
		}
		if !sessions[step.Session] {
			return fmt.Errorf("steps[%d]: unknown session %q", index, step.Session)
		}
		if step.At != nil && *step.At < 0 {
			return fmt.Errorf("steps[%d]: at cannot be negative", index)
		}

	case StepReplay:
		if step.Session == "" {
			return fmt.Errorf("steps[%d]: session is required", index)
		}
		if !sessions[step.Session] {
			return fmt.Errorf("steps[%d]: unknown session %q", index, step.Session)
		}
		if step.Event == "" {
			return fmt.Errorf("steps[%d]: event is required", index)
		}
		owner, ok := events[step.Event]
		if !ok {
			return fmt.Errorf("steps[%d]: unknown event %q", index, step.Event)
		}
		if owner != step.Session {
			return fmt.Errorf("steps[%d]: event %q belongs to session %q", index, step.Event, owner)
		}

	case StepPrune:
		if step.RetentionMs < 0 {
			return fmt.Errorf("steps[%d]: retention_ms cannot be negative", index)
		}
		if step.BatchSize < 0 {
			return fmt.Errorf("steps[%d]: batch_size cannot be negative", index)
		}
		if step.MaxBatches < 0 {
			return fmt.Errorf("steps[%d]: max_batches cannot be negative", index)
		}

	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, step.Op)
	}

	return nil
}

func validateAssertion(index int, a *Assertion, steps []Step) error {
	if a.Step < 0 || a.Step >= len(steps) {
		return fmt.Errorf("assertions[%d]: step %d out of range (scenario has %d steps)", index, a.Step, len(steps))
	}
	op := steps[a.Step].Op

	switch a.Type {
	case AssertTreeFile, AssertTreeMissing:
		if op != StepRehydrate {
			return fmt.Errorf("assertions[%d]: %s requires a rehydrate step, steps[%d] is %q", index, a.Type, a.Step, op)
		}
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required", index)
		}

	case AssertReplayMatches, AssertReplaySuccess:
		if op != StepReplay {
			return fmt.Errorf("assertions[%d]: %s requires a replay step, steps[%d] is %q", index, a.Type, a.Step, op)
		}

	case AssertSkippedCount:
		if op != StepRehydrate && op != StepReplay {
			return fmt.Errorf("assertions[%d]: %s requires a rehydrate or replay step, steps[%d] is %q", index, a.Type, a.Step, op)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count cannot be negative", index)
		}

	case AssertPrunedDeleted:
		if op != StepPrune {
			return fmt.Errorf("assertions[%d]: %s requires a prune step, steps[%d] is %q", index, a.Type, a.Step, op)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count cannot be negative", index)
		}
		if a.Batches != nil && *a.Batches < 0 {
			return fmt.Errorf("assertions[%d]: batches cannot be negative", index)
		}

	case AssertArchivedEqualsDeleted:
		if op != StepPrune {
			return fmt.Errorf("assertions[%d]: %s requires a prune step, steps[%d] is %q", index, a.Type, a.Step, op)
		}

	case AssertRehydrateIdempotent:
		if op != StepRehydrate {
			return fmt.Errorf("assertions[%d]: %s requires a rehydrate step, steps[%d] is %q", index, a.Type, a.Step, op)
		}

	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
