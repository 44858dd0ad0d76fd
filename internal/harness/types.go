package harness

import (
	"github.com/roach88/rewind/internal/prune"
	"github.com/roach88/rewind/internal/rehydrate"
	"github.com/roach88/rewind/internal/replay"
)

// Result holds the complete outcome of a scenario run: one outcome per
// step plus any assertion failures.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool

	// Scenario is the scenario name.
	Scenario string

	// Steps holds one outcome per executed step, in step order.
	Steps []StepOutcome

	// Errors holds assertion failure messages.
	Errors []string
}

// NewResult creates an empty passing result for a scenario.
func NewResult(scenario string) *Result {
	return &Result{
		Pass:     true,
		Scenario: scenario,
		Steps:    []StepOutcome{},
		Errors:   []string{},
	}
}

// AddError records an assertion failure and marks the result failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// StepOutcome records what one step produced. Exactly one of the
// operation fields is set, matching Op.
type StepOutcome struct {
	Op string

	Rehydrate *RehydrateOutcome
	Replay    *ReplayOutcome
	Prune     *PruneOutcome
}

// RehydrateOutcome captures a rehydrate step's result. The runner
// performs every rehydrate twice against the unchanged store;
// Idempotent records whether both passes produced the same tree.
type RehydrateOutcome struct {
	// Session is the scenario-local session handle.
	Session string

	// At is the resolved target time.
	At int64

	// SnapshotAt is the baseline snapshot's time, 0 when
	// reconstruction started from the empty root.
	SnapshotAt int64

	// Recovered is true when a corrupt snapshot payload was replaced
	// by the empty root.
	Recovered bool

	// Applied counts diffs applied on top of the baseline.
	Applied int

	// Skipped lists diffs that could not be applied.
	Skipped []rehydrate.SkippedPatch

	// Files is the reconstructed tree flattened to path → content.
	Files map[string]string

	// Idempotent is true when the second pass reproduced the first
	// pass's tree exactly, modification times included.
	Idempotent bool
}

// ReplayOutcome captures a replay step's result.
type ReplayOutcome struct {
	Session string
	Event   string
	Report  replay.Report
}

// PruneOutcome captures a prune step's result together with the
// evidence needed to check the archive against the deletions:
// DeletedIDs is every row id the pruner asked the store to delete, and
// ArchivedIDs is every row id found in the saved archive.
type PruneOutcome struct {
	Result      prune.Result
	DeletedIDs  []string
	ArchivedIDs []string
}
