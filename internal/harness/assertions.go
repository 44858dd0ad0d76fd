package harness

import (
	"fmt"

	"github.com/roach88/rewind/internal/val"
)

// AssertionError reports one failed assertion with what was expected
// and what the step actually produced.
type AssertionError struct {
	Type     string
	Step     int
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion failed: %s (step %d)\n  expected: %s\n  actual: %s",
		e.Type, e.Step, e.Expected, e.Actual)
}

// EvaluateAssertions checks every assertion against the step outcomes
// and returns all failure messages. Evaluation never stops early; a
// failing scenario reports every broken assertion at once.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string

	for i := range assertions {
		a := &assertions[i]

		var err error
		switch a.Type {
		case AssertTreeFile:
			err = assertTreeFile(result, a)
		case AssertTreeMissing:
			err = assertTreeMissing(result, a)
		case AssertReplayMatches:
			err = assertReplayMatches(result, a)
		case AssertReplaySuccess:
			err = assertReplaySuccess(result, a)
		case AssertSkippedCount:
			err = assertSkippedCount(result, a)
		case AssertPrunedDeleted:
			err = assertPrunedDeleted(result, a)
		case AssertArchivedEqualsDeleted:
			err = assertArchivedEqualsDeleted(result, a)
		case AssertRehydrateIdempotent:
			err = assertRehydrateIdempotent(result, a)
		default:
			err = fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			failures = append(failures, err.Error())
		}
	}

	return failures
}

// The outcome fetchers keep runtime guards even though LoadScenario
// validates step kinds: tests hand-build Results and call
// EvaluateAssertions directly.

func rehydrateOutcome(result *Result, a *Assertion) (*RehydrateOutcome, error) {
	if a.Step < 0 || a.Step >= len(result.Steps) {
		return nil, fmt.Errorf("%s: step %d out of range", a.Type, a.Step)
	}
	step := result.Steps[a.Step]
	if step.Rehydrate == nil {
		return nil, fmt.Errorf("%s: step %d is a %s step, not rehydrate", a.Type, a.Step, step.Op)
	}
	return step.Rehydrate, nil
}

func replayOutcome(result *Result, a *Assertion) (*ReplayOutcome, error) {
	if a.Step < 0 || a.Step >= len(result.Steps) {
		return nil, fmt.Errorf("%s: step %d out of range", a.Type, a.Step)
	}
	step := result.Steps[a.Step]
	if step.Replay == nil {
		return nil, fmt.Errorf("%s: step %d is a %s step, not replay", a.Type, a.Step, step.Op)
	}
	return step.Replay, nil
}

func pruneOutcome(result *Result, a *Assertion) (*PruneOutcome, error) {
	if a.Step < 0 || a.Step >= len(result.Steps) {
		return nil, fmt.Errorf("%s: step %d out of range", a.Type, a.Step)
	}
	step := result.Steps[a.Step]
	if step.Prune == nil {
		return nil, fmt.Errorf("%s: step %d is a %s step, not prune", a.Type, a.Step, step.Op)
	}
	return step.Prune, nil
}

func assertTreeFile(result *Result, a *Assertion) error {
	outcome, err := rehydrateOutcome(result, a)
	if err != nil {
		return err
	}

	content, ok := outcome.Files[a.Path]
	if !ok {
		return &AssertionError{
			Type:     a.Type,
			Step:     a.Step,
			Expected: fmt.Sprintf("file %s with content %q", a.Path, a.Content),
			Actual:   "path not present",
		}
	}
	if content != a.Content {
		return &AssertionError{
			Type:     a.Type,
			Step:     a.Step,
			Expected: fmt.Sprintf("file %s with content %q", a.Path, a.Content),
			Actual:   fmt.Sprintf("content %q", content),
		}
	}
	return nil
}

func assertTreeMissing(result *Result, a *Assertion) error {
	outcome, err := rehydrateOutcome(result, a)
	if err != nil {
		return err
	}

	if content, ok := outcome.Files[a.Path]; ok {
		return &AssertionError{
			Type:     a.Type,
			Step:     a.Step,
			Expected: fmt.Sprintf("no file at %s", a.Path),
			Actual:   fmt.Sprintf("file present with content %q", content),
		}
	}
	return nil
}

func assertReplayMatches(result *Result, a *Assertion) error {
	outcome, err := replayOutcome(result, a)
	if err != nil {
		return err
	}

	want := true
	if a.Want != nil {
		want = *a.Want
	}
	if outcome.Report.Matches != want {
		return &AssertionError{
			Type:     a.Type,
			Step:     a.Step,
			Expected: fmt.Sprintf("matches=%t", want),
			Actual: fmt.Sprintf("matches=%t (original %s, replayed %s)",
				outcome.Report.Matches,
				renderOutput(outcome.Report.OriginalOutput),
				renderOutput(outcome.Report.ReplayOutput)),
		}
	}
	return nil
}

func assertReplaySuccess(result *Result, a *Assertion) error {
	outcome, err := replayOutcome(result, a)
	if err != nil {
		return err
	}

	want := true
	if a.Want != nil {
		want = *a.Want
	}
	if outcome.Report.Success != want {
		actual := fmt.Sprintf("success=%t", outcome.Report.Success)
		if outcome.Report.Error != "" {
			actual += fmt.Sprintf(" (error: %s)", outcome.Report.Error)
		}
		return &AssertionError{
			Type:     a.Type,
			Step:     a.Step,
			Expected: fmt.Sprintf("success=%t", want),
			Actual:   actual,
		}
	}
	return nil
}

func assertSkippedCount(result *Result, a *Assertion) error {
	if a.Step < 0 || a.Step >= len(result.Steps) {
		return fmt.Errorf("%s: step %d out of range", a.Type, a.Step)
	}
	step := result.Steps[a.Step]

	var got int
	switch {
	case step.Rehydrate != nil:
		got = len(step.Rehydrate.Skipped)
	case step.Replay != nil:
		got = step.Replay.Report.SkippedPatches
	default:
		return fmt.Errorf("%s: step %d is a %s step, not rehydrate or replay", a.Type, a.Step, step.Op)
	}

	if got != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Step:     a.Step,
			Expected: fmt.Sprintf("%d skipped patches", a.Count),
			Actual:   fmt.Sprintf("%d skipped patches", got),
		}
	}
	return nil
}

func assertPrunedDeleted(result *Result, a *Assertion) error {
	outcome, err := pruneOutcome(result, a)
	if err != nil {
		return err
	}

	if outcome.Result.Deleted != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Step:     a.Step,
			Expected: fmt.Sprintf("%d rows deleted", a.Count),
			Actual:   fmt.Sprintf("%d rows deleted", outcome.Result.Deleted),
		}
	}
	if a.Batches != nil && outcome.Result.Batches != *a.Batches {
		return &AssertionError{
			Type:     a.Type,
			Step:     a.Step,
			Expected: fmt.Sprintf("%d batches", *a.Batches),
			Actual:   fmt.Sprintf("%d batches", outcome.Result.Batches),
		}
	}
	return nil
}

// assertArchivedEqualsDeleted checks both directions of the archive
// guarantee: the counts agree, and every row in the archive is among
// the ids actually deleted in the same run.
func assertArchivedEqualsDeleted(result *Result, a *Assertion) error {
	outcome, err := pruneOutcome(result, a)
	if err != nil {
		return err
	}

	if outcome.Result.Archived != outcome.Result.Deleted {
		return &AssertionError{
			Type:     a.Type,
			Step:     a.Step,
			Expected: "archived count equal to deleted count",
			Actual:   fmt.Sprintf("archived %d, deleted %d", outcome.Result.Archived, outcome.Result.Deleted),
		}
	}

	deleted := make(map[string]bool, len(outcome.DeletedIDs))
	for _, id := range outcome.DeletedIDs {
		deleted[id] = true
	}
	for _, id := range outcome.ArchivedIDs {
		if !deleted[id] {
			return &AssertionError{
				Type:     a.Type,
				Step:     a.Step,
				Expected: "every archived row among the deleted ids",
				Actual:   fmt.Sprintf("archived row %s was not deleted", id),
			}
		}
	}
	return nil
}

func assertRehydrateIdempotent(result *Result, a *Assertion) error {
	outcome, err := rehydrateOutcome(result, a)
	if err != nil {
		return err
	}

	if !outcome.Idempotent {
		return &AssertionError{
			Type:     a.Type,
			Step:     a.Step,
			Expected: "identical trees from both rehydration passes",
			Actual:   "second pass produced a different tree",
		}
	}
	return nil
}

// renderOutput shows a replay output in failure messages. nil means
// the report carried no output.
func renderOutput(v val.Value) string {
	if v == nil {
		return "(none)"
	}
	data, err := val.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("(unrenderable: %v)", err)
	}
	return string(data)
}
