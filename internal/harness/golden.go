package harness

import (
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/rewind/internal/val"
)

// Summary flattens the result into a value rendered as canonical JSON
// for golden comparison. Row ids and blob refs never appear in the
// summary; both are generated per run, so the rendered bytes are
// stable across runs.
func (r *Result) Summary() val.Object {
	steps := make(val.Array, len(r.Steps))
	for i := range r.Steps {
		steps[i] = r.Steps[i].summaryValue()
	}
	return val.Object{
		"scenario": val.String(r.Scenario),
		"steps":    steps,
	}
}

func (s *StepOutcome) summaryValue() val.Value {
	switch {
	case s.Rehydrate != nil:
		return s.Rehydrate.summaryValue()
	case s.Replay != nil:
		return s.Replay.summaryValue()
	case s.Prune != nil:
		return s.Prune.summaryValue()
	default:
		return val.Object{"op": val.String(s.Op)}
	}
}

func (o *RehydrateOutcome) summaryValue() val.Value {
	skipped := make(val.Array, len(o.Skipped))
	for i, s := range o.Skipped {
		skipped[i] = val.Object{
			"file_path": val.String(s.FilePath),
			"vt_start":  val.Int(s.VTStart),
			"reason":    val.String(s.Reason),
		}
	}

	files := make(val.Object, len(o.Files))
	for p, content := range o.Files {
		files[p] = val.String(content)
	}

	return val.Object{
		"op":          val.String(StepRehydrate),
		"session":     val.String(o.Session),
		"at":          val.Int(o.At),
		"snapshot_at": val.Int(o.SnapshotAt),
		"recovered":   val.Bool(o.Recovered),
		"applied":     val.Int(int64(o.Applied)),
		"skipped":     skipped,
		"files":       files,
		"idempotent":  val.Bool(o.Idempotent),
	}
}

func (o *ReplayOutcome) summaryValue() val.Value {
	summary := val.Object{
		"op":              val.String(StepReplay),
		"session":         val.String(o.Session),
		"event":           val.String(o.Event),
		"success":         val.Bool(o.Report.Success),
		"matches":         val.Bool(o.Report.Matches),
		"skipped_patches": val.Int(int64(o.Report.SkippedPatches)),
	}
	if o.Report.OriginalOutput != nil {
		summary["original"] = o.Report.OriginalOutput
	}
	if o.Report.ReplayOutput != nil {
		summary["replayed"] = o.Report.ReplayOutput
	}
	if o.Report.Error != "" {
		summary["error"] = val.String(o.Report.Error)
	}
	return summary
}

func (o *PruneOutcome) summaryValue() val.Value {
	return val.Object{
		"op":       val.String(StepPrune),
		"archived": val.Int(int64(o.Result.Archived)),
		"deleted":  val.Int(int64(o.Result.Deleted)),
		"batches":  val.Int(int64(o.Result.Batches)),
	}
}

// AssertGolden renders the result summary as canonical JSON and
// compares it byte for byte against testdata/golden/<name>.golden.
// Regenerate the files with:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, name string, result *Result) error {
	data, err := val.MarshalCanonical(result.Summary())
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}

// RunWithGolden executes a scenario and compares its summary against
// the golden file named after the scenario. The result comes back so
// callers can also check Pass and Errors.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}
