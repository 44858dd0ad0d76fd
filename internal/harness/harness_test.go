package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rewind/internal/tree"
	"github.com/roach88/rewind/internal/val"
)

func int64p(v int64) *int64 { return &v }
func boolp(v bool) *bool    { return &v }
func intp(v int) *int       { return &v }

// replacePatch builds a single-hunk unified diff replacing old with
// new for a one-line file without a trailing newline.
func replacePatch(old, new string) string {
	return "@@ -1 +1 @@\n-" + old + "\n\\ No newline at end of file\n+" + new + "\n\\ No newline at end of file\n"
}

func TestRun_EmptyHistory(t *testing.T) {
	scenario := &Scenario{
		Name:        "empty_history",
		Description: "No snapshot and no diffs reconstruct the empty root.",
		Fixture: Fixture{
			Sessions: []SessionRow{{Session: "s1", Label: "main", At: 1000}},
		},
		Steps: []Step{
			{Op: StepRehydrate, Session: "s1", At: int64p(5000)},
		},
		Assertions: []Assertion{
			{Type: AssertTreeMissing, Step: 0, Path: "/a.ts"},
			{Type: AssertSkippedCount, Step: 0, Count: 0},
			{Type: AssertRehydrateIdempotent, Step: 0},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "assertion failures: %v", result.Errors)

	require.Len(t, result.Steps, 1)
	outcome := result.Steps[0].Rehydrate
	require.NotNil(t, outcome)
	assert.Empty(t, outcome.Files)
	assert.Zero(t, outcome.SnapshotAt)
	assert.True(t, outcome.Idempotent)
}

func TestRun_SnapshotPlusDiff(t *testing.T) {
	scenario := &Scenario{
		Name:        "snapshot_plus_diff",
		Description: "A diff after the snapshot is visible only from its valid time on.",
		Fixture: Fixture{
			Sessions:  []SessionRow{{Session: "s1", At: 1000}},
			Snapshots: []SnapshotRow{{Session: "s1", At: 1000, Files: map[string]string{"/a.ts": "old"}}},
			Diffs:     []DiffRow{{Session: "s1", Path: "/a.ts", Patch: replacePatch("old", "new"), At: 2000}},
		},
		Steps: []Step{
			{Op: StepRehydrate, Session: "s1", At: int64p(1500)},
			{Op: StepRehydrate, Session: "s1", At: int64p(2500)},
		},
		Assertions: []Assertion{
			{Type: AssertTreeFile, Step: 0, Path: "/a.ts", Content: "old"},
			{Type: AssertTreeFile, Step: 1, Path: "/a.ts", Content: "new"},
			{Type: AssertRehydrateIdempotent, Step: 1},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "assertion failures: %v", result.Errors)

	require.Len(t, result.Steps, 2)
	assert.Equal(t, 0, result.Steps[0].Rehydrate.Applied)
	assert.Equal(t, 1, result.Steps[1].Rehydrate.Applied)
	assert.Equal(t, int64(1000), result.Steps[1].Rehydrate.SnapshotAt)
}

func TestRun_ReplayDivergence(t *testing.T) {
	scenario := &Scenario{
		Name:        "replay_divergence",
		Description: "A recorded failure diverges from a replay that succeeds.",
		Fixture: Fixture{
			Sessions: []SessionRow{{Session: "s1", At: 1000}},
			Events: []EventRow{{
				Event:   "e1",
				Session: "s1",
				Tool:    "write_file",
				Args:    map[string]interface{}{"path": "/out.txt", "content": "data"},
				Result:  map[string]interface{}{"success": false},
				At:      2000,
			}},
		},
		Steps: []Step{{Op: StepReplay, Session: "s1", Event: "e1"}},
		Assertions: []Assertion{
			{Type: AssertReplaySuccess, Step: 0},
			{Type: AssertReplayMatches, Step: 0, Want: boolp(false)},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "assertion failures: %v", result.Errors)

	report := result.Steps[0].Replay.Report
	assert.True(t, report.Success)
	assert.False(t, report.Matches)
	assert.Equal(t, val.Object{"success": val.Bool(false)}, report.OriginalOutput)
	assert.Equal(t, val.Object{"success": val.Bool(true)}, report.ReplayOutput)
}

func TestRun_PruneArchives(t *testing.T) {
	scenario := &Scenario{
		Name:        "prune_archives",
		Description: "Archival captures every row deleted in the same run.",
		Now:         5000,
		Fixture: Fixture{
			Sessions: []SessionRow{{Session: "s1", Label: "current", At: 1000}},
			Expired:  []ExpiredRow{{Label: "superseded", At: 50, TTEnd: 100, Count: 3}},
		},
		Steps: []Step{{Op: StepPrune, RetentionMs: 1000, Archive: true}},
		Assertions: []Assertion{
			{Type: AssertPrunedDeleted, Step: 0, Count: 3, Batches: intp(1)},
			{Type: AssertArchivedEqualsDeleted, Step: 0},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "assertion failures: %v", result.Errors)

	outcome := result.Steps[0].Prune
	require.NotNil(t, outcome)
	assert.Equal(t, 3, outcome.Result.Archived)
	assert.Equal(t, 3, outcome.Result.Deleted)
	assert.NotEmpty(t, outcome.Result.ArchiveRef)
	assert.ElementsMatch(t, outcome.ArchivedIDs, outcome.DeletedIDs)
}

func TestRun_AssertionFailureDoesNotError(t *testing.T) {
	scenario := &Scenario{
		Name:        "failing_assertion",
		Description: "Assertion failures mark the result failed without a run error.",
		Fixture: Fixture{
			Sessions: []SessionRow{{Session: "s1", At: 1000}},
		},
		Steps: []Step{{Op: StepRehydrate, Session: "s1"}},
		Assertions: []Assertion{
			{Type: AssertTreeFile, Step: 0, Path: "/a.ts", Content: "old"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "tree_file")
	assert.Contains(t, result.Errors[0], "path not present")
}

func TestRun_FreshStatePerRun(t *testing.T) {
	scenario := &Scenario{
		Name:        "fresh_state",
		Description: "Each run seeds its own store, so deletions never leak across runs.",
		Now:         5000,
		Fixture: Fixture{
			Expired: []ExpiredRow{{At: 50, TTEnd: 100, Count: 4}},
		},
		Steps: []Step{{Op: StepPrune, RetentionMs: 1000}},
		Assertions: []Assertion{
			{Type: AssertPrunedDeleted, Step: 0, Count: 4},
		},
	}

	for run := 0; run < 2; run++ {
		result, err := Run(scenario)
		require.NoError(t, err, "run %d", run)
		assert.True(t, result.Pass, "run %d failures: %v", run, result.Errors)
		assert.Equal(t, 4, result.Steps[0].Prune.Result.Deleted, "run %d", run)
	}
}

func TestRun_SkippedPatchRecorded(t *testing.T) {
	scenario := &Scenario{
		Name:        "skipped_patch",
		Description: "A diff whose context does not match is skipped and counted.",
		Fixture: Fixture{
			Sessions: []SessionRow{{Session: "s1", At: 1000}},
			Diffs:    []DiffRow{{Session: "s1", Path: "/ghost.ts", Patch: replacePatch("x", "y"), At: 2000}},
		},
		Steps: []Step{{Op: StepRehydrate, Session: "s1", At: int64p(3000)}},
		Assertions: []Assertion{
			{Type: AssertSkippedCount, Step: 0, Count: 1},
			{Type: AssertTreeMissing, Step: 0, Path: "/ghost.ts"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "assertion failures: %v", result.Errors)

	outcome := result.Steps[0].Rehydrate
	require.Len(t, outcome.Skipped, 1)
	assert.Equal(t, "/ghost.ts", outcome.Skipped[0].FilePath)
	assert.Equal(t, int64(2000), outcome.Skipped[0].VTStart)
	assert.NotEmpty(t, outcome.Skipped[0].Reason)
}

func TestRun_UnknownToolReplay(t *testing.T) {
	scenario := &Scenario{
		Name:        "unknown_tool",
		Description: "An unknown tool yields a marker output, not an engine failure.",
		Fixture: Fixture{
			Sessions: []SessionRow{{Session: "s1", At: 1000}},
			Events: []EventRow{{
				Event:   "e1",
				Session: "s1",
				Tool:    "frobnicate",
				Result:  map[string]interface{}{"x": 1},
				At:      2000,
			}},
		},
		Steps: []Step{{Op: StepReplay, Session: "s1", Event: "e1"}},
		Assertions: []Assertion{
			{Type: AssertReplaySuccess, Step: 0},
			{Type: AssertReplayMatches, Step: 0, Want: boolp(false)},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "assertion failures: %v", result.Errors)

	report := result.Steps[0].Replay.Report
	assert.True(t, report.Success)
	assert.False(t, report.Matches)
	assert.Equal(t,
		val.Object{"error": val.String("replay not implemented for tool: frobnicate")},
		report.ReplayOutput)
}

func TestConvertValue(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want val.Value
	}{
		{"nil", nil, val.Null{}},
		{"bool", true, val.Bool(true)},
		{"string", "hi", val.String("hi")},
		{"int", 42, val.Int(42)},
		{"int64", int64(7), val.Int(7)},
		{"float", 1.5, val.Float(1.5)},
		{
			"array",
			[]interface{}{1, "two"},
			val.Array{val.Int(1), val.String("two")},
		},
		{
			"nested object",
			map[string]interface{}{"a": map[string]interface{}{"b": false}},
			val.Object{"a": val.Object{"b": val.Bool(false)}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := convertValue(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConvertValue_Unsupported(t *testing.T) {
	_, err := convertValue(map[int]string{1: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported value of type")

	_, err = convertValue(map[string]interface{}{"deep": complex(1, 2)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `field "deep"`)
}

func TestTreeFingerprint(t *testing.T) {
	build := func(content string, at int64) *tree.Tree {
		tr := tree.New()
		require.NoError(t, tr.WriteFile("/a.ts", content, at))
		return tr
	}

	assert.True(t, val.Equal(treeFingerprint(build("x", 100)), treeFingerprint(build("x", 100))))
	assert.False(t, val.Equal(treeFingerprint(build("x", 100)), treeFingerprint(build("y", 100))),
		"content change must be visible")
	assert.False(t, val.Equal(treeFingerprint(build("x", 100)), treeFingerprint(build("x", 200))),
		"modification time change must be visible")
}
