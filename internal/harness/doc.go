// Package harness provides conformance testing for the rewind
// pipelines.
//
// The harness loads YAML scenarios, seeds a fresh in-memory store with
// the scenario's fixture, drives the real rehydrate, replay, and prune
// pipelines through the scenario's steps, and checks assertions
// against the outcomes. A canonical-JSON summary of each run is
// compared against a golden file, so any behavioral drift shows up as
// a byte-level diff.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario verifies"
//	now: 5000
//	fixture:
//	  sessions:
//	    - session: s1
//	      label: main
//	      at: 1000
//	  snapshots:
//	    - session: s1
//	      at: 1000
//	      files:
//	        /a.ts: "old"
//	  diffs:
//	    - session: s1
//	      path: /a.ts
//	      at: 2000
//	      patch: |
//	        @@ -1 +1 @@
//	        -old
//	        \ No newline at end of file
//	        +new
//	        \ No newline at end of file
//	  events:
//	    - event: e1
//	      session: s1
//	      tool: read_file
//	      at: 2000
//	      args: { path: /a.ts }
//	      result: { content: "new" }
//	  expired:
//	    - label: superseded
//	      at: 50
//	      tt_end: 100
//	      count: 2500
//	steps:
//	  - op: rehydrate
//	    session: s1
//	    at: 2500
//	assertions:
//	  - type: tree_file
//	    step: 0
//	    path: /a.ts
//	    content: "new"
//
// Sessions and events carry scenario-local handles ("s1", "e1"). The
// runner maps handles to the row ids generated during seeding, and
// run summaries report handles, never ids.
//
// # Steps
//
// Three operations are supported:
//
//   - rehydrate: reconstruct a session's tree at a target time ("at",
//     omitted means latest). Every rehydrate runs twice against the
//     unchanged store and records whether both passes agreed.
//   - replay: re-execute a recorded tool call ("event") against the
//     tree rebuilt at the instant before it ran, comparing the fresh
//     output with the recorded one.
//   - prune: delete expired history under the scenario's frozen clock
//     ("now"), with retention_ms, batch_size, max_batches, and archive
//     controlling the run.
//
// # Assertions
//
// Assertions reference steps by 0-based index:
//
//   - tree_file: the rehydrated tree holds path with exactly content.
//   - tree_missing: the rehydrated tree has no file at path.
//   - replay_matches: the replay's match verdict equals want
//     (default true).
//   - replay_success: the replay's success flag equals want
//     (default true).
//   - skipped_count: the step skipped exactly count patches.
//   - pruned_deleted: the prune deleted exactly count rows, and ran
//     exactly batches batches when given.
//   - archived_equals_deleted: the archive holds as many rows as were
//     deleted, and every archived row id is among the deleted ids.
//   - rehydrate_idempotent: both rehydration passes produced the same
//     tree.
//
// # Determinism
//
// Every run is hermetic: a fresh in-memory SQLite store and in-memory
// blob store per scenario, a frozen clock, and fixture rows written
// through the real store writers (snapshots pass through the real wire
// codec). Steps execute the same pipeline code the CLI drives. Row ids
// and blob refs are generated per run and therefore never appear in
// summaries.
//
// # Golden Files
//
// Run summaries are rendered as canonical JSON and compared against
// testdata/golden/<scenario>.golden. Regenerate after intentional
// behavior changes with:
//
//	go test ./internal/harness -update
package harness
