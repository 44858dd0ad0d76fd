package harness

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/roach88/rewind/internal/blob"
	"github.com/roach88/rewind/internal/prune"
	"github.com/roach88/rewind/internal/rehydrate"
	"github.com/roach88/rewind/internal/replay"
	"github.com/roach88/rewind/internal/store"
	"github.com/roach88/rewind/internal/temporal"
	"github.com/roach88/rewind/internal/testutil"
	"github.com/roach88/rewind/internal/tree"
	"github.com/roach88/rewind/internal/val"
)

// Harness executes one scenario against a fresh in-memory store and
// blob store under a frozen clock. Handle maps translate the
// scenario's local names into the row ids generated during seeding.
type Harness struct {
	store *store.Store
	blobs *blob.MemStore
	clock *testutil.DeterministicClock

	sessions map[string]string // session handle → row id
	turns    map[string]string // session handle → bookkeeping turn id
	events   map[string]string // event handle → tool call id
}

// Run executes a scenario and returns its result. Run errors only on
// infrastructure failures (store setup, fixture seeding, a step that
// cannot execute); assertion failures land in Result.Errors with
// Result.Pass false.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:    st,
		blobs:    blob.NewMemStore(),
		clock:    testutil.NewDeterministicClock(scenario.Now),
		sessions: map[string]string{},
		turns:    map[string]string{},
		events:   map[string]string{},
	}

	ctx := context.Background()

	slog.Debug("scenario starting", "name", scenario.Name, "steps", len(scenario.Steps))

	if err := h.seed(ctx, &scenario.Fixture); err != nil {
		return nil, fmt.Errorf("failed to seed fixture: %w", err)
	}

	result := NewResult(scenario.Name)
	for i := range scenario.Steps {
		outcome, err := h.runStep(ctx, &scenario.Steps[i])
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		result.Steps = append(result.Steps, outcome)
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	slog.Debug("scenario finished", "name", scenario.Name, "pass", result.Pass)

	return result, nil
}

// seed writes the fixture through the real store writers. Events and
// diffs need turn and tool-call parents for the causal joins on the
// read path, so the harness synthesizes one bookkeeping turn per
// session and a write_file tool call for any diff not attached to a
// fixture event.
func (h *Harness) seed(ctx context.Context, f *Fixture) error {
	seeder := testutil.NewFixture(h.store, h.blobs)

	for i, row := range f.Sessions {
		id, err := seeder.Session(ctx, row.Label, row.At)
		if err != nil {
			return fmt.Errorf("sessions[%d]: %w", i, err)
		}
		h.sessions[row.Session] = id
	}

	for i, row := range f.Events {
		turnID, err := h.turnFor(ctx, seeder, row.Session, row.At)
		if err != nil {
			return fmt.Errorf("events[%d]: %w", i, err)
		}
		args, err := encodeArgs(row.Args)
		if err != nil {
			return fmt.Errorf("events[%d]: encode args: %w", i, err)
		}
		result, err := encodeResult(row.Result)
		if err != nil {
			return fmt.Errorf("events[%d]: encode result: %w", i, err)
		}
		id, err := seeder.ToolCall(ctx, turnID, row.Tool, args, result, row.At)
		if err != nil {
			return fmt.Errorf("events[%d]: %w", i, err)
		}
		h.events[row.Event] = id
	}

	for i, row := range f.Snapshots {
		t, err := buildTree(row.Files, row.At)
		if err != nil {
			return fmt.Errorf("snapshots[%d]: %w", i, err)
		}
		if _, err := seeder.Snapshot(ctx, h.sessions[row.Session], t, row.At); err != nil {
			return fmt.Errorf("snapshots[%d]: %w", i, err)
		}
	}

	for i, row := range f.Diffs {
		toolCallID := h.events[row.Event]
		if row.Event == "" {
			turnID, err := h.turnFor(ctx, seeder, row.Session, row.At)
			if err != nil {
				return fmt.Errorf("diffs[%d]: %w", i, err)
			}
			args, err := encodeArgs(map[string]interface{}{"path": row.Path})
			if err != nil {
				return fmt.Errorf("diffs[%d]: encode args: %w", i, err)
			}
			toolCallID, err = seeder.ToolCall(ctx, turnID, "write_file", args, nil, row.At)
			if err != nil {
				return fmt.Errorf("diffs[%d]: %w", i, err)
			}
		}
		if _, err := seeder.Diff(ctx, toolCallID, row.Path, row.Patch, row.At); err != nil {
			return fmt.Errorf("diffs[%d]: %w", i, err)
		}
	}

	for i, row := range f.Expired {
		count := row.Count
		if count == 0 {
			count = 1
		}
		for range count {
			session := temporal.Session{
				ID:       testutil.NewID(),
				Label:    row.Label,
				Interval: temporal.ClosedAt(row.At, row.TTEnd),
			}
			if err := h.store.PutSession(ctx, session); err != nil {
				return fmt.Errorf("expired[%d]: %w", i, err)
			}
		}
	}

	return nil
}

// turnFor returns the session's bookkeeping turn, creating it on first
// use with the requesting row's timestamp.
func (h *Harness) turnFor(ctx context.Context, seeder *testutil.Fixture, session string, at int64) (string, error) {
	if id, ok := h.turns[session]; ok {
		return id, nil
	}
	id, err := seeder.Turn(ctx, h.sessions[session], 1, at)
	if err != nil {
		return "", err
	}
	h.turns[session] = id
	return id, nil
}

func (h *Harness) runStep(ctx context.Context, step *Step) (StepOutcome, error) {
	switch step.Op {
	case StepRehydrate:
		return h.runRehydrate(ctx, step)
	case StepReplay:
		return h.runReplay(ctx, step)
	case StepPrune:
		return h.runPrune(ctx, step)
	default:
		return StepOutcome{}, fmt.Errorf("unknown op %q", step.Op)
	}
}

// runRehydrate reconstructs the session's tree twice against the
// unchanged store. The store does not move between the two passes,
// which is exactly the precondition of the idempotence guarantee, so
// every rehydrate step doubles as an idempotence probe.
func (h *Harness) runRehydrate(ctx context.Context, step *Step) (StepOutcome, error) {
	at := temporal.MaxDate
	if step.At != nil {
		at = *step.At
	}

	r := rehydrate.New(h.store, h.blobs)

	first, err := r.Rehydrate(ctx, h.sessions[step.Session], at)
	if err != nil {
		return StepOutcome{}, fmt.Errorf("rehydrate: %w", err)
	}
	second, err := r.Rehydrate(ctx, h.sessions[step.Session], at)
	if err != nil {
		return StepOutcome{}, fmt.Errorf("rehydrate (second pass): %w", err)
	}

	outcome := &RehydrateOutcome{
		Session:    step.Session,
		At:         at,
		SnapshotAt: first.SnapshotAt,
		Recovered:  first.SnapshotRecovered,
		Applied:    first.Applied,
		Skipped:    first.Skipped,
		Files:      first.Tree.Files(),
		Idempotent: val.Equal(treeFingerprint(first.Tree), treeFingerprint(second.Tree)),
	}
	return StepOutcome{Op: StepRehydrate, Rehydrate: outcome}, nil
}

func (h *Harness) runReplay(ctx context.Context, step *Step) (StepOutcome, error) {
	engine := replay.New(h.store, rehydrate.New(h.store, h.blobs))
	report := engine.Replay(ctx, h.sessions[step.Session], h.events[step.Event])

	outcome := &ReplayOutcome{
		Session: step.Session,
		Event:   step.Event,
		Report:  report,
	}
	return StepOutcome{Op: StepReplay, Replay: outcome}, nil
}

// runPrune interposes a recording store so the outcome carries the
// exact ids the pruner deleted, matched later against the archive.
func (h *Harness) runPrune(ctx context.Context, step *Step) (StepOutcome, error) {
	rec := &recordingStore{inner: h.store}
	pruner := prune.New(rec, h.blobs, prune.WithClock(h.clock))

	res, err := pruner.Run(ctx, prune.Options{
		RetentionMs: step.RetentionMs,
		BatchSize:   step.BatchSize,
		MaxBatches:  step.MaxBatches,
		Archive:     step.Archive,
	})
	if err != nil {
		return StepOutcome{}, fmt.Errorf("prune: %w", err)
	}

	outcome := &PruneOutcome{Result: res, DeletedIDs: rec.deleted}
	if res.ArchiveRef != "" {
		ids, err := archivedNodeIDs(ctx, h.blobs, res.ArchiveRef)
		if err != nil {
			return StepOutcome{}, fmt.Errorf("read archive: %w", err)
		}
		outcome.ArchivedIDs = ids
	}
	return StepOutcome{Op: StepPrune, Prune: outcome}, nil
}

// recordingStore wraps the real store and records every id handed to
// DeleteByIDs, so archive contents can be checked against the actual
// deletions of the same run.
type recordingStore struct {
	inner   *store.Store
	deleted []string
}

var _ prune.Store = (*recordingStore)(nil)

func (r *recordingStore) FetchExpired(ctx context.Context, threshold int64, limit int) ([]temporal.ExpiredEntity, error) {
	return r.inner.FetchExpired(ctx, threshold, limit)
}

func (r *recordingStore) DeleteByIDs(ctx context.Context, ids []string) (int, error) {
	r.deleted = append(r.deleted, ids...)
	return r.inner.DeleteByIDs(ctx, ids)
}

// archivedNodeIDs parses a JSONL archive payload and extracts the
// _node_id of every line.
func archivedNodeIDs(ctx context.Context, blobs *blob.MemStore, ref string) ([]string, error) {
	data, err := blobs.Read(ctx, ref)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	ids := make([]string, 0, len(lines))
	for i, line := range lines {
		v, err := val.Unmarshal([]byte(line))
		if err != nil {
			return nil, fmt.Errorf("archive line %d: %w", i, err)
		}
		obj, ok := v.(val.Object)
		if !ok {
			return nil, fmt.Errorf("archive line %d: not an object", i)
		}
		id, ok := obj["_node_id"].(val.String)
		if !ok {
			return nil, fmt.Errorf("archive line %d: missing _node_id", i)
		}
		ids = append(ids, string(id))
	}
	return ids, nil
}

// treeFingerprint flattens a tree into a value covering structure,
// content, and modification times, so two trees compare equal exactly
// when rehydration reproduced the same result.
func treeFingerprint(t *tree.Tree) val.Value {
	nodes := val.Object{}
	_ = t.Walk(func(path string, n tree.Node) error {
		switch node := n.(type) {
		case *tree.File:
			nodes[path] = val.Object{
				"content":  val.String(node.Content),
				"modified": val.Int(node.LastModified),
			}
		case *tree.Dir:
			nodes[path] = val.Object{"dir": val.Bool(true)}
		}
		return nil
	})
	return nodes
}

// buildTree materializes a path → content map as a tree. Paths are
// written in sorted order so seeding is deterministic.
func buildTree(files map[string]string, at int64) (*tree.Tree, error) {
	t := tree.New()
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		if err := t.WriteFile(p, files[p], at); err != nil {
			return nil, fmt.Errorf("snapshot file %q: %w", p, err)
		}
	}
	return t, nil
}

// encodeArgs renders a fixture argument map as canonical JSON. A nil
// map records empty arguments.
func encodeArgs(args map[string]interface{}) (string, error) {
	if args == nil {
		return "{}", nil
	}
	obj, err := convertObject(args)
	if err != nil {
		return "", err
	}
	data, err := val.MarshalCanonical(obj)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// encodeResult renders a fixture result as canonical JSON. A nil
// result records a null historical output.
func encodeResult(result interface{}) (*string, error) {
	if result == nil {
		return nil, nil
	}
	v, err := convertValue(result)
	if err != nil {
		return nil, err
	}
	data, err := val.MarshalCanonical(v)
	if err != nil {
		return nil, err
	}
	s := string(data)
	return &s, nil
}

// convertValue maps decoded YAML values onto the value model. The YAML
// decoder produces int for integers and map[string]interface{} for
// nested mappings.
func convertValue(raw interface{}) (val.Value, error) {
	switch v := raw.(type) {
	case nil:
		return val.Null{}, nil
	case bool:
		return val.Bool(v), nil
	case string:
		return val.String(v), nil
	case int:
		return val.Int(int64(v)), nil
	case int64:
		return val.Int(v), nil
	case float64:
		return val.Float(v), nil
	case []interface{}:
		arr := make(val.Array, len(v))
		for i, item := range v {
			converted, err := convertValue(item)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = converted
		}
		return arr, nil
	case map[string]interface{}:
		return convertObject(v)
	default:
		return nil, fmt.Errorf("unsupported value of type %T", raw)
	}
}

func convertObject(m map[string]interface{}) (val.Object, error) {
	obj := make(val.Object, len(m))
	for k, value := range m {
		converted, err := convertValue(value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		obj[k] = converted
	}
	return obj, nil
}
