// Package store provides SQLite-backed durable storage for bitemporal
// workspace history.
//
// The store holds five version-row tables:
//   - Sessions: roots of causal chains
//   - Turns: ordered exchanges within a session
//   - Tool Calls: recorded tool invocations with arguments and result
//   - Diff Hunks: incremental unified-diff changes to workspace files
//   - Snapshots: blob refs to full serialized workspace trees
//
// # Critical Patterns
//
// CP-1: Bitemporal Visibility
//   - Every row carries vt_start/vt_end (valid time) and
//     tt_start/tt_end (transaction time), epoch milliseconds
//   - A row is current iff tt_end = temporal.MaxDate; reads only see
//     current rows, the expiry scan only sees closed ones
//
// CP-2: Deterministic Query Results
//   - All multi-row queries include: ORDER BY <key> ASC, id COLLATE
//     BINARY ASC
//   - Ensures identical reconstruction across runs
//
// CP-3: Canonical JSON at the Boundary
//   - tool_calls.arguments and tool_calls.result are stored as
//     RFC 8785 canonical JSON so byte comparison equals structural
//     comparison
//
// CP-4: Idempotent Writes
//   - INSERT ... ON CONFLICT(id) DO NOTHING on every table
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Harmless here; version rows reference each
//     other by id without SQL foreign keys (see schema.sql)
package store
