// Package replay re-executes recorded tool calls against
// reconstructed workspaces and compares the outputs structurally.
//
// Determinism is capability-based, not mode-based: the clock and the
// random source are values handed to the tool for the duration of one
// execution, both derived from the event's valid time. Nothing global
// is patched, so there is nothing to restore afterwards and concurrent
// replays cannot observe each other.
//
// Replay never returns an error and never panics across its boundary.
// Every failure mode ends in a Report with Success false and the
// reason in Error; a divergence between the historical output and the
// replayed output is not a failure, it is Success true with Matches
// false.
package replay
