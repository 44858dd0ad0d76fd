// Package rehydrate reconstructs the state of a workspace tree at an
// arbitrary historical instant.
//
// Reconstruction starts from the latest snapshot at or before the
// target time (or an empty tree when none exists) and applies the
// causally scoped diff stream in valid-time order. Individual patch
// failures never abort reconstruction; they are recorded and skipped,
// so one corrupt diff costs one file edit, not the whole workspace.
package rehydrate
