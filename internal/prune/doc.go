// Package prune removes history whose transaction time closed before
// a retention threshold, optionally archiving it first.
//
// Expiry is a pure predicate over tt_end, so a run that stops early
// (batch cap, cancellation, crash) leaves the store consistent and
// the next run resumes exactly where it left off. Archival happens
// before deletion and is at-least-once: a crash between the two can
// re-archive rows on retry, never lose them.
package prune
