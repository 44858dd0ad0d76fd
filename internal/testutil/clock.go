package testutil

import "sync"

// DeterministicClock is a settable wall clock for tests, in epoch
// milliseconds.
//
// Unlike temporal.SystemClock it never moves on its own: tests set or
// advance it explicitly, so thresholds computed from "now" come out
// exact and golden outputs stay byte-stable. Safe for concurrent use.
type DeterministicClock struct {
	mu  sync.Mutex
	now int64
}

// NewDeterministicClock creates a clock frozen at start.
func NewDeterministicClock(start int64) *DeterministicClock {
	return &DeterministicClock{now: start}
}

// Now returns the current frozen instant.
//
// Implements temporal.Clock.
func (c *DeterministicClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to the given instant. Moving backwards is
// allowed; tests that re-run history need to.
func (c *DeterministicClock) Set(now int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Advance moves the clock forward by d milliseconds and returns the
// new instant.
func (c *DeterministicClock) Advance(d int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
	return c.now
}
