package temporal

import "time"

// Clock supplies the current instant in epoch milliseconds.
//
// Time is an injected capability, never read ambiently: the replay
// engine substitutes a fixed clock for the duration of one tool
// execution, so there is no process-wide override to install or
// restore and concurrent replays cannot observe each other's time.
type Clock interface {
	Now() int64
}

// SystemClock reads the operating system clock.
type SystemClock struct{}

// Now returns the current wall time in epoch milliseconds.
func (SystemClock) Now() int64 {
	return time.Now().UnixMilli()
}
