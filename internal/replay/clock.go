package replay

// FixedClock reports one frozen instant in epoch milliseconds.
//
// During replay the "current time" is the recorded call's valid time,
// however often the tool asks for it. The zero value reports 0.
type FixedClock int64

// Now returns the frozen instant.
func (c FixedClock) Now() int64 {
	return int64(c)
}
