package replay

import "math/rand/v2"

// RandomSource supplies the randomness capability for tool execution.
// Implemented by LCG (replay) and SystemRandom (live execution).
type RandomSource interface {
	Float64() float64
	Int63n(n int64) int64
}

// LCG is a 64-bit linear congruential generator using Knuth's MMIX
// multiplier and increment. It exists for exactly one property: the
// same seed yields the same sequence on every platform, forever. Do
// not use it where statistical quality matters.
//
// Not safe for concurrent use. Replay hands each tool execution its
// own instance, seeded from the event's valid time.
type LCG struct {
	state uint64
}

// NewLCG creates a generator seeded with the given value.
func NewLCG(seed int64) *LCG {
	return &LCG{state: uint64(seed)}
}

// next advances the generator one step and returns the new state.
func (l *LCG) next() uint64 {
	l.state = l.state*6364136223846793005 + 1442695040888963407
	return l.state
}

// Float64 returns a value in [0, 1) built from the top 53 bits of one
// generator step.
func (l *LCG) Float64() float64 {
	return float64(l.next()>>11) / (1 << 53)
}

// Int63n returns a value in [0, n), consuming exactly one generator
// step. Panics if n <= 0, matching math/rand.
func (l *LCG) Int63n(n int64) int64 {
	if n <= 0 {
		panic("replay: invalid argument to Int63n")
	}
	return int64(l.next()>>1) % n
}

// SystemRandom adapts math/rand/v2 to the RandomSource capability for
// live tool execution outside replay.
type SystemRandom struct{}

// Float64 returns a uniformly distributed value in [0, 1).
func (SystemRandom) Float64() float64 {
	return rand.Float64()
}

// Int63n returns a uniformly distributed value in [0, n).
func (SystemRandom) Int63n(n int64) int64 {
	return rand.Int64N(n)
}
