package val

import "math"

// Equal reports true structural equality between two Values.
//
// Semantics follow JSON, not Go: Null equals only Null; Int and Float
// are one number line, so Int(1) equals Float(1.0); objects compare by
// key set and per-key value, never by insertion or serialization
// order. Exactly one side Null is false.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case Null:
		_, ok := b.(Null)
		return ok
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Int:
		switch bv := b.(type) {
		case Int:
			return av == bv
		case Float:
			return intEqualsFloat(int64(av), float64(bv))
		}
		return false
	case Float:
		switch bv := b.(type) {
		case Float:
			return av == bv
		case Int:
			return intEqualsFloat(int64(bv), float64(av))
		}
		return false
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Object:
		bv, ok := b.(Object)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, ae := range av {
			be, present := bv[k]
			if !present || !Equal(ae, be) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// intEqualsFloat compares an int64 against a float64 without the
// precision loss of converting the integer: above 2^53 the conversion
// rounds, so the comparison goes the other way (float to int) after
// integrality and range checks.
func intEqualsFloat(i int64, f float64) bool {
	if f != math.Trunc(f) {
		return false
	}
	// float64(MaxInt64) rounds up to 2^63, so `<` excludes overflow.
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return false
	}
	return int64(f) == i
}
