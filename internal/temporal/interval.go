package temporal

import "fmt"

// MaxDate is the open-interval sentinel: 9999-12-31T23:59:59.999Z in
// epoch milliseconds. A row whose interval ends at MaxDate is current.
const MaxDate int64 = 253402300799999

// Interval is a bitemporal interval in epoch milliseconds.
// VTStart..VTEnd is valid time (when the fact was true in reality);
// TTStart..TTEnd is transaction time (when the store recorded it).
type Interval struct {
	VTStart int64 `json:"vt_start"`
	VTEnd   int64 `json:"vt_end"`
	TTStart int64 `json:"tt_start"`
	TTEnd   int64 `json:"tt_end"`
}

// OpenAt returns the interval of a fact that became true and was
// recorded at t, and is still current on both axes.
func OpenAt(t int64) Interval {
	return Interval{VTStart: t, VTEnd: MaxDate, TTStart: t, TTEnd: MaxDate}
}

// ClosedAt returns an interval that opened at start and closed at end
// on both axes. Used by fixtures to construct expired history.
func ClosedAt(start, end int64) Interval {
	return Interval{VTStart: start, VTEnd: end, TTStart: start, TTEnd: end}
}

// Current reports whether the interval is open in transaction time.
func (iv Interval) Current() bool {
	return iv.TTEnd == MaxDate
}

// Validate checks start <= end on both axes.
func (iv Interval) Validate() error {
	if iv.VTStart > iv.VTEnd {
		return fmt.Errorf("invalid interval: vt_start %d > vt_end %d", iv.VTStart, iv.VTEnd)
	}
	if iv.TTStart > iv.TTEnd {
		return fmt.Errorf("invalid interval: tt_start %d > tt_end %d", iv.TTStart, iv.TTEnd)
	}
	return nil
}
