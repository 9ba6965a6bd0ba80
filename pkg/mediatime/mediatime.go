// Package mediatime provides a fixed-precision media timestamp.
package mediatime

import (
	"fmt"
	"math"
)

// Time is a media timestamp in microseconds.
// Integer units keep timestamps usable as map keys.
type Time int64

const (
	Microsecond Time = 1
	Millisecond      = 1000 * Microsecond
	Second           = 1000 * Millisecond
)

// FromSeconds converts seconds to Time, rounding to the nearest microsecond.
func FromSeconds(s float64) Time {
	return Time(math.Round(s * float64(Second)))
}

// FromMilliseconds converts milliseconds to Time.
func FromMilliseconds(ms int64) Time {
	return Time(ms) * Millisecond
}

// FromTimescale converts container ticks in the given timescale to Time.
func FromTimescale(ticks uint64, timescale uint32) Time {
	if timescale == 0 {
		return 0
	}
	// Split to avoid overflowing ticks*1e6 for long streams.
	whole := ticks / uint64(timescale)
	rem := ticks % uint64(timescale)
	return Time(whole)*Second + Time(rem*uint64(Second)/uint64(timescale))
}

// Seconds returns t as floating-point seconds.
func (t Time) Seconds() float64 {
	return float64(t) / float64(Second)
}

// Milliseconds returns t truncated to whole milliseconds.
func (t Time) Milliseconds() int64 {
	return int64(t / Millisecond)
}

// String formats t as seconds with microsecond precision, e.g. "1.500000s".
func (t Time) String() string {
	return fmt.Sprintf("%.6fs", t.Seconds())
}
