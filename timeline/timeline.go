// Package timeline converts between an elapsed playback time and a bounded
// scrub unit, such as the tick position of a slider.
package timeline

import (
	"math"
	"time"
)

// Range is the inclusive unit range a scrub control operates over.
type Range struct {
	Min int
	Max int
}

// Span returns the number of units between the range's ends.
func (r Range) Span() int {
	return r.Max - r.Min
}

// ToScrubUnits maps elapsed time within a recording of the given duration
// onto r, rounding half up to the nearest unit. A zero or negative duration
// maps everything to r.Min.
func ToScrubUnits(elapsed, duration time.Duration, r Range) int {
	if duration <= 0 {
		return r.Min
	}
	frac := float64(elapsed) / float64(duration)
	value := int(math.Floor(float64(r.Min) + float64(r.Span())*frac + 0.5))
	if value < r.Min {
		return r.Min
	}
	if value > r.Max {
		return r.Max
	}
	return value
}

// ToElapsed inverts ToScrubUnits, clamping the result into [0, duration].
func ToElapsed(value int, duration time.Duration, r Range) time.Duration {
	if duration <= 0 || r.Span() == 0 {
		return 0
	}
	frac := float64(value-r.Min) / float64(r.Span())
	elapsed := time.Duration(frac * float64(duration))
	if elapsed < 0 {
		return 0
	}
	if elapsed > duration {
		return duration
	}
	return elapsed
}
