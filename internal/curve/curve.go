// Package curve reconstructs dense per-minute view curves from sparse daily
// totals.
package curve

import (
	"math"
	"time"

	"trend-reel/internal/day"
)

// MinutesPerDay is the length of every reconstructed curve.
const MinutesPerDay = 1440

// anchorOffsets are the days sampled around the target date.
var anchorOffsets = [5]int{-2, -1, 0, 1, 2}

// Anchors returns the five control points for target: the daily totals of the
// two days before, the target day and the two days after.
//
// A missing predecessor counts as 0. A missing successor repeats the target
// day's own total, so the most recent day of a series is drawn flat towards
// the future rather than collapsing to zero.
func Anchors(raw map[string]int, target time.Time) [5]float64 {
	own := float64(raw[day.Format(target)])
	var ys [5]float64
	for i, off := range anchorOffsets {
		v, ok := raw[day.Format(target.AddDate(0, 0, off))]
		switch {
		case ok:
			ys[i] = float64(v)
		case off > 0:
			ys[i] = own
		default:
			ys[i] = 0
		}
	}
	return ys
}

// Reconstruct returns MinutesPerDay non-negative per-minute values for the
// target date.
//
// The anchors sit at hours 0, 24, 48, 72 and 96 and the curve is sampled on
// [24, 48): it starts at the previous day's total and climbs (or falls)
// towards the target day's total, which it reaches at the next midnight.
// Reconstruct is deterministic and never fails; numerical trouble yields a
// flat curve at the target day's total.
func Reconstruct(raw map[string]int, target time.Time) []int {
	ys := Anchors(raw, target)

	var sum float64
	for _, y := range ys {
		sum += y
	}
	if sum == 0 {
		return make([]int, MinutesPerDay)
	}

	xs := make([]float64, len(ys))
	for i := range xs {
		xs[i] = float64(i * 24)
	}

	p, err := newPCHIP(xs, ys[:])
	if err != nil {
		return flat(ys[2])
	}

	out := make([]int, MinutesPerDay)
	step := 24.0 / MinutesPerDay
	for i := range out {
		v := p.at(24 + float64(i)*step)
		if !isFinite(v) {
			return flat(ys[2])
		}
		out[i] = int(math.Max(0, v))
	}
	return out
}

func flat(v float64) []int {
	out := make([]int, MinutesPerDay)
	n := int(math.Max(0, v))
	for i := range out {
		out[i] = n
	}
	return out
}
