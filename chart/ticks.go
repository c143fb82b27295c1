package chart

import (
	"math"
	"time"
)

const DefaultMaxTicks = 10

// DefaultTickIntervals are the candidate spacings between axis ticks, in
// ascending order.
var DefaultTickIntervals = []time.Duration{
	5 * time.Second,
	10 * time.Second,
	30 * time.Second,
	time.Minute,
	5 * time.Minute,
	10 * time.Minute,
}

// TickInterval picks the smallest candidate that yields at most maxTicks
// ticks over visible. If none does, the largest candidate is scaled up by
// the smallest whole factor that does.
func TickInterval(visible time.Duration, candidates []time.Duration, maxTicks int) time.Duration {
	if len(candidates) == 0 {
		return 0
	}
	maxTicks = max(maxTicks, 1)
	for _, c := range candidates {
		if c > 0 && float64(visible)/float64(c) <= float64(maxTicks) {
			return c
		}
	}
	largest := candidates[len(candidates)-1]
	if largest <= 0 {
		return 0
	}
	factor := math.Ceil(float64(visible) / (float64(largest) * float64(maxTicks)))
	return largest * time.Duration(factor)
}

type Tick struct {
	Time  time.Time
	Label string
}

// Ticks places a tick at every multiple of the chosen interval from the
// multiple at or before start up to end, never more than maxTicks+2 of
// them. Labels are MM:SS.
func Ticks(w Window, candidates []time.Duration, maxTicks int) []Tick {
	interval := TickInterval(w.Duration(), candidates, maxTicks)
	if interval <= 0 || w.End.Before(w.Start) {
		return nil
	}

	step := max(interval.Milliseconds(), 1)
	startMs := w.Start.UnixMilli()
	first := startMs / step * step
	if startMs < 0 && startMs%step != 0 {
		first -= step
	}

	loc := w.Start.Location()
	var ticks []Tick
	limit := max(maxTicks, 1) + 2
	for ms := first; ms <= w.End.UnixMilli() && len(ticks) < limit; ms += step {
		t := time.UnixMilli(ms).In(loc)
		ticks = append(ticks, Tick{Time: t, Label: t.Format("04:05")})
	}
	return ticks
}
