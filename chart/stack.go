// Package chart holds the geometry behind the dashboard's stacked
// time-series chart: stacking, the pannable and zoomable viewport, axis
// ticks and SVG output.
package chart

import (
	"slices"
	"time"

	"github.com/livedash/livedash/dashsdk"
)

// ValueKey is the single key of points produced by ActiveUserPoints.
const ValueKey = "value"

// Point is one sample projected onto named values.
type Point struct {
	Time   time.Time
	Values map[string]int64
}

// Segment is the vertical extent of one key in a stacked point.
type Segment struct {
	Low  int64
	High int64
}

// Stacked is a point whose values have been prefix summed. Segments are in
// key order.
type Stacked struct {
	Time     time.Time
	Segments []Segment
}

// Top returns the height of the whole stack.
func (s Stacked) Top() int64 {
	if len(s.Segments) == 0 {
		return 0
	}
	return s.Segments[len(s.Segments)-1].High
}

// Stack prefix sums each point's values in keys order so that every
// segment's Low is the previous segment's High. Missing keys count as zero.
func Stack(points []Point, keys []string) []Stacked {
	stacks := make([]Stacked, 0, len(points))
	for _, p := range points {
		segments := make([]Segment, len(keys))
		var low int64
		for i, key := range keys {
			high := low + p.Values[key]
			segments[i] = Segment{Low: low, High: high}
			low = high
		}
		stacks = append(stacks, Stacked{Time: p.Time, Segments: segments})
	}
	return stacks
}

// MaxStacked returns the tallest stack, or 0 for no stacks.
func MaxStacked(stacks []Stacked) int64 {
	var highest int64
	for _, s := range stacks {
		highest = max(highest, s.Top())
	}
	return highest
}

// Keys returns the sorted union of all keys in points.
func Keys(points []Point) []string {
	seen := map[string]struct{}{}
	for _, p := range points {
		for k := range p.Values {
			seen[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func ActiveUserPoints(records []dashsdk.MetricsRecord) []Point {
	return project(records, func(r dashsdk.MetricsRecord) map[string]int64 {
		return map[string]int64{ValueKey: r.ActiveUsers}
	})
}

func BrowserPoints(records []dashsdk.MetricsRecord) []Point {
	return project(records, func(r dashsdk.MetricsRecord) map[string]int64 {
		return r.Browsers
	})
}

func OSPoints(records []dashsdk.MetricsRecord) []Point {
	return project(records, func(r dashsdk.MetricsRecord) map[string]int64 {
		return r.OS
	})
}

func project(records []dashsdk.MetricsRecord, values func(dashsdk.MetricsRecord) map[string]int64) []Point {
	points := make([]Point, 0, len(records))
	for _, r := range records {
		points = append(points, Point{Time: r.Time(), Values: values(r)})
	}
	return points
}
