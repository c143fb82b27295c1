package chart

import (
	"time"

	"golang.org/x/xerrors"
)

// DefaultDuration is the width of a new viewport.
const DefaultDuration = 5 * time.Minute

// MaxDuration is the widest viewport a chart is drawn for.
const MaxDuration = 24 * time.Hour

// ErrNoData is returned when there is nothing to chart yet.
var ErrNoData = xerrors.New("no data to chart")

// Viewport is the visible time range. A zero Until means the right edge
// follows the clock ("now"); otherwise it is pinned to Until.
type Viewport struct {
	Duration time.Duration
	Until    time.Time
	// First is the time of the earliest known sample. The viewport never
	// pans before it.
	First time.Time
}

// NewViewport returns a live viewport of DefaultDuration.
func NewViewport(first time.Time) Viewport {
	return Viewport{Duration: DefaultDuration, First: first}
}

// Live reports whether the right edge follows the clock.
func (v Viewport) Live() bool {
	return v.Until.IsZero()
}

// ResolveUntil returns the right edge at now.
func (v Viewport) ResolveUntil(now time.Time) time.Time {
	if v.Live() {
		return now
	}
	return v.Until
}

// Window is a resolved time range.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Contains reports whether t lies within the window, inclusive.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Window resolves the viewport against now.
func (v Viewport) Window(now time.Time) Window {
	end := v.ResolveUntil(now)
	return Window{Start: end.Add(-v.Duration), End: end}
}

// Zoom scales the duration by f around the center of the view. f > 1 zooms
// out. The duration never exceeds the span between the first sample and the
// right edge, and the right edge never passes now; reaching now makes the
// viewport live again.
func (v Viewport) Zoom(f float64, now time.Time) Viewport {
	if f <= 0 {
		return v
	}
	until := v.ResolveUntil(now)
	duration := time.Duration(float64(v.Duration) * f)
	if span := until.Sub(v.First); span > 0 && duration > span {
		duration = span
	}
	if duration <= 0 {
		return v
	}

	until = until.Add((duration - v.Duration) / 2)
	next := Viewport{Duration: duration, First: v.First}
	if until.Before(now) {
		next.Until = until
	}
	return next
}

// Clamp bounds the duration to limit and unpins a right edge at or after
// now.
func (v Viewport) Clamp(now time.Time, limit time.Duration) Viewport {
	if !v.Live() && !v.Until.Before(now) {
		v.Until = time.Time{}
	}
	if limit > 0 && v.Duration > limit {
		v.Duration = limit
	}
	return v
}

// Drag is one pan gesture. Moves accumulate until End.
type Drag struct {
	viewport Viewport
	until    time.Time
}

// BeginDrag starts a pan from the viewport's current right edge.
func (v Viewport) BeginDrag(now time.Time) *Drag {
	return &Drag{viewport: v, until: v.ResolveUntil(now)}
}

// Move pans by dx pixels on a chart width pixels wide. Dragging right moves
// the view back in time.
func (d *Drag) Move(dx, width float64, now time.Time) Viewport {
	if width <= 0 {
		return d.viewport
	}
	dt := time.Duration(float64(d.viewport.Duration) * dx / width)
	d.until = d.until.Add(-dt)

	if earliest := d.viewport.First.Add(d.viewport.Duration); d.until.Before(earliest) {
		d.until = earliest
	}
	if d.until.Before(now) {
		d.viewport.Until = d.until
	} else {
		d.until = now
		d.viewport.Until = time.Time{}
	}
	return d.viewport
}

// End finishes the gesture and returns the final viewport.
func (d *Drag) End() Viewport {
	return d.viewport
}
