package chart

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/xerrors"

	"github.com/coder/quartz"
)

// DefaultFrameInterval is roughly one display refresh.
const DefaultFrameInterval = time.Second / 60

// Animator keeps a live viewport's window in step with the clock. It calls
// setWindow directly on every frame instead of going through a full render,
// so the only shared state is the atomically swapped viewport.
type Animator struct {
	clock     quartz.Clock
	frame     time.Duration
	setWindow func(Window)
	viewport  atomic.Pointer[Viewport]
}

func NewAnimator(clock quartz.Clock, frame time.Duration, setWindow func(Window)) *Animator {
	if clock == nil {
		clock = quartz.NewReal()
	}
	if frame <= 0 {
		frame = DefaultFrameInterval
	}
	return &Animator{
		clock:     clock,
		frame:     frame,
		setWindow: setWindow,
	}
}

// SetViewport swaps the viewport and pushes its window immediately.
func (a *Animator) SetViewport(v Viewport) {
	a.viewport.Store(&v)
	a.setWindow(v.Window(a.clock.Now("chart", "set")))
}

// Viewport returns the current viewport and whether one has been set.
func (a *Animator) Viewport() (Viewport, bool) {
	v := a.viewport.Load()
	if v == nil {
		return Viewport{}, false
	}
	return *v, true
}

// Run pushes a fresh window every frame while the viewport is live. It
// returns when ctx is done.
func (a *Animator) Run(ctx context.Context) error {
	err := a.clock.TickerFunc(ctx, a.frame, func() error {
		v := a.viewport.Load()
		if v == nil || !v.Live() {
			return nil
		}
		a.setWindow(v.Window(a.clock.Now("chart", "frame")))
		return nil
	}, "chart", "frame").Wait()
	if err != nil && !xerrors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
