package chart_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/coder/quartz"
	"github.com/livedash/livedash/chart"
	"github.com/livedash/livedash/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestAnimator(t *testing.T) {
	t.Parallel()

	ctx := testutil.Context(t, testutil.WaitShort)
	clock := quartz.NewMock(t)
	clock.Set(now)
	trap := clock.Trap().TickerFunc("chart", "frame")
	defer trap.Close()

	const frame = 16 * time.Millisecond
	windows := make(chan chart.Window, 8)
	animator := chart.NewAnimator(clock, frame, func(w chart.Window) {
		windows <- w
	})
	_, ok := animator.Viewport()
	require.False(t, ok)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- animator.Run(runCtx)
	}()
	trap.MustWait(ctx).MustRelease(ctx)

	// Nothing to animate yet.
	clock.Advance(frame).MustWait(ctx)
	require.Empty(t, windows)

	animator.SetViewport(chart.NewViewport(first))
	w := testutil.RequireReceive(ctx, t, windows)
	require.Equal(t, now.Add(frame), w.End)
	require.Equal(t, chart.DefaultDuration, w.Duration())

	// Live viewports follow the clock every frame.
	for i := 2; i <= 4; i++ {
		clock.Advance(frame).MustWait(ctx)
		w = testutil.RequireReceive(ctx, t, windows)
		require.Equal(t, now.Add(time.Duration(i)*frame), w.End)
	}

	// Pinned viewports are pushed once and then left alone.
	pinned := chart.Viewport{Duration: time.Minute, Until: now.Add(-time.Minute), First: first}
	animator.SetViewport(pinned)
	w = testutil.RequireReceive(ctx, t, windows)
	require.Equal(t, pinned.Until, w.End)
	clock.Advance(frame).MustWait(ctx)
	require.Empty(t, windows)

	got, ok := animator.Viewport()
	require.True(t, ok)
	require.Equal(t, pinned, got)

	cancel()
	require.NoError(t, testutil.RequireReceive(ctx, t, done))
}
