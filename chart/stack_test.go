package chart_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/livedash/livedash/chart"
	"github.com/livedash/livedash/dashsdk"
)

func TestStack(t *testing.T) {
	t.Parallel()

	t0 := time.UnixMilli(1_700_000_000_000)
	points := []chart.Point{
		{Time: t0, Values: map[string]int64{"Chrome": 3, "Firefox": 5, "Safari": 1}},
		{Time: t0.Add(3 * time.Second), Values: map[string]int64{"Chrome": 4}},
	}
	got := chart.Stack(points, []string{"Chrome", "Firefox", "Safari"})
	want := []chart.Stacked{
		{Time: t0, Segments: []chart.Segment{{Low: 0, High: 3}, {Low: 3, High: 8}, {Low: 8, High: 9}}},
		{Time: t0.Add(3 * time.Second), Segments: []chart.Segment{{Low: 0, High: 4}, {Low: 4, High: 4}, {Low: 4, High: 4}}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected stacks (-want +got):\n%s", diff)
	}
	require.EqualValues(t, 9, chart.MaxStacked(got))

	for _, s := range got {
		for i := 1; i < len(s.Segments); i++ {
			require.Equal(t, s.Segments[i-1].High, s.Segments[i].Low)
		}
	}
}

func TestStackEmpty(t *testing.T) {
	t.Parallel()

	require.Empty(t, chart.Stack(nil, []string{"a"}))
	require.Zero(t, chart.MaxStacked(nil))
	require.Zero(t, chart.Stacked{}.Top())
}

func TestProjections(t *testing.T) {
	t.Parallel()

	records := []dashsdk.MetricsRecord{{
		Timestamp:   1000,
		ActiveUsers: 7,
		Browsers:    map[string]int64{"Chrome": 4, "Safari": 3},
		OS:          map[string]int64{"Linux": 7},
	}}

	active := chart.ActiveUserPoints(records)
	require.Len(t, active, 1)
	require.Equal(t, time.UnixMilli(1000), active[0].Time)
	require.Equal(t, map[string]int64{chart.ValueKey: 7}, active[0].Values)

	browsers := chart.BrowserPoints(records)
	require.Equal(t, []string{"Chrome", "Safari"}, chart.Keys(browsers))
	require.Equal(t, []string{"Linux"}, chart.Keys(chart.OSPoints(records)))
}
