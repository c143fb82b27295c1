package dashstate_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/xerrors"

	"github.com/livedash/livedash/dashsdk"
	"github.com/livedash/livedash/dashstate"
	"github.com/livedash/livedash/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func record(ts int64) dashsdk.MetricsRecord {
	return dashsdk.MetricsRecord{
		Timestamp:   ts,
		ActiveUsers: ts,
		Browsers:    map[string]int64{"Chrome": ts},
		OS:          map[string]int64{"Linux": ts},
	}
}

type unknownAction struct{ dashstate.AddMetrics }

func TestReduce(t *testing.T) {
	t.Parallel()

	t.Run("AddMetricsAssociative", func(t *testing.T) {
		t.Parallel()

		a, b := record(1), record(2)
		for _, s := range []dashstate.State{
			dashstate.InitialState(),
			{Timeseries: []dashsdk.MetricsRecord{record(0)}, NavOpen: true},
		} {
			stepwise := dashstate.Reduce(dashstate.Reduce(s, dashstate.AddMetrics{Batch: []dashsdk.MetricsRecord{a}}), dashstate.AddMetrics{Batch: []dashsdk.MetricsRecord{b}})
			batched := dashstate.Reduce(s, dashstate.AddMetrics{Batch: []dashsdk.MetricsRecord{a, b}})
			if diff := cmp.Diff(batched, stepwise); diff != "" {
				t.Fatalf("stepwise differs from batched (-batched +stepwise):\n%s", diff)
			}
		}
	})

	t.Run("AddMetricsDoesNotDeduplicate", func(t *testing.T) {
		t.Parallel()

		s := dashstate.Reduce(dashstate.InitialState(), dashstate.AddMetrics{Batch: []dashsdk.MetricsRecord{record(1), record(1)}})
		s = dashstate.Reduce(s, dashstate.AddMetrics{Batch: []dashsdk.MetricsRecord{record(0)}})
		require.Equal(t, []dashsdk.MetricsRecord{record(1), record(1), record(0)}, s.Timeseries)
	})

	t.Run("AddMetricsDoesNotAlias", func(t *testing.T) {
		t.Parallel()

		base := dashstate.State{Timeseries: make([]dashsdk.MetricsRecord, 1, 8)}
		base.Timeseries[0] = record(0)
		x := dashstate.Reduce(base, dashstate.AddMetrics{Batch: []dashsdk.MetricsRecord{record(1)}})
		y := dashstate.Reduce(base, dashstate.AddMetrics{Batch: []dashsdk.MetricsRecord{record(2)}})
		require.Equal(t, record(1), x.Timeseries[1])
		require.Equal(t, record(2), y.Timeseries[1])
		require.Len(t, base.Timeseries, 1)
	})

	t.Run("Flags", func(t *testing.T) {
		t.Parallel()

		s := dashstate.InitialState()
		require.True(t, s.IsLoadingMetrics)
		require.False(t, dashstate.Reduce(s, dashstate.SetLoadingState{IsLoading: false}).IsLoadingMetrics)
		require.True(t, dashstate.Reduce(s, dashstate.ToggleNav{}).NavOpen)
		require.False(t, dashstate.Reduce(dashstate.Reduce(s, dashstate.ToggleNav{}), dashstate.ToggleNav{}).NavOpen)
	})

	t.Run("UnknownAction", func(t *testing.T) {
		t.Parallel()

		s := dashstate.State{Timeseries: []dashsdk.MetricsRecord{record(0)}, IsLoadingMetrics: true}
		require.Equal(t, s, dashstate.Reduce(s, unknownAction{}))
		require.Equal(t, s, dashstate.Reduce(s, nil))
	})
}

func TestStore(t *testing.T) {
	t.Parallel()

	store := dashstate.NewStore(dashstate.InitialState())
	var mu sync.Mutex
	var seen []dashstate.State
	unsubscribe := store.Subscribe(func(s dashstate.State) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s)
	})

	store.Dispatch(dashstate.AddMetrics{Batch: []dashsdk.MetricsRecord{record(1)}})
	store.Dispatch(dashstate.ToggleNav{})
	unsubscribe()
	store.Dispatch(dashstate.ToggleNav{})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	require.Len(t, seen[0].Timeseries, 1)
	require.True(t, seen[1].NavOpen)
	require.False(t, store.State().NavOpen)
}

type fakeClient struct {
	snapshot    []dashsdk.MetricsRecord
	snapshotErr error
	stream      []dashsdk.MetricsRecord
}

func (f *fakeClient) Metrics(context.Context) ([]dashsdk.MetricsRecord, error) {
	return f.snapshot, f.snapshotErr
}

func (f *fakeClient) WatchMetrics(ctx context.Context, onRecord func(dashsdk.MetricsRecord)) error {
	for _, r := range f.stream {
		onRecord(r)
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("SnapshotThenStream", func(t *testing.T) {
		t.Parallel()

		ctx := testutil.Context(t, testutil.WaitShort)
		client := &fakeClient{
			snapshot: []dashsdk.MetricsRecord{record(1), record(2)},
			stream:   []dashsdk.MetricsRecord{record(3), record(4)},
		}
		store := dashstate.NewStore(dashstate.InitialState())
		streamed := make(chan struct{})
		store.Subscribe(func(s dashstate.State) {
			if len(s.Timeseries) == 4 {
				close(streamed)
			}
		})

		loadCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() {
			done <- dashstate.Load(loadCtx, client, store)
		}()
		testutil.RequireReceive(ctx, t, streamed)
		cancel()
		require.ErrorIs(t, testutil.RequireReceive(ctx, t, done), context.Canceled)

		state := store.State()
		require.False(t, state.IsLoadingMetrics)
		require.Equal(t, []dashsdk.MetricsRecord{record(1), record(2), record(3), record(4)}, state.Timeseries)
	})

	t.Run("SnapshotFailureStaysLoading", func(t *testing.T) {
		t.Parallel()

		ctx := testutil.Context(t, testutil.WaitShort)
		snapshotErr := xerrors.New("connection refused")
		store := dashstate.NewStore(dashstate.InitialState())
		err := dashstate.Load(ctx, &fakeClient{snapshotErr: snapshotErr}, store)
		require.ErrorIs(t, err, snapshotErr)
		require.True(t, store.State().IsLoadingMetrics)
		require.Empty(t, store.State().Timeseries)
	})
}
