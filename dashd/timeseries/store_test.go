package timeseries_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/livedash/livedash/dashd/timeseries"
	"github.com/livedash/livedash/dashsdk"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func record(ts int64) dashsdk.MetricsRecord {
	return dashsdk.MetricsRecord{
		Timestamp:   ts,
		ActiveUsers: ts % 42,
		Browsers:    map[string]int64{"Chrome": ts},
		OS:          map[string]int64{"Linux": ts},
	}
}

func TestStore(t *testing.T) {
	t.Parallel()

	t.Run("Retention", func(t *testing.T) {
		t.Parallel()

		for _, capacity := range []int{1, 3, 200} {
			for _, appends := range []int{0, 1, 2, 3, 4, 199, 200, 201, 450} {
				t.Run(fmt.Sprintf("C%d_N%d", capacity, appends), func(t *testing.T) {
					t.Parallel()

					store := timeseries.NewStore(capacity)
					var all []dashsdk.MetricsRecord
					for i := range appends {
						r := record(int64(i))
						all = append(all, r)
						store.Append(r)
					}

					want := min(appends, capacity)
					require.Equal(t, want, store.Len())
					snapshot := store.Snapshot()
					require.Len(t, snapshot, want)
					if want > 0 {
						require.Equal(t, all[len(all)-want:], snapshot)
					}
				})
			}
		}
	})

	t.Run("DefaultCapacity", func(t *testing.T) {
		t.Parallel()
		require.Equal(t, timeseries.DefaultMaxSamples, timeseries.NewStore(0).Max())
		require.Equal(t, timeseries.DefaultMaxSamples, timeseries.NewStore(-5).Max())
	})

	t.Run("EmptySnapshotIsNotNil", func(t *testing.T) {
		t.Parallel()
		snapshot := timeseries.NewStore(10).Snapshot()
		require.NotNil(t, snapshot)
		require.Empty(t, snapshot)

		_, ok := timeseries.NewStore(10).Latest()
		require.False(t, ok)
	})

	t.Run("SnapshotIsIsolated", func(t *testing.T) {
		t.Parallel()

		store := timeseries.NewStore(2)
		store.Append(record(1))
		snapshot := store.Snapshot()
		store.Append(record(2))
		store.Append(record(3))

		require.Len(t, snapshot, 1)
		require.EqualValues(t, 1, snapshot[0].Timestamp)

		latest, ok := store.Latest()
		require.True(t, ok)
		require.EqualValues(t, 3, latest.Timestamp)
	})

	t.Run("ConcurrentReaders", func(t *testing.T) {
		t.Parallel()

		store := timeseries.NewStore(50)
		var wg sync.WaitGroup
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 200 {
					snapshot := store.Snapshot()
					for i := 1; i < len(snapshot); i++ {
						if snapshot[i].Timestamp < snapshot[i-1].Timestamp {
							panic("snapshot out of order")
						}
					}
				}
			}()
		}
		for i := range 1000 {
			store.Append(record(int64(i)))
		}
		wg.Wait()
		require.Equal(t, 50, store.Len())
	})
}
