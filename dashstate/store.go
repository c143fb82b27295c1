package dashstate

import (
	"context"
	"sync"

	"golang.org/x/xerrors"

	"github.com/livedash/livedash/dashsdk"
)

// Store holds the current State and notifies listeners after every
// dispatch.
type Store struct {
	mu        sync.Mutex
	state     State
	nextID    int
	listeners map[int]func(State)
}

func NewStore(initial State) *Store {
	return &Store{
		state:     initial,
		listeners: map[int]func(State){},
	}
}

// Dispatch reduces action into the state and calls every listener with the
// result. Listeners run on the dispatching goroutine, outside the lock.
func (s *Store) Dispatch(action Action) State {
	s.mu.Lock()
	s.state = Reduce(s.state, action)
	state := s.state
	listeners := make([]func(State), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(state)
	}
	return state
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers listener and returns a func that removes it.
func (s *Store) Subscribe(listener func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = listener
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// MetricsClient is the part of the SDK client Load needs.
type MetricsClient interface {
	Metrics(ctx context.Context) ([]dashsdk.MetricsRecord, error)
	WatchMetrics(ctx context.Context, onRecord func(dashsdk.MetricsRecord)) error
}

// Load fetches the snapshot into store, clears the loading flag and then
// streams live records until ctx is done. If the snapshot fails the store is
// left loading and the error is returned.
func Load(ctx context.Context, client MetricsClient, store *Store) error {
	records, err := client.Metrics(ctx)
	if err != nil {
		return xerrors.Errorf("fetch metrics snapshot: %w", err)
	}
	store.Dispatch(AddMetrics{Batch: records})
	store.Dispatch(SetLoadingState{IsLoading: false})

	return client.WatchMetrics(ctx, func(record dashsdk.MetricsRecord) {
		store.Dispatch(AddMetrics{Batch: []dashsdk.MetricsRecord{record}})
	})
}
