package timeseries

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/livedash/livedash/dashsdk"
)

// subscriberBuffer is how many records a slow subscriber may fall behind
// before new records are dropped for it.
const subscriberBuffer = 32

// Hub is an in-memory fan-out of new records to live subscribers.
//
// Every subscriber registered at the time of Publish receives the record.
// Delivery is best-effort: a subscriber that cannot keep up misses records
// rather than stalling the publisher.
type Hub struct {
	mu      sync.RWMutex
	subs    map[uuid.UUID]chan dashsdk.MetricsRecord
	dropped atomic.Int64
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uuid.UUID]chan dashsdk.MetricsRecord)}
}

// Subscribe registers a persistent subscriber. The returned cancel func
// removes the subscription and closes the channel; it is safe to call more
// than once and is called automatically when ctx is done.
func (h *Hub) Subscribe(ctx context.Context) (<-chan dashsdk.MetricsRecord, func()) {
	ch := make(chan dashsdk.MetricsRecord, subscriberBuffer)

	h.mu.Lock()
	var id uuid.UUID
	for {
		id = uuid.New()
		if _, ok := h.subs[id]; !ok {
			break
		}
	}
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	remove := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
	stop := context.AfterFunc(ctx, remove)

	return ch, func() {
		stop()
		remove()
	}
}

// Publish delivers record to every current subscriber and returns how many
// received it.
func (h *Hub) Publish(record dashsdk.MetricsRecord) int {
	// The read lock is held for the sends so that cancel cannot close a
	// channel mid-send.
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, sub := range h.subs {
		select {
		case sub <- record:
			delivered++
		default:
			h.dropped.Add(1)
		}
	}
	return delivered
}

// Count returns the number of active subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber's
// buffer was full.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}
