// Package timeseries holds the in-memory sample window served by the
// dashboard and fans new samples out to live subscribers.
package timeseries

import (
	"slices"
	"sync"

	"github.com/livedash/livedash/dashsdk"
)

// DefaultMaxSamples is used when a Store is created without a positive
// capacity.
const DefaultMaxSamples = 200

// Store is a capacity-bounded, insertion-ordered sequence of records. It has
// a single writer (the poller) and any number of concurrent readers.
type Store struct {
	mu      sync.RWMutex
	records []dashsdk.MetricsRecord
	max     int
}

func NewStore(maxSamples int) *Store {
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSamples
	}
	return &Store{
		records: make([]dashsdk.MetricsRecord, 0, maxSamples),
		max:     maxSamples,
	}
}

// Append adds record to the end of the window. When the window grows past
// its capacity the oldest records are dropped so the newest Max() remain.
func (s *Store) Append(record dashsdk.MetricsRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Reslicing from the front leaves the dead prefix behind; the next
	// growth of the backing array copies only the live records.
	s.records = append(s.records, record)
	if over := len(s.records) - s.max; over > 0 {
		clear(s.records[:over])
		s.records = s.records[over:]
	}
}

// Snapshot returns a copy of the current window, oldest first. It never
// returns nil.
func (s *Store) Snapshot() []dashsdk.MetricsRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.records) == 0 {
		return []dashsdk.MetricsRecord{}
	}
	return slices.Clone(s.records)
}

// Latest returns the newest record, if any.
func (s *Store) Latest() (dashsdk.MetricsRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.records) == 0 {
		return dashsdk.MetricsRecord{}, false
	}
	return s.records[len(s.records)-1], true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Store) Max() int {
	return s.max
}
