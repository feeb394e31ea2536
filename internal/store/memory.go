package store

import (
	"sync"

	"github.com/i474232898/flight-price-aggregation/internal/prices"
)

// MemoryStore is a concurrency-safe in-memory prices.Repository. Nothing
// survives a restart; it backs tests and dry runs.
type MemoryStore struct {
	mu sync.RWMutex

	series  prices.TimeSeries
	buckets prices.BucketStore
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		buckets: make(prices.BucketStore),
	}
}

// LoadSeries returns a copy of the stored series.
func (s *MemoryStore) LoadSeries() prices.TimeSeries {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(prices.TimeSeries, len(s.series))
	copy(out, s.series)
	return out
}

// SaveSeries replaces the stored series.
func (s *MemoryStore) SaveSeries(series prices.TimeSeries) error {
	cp := make(prices.TimeSeries, len(series))
	copy(cp, series)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.series = cp
	return nil
}

// LoadBuckets returns a deep copy of the stored buckets.
func (s *MemoryStore) LoadBuckets() prices.BucketStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buckets.Clone()
}

// SaveBuckets replaces the stored buckets.
func (s *MemoryStore) SaveBuckets(buckets prices.BucketStore) error {
	cp := buckets.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets = cp
	return nil
}
