package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memoryCounter struct {
	count     int64
	expiresAt time.Time
}

// MemoryCounterStore is the single-process fallback. Counters live in a
// mutex-guarded map and do not survive restarts or span instances: behind
// more than one server process the limit is per-process, not global. Tests
// and explicitly single-instance deployments only.
type MemoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]memoryCounter
	now      func() time.Time
}

func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		counters: make(map[string]memoryCounter),
		now:      time.Now,
	}
}

// WithNowFunc overrides the store's clock for window-expiry tests.
func (s *MemoryCounterStore) WithNowFunc(now func() time.Time) *MemoryCounterStore {
	s.now = now
	return s
}

func (s *MemoryCounterStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	counter, ok := s.counters[key]
	if !ok || now.After(counter.expiresAt) {
		counter = memoryCounter{count: 0, expiresAt: now.Add(ttl)}
	}
	counter.count++
	s.counters[key] = counter

	return counter.count, nil
}

func (s *MemoryCounterStore) Get(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counter, ok := s.counters[key]
	if !ok || s.now().After(counter.expiresAt) {
		return 0, nil
	}

	return counter.count, nil
}

func (s *MemoryCounterStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.counters, key)
	}

	return nil
}
