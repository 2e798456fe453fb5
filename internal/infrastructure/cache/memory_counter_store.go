package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/autoflow/backend/internal/domain/quota"
)

// MemoryCounterStore implements quota.CounterStore in process memory.
// Suitable for tests and single-node deployments; distributed
// deployments need the Redis store so instances share counters.
type MemoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]*memoryCounter
	now      func() time.Time
}

type memoryCounter struct {
	key       quota.CounterKey
	value     int64
	expiresAt time.Time // zero = no expiry
}

// NewMemoryCounterStore creates an in-memory counter store
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		counters: make(map[string]*memoryCounter),
		now:      time.Now,
	}
}

// Increment atomically adds amount to the counter and returns the new
// value
func (s *MemoryCounterStore) Increment(_ context.Context, key quota.CounterKey, amount int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.live(key)
	if c == nil {
		c = &memoryCounter{key: key}
		s.counters[key.String()] = c
	}
	c.value += amount
	return c.value, nil
}

// Get returns the counter value, or (0, false, nil) when absent or
// expired
func (s *MemoryCounterStore) Get(_ context.Context, key quota.CounterKey) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.live(key)
	if c == nil {
		return 0, false, nil
	}
	return c.value, true, nil
}

// ExpireAt sets or refreshes the key's expiry
func (s *MemoryCounterStore) ExpireAt(_ context.Context, key quota.CounterKey, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c := s.live(key); c != nil {
		c.expiresAt = at
	}
	return nil
}

// AdjustGauge adds delta to a gauge key, clamping the result at zero
func (s *MemoryCounterStore) AdjustGauge(_ context.Context, key quota.CounterKey, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.live(key)
	if c == nil {
		c = &memoryCounter{key: key}
		s.counters[key.String()] = c
	}
	c.value += delta
	if c.value < 0 {
		c.value = 0
	}
	return c.value, nil
}

// ScanPeriod lists every live counter recorded under a period key
func (s *MemoryCounterStore) ScanPeriod(_ context.Context, periodKey string) ([]quota.CounterEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	suffix := ":" + periodKey
	now := s.now()

	var entries []quota.CounterEntry
	for k, c := range s.counters {
		if !strings.HasSuffix(k, suffix) {
			continue
		}
		if !c.expiresAt.IsZero() && now.After(c.expiresAt) {
			continue
		}
		entries = append(entries, quota.CounterEntry{
			Owner:    c.key.Owner,
			Resource: c.key.Resource,
			Value:    c.value,
		})
	}
	return entries, nil
}

// live returns the counter for a key, dropping it first if expired.
// Callers must hold s.mu.
func (s *MemoryCounterStore) live(key quota.CounterKey) *memoryCounter {
	k := key.String()
	c, ok := s.counters[k]
	if !ok {
		return nil
	}
	if !c.expiresAt.IsZero() && s.now().After(c.expiresAt) {
		delete(s.counters, k)
		return nil
	}
	return c
}

// Ensure MemoryCounterStore implements CounterStore
var _ quota.CounterStore = (*MemoryCounterStore)(nil)
