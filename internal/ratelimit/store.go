package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"
)

// CounterStore is the shared counter backend behind the limiter. Implementations
// must make Increment atomic per (key, window) so concurrent checks never lose
// updates. Any error from the store triggers fail-open in the limiter.
type CounterStore interface {
	// Increment adds one to the counter for key in the fixed window starting at
	// windowStart and returns the new count.
	Increment(ctx context.Context, key string, windowStart time.Time) (int64, error)
	// Count returns the counter for key in the given window without mutating it.
	Count(ctx context.Context, key string, windowStart time.Time) (int64, error)
	// Reset removes all counters whose key matches keyPrefix.
	Reset(ctx context.Context, keyPrefix string) error
}

// MemoryCounterStore is an in-process CounterStore. It is the default when no
// shared backend is configured and is also used by tests.
type MemoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]map[int64]int64 // key -> windowStart(unix nano) -> count
}

// NewMemoryCounterStore creates an empty in-memory counter store.
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{counters: make(map[string]map[int64]int64)}
}

// Increment atomically bumps the counter for (key, windowStart).
func (s *MemoryCounterStore) Increment(_ context.Context, key string, windowStart time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	windows, ok := s.counters[key]
	if !ok {
		windows = make(map[int64]int64)
		s.counters[key] = windows
	}
	ts := windowStart.UnixNano()
	windows[ts]++

	// Stale windows can never contribute to a sliding check again. 48h covers
	// the widest configured budget window with margin.
	cutoff := ts - (48 * time.Hour).Nanoseconds()
	for old := range windows {
		if old < cutoff {
			delete(windows, old)
		}
	}

	return windows[ts], nil
}

// Count returns the counter for (key, windowStart) without consuming budget.
func (s *MemoryCounterStore) Count(_ context.Context, key string, windowStart time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	windows, ok := s.counters[key]
	if !ok {
		return 0, nil
	}
	return windows[windowStart.UnixNano()], nil
}

// Prune drops windows that started before cutoff. Keys with no remaining
// windows are removed entirely.
func (s *MemoryCounterStore) Prune(_ context.Context, cutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit := cutoff.UnixNano()
	for key, windows := range s.counters {
		for ts := range windows {
			if ts < limit {
				delete(windows, ts)
			}
		}
		if len(windows) == 0 {
			delete(s.counters, key)
		}
	}
	return nil
}

// Reset removes all windows for keys matching keyPrefix.
func (s *MemoryCounterStore) Reset(_ context.Context, keyPrefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.counters {
		if strings.HasPrefix(key, keyPrefix) {
			delete(s.counters, key)
		}
	}
	return nil
}
