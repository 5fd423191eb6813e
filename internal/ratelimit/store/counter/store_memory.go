package counter

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore implements the counter store with process-local fixed
// windows. Used by tests and as the single-instance deployment mode; for
// shared quotas across instances use RedisStore.
type InMemoryStore struct {
	mu       sync.Mutex
	counters map[string]*window
	now      func() time.Time
}

type window struct {
	count    int64
	expireAt time.Time
}

// MemoryOption configures an InMemoryStore.
type MemoryOption func(*InMemoryStore)

// WithClock injects a clock for deterministic window expiry in tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *InMemoryStore) {
		s.now = now
	}
}

// NewInMemoryStore creates an in-memory counter store.
func NewInMemoryStore(opts ...MemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		counters: make(map[string]*window),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IncrBy increments key by amount, starting a fresh fixed window when the
// key is new or its previous window has expired.
func (s *InMemoryStore) IncrBy(ctx context.Context, key string, amount int64, windowLen time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.counters[key]
	if !ok || !now.Before(w.expireAt) {
		w = &window{expireAt: now.Add(windowLen)}
		s.counters[key] = w
	}
	w.count += amount
	return w.count, nil
}

// Get returns the current count for key, 0 if the window has expired.
func (s *InMemoryStore) Get(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.counters[key]
	if !ok || !s.now().Before(w.expireAt) {
		return 0, nil
	}
	return w.count, nil
}

// Reset deletes the given counters.
func (s *InMemoryStore) Reset(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.counters, key)
	}
	return nil
}
