package circuit

import (
	"fmt"
	"sync"
)

// Registry owns all breakers in the process, keyed by operation. It is
// created by the composition root and handed to every call site; breakers
// live for the process lifetime and are never deleted.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
	opts     []Option
}

// NewRegistry constructs an empty Registry. The given options are applied to
// every breaker it creates (tests use this to inject a clock).
func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		breakers: make(map[string]*Breaker),
		opts:     opts,
	}
}

// Register creates the breaker for key with explicit settings. Registering an
// existing key with the same settings returns the existing breaker;
// conflicting settings are rejected rather than silently replacing a breaker
// other call sites already hold.
func (r *Registry) Register(key string, settings Settings) (*Breaker, error) {
	if key == "" {
		return nil, fmt.Errorf("circuit: operation key is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.breakers[key]; ok {
		if existing.settings != settings {
			return nil, fmt.Errorf("circuit: %s already registered with different settings", key)
		}
		return existing, nil
	}

	b := New(key, settings, r.opts...)
	r.breakers[key] = b
	return b, nil
}

// Get returns the breaker for key, lazily creating one with default settings.
// Call sites with specific requirements must Register before first use.
func (r *Registry) Get(key string) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[key]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[key]; ok {
		return b
	}
	b = New(key, DefaultSettings(), r.opts...)
	r.breakers[key] = b
	return b
}

// Snapshot returns the bookkeeping of every registered breaker.
func (r *Registry) Snapshot() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]Record, 0, len(r.breakers))
	for _, b := range r.breakers {
		records = append(records, b.Snapshot())
	}
	return records
}
