// Package circuit implements a per-operation circuit breaker protecting
// downstream integrations from cascading failure.
package circuit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// State is the breaker's position in its transition graph.
type State int

const (
	// StateClosed passes requests through and counts consecutive failures.
	StateClosed State = iota
	// StateOpen rejects requests immediately without invoking the call.
	StateOpen
	// StateHalfOpen allows exactly one trial request to test recovery.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Settings configures a breaker for one operation key.
type Settings struct {
	FailureThreshold int
	OpenTimeout      time.Duration
}

// DefaultSettings matches the read-operation profile.
func DefaultSettings() Settings {
	return Settings{FailureThreshold: 5, OpenTimeout: 60 * time.Second}
}

// OpenError is returned when the breaker rejects a call without invoking it.
type OpenError struct {
	Key        string
	RetryAfter time.Duration
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit open for %s, retry after %s", e.Key, e.RetryAfter)
}

// Record is a point-in-time snapshot of one breaker's bookkeeping.
type Record struct {
	Key                 string    `json:"key"`
	State               string    `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastFailureTime     time.Time `json:"last_failure_time"`
	FailureThreshold    int       `json:"failure_threshold"`
	OpenTimeoutSeconds  int       `json:"open_timeout_seconds"`
}

// Breaker guards calls to a single operation key. All state transitions
// happen under one mutex; different keys are independent.
type Breaker struct {
	key      string
	settings Settings
	now      func() time.Time

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	lastFailureTime     time.Time
	trialInFlight       bool
}

// Option customizes a Breaker.
type Option func(*Breaker)

// WithClock injects a clock for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		b.now = now
	}
}

// New constructs a Breaker for the given operation key.
func New(key string, settings Settings, opts ...Option) *Breaker {
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = DefaultSettings().FailureThreshold
	}
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = DefaultSettings().OpenTimeout
	}
	b := &Breaker{
		key:      key,
		settings: settings,
		now:      time.Now,
		state:    StateClosed,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Key returns the operation key this breaker guards.
func (b *Breaker) Key() string { return b.key }

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot returns the breaker's current bookkeeping.
func (b *Breaker) Snapshot() Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Record{
		Key:                 b.key,
		State:               b.state.String(),
		ConsecutiveFailures: b.consecutiveFailures,
		LastFailureTime:     b.lastFailureTime,
		FailureThreshold:    b.settings.FailureThreshold,
		OpenTimeoutSeconds:  int(b.settings.OpenTimeout / time.Second),
	}
}

// Do invokes fn under breaker protection. While open and the timeout has not
// elapsed, it fails immediately with *OpenError without invoking fn. Any
// error from fn counts as a failure; the error is returned unchanged after
// the breaker updates its own state.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	trial, err := b.admit()
	if err != nil {
		breakerRejections.WithLabelValues(b.key).Inc()
		return err
	}

	callErr := fn(ctx)
	b.settle(trial, callErr)
	return callErr
}

// admit decides whether a call may proceed, transitioning Open -> HalfOpen
// when the cooldown has elapsed. Returns whether this call is the half-open
// trial.
func (b *Breaker) admit() (trial bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return false, nil
	case StateOpen:
		if b.now().Sub(b.lastFailureTime) < b.settings.OpenTimeout {
			return false, &OpenError{Key: b.key, RetryAfter: b.settings.OpenTimeout}
		}
		b.transition(StateHalfOpen)
		b.trialInFlight = true
		return true, nil
	default: // StateHalfOpen
		if b.trialInFlight {
			// Only one trial at a time; concurrent callers are rejected.
			return false, &OpenError{Key: b.key, RetryAfter: b.settings.OpenTimeout}
		}
		b.trialInFlight = true
		return true, nil
	}
}

// settle records the call outcome.
func (b *Breaker) settle(trial bool, callErr error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if trial {
		b.trialInFlight = false
	}

	if callErr == nil {
		if b.state == StateHalfOpen {
			b.transition(StateClosed)
		}
		// Only success resets the count, not merely an unchanged state.
		b.consecutiveFailures = 0
		return
	}

	b.consecutiveFailures++
	b.lastFailureTime = b.now()

	switch b.state {
	case StateHalfOpen:
		b.transition(StateOpen)
	case StateClosed:
		if b.consecutiveFailures >= b.settings.FailureThreshold {
			b.transition(StateOpen)
		}
	}
}

// transition must be called with the mutex held.
func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	breakerTransitions.WithLabelValues(b.key, b.state.String(), to.String()).Inc()
	breakerState.WithLabelValues(b.key).Set(float64(to))
	b.state = to
}
