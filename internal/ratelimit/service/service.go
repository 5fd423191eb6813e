// Package service implements the distributed rate limiter: per-principal and
// per-tenant fixed-window quotas over a shared counter store.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bulwark/internal/ratelimit/models"
)

// CounterStore is the shared, TTL-expiring counter backend. Implementations
// must provide atomic increment-and-read per key.
type CounterStore interface {
	IncrBy(ctx context.Context, key string, amount int64, window time.Duration) (int64, error)
	Get(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, keys ...string) error
}

// Limits holds the quota for each scope window.
type Limits struct {
	UserPerMinute    int64
	TenantPerHour    int64
	UserTokensPerDay int64
}

// DefaultLimits mirrors the deployment defaults.
func DefaultLimits() Limits {
	return Limits{
		UserPerMinute:    100,
		TenantPerHour:    10000,
		UserTokensPerDay: 100000,
	}
}

// Service checks and consumes fixed-window quotas. The window approximation
// admits up to 2x the nominal rate across a window boundary; this is the
// accepted tradeoff of counter-per-window, not a defect. A sliding-window
// log would tighten it at the cost of one entry per request.
type Service struct {
	store    CounterStore
	limits   Limits
	failOpen bool
	logger   *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithLimits(limits Limits) Option {
	return func(s *Service) {
		s.limits = limits
	}
}

// WithFailOpen sets the degraded-store behavior. The default is to fail
// open; failing closed turns a store outage into rejected requests.
func WithFailOpen(failOpen bool) Option {
	return func(s *Service) {
		s.failOpen = failOpen
	}
}

// New constructs the rate limit service.
func New(store CounterStore, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("counter store is required")
	}

	svc := &Service{
		store:    store,
		limits:   DefaultLimits(),
		failOpen: true,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

// scopeCheck describes one quota window in check order.
type scopeCheck struct {
	scope  models.Scope
	key    string
	amount int64
	window time.Duration
	limit  int64
}

// Check consumes one request unit against the user-minute and tenant-hour
// windows, and tokens against the user-day window when tokens > 0. Scopes
// are checked in that order, short-circuiting on first violation. Quota
// consumed before a later violation is not rolled back.
//
// By default the check fails open: if the counter store is unreachable the
// request is admitted and the decision marked degraded, because losing
// quota enforcement is preferred over dropping all traffic. WithFailOpen
// makes the tradeoff explicit per deployment.
func (s *Service) Check(ctx context.Context, userID, tenant string, tokens int64) (*models.Decision, error) {
	checks := []scopeCheck{
		{
			scope:  models.ScopeUserMinute,
			key:    models.UserMinuteKey(userID),
			amount: 1,
			window: time.Minute,
			limit:  s.limits.UserPerMinute,
		},
		{
			scope:  models.ScopeTenantHour,
			key:    models.TenantHourKey(tenant),
			amount: 1,
			window: time.Hour,
			limit:  s.limits.TenantPerHour,
		},
	}
	if tokens > 0 {
		checks = append(checks, scopeCheck{
			scope:  models.ScopeUserTokensDay,
			key:    models.UserTokensDayKey(userID),
			amount: tokens,
			window: 24 * time.Hour,
			limit:  s.limits.UserTokensPerDay,
		})
	}

	for _, c := range checks {
		count, err := s.store.IncrBy(ctx, c.key, c.amount, c.window)
		if err != nil {
			if !s.failOpen {
				return nil, fmt.Errorf("counter store unreachable: %w", err)
			}
			s.logger.ErrorContext(ctx, "counter store unreachable, failing open",
				"scope", c.scope,
				"error", err,
			)
			decisionsTotal.WithLabelValues(string(c.scope), "degraded").Inc()
			return &models.Decision{Allowed: true, Scope: c.scope, Degraded: true}, nil
		}

		if count > c.limit {
			s.logger.WarnContext(ctx, "rate limit exceeded",
				"scope", c.scope,
				"limit", c.limit,
				"current", count,
			)
			decisionsTotal.WithLabelValues(string(c.scope), "rejected").Inc()
			return &models.Decision{
				Allowed:    false,
				Scope:      c.scope,
				Limit:      c.limit,
				Current:    count,
				RetryAfter: int(c.window / time.Second),
			}, nil
		}
		decisionsTotal.WithLabelValues(string(c.scope), "allowed").Inc()
	}

	return &models.Decision{Allowed: true}, nil
}

// Usage returns the caller's current counters across all windows.
func (s *Service) Usage(ctx context.Context, userID, tenant string) (*models.Usage, error) {
	userMinute, err := s.store.Get(ctx, models.UserMinuteKey(userID))
	if err != nil {
		return nil, fmt.Errorf("get user minute counter: %w", err)
	}
	tenantHour, err := s.store.Get(ctx, models.TenantHourKey(tenant))
	if err != nil {
		return nil, fmt.Errorf("get tenant hour counter: %w", err)
	}
	tokensDay, err := s.store.Get(ctx, models.UserTokensDayKey(userID))
	if err != nil {
		return nil, fmt.Errorf("get user tokens counter: %w", err)
	}

	return &models.Usage{
		RequestsPerMinute: userMinute,
		TenantPerHour:     tenantHour,
		TokensPerDay:      tokensDay,
	}, nil
}

// ResetUser clears all of a user's counters. Admin surface only.
func (s *Service) ResetUser(ctx context.Context, userID string) error {
	err := s.store.Reset(ctx,
		models.UserMinuteKey(userID),
		models.UserTokensDayKey(userID),
	)
	if err != nil {
		return fmt.Errorf("reset counters for user: %w", err)
	}
	s.logger.InfoContext(ctx, "rate limits reset", "user_id", userID)
	return nil
}
