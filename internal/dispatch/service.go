// Package dispatch routes admitted completions to upstream model targets,
// guarding each target with its own circuit breaker and pricing the tokens
// the serving target reports.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bulwark/internal/circuit"
	dErrors "bulwark/pkg/domain-errors"
)

// Adapter performs the actual upstream call for a target.
type Adapter interface {
	Complete(ctx context.Context, target string, req Request) (Completion, error)
}

// Service routes requests to targets through per-target breakers, falling
// back at most once to the configured fallback target.
type Service struct {
	adapter        Adapter
	breakers       *circuit.Registry
	rateCard       map[string]Pricing
	defaultTarget  string
	fallbackTarget string
	logger         *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithRateCard replaces the built-in target price table.
func WithRateCard(card map[string]Pricing) Option {
	return func(s *Service) {
		s.rateCard = card
	}
}

// New constructs the dispatcher and registers a breaker per known target.
func New(adapter Adapter, breakers *circuit.Registry, defaultTarget, fallbackTarget string, opts ...Option) (*Service, error) {
	if adapter == nil {
		return nil, fmt.Errorf("adapter cannot be nil")
	}
	if breakers == nil {
		return nil, fmt.Errorf("breaker registry cannot be nil")
	}

	s := &Service{
		adapter:        adapter,
		breakers:       breakers,
		rateCard:       defaultRateCard(),
		defaultTarget:  defaultTarget,
		fallbackTarget: fallbackTarget,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if _, ok := s.rateCard[s.defaultTarget]; !ok {
		return nil, fmt.Errorf("default target %q is not in the rate card", s.defaultTarget)
	}
	if s.fallbackTarget != "" {
		if _, ok := s.rateCard[s.fallbackTarget]; !ok {
			return nil, fmt.Errorf("fallback target %q is not in the rate card", s.fallbackTarget)
		}
	}

	for target := range s.rateCard {
		if _, err := breakers.Register(breakerKey(target), circuit.DefaultSettings()); err != nil {
			return nil, fmt.Errorf("registering breaker for %s: %w", target, err)
		}
	}
	return s, nil
}

func breakerKey(target string) string {
	return "dispatch:" + target
}

// Dispatch sends the request to its target, retrying exactly once against
// the fallback target when the primary fails or its breaker is open. The
// fallback never cascades: a failing fallback ends the request.
func (s *Service) Dispatch(ctx context.Context, req Request) (*Result, error) {
	target := req.Target
	if target == "" {
		target = s.defaultTarget
	}
	if _, ok := s.rateCard[target]; !ok {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown dispatch target").
			WithDetail("target", target)
	}

	result, err := s.attempt(ctx, target, req)
	if err == nil {
		return result, nil
	}

	if s.fallbackTarget == "" || target == s.fallbackTarget {
		return nil, err
	}

	s.logger.WarnContext(ctx, "primary target failed, trying fallback",
		"target", target,
		"fallback", s.fallbackTarget,
		"error", err,
	)
	fallbacksTotal.WithLabelValues(target).Inc()

	result, fbErr := s.attempt(ctx, s.fallbackTarget, req)
	if fbErr != nil {
		return nil, fbErr
	}
	result.FellBack = true
	return result, nil
}

func (s *Service) attempt(ctx context.Context, target string, req Request) (*Result, error) {
	breaker := s.breakers.Get(breakerKey(target))

	var completion Completion
	var latency time.Duration
	err := breaker.Do(ctx, func(ctx context.Context) error {
		start := time.Now()
		var callErr error
		completion, callErr = s.adapter.Complete(ctx, target, req)
		latency = time.Since(start)
		return callErr
	})
	if err != nil {
		var open *circuit.OpenError
		if errors.As(err, &open) {
			requestsTotal.WithLabelValues(target, "circuit_open").Inc()
			return nil, dErrors.Wrap(err, dErrors.CodeCircuitOpen, "target circuit is open").
				WithDetail("target", target).
				WithDetail("retry_after", int64(open.RetryAfter.Seconds()))
		}
		requestsTotal.WithLabelValues(target, "error").Inc()
		return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "upstream call failed").
			WithDetail("target", target)
	}

	pricing := s.rateCard[target]
	cost := pricing.Cost(completion.InputTokens, completion.OutputTokens)

	requestsTotal.WithLabelValues(target, "success").Inc()
	latencySeconds.WithLabelValues(target).Observe(latency.Seconds())
	costUSDTotal.WithLabelValues(target).Add(cost)

	return &Result{
		Content:      completion.Content,
		ServedBy:     target,
		InputTokens:  completion.InputTokens,
		OutputTokens: completion.OutputTokens,
		CostUSD:      cost,
		Latency:      latency,
	}, nil
}
