package audit

import (
	"context"
	"fmt"
	"log/slog"
)

// Sink persists audit entries.
type Sink interface {
	Write(ctx context.Context, entry Entry) error
	Close() error
}

// Publisher decouples audit emission from the request path with a bounded
// queue and a single worker. When the queue is full the entry is dropped
// and counted; callers are never blocked.
type Publisher struct {
	sink   Sink
	queue  chan Entry
	logger *slog.Logger
}

// PublisherOption configures the Publisher.
type PublisherOption func(*Publisher)

func WithLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithQueueSize(n int) PublisherOption {
	return func(p *Publisher) {
		p.queue = make(chan Entry, n)
	}
}

// NewPublisher constructs a Publisher over sink.
func NewPublisher(sink Sink, opts ...PublisherOption) (*Publisher, error) {
	if sink == nil {
		return nil, fmt.Errorf("sink cannot be nil")
	}
	p := &Publisher{
		sink:   sink,
		queue:  make(chan Entry, 1024),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Emit enqueues the entry without blocking. Returns immediately whether or
// not the entry was accepted.
func (p *Publisher) Emit(entry Entry) {
	select {
	case p.queue <- entry:
		emittedTotal.WithLabelValues(string(entry.Status)).Inc()
	default:
		droppedTotal.Inc()
		p.logger.Warn("audit queue full, dropping entry",
			"request_id", entry.RequestID,
			"status", entry.Status,
		)
	}
}

// Run drains the queue until ctx is cancelled, then flushes what remains
// before returning. Intended to run in its own goroutine under the
// process's errgroup.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case entry := <-p.queue:
			p.write(ctx, entry)
		case <-ctx.Done():
			p.drain()
			return ctx.Err()
		}
	}
}

func (p *Publisher) drain() {
	// Detached context: the run context is already cancelled but queued
	// entries should still reach the sink during shutdown.
	ctx := context.Background()
	for {
		select {
		case entry := <-p.queue:
			p.write(ctx, entry)
		default:
			return
		}
	}
}

func (p *Publisher) write(ctx context.Context, entry Entry) {
	if err := p.sink.Write(ctx, entry); err != nil {
		writeErrorsTotal.Inc()
		p.logger.ErrorContext(ctx, "audit sink write failed",
			"request_id", entry.RequestID,
			"error", err,
		)
	}
}
