package audit

import (
	"context"
	"log/slog"
	"sync"
)

// MemorySink keeps entries in memory. Used by tests and by deployments
// without a configured trail.
type MemorySink struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Write implements Sink.
func (s *MemorySink) Write(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// Entries returns a copy of everything written so far.
func (s *MemorySink) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *MemorySink) Close() error {
	return nil
}

// LogSink writes entries to structured logs. The fallback trail when
// neither Kafka nor Postgres is configured.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Write implements Sink.
func (s *LogSink) Write(ctx context.Context, entry Entry) error {
	s.logger.InfoContext(ctx, "audit",
		"request_id", entry.RequestID,
		"user_id", entry.UserID,
		"tenant", entry.Tenant,
		"operation", entry.Operation,
		"status", entry.Status,
		"served_by", entry.ServedBy,
		"pii_detected", entry.PIIDetected,
		"redacted", entry.Redacted,
		"entity_types", entry.EntityTypes,
		"violations", entry.Violations,
		"input_tokens", entry.InputTokens,
		"output_tokens", entry.OutputTokens,
		"cost_usd", entry.CostUSD,
		"latency_ms", entry.LatencyMS,
	)
	return nil
}

func (s *LogSink) Close() error {
	return nil
}

// MultiSink fans one entry out to several sinks. Write returns the first
// error but still attempts every sink.
type MultiSink struct {
	sinks []Sink
}

func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Write implements Sink.
func (s *MultiSink) Write(ctx context.Context, entry Entry) error {
	var firstErr error
	for _, sink := range s.sinks {
		if err := sink.Write(ctx, entry); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *MultiSink) Close() error {
	var firstErr error
	for _, sink := range s.sinks {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
