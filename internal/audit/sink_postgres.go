package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
)

// PostgresSink appends entries to the audit_log table for queryable
// retention alongside the streaming trail.
type PostgresSink struct {
	db *sql.DB
}

const insertEntry = `
	INSERT INTO audit_log (
		request_id, ts, user_id, tenant, role, client_ip, operation, target,
		served_by, status, rate_limit_scope, policy_allowed, pii_detected,
		redacted, entity_types, violations, input_tokens, output_tokens,
		cost_usd, latency_ms, detail
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		$11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21
	)`

// NewPostgresSink opens a connection pool against dsn and verifies it.
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging audit database: %w", err)
	}
	return &PostgresSink{db: db}, nil
}

// Write implements Sink.
func (s *PostgresSink) Write(ctx context.Context, entry Entry) error {
	var detail []byte
	if len(entry.Detail) > 0 {
		var err error
		detail, err = json.Marshal(entry.Detail)
		if err != nil {
			return fmt.Errorf("marshal entry detail: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx, insertEntry,
		entry.RequestID,
		entry.Timestamp,
		entry.UserID,
		entry.Tenant,
		entry.Role,
		entry.ClientIP,
		entry.Operation,
		entry.Target,
		entry.ServedBy,
		string(entry.Status),
		entry.RateLimitScope,
		entry.PolicyAllowed,
		entry.PIIDetected,
		entry.Redacted,
		pq.Array(entry.EntityTypes),
		pq.Array(entry.Violations),
		entry.InputTokens,
		entry.OutputTokens,
		entry.CostUSD,
		entry.LatencyMS,
		detail,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresSink) Close() error {
	return s.db.Close()
}
