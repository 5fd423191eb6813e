// Package audit records the outcome of every admitted request. Emission is
// asynchronous and advisory: a slow or failing sink never touches the
// request path.
package audit

import "time"

// Status is the terminal classification of one admission attempt.
type Status string

const (
	StatusSuccess        Status = "success"
	StatusRateLimited    Status = "rate_limited"
	StatusPolicyDenied   Status = "policy_denied"
	StatusContentBlocked Status = "content_blocked"
	StatusUpstreamError  Status = "upstream_error"
	StatusInternalError  Status = "internal_error"
)

// Entry is one audit record. It carries entity type names and pattern names
// only, never matched content; the audit trail must not become a second
// copy of the data the scanner exists to contain.
type Entry struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`

	UserID   string `json:"user_id"`
	Tenant   string `json:"tenant"`
	Role     string `json:"role,omitempty"`
	ClientIP string `json:"client_ip,omitempty"`

	Operation string `json:"operation"`
	Target    string `json:"target,omitempty"`
	ServedBy  string `json:"served_by,omitempty"`

	Status Status `json:"status"`

	RateLimitScope string   `json:"rate_limit_scope,omitempty"`
	PolicyAllowed  bool     `json:"policy_allowed"`
	PIIDetected    bool     `json:"pii_detected"`
	Redacted       bool     `json:"redacted"`
	EntityTypes    []string `json:"entity_types,omitempty"`
	Violations     []string `json:"violations,omitempty"`

	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
	LatencyMS    int64   `json:"latency_ms"`

	Detail map[string]any `json:"detail,omitempty"`
}

// SetDetail records an extra key on the entry, allocating lazily.
func (e *Entry) SetDetail(key string, value any) {
	if e.Detail == nil {
		e.Detail = make(map[string]any)
	}
	e.Detail[key] = value
}
