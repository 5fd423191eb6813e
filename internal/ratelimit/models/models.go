package models

import "fmt"

// Scope identifies which quota window a decision applies to. The pipeline
// checks scopes in declaration order and short-circuits on first violation.
type Scope string

const (
	ScopeUserMinute    Scope = "user_minute"
	ScopeTenantHour    Scope = "tenant_hour"
	ScopeUserTokensDay Scope = "user_tokens_day"
)

// IsValid checks if the scope is one of the supported enum values.
func (s Scope) IsValid() bool {
	switch s {
	case ScopeUserMinute, ScopeTenantHour, ScopeUserTokensDay:
		return true
	}
	return false
}

// Decision is the outcome of a rate limit check. Produced fresh per check
// and not persisted beyond the call.
type Decision struct {
	Allowed    bool  `json:"allowed"`
	Scope      Scope `json:"scope,omitempty"`
	Limit      int64 `json:"limit"`
	Current    int64 `json:"current"`
	RetryAfter int   `json:"retry_after,omitempty"` // seconds, only set when not allowed
	// Degraded marks a fail-open decision taken because the counter store
	// was unreachable.
	Degraded bool `json:"degraded,omitempty"`
}

// Usage reports a caller's current counters across all windows.
type Usage struct {
	RequestsPerMinute int64 `json:"requests_per_minute"`
	TenantPerHour     int64 `json:"tenant_per_hour"`
	TokensPerDay      int64 `json:"tokens_per_day"`
}

// Counter key builders. Keys are shared across gateway instances through the
// counter store, so the shapes here are part of the deployment contract.

func UserMinuteKey(userID string) string {
	return fmt.Sprintf("rate_limit:user:%s:minute", userID)
}

func TenantHourKey(tenant string) string {
	return fmt.Sprintf("rate_limit:tenant:%s:hour", tenant)
}

func UserTokensDayKey(userID string) string {
	return fmt.Sprintf("rate_limit:user:%s:tokens:day", userID)
}
