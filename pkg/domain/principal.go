// Package domain holds identity types shared across the gateway.
package domain

import "fmt"

// Tier classifies principals for quota and routing decisions.
type Tier string

const (
	TierFree       Tier = "free"
	TierPremium    Tier = "premium"
	TierEnterprise Tier = "enterprise"
)

// IsValid checks if the tier is one of the supported enum values.
func (t Tier) IsValid() bool {
	switch t {
	case TierFree, TierPremium, TierEnterprise:
		return true
	}
	return false
}

// Principal identifies the authenticated caller for the lifetime of one
// admission request. It is produced by the auth middleware and treated as
// immutable by the pipeline.
type Principal struct {
	UserID string `json:"user_id"`
	Tenant string `json:"tenant"`
	Role   string `json:"role"`
	Tier   Tier   `json:"tier"`
}

// NewPrincipal validates and constructs a Principal.
func NewPrincipal(userID, tenant, role string, tier Tier) (Principal, error) {
	if userID == "" {
		return Principal{}, fmt.Errorf("user_id cannot be empty")
	}
	if tenant == "" {
		return Principal{}, fmt.Errorf("tenant cannot be empty")
	}
	if tier != "" && !tier.IsValid() {
		return Principal{}, fmt.Errorf("invalid tier %q", tier)
	}
	if tier == "" {
		tier = TierFree
	}
	if role == "" {
		role = "user"
	}
	return Principal{UserID: userID, Tenant: tenant, Role: role, Tier: tier}, nil
}

// IsZero reports whether the principal is unset.
func (p Principal) IsZero() bool {
	return p.UserID == "" && p.Tenant == ""
}
