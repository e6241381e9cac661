package billing

import "time"

// FreePlanCode is the plan code reported for users without an active
// subscription.
const FreePlanCode = "free"

// EntitlementGrant is the resolved value of one entitlement key for a user.
type EntitlementGrant struct {
	Enabled  bool           `json:"enabled"`
	Value    string         `json:"value,omitempty"`
	Limit    *int64         `json:"limit,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ResolvedEntitlements is the derived, cacheable view of what a user may do.
// It is never authoritative; the ledger tables are.
type ResolvedEntitlements struct {
	UserID         uint                        `json:"user_id"`
	PlanID         uint                        `json:"plan_id,omitempty"`
	PlanCode       string                      `json:"plan_code"`
	SubscriptionID uint                        `json:"subscription_id,omitempty"`
	ExpiresAt      *time.Time                  `json:"expires_at,omitempty"`
	Entitlements   map[string]EntitlementGrant `json:"entitlements"`
	ResolvedAt     time.Time                   `json:"resolved_at"`
}

// Allows reports whether key is present and enabled.
func (r *ResolvedEntitlements) Allows(key string) bool {
	if r == nil {
		return false
	}
	g, ok := r.Entitlements[key]
	return ok && g.Enabled
}

// IsFree reports whether the user resolved to the free tier.
func (r *ResolvedEntitlements) IsFree() bool {
	return r == nil || r.SubscriptionID == 0 || r.PlanCode == "" || r.PlanCode == FreePlanCode
}

// GrantsFromEntitlements folds plan entitlements into a key-indexed map.
func GrantsFromEntitlements(ents []*PlanEntitlement) map[string]EntitlementGrant {
	out := make(map[string]EntitlementGrant, len(ents))
	for _, e := range ents {
		out[e.Key] = EntitlementGrant{
			Enabled:  e.Enabled,
			Value:    e.Value,
			Limit:    e.Limit,
			Metadata: e.Metadata,
		}
	}
	return out
}
