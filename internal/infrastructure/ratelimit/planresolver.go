package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/orris-inc/docpilot/internal/shared/biztime"
	"github.com/orris-inc/docpilot/internal/shared/config"
)

const defaultResolverTTL = 30 * time.Second

// Tiers maps plan families to requests per minute.
type Tiers struct {
	Free      int
	Monthly   int
	Quarterly int
	Yearly    int
}

// DefaultTiers is used for any tier left at zero in configuration.
var DefaultTiers = Tiers{Free: 10, Monthly: 60, Quarterly: 120, Yearly: 300}

func TiersFromConfig(c config.RateLimitTiers) Tiers {
	t := Tiers{Free: c.Free, Monthly: c.Monthly, Quarterly: c.Quarterly, Yearly: c.Yearly}
	if t.Free <= 0 {
		t.Free = DefaultTiers.Free
	}
	if t.Monthly <= 0 {
		t.Monthly = DefaultTiers.Monthly
	}
	if t.Quarterly <= 0 {
		t.Quarterly = DefaultTiers.Quarterly
	}
	if t.Yearly <= 0 {
		t.Yearly = DefaultTiers.Yearly
	}
	return t
}

// ForPlan resolves a plan code to its RPM. Empty and free codes get the
// lowest tier; unrecognised paid codes fall back to the monthly tier.
func (t Tiers) ForPlan(code string) int {
	c := strings.ToLower(strings.TrimSpace(code))
	switch {
	case c == "" || strings.Contains(c, "free"):
		return t.Free
	case strings.Contains(c, "yearly"):
		return t.Yearly
	case strings.Contains(c, "quarterly"):
		return t.Quarterly
	default:
		return t.Monthly
	}
}

// PlanLookup returns the code of the user's active plan, or "" for none.
type PlanLookup interface {
	ActivePlanCode(ctx context.Context, userID uint) (string, error)
}

type PlanLookupFunc func(ctx context.Context, userID uint) (string, error)

func (f PlanLookupFunc) ActivePlanCode(ctx context.Context, userID uint) (string, error) {
	return f(ctx, userID)
}

type rpmEntry struct {
	rpm       int
	expiresAt time.Time
}

// PlanRPMResolver caches user to RPM resolution for a short TTL so the
// limiter does not read the ledger on every request.
type PlanRPMResolver struct {
	lookup  PlanLookup
	tiers   Tiers
	ttl     time.Duration
	now     biztime.Clock
	mu      sync.Mutex
	entries map[uint]rpmEntry
}

func NewPlanRPMResolver(lookup PlanLookup, tiers Tiers, ttl time.Duration, clock biztime.Clock) *PlanRPMResolver {
	if ttl <= 0 {
		ttl = defaultResolverTTL
	}
	return &PlanRPMResolver{
		lookup:  lookup,
		tiers:   tiers,
		ttl:     ttl,
		now:     clock.OrSystem(),
		entries: make(map[uint]rpmEntry),
	}
}

// Resolve returns the user's RPM. On a lookup failure it returns the free
// tier along with the error, and caches nothing.
func (r *PlanRPMResolver) Resolve(ctx context.Context, userID uint) (int, error) {
	now := r.now()

	r.mu.Lock()
	if e, ok := r.entries[userID]; ok && now.Before(e.expiresAt) {
		r.mu.Unlock()
		return e.rpm, nil
	}
	r.mu.Unlock()

	code, err := r.lookup.ActivePlanCode(ctx, userID)
	if err != nil {
		return r.tiers.Free, err
	}
	rpm := r.tiers.ForPlan(code)

	r.mu.Lock()
	r.entries[userID] = rpmEntry{rpm: rpm, expiresAt: now.Add(r.ttl)}
	r.mu.Unlock()
	return rpm, nil
}

func (r *PlanRPMResolver) Invalidate(userIDs ...uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range userIDs {
		delete(r.entries, id)
	}
}
