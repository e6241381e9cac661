package usecases

import (
	"context"
	"strings"

	"github.com/orris-inc/docpilot/internal/domain/billing"
)

// TransactionManager runs fn in one database transaction carried on ctx.
type TransactionManager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// EntitlementInvalidator drops every cached view of the users' plan. It is
// called after the transaction that changed the plan has committed.
type EntitlementInvalidator interface {
	InvalidateUsers(ctx context.Context, reason string, userIDs ...uint)
}

// EventPublisher delivers outbox events to other services.
type EventPublisher interface {
	Publish(ctx context.Context, e billing.Event) error
}

type RenewalPolicy string

const (
	// RenewalReset restarts the window at now on every paid order.
	RenewalReset RenewalPolicy = "reset"
	// RenewalExtend adds one cycle to a live subscription on the same plan.
	RenewalExtend RenewalPolicy = "extend"
)

// ParseRenewalPolicy defaults to RenewalReset.
func ParseRenewalPolicy(s string) RenewalPolicy {
	if strings.EqualFold(strings.TrimSpace(s), string(RenewalExtend)) {
		return RenewalExtend
	}
	return RenewalReset
}

type noopInvalidator struct{}

func (noopInvalidator) InvalidateUsers(context.Context, string, ...uint) {}
