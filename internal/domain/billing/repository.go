package billing

import (
	"context"
	"time"

	vo "github.com/orris-inc/docpilot/internal/domain/billing/valueobjects"
)

// InsertResult is returned by insert-or-fetch operations. Created is false
// when an existing row matched on a unique key and was returned instead.
type InsertResult[T any] struct {
	Value   T
	Created bool
}

type PlanRepository interface {
	Create(ctx context.Context, plan *Plan) error
	Update(ctx context.Context, plan *Plan) error
	GetByID(ctx context.Context, id uint) (*Plan, error)
	GetByCode(ctx context.Context, code string) (*Plan, error)
	List(ctx context.Context, activeOnly bool) ([]*Plan, error)
}

type EntitlementRepository interface {
	Upsert(ctx context.Context, e *PlanEntitlement) error
	Delete(ctx context.Context, planID uint, key string) error
	ListByPlan(ctx context.Context, planID uint) ([]*PlanEntitlement, error)
}

type OrderRepository interface {
	// CreateIdempotent inserts order or returns the row already holding its
	// idempotency key or external order id.
	CreateIdempotent(ctx context.Context, order *Order) (InsertResult[*Order], error)
	GetByID(ctx context.Context, id uint) (*Order, error)
	GetByExternalOrderID(ctx context.Context, externalOrderID string) (*Order, error)
	// Save persists status and payload, guarded on the status the caller loaded.
	Save(ctx context.Context, order *Order, expected vo.OrderStatus) error
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*Order, error)
}

type SubscriptionRepository interface {
	Create(ctx context.Context, sub *Subscription) error
	Update(ctx context.Context, sub *Subscription) error
	GetByOrderID(ctx context.Context, orderID uint) (*Subscription, error)
	// GetActiveByUser returns nil, nil when the user has no active window at now.
	GetActiveByUser(ctx context.Context, userID uint, now time.Time) (*Subscription, error)
	ListActiveUserIDsByPlan(ctx context.Context, planID uint, now time.Time) ([]uint, error)
	ListLapsed(ctx context.Context, now time.Time, limit int) ([]*Subscription, error)
}

// FlowResult reports the flow that now represents a command. Applied is
// false when the idempotency key matched an earlier flow.
type FlowResult struct {
	Flow    *PointFlow
	Applied bool
}

type PointLedger interface {
	ApplyFlow(ctx context.Context, cmd FlowCommand) (*FlowResult, error)
	GetAccount(ctx context.Context, userID uint) (*PointAccount, error)
	ListFlows(ctx context.Context, userID uint, offset, limit int) ([]*PointFlow, int64, error)
	SumGrantedForOrder(ctx context.Context, orderID uint) (int64, error)
}

type AuditLogRepository interface {
	Append(ctx context.Context, entry *AuditEntry) error
	ListByExternalOrderID(ctx context.Context, externalOrderID string) ([]*AuditEntry, error)
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, events ...Event) error
	FetchPending(ctx context.Context, limit int) ([]*OutboxMessage, error)
	MarkPublished(ctx context.Context, id uint, at time.Time) error
	MarkFailed(ctx context.Context, id uint, reason string) error
}
