package usecases

import (
	"context"
	"errors"
	"time"

	"github.com/orris-inc/docpilot/internal/domain/billing"
	vo "github.com/orris-inc/docpilot/internal/domain/billing/valueobjects"
	"github.com/orris-inc/docpilot/internal/shared/biztime"
	"github.com/orris-inc/docpilot/internal/shared/logger"
)

const (
	defaultSweepBatch    = 100
	defaultStaleOrderAge = 30 * time.Minute
	staleOrderReason     = "checkout expired"
)

// ExpireStaleOrdersUseCase cancels pending orders whose checkout was
// abandoned. An order paid in the meantime is skipped.
type ExpireStaleOrdersUseCase struct {
	txm    TransactionManager
	orders billing.OrderRepository
	outbox billing.OutboxRepository
	maxAge time.Duration
	batch  int
	now    biztime.Clock
	logger logger.Interface
}

func NewExpireStaleOrdersUseCase(
	txm TransactionManager,
	orders billing.OrderRepository,
	outbox billing.OutboxRepository,
	maxAge time.Duration,
	logger logger.Interface,
) *ExpireStaleOrdersUseCase {
	if maxAge <= 0 {
		maxAge = defaultStaleOrderAge
	}
	return &ExpireStaleOrdersUseCase{
		txm:    txm,
		orders: orders,
		outbox: outbox,
		maxAge: maxAge,
		batch:  defaultSweepBatch,
		now:    biztime.SystemClock,
		logger: logger,
	}
}

func (uc *ExpireStaleOrdersUseCase) Execute(ctx context.Context) (int, error) {
	now := uc.now()
	stale, err := uc.orders.ListStalePending(ctx, now.Add(-uc.maxAge), uc.batch)
	if err != nil {
		return 0, err
	}

	canceled := 0
	for _, order := range stale {
		err := uc.txm.RunInTransaction(ctx, func(ctx context.Context) error {
			changed, err := order.MarkCanceled(staleOrderReason, now)
			if err != nil || !changed {
				return err
			}
			if err := uc.orders.Save(ctx, order, vo.OrderStatusPending); err != nil {
				return err
			}
			return uc.outbox.Enqueue(ctx, billing.Event{
				Type:       billing.EventOrderCanceled,
				Key:        order.ExternalOrderID(),
				Payload:    map[string]any{"order_id": order.ID(), "user_id": order.UserID(), "reason": staleOrderReason},
				OccurredAt: now,
			})
		})
		var stateErr *billing.StateError
		switch {
		case err == nil:
			canceled++
		case errors.As(err, &stateErr):
			uc.logger.Debugw("stale order moved on before sweep", "order_id", order.ID(), "status", stateErr.From)
		default:
			uc.logger.Errorw("failed to cancel stale order", "order_id", order.ID(), "error", err)
		}
	}

	if canceled > 0 {
		uc.logger.Infow("stale orders canceled", "count", canceled)
	}
	return canceled, nil
}

// ExpireSubscriptionsUseCase marks lapsed active subscriptions expired and
// drops their cached entitlements.
type ExpireSubscriptionsUseCase struct {
	txm         TransactionManager
	subs        billing.SubscriptionRepository
	outbox      billing.OutboxRepository
	invalidator EntitlementInvalidator
	batch       int
	now         biztime.Clock
	logger      logger.Interface
}

func NewExpireSubscriptionsUseCase(
	txm TransactionManager,
	subs billing.SubscriptionRepository,
	outbox billing.OutboxRepository,
	invalidator EntitlementInvalidator,
	logger logger.Interface,
) *ExpireSubscriptionsUseCase {
	if invalidator == nil {
		invalidator = noopInvalidator{}
	}
	return &ExpireSubscriptionsUseCase{
		txm:         txm,
		subs:        subs,
		outbox:      outbox,
		invalidator: invalidator,
		batch:       defaultSweepBatch,
		now:         biztime.SystemClock,
		logger:      logger,
	}
}

func (uc *ExpireSubscriptionsUseCase) Execute(ctx context.Context) (int, error) {
	now := uc.now()
	lapsed, err := uc.subs.ListLapsed(ctx, now, uc.batch)
	if err != nil {
		return 0, err
	}

	var expiredUsers []uint
	for _, sub := range lapsed {
		err := uc.txm.RunInTransaction(ctx, func(ctx context.Context) error {
			if err := sub.Expire(now); err != nil {
				return err
			}
			if err := uc.subs.Update(ctx, sub); err != nil {
				return err
			}
			return uc.outbox.Enqueue(ctx, billing.Event{
				Type: billing.EventSubscriptionExpired,
				Key:  "subscription:" + itoa(sub.ID()),
				Payload: map[string]any{
					"subscription_id": sub.ID(),
					"user_id":         sub.UserID(),
					"plan_id":         sub.PlanID(),
					"expired_at":      sub.ExpiresAt(),
				},
				OccurredAt: now,
			})
		})
		if err != nil {
			uc.logger.Errorw("failed to expire subscription", "subscription_id", sub.ID(), "error", err)
			continue
		}
		expiredUsers = append(expiredUsers, sub.UserID())
	}

	uc.invalidator.InvalidateUsers(ctx, "subscription expired", expiredUsers...)
	if len(expiredUsers) > 0 {
		uc.logger.Infow("subscriptions expired", "count", len(expiredUsers))
	}
	return len(expiredUsers), nil
}
