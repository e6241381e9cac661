package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/orris-inc/docpilot/internal/application/billing/paymentgateway"
	"github.com/orris-inc/docpilot/internal/domain/billing"
	vo "github.com/orris-inc/docpilot/internal/domain/billing/valueobjects"
	"github.com/orris-inc/docpilot/internal/shared/biztime"
	"github.com/orris-inc/docpilot/internal/shared/logger"
)

// ProcessResult describes what a payment event did.
type ProcessResult struct {
	Outcome         vo.AuditOutcome
	EventType       string
	EventID         string
	ExternalOrderID string
	OrderID         uint
	OrderStatus     vo.OrderStatus
	SubscriptionID  uint
	PointsGranted   int64
	PointsReversed  int64
	Detail          string
}

// PaymentEventProcessor applies a verified payment event to the ledger. It
// never creates orders: every event must name an order produced by checkout.
// All effects of one event commit in a single transaction.
type PaymentEventProcessor struct {
	txm         TransactionManager
	orders      billing.OrderRepository
	plans       billing.PlanRepository
	subs        billing.SubscriptionRepository
	ledger      billing.PointLedger
	outbox      billing.OutboxRepository
	invalidator EntitlementInvalidator
	renewal     RenewalPolicy
	now         biztime.Clock
	logger      logger.Interface
}

type PaymentEventProcessorDeps struct {
	TxManager     TransactionManager
	Orders        billing.OrderRepository
	Plans         billing.PlanRepository
	Subscriptions billing.SubscriptionRepository
	Ledger        billing.PointLedger
	Outbox        billing.OutboxRepository
	Invalidator   EntitlementInvalidator
	Renewal       RenewalPolicy
	Clock         biztime.Clock
	Logger        logger.Interface
}

func NewPaymentEventProcessor(d PaymentEventProcessorDeps) *PaymentEventProcessor {
	if d.Invalidator == nil {
		d.Invalidator = noopInvalidator{}
	}
	if d.Renewal == "" {
		d.Renewal = RenewalReset
	}
	return &PaymentEventProcessor{
		txm:         d.TxManager,
		orders:      d.Orders,
		plans:       d.Plans,
		subs:        d.Subscriptions,
		ledger:      d.Ledger,
		outbox:      d.Outbox,
		invalidator: d.Invalidator,
		renewal:     d.Renewal,
		now:         d.Clock.OrSystem(),
		logger:      d.Logger,
	}
}

// Process returns a *billing.WebhookValidationError for events that are
// malformed, inconsistent with the stored order, or would make an illegal
// transition. Any other error is unexpected.
func (p *PaymentEventProcessor) Process(ctx context.Context, ev *paymentgateway.PaymentEvent) (*ProcessResult, error) {
	result := &ProcessResult{
		EventType:       ev.EventType,
		EventID:         ev.EventID,
		ExternalOrderID: ev.ExternalOrderID,
	}

	action := billing.ClassifyWebhookEvent(ev.EventType)
	if action == billing.WebhookActionIgnore {
		result.Outcome = vo.AuditOutcomeIgnored
		result.Detail = "unhandled event type"
		return result, nil
	}
	if strings.TrimSpace(ev.ExternalOrderID) == "" {
		return nil, billing.NewWebhookValidationError("external_order_id is required", nil)
	}
	if action == billing.WebhookActionPaid && strings.TrimSpace(ev.EventID) == "" {
		return nil, billing.NewWebhookValidationError("event_id is required", nil)
	}

	var affectedUser uint
	err := p.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		order, err := p.orders.GetByExternalOrderID(ctx, ev.ExternalOrderID)
		if err != nil {
			var nf *billing.NotFoundError
			if errors.As(err, &nf) {
				return billing.NewWebhookValidationError("unknown external_order_id", err)
			}
			return err
		}
		result.OrderID = order.ID()

		switch action {
		case billing.WebhookActionPaid:
			err = p.applyPaid(ctx, order, ev, result)
		case billing.WebhookActionRefund:
			err = p.applyRefund(ctx, order, ev, result)
		case billing.WebhookActionCancel:
			err = p.applyClose(ctx, order, ev, result, vo.OrderStatusCanceled)
		case billing.WebhookActionFail:
			err = p.applyClose(ctx, order, ev, result, vo.OrderStatusFailed)
		}
		if err != nil {
			return err
		}
		if result.Outcome == vo.AuditOutcomeProcessed {
			affectedUser = order.UserID()
		}
		return nil
	})
	if err != nil {
		var stateErr *billing.StateError
		if errors.As(err, &stateErr) {
			return nil, billing.NewWebhookValidationError("illegal order transition", err)
		}
		return nil, err
	}

	if affectedUser != 0 {
		p.invalidator.InvalidateUsers(ctx, ev.EventType, affectedUser)
	}
	p.logger.Infow("payment event applied",
		"event_type", ev.EventType,
		"event_id", ev.EventID,
		"external_order_id", ev.ExternalOrderID,
		"order_id", result.OrderID,
		"outcome", result.Outcome,
		"points_granted", result.PointsGranted,
		"points_reversed", result.PointsReversed,
	)
	return result, nil
}

// crossCheck compares every field the event carries with the stored order.
// Absent fields are not checked.
func (p *PaymentEventProcessor) crossCheck(order *billing.Order, plan *billing.Plan, ev *paymentgateway.PaymentEvent) error {
	if ev.UserID != nil && *ev.UserID != order.UserID() {
		return billing.NewWebhookValidationError("user_id does not match order", nil)
	}
	if ev.PlanCode != "" && ev.PlanCode != plan.Code() {
		return billing.NewWebhookValidationError("plan_code does not match order", nil)
	}
	if ev.AmountCents != nil && *ev.AmountCents != order.Amount().AmountInCents() {
		return billing.NewWebhookValidationError(
			fmt.Sprintf("amount %d does not match order amount %d", *ev.AmountCents, order.Amount().AmountInCents()), nil)
	}
	if ev.Currency != "" && !strings.EqualFold(ev.Currency, order.Amount().Currency()) {
		return billing.NewWebhookValidationError("currency does not match order", nil)
	}
	return nil
}

func (p *PaymentEventProcessor) applyPaid(ctx context.Context, order *billing.Order, ev *paymentgateway.PaymentEvent, result *ProcessResult) error {
	plan, err := p.plans.GetByID(ctx, order.PlanID())
	if err != nil {
		return err
	}
	if err := p.crossCheck(order, plan, ev); err != nil {
		return err
	}

	if order.Status() == vo.OrderStatusPaid {
		result.Outcome = vo.AuditOutcomeDuplicate
		result.OrderStatus = order.Status()
		result.Detail = "order already paid"
		return nil
	}

	now := p.now()
	paidAt := now
	if ev.PaidAt != nil && !ev.PaidAt.IsZero() {
		paidAt = ev.PaidAt.UTC()
	}
	if _, err := order.MarkPaid(paidAt); err != nil {
		return err
	}
	if err := order.MergeProviderPayload(webhookPatch(ev, now)); err != nil {
		return err
	}
	if err := p.orders.Save(ctx, order, vo.OrderStatusPending); err != nil {
		var stateErr *billing.StateError
		if errors.As(err, &stateErr) && stateErr.From == vo.OrderStatusPaid.String() {
			// A concurrent delivery of the same payment won.
			result.Outcome = vo.AuditOutcomeDuplicate
			result.OrderStatus = vo.OrderStatusPaid
			result.Detail = "order already paid"
			return nil
		}
		return err
	}

	sub, err := p.activateSubscription(ctx, order, plan, now)
	if err != nil {
		return err
	}

	var granted int64
	if plan.MonthlyPoints() > 0 {
		orderID, subID := order.ID(), sub.ID()
		flow, err := p.ledger.ApplyFlow(ctx, billing.FlowCommand{
			UserID:         order.UserID(),
			FlowType:       vo.FlowTypeGrant,
			Points:         plan.MonthlyPoints(),
			IdempotencyKey: billing.GrantKeyForOrder(order.ID()),
			OrderID:        &orderID,
			SubscriptionID: &subID,
			Reason:         "plan " + plan.Code() + " paid",
		})
		if err != nil {
			return err
		}
		if flow.Applied {
			granted = flow.Flow.Points
		}
	}

	if err := p.outbox.Enqueue(ctx,
		billing.Event{
			Type: billing.EventOrderPaid,
			Key:  order.ExternalOrderID(),
			Payload: map[string]any{
				"order_id":     order.ID(),
				"user_id":      order.UserID(),
				"plan_code":    plan.Code(),
				"amount_cents": order.Amount().AmountInCents(),
				"currency":     order.Amount().Currency(),
				"points":       granted,
			},
			OccurredAt: now,
		},
		billing.Event{
			Type: billing.EventSubscriptionActivated,
			Key:  order.ExternalOrderID(),
			Payload: map[string]any{
				"subscription_id": sub.ID(),
				"user_id":         sub.UserID(),
				"plan_code":       plan.Code(),
				"expires_at":      sub.ExpiresAt(),
			},
			OccurredAt: now,
		},
	); err != nil {
		return err
	}

	result.Outcome = vo.AuditOutcomeProcessed
	result.OrderStatus = order.Status()
	result.SubscriptionID = sub.ID()
	result.PointsGranted = granted
	return nil
}

// activateSubscription gives the user exactly one live window. The window
// length always comes from the plan's billing cycle.
func (p *PaymentEventProcessor) activateSubscription(ctx context.Context, order *billing.Order, plan *billing.Plan, now time.Time) (*billing.Subscription, error) {
	current, err := p.subs.GetActiveByUser(ctx, order.UserID(), now)
	if err != nil {
		return nil, err
	}
	if current == nil {
		sub, err := billing.NewSubscription(order.UserID(), plan.ID(), order.ID(), now, plan.BillingCycle())
		if err != nil {
			return nil, err
		}
		if err := p.subs.Create(ctx, sub); err != nil {
			return nil, err
		}
		return sub, nil
	}

	if p.renewal == RenewalExtend && current.PlanID() == plan.ID() {
		err = current.Extend(order.ID(), now, plan.BillingCycle())
	} else {
		err = current.Reset(plan.ID(), order.ID(), now, plan.BillingCycle())
	}
	if err != nil {
		return nil, err
	}
	if err := p.subs.Update(ctx, current); err != nil {
		return nil, err
	}
	return current, nil
}

func (p *PaymentEventProcessor) applyRefund(ctx context.Context, order *billing.Order, ev *paymentgateway.PaymentEvent, result *ProcessResult) error {
	if order.Status() == vo.OrderStatusRefunded {
		result.Outcome = vo.AuditOutcomeDuplicate
		result.OrderStatus = order.Status()
		result.Detail = "order already refunded"
		return nil
	}

	now := p.now()
	if _, err := order.MarkRefunded(ev.EventType, now); err != nil {
		return err
	}
	if err := order.MergeProviderPayload(webhookPatch(ev, now)); err != nil {
		return err
	}
	if err := p.orders.Save(ctx, order, vo.OrderStatusPaid); err != nil {
		var stateErr *billing.StateError
		if errors.As(err, &stateErr) && stateErr.From == vo.OrderStatusRefunded.String() {
			result.Outcome = vo.AuditOutcomeDuplicate
			result.OrderStatus = vo.OrderStatusRefunded
			result.Detail = "order already refunded"
			return nil
		}
		return err
	}

	granted, err := p.ledger.SumGrantedForOrder(ctx, order.ID())
	if err != nil {
		return err
	}
	var reversed int64
	if granted > 0 {
		orderID := order.ID()
		flow, err := p.ledger.ApplyFlow(ctx, billing.FlowCommand{
			UserID:         order.UserID(),
			FlowType:       vo.FlowTypeRefund,
			Points:         -granted,
			IdempotencyKey: billing.RefundKeyForOrder(order.ID()),
			OrderID:        &orderID,
			Reason:         "order refunded",
		})
		if err != nil {
			return err
		}
		if flow.Applied {
			reversed = granted
		}
	}

	sub, err := p.subs.GetByOrderID(ctx, order.ID())
	var nf *billing.NotFoundError
	switch {
	case err == nil:
		if sub.Status() == vo.SubscriptionStatusActive {
			if err := sub.Cancel(now); err != nil {
				return err
			}
			if err := p.subs.Update(ctx, sub); err != nil {
				return err
			}
		}
	case !errors.As(err, &nf):
		return err
	}

	if err := p.outbox.Enqueue(ctx, billing.Event{
		Type: billing.EventOrderRefunded,
		Key:  order.ExternalOrderID(),
		Payload: map[string]any{
			"order_id":        order.ID(),
			"user_id":         order.UserID(),
			"points_reversed": reversed,
		},
		OccurredAt: now,
	}); err != nil {
		return err
	}

	result.Outcome = vo.AuditOutcomeProcessed
	result.OrderStatus = order.Status()
	result.PointsReversed = reversed
	return nil
}

// applyClose cancels or fails a pending order. Orders already past pending
// are left alone and the event is ignored.
func (p *PaymentEventProcessor) applyClose(ctx context.Context, order *billing.Order, ev *paymentgateway.PaymentEvent, result *ProcessResult, target vo.OrderStatus) error {
	if !order.Status().IsPending() {
		result.Outcome = vo.AuditOutcomeIgnored
		result.OrderStatus = order.Status()
		result.Detail = "order already " + order.Status().String()
		return nil
	}

	now := p.now()
	eventType := billing.EventOrderCanceled
	var err error
	if target == vo.OrderStatusFailed {
		eventType = billing.EventOrderFailed
		_, err = order.MarkFailed(ev.EventType, now)
	} else {
		_, err = order.MarkCanceled(ev.EventType, now)
	}
	if err != nil {
		return err
	}
	if err := order.MergeProviderPayload(webhookPatch(ev, now)); err != nil {
		return err
	}
	if err := p.orders.Save(ctx, order, vo.OrderStatusPending); err != nil {
		var stateErr *billing.StateError
		if errors.As(err, &stateErr) {
			result.Outcome = vo.AuditOutcomeIgnored
			result.OrderStatus = vo.OrderStatus(stateErr.From)
			result.Detail = "order already " + stateErr.From
			return nil
		}
		return err
	}

	if err := p.outbox.Enqueue(ctx, billing.Event{
		Type:       eventType,
		Key:        order.ExternalOrderID(),
		Payload:    map[string]any{"order_id": order.ID(), "user_id": order.UserID(), "reason": ev.EventType},
		OccurredAt: now,
	}); err != nil {
		return err
	}

	result.Outcome = vo.AuditOutcomeProcessed
	result.OrderStatus = order.Status()
	return nil
}

// webhookPatch is merged into provider_payload next to the checkout session.
func webhookPatch(ev *paymentgateway.PaymentEvent, at time.Time) map[string]any {
	last := map[string]any{
		"event_type":  ev.EventType,
		"event_id":    ev.EventID,
		"provider":    ev.Provider.String(),
		"received_at": at,
	}
	patch := map[string]any{"last_event": last}
	for k, v := range ev.Details {
		patch[k] = v
	}
	return patch
}
