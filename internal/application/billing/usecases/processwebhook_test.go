package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/orris-inc/docpilot/internal/domain/billing"
	vo "github.com/orris-inc/docpilot/internal/domain/billing/valueobjects"
	"github.com/orris-inc/docpilot/internal/infrastructure/persistence/models"
	"github.com/orris-inc/docpilot/internal/shared/db"
	apperrors "github.com/orris-inc/docpilot/internal/shared/errors"
	"github.com/orris-inc/docpilot/internal/shared/logger"
)

func TestWebhook_ProMonthlyScenario(t *testing.T) {
	h := newHarness(t)
	h.seedPlan(t, "pro_monthly", 19800, 1500, vo.BillingCycleMonthly)
	co := h.checkoutOrder(t, 7, "pro_monthly")
	assert.Equal(t, vo.OrderStatusPending, co.Status)
	assert.Contains(t, co.CheckoutURL, "order="+co.ExternalOrderID)

	res, err := h.send(t, paidEvent("evt_1", co.ExternalOrderID, map[string]any{
		"user_id": 7, "plan_code": "pro_monthly", "amount_cents": 19800, "currency": "CNY",
	}))
	require.NoError(t, err)
	assert.Equal(t, vo.AuditOutcomeProcessed, res.Outcome)
	assert.Equal(t, int64(1500), res.PointsGranted)

	order, err := h.orders.GetByExternalOrderID(context.Background(), co.ExternalOrderID)
	require.NoError(t, err)
	assert.Equal(t, vo.OrderStatusPaid, order.Status())
	_, hasCheckout := order.Checkout()
	assert.True(t, hasCheckout, "checkout metadata survives the webhook merge")

	sub, err := h.subs.GetActiveByUser(context.Background(), 7, time.Now().UTC())
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.WithinDuration(t, time.Now().UTC().Add(30*24*time.Hour), sub.ExpiresAt(), time.Minute)
	assert.Equal(t, int64(1500), h.balance(t, 7))

	res, err = h.send(t, paidEvent("evt_2", co.ExternalOrderID, nil))
	require.NoError(t, err)
	assert.Equal(t, vo.AuditOutcomeDuplicate, res.Outcome)
	assert.Equal(t, int64(1500), h.balance(t, 7))

	assert.Equal(t, int64(1), h.count(t, &models.BillingPointFlowModel{}, "user_id = ? AND flow_type = ?", 7, "grant"))
	assert.Equal(t, int64(1), h.count(t, &models.BillingSubscriptionModel{}, "user_id = ?", 7))
	assert.Equal(t, int64(2), h.count(t, &models.BillingOutboxEventModel{}, "1 = 1"))
	assert.Contains(t, h.invalidator.users(), uint(7))
}

func TestWebhook_ReplaySameEventGrantsOnce(t *testing.T) {
	h := newHarness(t)
	h.seedPlan(t, "pro_monthly", 19800, 1500, vo.BillingCycleMonthly)
	co := h.checkoutOrder(t, 7, "pro_monthly")

	for i := 0; i < 4; i++ {
		_, err := h.send(t, paidEvent("evt_same", co.ExternalOrderID, nil))
		require.NoError(t, err)
	}

	assert.Equal(t, int64(1500), h.balance(t, 7))
	assert.Equal(t, int64(1), h.count(t, &models.BillingPointFlowModel{}, "flow_type = ?", "grant"))
	assert.Equal(t, int64(1), h.count(t, &models.BillingSubscriptionModel{}, "user_id = ?", 7))

	rows := h.auditRows(t, co.ExternalOrderID)
	require.Len(t, rows, 4)
	assert.Equal(t, vo.AuditOutcomeProcessed, rows[0].Outcome)
	for _, r := range rows[1:] {
		assert.Equal(t, vo.AuditOutcomeDuplicate, r.Outcome)
	}
}

func TestWebhook_RenewalResetsWindow(t *testing.T) {
	h := newHarness(t)
	h.seedPlan(t, "pro_monthly", 19800, 1500, vo.BillingCycleMonthly)
	first := h.checkoutOrder(t, 7, "pro_monthly")
	_, err := h.send(t, paidEvent("evt_1", first.ExternalOrderID, nil))
	require.NoError(t, err)

	second := h.checkoutOrder(t, 7, "pro_monthly")
	require.NotEqual(t, first.ExternalOrderID, second.ExternalOrderID)
	_, err = h.send(t, paidEvent("evt_2", second.ExternalOrderID, nil))
	require.NoError(t, err)

	assert.Equal(t, int64(3000), h.balance(t, 7), "every paid order grants the full allotment")
	assert.Equal(t, int64(1), h.count(t, &models.BillingSubscriptionModel{}, "user_id = ?", 7))
	sub, err := h.subs.GetActiveByUser(context.Background(), 7, time.Now().UTC())
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC().Add(30*24*time.Hour), sub.ExpiresAt(), time.Minute)
	assert.Equal(t, second.OrderID, *sub.OrderID())
}

func TestWebhook_ExtendPolicyAddsCycle(t *testing.T) {
	h := newHarness(t)
	h.processor.renewal = RenewalExtend
	h.seedPlan(t, "pro_monthly", 19800, 1500, vo.BillingCycleMonthly)
	first := h.checkoutOrder(t, 7, "pro_monthly")
	_, err := h.send(t, paidEvent("evt_1", first.ExternalOrderID, nil))
	require.NoError(t, err)
	second := h.checkoutOrder(t, 7, "pro_monthly")
	_, err = h.send(t, paidEvent("evt_2", second.ExternalOrderID, nil))
	require.NoError(t, err)

	sub, err := h.subs.GetActiveByUser(context.Background(), 7, time.Now().UTC())
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC().Add(60*24*time.Hour), sub.ExpiresAt(), time.Minute)
}

func TestWebhook_SignatureRejected(t *testing.T) {
	h := newHarness(t)
	h.seedPlan(t, "pro_monthly", 19800, 1500, vo.BillingCycleMonthly)
	co := h.checkoutOrder(t, 7, "pro_monthly")

	body, err := json.Marshal(paidEvent("evt_1", co.ExternalOrderID, nil))
	require.NoError(t, err)
	tampered := append([]byte(nil), body...)
	tampered[len(tampered)-2] = ' '

	cases := map[string]ProcessWebhookCommand{
		"tampered body": {Body: tampered, Signature: SignPayload([]byte(testSecret), body)},
		"wrong secret":  {Body: body, Signature: SignPayload([]byte("other"), body)},
		"missing":       {Body: body},
		"not hex":       {Body: body, Signature: "sha256=zz"},
	}
	for name, cmd := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.webhook.Execute(context.Background(), cmd)
			var sigErr *billing.SignatureError
			require.ErrorAs(t, err, &sigErr)
			assert.Equal(t, 403, apperrors.GetAppError(err).Code)

			row := h.lastAudit(t)
			assert.False(t, row.SignatureValid)
			assert.Equal(t, vo.AuditOutcomeRejectedSignature.String(), row.Outcome)
			assert.Empty(t, row.ExternalOrderID, "nothing is parsed before the signature passes")
		})
	}

	order, err := h.orders.GetByExternalOrderID(context.Background(), co.ExternalOrderID)
	require.NoError(t, err)
	assert.Equal(t, vo.OrderStatusPending, order.Status())
	assert.Equal(t, int64(0), h.balance(t, 7))
}

func TestWebhook_PrefixedSignatureAccepted(t *testing.T) {
	h := newHarness(t)
	body := []byte(`{"event_type":"customer.created","id":"evt_x"}`)
	res, err := h.webhook.Execute(context.Background(), ProcessWebhookCommand{
		Body:      body,
		Signature: "sha256=" + SignPayload([]byte(testSecret), body),
	})
	require.NoError(t, err)
	assert.Equal(t, vo.AuditOutcomeIgnored, res.Outcome)
	assert.Equal(t, "evt_x", res.EventID)
	assert.Equal(t, vo.AuditOutcomeIgnored.String(), h.lastAudit(t).Outcome)
}

func TestWebhook_MalformedPayload(t *testing.T) {
	h := newHarness(t)
	for name, body := range map[string]string{
		"not json":         `{"event_type":`,
		"missing type":     `{"event_id":"e1"}`,
		"bad currency":     `{"event_type":"payment.succeeded","event_id":"e1","data":{"external_order_id":"DP1","currency":"YUAN"}}`,
		"wrong field type": `{"event_type":"payment.succeeded","data":{"user_id":"seven"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			raw := []byte(body)
			_, err := h.webhook.Execute(context.Background(), ProcessWebhookCommand{Body: raw, Signature: SignPayload([]byte(testSecret), raw)})
			var invalid *billing.WebhookValidationError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, 400, apperrors.GetAppError(err).Code)

			row := h.lastAudit(t)
			assert.True(t, row.SignatureValid)
			assert.Equal(t, vo.AuditOutcomeRejectedPayload.String(), row.Outcome)
			assert.Equal(t, body, row.RawPayload)
		})
	}
}

func TestWebhook_NeverCreatesOrders(t *testing.T) {
	h := newHarness(t)
	h.seedPlan(t, "pro_monthly", 19800, 1500, vo.BillingCycleMonthly)

	_, err := h.send(t, paidEvent("evt_1", "DP_FORGED", map[string]any{"user_id": 7, "plan_code": "pro_monthly"}))
	var invalid *billing.WebhookValidationError
	require.ErrorAs(t, err, &invalid)

	assert.Equal(t, int64(0), h.count(t, &models.BillingOrderModel{}, "1 = 1"))
	assert.Equal(t, int64(0), h.balance(t, 7))
	rows := h.auditRows(t, "DP_FORGED")
	require.Len(t, rows, 1)
	assert.Equal(t, vo.AuditOutcomeRejected, rows[0].Outcome)
}

func TestWebhook_MissingIDs(t *testing.T) {
	h := newHarness(t)
	_, err := h.send(t, map[string]any{"event_type": "payment.succeeded", "event_id": "e1", "data": map[string]any{}})
	var invalid *billing.WebhookValidationError
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, invalid.Reason, "external_order_id")

	_, err = h.send(t, map[string]any{"event_type": "payment.succeeded", "data": map[string]any{"external_order_id": "DP1"}})
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, invalid.Reason, "event_id")
}

func TestWebhook_CrossCheckMismatch(t *testing.T) {
	h := newHarness(t)
	h.seedPlan(t, "pro_monthly", 19800, 1500, vo.BillingCycleMonthly)
	h.seedPlan(t, "pro_yearly", 198000, 20000, vo.BillingCycleYearly)
	co := h.checkoutOrder(t, 7, "pro_monthly")

	for name, data := range map[string]map[string]any{
		"user":     {"user_id": 8},
		"plan":     {"plan_code": "pro_yearly"},
		"amount":   {"amount_cents": 1},
		"currency": {"currency": "USD"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := h.send(t, paidEvent("evt_"+name, co.ExternalOrderID, data))
			var invalid *billing.WebhookValidationError
			require.ErrorAs(t, err, &invalid)
		})
	}

	order, err := h.orders.GetByExternalOrderID(context.Background(), co.ExternalOrderID)
	require.NoError(t, err)
	assert.Equal(t, vo.OrderStatusPending, order.Status())
	assert.Equal(t, int64(0), h.balance(t, 7))
	assert.Equal(t, int64(0), h.count(t, &models.BillingSubscriptionModel{}, "1 = 1"))
}

func TestWebhook_RefundReversesGrantOnce(t *testing.T) {
	h := newHarness(t)
	h.seedPlan(t, "pro_monthly", 19800, 1500, vo.BillingCycleMonthly)
	co := h.checkoutOrder(t, 7, "pro_monthly")
	_, err := h.send(t, paidEvent("evt_1", co.ExternalOrderID, nil))
	require.NoError(t, err)

	refund := func(id, eventType string) (*ProcessResult, error) {
		return h.send(t, map[string]any{
			"event_type": eventType, "event_id": id,
			"data": map[string]any{"external_order_id": co.ExternalOrderID},
		})
	}

	res, err := refund("evt_r1", "payment.refunded")
	require.NoError(t, err)
	assert.Equal(t, vo.AuditOutcomeProcessed, res.Outcome)
	assert.Equal(t, int64(1500), res.PointsReversed)
	assert.Equal(t, int64(0), h.balance(t, 7))

	for _, typ := range []string{"payment.refunded", "refund.succeeded", "charge.refunded"} {
		res, err = refund("evt_r_"+typ, typ)
		require.NoError(t, err)
		assert.Equal(t, vo.AuditOutcomeDuplicate, res.Outcome)
		assert.Equal(t, vo.OrderStatusRefunded, res.OrderStatus)
	}
	assert.Equal(t, int64(0), h.balance(t, 7))
	assert.Equal(t, int64(1), h.count(t, &models.BillingPointFlowModel{}, "flow_type = ?", "refund"))

	sub, err := h.subs.GetActiveByUser(context.Background(), 7, time.Now().UTC())
	require.NoError(t, err)
	assert.Nil(t, sub, "refunding the order ends its subscription")
}

func TestWebhook_RefundAfterConsumeGoesNegative(t *testing.T) {
	h := newHarness(t)
	h.seedPlan(t, "pro_monthly", 19800, 1500, vo.BillingCycleMonthly)
	co := h.checkoutOrder(t, 7, "pro_monthly")
	_, err := h.send(t, paidEvent("evt_1", co.ExternalOrderID, nil))
	require.NoError(t, err)

	_, err = NewConsumePointsUseCase(h.ledger, logger.NewNop()).Execute(context.Background(), ConsumePointsCommand{UserID: 7, Points: 1000, IdempotencyKey: "job-1"})
	require.NoError(t, err)

	_, err = h.send(t, map[string]any{"event_type": "payment.refunded", "event_id": "r1", "data": map[string]any{"external_order_id": co.ExternalOrderID}})
	require.NoError(t, err)
	assert.Equal(t, int64(-1000), h.balance(t, 7))
}

func TestWebhook_RefundOfPendingOrderIsIllegal(t *testing.T) {
	h := newHarness(t)
	h.seedPlan(t, "pro_monthly", 19800, 1500, vo.BillingCycleMonthly)
	co := h.checkoutOrder(t, 7, "pro_monthly")

	_, err := h.send(t, map[string]any{"event_type": "payment.refunded", "event_id": "r1", "data": map[string]any{"external_order_id": co.ExternalOrderID}})
	var invalid *billing.WebhookValidationError
	require.ErrorAs(t, err, &invalid)
	var stateErr *billing.StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, "pending", stateErr.From)
}

func TestWebhook_TimeoutAndFailure(t *testing.T) {
	h := newHarness(t)
	h.seedPlan(t, "pro_monthly", 19800, 1500, vo.BillingCycleMonthly)

	pending := h.checkoutOrder(t, 7, "pro_monthly")
	res, err := h.send(t, map[string]any{"event_type": "checkout.expired", "event_id": "t1", "data": map[string]any{"external_order_id": pending.ExternalOrderID}})
	require.NoError(t, err)
	assert.Equal(t, vo.AuditOutcomeProcessed, res.Outcome)
	assert.Equal(t, vo.OrderStatusCanceled, res.OrderStatus)

	res, err = h.send(t, map[string]any{"event_type": "payment.timeout", "event_id": "t2", "data": map[string]any{"external_order_id": pending.ExternalOrderID}})
	require.NoError(t, err)
	assert.Equal(t, vo.AuditOutcomeIgnored, res.Outcome)

	paid := h.checkoutOrder(t, 8, "pro_monthly")
	_, err = h.send(t, paidEvent("p1", paid.ExternalOrderID, nil))
	require.NoError(t, err)
	res, err = h.send(t, map[string]any{"event_type": "payment.expired", "event_id": "t3", "data": map[string]any{"external_order_id": paid.ExternalOrderID}})
	require.NoError(t, err)
	assert.Equal(t, vo.AuditOutcomeIgnored, res.Outcome)
	assert.Equal(t, vo.OrderStatusPaid, res.OrderStatus)

	failing := h.checkoutOrder(t, 9, "pro_monthly")
	res, err = h.send(t, map[string]any{"event_type": "payment.failed", "event_id": "f1", "data": map[string]any{"external_order_id": failing.ExternalOrderID}})
	require.NoError(t, err)
	assert.Equal(t, vo.OrderStatusFailed, res.OrderStatus)

	_, err = h.send(t, paidEvent("late", failing.ExternalOrderID, nil))
	var invalid *billing.WebhookValidationError
	require.ErrorAs(t, err, &invalid, "a failed order cannot be paid")
	assert.Equal(t, int64(0), h.balance(t, 9))
}

func TestWebhook_ConcurrentDeliveriesGrantOnce(t *testing.T) {
	h := newHarness(t)
	h.seedPlan(t, "pro_monthly", 19800, 1500, vo.BillingCycleMonthly)
	co := h.checkoutOrder(t, 7, "pro_monthly")

	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func(i int) {
			_, err := h.send(t, paidEvent("evt_c"+string(rune('a'+i)), co.ExternalOrderID, nil))
			errs <- err
		}(i)
	}
	for i := 0; i < 8; i++ {
		assert.NoError(t, <-errs)
	}
	assert.Equal(t, int64(1500), h.balance(t, 7))
	assert.Equal(t, int64(1), h.count(t, &models.BillingPointFlowModel{}, "flow_type = ?", "grant"))
}

// refundRacingOrders marks the order refunded inside the same transaction
// right before the processor's guarded save, as a concurrent refund would.
type refundRacingOrders struct {
	billing.OrderRepository
	db *gorm.DB
}

func (r refundRacingOrders) Save(ctx context.Context, o *billing.Order, expected vo.OrderStatus) error {
	if err := db.GetTxFromContext(ctx, r.db).
		Model(&models.BillingOrderModel{}).
		Where("id = ?", o.ID()).
		Update("status", vo.OrderStatusRefunded.String()).Error; err != nil {
		return err
	}
	return r.OrderRepository.Save(ctx, o, expected)
}

func TestWebhook_ConcurrentRefundIsDuplicate(t *testing.T) {
	h := newHarness(t)
	h.seedPlan(t, "pro_monthly", 19800, 1500, vo.BillingCycleMonthly)
	co := h.checkoutOrder(t, 7, "pro_monthly")
	_, err := h.send(t, paidEvent("evt_1", co.ExternalOrderID, nil))
	require.NoError(t, err)

	h.processor.orders = refundRacingOrders{OrderRepository: h.orders, db: h.db}
	res, err := h.send(t, map[string]any{
		"event_type": "payment.refunded", "event_id": "evt_r1",
		"data": map[string]any{"external_order_id": co.ExternalOrderID},
	})
	require.NoError(t, err)
	assert.Equal(t, vo.AuditOutcomeDuplicate, res.Outcome)
	assert.Equal(t, vo.OrderStatusRefunded, res.OrderStatus)
	assert.Equal(t, int64(0), h.count(t, &models.BillingPointFlowModel{}, "flow_type = ?", "refund"),
		"the losing delivery reverses nothing")
}

type brokenOutbox struct{ billing.OutboxRepository }

func (brokenOutbox) Enqueue(context.Context, ...billing.Event) error {
	return errors.New("disk full")
}

func TestWebhook_InternalErrorRollsBackAndAudits(t *testing.T) {
	h := newHarness(t)
	h.processor.outbox = brokenOutbox{}
	h.seedPlan(t, "pro_monthly", 19800, 1500, vo.BillingCycleMonthly)
	co := h.checkoutOrder(t, 7, "pro_monthly")

	_, err := h.send(t, paidEvent("evt_1", co.ExternalOrderID, nil))
	require.Error(t, err)
	assert.Nil(t, apperrors.GetAppError(err), "unexpected failures are not client errors")

	order, err := h.orders.GetByExternalOrderID(context.Background(), co.ExternalOrderID)
	require.NoError(t, err)
	assert.Equal(t, vo.OrderStatusPending, order.Status())
	assert.Equal(t, int64(0), h.balance(t, 7))
	assert.Equal(t, int64(0), h.count(t, &models.BillingSubscriptionModel{}, "1 = 1"))
	assert.Equal(t, vo.AuditOutcomeError.String(), h.lastAudit(t).Outcome)
}

func TestVerifySignature_EmptySecretRejects(t *testing.T) {
	body := []byte(`{}`)
	err := VerifySignature(nil, body, SignPayload(nil, body))
	var sigErr *billing.SignatureError
	assert.ErrorAs(t, err, &sigErr)
}
