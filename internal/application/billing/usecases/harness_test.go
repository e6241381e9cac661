package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/orris-inc/docpilot/internal/application/billing/paymentgateway"
	"github.com/orris-inc/docpilot/internal/domain/billing"
	vo "github.com/orris-inc/docpilot/internal/domain/billing/valueobjects"
	"github.com/orris-inc/docpilot/internal/infrastructure/payment/noop"
	"github.com/orris-inc/docpilot/internal/infrastructure/persistence/models"
	"github.com/orris-inc/docpilot/internal/infrastructure/repository"
	"github.com/orris-inc/docpilot/internal/shared/db"
	"github.com/orris-inc/docpilot/internal/shared/logger"
	"github.com/orris-inc/docpilot/internal/shared/testutil"
)

const testSecret = "whsec_test"

type recordingInvalidator struct {
	mu    sync.Mutex
	calls [][]uint
}

func (r *recordingInvalidator) InvalidateUsers(_ context.Context, _ string, userIDs ...uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(userIDs) > 0 {
		r.calls = append(r.calls, append([]uint(nil), userIDs...))
	}
}

func (r *recordingInvalidator) users() []uint {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []uint
	for _, c := range r.calls {
		out = append(out, c...)
	}
	return out
}

type harness struct {
	db          *gorm.DB
	txm         *db.TransactionManager
	plans       *repository.PlanRepository
	ents        *repository.EntitlementRepository
	orders      *repository.OrderRepository
	subs        *repository.SubscriptionRepository
	ledger      *repository.PointLedgerRepository
	audit       *repository.AuditLogRepository
	outbox      *repository.OutboxRepository
	invalidator *recordingInvalidator
	processor   *PaymentEventProcessor
	webhook     *ProcessWebhookUseCase
	checkout    *CreateCheckoutUseCase
	gateways    *paymentgateway.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gdb := testutil.NewTestDB(t, models.BillingModels()...)
	log := logger.NewNop()

	h := &harness{
		db:          gdb,
		txm:         db.NewTransactionManager(gdb),
		plans:       repository.NewPlanRepository(gdb),
		ents:        repository.NewEntitlementRepository(gdb),
		orders:      repository.NewOrderRepository(gdb),
		subs:        repository.NewSubscriptionRepository(gdb),
		ledger:      repository.NewPointLedgerRepository(gdb, log, repository.WithLedgerRetry(5, 0)),
		audit:       repository.NewAuditLogRepository(gdb),
		outbox:      repository.NewOutboxRepository(gdb),
		invalidator: &recordingInvalidator{},
	}
	h.processor = NewPaymentEventProcessor(PaymentEventProcessorDeps{
		TxManager:     h.txm,
		Orders:        h.orders,
		Plans:         h.plans,
		Subscriptions: h.subs,
		Ledger:        h.ledger,
		Outbox:        h.outbox,
		Invalidator:   h.invalidator,
		Logger:        log,
	})
	h.webhook = NewProcessWebhookUseCase(testSecret, h.processor, h.audit, log)
	h.gateways = paymentgateway.NewRegistry(noop.NewGateway("https://app.example.com/billing/return"))
	h.checkout = NewCreateCheckoutUseCase(h.orders, h.plans, h.gateways, vo.ProviderNoop, "", 0, log)
	return h
}

func (h *harness) seedPlan(t *testing.T, code string, price, points int64, cycle vo.BillingCycle) *billing.Plan {
	t.Helper()
	p, err := billing.NewPlan(code, code, vo.NewMoney(price, "CNY"), points, cycle)
	require.NoError(t, err)
	require.NoError(t, h.plans.Create(context.Background(), p))
	return p
}

func (h *harness) checkoutOrder(t *testing.T, userID uint, planCode string) *CheckoutResult {
	t.Helper()
	res, err := h.checkout.Execute(context.Background(), CreateCheckoutCommand{UserID: userID, PlanCode: planCode})
	require.NoError(t, err)
	return res
}

// send signs body with the test secret and runs the webhook.
func (h *harness) send(t *testing.T, payload map[string]any) (*ProcessResult, error) {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return h.webhook.Execute(context.Background(), ProcessWebhookCommand{
		Body:      body,
		Signature: SignPayload([]byte(testSecret), body),
	})
}

func paidEvent(eventID, externalOrderID string, data map[string]any) map[string]any {
	d := map[string]any{"external_order_id": externalOrderID}
	for k, v := range data {
		d[k] = v
	}
	return map[string]any{"event_type": "payment.succeeded", "event_id": eventID, "data": d}
}

func (h *harness) balance(t *testing.T, userID uint) int64 {
	t.Helper()
	acct, err := h.ledger.GetAccount(context.Background(), userID)
	require.NoError(t, err)
	return acct.Balance
}

func (h *harness) count(t *testing.T, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(model).Where(query, args...).Count(&n).Error)
	return n
}

func (h *harness) auditRows(t *testing.T, externalOrderID string) []*billing.AuditEntry {
	t.Helper()
	rows, err := h.audit.ListByExternalOrderID(context.Background(), externalOrderID)
	require.NoError(t, err)
	return rows
}

func (h *harness) lastAudit(t *testing.T) models.BillingAuditLogModel {
	t.Helper()
	var row models.BillingAuditLogModel
	require.NoError(t, h.db.Order("id DESC").First(&row).Error)
	return row
}

type failingGateway struct {
	err   error
	calls int
}

func (g *failingGateway) Provider() vo.Provider { return vo.ProviderStripe }

func (g *failingGateway) CreateCheckout(context.Context, paymentgateway.CheckoutRequest) (*paymentgateway.CheckoutSession, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return &paymentgateway.CheckoutSession{URL: "https://pay.example.com/s/1", ProviderRef: "s_1"}, nil
}

var errProviderDown = errors.New("provider down")

func within(t *testing.T, want, got time.Time, delta time.Duration) {
	t.Helper()
	require.WithinDuration(t, want, got, delta)
}
