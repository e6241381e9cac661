package billing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/docpilot/internal/application/billing/dto"
	"github.com/orris-inc/docpilot/internal/application/billing/usecases"
	"github.com/orris-inc/docpilot/internal/domain/billing"
	vo "github.com/orris-inc/docpilot/internal/domain/billing/valueobjects"
	"github.com/orris-inc/docpilot/internal/interfaces/http/handlers/testutil"
	"github.com/orris-inc/docpilot/internal/shared/authorization"
)

// =====================================================================
// Mock use cases
// =====================================================================

type mockWebhookUC struct {
	got    usecases.ProcessWebhookCommand
	result *usecases.ProcessResult
	err    error
}

func (m *mockWebhookUC) Execute(_ context.Context, cmd usecases.ProcessWebhookCommand) (*usecases.ProcessResult, error) {
	m.got = cmd
	return m.result, m.err
}

type mockNotifyUC struct {
	result *usecases.ProcessResult
	err    error
}

func (m *mockNotifyUC) Execute(context.Context, usecases.ProviderNotifyCommand) (*usecases.ProcessResult, error) {
	return m.result, m.err
}

type mockCheckoutUC struct {
	got    usecases.CreateCheckoutCommand
	result *usecases.CheckoutResult
	err    error
}

func (m *mockCheckoutUC) Execute(_ context.Context, cmd usecases.CreateCheckoutCommand) (*usecases.CheckoutResult, error) {
	m.got = cmd
	return m.result, m.err
}

type mockConsumeUC struct {
	got    usecases.ConsumePointsCommand
	result *usecases.PointFlowResult
	err    error
}

func (m *mockConsumeUC) Execute(_ context.Context, cmd usecases.ConsumePointsCommand) (*usecases.PointFlowResult, error) {
	m.got = cmd
	return m.result, m.err
}

type mockBalanceUC struct{ acct *billing.PointAccount }

func (m *mockBalanceUC) Execute(_ context.Context, userID uint) (*billing.PointAccount, error) {
	return m.acct, nil
}

type mockFlowsUC struct {
	got    usecases.ListPointFlowsQuery
	result *usecases.ListPointFlowsResult
}

func (m *mockFlowsUC) Execute(_ context.Context, q usecases.ListPointFlowsQuery) (*usecases.ListPointFlowsResult, error) {
	m.got = q
	return m.result, nil
}

type mockEntitlementsUC struct{ result *billing.ResolvedEntitlements }

func (m *mockEntitlementsUC) Execute(context.Context, uint) (*billing.ResolvedEntitlements, error) {
	return m.result, nil
}

type mockPlansUC struct {
	activeOnly bool
	result     []*dto.PlanDTO
}

func (m *mockPlansUC) Execute(_ context.Context, activeOnly bool) ([]*dto.PlanDTO, error) {
	m.activeOnly = activeOnly
	return m.result, nil
}

// =====================================================================
// Webhooks
// =====================================================================

func TestHandlePaymentWebhook(t *testing.T) {
	body := []byte(`{"event_type":"payment.succeeded","event_id":"evt_1"}`)

	tests := []struct {
		name       string
		headers    map[string]string
		uc         *mockWebhookUC
		wantStatus int
		wantSig    string
	}{
		{
			name:    "processed",
			headers: map[string]string{"X-Signature": "abc"},
			uc: &mockWebhookUC{result: &usecases.ProcessResult{
				Outcome: vo.AuditOutcomeProcessed, EventType: "payment.succeeded", EventID: "evt_1", OrderStatus: vo.OrderStatusPaid,
			}},
			wantStatus: http.StatusOK,
			wantSig:    "abc",
		},
		{
			name:       "fallback header",
			headers:    map[string]string{"X-Webhook-Signature": "sha256=def"},
			uc:         &mockWebhookUC{result: &usecases.ProcessResult{Outcome: vo.AuditOutcomeIgnored}},
			wantStatus: http.StatusOK,
			wantSig:    "sha256=def",
		},
		{
			name:       "bad signature",
			uc:         &mockWebhookUC{err: &billing.SignatureError{Reason: "missing signature"}},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "bad payload",
			headers:    map[string]string{"X-Signature": "abc"},
			uc:         &mockWebhookUC{err: billing.NewWebhookValidationError("amount mismatch", nil)},
			wantStatus: http.StatusBadRequest,
			wantSig:    "abc",
		},
		{
			name:       "unexpected failure",
			headers:    map[string]string{"X-Signature": "abc"},
			uc:         &mockWebhookUC{err: errors.New("database is gone")},
			wantStatus: http.StatusInternalServerError,
			wantSig:    "abc",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewWebhookHandler(tt.uc, nil, testutil.NewMockLogger())
			c, w := testutil.NewRawContext(http.MethodPost, "/webhooks/payments", body, tt.headers)

			h.HandlePaymentWebhook(c)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, body, tt.uc.got.Body)
			assert.Equal(t, tt.wantSig, tt.uc.got.Signature)
		})
	}
}

func TestHandlePaymentWebhook_ResultBody(t *testing.T) {
	uc := &mockWebhookUC{result: &usecases.ProcessResult{
		Outcome: vo.AuditOutcomeDuplicate, EventType: "payment.succeeded", EventID: "evt_1",
		ExternalOrderID: "DP1", OrderStatus: vo.OrderStatusPaid,
	}}
	h := NewWebhookHandler(uc, nil, testutil.NewMockLogger())
	c, w := testutil.NewRawContext(http.MethodPost, "/webhooks/payments", []byte(`{}`), nil)

	h.HandlePaymentWebhook(c)

	var resp testutil.APIResponse
	require.NoError(t, testutil.ParseResponse(w, &resp))
	assert.True(t, resp.Success)
	assert.JSONEq(t, `{"status":"duplicate","event_type":"payment.succeeded","event_id":"evt_1","external_order_id":"DP1","order_status":"paid"}`, string(resp.Data))
}

func TestHandleWeChatNotify(t *testing.T) {
	tests := []struct {
		name       string
		uc         providerNotifyUseCase
		wantStatus int
		wantCode   string
	}{
		{"success", &mockNotifyUC{result: &usecases.ProcessResult{Outcome: vo.AuditOutcomeProcessed}}, http.StatusOK, "SUCCESS"},
		{"bad signature", &mockNotifyUC{err: &billing.SignatureError{Reason: "unknown serial"}}, http.StatusForbidden, "FAIL"},
		{"bad resource", &mockNotifyUC{err: billing.NewWebhookValidationError("decrypt failed", nil)}, http.StatusBadRequest, "FAIL"},
		{"internal", &mockNotifyUC{err: errors.New("boom")}, http.StatusInternalServerError, "FAIL"},
		{"disabled", nil, http.StatusNotFound, "FAIL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewWebhookHandler(&mockWebhookUC{}, tt.uc, testutil.NewMockLogger())
			c, w := testutil.NewRawContext(http.MethodPost, "/webhooks/wechatpay", []byte(`{"id":"n1"}`), nil)

			h.HandleWeChatNotify(c)

			assert.Equal(t, tt.wantStatus, w.Code)
			var resp wechatNotifyResponse
			require.NoError(t, testutil.ParseResponse(w, &resp))
			assert.Equal(t, tt.wantCode, resp.Code)
		})
	}
}

// =====================================================================
// Checkout
// =====================================================================

func TestCreateCheckout(t *testing.T) {
	result := &usecases.CheckoutResult{
		OrderID: 3, ExternalOrderID: "DP42", Status: vo.OrderStatusPending,
		Amount: vo.NewMoney(1999, "CNY"), CheckoutURL: "weixin://wxpay/bizpayurl?pr=x",
	}

	t.Run("created", func(t *testing.T) {
		uc := &mockCheckoutUC{result: result}
		h := NewCheckoutHandler(uc, testutil.NewMockLogger())
		c, w := testutil.NewTestContext(http.MethodPost, "/checkout", map[string]any{"plan_code": "pro_monthly", "provider": "wechatpay"})
		c.Request.Header.Set("Idempotency-Key", "k-1")
		testutil.SetAuthContext(c, 7)

		h.CreateCheckout(c)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, uint(7), uc.got.UserID)
		assert.Equal(t, vo.ProviderWeChatPay, uc.got.Provider)
		assert.Equal(t, "k-1", uc.got.IdempotencyKey)

		var resp testutil.APIResponse
		require.NoError(t, testutil.ParseResponse(w, &resp))
		var out dto.CheckoutDTO
		require.NoError(t, jsonUnmarshal(resp.Data, &out))
		assert.Equal(t, "19.99", out.Amount)
		assert.Equal(t, "DP42", out.ExternalOrderID)
	})

	t.Run("reused", func(t *testing.T) {
		reused := *result
		reused.Reused = true
		h := NewCheckoutHandler(&mockCheckoutUC{result: &reused}, testutil.NewMockLogger())
		c, w := testutil.NewTestContext(http.MethodPost, "/checkout", map[string]any{"plan_code": "pro_monthly"})
		testutil.SetAuthContext(c, 7)

		h.CreateCheckout(c)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing plan", func(t *testing.T) {
		h := NewCheckoutHandler(&mockCheckoutUC{}, testutil.NewMockLogger())
		c, w := testutil.NewTestContext(http.MethodPost, "/checkout", map[string]any{})
		testutil.SetAuthContext(c, 7)

		h.CreateCheckout(c)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("anonymous", func(t *testing.T) {
		h := NewCheckoutHandler(&mockCheckoutUC{}, testutil.NewMockLogger())
		c, w := testutil.NewTestContext(http.MethodPost, "/checkout", map[string]any{"plan_code": "pro_monthly"})

		h.CreateCheckout(c)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

// =====================================================================
// Points
// =====================================================================

func newPointsHandler(consume *mockConsumeUC, flows *mockFlowsUC) *PointsHandler {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return NewPointsHandler(
		&mockBalanceUC{acct: &billing.PointAccount{UserID: 7, Balance: 1500, UpdatedAt: now}},
		flows,
		consume,
		testutil.NewMockLogger(),
	)
}

func TestConsumePoints(t *testing.T) {
	flow := &billing.PointFlow{ID: 1, UserID: 7, FlowType: vo.FlowTypeConsume, Points: -100, BalanceAfter: 1400}

	t.Run("user spends own points", func(t *testing.T) {
		uc := &mockConsumeUC{result: &usecases.PointFlowResult{Flow: flow, Balance: 1400, Applied: true}}
		h := newPointsHandler(uc, &mockFlowsUC{})
		c, w := testutil.NewTestContext(http.MethodPost, "/points/consume", map[string]any{
			"user_id": 99, "points": 100, "idempotency_key": "build-1",
		})
		testutil.SetAuthContext(c, 7)

		h.ConsumePoints(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, uint(7), uc.got.UserID, "users cannot spend for someone else")
		assert.Equal(t, "build-1", uc.got.IdempotencyKey)
	})

	t.Run("service spends for user", func(t *testing.T) {
		uc := &mockConsumeUC{result: &usecases.PointFlowResult{Flow: flow, Balance: 1400, Applied: true}}
		h := newPointsHandler(uc, &mockFlowsUC{})
		c, w := testutil.NewTestContext(http.MethodPost, "/points/consume", map[string]any{
			"user_id": 99, "points": 100, "idempotency_key": "build-2",
		})
		testutil.SetRoleContext(c, 0, authorization.RoleService)

		h.ConsumePoints(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, uint(99), uc.got.UserID)
	})

	t.Run("insufficient", func(t *testing.T) {
		uc := &mockConsumeUC{err: &billing.InsufficientPointsError{UserID: 7, Balance: 50, Requested: 100}}
		h := newPointsHandler(uc, &mockFlowsUC{})
		c, w := testutil.NewTestContext(http.MethodPost, "/points/consume", map[string]any{"points": 100, "idempotency_key": "k"})
		testutil.SetAuthContext(c, 7)

		h.ConsumePoints(c)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("zero points", func(t *testing.T) {
		h := newPointsHandler(&mockConsumeUC{}, &mockFlowsUC{})
		c, w := testutil.NewTestContext(http.MethodPost, "/points/consume", map[string]any{"points": 0, "idempotency_key": "k"})
		testutil.SetAuthContext(c, 7)

		h.ConsumePoints(c)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetBalanceAndFlows(t *testing.T) {
	flows := &mockFlowsUC{result: &usecases.ListPointFlowsResult{
		Flows: []*billing.PointFlow{{ID: 2, FlowType: vo.FlowTypeGrant, Points: 1500, BalanceAfter: 1500}},
		Total: 41,
	}}
	h := newPointsHandler(&mockConsumeUC{}, flows)

	c, w := testutil.NewTestContext(http.MethodGet, "/points/balance", nil)
	testutil.SetAuthContext(c, 7)
	h.GetBalance(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"balance":1500`)

	c, w = testutil.NewTestContext(http.MethodGet, "/points/flows", nil)
	testutil.SetQueryParams(c, map[string]string{"page": "3", "page_size": "20"})
	testutil.SetAuthContext(c, 7)
	h.ListFlows(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, flows.got.Page)
	assert.Contains(t, w.Body.String(), `"total_pages":3`)
}

// =====================================================================
// Entitlements & plans
// =====================================================================

func TestEntitlementHandler(t *testing.T) {
	plans := &mockPlansUC{result: []*dto.PlanDTO{{Code: "pro_monthly", Price: "19.99"}}}
	h := NewEntitlementHandler(&mockEntitlementsUC{result: &billing.ResolvedEntitlements{
		UserID: 7, PlanCode: "pro_monthly",
		Entitlements: map[string]billing.EntitlementGrant{"recommendations": {Enabled: true}},
	}}, plans, testutil.NewMockLogger())

	c, w := testutil.NewTestContext(http.MethodGet, "/entitlements", nil)
	testutil.SetAuthContext(c, 7)
	h.GetEntitlements(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"recommendations"`)

	c, w = testutil.NewTestContext(http.MethodGet, "/plans", nil)
	h.ListPlans(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, plans.activeOnly)
	assert.Contains(t, w.Body.String(), `"19.99"`)
}

func jsonUnmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
