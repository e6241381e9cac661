package usecases

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/orris-inc/docpilot/internal/application/billing/paymentgateway"
	"github.com/orris-inc/docpilot/internal/domain/billing"
	vo "github.com/orris-inc/docpilot/internal/domain/billing/valueobjects"
	"github.com/orris-inc/docpilot/internal/shared/biztime"
	apperrors "github.com/orris-inc/docpilot/internal/shared/errors"
	"github.com/orris-inc/docpilot/internal/shared/id"
	"github.com/orris-inc/docpilot/internal/shared/logger"
)

const defaultCheckoutTimeout = 10 * time.Second

type CreateCheckoutCommand struct {
	UserID         uint
	PlanCode       string
	Provider       vo.Provider
	IdempotencyKey string
	ReturnURL      string
}

type CheckoutResult struct {
	OrderID         uint
	ExternalOrderID string
	Status          vo.OrderStatus
	Amount          vo.Money
	CheckoutURL     string
	// Reused is true when an earlier call already produced this session.
	Reused bool
}

// CreateCheckoutUseCase is the only place orders are created. The order is
// committed before the provider is called; a provider failure leaves it
// pending so a retry with the same idempotency key picks it up again.
type CreateCheckoutUseCase struct {
	orders          billing.OrderRepository
	plans           billing.PlanRepository
	gateways        *paymentgateway.Registry
	defaultProvider vo.Provider
	returnURL       string
	timeout         time.Duration
	now             biztime.Clock
	logger          logger.Interface
}

func NewCreateCheckoutUseCase(
	orders billing.OrderRepository,
	plans billing.PlanRepository,
	gateways *paymentgateway.Registry,
	defaultProvider vo.Provider,
	returnURL string,
	timeout time.Duration,
	logger logger.Interface,
) *CreateCheckoutUseCase {
	if timeout <= 0 {
		timeout = defaultCheckoutTimeout
	}
	if defaultProvider == "" {
		defaultProvider = vo.ProviderNoop
	}
	return &CreateCheckoutUseCase{
		orders:          orders,
		plans:           plans,
		gateways:        gateways,
		defaultProvider: defaultProvider,
		returnURL:       returnURL,
		timeout:         timeout,
		now:             biztime.SystemClock,
		logger:          logger,
	}
}

func (uc *CreateCheckoutUseCase) Execute(ctx context.Context, cmd CreateCheckoutCommand) (*CheckoutResult, error) {
	if cmd.UserID == 0 {
		return nil, apperrors.NewUnauthorizedError("authentication required")
	}
	code := strings.TrimSpace(cmd.PlanCode)
	if code == "" {
		return nil, apperrors.NewValidationError("plan_code is required")
	}

	plan, err := uc.plans.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive() {
		return nil, apperrors.NewValidationError("plan is not available", code)
	}
	if plan.IsFree() {
		return nil, apperrors.NewValidationError("free plans do not need checkout", code)
	}

	provider := cmd.Provider
	if provider == "" {
		provider = uc.defaultProvider
	}
	gateway, err := uc.gateways.Get(provider)
	if err != nil {
		return nil, apperrors.NewValidationError("unsupported payment provider", provider.String())
	}

	key := strings.TrimSpace(cmd.IdempotencyKey)
	if key == "" {
		key = id.NewIdempotencyKey()
	}
	order, err := billing.NewOrder(cmd.UserID, plan.ID(), provider, id.NewExternalOrderID(), key, plan.Price())
	if err != nil {
		return nil, apperrors.NewValidationError("invalid checkout", err.Error())
	}

	inserted, err := uc.orders.CreateIdempotent(ctx, order)
	if err != nil {
		return nil, err
	}
	order = inserted.Value
	if !inserted.Created && (order.UserID() != cmd.UserID || order.PlanID() != plan.ID()) {
		return nil, apperrors.NewConflictError("idempotency key already used for a different checkout")
	}

	result := &CheckoutResult{
		OrderID:         order.ID(),
		ExternalOrderID: order.ExternalOrderID(),
		Status:          order.Status(),
		Amount:          order.Amount(),
	}
	if session, ok := order.Checkout(); ok {
		result.CheckoutURL = session.URL
		result.Reused = true
		return result, nil
	}
	if !order.Status().IsPending() {
		return result, nil
	}

	returnURL := cmd.ReturnURL
	if returnURL == "" {
		returnURL = uc.returnURL
	}
	callCtx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()
	session, err := gateway.CreateCheckout(callCtx, paymentgateway.CheckoutRequest{
		ExternalOrderID: order.ExternalOrderID(),
		UserID:          order.UserID(),
		PlanCode:        plan.Code(),
		Description:     plan.Name(),
		AmountCents:     order.Amount().AmountInCents(),
		Currency:        order.Amount().Currency(),
		ReturnURL:       returnURL,
	})
	if err != nil {
		uc.logger.Errorw("payment provider checkout failed",
			"provider", provider,
			"order_id", order.ID(),
			"external_order_id", order.ExternalOrderID(),
			"error", err,
		)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewBadGatewayError("payment provider timed out")
		}
		return nil, apperrors.NewBadGatewayError("payment provider unavailable")
	}

	if err := order.MergeProviderPayload(map[string]any{
		billing.CheckoutPayloadKey: billing.CheckoutSession{
			URL:         session.URL,
			ProviderRef: session.ProviderRef,
			CreatedAt:   uc.now(),
		},
	}); err != nil {
		return nil, err
	}
	if err := uc.orders.Save(ctx, order, vo.OrderStatusPending); err != nil {
		return nil, err
	}

	uc.logger.Infow("checkout created",
		"order_id", order.ID(),
		"external_order_id", order.ExternalOrderID(),
		"user_id", order.UserID(),
		"plan_code", plan.Code(),
		"provider", provider,
	)
	result.CheckoutURL = session.URL
	return result, nil
}
