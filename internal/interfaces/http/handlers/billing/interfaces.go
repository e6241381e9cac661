package billing

import (
	"context"

	"github.com/orris-inc/docpilot/internal/application/billing/dto"
	"github.com/orris-inc/docpilot/internal/application/billing/usecases"
	"github.com/orris-inc/docpilot/internal/domain/billing"
)

// Use case interfaces for the billing handlers

type processWebhookUseCase interface {
	Execute(ctx context.Context, cmd usecases.ProcessWebhookCommand) (*usecases.ProcessResult, error)
}

type providerNotifyUseCase interface {
	Execute(ctx context.Context, cmd usecases.ProviderNotifyCommand) (*usecases.ProcessResult, error)
}

type createCheckoutUseCase interface {
	Execute(ctx context.Context, cmd usecases.CreateCheckoutCommand) (*usecases.CheckoutResult, error)
}

type consumePointsUseCase interface {
	Execute(ctx context.Context, cmd usecases.ConsumePointsCommand) (*usecases.PointFlowResult, error)
}

type getPointBalanceUseCase interface {
	Execute(ctx context.Context, userID uint) (*billing.PointAccount, error)
}

type listPointFlowsUseCase interface {
	Execute(ctx context.Context, q usecases.ListPointFlowsQuery) (*usecases.ListPointFlowsResult, error)
}

type getEntitlementsUseCase interface {
	Execute(ctx context.Context, userID uint) (*billing.ResolvedEntitlements, error)
}

type listPlansUseCase interface {
	Execute(ctx context.Context, activeOnly bool) ([]*dto.PlanDTO, error)
}
