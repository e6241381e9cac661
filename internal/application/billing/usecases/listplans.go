package usecases

import (
	"context"

	"github.com/orris-inc/docpilot/internal/application/billing/dto"
	"github.com/orris-inc/docpilot/internal/domain/billing"
	"github.com/orris-inc/docpilot/internal/shared/logger"
)

// DescriptionRenderer turns operator markdown into sanitized HTML.
type DescriptionRenderer interface {
	Render(source string) (string, error)
}

type ListPlansUseCase struct {
	plans    billing.PlanRepository
	ents     billing.EntitlementRepository
	renderer DescriptionRenderer
	logger   logger.Interface
}

func NewListPlansUseCase(plans billing.PlanRepository, ents billing.EntitlementRepository, renderer DescriptionRenderer, logger logger.Interface) *ListPlansUseCase {
	return &ListPlansUseCase{plans: plans, ents: ents, renderer: renderer, logger: logger}
}

func (uc *ListPlansUseCase) Execute(ctx context.Context, activeOnly bool) ([]*dto.PlanDTO, error) {
	plans, err := uc.plans.List(ctx, activeOnly)
	if err != nil {
		return nil, err
	}

	out := make([]*dto.PlanDTO, 0, len(plans))
	for _, p := range plans {
		ents, err := uc.ents.ListByPlan(ctx, p.ID())
		if err != nil {
			return nil, err
		}
		item := dto.ToPlanDTO(p, ents)
		if uc.renderer != nil {
			html, err := uc.renderer.Render(p.Description())
			if err != nil {
				uc.logger.Warnw("failed to render plan description", "plan_code", p.Code(), "error", err)
			} else {
				item.DescriptionHTML = html
			}
		}
		out = append(out, item)
	}
	return out, nil
}
