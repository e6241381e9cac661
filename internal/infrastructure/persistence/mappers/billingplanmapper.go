package mappers

import (
	"fmt"

	"github.com/orris-inc/docpilot/internal/domain/billing"
	vo "github.com/orris-inc/docpilot/internal/domain/billing/valueobjects"
	"github.com/orris-inc/docpilot/internal/infrastructure/persistence/models"
)

func PlanToModel(p *billing.Plan) *models.BillingPlanModel {
	return &models.BillingPlanModel{
		ID:            p.ID(),
		Code:          p.Code(),
		Name:          p.Name(),
		Description:   p.Description(),
		PriceCents:    p.Price().AmountInCents(),
		Currency:      p.Price().Currency(),
		MonthlyPoints: p.MonthlyPoints(),
		BillingCycle:  p.BillingCycle().String(),
		TrialDays:     p.TrialDays(),
		Active:        p.IsActive(),
		Metadata:      mapToJSON(p.Metadata()),
		CreatedAt:     p.CreatedAt(),
		UpdatedAt:     p.UpdatedAt(),
	}
}

func PlanToDomain(m *models.BillingPlanModel) (*billing.Plan, error) {
	cycle, err := vo.ParseBillingCycle(m.BillingCycle)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", m.Code, err)
	}
	return billing.ReconstructPlan(billing.PlanReconstructParams{
		ID:            m.ID,
		Code:          m.Code,
		Name:          m.Name,
		Description:   m.Description,
		Price:         vo.NewMoney(m.PriceCents, m.Currency),
		MonthlyPoints: m.MonthlyPoints,
		BillingCycle:  cycle,
		TrialDays:     m.TrialDays,
		Active:        m.Active,
		Metadata:      jsonToMap(m.Metadata),
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}), nil
}

func EntitlementToModel(e *billing.PlanEntitlement) *models.BillingPlanEntitlementModel {
	return &models.BillingPlanEntitlementModel{
		ID:         e.ID,
		PlanID:     e.PlanID,
		Key:        e.Key,
		Enabled:    e.Enabled,
		Value:      e.Value,
		QuotaLimit: e.Limit,
		Metadata:   mapToJSON(e.Metadata),
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
}

func EntitlementToDomain(m *models.BillingPlanEntitlementModel) *billing.PlanEntitlement {
	return &billing.PlanEntitlement{
		ID:        m.ID,
		PlanID:    m.PlanID,
		Key:       m.Key,
		Enabled:   m.Enabled,
		Value:     m.Value,
		Limit:     m.QuotaLimit,
		Metadata:  jsonToMap(m.Metadata),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
