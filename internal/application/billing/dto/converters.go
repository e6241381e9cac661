package dto

import (
	"github.com/orris-inc/docpilot/internal/domain/billing"
)

// ToPlanDTO leaves DescriptionHTML empty; the caller renders it.
func ToPlanDTO(p *billing.Plan, ents []*billing.PlanEntitlement) *PlanDTO {
	if p == nil {
		return nil
	}
	out := &PlanDTO{
		Code:          p.Code(),
		Name:          p.Name(),
		Description:   p.Description(),
		PriceCents:    p.Price().AmountInCents(),
		Price:         p.Price().Major().StringFixed(2),
		Currency:      p.Price().Currency(),
		MonthlyPoints: p.MonthlyPoints(),
		BillingCycle:  p.BillingCycle().String(),
		TrialDays:     p.TrialDays(),
		Active:        p.IsActive(),
	}
	for _, e := range ents {
		out.Entitlements = append(out.Entitlements, ToEntitlementDTO(e))
	}
	return out
}

func ToEntitlementDTO(e *billing.PlanEntitlement) EntitlementDTO {
	return EntitlementDTO{Key: e.Key, Enabled: e.Enabled, Value: e.Value, Limit: e.Limit, Metadata: e.Metadata}
}

func ToPointFlowDTO(f *billing.PointFlow) PointFlowDTO {
	return PointFlowDTO{
		ID:           f.ID,
		FlowType:     f.FlowType.String(),
		Points:       f.Points,
		BalanceAfter: f.BalanceAfter,
		OrderID:      f.OrderID,
		Reason:       f.Reason,
		CreatedAt:    f.CreatedAt,
	}
}

func ToPointFlowDTOList(flows []*billing.PointFlow) []PointFlowDTO {
	out := make([]PointFlowDTO, 0, len(flows))
	for _, f := range flows {
		out = append(out, ToPointFlowDTO(f))
	}
	return out
}
