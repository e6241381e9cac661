package mappers

import (
	"fmt"

	"github.com/orris-inc/docpilot/internal/domain/billing"
	vo "github.com/orris-inc/docpilot/internal/domain/billing/valueobjects"
	"github.com/orris-inc/docpilot/internal/infrastructure/persistence/models"
)

func SubscriptionToModel(s *billing.Subscription) *models.BillingSubscriptionModel {
	return &models.BillingSubscriptionModel{
		ID:        s.ID(),
		UserID:    s.UserID(),
		PlanID:    s.PlanID(),
		OrderID:   s.OrderID(),
		Status:    s.Status().String(),
		StartsAt:  s.StartsAt(),
		ExpiresAt: s.ExpiresAt(),
		AutoRenew: s.AutoRenew(),
		CreatedAt: s.CreatedAt(),
		UpdatedAt: s.UpdatedAt(),
	}
}

func SubscriptionToDomain(m *models.BillingSubscriptionModel) (*billing.Subscription, error) {
	status := vo.SubscriptionStatus(m.Status)
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid subscription status: %s", m.Status)
	}
	return billing.ReconstructSubscription(billing.SubscriptionReconstructParams{
		ID:        m.ID,
		UserID:    m.UserID,
		PlanID:    m.PlanID,
		OrderID:   m.OrderID,
		Status:    status,
		StartsAt:  m.StartsAt,
		ExpiresAt: m.ExpiresAt,
		AutoRenew: m.AutoRenew,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}), nil
}
