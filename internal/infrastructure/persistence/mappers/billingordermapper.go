package mappers

import (
	"fmt"

	"gorm.io/datatypes"

	"github.com/orris-inc/docpilot/internal/domain/billing"
	vo "github.com/orris-inc/docpilot/internal/domain/billing/valueobjects"
	"github.com/orris-inc/docpilot/internal/infrastructure/persistence/models"
)

func OrderToModel(o *billing.Order) *models.BillingOrderModel {
	payload := datatypes.JSON(o.ProviderPayload())
	if len(payload) == 0 {
		payload = datatypes.JSON("{}")
	}
	return &models.BillingOrderModel{
		ID:              o.ID(),
		UserID:          o.UserID(),
		PlanID:          o.PlanID(),
		Provider:        o.Provider().String(),
		ExternalOrderID: o.ExternalOrderID(),
		IdempotencyKey:  o.IdempotencyKey(),
		AmountCents:     o.Amount().AmountInCents(),
		Currency:        o.Amount().Currency(),
		Status:          o.Status().String(),
		StatusReason:    o.StatusReason(),
		ProviderPayload: payload,
		PaidAt:          o.PaidAt(),
		RefundedAt:      o.RefundedAt(),
		CreatedAt:       o.CreatedAt(),
		UpdatedAt:       o.UpdatedAt(),
	}
}

func OrderToDomain(m *models.BillingOrderModel) (*billing.Order, error) {
	status := vo.OrderStatus(m.Status)
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid order status: %s", m.Status)
	}
	return billing.ReconstructOrder(billing.OrderReconstructParams{
		ID:              m.ID,
		UserID:          m.UserID,
		PlanID:          m.PlanID,
		Provider:        vo.Provider(m.Provider),
		ExternalOrderID: m.ExternalOrderID,
		IdempotencyKey:  m.IdempotencyKey,
		Amount:          vo.NewMoney(m.AmountCents, m.Currency),
		Status:          status,
		StatusReason:    m.StatusReason,
		ProviderPayload: []byte(m.ProviderPayload),
		PaidAt:          m.PaidAt,
		RefundedAt:      m.RefundedAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}), nil
}
