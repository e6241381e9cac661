package mappers

import (
	"encoding/json"

	"gorm.io/datatypes"

	"github.com/orris-inc/docpilot/internal/domain/billing"
	vo "github.com/orris-inc/docpilot/internal/domain/billing/valueobjects"
	"github.com/orris-inc/docpilot/internal/infrastructure/persistence/models"
)

func PointAccountToDomain(m *models.BillingPointAccountModel) *billing.PointAccount {
	return &billing.PointAccount{
		UserID:    m.UserID,
		Balance:   m.Balance,
		Version:   m.Version,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func PointFlowToDomain(m *models.BillingPointFlowModel) *billing.PointFlow {
	return &billing.PointFlow{
		ID:             m.ID,
		UserID:         m.UserID,
		FlowType:       vo.FlowType(m.FlowType),
		Points:         m.Points,
		BalanceAfter:   m.BalanceAfter,
		IdempotencyKey: m.IdempotencyKey,
		OrderID:        m.OrderID,
		SubscriptionID: m.SubscriptionID,
		Reason:         m.Reason,
		CreatedAt:      m.CreatedAt,
	}
}

func AuditEntryToModel(e *billing.AuditEntry) *models.BillingAuditLogModel {
	return &models.BillingAuditLogModel{
		ID:              e.ID,
		Provider:        e.Provider.String(),
		EventType:       e.EventType,
		ExternalEventID: e.ExternalEventID,
		ExternalOrderID: e.ExternalOrderID,
		Signature:       e.Signature,
		SignatureValid:  e.SignatureValid,
		RawPayload:      string(e.RawPayload),
		Outcome:         e.Outcome.String(),
		Detail:          e.Detail,
		CreatedAt:       e.CreatedAt,
	}
}

func AuditEntryToDomain(m *models.BillingAuditLogModel) *billing.AuditEntry {
	return &billing.AuditEntry{
		ID:              m.ID,
		Provider:        vo.Provider(m.Provider),
		EventType:       m.EventType,
		ExternalEventID: m.ExternalEventID,
		ExternalOrderID: m.ExternalOrderID,
		Signature:       m.Signature,
		SignatureValid:  m.SignatureValid,
		RawPayload:      []byte(m.RawPayload),
		Outcome:         vo.AuditOutcome(m.Outcome),
		Detail:          m.Detail,
		CreatedAt:       m.CreatedAt,
	}
}

func EventToOutboxModel(e billing.Event) (*models.BillingOutboxEventModel, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, err
	}
	return &models.BillingOutboxEventModel{
		EventType:  e.Type,
		EventKey:   e.Key,
		Payload:    datatypes.JSON(payload),
		OccurredAt: e.OccurredAt,
	}, nil
}

func OutboxModelToDomain(m *models.BillingOutboxEventModel) *billing.OutboxMessage {
	return &billing.OutboxMessage{
		ID: m.ID,
		Event: billing.Event{
			Type:       m.EventType,
			Key:        m.EventKey,
			Payload:    jsonToMap(m.Payload),
			OccurredAt: m.OccurredAt,
		},
		Attempts:    m.Attempts,
		LastError:   m.LastError,
		PublishedAt: m.PublishedAt,
	}
}
