package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/orris-inc/docpilot/internal/domain/billing"
	"github.com/orris-inc/docpilot/internal/infrastructure/persistence/mappers"
	"github.com/orris-inc/docpilot/internal/infrastructure/persistence/models"
	"github.com/orris-inc/docpilot/internal/shared/biztime"
	"github.com/orris-inc/docpilot/internal/shared/db"
)

// AuditLogRepository is append-only.
type AuditLogRepository struct {
	db *gorm.DB
}

func NewAuditLogRepository(db *gorm.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

func (r *AuditLogRepository) Append(ctx context.Context, entry *billing.AuditEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = biztime.NowUTC()
	}
	model := mappers.AuditEntryToModel(entry)
	if err := db.GetTxFromContext(ctx, r.db).Create(model).Error; err != nil {
		return fmt.Errorf("failed to append audit log: %w", err)
	}
	entry.ID = model.ID
	return nil
}

func (r *AuditLogRepository) ListByExternalOrderID(ctx context.Context, externalOrderID string) ([]*billing.AuditEntry, error) {
	var rows []models.BillingAuditLogModel
	if err := db.GetTxFromContext(ctx, r.db).
		Where("external_order_id = ?", externalOrderID).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}

	out := make([]*billing.AuditEntry, 0, len(rows))
	for i := range rows {
		out = append(out, mappers.AuditEntryToDomain(&rows[i]))
	}
	return out, nil
}
