package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/orris-inc/docpilot/internal/domain/billing"
	"github.com/orris-inc/docpilot/internal/infrastructure/persistence/mappers"
	"github.com/orris-inc/docpilot/internal/infrastructure/persistence/models"
	"github.com/orris-inc/docpilot/internal/shared/biztime"
	"github.com/orris-inc/docpilot/internal/shared/db"
)

// maxOutboxAttempts parks an event after repeated publish failures so one
// poison message cannot stall the relay.
const maxOutboxAttempts = 10

type OutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Enqueue joins the caller's transaction, so events commit with the ledger change.
func (r *OutboxRepository) Enqueue(ctx context.Context, events ...billing.Event) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([]*models.BillingOutboxEventModel, 0, len(events))
	for _, e := range events {
		if e.OccurredAt.IsZero() {
			e.OccurredAt = biztime.NowUTC()
		}
		m, err := mappers.EventToOutboxModel(e)
		if err != nil {
			return fmt.Errorf("failed to encode outbox event %s: %w", e.Type, err)
		}
		rows = append(rows, m)
	}
	if err := db.GetTxFromContext(ctx, r.db).Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to enqueue outbox events: %w", err)
	}
	return nil
}

func (r *OutboxRepository) FetchPending(ctx context.Context, limit int) ([]*billing.OutboxMessage, error) {
	var rows []models.BillingOutboxEventModel
	if err := db.GetTxFromContext(ctx, r.db).
		Where("published_at IS NULL AND attempts < ?", maxOutboxAttempts).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch outbox events: %w", err)
	}

	out := make([]*billing.OutboxMessage, 0, len(rows))
	for i := range rows {
		out = append(out, mappers.OutboxModelToDomain(&rows[i]))
	}
	return out, nil
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, id uint, at time.Time) error {
	if err := db.GetTxFromContext(ctx, r.db).
		Model(&models.BillingOutboxEventModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"published_at": at,
			"attempts":     gorm.Expr("attempts + 1"),
		}).Error; err != nil {
		return fmt.Errorf("failed to mark outbox event published: %w", err)
	}
	return nil
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, id uint, reason string) error {
	if len(reason) > 500 {
		reason = reason[:500]
	}
	if err := db.GetTxFromContext(ctx, r.db).
		Model(&models.BillingOutboxEventModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_error": reason,
			"attempts":   gorm.Expr("attempts + 1"),
		}).Error; err != nil {
		return fmt.Errorf("failed to mark outbox event failed: %w", err)
	}
	return nil
}
