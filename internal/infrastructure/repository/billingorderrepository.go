package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/orris-inc/docpilot/internal/domain/billing"
	vo "github.com/orris-inc/docpilot/internal/domain/billing/valueobjects"
	"github.com/orris-inc/docpilot/internal/infrastructure/persistence/mappers"
	"github.com/orris-inc/docpilot/internal/infrastructure/persistence/models"
	"github.com/orris-inc/docpilot/internal/shared/db"
	apperrors "github.com/orris-inc/docpilot/internal/shared/errors"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// CreateIdempotent relies on the unique indexes on idempotency_key and
// external_order_id. A lost insert race is resolved by reading back the
// winner; no lock is taken.
func (r *OrderRepository) CreateIdempotent(ctx context.Context, o *billing.Order) (billing.InsertResult[*billing.Order], error) {
	existing, err := r.findByUniqueKeys(ctx, o.IdempotencyKey(), o.ExternalOrderID())
	if err != nil {
		return billing.InsertResult[*billing.Order]{}, err
	}
	if existing != nil {
		return billing.InsertResult[*billing.Order]{Value: existing}, nil
	}

	model := mappers.OrderToModel(o)
	// The savepoint keeps a duplicate-key failure from poisoning an
	// enclosing postgres transaction.
	err = db.GetTxFromContext(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		return tx.Create(model).Error
	})
	if err == nil {
		o.SetID(model.ID)
		return billing.InsertResult[*billing.Order]{Value: o, Created: true}, nil
	}
	if !apperrors.IsDuplicateError(err) {
		return billing.InsertResult[*billing.Order]{}, fmt.Errorf("failed to create order: %w", err)
	}

	existing, ferr := r.findByUniqueKeys(ctx, o.IdempotencyKey(), o.ExternalOrderID())
	if ferr != nil {
		return billing.InsertResult[*billing.Order]{}, ferr
	}
	if existing == nil {
		return billing.InsertResult[*billing.Order]{}, fmt.Errorf("order insert conflicted but no row matched: %w", err)
	}
	return billing.InsertResult[*billing.Order]{Value: existing}, nil
}

func (r *OrderRepository) findByUniqueKeys(ctx context.Context, idempotencyKey, externalOrderID string) (*billing.Order, error) {
	var model models.BillingOrderModel
	err := db.GetTxFromContext(ctx, r.db).
		Where("idempotency_key = ? OR external_order_id = ?", idempotencyKey, externalOrderID).
		Order("id ASC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up order: %w", err)
	}
	return mappers.OrderToDomain(&model)
}

func (r *OrderRepository) GetByID(ctx context.Context, id uint) (*billing.Order, error) {
	var model models.BillingOrderModel
	if err := db.GetTxFromContext(ctx, r.db).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, billing.NewNotFoundError("order", strconv.FormatUint(uint64(id), 10))
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return mappers.OrderToDomain(&model)
}

func (r *OrderRepository) GetByExternalOrderID(ctx context.Context, externalOrderID string) (*billing.Order, error) {
	var model models.BillingOrderModel
	if err := db.GetTxFromContext(ctx, r.db).
		Where("external_order_id = ?", externalOrderID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, billing.NewNotFoundError("order", externalOrderID)
		}
		return nil, fmt.Errorf("failed to get order by external_order_id: %w", err)
	}
	return mappers.OrderToDomain(&model)
}

// Save writes the mutable columns only if the row is still in expected
// status. A concurrent transition surfaces as a StateError naming the status
// the row actually holds.
func (r *OrderRepository) Save(ctx context.Context, o *billing.Order, expected vo.OrderStatus) error {
	model := mappers.OrderToModel(o)
	result := db.GetTxFromContext(ctx, r.db).
		Model(&models.BillingOrderModel{}).
		Where("id = ? AND status = ?", model.ID, expected.String()).
		Updates(map[string]interface{}{
			"status":           model.Status,
			"status_reason":    model.StatusReason,
			"provider_payload": model.ProviderPayload,
			"paid_at":          model.PaidAt,
			"refunded_at":      model.RefundedAt,
			"updated_at":       model.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update order: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// MySQL reports zero rows when the values are unchanged, so re-read
	// before calling it a conflict.
	current, err := r.GetByID(ctx, model.ID)
	if err != nil {
		return err
	}
	if current.Status() == expected {
		return nil
	}
	return &billing.StateError{Entity: "order", From: current.Status().String(), To: o.Status().String()}
}

func (r *OrderRepository) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*billing.Order, error) {
	var rows []models.BillingOrderModel
	if err := db.GetTxFromContext(ctx, r.db).
		Where("status = ? AND created_at < ?", vo.OrderStatusPending.String(), createdBefore).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list stale orders: %w", err)
	}

	orders := make([]*billing.Order, 0, len(rows))
	for i := range rows {
		o, err := mappers.OrderToDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}
