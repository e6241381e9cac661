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
)

type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) Create(ctx context.Context, s *billing.Subscription) error {
	model := mappers.SubscriptionToModel(s)
	if err := db.GetTxFromContext(ctx, r.db).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	s.SetID(model.ID)
	return nil
}

func (r *SubscriptionRepository) Update(ctx context.Context, s *billing.Subscription) error {
	model := mappers.SubscriptionToModel(s)
	result := db.GetTxFromContext(ctx, r.db).
		Model(&models.BillingSubscriptionModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]interface{}{
			"plan_id":    model.PlanID,
			"order_id":   model.OrderID,
			"status":     model.Status,
			"starts_at":  model.StartsAt,
			"expires_at": model.ExpiresAt,
			"auto_renew": model.AutoRenew,
			"updated_at": model.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update subscription: %w", result.Error)
	}
	return nil
}

func (r *SubscriptionRepository) GetByOrderID(ctx context.Context, orderID uint) (*billing.Subscription, error) {
	var model models.BillingSubscriptionModel
	if err := db.GetTxFromContext(ctx, r.db).
		Where("order_id = ?", orderID).
		Order("id DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, billing.NewNotFoundError("subscription", "order "+strconv.FormatUint(uint64(orderID), 10))
		}
		return nil, fmt.Errorf("failed to get subscription by order: %w", err)
	}
	return mappers.SubscriptionToDomain(&model)
}

func (r *SubscriptionRepository) GetActiveByUser(ctx context.Context, userID uint, now time.Time) (*billing.Subscription, error) {
	var model models.BillingSubscriptionModel
	err := db.GetTxFromContext(ctx, r.db).
		Where("user_id = ? AND status = ? AND expires_at > ?", userID, vo.SubscriptionStatusActive.String(), now).
		Order("expires_at DESC, id DESC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active subscription: %w", err)
	}
	return mappers.SubscriptionToDomain(&model)
}

func (r *SubscriptionRepository) ListActiveUserIDsByPlan(ctx context.Context, planID uint, now time.Time) ([]uint, error) {
	var userIDs []uint
	if err := db.GetTxFromContext(ctx, r.db).
		Model(&models.BillingSubscriptionModel{}).
		Where("plan_id = ? AND status = ? AND expires_at > ?", planID, vo.SubscriptionStatusActive.String(), now).
		Distinct().
		Pluck("user_id", &userIDs).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscribers of plan: %w", err)
	}
	return userIDs, nil
}

// ListLapsed returns active subscriptions whose window closed at or before now.
func (r *SubscriptionRepository) ListLapsed(ctx context.Context, now time.Time, limit int) ([]*billing.Subscription, error) {
	var rows []models.BillingSubscriptionModel
	if err := db.GetTxFromContext(ctx, r.db).
		Where("status = ? AND expires_at <= ?", vo.SubscriptionStatusActive.String(), now).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list lapsed subscriptions: %w", err)
	}

	subs := make([]*billing.Subscription, 0, len(rows))
	for i := range rows {
		s, err := mappers.SubscriptionToDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, nil
}
