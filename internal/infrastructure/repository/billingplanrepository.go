package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/orris-inc/docpilot/internal/domain/billing"
	"github.com/orris-inc/docpilot/internal/infrastructure/persistence/mappers"
	"github.com/orris-inc/docpilot/internal/infrastructure/persistence/models"
	"github.com/orris-inc/docpilot/internal/shared/biztime"
	"github.com/orris-inc/docpilot/internal/shared/db"
)

type PlanRepository struct {
	db *gorm.DB
}

func NewPlanRepository(db *gorm.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

func (r *PlanRepository) Create(ctx context.Context, p *billing.Plan) error {
	model := mappers.PlanToModel(p)
	if err := db.GetTxFromContext(ctx, r.db).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create plan: %w", err)
	}
	p.SetID(model.ID)
	return nil
}

func (r *PlanRepository) Update(ctx context.Context, p *billing.Plan) error {
	model := mappers.PlanToModel(p)
	result := db.GetTxFromContext(ctx, r.db).
		Model(&models.BillingPlanModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]interface{}{
			"name":           model.Name,
			"description":    model.Description,
			"price_cents":    model.PriceCents,
			"currency":       model.Currency,
			"monthly_points": model.MonthlyPoints,
			"billing_cycle":  model.BillingCycle,
			"trial_days":     model.TrialDays,
			"active":         model.Active,
			"metadata":       model.Metadata,
			"updated_at":     model.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update plan: %w", result.Error)
	}
	return nil
}

func (r *PlanRepository) GetByID(ctx context.Context, id uint) (*billing.Plan, error) {
	var model models.BillingPlanModel
	if err := db.GetTxFromContext(ctx, r.db).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, billing.NewNotFoundError("plan", strconv.FormatUint(uint64(id), 10))
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return mappers.PlanToDomain(&model)
}

func (r *PlanRepository) GetByCode(ctx context.Context, code string) (*billing.Plan, error) {
	var model models.BillingPlanModel
	if err := db.GetTxFromContext(ctx, r.db).Where("code = ?", code).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, billing.NewNotFoundError("plan", code)
		}
		return nil, fmt.Errorf("failed to get plan by code: %w", err)
	}
	return mappers.PlanToDomain(&model)
}

func (r *PlanRepository) List(ctx context.Context, activeOnly bool) ([]*billing.Plan, error) {
	query := db.GetTxFromContext(ctx, r.db).Order("price_cents ASC, id ASC")
	if activeOnly {
		query = query.Where("active = ?", true)
	}

	var rows []models.BillingPlanModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}

	plans := make([]*billing.Plan, 0, len(rows))
	for i := range rows {
		p, err := mappers.PlanToDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, nil
}

type EntitlementRepository struct {
	db *gorm.DB
}

func NewEntitlementRepository(db *gorm.DB) *EntitlementRepository {
	return &EntitlementRepository{db: db}
}

// Upsert writes the entitlement keyed on (plan_id, key).
func (r *EntitlementRepository) Upsert(ctx context.Context, e *billing.PlanEntitlement) error {
	if err := e.Validate(); err != nil {
		return err
	}
	now := biztime.NowUTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	model := mappers.EntitlementToModel(e)
	err := db.GetTxFromContext(ctx, r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "plan_id"}, {Name: "entitlement_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"enabled", "value", "quota_limit", "metadata", "updated_at"}),
		}).
		Create(model).Error
	if err != nil {
		return fmt.Errorf("failed to upsert entitlement: %w", err)
	}
	return nil
}

func (r *EntitlementRepository) Delete(ctx context.Context, planID uint, key string) error {
	result := db.GetTxFromContext(ctx, r.db).
		Where("plan_id = ? AND entitlement_key = ?", planID, key).
		Delete(&models.BillingPlanEntitlementModel{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete entitlement: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return billing.NewNotFoundError("entitlement", key)
	}
	return nil
}

func (r *EntitlementRepository) ListByPlan(ctx context.Context, planID uint) ([]*billing.PlanEntitlement, error) {
	var rows []models.BillingPlanEntitlementModel
	if err := db.GetTxFromContext(ctx, r.db).
		Where("plan_id = ?", planID).
		Order("entitlement_key ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list entitlements: %w", err)
	}

	out := make([]*billing.PlanEntitlement, 0, len(rows))
	for i := range rows {
		out = append(out, mappers.EntitlementToDomain(&rows[i]))
	}
	return out, nil
}
