package usecases

import (
	"context"
	"strings"

	"github.com/orris-inc/docpilot/internal/domain/billing"
	vo "github.com/orris-inc/docpilot/internal/domain/billing/valueobjects"
	"github.com/orris-inc/docpilot/internal/shared/biztime"
	apperrors "github.com/orris-inc/docpilot/internal/shared/errors"
	"github.com/orris-inc/docpilot/internal/shared/logger"
)

type CreatePlanCommand struct {
	Code          string
	Name          string
	Description   string
	PriceCents    int64
	Currency      string
	MonthlyPoints int64
	BillingCycle  string
	TrialDays     int
	Metadata      map[string]any
}

type UpdatePlanCommand struct {
	Code          string
	Name          *string
	Description   *string
	PriceCents    *int64
	Currency      string
	MonthlyPoints *int64
	BillingCycle  *string
	TrialDays     *int
	Metadata      map[string]any
}

type UpsertEntitlementCommand struct {
	PlanCode string
	Key      string
	Enabled  bool
	Value    string
	Limit    *int64
	Metadata map[string]any
}

// ManagePlansUseCase holds the admin plan operations. Changes that alter
// what subscribers may do invalidate every current subscriber of the plan.
type ManagePlansUseCase struct {
	plans       billing.PlanRepository
	ents        billing.EntitlementRepository
	subs        billing.SubscriptionRepository
	invalidator EntitlementInvalidator
	now         biztime.Clock
	logger      logger.Interface
}

func NewManagePlansUseCase(
	plans billing.PlanRepository,
	ents billing.EntitlementRepository,
	subs billing.SubscriptionRepository,
	invalidator EntitlementInvalidator,
	logger logger.Interface,
) *ManagePlansUseCase {
	if invalidator == nil {
		invalidator = noopInvalidator{}
	}
	return &ManagePlansUseCase{
		plans:       plans,
		ents:        ents,
		subs:        subs,
		invalidator: invalidator,
		now:         biztime.SystemClock,
		logger:      logger,
	}
}

func (uc *ManagePlansUseCase) CreatePlan(ctx context.Context, cmd CreatePlanCommand) (*billing.Plan, error) {
	cycle, err := vo.ParseBillingCycle(cmd.BillingCycle)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid billing cycle", cmd.BillingCycle)
	}
	plan, err := billing.NewPlan(cmd.Code, cmd.Name, vo.NewMoney(cmd.PriceCents, cmd.Currency), cmd.MonthlyPoints, cycle)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid plan", err.Error())
	}
	if err := plan.Apply(billing.PlanChanges{
		Description: &cmd.Description,
		TrialDays:   &cmd.TrialDays,
		Metadata:    cmd.Metadata,
	}); err != nil {
		return nil, apperrors.NewValidationError("invalid plan", err.Error())
	}

	if err := uc.plans.Create(ctx, plan); err != nil {
		if apperrors.IsDuplicateError(err) {
			return nil, apperrors.NewConflictError("plan code already exists", plan.Code())
		}
		return nil, err
	}
	uc.logger.Infow("plan created", "plan_code", plan.Code(), "plan_id", plan.ID())
	return plan, nil
}

func (uc *ManagePlansUseCase) UpdatePlan(ctx context.Context, cmd UpdatePlanCommand) (*billing.Plan, error) {
	plan, err := uc.plans.GetByCode(ctx, cmd.Code)
	if err != nil {
		return nil, err
	}

	changes := billing.PlanChanges{
		Name:          cmd.Name,
		Description:   cmd.Description,
		MonthlyPoints: cmd.MonthlyPoints,
		TrialDays:     cmd.TrialDays,
		Metadata:      cmd.Metadata,
	}
	if cmd.PriceCents != nil {
		currency := cmd.Currency
		if currency == "" {
			currency = plan.Price().Currency()
		}
		price := vo.NewMoney(*cmd.PriceCents, currency)
		changes.Price = &price
	}
	if cmd.BillingCycle != nil {
		cycle, err := vo.ParseBillingCycle(*cmd.BillingCycle)
		if err != nil {
			return nil, apperrors.NewValidationError("invalid billing cycle", *cmd.BillingCycle)
		}
		changes.BillingCycle = &cycle
	}
	if err := plan.Apply(changes); err != nil {
		return nil, apperrors.NewValidationError("invalid plan", err.Error())
	}
	if err := uc.plans.Update(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func (uc *ManagePlansUseCase) SetPlanActive(ctx context.Context, code string, active bool) (*billing.Plan, error) {
	plan, err := uc.plans.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if active {
		plan.Activate()
	} else {
		plan.Deactivate()
	}
	if err := uc.plans.Update(ctx, plan); err != nil {
		return nil, err
	}
	if !active {
		uc.invalidateSubscribers(ctx, plan, "plan deactivated")
	}
	return plan, nil
}

func (uc *ManagePlansUseCase) UpsertEntitlement(ctx context.Context, cmd UpsertEntitlementCommand) (*billing.PlanEntitlement, error) {
	plan, err := uc.plans.GetByCode(ctx, cmd.PlanCode)
	if err != nil {
		return nil, err
	}
	ent := &billing.PlanEntitlement{
		PlanID:   plan.ID(),
		Key:      strings.TrimSpace(cmd.Key),
		Enabled:  cmd.Enabled,
		Value:    cmd.Value,
		Limit:    cmd.Limit,
		Metadata: cmd.Metadata,
	}
	if err := ent.Validate(); err != nil {
		return nil, apperrors.NewValidationError("invalid entitlement", err.Error())
	}
	if err := uc.ents.Upsert(ctx, ent); err != nil {
		return nil, err
	}
	uc.invalidateSubscribers(ctx, plan, "entitlement updated")
	return ent, nil
}

func (uc *ManagePlansUseCase) DeleteEntitlement(ctx context.Context, planCode, key string) error {
	plan, err := uc.plans.GetByCode(ctx, planCode)
	if err != nil {
		return err
	}
	if err := uc.ents.Delete(ctx, plan.ID(), key); err != nil {
		return err
	}
	uc.invalidateSubscribers(ctx, plan, "entitlement deleted")
	return nil
}

func (uc *ManagePlansUseCase) invalidateSubscribers(ctx context.Context, plan *billing.Plan, reason string) {
	userIDs, err := uc.subs.ListActiveUserIDsByPlan(ctx, plan.ID(), uc.now())
	if err != nil {
		uc.logger.Errorw("failed to list plan subscribers for invalidation",
			"plan_code", plan.Code(),
			"error", err,
		)
		return
	}
	uc.invalidator.InvalidateUsers(ctx, reason, userIDs...)
	uc.logger.Infow("plan subscribers invalidated", "plan_code", plan.Code(), "users", len(userIDs), "reason", reason)
}
