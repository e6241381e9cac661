package usecases

import (
	"context"
	"errors"

	"github.com/orris-inc/docpilot/internal/domain/billing"
	"github.com/orris-inc/docpilot/internal/shared/biztime"
	"github.com/orris-inc/docpilot/internal/shared/logger"
)

// EntitlementResolver computes a user's entitlements from their active
// subscription, falling back to the free plan. It is the loader behind the
// entitlement cache and the plan lookup behind the rate limiter.
type EntitlementResolver struct {
	subs   billing.SubscriptionRepository
	plans  billing.PlanRepository
	ents   billing.EntitlementRepository
	now    biztime.Clock
	logger logger.Interface
}

func NewEntitlementResolver(
	subs billing.SubscriptionRepository,
	plans billing.PlanRepository,
	ents billing.EntitlementRepository,
	logger logger.Interface,
) *EntitlementResolver {
	return &EntitlementResolver{subs: subs, plans: plans, ents: ents, now: biztime.SystemClock, logger: logger}
}

func (r *EntitlementResolver) LoadEntitlements(ctx context.Context, userID uint) (*billing.ResolvedEntitlements, error) {
	now := r.now()
	out := &billing.ResolvedEntitlements{
		UserID:       userID,
		PlanCode:     billing.FreePlanCode,
		Entitlements: map[string]billing.EntitlementGrant{},
		ResolvedAt:   now,
	}

	sub, err := r.subs.GetActiveByUser(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	var plan *billing.Plan
	if sub != nil {
		plan, err = r.plans.GetByID(ctx, sub.PlanID())
		if err != nil {
			return nil, err
		}
		out.SubscriptionID = sub.ID()
		expires := sub.ExpiresAt()
		out.ExpiresAt = &expires
	} else {
		plan, err = r.plans.GetByCode(ctx, billing.FreePlanCode)
		var nf *billing.NotFoundError
		if errors.As(err, &nf) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
	}

	out.PlanID = plan.ID()
	out.PlanCode = plan.Code()
	ents, err := r.ents.ListByPlan(ctx, plan.ID())
	if err != nil {
		return nil, err
	}
	out.Entitlements = billing.GrantsFromEntitlements(ents)
	return out, nil
}

// ActivePlanCode returns "" for users without a live subscription.
func (r *EntitlementResolver) ActivePlanCode(ctx context.Context, userID uint) (string, error) {
	sub, err := r.subs.GetActiveByUser(ctx, userID, r.now())
	if err != nil || sub == nil {
		return "", err
	}
	plan, err := r.plans.GetByID(ctx, sub.PlanID())
	if err != nil {
		return "", err
	}
	return plan.Code(), nil
}

// EntitlementReader is the cached read side.
type EntitlementReader interface {
	Get(ctx context.Context, userID uint) (*billing.ResolvedEntitlements, error)
}

type GetEntitlementsUseCase struct {
	reader EntitlementReader
}

func NewGetEntitlementsUseCase(reader EntitlementReader) *GetEntitlementsUseCase {
	return &GetEntitlementsUseCase{reader: reader}
}

func (uc *GetEntitlementsUseCase) Execute(ctx context.Context, userID uint) (*billing.ResolvedEntitlements, error) {
	return uc.reader.Get(ctx, userID)
}

type entitlementCache interface {
	Invalidate(ctx context.Context, userIDs ...uint) error
}

type planTierCache interface {
	Invalidate(userIDs ...uint)
}

type invalidationPublisher interface {
	PublishInvalidation(ctx context.Context, reason string, userIDs ...uint) error
}

// EntitlementInvalidationService implements EntitlementInvalidator over the
// entitlement cache, the rate-limit tier cache and, when other instances
// hold process-local copies, a broadcast to them.
type EntitlementInvalidationService struct {
	cache  entitlementCache
	tiers  planTierCache
	bus    invalidationPublisher
	logger logger.Interface
}

// NewEntitlementInvalidationService accepts nil tiers and bus.
func NewEntitlementInvalidationService(cache entitlementCache, tiers planTierCache, bus invalidationPublisher, logger logger.Interface) *EntitlementInvalidationService {
	return &EntitlementInvalidationService{cache: cache, tiers: tiers, bus: bus, logger: logger}
}

func (s *EntitlementInvalidationService) InvalidateUsers(ctx context.Context, reason string, userIDs ...uint) {
	if len(userIDs) == 0 {
		return
	}
	s.InvalidateLocal(ctx, userIDs...)
	if s.bus != nil {
		if err := s.bus.PublishInvalidation(ctx, reason, userIDs...); err != nil {
			s.logger.Warnw("failed to broadcast entitlement invalidation",
				"reason", reason,
				"users", len(userIDs),
				"error", err,
			)
		}
	}
}

// InvalidateLocal drops this instance's state only. It handles broadcasts
// received from other instances.
func (s *EntitlementInvalidationService) InvalidateLocal(ctx context.Context, userIDs ...uint) {
	if err := s.cache.Invalidate(ctx, userIDs...); err != nil {
		s.logger.Warnw("failed to invalidate entitlement cache", "users", len(userIDs), "error", err)
	}
	if s.tiers != nil {
		s.tiers.Invalidate(userIDs...)
	}
}
