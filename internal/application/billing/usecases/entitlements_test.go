package usecases

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/docpilot/internal/domain/billing"
	vo "github.com/orris-inc/docpilot/internal/domain/billing/valueobjects"
	"github.com/orris-inc/docpilot/internal/shared/logger"
)

func TestEntitlementResolver(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	resolver := NewEntitlementResolver(h.subs, h.plans, h.ents, logger.NewNop())

	got, err := resolver.LoadEntitlements(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, billing.FreePlanCode, got.PlanCode)
	assert.Empty(t, got.Entitlements, "no free plan configured")

	free := h.seedPlan(t, "free", 0, 0, vo.BillingCycleMonthly)
	require.NoError(t, h.ents.Upsert(ctx, &billing.PlanEntitlement{PlanID: free.ID(), Key: "export.pdf", Enabled: false}))
	pro := h.seedPlan(t, "pro_monthly", 19800, 1500, vo.BillingCycleMonthly)
	limit := int64(50)
	require.NoError(t, h.ents.Upsert(ctx, &billing.PlanEntitlement{PlanID: pro.ID(), Key: "export.pdf", Enabled: true, Limit: &limit}))

	got, err = resolver.LoadEntitlements(ctx, 7)
	require.NoError(t, err)
	assert.True(t, got.IsFree())
	assert.False(t, got.Allows("export.pdf"))
	code, err := resolver.ActivePlanCode(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, code)

	co := h.checkoutOrder(t, 7, "pro_monthly")
	_, err = h.send(t, paidEvent("evt_1", co.ExternalOrderID, nil))
	require.NoError(t, err)

	got, err = resolver.LoadEntitlements(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "pro_monthly", got.PlanCode)
	assert.False(t, got.IsFree())
	assert.True(t, got.Allows("export.pdf"))
	assert.Equal(t, int64(50), *got.Entitlements["export.pdf"].Limit)
	require.NotNil(t, got.ExpiresAt)

	code, err = resolver.ActivePlanCode(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "pro_monthly", code)
}

type fakeEntitlementCache struct {
	mu   sync.Mutex
	ids  []uint
	fail bool
}

func (c *fakeEntitlementCache) Invalidate(_ context.Context, userIDs ...uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = append(c.ids, userIDs...)
	if c.fail {
		return errors.New("redis down")
	}
	return nil
}

type fakeTierCache struct{ ids []uint }

func (c *fakeTierCache) Invalidate(userIDs ...uint) { c.ids = append(c.ids, userIDs...) }

type fakeBus struct {
	reasons []string
	ids     []uint
	err     error
}

func (b *fakeBus) PublishInvalidation(_ context.Context, reason string, userIDs ...uint) error {
	b.reasons = append(b.reasons, reason)
	b.ids = append(b.ids, userIDs...)
	return b.err
}

func TestEntitlementInvalidationService(t *testing.T) {
	cache := &fakeEntitlementCache{}
	tiers := &fakeTierCache{}
	bus := &fakeBus{}
	svc := NewEntitlementInvalidationService(cache, tiers, bus, logger.NewNop())

	svc.InvalidateUsers(context.Background(), "payment.succeeded", 7, 8)
	assert.Equal(t, []uint{7, 8}, cache.ids)
	assert.Equal(t, []uint{7, 8}, tiers.ids)
	assert.Equal(t, []string{"payment.succeeded"}, bus.reasons)

	svc.InvalidateLocal(context.Background(), 9)
	assert.Equal(t, []uint{7, 8, 9}, cache.ids)
	assert.Len(t, bus.reasons, 1, "local invalidation does not rebroadcast")

	svc.InvalidateUsers(context.Background(), "noop")
	assert.Len(t, bus.reasons, 1)
}

func TestEntitlementInvalidationService_FailuresAreLogged(t *testing.T) {
	cache := &fakeEntitlementCache{fail: true}
	bus := &fakeBus{err: errors.New("broker down")}
	svc := NewEntitlementInvalidationService(cache, nil, bus, logger.NewNop())

	assert.NotPanics(t, func() {
		svc.InvalidateUsers(context.Background(), "refund", 7)
	})
	assert.Equal(t, []uint{7}, cache.ids)
	assert.Equal(t, []uint{7}, bus.ids)

	svc = NewEntitlementInvalidationService(&fakeEntitlementCache{}, nil, nil, logger.NewNop())
	assert.NotPanics(t, func() {
		svc.InvalidateUsers(context.Background(), "refund", 7)
	})
}

type staticReader struct{ res *billing.ResolvedEntitlements }

func (r staticReader) Get(context.Context, uint) (*billing.ResolvedEntitlements, error) {
	return r.res, nil
}

func TestGetEntitlementsUseCase(t *testing.T) {
	want := &billing.ResolvedEntitlements{UserID: 7, PlanCode: "pro_monthly"}
	got, err := NewGetEntitlementsUseCase(staticReader{res: want}).Execute(context.Background(), 7)
	require.NoError(t, err)
	assert.Same(t, want, got)
}
