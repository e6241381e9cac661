package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/docpilot/internal/domain/billing"
	vo "github.com/orris-inc/docpilot/internal/domain/billing/valueobjects"
)

func TestPlanRepository_GetAndList(t *testing.T) {
	gdb := newBillingDB(t)
	pro := seedPlan(t, gdb, "pro_monthly", 19800, 1500)
	legacy := seedPlan(t, gdb, "legacy_monthly", 9900, 500)
	repo := NewPlanRepository(gdb)
	ctx := context.Background()

	legacy.Deactivate()
	require.NoError(t, repo.Update(ctx, legacy))

	got, err := repo.GetByCode(ctx, "pro_monthly")
	require.NoError(t, err)
	assert.Equal(t, pro.ID(), got.ID())
	assert.Equal(t, int64(1500), got.MonthlyPoints())

	active, err := repo.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "pro_monthly", active[0].Code())

	all, err := repo.List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = repo.GetByCode(ctx, "missing")
	var nf *billing.NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestEntitlementRepository_UpsertAndDelete(t *testing.T) {
	gdb := newBillingDB(t)
	plan := seedPlan(t, gdb, "pro_monthly", 19800, 1500)
	repo := NewEntitlementRepository(gdb)
	ctx := context.Background()

	limit := int64(10)
	require.NoError(t, repo.Upsert(ctx, &billing.PlanEntitlement{PlanID: plan.ID(), Key: "exports", Enabled: true, Limit: &limit}))
	require.NoError(t, repo.Upsert(ctx, &billing.PlanEntitlement{PlanID: plan.ID(), Key: "api_access", Enabled: true}))

	raised := int64(50)
	require.NoError(t, repo.Upsert(ctx, &billing.PlanEntitlement{PlanID: plan.ID(), Key: "exports", Enabled: true, Limit: &raised}))

	list, err := repo.ListByPlan(ctx, plan.ID())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "api_access", list[0].Key)
	assert.Equal(t, "exports", list[1].Key)
	require.NotNil(t, list[1].Limit)
	assert.Equal(t, int64(50), *list[1].Limit)

	require.NoError(t, repo.Delete(ctx, plan.ID(), "exports"))
	err = repo.Delete(ctx, plan.ID(), "exports")
	var nf *billing.NotFoundError
	assert.True(t, errors.As(err, &nf))

	assert.Error(t, repo.Upsert(ctx, &billing.PlanEntitlement{PlanID: plan.ID(), Key: " "}))
}

func TestEntitlementRepository_PersistsDisabled(t *testing.T) {
	gdb := newBillingDB(t)
	plan := seedPlan(t, gdb, "pro_monthly", 19800, 1500)
	repo := NewEntitlementRepository(gdb)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &billing.PlanEntitlement{PlanID: plan.ID(), Key: "export.pdf", Enabled: false}))
	list, err := repo.ListByPlan(ctx, plan.ID())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].Enabled, "created disabled")

	require.NoError(t, repo.Upsert(ctx, &billing.PlanEntitlement{PlanID: plan.ID(), Key: "export.pdf", Enabled: true}))
	list, err = repo.ListByPlan(ctx, plan.ID())
	require.NoError(t, err)
	assert.True(t, list[0].Enabled)

	require.NoError(t, repo.Upsert(ctx, &billing.PlanEntitlement{PlanID: plan.ID(), Key: "export.pdf", Enabled: false}))
	list, err = repo.ListByPlan(ctx, plan.ID())
	require.NoError(t, err)
	assert.False(t, list[0].Enabled, "flipped to disabled")
}

func TestPlanRepository_CreateInactive(t *testing.T) {
	gdb := newBillingDB(t)
	repo := NewPlanRepository(gdb)
	ctx := context.Background()

	p, err := billing.NewPlan("legacy", "Legacy", vo.NewMoney(900, "CNY"), 10, vo.BillingCycleMonthly)
	require.NoError(t, err)
	p.Deactivate()
	require.NoError(t, repo.Create(ctx, p))

	got, err := repo.GetByCode(ctx, "legacy")
	require.NoError(t, err)
	assert.False(t, got.IsActive())
}
