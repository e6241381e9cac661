package usecases

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vo "github.com/orris-inc/docpilot/internal/domain/billing/valueobjects"
	apperrors "github.com/orris-inc/docpilot/internal/shared/errors"
	"github.com/orris-inc/docpilot/internal/shared/logger"
)

func newManage(h *harness) *ManagePlansUseCase {
	return NewManagePlansUseCase(h.plans, h.ents, h.subs, h.invalidator, logger.NewNop())
}

func TestManagePlans_CreateAndUpdate(t *testing.T) {
	h := newHarness(t)
	uc := newManage(h)
	ctx := context.Background()

	plan, err := uc.CreatePlan(ctx, CreatePlanCommand{
		Code: "team_yearly", Name: "Team", PriceCents: 99900, Currency: "CNY",
		MonthlyPoints: 5000, BillingCycle: "yearly", Metadata: map[string]any{"seats": 5},
	})
	require.NoError(t, err)
	assert.NotZero(t, plan.ID())
	assert.Equal(t, vo.BillingCycleYearly, plan.BillingCycle())

	_, err = uc.CreatePlan(ctx, CreatePlanCommand{Code: "team_yearly", Name: "Dup", PriceCents: 1, Currency: "CNY", BillingCycle: "yearly"})
	assert.True(t, apperrors.IsConflictError(err))

	_, err = uc.CreatePlan(ctx, CreatePlanCommand{Code: "bad", PriceCents: 1, Currency: "CNY", BillingCycle: "hourly"})
	assert.True(t, apperrors.IsValidationError(err))

	price := int64(88800)
	name := "Team Plus"
	updated, err := uc.UpdatePlan(ctx, UpdatePlanCommand{Code: "team_yearly", Name: &name, PriceCents: &price})
	require.NoError(t, err)
	assert.Equal(t, int64(88800), updated.Price().AmountInCents())
	assert.Equal(t, "CNY", updated.Price().Currency())

	stored, err := h.plans.GetByCode(ctx, "team_yearly")
	require.NoError(t, err)
	assert.Equal(t, "Team Plus", stored.Name())
	assert.Equal(t, int64(5000), stored.MonthlyPoints())

	negative := int64(-1)
	_, err = uc.UpdatePlan(ctx, UpdatePlanCommand{Code: "team_yearly", MonthlyPoints: &negative})
	assert.True(t, apperrors.IsValidationError(err))
}

func TestManagePlans_ChangesInvalidateSubscribers(t *testing.T) {
	h := newHarness(t)
	uc := newManage(h)
	ctx := context.Background()
	h.seedPlan(t, "pro_monthly", 19800, 1500, vo.BillingCycleMonthly)
	co := h.checkoutOrder(t, 7, "pro_monthly")
	_, err := h.send(t, paidEvent("evt_1", co.ExternalOrderID, nil))
	require.NoError(t, err)
	before := len(h.invalidator.users())

	ent, err := uc.UpsertEntitlement(ctx, UpsertEntitlementCommand{PlanCode: "pro_monthly", Key: "export.pdf", Enabled: true})
	require.NoError(t, err)
	assert.NotZero(t, ent.PlanID)
	assert.Len(t, h.invalidator.users(), before+1)

	require.NoError(t, uc.DeleteEntitlement(ctx, "pro_monthly", "export.pdf"))
	assert.Len(t, h.invalidator.users(), before+2)

	plan, err := uc.SetPlanActive(ctx, "pro_monthly", false)
	require.NoError(t, err)
	assert.False(t, plan.IsActive())
	assert.Len(t, h.invalidator.users(), before+3)

	_, err = uc.SetPlanActive(ctx, "pro_monthly", true)
	require.NoError(t, err)
	assert.Len(t, h.invalidator.users(), before+3)

	_, err = uc.UpsertEntitlement(ctx, UpsertEntitlementCommand{PlanCode: "pro_monthly", Key: " "})
	assert.True(t, apperrors.IsValidationError(err))
	_, err = uc.UpsertEntitlement(ctx, UpsertEntitlementCommand{PlanCode: "missing", Key: "x"})
	assert.True(t, apperrors.IsNotFoundError(err))
}

const catalogYAML = `
plans:
  - code: free
    name: Free
    price_cents: 0
    currency: CNY
    billing_cycle: monthly
    entitlements:
      - key: docs.max
        limit: 3
  - code: pro_monthly
    name: Pro
    price_cents: 19800
    currency: CNY
    monthly_points: 1500
    billing_cycle: monthly
    entitlements:
      - key: docs.max
        limit: 100
      - key: export.pdf
        enabled: false
`

func TestPlanCatalogSync(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	catalog, err := LoadPlanCatalog(strings.NewReader(catalogYAML))
	require.NoError(t, err)
	require.Len(t, catalog.Plans, 2)

	syncer := NewSyncPlanCatalogUseCase(h.txm, h.plans, newManage(h), logger.NewNop())
	res, err := syncer.Execute(ctx, catalog)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 3, res.Entitlements)

	catalog.Plans[1].MonthlyPoints = 2000
	res, err = syncer.Execute(ctx, catalog)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 2, res.Updated)

	pro, err := h.plans.GetByCode(ctx, "pro_monthly")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), pro.MonthlyPoints())
	ents, err := h.ents.ListByPlan(ctx, pro.ID())
	require.NoError(t, err)
	require.Len(t, ents, 2)
	for _, e := range ents {
		switch e.Key {
		case "docs.max":
			assert.True(t, e.Enabled, "enabled defaults to true")
			assert.Equal(t, int64(100), *e.Limit)
		case "export.pdf":
			assert.False(t, e.Enabled)
		}
	}
}

func TestLoadPlanCatalog_Rejects(t *testing.T) {
	for name, doc := range map[string]string{
		"unknown field": "plans:\n  - code: a\n    colour: red\n",
		"missing code":  "plans:\n  - name: a\n",
		"duplicate":     "plans:\n  - code: a\n  - code: a\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadPlanCatalog(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestPlanCatalogSync_RollsBackOnError(t *testing.T) {
	h := newHarness(t)
	catalog := &PlanCatalog{Plans: []CatalogPlan{
		{Code: "pro_monthly", Name: "Pro", PriceCents: 19800, Currency: "CNY", BillingCycle: "monthly"},
		{Code: "broken", Name: "Broken", PriceCents: 1, Currency: "CNY", BillingCycle: "fortnightly"},
	}}
	_, err := NewSyncPlanCatalogUseCase(h.txm, h.plans, newManage(h), logger.NewNop()).Execute(context.Background(), catalog)
	require.Error(t, err)

	_, err = h.plans.GetByCode(context.Background(), "pro_monthly")
	assert.True(t, apperrors.IsNotFoundError(err))
}

type upperRenderer struct{}

func (upperRenderer) Render(src string) (string, error) {
	if src == "" {
		return "", nil
	}
	return "<p>" + strings.ToUpper(src) + "</p>", nil
}

func TestListPlans(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	uc := newManage(h)
	_, err := uc.CreatePlan(ctx, CreatePlanCommand{Code: "pro_monthly", Name: "Pro", Description: "for **teams**", PriceCents: 19800, Currency: "CNY", MonthlyPoints: 1500, BillingCycle: "monthly"})
	require.NoError(t, err)
	_, err = uc.CreatePlan(ctx, CreatePlanCommand{Code: "legacy", Name: "Legacy", PriceCents: 900, Currency: "CNY", BillingCycle: "monthly"})
	require.NoError(t, err)
	_, err = uc.SetPlanActive(ctx, "legacy", false)
	require.NoError(t, err)
	_, err = uc.UpsertEntitlement(ctx, UpsertEntitlementCommand{PlanCode: "pro_monthly", Key: "export.pdf", Enabled: true})
	require.NoError(t, err)

	list := NewListPlansUseCase(h.plans, h.ents, upperRenderer{}, logger.NewNop())
	active, err := list.Execute(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "pro_monthly", active[0].Code)
	assert.Equal(t, "198.00", active[0].Price)
	assert.Equal(t, "<p>FOR **TEAMS**</p>", active[0].DescriptionHTML)
	require.Len(t, active[0].Entitlements, 1)

	all, err := list.Execute(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
