package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/orris-inc/docpilot/internal/domain/billing"
	vo "github.com/orris-inc/docpilot/internal/domain/billing/valueobjects"
	"github.com/orris-inc/docpilot/internal/infrastructure/persistence/models"
	"github.com/orris-inc/docpilot/internal/shared/testutil"
)

func newBillingDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.NewTestDB(t, models.BillingModels()...)
}

func seedPlan(t *testing.T, gdb *gorm.DB, code string, price, points int64) *billing.Plan {
	t.Helper()
	p, err := billing.NewPlan(code, code, vo.NewMoney(price, "CNY"), points, vo.BillingCycleMonthly)
	require.NoError(t, err)
	require.NoError(t, NewPlanRepository(gdb).Create(context.Background(), p))
	return p
}
