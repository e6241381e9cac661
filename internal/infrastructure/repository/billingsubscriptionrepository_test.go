package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/docpilot/internal/domain/billing"
	vo "github.com/orris-inc/docpilot/internal/domain/billing/valueobjects"
)

func TestSubscriptionRepository_ActiveAndLapsed(t *testing.T) {
	gdb := newBillingDB(t)
	plan := seedPlan(t, gdb, "pro_monthly", 19800, 1500)
	repo := NewSubscriptionRepository(gdb)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	current, err := billing.NewSubscription(7, plan.ID(), 11, now.Add(-time.Hour), vo.BillingCycleMonthly)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, current))

	lapsed, err := billing.NewSubscription(8, plan.ID(), 12, now.Add(-31*24*time.Hour), vo.BillingCycleMonthly)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, lapsed))

	t.Run("active by user", func(t *testing.T) {
		got, err := repo.GetActiveByUser(ctx, 7, now)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, current.ID(), got.ID())

		none, err := repo.GetActiveByUser(ctx, 8, now)
		require.NoError(t, err)
		assert.Nil(t, none)
	})

	t.Run("subscribers of plan", func(t *testing.T) {
		ids, err := repo.ListActiveUserIDsByPlan(ctx, plan.ID(), now)
		require.NoError(t, err)
		assert.Equal(t, []uint{7}, ids)
	})

	t.Run("lapsed sweep candidates", func(t *testing.T) {
		subs, err := repo.ListLapsed(ctx, now, 10)
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, uint(8), subs[0].UserID())
	})

	t.Run("update persists expiry", func(t *testing.T) {
		require.NoError(t, lapsed.Expire(now))
		require.NoError(t, repo.Update(ctx, lapsed))

		subs, err := repo.ListLapsed(ctx, now, 10)
		require.NoError(t, err)
		assert.Empty(t, subs)

		byOrder, err := repo.GetByOrderID(ctx, 12)
		require.NoError(t, err)
		assert.Equal(t, vo.SubscriptionStatusExpired, byOrder.Status())
	})
}
