package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/docpilot/internal/shared/logger"
	"github.com/orris-inc/docpilot/internal/shared/testutil"
)

func newTestEnforcer(t *testing.T) *Enforcer {
	t.Helper()
	e, err := NewEnforcer(testutil.NewTestDB(t), logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, e.InitBillingPermissions())
	return e
}

func TestEnforcer_DefaultPolicies(t *testing.T) {
	e := newTestEnforcer(t)

	tests := []struct {
		role, resource, action string
		want                   bool
	}{
		{"admin", ResourceBillingPlan, ActionDelete, true},
		{"admin", ResourcePointAccount, ActionAdjust, true},
		{"user", ResourceBillingPlan, ActionRead, true},
		{"user", ResourceBillingPlan, ActionUpdate, false},
		{"user", ResourcePointAccount, ActionAdjust, false},
		{"user", ResourcePointAccount, ActionConsume, true},
		{"service", ResourcePointAccount, ActionConsume, true},
		{"service", ResourceCheckout, ActionCreate, false},
		{"anonymous", ResourceEntitlement, ActionRead, false},
	}
	for _, tt := range tests {
		t.Run(tt.role+"/"+tt.resource+"/"+tt.action, func(t *testing.T) {
			ok, err := e.Enforce(tt.role, "acme", tt.resource, tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestEnforcer_InitIsIdempotent(t *testing.T) {
	e := newTestEnforcer(t)
	require.NoError(t, e.InitBillingPermissions())

	perms, err := e.GetPermissionsForUser("user")
	require.NoError(t, err)
	assert.Len(t, perms, 5)
}

func TestEnforcer_RolesAndRemoval(t *testing.T) {
	e := newTestEnforcer(t)

	require.NoError(t, e.AddRoleForUser("42", "admin"))
	ok, err := e.Enforce("42", "", ResourcePlanEntitlement, ActionUpdate)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, e.RemovePolicy("user", AnyTenant, ResourceCheckout, ActionCreate))
	require.NoError(t, e.LoadPolicy())
	ok, err = e.Enforce("user", "", ResourceCheckout, ActionCreate)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEnforcer_TenantScopedPolicy(t *testing.T) {
	e := newTestEnforcer(t)
	require.NoError(t, e.AddPolicy("service", "acme", ResourcePointAccount, ActionAdjust))

	tests := []struct {
		tenant string
		want   bool
	}{
		{"acme", true},
		{"globex", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run("tenant="+tt.tenant, func(t *testing.T) {
			ok, err := e.Enforce("service", tt.tenant, ResourcePointAccount, ActionAdjust)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}

	ok, err := e.Enforce("service", "", ResourcePointAccount, ActionConsume)
	require.NoError(t, err)
	assert.True(t, ok, "global policies apply without a tenant")
}
