package permission

import (
	"fmt"

	"github.com/orris-inc/docpilot/internal/shared/authorization"
)

// Resources guarded by RequirePermission.
const (
	ResourceBillingPlan     = "billing_plan"
	ResourcePlanEntitlement = "plan_entitlement"
	ResourcePointAccount    = "point_account"
	ResourceCheckout        = "checkout"
	ResourceEntitlement     = "entitlement"
)

// AnyTenant is the policy domain matching every caller tenant.
const AnyTenant = "*"

// Actions.
const (
	ActionRead    = "read"
	ActionCreate  = "create"
	ActionUpdate  = "update"
	ActionDelete  = "delete"
	ActionConsume = "consume"
	ActionAdjust  = "adjust"
)

func defaultPolicies() [][]string {
	admin := authorization.RoleAdmin.String()
	user := authorization.RoleUser.String()
	service := authorization.RoleService.String()

	return [][]string{
		{admin, AnyTenant, ResourceBillingPlan, "*"},
		{admin, AnyTenant, ResourcePlanEntitlement, "*"},
		{admin, AnyTenant, ResourcePointAccount, "*"},
		{admin, AnyTenant, ResourceCheckout, "*"},
		{admin, AnyTenant, ResourceEntitlement, "*"},

		{user, AnyTenant, ResourceBillingPlan, ActionRead},
		{user, AnyTenant, ResourceCheckout, ActionCreate},
		{user, AnyTenant, ResourcePointAccount, ActionRead},
		{user, AnyTenant, ResourcePointAccount, ActionConsume},
		{user, AnyTenant, ResourceEntitlement, ActionRead},

		// the build orchestrator spends points and checks entitlements
		{service, AnyTenant, ResourcePointAccount, ActionConsume},
		{service, AnyTenant, ResourceEntitlement, ActionRead},
	}
}

// InitBillingPermissions installs the default billing policies. Existing
// rows are kept.
func (e *Enforcer) InitBillingPermissions() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, policy := range defaultPolicies() {
		// AddPolicy reports false for rows that already exist
		if _, err := e.enforcer.AddPolicy(policy[0], policy[1], policy[2], policy[3]); err != nil {
			e.logger.Errorw("failed to add billing permission policy",
				"error", err,
				"role", policy[0],
				"tenant", policy[1],
				"resource", policy[2],
				"action", policy[3])
			return fmt.Errorf("failed to add policy [%s, %s, %s, %s]: %w",
				policy[0], policy[1], policy[2], policy[3], err)
		}
	}

	e.logger.Infow("billing permissions initialized successfully")
	return nil
}
