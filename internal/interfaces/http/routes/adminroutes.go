package routes

import (
	"github.com/gin-gonic/gin"

	adminBillingHandlers "github.com/orris-inc/docpilot/internal/interfaces/http/handlers/admin/billing"
	"github.com/orris-inc/docpilot/internal/interfaces/http/middleware"
	"github.com/orris-inc/docpilot/internal/infrastructure/permission"
	"github.com/orris-inc/docpilot/internal/shared/authorization"
)

// AdminRouteConfig holds dependencies for admin-only routes.
type AdminRouteConfig struct {
	BillingHandler       *adminBillingHandlers.Handler
	AuthMiddleware       *middleware.AuthMiddleware
	PermissionMiddleware *middleware.PermissionMiddleware
}

// SetupAdminRoutes configures admin plan catalog and point adjustment routes.
func SetupAdminRoutes(engine *gin.Engine, cfg *AdminRouteConfig) {
	perm := cfg.PermissionMiddleware.RequirePermission

	adminPlans := engine.Group("/admin/plans")
	adminPlans.Use(cfg.AuthMiddleware.RequireAuth(), authorization.RequireAdmin())
	{
		adminPlans.GET("", perm(permission.ResourceBillingPlan, permission.ActionRead), cfg.BillingHandler.ListPlans)
		adminPlans.POST("", perm(permission.ResourceBillingPlan, permission.ActionCreate), cfg.BillingHandler.CreatePlan)
		adminPlans.PATCH("/:code", perm(permission.ResourceBillingPlan, permission.ActionUpdate), cfg.BillingHandler.UpdatePlan)
		adminPlans.PATCH("/:code/status", perm(permission.ResourceBillingPlan, permission.ActionUpdate), cfg.BillingHandler.UpdatePlanStatus)
		adminPlans.PUT("/:code/entitlements/:key", perm(permission.ResourcePlanEntitlement, permission.ActionUpdate), cfg.BillingHandler.UpsertEntitlement)
		adminPlans.DELETE("/:code/entitlements/:key", perm(permission.ResourcePlanEntitlement, permission.ActionDelete), cfg.BillingHandler.DeleteEntitlement)
	}

	adminPoints := engine.Group("/admin/points")
	adminPoints.Use(cfg.AuthMiddleware.RequireAuth(), authorization.RequireAdmin())
	{
		adminPoints.POST("/adjust", perm(permission.ResourcePointAccount, permission.ActionAdjust), cfg.BillingHandler.AdjustPoints)
	}
}
