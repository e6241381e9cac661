package routes

import (
	"github.com/gin-gonic/gin"

	billingHandlers "github.com/orris-inc/docpilot/internal/interfaces/http/handlers/billing"
	"github.com/orris-inc/docpilot/internal/interfaces/http/middleware"
	"github.com/orris-inc/docpilot/internal/infrastructure/permission"
)

// BillingRouteConfig holds dependencies for the public and user-facing
// billing routes.
type BillingRouteConfig struct {
	WebhookHandler       *billingHandlers.WebhookHandler
	CheckoutHandler      *billingHandlers.CheckoutHandler
	PointsHandler        *billingHandlers.PointsHandler
	EntitlementHandler   *billingHandlers.EntitlementHandler
	AuthMiddleware       *middleware.AuthMiddleware
	PermissionMiddleware *middleware.PermissionMiddleware
	RateLimiter          *middleware.RateLimiter // may be nil
}

// SetupBillingRoutes configures webhook, plan, checkout, points and
// entitlement routes.
func SetupBillingRoutes(engine *gin.Engine, cfg *BillingRouteConfig) {
	// Provider callbacks authenticate by signature, not by bearer token
	webhooks := engine.Group("/webhooks")
	{
		webhooks.POST("/payments", cfg.WebhookHandler.HandlePaymentWebhook)
		webhooks.POST("/wechatpay", cfg.WebhookHandler.HandleWeChatNotify)
	}

	engine.GET("/plans", cfg.EntitlementHandler.ListPlans)

	perm := cfg.PermissionMiddleware.RequirePermission
	limit := func(group string) gin.HandlerFunc {
		if cfg.RateLimiter == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return cfg.RateLimiter.Limit(group)
	}

	checkout := engine.Group("/checkout")
	checkout.Use(cfg.AuthMiddleware.RequireAuth(), limit("checkout"))
	{
		checkout.POST("", perm(permission.ResourceCheckout, permission.ActionCreate), cfg.CheckoutHandler.CreateCheckout)
	}

	points := engine.Group("/points")
	points.Use(cfg.AuthMiddleware.RequireAuth(), limit("points"))
	{
		points.GET("/balance", perm(permission.ResourcePointAccount, permission.ActionRead), cfg.PointsHandler.GetBalance)
		points.GET("/flows", perm(permission.ResourcePointAccount, permission.ActionRead), cfg.PointsHandler.ListFlows)
		points.POST("/consume", perm(permission.ResourcePointAccount, permission.ActionConsume), cfg.PointsHandler.ConsumePoints)
	}

	entitlements := engine.Group("/entitlements")
	entitlements.Use(cfg.AuthMiddleware.RequireAuth(), limit("entitlements"))
	{
		entitlements.GET("", perm(permission.ResourceEntitlement, permission.ActionRead), cfg.EntitlementHandler.GetEntitlements)
	}
}
