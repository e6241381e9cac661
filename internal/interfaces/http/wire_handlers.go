package http

import (
	"context"

	"github.com/orris-inc/docpilot/internal/interfaces/http/handlers"
	adminBillingHandlers "github.com/orris-inc/docpilot/internal/interfaces/http/handlers/admin/billing"
	billingHandlers "github.com/orris-inc/docpilot/internal/interfaces/http/handlers/billing"
)

// allHandlers holds every HTTP handler instance.
type allHandlers struct {
	health       *handlers.HealthHandler
	webhook      *billingHandlers.WebhookHandler
	checkout     *billingHandlers.CheckoutHandler
	points       *billingHandlers.PointsHandler
	entitlement  *billingHandlers.EntitlementHandler
	adminBilling *adminBillingHandlers.Handler
}

// ============================================================
// Section 4: Handlers
// ============================================================

func (c *Container) initHandlers() {
	log := c.log
	ucs := c.ucs

	// WebhookHandler answers 404 on the WeChat route when notifyUC is a nil interface
	var webhook *billingHandlers.WebhookHandler
	if ucs.providerNotify != nil {
		webhook = billingHandlers.NewWebhookHandler(ucs.processWebhook, ucs.providerNotify, log)
	} else {
		webhook = billingHandlers.NewWebhookHandler(ucs.processWebhook, nil, log)
	}

	c.hdlrs = &allHandlers{
		health:       handlers.NewHealthHandler(c.healthChecks()),
		webhook:      webhook,
		checkout:     billingHandlers.NewCheckoutHandler(ucs.createCheckout, log),
		points:       billingHandlers.NewPointsHandler(ucs.pointBalance, ucs.pointFlows, ucs.consumePoints, log),
		entitlement:  billingHandlers.NewEntitlementHandler(ucs.getEntitlements, ucs.listPlans, log),
		adminBilling: adminBillingHandlers.NewHandler(ucs.managePlans, ucs.listPlans, ucs.adjustPoints, log),
	}
}

func (c *Container) healthChecks() map[string]handlers.Pinger {
	checks := map[string]handlers.Pinger{
		"database": func(ctx context.Context) error {
			sqlDB, err := c.db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if c.redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return c.redis.Ping(ctx).Err()
		}
	}
	return checks
}
