package http

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/sync/errgroup"

	"github.com/orris-inc/docpilot/internal/infrastructure/pubsub"
	"github.com/orris-inc/docpilot/internal/interfaces/http/middleware"
	"github.com/orris-inc/docpilot/internal/interfaces/http/routes"

	_ "github.com/orris-inc/docpilot/docs"
)

// SetupRoutes configures all HTTP routes
func (c *Container) SetupRoutes() error {
	if err := c.requireReady(); err != nil {
		return err
	}

	c.engine.Use(middleware.RequestLogger(c.log))
	c.engine.Use(middleware.Recovery(c.log))
	c.engine.Use(middleware.CORS(c.cfg.Server.AllowedOrigins))
	c.engine.Use(middleware.SecurityHeaders())

	c.engine.GET("/health", c.hdlrs.health.HealthCheck)
	if !c.cfg.IsProduction() {
		c.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	routes.SetupBillingRoutes(c.engine, &routes.BillingRouteConfig{
		WebhookHandler:       c.hdlrs.webhook,
		CheckoutHandler:      c.hdlrs.checkout,
		PointsHandler:        c.hdlrs.points,
		EntitlementHandler:   c.hdlrs.entitlement,
		AuthMiddleware:       c.authMiddleware,
		PermissionMiddleware: c.permissionMiddleware,
		RateLimiter:          c.rateLimiter,
	})

	routes.SetupAdminRoutes(c.engine, &routes.AdminRouteConfig{
		BillingHandler:       c.hdlrs.adminBilling,
		AuthMiddleware:       c.authMiddleware,
		PermissionMiddleware: c.permissionMiddleware,
	})
	return nil
}

// RunBackground starts the sweeps and the cross-instance invalidation
// subscriber, and blocks until ctx is canceled.
func (c *Container) RunBackground(ctx context.Context) error {
	if err := c.requireReady(); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	if c.schedulerManager != nil {
		c.schedulerManager.Start()
		g.Go(func() error {
			<-ctx.Done()
			return nil
		})
	}

	if c.invalidationBus != nil {
		g.Go(func() error {
			c.subscribeInvalidations(ctx)
			return nil
		})
	}

	return g.Wait()
}

// subscribeInvalidations keeps the Pub/Sub subscription alive until ctx
// ends, reconnecting with exponential backoff.
func (c *Container) subscribeInvalidations(ctx context.Context) {
	handler := func(ctx context.Context, event pubsub.InvalidationEvent) {
		c.invalidation.InvalidateLocal(ctx, event.UserIDs...)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxInterval = 30 * time.Second
	for {
		started := time.Now()
		err := c.invalidationBus.Subscribe(ctx, handler)
		if ctx.Err() != nil {
			return
		}
		if time.Since(started) > time.Minute {
			b.Reset()
		}
		wait := b.NextBackOff()
		c.log.Warnw("entitlement invalidation subscription ended, reconnecting", "error", err, "retry_in", wait)

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// Shutdown stops background work and releases connections. It is safe to
// call more than once.
func (c *Container) Shutdown() {
	c.shutdownOnce.Do(func() {
		if c.schedulerManager != nil && c.schedulerManager.IsStarted() {
			if err := c.schedulerManager.Stop(); err != nil {
				c.log.Errorw("failed to stop scheduler", "error", err)
			}
		}

		if c.eventPublisher != nil {
			if err := c.eventPublisher.Close(); err != nil {
				c.log.Errorw("failed to close event publisher", "error", err)
			}
		}

		if c.redis != nil {
			if err := c.redis.Close(); err != nil {
				c.log.Errorw("failed to close Redis client", "error", err)
			}
		}
	})
}
