package http

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/orris-inc/docpilot/internal/application/billing/paymentgateway"
	"github.com/orris-inc/docpilot/internal/application/billing/usecases"
	"github.com/orris-inc/docpilot/internal/infrastructure/auth"
	"github.com/orris-inc/docpilot/internal/infrastructure/cache"
	"github.com/orris-inc/docpilot/internal/infrastructure/config"
	"github.com/orris-inc/docpilot/internal/infrastructure/lock"
	"github.com/orris-inc/docpilot/internal/infrastructure/messaging"
	"github.com/orris-inc/docpilot/internal/infrastructure/payment/noop"
	"github.com/orris-inc/docpilot/internal/infrastructure/payment/stripe"
	"github.com/orris-inc/docpilot/internal/infrastructure/payment/wechatpay"
	"github.com/orris-inc/docpilot/internal/infrastructure/permission"
	"github.com/orris-inc/docpilot/internal/infrastructure/pubsub"
	"github.com/orris-inc/docpilot/internal/infrastructure/ratelimit"
	"github.com/orris-inc/docpilot/internal/infrastructure/scheduler"
	"github.com/orris-inc/docpilot/internal/interfaces/http/middleware"
	"github.com/orris-inc/docpilot/internal/shared/logger"
	"github.com/orris-inc/docpilot/internal/shared/services/markdown"
)

// closablePublisher is the outbox relay sink owned by the container.
type closablePublisher interface {
	usecases.EventPublisher
	Close() error
}

// ============================================================
// Section 1: Infrastructure - Redis, Repositories, Auth
// ============================================================

func (c *Container) initInfrastructure(ctx context.Context) error {
	cfg := c.cfg
	log := c.log

	client, err := initRedis(ctx, cfg, log)
	if err != nil {
		return err
	}
	c.redis = client

	c.repos = newRepositories(c.db, log)

	c.jwtSvc = auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessExpMinutes)

	enforcer, err := permission.NewEnforcer(c.db, log.Named("permission"))
	if err != nil {
		return fmt.Errorf("failed to create permission enforcer: %w", err)
	}
	if err := enforcer.InitBillingPermissions(); err != nil {
		return fmt.Errorf("failed to initialize billing permissions: %w", err)
	}
	c.enforcer = enforcer

	c.authMiddleware = middleware.NewAuthMiddleware(c.jwtSvc, log)
	c.permissionMiddleware = middleware.NewPermissionMiddleware(enforcer, log)
	return nil
}

// initRedis pings the configured server. Outside production an unreachable
// server leaves the client nil and every Redis-backed component falls back
// to its process-local form.
func initRedis(ctx context.Context, cfg *config.Config, log logger.Interface) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		if cfg.IsProduction() {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		log.Warnw("Redis unavailable, continuing with process-local state", "addr", cfg.Redis.GetAddr(), "error", err)
		return nil, nil
	}
	log.Infow("Redis connection established successfully", "addr", cfg.Redis.GetAddr())
	return client, nil
}

// ============================================================
// Section 2: Billing - Caches, Gateways, Use Cases
// ============================================================

func (c *Container) initBilling(ctx context.Context) error {
	cfg := c.cfg
	log := c.log
	repos := c.repos

	resolver := usecases.NewEntitlementResolver(repos.subs, repos.plans, repos.entitlements, log.Named("entitlements"))

	c.entitlementCache = cache.NewEntitlementCache(
		c.entitlementStore(),
		resolver,
		time.Duration(cfg.Entitlements.TTLSeconds)*time.Second,
		log.Named("entitlement_cache"),
	)
	c.rpmResolver = ratelimit.NewPlanRPMResolver(
		resolver,
		ratelimit.TiersFromConfig(cfg.RateLimit.Tiers),
		time.Duration(cfg.RateLimit.ResolverTTLSeconds)*time.Second,
		nil,
	)

	// A typed nil bus must not reach the service as a non-nil interface
	if c.redis != nil {
		c.invalidationBus = pubsub.NewRedisInvalidationBus(c.redis, c.instanceID, log.Named("invalidation_bus"))
		c.invalidation = usecases.NewEntitlementInvalidationService(c.entitlementCache, c.rpmResolver, c.invalidationBus, log)
	} else {
		c.invalidation = usecases.NewEntitlementInvalidationService(c.entitlementCache, c.rpmResolver, nil, log)
	}

	if cfg.RateLimit.Enabled {
		limiter, err := ratelimit.NewTokenBucketLimiter(ctx, ratelimit.Options{
			Client:     c.redis,
			Prefix:     cfg.RateLimit.Prefix,
			Cost:       cfg.RateLimit.Cost,
			Production: cfg.IsProduction(),
			Logger:     log.Named("ratelimit"),
		})
		if err != nil {
			return fmt.Errorf("failed to create rate limiter: %w", err)
		}
		c.rateLimiter = middleware.NewRateLimiter(limiter, c.rpmResolver, log)
	}

	gateways, notifyParser, err := c.paymentGateways()
	if err != nil {
		return err
	}

	publisher, err := newEventPublisher(cfg, log)
	if err != nil {
		return err
	}
	c.eventPublisher = publisher

	processor := usecases.NewPaymentEventProcessor(usecases.PaymentEventProcessorDeps{
		TxManager:     repos.txManager,
		Orders:        repos.orders,
		Plans:         repos.plans,
		Subscriptions: repos.subs,
		Ledger:        repos.ledger,
		Outbox:        repos.outbox,
		Invalidator:   c.invalidation,
		Renewal:       usecases.ParseRenewalPolicy(cfg.Billing.RenewalPolicy),
		Logger:        log.Named("payment_events"),
	})

	c.ucs = newUseCases(useCaseDeps{
		cfg:          cfg,
		log:          log,
		repos:        repos,
		gateways:     gateways,
		notifyParser: notifyParser,
		processor:    processor,
		reader:       c.entitlementCache,
		invalidator:  c.invalidation,
		publisher:    publisher,
		renderer:     markdown.NewRenderer(),
	})
	return nil
}

func (c *Container) entitlementStore() cache.Store {
	if c.cfg.Entitlements.Backend == "redis" {
		if c.redis != nil {
			return cache.NewRedisStore(c.redis)
		}
		c.log.Warnw("entitlement cache falling back to memory store, Redis is unavailable")
	}
	return cache.NewMemoryStore(nil)
}

// paymentGateways registers noop and stripe always and WeChat Pay when
// enabled. The returned parser is nil without WeChat Pay.
func (c *Container) paymentGateways() (*paymentgateway.Registry, paymentgateway.NotificationParser, error) {
	registry := paymentgateway.NewRegistry(
		noop.NewGateway(c.cfg.Billing.ReturnURL),
		stripe.NewGateway(),
	)

	if !c.cfg.WeChatPay.Enabled {
		return registry, nil, nil
	}
	client, err := wechatpay.NewClientFromConfig(c.cfg.WeChatPay, c.log.Named("wechatpay"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to configure wechatpay: %w", err)
	}
	registry.Register(client)
	c.log.Infow("payment providers registered", "providers", registry.Providers())
	return registry, client, nil
}

func newEventPublisher(cfg *config.Config, log logger.Interface) (closablePublisher, error) {
	if !cfg.Kafka.Enabled {
		return messaging.NewLogPublisher(log.Named("outbox")), nil
	}
	p, err := messaging.NewKafkaPublisher(cfg.Kafka, log.Named("kafka"))
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
	}
	return p, nil
}

// ============================================================
// Section 3: Scheduler
// ============================================================

func (c *Container) initScheduler() error {
	if !c.cfg.Scheduler.Enabled {
		return nil
	}

	var locker scheduler.Locker
	if c.redis != nil {
		locker = lock.NewRedisLocker(c.redis)
	}
	mgr, err := scheduler.NewSchedulerManager(locker, c.log.Named("scheduler"))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	sc := c.cfg.Scheduler
	specs := []scheduler.JobSpec{
		{Name: "expire_stale_orders", Interval: seconds(sc.StaleOrderSweepSecs, time.Minute), Job: c.ucs.expireOrders},
		{Name: "expire_subscriptions", Interval: seconds(sc.SubscriptionSweepSecs, 5*time.Minute), Job: c.ucs.expireSubs},
		{Name: "relay_outbox", Interval: seconds(sc.OutboxRelaySecs, 5*time.Second), Job: c.ucs.relayOutbox},
	}
	for _, spec := range specs {
		if err := mgr.Register(spec); err != nil {
			return fmt.Errorf("failed to register job %s: %w", spec.Name, err)
		}
	}
	c.schedulerManager = mgr
	return nil
}

func seconds(n int, fallback time.Duration) time.Duration {
	if n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}

var _ usecases.EntitlementReader = (*cache.EntitlementCache)(nil)
