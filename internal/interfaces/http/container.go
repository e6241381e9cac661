package http

import (
	"context"
	"fmt"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/orris-inc/docpilot/internal/application/billing/usecases"
	"github.com/orris-inc/docpilot/internal/infrastructure/auth"
	"github.com/orris-inc/docpilot/internal/infrastructure/cache"
	"github.com/orris-inc/docpilot/internal/infrastructure/config"
	"github.com/orris-inc/docpilot/internal/infrastructure/permission"
	"github.com/orris-inc/docpilot/internal/infrastructure/pubsub"
	"github.com/orris-inc/docpilot/internal/infrastructure/ratelimit"
	"github.com/orris-inc/docpilot/internal/infrastructure/scheduler"
	"github.com/orris-inc/docpilot/internal/interfaces/http/middleware"
	"github.com/orris-inc/docpilot/internal/shared/logger"
)

// Container holds all infrastructure components, repositories, use cases,
// handlers and background services. It wires everything together and
// provides Shutdown() for graceful termination.
type Container struct {
	// Core infrastructure
	engine     *gin.Engine
	db         *gorm.DB
	cfg        *config.Config
	log        logger.Interface
	redis      *redis.Client // nil when Redis is unreachable outside production
	instanceID string

	// Repositories
	repos *repositories

	// Use cases
	ucs *allUseCases

	// Handlers
	hdlrs *allHandlers

	// Middlewares
	authMiddleware       *middleware.AuthMiddleware
	permissionMiddleware *middleware.PermissionMiddleware
	rateLimiter          *middleware.RateLimiter

	// Auth & permission
	jwtSvc   *auth.JWTService
	enforcer *permission.Enforcer

	// Caches
	entitlementCache *cache.EntitlementCache
	rpmResolver      *ratelimit.PlanRPMResolver
	invalidation     *usecases.EntitlementInvalidationService

	// Cross-instance invalidation (nil without Redis)
	invalidationBus *pubsub.RedisInvalidationBus

	// Background services
	schedulerManager *scheduler.SchedulerManager
	eventPublisher   closablePublisher

	shutdownOnce sync.Once
}

// NewContainer creates a Container with all dependencies wired together.
func NewContainer(ctx context.Context, db *gorm.DB, cfg *config.Config, log logger.Interface) (*Container, error) {
	c := &Container{
		engine:     gin.New(),
		db:         db,
		cfg:        cfg,
		log:        log,
		instanceID: uuid.NewString(),
	}

	// Section 1: Infrastructure - Redis, repositories, auth
	if err := c.initInfrastructure(ctx); err != nil {
		return nil, err
	}

	// Section 2: Billing - caches, gateways, use cases
	if err := c.initBilling(ctx); err != nil {
		c.Shutdown()
		return nil, err
	}

	// Section 3: Scheduler jobs
	if err := c.initScheduler(); err != nil {
		c.Shutdown()
		return nil, err
	}

	// Section 4: Handlers and middlewares
	c.initHandlers()

	return c, nil
}

// Engine returns the Gin engine
func (c *Container) Engine() *gin.Engine {
	return c.engine
}

// Redis returns the shared client, or nil when running without Redis.
func (c *Container) Redis() *redis.Client {
	return c.redis
}

// SyncPlanCatalog is used by the seed command.
func (c *Container) SyncPlanCatalog() *usecases.SyncPlanCatalogUseCase {
	return c.ucs.syncCatalog
}

func (c *Container) requireReady() error {
	if c.ucs == nil || c.hdlrs == nil {
		return fmt.Errorf("container is not initialized")
	}
	return nil
}
