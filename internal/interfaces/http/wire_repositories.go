package http

import (
	"gorm.io/gorm"

	"github.com/orris-inc/docpilot/internal/domain/billing"
	"github.com/orris-inc/docpilot/internal/infrastructure/repository"
	shareddb "github.com/orris-inc/docpilot/internal/shared/db"
	"github.com/orris-inc/docpilot/internal/shared/logger"
)

// repositories holds all repository instances used by the application.
type repositories struct {
	txManager    *shareddb.TransactionManager
	plans        billing.PlanRepository
	entitlements billing.EntitlementRepository
	orders       billing.OrderRepository
	subs         billing.SubscriptionRepository
	ledger       billing.PointLedger
	outbox       billing.OutboxRepository
	auditLogs    billing.AuditLogRepository
}

// newRepositories creates all repository instances from the database connection.
func newRepositories(db *gorm.DB, log logger.Interface) *repositories {
	return &repositories{
		txManager:    shareddb.NewTransactionManager(db),
		plans:        repository.NewPlanRepository(db),
		entitlements: repository.NewEntitlementRepository(db),
		orders:       repository.NewOrderRepository(db),
		subs:         repository.NewSubscriptionRepository(db),
		ledger:       repository.NewPointLedgerRepository(db, log.Named("ledger")),
		outbox:       repository.NewOutboxRepository(db),
		auditLogs:    repository.NewAuditLogRepository(db),
	}
}
