package migration

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/orris-inc/docpilot/internal/shared/logger"
)

// Manager handles database migrations with different strategies
type Manager struct {
	strategy Strategy
	logger   logger.Interface
}

// StrategyFor picks goose for server databases and gorm AutoMigrate for
// sqlite, which has no versioned scripts.
func StrategyFor(driver string) Strategy {
	switch driver {
	case "mysql", "":
		return NewGooseStrategy("mysql", "")
	case "postgres":
		return NewGooseStrategy("postgres", "")
	default:
		return NewGormAutoMigrateStrategy()
	}
}

// NewManager creates a migration manager for the database driver.
func NewManager(driver string) *Manager {
	return NewManagerWithStrategy(StrategyFor(driver))
}

// NewManagerWithStrategy creates a new migration manager with a specific strategy
func NewManagerWithStrategy(strategy Strategy) *Manager {
	return &Manager{
		strategy: strategy,
		logger:   logger.WithComponent("migration.manager"),
	}
}

// Migrate executes the configured migration strategy
func (m *Manager) Migrate(db *gorm.DB, models ...interface{}) error {
	m.logger.Infow("starting database migration",
		"strategy", m.strategy.GetName(),
		"models_count", len(models))

	if err := m.strategy.Migrate(db, models...); err != nil {
		m.logger.Errorw("migration failed",
			"strategy", m.strategy.GetName(),
			"error", err)
		return fmt.Errorf("migration failed with strategy %s: %w", m.strategy.GetName(), err)
	}

	m.logger.Infow("database migration completed successfully",
		"strategy", m.strategy.GetName())

	return nil
}

// GetStrategy returns the current migration strategy
func (m *Manager) GetStrategy() Strategy {
	return m.strategy
}

// Goose returns the versioned strategy, or nil when the driver uses AutoMigrate.
func (m *Manager) Goose() *GooseStrategy {
	g, _ := m.strategy.(*GooseStrategy)
	return g
}
