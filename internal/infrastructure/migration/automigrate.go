package migration

import (
	"github.com/orris-inc/docpilot/internal/infrastructure/persistence/models"
)

func AutoMigrateModels() []interface{} {
	return models.BillingModels()
}
