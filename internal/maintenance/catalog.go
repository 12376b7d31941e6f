package maintenance

import (
	"context"

	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

// Catalog supplies the preventive maintenance rules.
type Catalog interface {
	Rules(ctx context.Context) ([]models.MaintenanceRule, error)
}

// StaticCatalog is a fixed rule set.
type StaticCatalog []models.MaintenanceRule

// Rules returns a copy of the rule set.
func (c StaticCatalog) Rules(context.Context) ([]models.MaintenanceRule, error) {
	rules := make([]models.MaintenanceRule, len(c))
	copy(rules, c)
	return rules, nil
}

// StoreCatalog reads the rules seeded in the store.
type StoreCatalog struct {
	Store db.MaintenanceStore
}

// Rules lists the stored rules.
func (c StoreCatalog) Rules(ctx context.Context) ([]models.MaintenanceRule, error) {
	return c.Store.ListRules(ctx)
}
