package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/tableside/pkg/config"
	"github.com/angelmondragon/tableside/pkg/db"
	"github.com/angelmondragon/tableside/pkg/logger"
)

// MaybeRun applies pending migrations when the persistence driver is sql
// backed and auto-migration is enabled.
func MaybeRun(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.Persistence.AutoMigrate {
		return nil
	}
	driver := cfg.Persistence.Driver()
	if _, err := Dialect(driver); err != nil {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	if logg == nil {
		logg = logger.Nop()
	}
	ctx = logg.WithFields(ctx, map[string]any{"driver": string(driver)})
	logg.Info(ctx, "running goose migrations")

	if err := Run(ctx, sqlDB, driver, logg, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "goose migrations completed")
	return nil
}
