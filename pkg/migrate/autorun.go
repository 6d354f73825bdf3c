package migrate

import (
	"context"
	"fmt"

	"github.com/medmarket/medmarket-backend/pkg/config"
	"github.com/medmarket/medmarket-backend/pkg/db"
	"github.com/medmarket/medmarket-backend/pkg/logger"
)

// AutoUp applies pending migrations at boot. It only acts in dev with
// MEDMARKET_AUTO_MIGRATE enabled; every other environment migrates through
// cmd/migrate.
func AutoUp(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	if err := ValidateDir(DefaultDir); err != nil {
		return err
	}
	runner, err := NewRunner(DefaultDir, cfg.DB.Driver, logg)
	if err != nil {
		return err
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("unwrap sql.DB: %w", err)
	}

	ctx = logg.WithField(ctx, "migrations_dir", DefaultDir)
	logg.Info(ctx, "migrate.auto_up")
	return runner.Exec(ctx, sqlDB, "up")
}
