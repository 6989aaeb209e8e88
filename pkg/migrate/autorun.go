package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/orderbridge-backend/pkg/config"
	"github.com/angelmondragon/orderbridge-backend/pkg/db"
	"github.com/angelmondragon/orderbridge-backend/pkg/db/models"
	"github.com/angelmondragon/orderbridge-backend/pkg/logger"
)

// MaybeRunDev migrates on startup in dev when the auto-migrate flag is on.
// SQLite databases get gorm AutoMigrate since the SQL files are Postgres only.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	if cfg.DB.IsSQLite() {
		if err := client.DB().WithContext(ctx).AutoMigrate(Models()...); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	runner, err := NewRunner(sqlDB, Migrations(), logg)
	if err != nil {
		return err
	}
	logg.Info(ctx, "applying embedded migrations (dev auto-run)")
	return runner.Up(ctx)
}

// Models lists the persisted types in dependency order.
func Models() []any {
	return []any{
		&models.Product{},
		&models.Order{},
		&models.OrderItem{},
		&models.PaymentIntent{},
		&models.Refund{},
		&models.OutboxEvent{},
		&models.OutboxDLQ{},
	}
}
