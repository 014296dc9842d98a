package migrate

import (
	"context"
	"fmt"

	"github.com/clubsphere/clubsphere-backend/pkg/config"
	"github.com/clubsphere/clubsphere-backend/pkg/db"
	"github.com/clubsphere/clubsphere-backend/pkg/logger"
)

// MaybeRunDev applies the embedded migrations on startup in dev when
// auto-migrate is switched on. Other environments migrate through cmd/migrate.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.Features.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	provider, err := newProvider(sqlDB, EmbeddedFS())
	if err != nil {
		return err
	}

	ctx = logg.WithField(ctx, "event", "migrate.autorun")
	results, err := provider.Up(ctx)
	for _, res := range results {
		if res == nil || res.Source == nil {
			continue
		}
		logg.Info(logg.WithFields(ctx, map[string]any{
			"version":     res.Source.Version,
			"file":        res.Source.Path,
			"duration_ms": res.Duration.Milliseconds(),
		}), "migration applied")
	}
	if err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	logg.Info(logg.WithField(ctx, "applied", len(results)), "schema up to date")
	return nil
}
