package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"business-inventory/internal/common/config"
	"business-inventory/internal/common/logger"
	"business-inventory/internal/repository"
)

func migrate(ctx context.Context, cfg *config.Config) error {
	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()

	pg, err := connectPostgres(ctx, cfg.Database.Postgres, 5, 2*time.Second, zapLog)
	if err != nil {
		return err
	}
	defer pg.Close()

	if err := repository.Migrate(ctx, pg.GetDB()); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	zapLog.Info("Schema is up to date", zap.Int("statements", len(repository.MigrationStatements())))
	return nil
}
