package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"business-inventory/internal/common/config"
	"business-inventory/internal/common/database"
	apperrors "business-inventory/internal/common/errors"
)

// connectPostgres opens the pool and pings it until it answers. Pools that failed
// their ping are closed before the next attempt.
func connectPostgres(ctx context.Context, cfg config.PostgresConfig, attempts int, delay time.Duration, log *zap.Logger) (*database.PostgresClient, error) {
	var pg *database.PostgresClient
	err := retryWithBackoff(func() error {
		client, err := database.NewPostgres(cfg)
		if err != nil {
			return err
		}
		if err := client.Ping(ctx); err != nil {
			_ = client.Close()
			return err
		}
		pg = client
		return nil
	}, attempts, delay, log, "PostgreSQL connection")
	if err != nil {
		return nil, apperrors.NewDatabaseConnectionFailedError(err).WithMetadata("store", "postgres")
	}
	return pg, nil
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, attempts int, delay time.Duration, log *zap.Logger) (*database.RedisClient, error) {
	var rdb *database.RedisClient
	err := retryWithBackoff(func() error {
		client, err := database.NewRedis(cfg)
		if err != nil {
			return err
		}
		if err := client.Ping(ctx); err != nil {
			_ = client.Close()
			return err
		}
		rdb = client
		return nil
	}, attempts, delay, log, "Redis connection")
	if err != nil {
		return nil, apperrors.NewDatabaseConnectionFailedError(err).WithMetadata("store", "redis")
	}
	return rdb, nil
}
