package main

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"business-inventory/internal/common/config"
	apperrors "business-inventory/internal/common/errors"
)

func TestConnectRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := connectRedis(context.Background(), config.RedisConfig{Address: mr.Addr()}, 1, time.Millisecond, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer rdb.Close()
	assert.NoError(t, rdb.Ping(context.Background()))
}

func TestConnect_FailureIsDatabaseConnectionError(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	tests := []struct {
		name    string
		connect func() error
	}{
		{
			name: "redis",
			connect: func() error {
				_, err := connectRedis(context.Background(), config.RedisConfig{Address: addr}, 2, time.Millisecond, zaptest.NewLogger(t))
				return err
			},
		},
		{
			name: "postgres",
			connect: func() error {
				_, err := connectPostgres(context.Background(), config.PostgresConfig{
					Host: "127.0.0.1", Port: 1, Database: "inventory", User: "inventory", SSLMode: "disable",
				}, 1, time.Millisecond, zaptest.NewLogger(t))
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.connect()
			require.Error(t, err)
			assert.ErrorIs(t, err, &apperrors.StandardError{Code: apperrors.ErrCodeDatabaseConnect})

			var se *apperrors.StandardError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.name, se.Metadata["store"])
			assert.True(t, se.Retryable)
		})
	}
}
