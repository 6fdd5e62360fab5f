package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/konnexhq/identity-service/internal/adapters/config"
	"github.com/konnexhq/identity-service/internal/domain"
)

// NewPool establishes the pgx connection pool backing the profile document
// store and returns it together with a cleanup function.
func NewPool(ctx context.Context, cfgProvider config.Provider, logger domain.Logger) (*pgxpool.Pool, func(), error) {
	pgCfg := cfgProvider.Get().Postgres
	if pgCfg.DSN == "" {
		return nil, nil, fmt.Errorf("postgres.dsn is not configured")
	}

	poolCfg, err := pgxpool.ParseConfig(pgCfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse postgres DSN: %w", err)
	}
	if pgCfg.MaxConns > 0 {
		poolCfg.MaxConns = pgCfg.MaxConns
	}
	if pgCfg.MinConns > 0 {
		poolCfg.MinConns = pgCfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		logger.Error(ctx, "Failed to ping Postgres", "error", err.Error())
		return nil, nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	cleanup := func() {
		pool.Close()
		logger.Info(context.Background(), "Postgres connection pool closed")
	}
	logger.Info(ctx, "Successfully connected to Postgres")
	return pool, cleanup, nil
}
