package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/errtrack/internal/config"
)

func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.MaxIdleConns)
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// Open builds the Store selected by cfg.Driver. For Postgres it applies
// pending migrations first; SQLite creates its schema on open. The returned
// function releases the underlying connections.
func Open(ctx context.Context, cfg config.DatabaseConfig, opts ...Option) (Store, func(), error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		s, err := NewSQLiteStore(cfg.SQLitePath, opts...)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case config.DriverPostgres:
		if err := RunMigrations(cfg.URL, cfg.MigrationsDir); err != nil {
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		pool, err := Connect(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return NewPostgresStore(pool, opts...), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q: must be one of postgres, sqlite", cfg.Driver)
	}
}
