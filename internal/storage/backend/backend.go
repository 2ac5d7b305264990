// Package backend opens the storage adapter and the read cache named by
// the configuration.
package backend

import (
	"context"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/conduit-lang/contenttype/internal/cache"
	"github.com/conduit-lang/contenttype/internal/config"
	"github.com/conduit-lang/contenttype/internal/storage"
	"github.com/conduit-lang/contenttype/internal/storage/docstore"
	"github.com/conduit-lang/contenttype/internal/storage/sqlstore"
)

// SQLDriver returns the database/sql driver name for cfg: "pgx" or
// "postgres" (lib/pq) for postgres, "sqlite3" for sqlite
func SQLDriver(cfg *config.Config) (string, error) {
	switch cfg.Database {
	case config.DatabasePostgres:
		if cfg.SQLDriver == "pq" {
			return "postgres", nil
		}
		return "pgx", nil
	case config.DatabaseSQLite:
		return "sqlite3", nil
	}
	return "", fmt.Errorf("database %q is not relational", cfg.Database)
}

// Open connects the storage adapter selected by cfg.Database
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if cfg.Database == config.DatabaseRedis {
		store, err := docstore.Open(ctx, docstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		}, docstore.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		logger.Info("document store connected", zap.String("addr", cfg.Redis.Addr))
		return store, nil
	}

	driver, err := SQLDriver(cfg)
	if err != nil {
		return nil, err
	}
	store, err := sqlstore.Open(ctx, driver, cfg.DSN(), sqlstore.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	logger.Info("relational store connected",
		zap.String("database", cfg.Database),
		zap.String("driver", driver))
	return store, nil
}

// OpenCache creates the read cache selected by cfg.Cache.Backend
func OpenCache(cfg *config.Config) (cache.Cache, error) {
	switch cfg.Cache.Backend {
	case "", "memory":
		return cache.NewMemoryCacheWithConfig(cache.Config{Prefix: cfg.Cache.Prefix}), nil
	case "redis":
		rc, err := cache.NewRedisCacheWithConfig(cache.RedisConfig{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
			Config:   cache.Config{Prefix: cfg.Cache.Prefix},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect cache: %w", err)
		}
		return rc, nil
	}
	return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Cache.Backend)
}
