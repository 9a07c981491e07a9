package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/raphaelgruber/mooddine/internal/config"
	"github.com/raphaelgruber/mooddine/internal/db"
	"github.com/raphaelgruber/mooddine/internal/quota"
	"github.com/raphaelgruber/mooddine/internal/storage"
)

func noopClose() error { return nil }

// openStore returns the quota store selected by cfg.QuotaStore and a
// function that releases it.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (quota.Store, func() error, error) {
	switch cfg.QuotaStore {
	case config.StoreMemory:
		return quota.NewMemoryStore(), noopClose, nil

	case config.StoreFile:
		return storage.NewFileStore(cfg.QuotaFile, cfg.QuotaKey), noopClose, nil

	case config.StoreSQLite:
		s, err := storage.OpenSQLite(cfg.DataDir, cfg.QuotaKey)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("ping redis at %s: %w", cfg.RedisAddr, err)
		}
		s := storage.NewRedisStore(rdb, cfg.QuotaKey)
		return s, s.Close, nil

	case config.StoreSurrealDB:
		dbClient, err := db.NewClient(ctx, db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := dbClient.InitSchema(ctx); err != nil {
			_ = dbClient.Close(context.Background())
			return nil, nil, fmt.Errorf("initialize schema: %w", err)
		}
		closer := func() error { return dbClient.Close(context.Background()) }
		return dbClient.QuotaStore(cfg.QuotaKey), closer, nil

	default:
		return nil, nil, fmt.Errorf("unknown quota store %q", cfg.QuotaStore)
	}
}
