// Package persistence builds the board repository selected by configuration.
package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kandev/taskboard/internal/board/repository"
	"github.com/kandev/taskboard/internal/board/repository/cache"
	"github.com/kandev/taskboard/internal/board/repository/memory"
	"github.com/kandev/taskboard/internal/board/repository/mongo"
	"github.com/kandev/taskboard/internal/board/repository/sqlite"
	"github.com/kandev/taskboard/internal/common/config"
	"github.com/kandev/taskboard/internal/common/logger"
	"github.com/kandev/taskboard/internal/db"
)

// Provide opens the configured store, wraps it in the Redis cache when one
// is configured, and returns a cleanup func closing everything it opened.
func Provide(ctx context.Context, cfg *config.Config, log *logger.Logger) (repository.Repository, func() error, error) {
	base, cleanup, err := provideBase(ctx, cfg.Database, log)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Cache.RedisAddr == "" {
		return base, cleanup, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.RedisAddr,
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		// a cache that is down is not fatal; requests fall through to the store
		log.Warn("redis unreachable at startup", zap.String("addr", cfg.Cache.RedisAddr), zap.Error(err))
	}
	log.Info("board cache enabled", zap.String("addr", cfg.Cache.RedisAddr), zap.Duration("ttl", cfg.Cache.TTLDuration()))

	cached := cache.New(base, client, cfg.Cache.TTLDuration(), log)
	return cached, func() error {
		cErr := client.Close()
		if err := cleanup(); err != nil {
			return err
		}
		return cErr
	}, nil
}

func provideBase(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (repository.Repository, func() error, error) {
	switch strings.ToLower(cfg.Driver) {
	case config.DriverMemory:
		log.Info("Database initialized", zap.String("db_driver", config.DriverMemory))
		repo := memory.New()
		return repo, repo.Close, nil

	case config.DriverSQLite:
		pool, err := db.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		repo, err := sqlite.New(pool)
		if err != nil {
			return nil, nil, err
		}
		log.Info("Database initialized", zap.String("db_path", cfg.Path), zap.String("db_driver", config.DriverSQLite))
		return repo, repo.Close, nil

	case config.DriverPostgres:
		pool, err := db.OpenPostgres(ctx, cfg.DSN(), cfg.MaxConns, cfg.MinConns)
		if err != nil {
			return nil, nil, err
		}
		repo, err := sqlite.New(pool)
		if err != nil {
			return nil, nil, err
		}
		log.Info("Database initialized", zap.String("db_host", cfg.Host), zap.String("db_driver", config.DriverPostgres))
		return repo, repo.Close, nil

	case config.DriverMongo:
		repo, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		log.Info("Database initialized", zap.String("db_name", cfg.MongoDatabase), zap.String("db_driver", config.DriverMongo))
		return repo, repo.Close, nil

	default:
		return nil, nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}
