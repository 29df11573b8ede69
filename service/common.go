package service

import (
	"context"
	"fmt"
	"os"

	"dblog/app/config"
	"dblog/app/indexer"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var osExit = os.Exit

// confirm asks a yes/no question on stdin. Anything but y or Y is a no.
func confirm(question string) bool {
	fmt.Print(question + " [y/N] ")
	var response string
	fmt.Scanln(&response)
	return response == "y" || response == "Y"
}

// openRedis connects to the configured cache, or returns nil when none is set.
func openRedis(ctx context.Context, cfg *config.Config, logger *zap.Logger) *redis.Client {
	if cfg.Storage.RedisAddr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Storage.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable; reads will fall through to the store", zap.String("addr", cfg.Storage.RedisAddr), zap.Error(err))
	} else {
		logger.Info("connected to redis", zap.String("addr", cfg.Storage.RedisAddr))
	}
	return rdb
}

// openView returns the Postgres view when a database is configured and the
// in-memory view otherwise. The returned func releases the view's resources.
func openView(ctx context.Context, cfg *config.Config, logger *zap.Logger) (indexer.View, func(), error) {
	if cfg.Index.DatabaseURL == "" {
		logger.Info("indexing into memory")
		return indexer.NewMemoryView(), func() {}, nil
	}
	pool, err := pgxpool.New(ctx, cfg.Index.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	view := indexer.NewPostgresView(pool)
	if err := view.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	logger.Info("indexing into postgres")
	return view, pool.Close, nil
}
