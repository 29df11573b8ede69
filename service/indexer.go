package service

import (
	"context"
	"errors"

	"dblog/app/client"
	"dblog/app/config"
	"dblog/app/indexer"
	"dblog/app/storage"
	"dblog/app/storage/cache"

	"go.uber.org/zap"
)

// RunIndexer follows a remote node's event log into the configured view until
// ctx is cancelled.
func RunIndexer(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if cfg.Index.DatabaseURL == "" {
		return errors.New("DBLOG_DATABASE_URL is required for a standalone indexer")
	}

	c, err := client.New(cfg.Client.RPCURL, client.WithLogger(logger.Named("rpc")))
	if err != nil {
		return err
	}
	info, err := c.ChainInfo(ctx)
	if err != nil {
		return err
	}
	logger.Info("following node",
		zap.String("rpc_url", cfg.Client.RPCURL),
		zap.Uint64("chain_id", info.ChainID),
		zap.Uint64("height", info.Height),
	)

	var store storage.ContentStore = c
	if rdb := openRedis(ctx, cfg, logger); rdb != nil {
		defer rdb.Close()
		store = cache.New(c, rdb, cfg.Storage.CacheTTL, logger.Named("cache"))
	}

	view, closeView, err := openView(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeView()

	ix := indexer.New(c, view, store, indexer.Config{
		Interval:  cfg.Index.Interval,
		BatchSize: cfg.Index.BatchSize,
	}, logger.Named("indexer"))
	return ix.Run(ctx)
}
