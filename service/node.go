package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"time"

	"dblog/app/chain"
	"dblog/app/config"
	"dblog/app/indexer"
	"dblog/app/repositories"
	"dblog/app/routes"
	"dblog/app/services"
	"dblog/app/storage/factory"
	"dblog/app/wallet"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// networks returns the known networks with the configured one taking precedence.
func networks(cfg *config.Config) []wallet.Network {
	return append(wallet.DefaultNetworks(), cfg.Network())
}

// loadServerWallet unlocks the wallet with the configured key file. Without a
// key file the wallet stays locked and the blog API rejects writes.
func loadServerWallet(cfg *config.Config, dial wallet.Dialer, logger *zap.Logger) (*wallet.Wallet, error) {
	key, err := wallet.LoadKeyFile(cfg.Client.KeyFile)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("no key file; blog writes are disabled", zap.String("path", cfg.Client.KeyFile))
		key = nil
	} else if err != nil {
		return nil, err
	}

	w := wallet.New(key, dial, networks(cfg), logger)
	if err := w.SwitchNetwork(cfg.ChainID()); err != nil {
		return nil, err
	}
	if addr, ok := w.CurrentAddress(); ok {
		logger.Info("wallet unlocked", zap.String("address", string(addr)))
	}
	return w, nil
}

// RunNode serves the node RPC, the blog API and an in-process indexer until ctx
// is cancelled. If ready is non-nil it receives the listening address.
func RunNode(ctx context.Context, cfg *config.Config, logger *zap.Logger, ready chan<- string) error {
	db, err := repositories.OpenDB(cfg.Node.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	registry, err := repositories.NewBadgerRegistry(db, cfg.BlogName)
	if err != nil {
		return err
	}
	node, err := chain.NewNode(db, registry, chain.Config{
		ChainID:       cfg.ChainID(),
		BlockInterval: cfg.Node.BlockInterval,
		MaxBlockTxs:   cfg.Node.MaxBlockTxs,
		MempoolSize:   cfg.Node.MempoolSize,
	}, logger.Named("node"))
	if err != nil {
		return err
	}

	rdb := openRedis(ctx, cfg, logger)
	if rdb != nil {
		defer rdb.Close()
	}
	store, err := factory.Open(ctx, cfg.Storage.URL, factory.Options{
		DB:              db,
		Redis:           rdb,
		CacheTTL:        cfg.Storage.CacheTTL,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		Logger:          logger.Named("store"),
	})
	if err != nil {
		return err
	}

	w, err := loadServerWallet(cfg, wallet.FixedBackend(node), logger.Named("wallet"))
	if err != nil {
		return err
	}
	posts := services.NewPostService(w, registry, store, services.Config{
		ConfirmTimeout: cfg.Client.ConfirmTimeout,
		GatewayURL:     cfg.Client.GatewayURL,
		ValidateBodies: cfg.Client.ValidateBodies,
	}, logger.Named("posts"))

	view, closeView, err := openView(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeView()
	ix := indexer.New(registry, view, store, indexer.Config{
		Interval:  cfg.Index.Interval,
		BatchSize: cfg.Index.BatchSize,
	}, logger.Named("indexer"))

	srv := &http.Server{
		Handler: routes.SetupRoutes(routes.Dependencies{
			Node:       node,
			Store:      store,
			Posts:      posts,
			View:       view,
			GatewayURL: cfg.Client.GatewayURL,
			Logger:     logger.Named("http"),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	ln, err := net.Listen("tcp", cfg.Node.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Node.ListenAddr, err)
	}
	logger.Info("node listening",
		zap.String("addr", ln.Addr().String()),
		zap.Uint64("chain_id", node.ChainID()),
		zap.String("blog", registry.Name()),
	)
	if ready != nil {
		ready <- ln.Addr().String()
	}

	g, gctx := errgroup.WithContext(ctx)
	// requests see the shutdown so long polls end promptly
	srv.BaseContext = func(net.Listener) context.Context { return gctx }
	g.Go(func() error { return node.Run(gctx) })
	g.Go(func() error { return ix.Run(gctx) })
	g.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
