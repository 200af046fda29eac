package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oppa-kitchen/storefront/internal/backend"
	"github.com/oppa-kitchen/storefront/internal/cart"
	"github.com/oppa-kitchen/storefront/internal/config"
	"github.com/oppa-kitchen/storefront/internal/router"
	mongostore "github.com/oppa-kitchen/storefront/internal/storage/mongo"
	pgstore "github.com/oppa-kitchen/storefront/internal/storage/postgres"
	redisstore "github.com/oppa-kitchen/storefront/internal/storage/redis"
	"github.com/oppa-kitchen/storefront/internal/ws"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open cart storage", zap.String("store", cfg.CartStore), zap.Error(err))
	}
	defer closeRepo()

	hub := ws.NewHub(logger.Named("ws"))
	go hub.Run(ctx)

	carts := cart.NewRegistry(repo, logger.Named("cart"), router.BroadcastCartChanges(hub, logger),
		cart.WithIdleTimeout(cfg.CartIdleTimeout))
	go carts.RunEviction(ctx, time.Minute)
	api := backend.New(cfg.BackendURL, cfg.UpstreamTimeout, cfg.OrderTimeout, backend.WithLogger(logger.Named("backend")))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router.New(cfg, carts, api, hub, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr), zap.String("cart_store", cfg.CartStore))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Development() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// openRepository selects the cart snapshot backend named by CART_STORE.
func openRepository(ctx context.Context, cfg *config.Config, logger *zap.Logger) (cart.Repository, func(), error) {
	switch cfg.CartStore {
	case "memory", "":
		logger.Warn("cart snapshots kept in memory only")
		return cart.NewMemoryRepository(), func() {}, nil

	case "postgres":
		if err := pgstore.Migrate(cfg.DatabaseURL); err != nil {
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		pool, err := pgstore.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return pgstore.New(pool), pool.Close, nil

	case "redis":
		client, err := redisstore.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return redisstore.New(client, cfg.CartSessionTTL), func() { client.Close() }, nil

	case "mongo":
		client, err := mongostore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		coll := client.Database(cfg.MongoDB).Collection(mongostore.Collection)
		if err := mongostore.EnsureIndexes(ctx, coll); err != nil {
			client.Disconnect(context.Background())
			return nil, nil, fmt.Errorf("ensure indexes: %w", err)
		}
		return mongostore.New(coll), func() { client.Disconnect(context.Background()) }, nil
	}
	return nil, nil, fmt.Errorf("unknown cart store %q", cfg.CartStore)
}
