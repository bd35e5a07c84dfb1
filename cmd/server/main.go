package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/surgecart/server/internal/cache"
	"github.com/surgecart/server/internal/config"
	"github.com/surgecart/server/internal/database"
	"github.com/surgecart/server/internal/dbpool"
	"github.com/surgecart/server/internal/httpserver"
	"github.com/surgecart/server/internal/inventory"
	"github.com/surgecart/server/internal/lifecycle"
	"github.com/surgecart/server/internal/logger"
	"github.com/surgecart/server/internal/metrics"
	"github.com/surgecart/server/internal/orders"
	"github.com/surgecart/server/internal/payments"
	"github.com/surgecart/server/internal/retry"
	"github.com/surgecart/server/internal/scheduler"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "surgecart: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	appLogger := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Service:     "surgecart",
		Environment: cfg.Log.Environment,
	})

	resources := lifecycle.NewManager()
	defer func() {
		if err := resources.Close(); err != nil {
			appLogger.Error().Err(err).Msg("shutdown.cleanup_failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, sharedDB, err := buildStore(ctx, cfg, appLogger, resources)
	if err != nil {
		return err
	}

	cacheStore, err := buildCache(ctx, cfg, sharedDB, appLogger, resources)
	if err != nil {
		return err
	}

	metricsCollector := metrics.New(prometheus.DefaultRegisterer)
	retrier := retry.New(retry.Config{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay.Duration,
	}, metricsCollector)

	inventorySvc := inventory.NewService(store, cacheStore, retrier, metricsCollector, inventory.Config{
		HoldTTL:  cfg.Inventory.HoldTTL.Duration,
		StockTTL: cfg.Cache.AvailableStockTTL.Duration,
	})
	ordersSvc := orders.NewService(store, cacheStore, retrier, metricsCollector)
	paymentsSvc := payments.NewProcessor(store, cacheStore, retrier, metricsCollector)

	if cfg.Sweeper.Enabled {
		sweeper := scheduler.NewSweeper(inventorySvc, cfg.Sweeper.Interval.Duration, appLogger)
		sweeper.Start(ctx)
		resources.Register("sweeper", sweeper)
	}

	server := httpserver.New(cfg, inventorySvc, ordersSvc, paymentsSvc, metricsCollector, appLogger)

	errCh := make(chan error, 1)
	go func() {
		appLogger.Info().
			Str("address", cfg.Server.Address).
			Str("database", cfg.Database.Driver).
			Str("cache", cfg.Cache.Backend).
			Msg("server.started")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
		appLogger.Info().Msg("server.shutdown_requested")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	appLogger.Info().Msg("server.stopped")
	return nil
}

// buildStore opens the configured store. SQL drivers share one pool so the
// SQL cache backend can reuse it. The returned pool is nil for the memory
// store.
func buildStore(ctx context.Context, cfg *config.Config, appLogger zerolog.Logger, resources *lifecycle.Manager) (database.Store, *sqlx.DB, error) {
	switch cfg.Database.Driver {
	case "postgres", "mysql":
		db, err := dbpool.Open(ctx, cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		resources.Register("db-pool", db)

		store, err := database.NewSQLStoreWithDB(db)
		if err != nil {
			return nil, nil, fmt.Errorf("init store: %w", err)
		}
		resources.Register("store", store)
		return store, db, nil
	default:
		appLogger.Warn().Msg("store.memory_backend_selected")
		store := database.NewMemoryStore()
		resources.Register("store", store)
		return store, nil, nil
	}
}

// buildCache selects the cache backend and wraps it so failures degrade to
// misses instead of surfacing.
func buildCache(ctx context.Context, cfg *config.Config, sharedDB *sqlx.DB, appLogger zerolog.Logger, resources *lifecycle.Manager) (cache.Cache, error) {
	var backend cache.Cache
	switch cfg.Cache.Backend {
	case "none":
		return cache.NewNopCache(), nil
	case "memory":
		backend = cache.NewMemoryCache()
	case "postgres":
		if sharedDB == nil {
			return nil, fmt.Errorf("cache backend %q requires a SQL database", cfg.Cache.Backend)
		}
		sqlCache, err := cache.NewSQLCache(sharedDB)
		if err != nil {
			return nil, fmt.Errorf("init sql cache: %w", err)
		}
		backend = sqlCache
	case "mongodb":
		mongoCache, err := cache.NewMongoCache(ctx, cfg.Cache.MongoDBURL, cfg.Cache.MongoDBDatabase)
		if err != nil {
			return nil, fmt.Errorf("init mongodb cache: %w", err)
		}
		backend = mongoCache
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}

	wrapped := cache.NewBestEffort(backend, appLogger)
	resources.Register("cache", wrapped)
	return wrapped, nil
}
