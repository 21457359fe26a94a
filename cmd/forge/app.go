package main

import (
	"context"
	"fmt"

	"github.com/rohankatakam/assetforge/internal/cache"
	"github.com/rohankatakam/assetforge/internal/config"
	"github.com/rohankatakam/assetforge/internal/genesis"
	"github.com/rohankatakam/assetforge/internal/linking"
	"github.com/rohankatakam/assetforge/internal/pinterest"
	"github.com/rohankatakam/assetforge/internal/reconcile"
	"github.com/rohankatakam/assetforge/internal/sales"
	"github.com/rohankatakam/assetforge/internal/scoring"
	"github.com/rohankatakam/assetforge/internal/settings"
	"github.com/rohankatakam/assetforge/internal/storage"
	"github.com/rohankatakam/assetforge/internal/trafficsync"
)

// app holds every wired component a command may need
type app struct {
	store      *storage.SQLStore
	settings   *settings.Accessor
	reconciler *reconcile.Orchestrator
	linker     *linking.Workflow
	spawner    *genesis.Spawner
	ledger     *sales.Ledger

	redis      *cache.Client           // nil without cache.redis_addr
	checkpoint *trafficsync.Checkpoint // nil when only storage was requested
	syncer     *trafficsync.Syncer
}

func openStore(ctx context.Context) (*storage.SQLStore, error) {
	var (
		store *storage.SQLStore
		err   error
	)
	switch cfg.Storage.Type {
	case "postgres":
		store, err = storage.NewPostgresStore(cfg.Storage.PostgresDSN, cfg.Storage.MaxOpenConns, logger)
	case "sqlite":
		store, err = storage.NewSQLiteStore(cfg.Storage.LocalPath, logger)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", cfg.Storage.Type)
	}
	if err != nil {
		return nil, err
	}

	if err := store.Ping(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}
	return store, nil
}

// buildApp validates cfg for vctx and wires the components.
// withSync also connects Redis, opens the checkpoint and builds the syncer.
func buildApp(ctx context.Context, vctx config.ValidationContext, withSync bool) (*app, error) {
	result := cfg.Validate(vctx)
	for _, w := range result.Warnings {
		logger.Warn(w)
	}
	if result.HasErrors() {
		return nil, fmt.Errorf("%s", result.Error())
	}

	store, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}

	a := &app{store: store}
	a.settings = settings.NewAccessor(store, cfg.Cache.SettingsTTL, logger)
	a.reconciler = reconcile.NewOrchestrator(store, scoring.NewKernel(a.settings, logger), logger, reconcile.Options{
		MaxAttempts: cfg.Sync.MaxReconcileAttempts,
		Workers:     cfg.Sync.BulkWorkers,
		TimeBudget:  cfg.Sync.BulkTimeBudget,
	})
	a.linker = linking.NewWorkflow(store, a.settings, a.reconciler, logger)
	a.spawner = genesis.NewSpawner(store, logger)
	a.ledger = sales.NewLedger(store, a.reconciler, logger)

	if !withSync {
		return a, nil
	}

	if cfg.Cache.RedisAddr != "" {
		a.redis, err = cache.NewClient(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
	} else {
		logger.Warn("cache.redis_addr not set; sync runs are not guarded against overlap")
	}

	if cfg.Sync.CheckpointPath != "" {
		a.checkpoint, err = trafficsync.OpenCheckpoint(cfg.Sync.CheckpointPath)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	var pins trafficsync.PinSource
	if cfg.Pinterest.AccessToken != "" {
		pins = pinterest.NewClient(pinterest.Config{
			BaseURL:     cfg.Pinterest.BaseURL,
			AccessToken: cfg.Pinterest.AccessToken,
			RateLimit:   cfg.Pinterest.RateLimit,
		}, logger)
	}

	a.syncer = trafficsync.NewSyncer(store, pins, a.reconciler, a.redis, a.checkpoint, logger, trafficsync.Options{
		PageSize:          cfg.Pinterest.PageSize,
		MaxPages:          cfg.Pinterest.MaxPages,
		TopPinsWindowDays: cfg.Pinterest.TopPinsWindowDays,
		TopPinsLimit:      cfg.Pinterest.TopPinsLimit,
		LeaseTTL:          cfg.Cache.LeaseTTL,
	})
	return a, nil
}

// Close releases every open resource
func (a *app) Close() {
	if a.checkpoint != nil {
		if err := a.checkpoint.Close(); err != nil {
			logger.WithError(err).Warn("failed to close sync checkpoint")
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.WithError(err).Warn("failed to close redis client")
		}
	}
	if err := a.store.Close(); err != nil {
		logger.WithError(err).Warn("failed to close store")
	}
}
