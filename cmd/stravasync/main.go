// Stravasync - Incremental Strava Activity Sync
// Copyright 2026 Felix V. (fvanoost)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fvanoost/stravasync

// Package main is the stravasync command.
//
// stravasync keeps a local dataset of Strava activities up to date. Each
// run fetches everything newer than the most recent stored activity,
// hydrates each new record with a detail call, and appends the result to
// a line-delimited JSON file. OAuth tokens are stored on disk and
// refreshed automatically; the first run walks through the interactive
// authorization flow.
//
// By default a single sync runs and the process exits. With
// sync.interval configured (SYNC_INTERVAL), stravasync stays resident,
// re-syncing on the interval and serving /healthz, /status, and
// /metrics on the configured HTTP port.
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables, config file (stravasync.yaml),
// built-in defaults. At minimum the API application credentials are
// required:
//
//	export STRAVA_CLIENT_ID=12345
//	export STRAVA_CLIENT_SECRET=your-client-secret
//	./stravasync
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fvanoost/stravasync/internal/api"
	"github.com/fvanoost/stravasync/internal/auth"
	"github.com/fvanoost/stravasync/internal/cache"
	"github.com/fvanoost/stravasync/internal/config"
	"github.com/fvanoost/stravasync/internal/credentials"
	"github.com/fvanoost/stravasync/internal/logging"
	"github.com/fvanoost/stravasync/internal/store"
	"github.com/fvanoost/stravasync/internal/strava"
	"github.com/fvanoost/stravasync/internal/supervisor"
	"github.com/fvanoost/stravasync/internal/sync"
)

var version = "dev"

func main() {
	var (
		configPath  = flag.String("config", "", "path to config file")
		dataFile    = flag.String("data-file", "", "override activity dataset path")
		tokensFile  = flag.String("tokens-file", "", "override token store path")
		refresh     = flag.Bool("refresh", false, "discard the stored dataset and rebuild from scratch")
		once        = flag.Bool("once", false, "run a single sync and exit even when an interval is configured")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("stravasync " + version)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *dataFile != "" {
		cfg.Storage.DataFile = *dataFile
	}
	if *tokensFile != "" {
		cfg.Storage.TokensFile = *tokensFile
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("version", version).
		Str("data_file", cfg.Storage.DataFile).
		Str("tokens_file", cfg.Storage.TokensFile).
		Msg("Starting stravasync")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tokenStore := credentials.NewStore(cfg.Storage.TokensFile)
	authMgr := auth.NewManager(cfg.Strava, tokenStore)
	client := strava.NewBreakerClient(cfg.Strava, cfg.Sync.Cooldown, authMgr)
	datasetStore := store.NewDatasetStore(cfg.Storage.DataFile)

	var detailCache sync.DetailCache
	if cfg.Storage.CacheDir != "" {
		dc, err := cache.OpenDetailCache(cfg.Storage.CacheDir)
		if err != nil {
			logging.Warn().Err(err).Str("dir", cfg.Storage.CacheDir).Msg("Detail cache unavailable, continuing without it")
		} else {
			defer dc.Close()
			detailCache = dc
		}
	}

	engine := sync.NewManager(cfg.Sync, client, datasetStore, detailCache)

	if *once || cfg.Sync.Interval <= 0 {
		runOnce(ctx, engine, *refresh)
		return
	}
	runDaemon(ctx, cfg, engine, *refresh)
}

// runOnce performs a single sync and exits non-zero on failure.
func runOnce(ctx context.Context, engine *sync.Manager, refresh bool) {
	dataset, report, err := engine.Sync(ctx, refresh)
	if err != nil {
		logging.Error().Err(err).Int("activities", dataset.Len()).Msg("Sync failed")
		os.Exit(1)
	}
	if report.Partial {
		logging.Warn().Int("activities", dataset.Len()).Msg("Sync ended early, progress kept")
		return
	}
	logging.Info().Int("activities", dataset.Len()).Msg("Sync complete")
}

// runDaemon keeps the process resident: the sync loop and the HTTP
// surface run under a supervision tree until a shutdown signal.
func runDaemon(ctx context.Context, cfg *config.Config, engine *sync.Manager, refresh bool) {
	server := api.NewServer(cfg.Server)

	// An initial refresh run happens before the steady loop starts, so
	// -refresh composes with interval mode.
	if refresh {
		_, report, err := engine.Sync(ctx, true)
		server.SetReport(report, err)
		if err != nil {
			logging.Error().Err(err).Msg("Initial refresh sync failed")
		}
	}

	tree := supervisor.NewTree()
	tree.Add(supervisor.NewSyncService(engine, server, cfg.Sync.Interval))
	tree.Add(supervisor.NewHTTPService(server.Serve))

	logging.Info().Dur("interval", cfg.Sync.Interval).Msg("Entering daemon mode")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Fatal().Err(err).Msg("Supervisor tree failed")
	}
	logging.Info().Msg("Shutdown complete")
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}
