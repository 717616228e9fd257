// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

// Package main is the entry point for the Caliper server.
//
// Caliper is a self-hosted computerized adaptive testing engine. It
// serves calibrated items one at a time, re-estimates the student's
// ability after every answer, and stops when the measurement is precise
// enough or the session hits its item budget.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: load settings from defaults, config file, and environment (Koanf v2)
//  2. Database: open DuckDB and run schema migrations
//  3. Catalogue: per-subject item bank snapshots with a TTL cache
//  4. Event bus: in-process Watermill pub/sub for session events
//  5. Journal: BadgerDB append-only event trail (optional)
//  6. Live feed: WebSocket hub for real-time session watching (optional)
//  7. HTTP API: chi router with REST endpoints and Prometheus metrics
//  8. Supervisor: suture tree owning every long-running component
//
// Everything that runs is a child of the supervisor tree. A crashing
// component restarts in isolation; the tree only comes down on SIGINT
// or SIGTERM.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (CALIPER_ prefix)
//   - Config file (config.yaml, or CALIPER_CONFIG_PATH)
//   - Built-in defaults
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM:
//   - Stops accepting new connections
//   - Waits for in-flight requests to complete (10s timeout)
//   - Closes the event bus, journal, and database
//
// # Example Usage
//
// Development with the demo item bank and no persistence:
//
//	export CALIPER_DUCKDB_PATH=:memory:
//	export CALIPER_SEED_DEMO_BANK=true
//	export CALIPER_JOURNAL_ENABLED=false
//	./caliper
//
// Production with persistent storage:
//
//	export CALIPER_DUCKDB_PATH=/data/caliper.duckdb
//	export CALIPER_JOURNAL_PATH=/data/journal
//	export CALIPER_CORS_ORIGINS=https://testing.example.edu
//	./caliper
//
// # Port 1968
//
// The default port 1968 references the year Birnbaum's three-parameter
// logistic model appeared in Lord and Novick's Statistical Theories of
// Mental Test Scores, the model behind every ability estimate Caliper
// produces.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opencaliper/caliper/internal/api"
	"github.com/opencaliper/caliper/internal/catalog"
	"github.com/opencaliper/caliper/internal/config"
	"github.com/opencaliper/caliper/internal/database"
	"github.com/opencaliper/caliper/internal/events"
	"github.com/opencaliper/caliper/internal/importer"
	"github.com/opencaliper/caliper/internal/journal"
	"github.com/opencaliper/caliper/internal/logging"
	"github.com/opencaliper/caliper/internal/rules"
	"github.com/opencaliper/caliper/internal/selector"
	"github.com/opencaliper/caliper/internal/session"
	"github.com/opencaliper/caliper/internal/supervisor"
	"github.com/opencaliper/caliper/internal/supervisor/services"
	ws "github.com/opencaliper/caliper/internal/websocket"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Msg("Starting Caliper with supervisor tree")
	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("environment", cfg.Server.Environment).
		Bool("journal_enabled", cfg.Journal.Enabled).
		Bool("live_feed_enabled", cfg.WebSocket.Enabled).
		Msg("Configuration loaded")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Str("path", db.Path()).Msg("Database initialized successfully")

	// Seed the demo item bank if enabled (for demos and screenshot tests)
	if cfg.Database.SeedMockData {
		logging.Info().Msg("Demo bank seeding enabled (CALIPER_SEED_DEMO_BANK=true)")
		if err := db.Seed(context.Background()); err != nil {
			// Close database before fatal exit so the defer runs
			if closeErr := db.Close(); closeErr != nil {
				logging.Error().Err(closeErr).Msg("Error closing database")
			}
			logging.Fatal().Err(err).Msg("Failed to seed demo bank")
		}
	}

	cat := catalog.NewManager(catalog.ManagerConfig{
		Enabled:            cfg.Cache.Enabled,
		TTL:                cfg.Cache.TTL,
		RefreshConcurrency: cfg.Cache.RefreshConcurrency,
	}, db, logging.With().Str("component", "catalog").Logger())

	bus := events.NewBus(&cfg.Events)
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()

	var jrn *journal.Journal
	if cfg.Journal.Enabled {
		jrn, err = journal.Open(cfg.Journal)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to open event journal")
		}
		defer func() {
			if err := jrn.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing journal")
			}
		}()
	} else {
		logging.Info().Msg("Event journal disabled (CALIPER_JOURNAL_ENABLED=false)")
	}

	var hub *ws.Hub
	if cfg.WebSocket.Enabled {
		hub = ws.NewHub(cfg.WebSocket)
	} else {
		logging.Info().Msg("Live feed disabled (CALIPER_WS_ENABLED=false)")
	}

	// Seed zero means tie-breaks come from the clock; a fixed seed
	// makes item selection reproducible across restarts.
	sel := selector.New()
	if seed := cfg.Engine.Selector.Seed; seed != 0 {
		sel = selector.NewSeeded(seed)
		logging.Info().Int64("seed", seed).Msg("Selector running with a fixed seed")
	}

	ctrl := session.NewController(db, cat, rules.NewEvaluator(db), sel, bus, cfg.Engine)
	imp := importer.New(db, cat, cfg.Import)

	handler := api.NewHandler(db, ctrl, imp, cat, jrn, hub, cfg)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// sutureslog expects slog; the adapter routes it back into zerolog
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	// Storage layer: background maintenance over DuckDB and Badger
	if jrn != nil {
		tree.AddStorageService(services.NewJournalGCService(jrn, cfg.Journal.GCInterval))
	}
	if cfg.Cache.Enabled {
		tree.AddStorageService(services.NewCatalogRefreshService(cat, cfg.Cache.RefreshInterval))
	}

	// Events layer: the hub plus the router draining the bus into the
	// journal and the live feed. Sinks stay nil interfaces when the
	// component is disabled; a typed nil would defeat the router's
	// nil checks.
	var routerJournal services.JournalAppender
	if jrn != nil {
		routerJournal = jrn
	}
	var routerFeed services.FeedBroadcaster
	if hub != nil {
		routerFeed = hub
		tree.AddEventsService(services.NewLiveFeedService(hub))
	}
	tree.AddEventsService(services.NewEventRouterService(bus, routerJournal, routerFeed))

	// API layer
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Drain the error channel; it closes when the supervisor finishes
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Caliper stopped gracefully")
}
