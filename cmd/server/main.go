/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the attendance engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration from environment
  2. Configure logging (zerolog)
  3. Initialize SQLite store
  4. Wire domain services (resolver, engine, ledger, workflow)
  5. Start the maintenance sweeper
  6. Start HTTP server with graceful shutdown

CONFIGURATION (environment variables, see config/config.go):
  SERVER_PORT          HTTP server port (default: 8080)
  DB_PATH              SQLite database path (default: ./data/attendance.db)
                       Use ":memory:" for an in-memory database
  LOG_PRETTY           Human-readable console logging (default: false)
  LOG_LEVEL            zerolog level (default: info)
  SWEEP_INTERVAL       Maintenance sweep interval (default: 1h)
  AUTO_APPROVE_DELTAS  Post session deltas as approved (default: true)
  MAX_POSITIVE_BALANCE Default bank cap in minutes (default: 2400)
  MAX_NEGATIVE_BALANCE Default bank cap in minutes (default: 1200)
  HIGH_IMPACT_MINUTES  Second-approver threshold (default: 120)
  APPROVER_ROLES       "emp-1:supervisor,emp-2:hr_manager"

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the sweeper
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/chronon/attendance-engine/api"
	"github.com/chronon/attendance-engine/config"
	"github.com/chronon/attendance-engine/core"
	"github.com/chronon/attendance-engine/editflow"
	"github.com/chronon/attendance-engine/hourbank"
	"github.com/chronon/attendance-engine/schedule"
	"github.com/chronon/attendance-engine/session"
	"github.com/chronon/attendance-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("loading configuration")
	}

	log := newLogger(cfg)

	// Store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("initializing database")
	}
	defer store.Close()

	// Domain services
	locks := core.NewEmployeeLocker()
	resolver := schedule.NewResolver(store)

	ledger := hourbank.NewLedger(store, store, locks, log)
	ledger.DefaultMaxPositive = core.NewMinutes(cfg.MaxPositiveBalance)
	ledger.DefaultMaxNegative = core.NewMinutes(cfg.MaxNegativeBalance)

	engine := session.NewEngine(store, resolver, ledger, locks, log)
	engine.AutoApprove = cfg.AutoApproveDeltas

	roles := core.StaticRoleResolver{}
	for id, role := range cfg.RoleMap() {
		roles[core.EmployeeID(id)] = role
	}
	workflow := editflow.NewWorkflow(store, store, roles,
		editflow.DefaultChainPolicy{HighImpactMinutes: cfg.HighImpactMinutes},
		editflow.NewMaterializer(store), ledger, locks, log)

	// HTTP layer
	handler := api.NewHandler(engine, ledger, workflow, store, log)
	router := api.NewRouter(handler)

	sweeper := api.NewSweeper(engine, ledger, cfg.SweepInterval, log)
	sweeper.Start()
	defer sweeper.Stop()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var log zerolog.Logger
	if cfg.LogPretty {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		log = zerolog.New(os.Stderr)
	}
	return log.Level(level).With().Timestamp().Logger()
}
