/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the pallet ledger server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (environment, .env), then command-line flags
  2. Build the logger
  3. Initialize SQLite store
  4. Pick the rate provider: RATES_FILE when set, else the store
  5. Wire engine, service, metrics and scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides PORT)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  # Run with file database
  ./server -db="./data/pallets.db"

  # Tariff from a YAML file, reloaded on change
  RATES_FILE=./rates.yaml ./server

SEE ALSO:
  - config/config.go: Environment keys
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/warp/pallet-ledger/api"
	"github.com/warp/pallet-ledger/config"
	"github.com/warp/pallet-ledger/generic"
	"github.com/warp/pallet-ledger/obs"
	"github.com/warp/pallet-ledger/pallet"
	"github.com/warp/pallet-ledger/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// Flags
	port := flag.String("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Parse()
	cfg.Port = *port
	cfg.DBPath = *dbPath

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel)

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Str("db", cfg.DBPath).Msg("failed to initialize database")
	}
	defer store.Close()

	var rates pallet.RateProvider = store
	if cfg.RatesFile != "" {
		fileRates, err := config.NewFileRates(cfg.RatesFile, logger)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.RatesFile).Msg("failed to load rates file")
		}
		rates = fileRates
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := obs.NewHTTPMetrics(cfg.MetricsNamespace, reg)
	ledgerMetrics := obs.NewLedgerMetrics(cfg.MetricsNamespace, reg)

	// Engine and service
	engine := pallet.NewEngine(generic.SystemClock{}, logger.With().Str("component", "engine").Logger())
	service := pallet.NewService(store, rates, engine)
	service.Observer = ledgerMetrics

	handler := api.NewHandler(store, service, logger)
	router := api.NewRouter(handler, api.RouterConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         logger,
		HTTPMetrics:    httpMetrics,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	scheduler := api.NewStockScheduler(service, ledgerMetrics, cfg.RefreshInterval, logger.With().Str("component", "scheduler").Logger())
	scheduler.Start()

	// Create server
	server := &http.Server{
		Addr:         cfg.HTTPAddr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().Str("addr", server.Addr).Str("db", cfg.DBPath).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	logger.Info().Msg("server stopped")
}
