/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the timber ledger server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (defaults, optional config file, environment)
  2. Build the zap logger
  3. Initialize the store (SQLite file or in-memory)
  4. Register Prometheus metrics
  5. Create API handler with domain services
  6. Start the HTTP server and the reconciliation scheduler
  7. Graceful shutdown on SIGINT/SIGTERM

CONFIGURATION:
  Viper merges, in increasing priority: built-in defaults, an optional
  config file (-config=path, YAML), and TIMBER_* environment variables.

  Keys:
    port                HTTP server port (default: 8080)
    db                  SQLite database path, empty for a pure in-memory store
    pricing_policy      "dispatched" or "delivered" (default: dispatched)
    scheduler.enabled   Periodic reconciliation on/off (default: true)
    scheduler.interval  Pass interval (default: 1h)
    log.dev             Human-readable console logs (default: false)

EXAMPLES:
  # Run with file database
  ./server -config=./configs/prod.yaml

  # Environment override
  TIMBER_DB=/tmp/demo.db TIMBER_PORT=3000 ./server

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections, drain (30s timeout)
  3. Close database connection

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/warp/timber-ledger/api"
	"github.com/warp/timber-ledger/obs"
	"github.com/warp/timber-ledger/store/memory"
	"github.com/warp/timber-ledger/store/sqlite"
	"github.com/warp/timber-ledger/timber"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := buildLogger(cfg.GetBool("log.dev"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Store selection: "" means pure in-memory (no SQLite file at all),
	// useful for demos.
	var db timber.DB
	dbPath := cfg.GetString("db")
	if dbPath == "" {
		db = memory.New()
		log.Info("using in-memory store")
	} else {
		store, err := sqlite.New(dbPath)
		if err != nil {
			log.Fatal("failed to initialize database", zap.Error(err))
		}
		defer store.Close()
		db = store
		log.Info("using sqlite store", zap.String("path", dbPath))
	}

	obs.Init()

	policy := timber.PricingPolicy(cfg.GetString("pricing_policy"))
	if !policy.Valid() {
		log.Fatal("invalid pricing_policy", zap.String("value", string(policy)))
	}

	handler := api.NewHandler(db, policy, obs.NewLogInvalidator(log), log)
	router := api.NewRouter(handler)

	scheduler := api.NewReconciliationScheduler(handler)
	scheduler.Enabled = cfg.GetBool("scheduler.enabled")
	scheduler.Interval = cfg.GetDuration("scheduler.interval")
	scheduler.Start()
	defer scheduler.Stop()

	port := cfg.GetInt("port")
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting",
			zap.Int("port", port),
			zap.String("pricing_policy", string(policy)),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("forced shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

func loadConfig(path string) (*viper.Viper, error) {
	v := viper.New()

	v.SetDefault("port", 8080)
	v.SetDefault("db", "timber.db")
	v.SetDefault("pricing_policy", string(timber.PriceDispatched))
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval", time.Hour)
	v.SetDefault("log.dev", false)

	v.SetEnvPrefix("TIMBER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func buildLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
