/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the debt engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Open the store (SQLite, PostgreSQL or in-memory)
  3. Create the debt engine (checks DEFAULT_CATEGORY_ID) and API handler
  4. Configure HTTP router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port        HTTP server port (PORT, default: 8080)
  -driver      sqlite, postgres or memory (DB_DRIVER, default: sqlite)
  -db          Database path or DSN (DB_DSN, default: debts.db)
               Use ":memory:" for an in-memory SQLite database
  -log-level   logrus level (LOG_LEVEL, default: info)
  -log-format  json or text (LOG_FORMAT, default: json)

ENVIRONMENT:
  JWT_SECRET           Required. HS256 key for bearer tokens
  DEFAULT_CATEGORY_ID  Fallback category for regeneration (default: 1)
  CORS_ORIGINS         Comma-separated allowed origins

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  JWT_SECRET=dev ./server -db="./data/debts.db"

  # Run against PostgreSQL
  JWT_SECRET=dev ./server -driver=postgres -db="postgres://localhost/debts?sslmode=disable"

  # Run without persistence
  JWT_SECRET=dev ./server -driver=memory -log-format=text

SEE ALSO:
  - config/config.go: Configuration sources
  - api/server.go: Router configuration
  - store/sqlstore/sqlstore.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/debt-engine/api"
	"github.com/warp/debt-engine/config"
	"github.com/warp/debt-engine/ledger"
	memstore "github.com/warp/debt-engine/ledger/store"
	"github.com/warp/debt-engine/store/sqlstore"
)

// backend is everything the server needs from a store.
type backend interface {
	ledger.TxStore
	ledger.Registry
}

func openStore(cfg *config.Config) (backend, func() error, error) {
	if cfg.DBDriver == "memory" {
		return memstore.NewMemory(), func() error { return nil }, nil
	}
	s, err := sqlstore.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, nil, err
	}
	return s, s.Close, nil
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	log := cfg.NewLogger()

	// Initialize store
	store, closeStore, err := openStore(cfg)
	if err != nil {
		log.WithError(err).WithField("driver", cfg.DBDriver).Fatal("Failed to initialize database")
	}
	defer closeStore()

	engine := ledger.NewDebtEngine(store, log)
	engine.DefaultCategory = ledger.CategoryID(cfg.DefaultCategoryID)
	if err := engine.CheckDefaultCategory(context.Background()); err != nil {
		log.WithError(err).Fatal("DEFAULT_CATEGORY_ID does not name an active category")
	}

	handler := api.NewHandler(engine, store, log)
	router := api.NewRouter(handler, api.RouterConfig{
		JWTSecret:   cfg.JWTSecret,
		CORSOrigins: cfg.CORSOrigins,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"port":   cfg.Port,
			"driver": cfg.DBDriver,
		}).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	log.Info("Server stopped")
}
