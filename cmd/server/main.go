/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the lead CRM payout server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env file, then environment)
  2. Apply command-line flag overrides
  3. Open the database (SQLite or PostgreSQL) and migrate
  4. Create API handler and router
  5. Start server with graceful shutdown

ENVIRONMENT:
  PORT               HTTP server port (default: 8080)
  DATABASE_DRIVER    sqlite3 or postgres (default: sqlite3)
  DATABASE_URL       SQLite path or Postgres DSN (default: leadcrm.db)
  CORS_ORIGINS       Comma-separated allowed origins
  SHUTDOWN_TIMEOUT   Graceful shutdown timeout (default: 30s)

COMMAND-LINE FLAGS (override the environment):
  -port    HTTP server port
  -db      Database path or DSN. Use ":memory:" for an in-memory SQLite database
  -driver  sqlite3 or postgres
  -env     Path to an optional .env file (default: .env)

EXAMPLES:
  # Run with file database
  ./server -db="./data/leadcrm.db"

  # Run against PostgreSQL
  ./server -driver=postgres -db="postgres://crm@localhost/crm?sslmode=disable"

SEE ALSO:
  - config/config.go: Environment configuration
  - api/server.go: Router configuration
  - store/sqldb/sqldb.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/leadcrm/api"
	"github.com/warp/leadcrm/config"
	"github.com/warp/leadcrm/store/sqldb"
)

func main() {
	// Flags
	envFile := flag.String("env", ".env", "Optional .env file")
	port := flag.Int("port", 0, "HTTP server port (overrides PORT)")
	dbURL := flag.String("db", "", "Database path or DSN (overrides DATABASE_URL)")
	driver := flag.String("driver", "", "sqlite3 or postgres (overrides DATABASE_DRIVER)")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *dbURL != "" {
		cfg.DatabaseURL = *dbURL
	}
	if *driver != "" {
		cfg.DatabaseDriver = *driver
	}

	// Initialize store
	store, err := sqldb.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Initialize handler and router
	handler := api.NewHandler(store)
	router := api.NewRouter(handler, cfg.CORSOrigins)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("[Server] Starting on http://localhost:%d (%s)", cfg.Port, cfg.DatabaseDriver)
		log.Printf("[Server] API available at http://localhost:%d/api", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[Server] Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("[Server] Stopped")
}
