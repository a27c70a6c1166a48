// Package main is the entry point for the bookshelf API server.
// It wires together configuration, the database connection, and the HTTP router.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	"github.com/aoideee/bookshelf/internal/data"

	_ "github.com/lib/pq"  // Register the PostgreSQL driver with database/sql.
	_ "modernc.org/sqlite" // Register the embedded SQLite driver with database/sql.
)

// appVersion is the current version of the API, shown in logs.
const appVersion = "1.0.0"

// applicationDependencies bundles every shared resource that HTTP handlers need.
// A pointer to this struct is passed as the receiver on all handler and route methods.
type applicationDependencies struct {
	config serverConfig // Server configuration loaded from flags and environment
	logger *slog.Logger // Structured logger that writes to stdout
	models data.Models  // Database model layer for all tables
	// stop is closed by serve on shutdown to end background goroutines.
	stop chan struct{}
}

// main is the application entry point.
// It loads configuration, opens the database, wires up dependencies, and starts the HTTP server.
func main() {
	// A missing .env file is normal outside development.
	_ = godotenv.Load()

	settings, err := loadConfig(os.Args[1:], os.Getenv)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(settings)

	db, err := openDB(settings)
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
	defer db.Close() // Close the pool cleanly when main() returns.

	if err := data.EnsureSchema(db); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}

	logger.Info("database ready", "driver", db.DriverName(), "version", appVersion)

	// The model layer is built once here and handed to the router.
	appInstance := &applicationDependencies{
		config: settings,
		logger: logger,
		models: data.NewModels(db),
		stop:   make(chan struct{}),
	}

	if err := appInstance.serve(); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}

// newLogger creates a structured logger that writes human-readable text to
// stdout, at DEBUG level when debug mode is on.
func newLogger(settings serverConfig) *slog.Logger {
	level := slog.LevelInfo
	if settings.debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// openDB opens the database named by the configured DSN, then pings it with
// a 5-second timeout to confirm it is reachable. SQLite creates the file on
// first use.
func openDB(settings serverConfig) (*sqlx.DB, error) {
	driver, source := data.ResolveDSN(settings.db.dsn)

	// sqlx.Open only validates the arguments; it does not actually connect yet.
	db, err := sqlx.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// PingContext performs a real round-trip to verify the database is reachable.
	err = db.PingContext(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s database: %w", driver, err)
	}

	return db, nil
}
