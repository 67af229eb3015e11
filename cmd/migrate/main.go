package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"PaymentsEngine/internal/observability"
	"PaymentsEngine/internal/persistence"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: migrate <up|down>")
		fmt.Fprintln(os.Stderr, "  up   - apply all pending migrations")
		fmt.Fprintln(os.Stderr, "  down - roll back the last migration")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Environment:")
		fmt.Fprintln(os.Stderr, "  PAYMENTS_POSTGRES_DSN    - Postgres connection string (required)")
		fmt.Fprintln(os.Stderr, "  PAYMENTS_MIGRATIONS_DIR  - path to migrations directory (default: migrations)")
		os.Exit(2)
	}

	// .env is optional
	_ = godotenv.Load()

	logger := observability.NewLogger("migrate")

	dsn := os.Getenv("PAYMENTS_POSTGRES_DSN")
	if dsn == "" {
		logger.Fatal().Msg("PAYMENTS_POSTGRES_DSN is not set")
	}

	migrationsDir := os.Getenv("PAYMENTS_MIGRATIONS_DIR")
	if migrationsDir == "" {
		migrationsDir = "migrations"
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db")
	}
	defer db.Close()

	ctx := context.Background()
	migrator := persistence.NewMigrator(db, migrationsDir, logger)

	switch os.Args[1] {
	case "up":
		n, err := migrator.Up(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("migrate up")
		}
		logger.Info().Int("applied", n).Msg("all migrations applied")

	case "down":
		if _, err := migrator.Down(ctx); err != nil {
			logger.Fatal().Err(err).Msg("migrate down")
		}

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s (use 'up' or 'down')\n", os.Args[1])
		os.Exit(2)
	}
}
