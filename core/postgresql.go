package core

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// RunMigrations applies every pending migration found under `migrations/` in migrationsFS.
// Migrations are run using the stdlib [database/sql] driver using the pgx compatibility wrapper,
// not [pgx] directly because Goose does not support [pgx.Conn] or [pgxpool.Pool] natively.
func RunMigrations(dbUrl string, migrationsFS fs.FS) error {
	slog.Info("Running migrations...")

	dir, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("Missing migrations dir: %w", err)
	}

	db, err := sql.Open("pgx", dbUrl)
	if err != nil {
		return fmt.Errorf("sql.Open failed: %w", err)
	}
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, dir)
	if err != nil {
		return fmt.Errorf("goose.NewProvider failed: %w", err)
	}
	results, err := provider.Up(context.Background())
	if err != nil {
		return fmt.Errorf("Error running migrations: %w", err)
	}
	for _, r := range results {
		slog.Info("Migration applied", "source", r.Source.Path, "duration", r.Duration)
	}
	return nil
}
