// Package db holds the optional PostgreSQL connection used to persist error logs.
package db

import (
	"context"
	"embed"
	"fmt"

	"chimbori.dev/calshot/core"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var EmbedMigrations embed.FS

var Pool *pgxpool.Pool

// Connect runs migrations against dbUrl, then opens [Pool].
func Connect(ctx context.Context, dbUrl string) error {
	// Run migrations using [database/sql] before connecting to the DB using [pgxpool.Pool].
	if err := core.RunMigrations(dbUrl, EmbedMigrations); err != nil {
		return fmt.Errorf("Error running migrations: %w", err)
	}
	pool, err := pgxpool.New(ctx, dbUrl)
	if err != nil {
		return fmt.Errorf("Unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("Unable to reach database: %w", err)
	}
	Pool = pool
	return nil
}

// Close closes [Pool], if open.
func Close() {
	if Pool != nil {
		Pool.Close()
		Pool = nil
	}
}
