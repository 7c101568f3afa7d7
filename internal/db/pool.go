// Package db holds the PostgreSQL layer: the shared connection pool, the
// persistent price cache and the invoice archive. The service degrades
// gracefully without it; everything here is optional at runtime.
package db

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Pool is the global database connection pool
var Pool *pgxpool.Pool

// Init initializes the database connection pool from DATABASE_URL or the
// individual DB_* variables. Returning an error is not fatal to the
// service: callers run without persistence when no database is around.
func Init() error {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		host := os.Getenv("DB_HOST")
		port := os.Getenv("DB_PORT")
		user := os.Getenv("DB_USER")
		password := os.Getenv("DB_PASSWORD")
		dbname := os.Getenv("DB_NAME")

		if host != "" && user != "" && dbname != "" {
			if port == "" {
				port = "5432"
			}
			databaseURL = fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=disable",
				user, password, host, port, dbname)
		} else {
			log.Info().Msg("no database configuration found, running without persistence")
			return fmt.Errorf("no database configuration")
		}
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Connection pool settings optimized for PgBouncer
	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 1 * time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	Pool = pool
	log.Info().Msg("database connection pool initialized")
	return nil
}

// EnsureSchema creates the tables the service needs. Idempotent.
func EnsureSchema(ctx context.Context) error {
	if Pool == nil {
		return fmt.Errorf("database not initialized")
	}
	statements := []string{
		`CREATE TABLE IF NOT EXISTS price_cache (
			key        text PRIMARY KEY,
			value      jsonb NOT NULL,
			updated_at timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS invoices (
			id             text PRIMARY KEY,
			cups           text NOT NULL DEFAULT '',
			provider       text NOT NULL DEFAULT '',
			tariff         text NOT NULL DEFAULT '',
			period_from    text NOT NULL DEFAULT '',
			period_to      text NOT NULL DEFAULT '',
			total_kwh      numeric,
			amount_due_eur numeric,
			data           jsonb NOT NULL,
			created_at     timestamptz NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range statements {
		if _, err := Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensuring schema: %w", err)
		}
	}
	return nil
}

// Close closes the database connection pool
func Close() {
	if Pool != nil {
		Pool.Close()
		log.Info().Msg("database connection pool closed")
	}
}

// Ping verifies the pool is alive. Used by the health endpoint.
func Ping(ctx context.Context) error {
	if Pool == nil {
		return fmt.Errorf("database not initialized")
	}
	return Pool.Ping(ctx)
}
