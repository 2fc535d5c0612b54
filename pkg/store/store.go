// Package store implements the repair agent's Postgres persistence
// layer (spec.md §6): AgentRun/ErrorFact/FileModification/
// ReliabilityEvent/FixTrajectory, plus a durable backing for
// pkg/reflection's learned failure/success patterns. Grounded on the
// teacher's pkg/database/client.go — embedded golang-migrate migrations
// applied on startup against a stdlib *sql.DB opened with the pgx
// driver — but without the teacher's Ent layer: Ent's generated client
// requires a code-generation step this exercise cannot run, so queries
// here are plain SQL issued directly through jackc/pgx/v5's connection
// pool (see DESIGN.md for the full justification).
package store

import (
	"context"
	stdsql "database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver, used only to drive migrations
)

//go:embed migrations
var migrationsFS embed.FS

// Store wraps a pgx connection pool. All repository methods live in
// sibling files, grouped by entity.
type Store struct {
	pool *pgxpool.Pool
}

// New opens a connection pool against dsn and applies any pending
// migrations before returning, mirroring the teacher's NewClient.
func New(ctx context.Context, dsn string) (*Store, error) {
	if err := runMigrations(dsn); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping verifies the connection pool can still reach Postgres, for the
// API's health check.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// runMigrations opens a short-lived database/sql connection solely to
// drive golang-migrate, then closes it — the app's own queries go
// through the pgxpool.Pool constructed in New, exactly the separation
// the teacher's runMigrations draws between the migration driver and
// the long-lived Ent client.
func runMigrations(dsn string) error {
	db, err := stdsql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("opening migration connection: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("creating postgres migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}
	defer source.Close()

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("creating migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}
