// Package store implements PostgreSQL-backed persistence for indicators,
// enrichments, sightings, and sources.
//
// Grounded on AditS-H-VIGILUM/backend/internal/db/repositories (repository
// shape, $n placeholders, sql.ErrNoRows translation) and on
// original_source/src/storage/mod.rs for the exact merge SQL.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/sentineltrace/threat-intel/internal/config"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store wraps a PostgreSQL connection pool.
type Store struct {
	db *sql.DB
}

// Open connects to PostgreSQL and applies the pool bounds from cfg.
func Open(cfg config.DatabaseConfig) (*Store, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)
	return &Store{db: db}, nil
}

// DB exposes the underlying pool, e.g. for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Migrate applies the embedded schema. Statements are idempotent
// (CREATE ... IF NOT EXISTS), so running it more than once is safe.
func (s *Store) Migrate(ctx context.Context) error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	for _, e := range entries {
		sqlBytes, err := migrations.ReadFile("migrations/" + e.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(sqlBytes)); err != nil {
			return fmt.Errorf("apply migration %s: %w", e.Name(), err)
		}
	}
	return nil
}
