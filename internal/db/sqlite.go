// Package db bootstraps the local SQLite database shared by the catalog,
// the semantic index and the keyword index.
package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

// Open opens the database at path (":memory:" for tests) with WAL journaling
// and a single-writer connection pool, then applies migrations.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	// SQLite benefits from a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return db, nil
}

// Migrate creates the catalog and semantic-index tables. The keyword FTS
// table is managed by the keyword index itself (it is rebuilt on reindex
// and may be absent when FTS5 is unavailable).
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS listings (
			id              INTEGER PRIMARY KEY,
			category        TEXT    NOT NULL,
			location        TEXT    NOT NULL,
			region          TEXT    NOT NULL DEFAULT '',
			country         TEXT    NOT NULL DEFAULT 'CZ',
			area_sqm        INTEGER NOT NULL,
			price_per_sqm   INTEGER NOT NULL,
			availability    TEXT    NOT NULL,
			parking_spaces  INTEGER NOT NULL DEFAULT 0,
			amenities       TEXT    NOT NULL DEFAULT '[]',
			hot             INTEGER NOT NULL DEFAULT 0,
			featured        INTEGER NOT NULL DEFAULT 0,
			priority_score  INTEGER NOT NULL DEFAULT 0,
			commission_rate REAL    NOT NULL DEFAULT 0,
			description     TEXT    NOT NULL DEFAULT '',
			highway_access  TEXT    NOT NULL DEFAULT '',
			transport_notes TEXT    NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS listing_vectors (
			listing_id     INTEGER PRIMARY KEY,
			vector         BLOB    NOT NULL,
			category       TEXT    NOT NULL,
			location       TEXT    NOT NULL,
			region         TEXT    NOT NULL,
			country        TEXT    NOT NULL,
			area_sqm       INTEGER NOT NULL,
			price_per_sqm  INTEGER NOT NULL,
			monthly_rent   INTEGER NOT NULL,
			available_now  INTEGER NOT NULL,
			priority_score INTEGER NOT NULL,
			hot            INTEGER NOT NULL,
			featured       INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_listings_category ON listings(category)`,
		`CREATE INDEX IF NOT EXISTS idx_vectors_category ON listing_vectors(category)`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// HasFTS5 probes whether this build of SQLite supports the FTS5 module.
func HasFTS5(ctx context.Context, db *sql.DB) bool {
	if _, err := db.ExecContext(ctx, "CREATE VIRTUAL TABLE IF NOT EXISTS fts5_probe USING fts5(x)"); err != nil {
		return false
	}
	_, _ = db.ExecContext(ctx, "DROP TABLE IF EXISTS fts5_probe")
	return true
}
