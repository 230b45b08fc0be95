// Package db manages the SQLite database connection and schema migrations.
// It exposes a Database struct that wraps *sql.DB and is passed via
// dependency injection to any layer that needs database access.
package db

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	// The underscore import registers the go-sqlite3 driver with
	// database/sql via its init() side effect; the package is never
	// referenced directly.
	_ "github.com/mattn/go-sqlite3"
)

// Database wraps *sql.DB rather than embedding it, so only the methods
// defined in this package are exposed to callers. If the underlying
// driver ever changes, only this package changes.
type Database struct {
	conn   *sql.DB
	logger *slog.Logger
}

func (d *Database) migrate() error {
	_, err := d.conn.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema migration: %w", err)
	}
	return nil
}

// schema is the SQL DDL for the services and deployments tables. It uses
// IF NOT EXISTS so it is safe to run on every startup. This is a minimal
// migration strategy appropriate for a single-node worker; a multi-version
// deployment would use a proper migration library instead.
const schema = `
CREATE TABLE IF NOT EXISTS services (
    id               TEXT PRIMARY KEY,
    name             TEXT NOT NULL,
    type             TEXT NOT NULL,
    status           TEXT NOT NULL,
    environment_id   TEXT NOT NULL DEFAULT '',
    custom_domain    TEXT,
    project_name     TEXT NOT NULL DEFAULT '',
    environment_name TEXT NOT NULL DEFAULT '',
    username         TEXT NOT NULL DEFAULT '',
    deleted_at       DATETIME,
    created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_services_deleted_at ON services(deleted_at);

CREATE TABLE IF NOT EXISTS deployments (
    id         TEXT PRIMARY KEY,
    service_id TEXT NOT NULL REFERENCES services(id),
    status     TEXT NOT NULL,
    image_tag  TEXT,
    logs       TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_deployments_service_id ON deployments(service_id);
`

// Open opens the SQLite database at the given path, runs the schema
// migration, and returns a ready-to-use *Database. The parent directory of
// the database file is created if it does not already exist.
func Open(dbPath string, logger *slog.Logger) (*Database, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory %q: %w", dir, err)
	}

	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database at %q: %w", dbPath, err)
	}

	// SQLite does not support concurrent writers; a single connection
	// turns concurrent write attempts into serialized queueing instead of
	// "database is locked" errors.
	conn.SetMaxOpenConns(1)

	database := &Database{conn: conn, logger: logger}
	if err := database.migrate(); err != nil {
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	logger.Info("database opened and schema migrated", "path", dbPath)
	return database, nil
}

// Close releases the database connection pool.
func (d *Database) Close() error {
	return d.conn.Close()
}

// scanner is satisfied by both *sql.Row and *sql.Rows, letting row-mapping
// helpers be shared between single-row and multi-row query paths.
type scanner interface {
	Scan(dest ...any) error
}
