package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

const (
	// CurrentSchemaVersion tracks the database schema version
	CurrentSchemaVersion = "1.0.0"
)

// Migration represents a database schema migration
type Migration struct {
	Version string
	Up      string
	Down    string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{
		Version: "1.0.0",
		Up:      migrationV1Up,
		Down:    migrationV1Down,
	},
}

const migrationV1Up = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Libraries table, one row per indexed version
CREATE TABLE IF NOT EXISTS libraries (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    owner TEXT NOT NULL,
    name TEXT NOT NULL,
    version TEXT NOT NULL DEFAULT '',
    title TEXT,
    description TEXT,
    trust_score REAL DEFAULT 0,
    stars INTEGER DEFAULT 0,
    total_snippets INTEGER DEFAULT 0,
    last_updated_at TIMESTAMP,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(owner, name, version)
);

CREATE INDEX IF NOT EXISTS idx_libraries_base ON libraries(owner, name);
CREATE INDEX IF NOT EXISTS idx_libraries_trust ON libraries(trust_score);

-- Full-text search on libraries for catalog lookups
CREATE VIRTUAL TABLE IF NOT EXISTS libraries_fts USING fts5(
    owner, name, title, description,
    content='libraries',
    content_rowid='id'
);

-- Triggers to keep FTS in sync
CREATE TRIGGER IF NOT EXISTS libraries_ai AFTER INSERT ON libraries BEGIN
    INSERT INTO libraries_fts(rowid, owner, name, title, description)
    VALUES (new.id, new.owner, new.name, new.title, new.description);
END;

CREATE TRIGGER IF NOT EXISTS libraries_ad AFTER DELETE ON libraries BEGIN
    INSERT INTO libraries_fts(libraries_fts, rowid, owner, name, title, description)
    VALUES ('delete', old.id, old.owner, old.name, old.title, old.description);
END;

CREATE TRIGGER IF NOT EXISTS libraries_au AFTER UPDATE ON libraries BEGIN
    INSERT INTO libraries_fts(libraries_fts, rowid, owner, name, title, description)
    VALUES ('delete', old.id, old.owner, old.name, old.title, old.description);
    INSERT INTO libraries_fts(rowid, owner, name, title, description)
    VALUES (new.id, new.owner, new.name, new.title, new.description);
END;

-- Snippets table
CREATE TABLE IF NOT EXISTS snippets (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    library_id INTEGER NOT NULL,
    snippet_key TEXT NOT NULL,
    ordinal INTEGER NOT NULL,
    title TEXT,
    description TEXT,
    language TEXT,
    code TEXT NOT NULL,
    page_title TEXT,
    source_ref TEXT,
    quality_score REAL NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (library_id) REFERENCES libraries(id) ON DELETE CASCADE,
    UNIQUE(library_id, snippet_key)
);

CREATE INDEX IF NOT EXISTS idx_snippets_library ON snippets(library_id, ordinal);
`

const migrationV1Down = `
-- Drop all tables in reverse order of dependencies
DROP TRIGGER IF EXISTS libraries_au;
DROP TRIGGER IF EXISTS libraries_ad;
DROP TRIGGER IF EXISTS libraries_ai;

DROP TABLE IF EXISTS snippets;
DROP TABLE IF EXISTS libraries_fts;
DROP TABLE IF EXISTS libraries;
DROP TABLE IF EXISTS schema_version;
`

// ApplyMigrations runs all pending migrations, each inside its own transaction
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	current, err := currentSchemaVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, migration := range AllMigrations {
		version, err := semver.NewVersion(migration.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", migration.Version, err)
		}
		if !current.LessThan(version) {
			continue
		}

		if err := runMigration(ctx, db, migration.Up, "INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}
		current = version
	}

	return nil
}

// RollbackMigration rolls back the most recent migration
func RollbackMigration(ctx context.Context, db *sql.DB) error {
	current, err := currentSchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if current.Equal(semver.MustParse("0.0.0")) {
		return fmt.Errorf("no migrations to rollback")
	}

	for i := len(AllMigrations) - 1; i >= 0; i-- {
		m := AllMigrations[i]
		v, err := semver.NewVersion(m.Version)
		if err != nil || !v.Equal(current) {
			continue
		}
		// The down script drops schema_version itself, so the record goes first.
		if err := runMigration(ctx, db, m.Down, "", ""); err != nil {
			return fmt.Errorf("failed to rollback migration %s: %w", m.Version, err)
		}
		return nil
	}

	return fmt.Errorf("migration %s not found", current)
}

// currentSchemaVersion returns 0.0.0 for an empty database
func currentSchemaVersion(ctx context.Context, db *sql.DB) (*semver.Version, error) {
	var tableName string
	err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableName)
	if err == sql.ErrNoRows {
		return semver.MustParse("0.0.0"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check schema_version table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_version")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_version: %w", err)
	}
	defer func() { _ = rows.Close() }()

	current := semver.MustParse("0.0.0")
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		v, err := semver.NewVersion(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid current schema version %s: %w", raw, err)
		}
		if v.GreaterThan(current) {
			current = v
		}
	}
	return current, rows.Err()
}

func runMigration(ctx context.Context, db *sql.DB, script, record, version string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return err
	}
	if record != "" {
		if _, err := tx.ExecContext(ctx, record, version); err != nil {
			return err
		}
	}
	return tx.Commit()
}
