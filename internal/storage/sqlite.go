package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/doccontext-mcp/pkg/types"
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer; this also keeps ":memory:" on one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Library operations

const libraryColumns = `
	id, owner, name, version, title, description, trust_score, stars,
	total_snippets, last_updated_at, created_at, updated_at`

func scanLibrary(scan func(dest ...interface{}) error) (*Library, error) {
	var lib Library
	var title, description sql.NullString
	var lastUpdated sql.NullTime
	if err := scan(
		&lib.ID, &lib.Owner, &lib.Name, &lib.Version, &title, &description,
		&lib.TrustScore, &lib.Stars, &lib.TotalSnippets, &lastUpdated,
		&lib.CreatedAt, &lib.UpdatedAt,
	); err != nil {
		return nil, err
	}
	lib.Title = title.String
	lib.Description = description.String
	if lastUpdated.Valid {
		lib.LastUpdatedAt = lastUpdated.Time
	}
	return &lib, nil
}

// UpsertLibrary inserts or updates a library version and sets lib.ID
func (s *SQLiteStorage) UpsertLibrary(ctx context.Context, lib *Library) error {
	if lib.Owner == "" || lib.Name == "" {
		return fmt.Errorf("%w: owner and name are required", types.ErrInvalidLibraryID)
	}

	query := `
		INSERT INTO libraries (owner, name, version, title, description, trust_score, stars, last_updated_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner, name, version) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			trust_score = excluded.trust_score,
			stars = excluded.stars,
			last_updated_at = excluded.last_updated_at,
			updated_at = excluded.updated_at
		RETURNING id
	`
	now := time.Now().UTC()
	lastUpdated := lib.LastUpdatedAt
	if lastUpdated.IsZero() {
		lastUpdated = now
	}
	err := s.db.QueryRowContext(ctx, query,
		lib.Owner, lib.Name, lib.Version, lib.Title, lib.Description,
		lib.TrustScore, lib.Stars, lastUpdated, now, now,
	).Scan(&lib.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert library: %w", err)
	}

	lib.LastUpdatedAt = lastUpdated
	lib.UpdatedAt = now
	if lib.CreatedAt.IsZero() {
		lib.CreatedAt = now
	}
	return nil
}

// GetLibrary returns the exact library version named by id
func (s *SQLiteStorage) GetLibrary(ctx context.Context, id types.LibraryID) (*Library, error) {
	query := `SELECT ` + libraryColumns + ` FROM libraries WHERE owner = ? AND name = ? AND version = ?`
	lib, err := scanLibrary(s.db.QueryRowContext(ctx, query, id.Owner, id.Name, id.Version).Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return lib, nil
}

// ListLibraries returns every indexed library version ordered by identifier
func (s *SQLiteStorage) ListLibraries(ctx context.Context) ([]*Library, error) {
	query := `SELECT ` + libraryColumns + ` FROM libraries ORDER BY owner, name, version`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list libraries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var libs []*Library
	for rows.Next() {
		lib, err := scanLibrary(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan library: %w", err)
		}
		libs = append(libs, lib)
	}
	return libs, rows.Err()
}

// DeleteLibrary removes a library version and, by cascade, its snippets
func (s *SQLiteStorage) DeleteLibrary(ctx context.Context, libraryID int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM libraries WHERE id = ?", libraryID)
	if err != nil {
		return fmt.Errorf("failed to delete library: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// resolveLibrary finds the library version served for id
func (s *SQLiteStorage) resolveLibrary(ctx context.Context, id types.LibraryID) (*Library, error) {
	if id.Version != "" {
		return s.GetLibrary(ctx, id)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT version FROM libraries WHERE owner = ? AND name = ?", id.Owner, id.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve library versions: %w", err)
	}
	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return nil, err
		}
		versions = append(versions, v)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	latest, ok := latestVersion(versions)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.GetLibrary(ctx, id.WithVersion(latest))
}

// Snippet operations

// ReplaceSnippets atomically swaps the snippet set of a library. Ordinals
// follow slice order so corpus order is preserved.
func (s *SQLiteStorage) ReplaceSnippets(ctx context.Context, libraryID int64, snippets []types.Snippet) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := replaceSnippetsWithQuerier(ctx, tx, libraryID, snippets); err != nil {
		return err
	}
	return tx.Commit()
}

func replaceSnippetsWithQuerier(ctx context.Context, q querier, libraryID int64, snippets []types.Snippet) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM snippets WHERE library_id = ?", libraryID); err != nil {
		return fmt.Errorf("failed to clear snippets: %w", err)
	}

	query := `
		INSERT INTO snippets (library_id, snippet_key, ordinal, title, description, language, code, page_title, source_ref, quality_score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for i, sn := range snippets {
		if err := sn.Validate(); err != nil {
			return fmt.Errorf("snippet %d (%s): %w", i, sn.ID, err)
		}
		if _, err := q.ExecContext(ctx, query,
			libraryID, sn.ID, i, sn.Title, sn.Description, sn.Language,
			sn.Code, sn.PageTitle, sn.SourceRef, sn.QualityScore,
		); err != nil {
			return fmt.Errorf("failed to insert snippet %s: %w", sn.ID, err)
		}
	}

	_, err := q.ExecContext(ctx,
		"UPDATE libraries SET total_snippets = ?, updated_at = ? WHERE id = ?",
		len(snippets), time.Now().UTC(), libraryID)
	if err != nil {
		return fmt.Errorf("failed to update snippet count: %w", err)
	}
	return nil
}

// FetchCandidates returns the snippets of the resolved library version
func (s *SQLiteStorage) FetchCandidates(ctx context.Context, id types.LibraryID) ([]types.Snippet, error) {
	lib, err := s.resolveLibrary(ctx, id)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT snippet_key, ordinal, title, description, language, code, page_title, source_ref, quality_score
		FROM snippets
		WHERE library_id = ?
		ORDER BY ordinal
	`
	rows, err := s.db.QueryContext(ctx, query, lib.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch snippets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	snippets := make([]types.Snippet, 0, lib.TotalSnippets)
	for rows.Next() {
		var sn types.Snippet
		var title, description, language, pageTitle, sourceRef sql.NullString
		if err := rows.Scan(&sn.ID, &sn.Ordinal, &title, &description, &language,
			&sn.Code, &pageTitle, &sourceRef, &sn.QualityScore); err != nil {
			return nil, fmt.Errorf("failed to scan snippet: %w", err)
		}
		sn.Title = title.String
		sn.Description = description.String
		sn.Language = language.String
		sn.PageTitle = pageTitle.String
		sn.SourceRef = sourceRef.String
		snippets = append(snippets, sn)
	}

	return snippets, rows.Err()
}

// Catalog operations

// SearchLibraries runs a full-text query over library names and
// descriptions. Versions of the same library collapse into one match.
func (s *SQLiteStorage) SearchLibraries(ctx context.Context, query string, limit int) ([]types.LibraryMatch, error) {
	match := buildFTSQuery(query)
	if match == "" {
		return nil, types.ErrEmptyQuery
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	sqlQuery := `
		SELECT ` + prefixColumns("l", libraryColumns) + `
		FROM libraries_fts
		INNER JOIN libraries l ON libraries_fts.rowid = l.id
		WHERE libraries_fts MATCH ?
		ORDER BY bm25(libraries_fts), l.trust_score DESC, l.owner, l.name
	`
	rows, err := s.db.QueryContext(ctx, sqlQuery, match)
	if err != nil {
		return nil, fmt.Errorf("failed to execute library search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var libs []*Library
	for rows.Next() {
		lib, err := scanLibrary(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan library: %w", err)
		}
		libs = append(libs, lib)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return collapseMatches(libs, limit), nil
}

// Status operations

// GetStatus reports corpus counts and index health
func (s *SQLiteStorage) GetStatus(ctx context.Context) (*CorpusStatus, error) {
	status := &CorpusStatus{}

	if err := s.db.PingContext(ctx); err != nil {
		return status, nil
	}
	status.Health.DatabaseAccessible = true

	var lastUpdated sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), MAX(last_updated_at) FROM libraries").Scan(&status.Libraries, &lastUpdated)
	if err != nil {
		return nil, fmt.Errorf("failed to count libraries: %w", err)
	}
	if lastUpdated.Valid {
		status.LastUpdatedAt = parseSQLiteTime(lastUpdated.String)
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM snippets").Scan(&status.Snippets); err != nil {
		return nil, fmt.Errorf("failed to count snippets: %w", err)
	}

	var ftsName string
	err = s.db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name='libraries_fts'").Scan(&ftsName)
	status.Health.FTSIndexesBuilt = err == nil

	return status, nil
}

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// parseSQLiteTime accepts the layouts the drivers use when an aggregate
// returns a timestamp as text.
func parseSQLiteTime(raw string) time.Time {
	layouts := []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02T15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999 -0700 MST",
		"2006-01-02 15:04:05",
		time.RFC3339Nano,
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
