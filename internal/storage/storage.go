package storage

import (
	"context"
	"errors"
	"time"

	"github.com/dshills/doccontext-mcp/pkg/types"
)

var (
	// ErrNotFound is returned when a library is not indexed. It is
	// types.ErrNotFound, so callers outside the package can match either.
	ErrNotFound = types.ErrNotFound
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
)

// SnippetStore is the read-only contract the retrieval core depends on
type SnippetStore interface {
	// FetchCandidates returns the snippets of a library in corpus order.
	// A library without a version resolves to its latest indexed version.
	FetchCandidates(ctx context.Context, id types.LibraryID) ([]types.Snippet, error)
}

// Catalog maps free-text library names to canonical identifiers
type Catalog interface {
	SearchLibraries(ctx context.Context, query string, limit int) ([]types.LibraryMatch, error)
}

// Storage is the complete corpus store: the read contracts plus the write
// side used when loading a corpus.
type Storage interface {
	SnippetStore
	Catalog

	// Library operations
	UpsertLibrary(ctx context.Context, lib *Library) error
	GetLibrary(ctx context.Context, id types.LibraryID) (*Library, error)
	ListLibraries(ctx context.Context) ([]*Library, error)
	DeleteLibrary(ctx context.Context, libraryID int64) error

	// Snippet operations
	ReplaceSnippets(ctx context.Context, libraryID int64, snippets []types.Snippet) error

	// Status operations
	GetStatus(ctx context.Context) (*CorpusStatus, error)

	Close() error
}

// Library is one indexed version of a documented library
type Library struct {
	ID            int64
	Owner         string
	Name          string
	Version       string // Empty for unversioned libraries
	Title         string
	Description   string
	TrustScore    float64 // 0-10 as published by the catalog
	Stars         int
	TotalSnippets int
	LastUpdatedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// LibraryID returns the canonical identifier of this library version
func (l *Library) LibraryID() types.LibraryID {
	return types.LibraryID{Owner: l.Owner, Name: l.Name, Version: l.Version}
}

// QualityScore normalizes the trust score into [0, 1]
func (l *Library) QualityScore() float64 {
	q := l.TrustScore / 10
	switch {
	case q < 0:
		return 0
	case q > 1:
		return 1
	default:
		return q
	}
}

// CorpusStatus contains statistics about the loaded corpus
type CorpusStatus struct {
	Libraries     int
	Snippets      int
	LastUpdatedAt time.Time
	Health        HealthStatus
}

// HealthStatus represents the health of the store
type HealthStatus struct {
	DatabaseAccessible bool
	FTSIndexesBuilt    bool
}
