package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/doccontext-mcp/pkg/types"
)

// MemoryStore is an in-process Storage. It backs tests and small embedded
// corpora and counts fetches so callers can assert how often the corpus was
// consulted.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   int64
	libs     map[int64]*Library
	snippets map[int64][]types.Snippet
	hook     func(ctx context.Context, id types.LibraryID) error
	fetches  atomic.Int64
}

// NewMemoryStore returns an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		libs:     make(map[int64]*Library),
		snippets: make(map[int64][]types.Snippet),
	}
}

// SetFetchHook installs a function run at the start of every
// FetchCandidates call. A non-nil error is returned to the caller as-is.
func (m *MemoryStore) SetFetchHook(hook func(ctx context.Context, id types.LibraryID) error) {
	m.mu.Lock()
	m.hook = hook
	m.mu.Unlock()
}

// FetchCount reports how many times FetchCandidates has been called
func (m *MemoryStore) FetchCount() int {
	return int(m.fetches.Load())
}

// AddLibrary is a convenience for fixtures: upsert and replace snippets in one call.
func (m *MemoryStore) AddLibrary(ctx context.Context, lib *Library, snippets []types.Snippet) error {
	if err := m.UpsertLibrary(ctx, lib); err != nil {
		return err
	}
	return m.ReplaceSnippets(ctx, lib.ID, snippets)
}

// FetchCandidates returns copies of the stored snippets for the resolved version
func (m *MemoryStore) FetchCandidates(ctx context.Context, id types.LibraryID) ([]types.Snippet, error) {
	m.fetches.Add(1)

	m.mu.RLock()
	hook := m.hook
	m.mu.RUnlock()
	if hook != nil {
		if err := hook(ctx, id); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	lib := m.resolveLocked(id)
	if lib == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	stored := m.snippets[lib.ID]
	out := make([]types.Snippet, len(stored))
	copy(out, stored)
	return out, nil
}

func (m *MemoryStore) resolveLocked(id types.LibraryID) *Library {
	if id.Version != "" {
		return m.findLocked(id)
	}
	var versions []string
	for _, lib := range m.libs {
		if lib.Owner == id.Owner && lib.Name == id.Name {
			versions = append(versions, lib.Version)
		}
	}
	latest, ok := latestVersion(versions)
	if !ok {
		return nil
	}
	return m.findLocked(id.WithVersion(latest))
}

func (m *MemoryStore) findLocked(id types.LibraryID) *Library {
	for _, lib := range m.libs {
		if lib.Owner == id.Owner && lib.Name == id.Name && lib.Version == id.Version {
			return lib
		}
	}
	return nil
}

// SearchLibraries matches query tokens against owner, name, title and
// description. Libraries matching more tokens rank first.
func (m *MemoryStore) SearchLibraries(_ context.Context, query string, limit int) ([]types.LibraryMatch, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, types.ErrEmptyQuery
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	m.mu.RLock()
	type hit struct {
		lib   *Library
		score int
	}
	var hits []hit
	for _, lib := range m.libs {
		text := strings.ToLower(strings.Join([]string{lib.Owner, lib.Name, lib.Title, lib.Description}, " "))
		score := 0
		for _, t := range terms {
			if strings.Contains(text, t) {
				score++
			}
		}
		if score > 0 {
			cp := *lib
			hits = append(hits, hit{lib: &cp, score: score})
		}
	}
	m.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		if hits[i].lib.TrustScore != hits[j].lib.TrustScore {
			return hits[i].lib.TrustScore > hits[j].lib.TrustScore
		}
		return hits[i].lib.LibraryID().String() < hits[j].lib.LibraryID().String()
	})

	libs := make([]*Library, len(hits))
	for i, h := range hits {
		libs[i] = h.lib
	}
	return collapseMatches(libs, limit), nil
}

// UpsertLibrary inserts or updates a library version and sets lib.ID
func (m *MemoryStore) UpsertLibrary(_ context.Context, lib *Library) error {
	if lib.Owner == "" || lib.Name == "" {
		return fmt.Errorf("%w: owner and name are required", types.ErrInvalidLibraryID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	if lib.LastUpdatedAt.IsZero() {
		lib.LastUpdatedAt = now
	}
	lib.UpdatedAt = now

	if existing := m.findLocked(lib.LibraryID()); existing != nil {
		lib.ID = existing.ID
		lib.CreatedAt = existing.CreatedAt
		lib.TotalSnippets = existing.TotalSnippets
	} else {
		m.nextID++
		lib.ID = m.nextID
		lib.CreatedAt = now
	}
	cp := *lib
	m.libs[lib.ID] = &cp
	return nil
}

// GetLibrary returns the exact library version named by id
func (m *MemoryStore) GetLibrary(_ context.Context, id types.LibraryID) (*Library, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lib := m.findLocked(id)
	if lib == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	cp := *lib
	return &cp, nil
}

// ListLibraries returns every library version ordered by identifier
func (m *MemoryStore) ListLibraries(_ context.Context) ([]*Library, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	libs := make([]*Library, 0, len(m.libs))
	for _, lib := range m.libs {
		cp := *lib
		libs = append(libs, &cp)
	}
	sort.Slice(libs, func(i, j int) bool {
		return libs[i].LibraryID().String() < libs[j].LibraryID().String()
	})
	return libs, nil
}

// DeleteLibrary removes a library version and its snippets
func (m *MemoryStore) DeleteLibrary(_ context.Context, libraryID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.libs[libraryID]; !ok {
		return ErrNotFound
	}
	delete(m.libs, libraryID)
	delete(m.snippets, libraryID)
	return nil
}

// ReplaceSnippets swaps the snippet set of a library, assigning ordinals in slice order
func (m *MemoryStore) ReplaceSnippets(_ context.Context, libraryID int64, snippets []types.Snippet) error {
	stored := make([]types.Snippet, len(snippets))
	for i, sn := range snippets {
		if err := sn.Validate(); err != nil {
			return fmt.Errorf("snippet %d (%s): %w", i, sn.ID, err)
		}
		sn.Ordinal = i
		stored[i] = sn
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	lib, ok := m.libs[libraryID]
	if !ok {
		return ErrNotFound
	}
	m.snippets[libraryID] = stored
	lib.TotalSnippets = len(stored)
	lib.UpdatedAt = time.Now().UTC()
	return nil
}

// GetStatus reports corpus counts
func (m *MemoryStore) GetStatus(_ context.Context) (*CorpusStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := &CorpusStatus{
		Libraries: len(m.libs),
		Health:    HealthStatus{DatabaseAccessible: true, FTSIndexesBuilt: true},
	}
	for id, lib := range m.libs {
		status.Snippets += len(m.snippets[id])
		if lib.LastUpdatedAt.After(status.LastUpdatedAt) {
			status.LastUpdatedAt = lib.LastUpdatedAt
		}
	}
	return status, nil
}

// Close is a no-op
func (m *MemoryStore) Close() error {
	return nil
}

var (
	_ Storage = (*MemoryStore)(nil)
	_ Storage = (*SQLiteStorage)(nil)
)
