// Package retrieval answers documentation requests: it validates the
// request, consults the result cache and, on a miss, fetches candidates,
// ranks them and renders the payload.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/dshills/doccontext-mcp/internal/cache"
	"github.com/dshills/doccontext-mcp/internal/format"
	"github.com/dshills/doccontext-mcp/internal/ranking"
	"github.com/dshills/doccontext-mcp/internal/retry"
	"github.com/dshills/doccontext-mcp/internal/storage"
	"github.com/dshills/doccontext-mcp/pkg/types"
)

// DefaultUpstreamTimeout bounds a single store or scorer attempt when Options
// leaves it unset
const DefaultUpstreamTimeout = 5 * time.Second

// Response is the outcome of GetDocs
type Response struct {
	Payload  []byte
	Result   *types.ResultSet // Shared with the cache; must not be modified
	CacheHit bool
}

// Options holds the optional collaborators of a Service
type Options struct {
	Catalog         storage.Catalog // Required only for Search
	Retry           retry.Config
	UpstreamTimeout time.Duration
	Logger          *log.Logger
	Now             func() time.Time
}

// Service is the retrieval entry point shared by all transports
type Service struct {
	store   storage.SnippetStore
	catalog storage.Catalog
	engine  *ranking.Engine
	cache   *cache.Cache
	retry   retry.Config
	timeout time.Duration
	logger  *log.Logger
	now     func() time.Time
}

// NewService wires a Service
func NewService(store storage.SnippetStore, engine *ranking.Engine, c *cache.Cache, opts Options) (*Service, error) {
	if store == nil {
		return nil, errors.New("retrieval: snippet store is required")
	}
	if engine == nil {
		return nil, errors.New("retrieval: ranking engine is required")
	}
	if c == nil {
		return nil, errors.New("retrieval: cache is required")
	}

	s := &Service{
		store:   store,
		catalog: opts.Catalog,
		engine:  engine,
		cache:   c,
		retry:   opts.Retry,
		timeout: opts.UpstreamTimeout,
		logger:  opts.Logger,
		now:     opts.Now,
	}
	if s.timeout <= 0 {
		s.timeout = DefaultUpstreamTimeout
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard, "", 0)
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.retry.Retryable = isRetryable
	return s, nil
}

// GetDocs returns the rendered documentation for a library. The format and
// library identifier are validated before the cache or store is touched.
// Rendering happens only when the cache has no live entry for the request.
func (s *Service) GetDocs(ctx context.Context, libraryID string, q types.Query, formatName string) (*Response, error) {
	f, err := types.ParseFormat(formatName)
	if err != nil {
		return nil, err
	}
	id, err := types.ParseLibraryID(libraryID)
	if err != nil {
		return nil, err
	}

	q = q.Normalized()
	q.Limit = s.engine.ClampLimit(q.Limit)
	key := cache.Key{
		Library: id.String(),
		Topic:   q.Topic,
		Limit:   q.Limit,
		Tokens:  q.Tokens,
		Format:  f,
	}

	entry, hit, err := s.cache.GetOrCompute(ctx, key, func(ctx context.Context) (*cache.Entry, error) {
		return s.compute(ctx, id, q, f)
	})
	if err != nil {
		return nil, err
	}
	return &Response{Payload: entry.Payload, Result: entry.Result, CacheHit: hit}, nil
}

func (s *Service) compute(ctx context.Context, id types.LibraryID, q types.Query, f types.Format) (*cache.Entry, error) {
	candidates, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	ranked, err := s.rank(ctx, id, candidates, q)
	if err != nil {
		return nil, err
	}

	rs := &types.ResultSet{
		Library:     id,
		Query:       q,
		Snippets:    ranked,
		Candidates:  len(candidates),
		GeneratedAt: s.now(),
	}
	payload, err := format.Render(rs, f)
	if err != nil {
		return nil, err
	}
	return &cache.Entry{Result: rs, Payload: payload}, nil
}

// fetch reads candidates with a per-attempt timeout and bounded retries.
// NotFound and cancellation are returned immediately.
func (s *Service) fetch(ctx context.Context, id types.LibraryID) ([]types.Snippet, error) {
	attempt := 0
	candidates, err := retry.Do(ctx, s.retry, func(ctx context.Context) ([]types.Snippet, error) {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		snippets, err := s.store.FetchCandidates(attemptCtx, id)
		if err != nil && !errors.Is(err, types.ErrNotFound) && ctx.Err() == nil {
			if errors.Is(err, context.DeadlineExceeded) {
				err = fmt.Errorf("%w: store timed out after %s", types.ErrUpstreamUnavailable, s.timeout)
			}
			s.logger.Printf("retrieval: fetch %s attempt %d/%d failed: %v", id, attempt, s.retry.Attempts(), err)
		}
		return snippets, err
	})
	if err != nil {
		return nil, upstreamError("fetch "+id.String(), err)
	}
	return candidates, nil
}

// rank scores the candidates under the same per-attempt timeout as fetch, so
// a remote scorer is bounded by UpstreamTimeout rather than its HTTP client.
func (s *Service) rank(ctx context.Context, id types.LibraryID, candidates []types.Snippet, q types.Query) ([]types.ScoredSnippet, error) {
	attempt := 0
	ranked, err := retry.Do(ctx, s.retry, func(ctx context.Context) ([]types.ScoredSnippet, error) {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		ranked, err := s.engine.Rank(attemptCtx, candidates, q)
		if err != nil && ctx.Err() == nil {
			if errors.Is(err, context.DeadlineExceeded) {
				err = fmt.Errorf("%w: scorer timed out after %s", types.ErrUpstreamUnavailable, s.timeout)
			}
			s.logger.Printf("retrieval: rank %s attempt %d/%d failed: %v", id, attempt, s.retry.Attempts(), err)
		}
		return ranked, err
	})
	if err != nil {
		return nil, upstreamError("rank "+id.String(), err)
	}
	return ranked, nil
}

// Search looks up libraries by free-text name
func (s *Service) Search(ctx context.Context, query string, limit int) ([]types.LibraryMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, types.ErrEmptyQuery
	}
	if s.catalog == nil {
		return nil, errors.New("retrieval: no catalog configured")
	}
	if limit <= 0 {
		limit = storage.DefaultSearchLimit
	}

	matches, err := s.catalog.SearchLibraries(ctx, query, limit)
	if err != nil {
		return nil, upstreamError("search", err)
	}
	return matches, nil
}

// Invalidate drops cached results for a library, all versions included
func (s *Service) Invalidate(library string) int {
	return s.cache.Invalidate(library)
}

// Stats reports cache counters
func (s *Service) Stats() cache.Stats {
	return s.cache.Stats()
}

// Limits returns the effective default and maximum result limits
func (s *Service) Limits() (defaultLimit, maxLimit int) {
	cfg := s.engine.Config()
	return cfg.DefaultLimit, cfg.MaxLimit
}

func isRetryable(err error) bool {
	return !errors.Is(err, types.ErrNotFound) &&
		!errors.Is(err, types.ErrEmptyQuery) &&
		!errors.Is(err, context.Canceled)
}

// upstreamError passes domain and context errors through and marks
// everything else as an upstream failure.
func upstreamError(op string, err error) error {
	switch {
	case errors.Is(err, types.ErrNotFound),
		errors.Is(err, types.ErrEmptyQuery),
		errors.Is(err, types.ErrUpstreamUnavailable),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %s: %v", types.ErrUpstreamUnavailable, op, err)
	}
}
