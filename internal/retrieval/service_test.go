package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/doccontext-mcp/internal/cache"
	"github.com/dshills/doccontext-mcp/internal/format"
	"github.com/dshills/doccontext-mcp/internal/ranking"
	"github.com/dshills/doccontext-mcp/internal/retry"
	"github.com/dshills/doccontext-mcp/internal/scorer"
	"github.com/dshills/doccontext-mcp/internal/storage"
	"github.com/dshills/doccontext-mcp/pkg/types"
)

func fastRetry() retry.Config {
	return retry.Config{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

func newTestService(t *testing.T, store *storage.MemoryStore) *Service {
	t.Helper()
	engine, err := ranking.NewEngine(scorer.NewLexical(), ranking.DefaultConfig())
	require.NoError(t, err)
	c, err := cache.New(cache.DefaultConfig())
	require.NoError(t, err)
	svc, err := NewService(store, engine, c, Options{
		Catalog:         store,
		Retry:           fastRetry(),
		UpstreamTimeout: time.Second,
	})
	require.NoError(t, err)
	return svc
}

func addLibrary(t *testing.T, store *storage.MemoryStore, id string, snippets ...types.Snippet) {
	t.Helper()
	lid := types.MustParseLibraryID(id)
	lib := &storage.Library{Owner: lid.Owner, Name: lid.Name, Version: lid.Version, Title: lid.Name, TrustScore: 9}
	require.NoError(t, store.AddLibrary(context.Background(), lib, snippets))
}

func fastapiStore(t *testing.T) *storage.MemoryStore {
	store := storage.NewMemoryStore()
	addLibrary(t, store, "fastapi/fastapi",
		types.Snippet{ID: "q90", Title: "Dependencies", Code: "Depends()", QualityScore: 0.9},
		types.Snippet{ID: "q50", Title: "Path parameters", Code: "@app.get('/items/{id}')", QualityScore: 0.5},
		types.Snippet{ID: "q70", Title: "Request body", Code: "class Item(BaseModel): ...", QualityScore: 0.7},
	)
	return store
}

func decode(t *testing.T, payload []byte) format.Envelope {
	t.Helper()
	var env format.Envelope
	require.NoError(t, json.Unmarshal(payload, &env))
	return env
}

func TestGetDocsOrdersByQualityWithoutTopic(t *testing.T) {
	svc := newTestService(t, fastapiStore(t))

	resp, err := svc.GetDocs(context.Background(), "fastapi/fastapi", types.Query{}, "json")
	require.NoError(t, err)
	assert.False(t, resp.CacheHit)
	assert.Equal(t, []string{"q90", "q70", "q50"}, resp.Result.IDs())

	env := decode(t, resp.Payload)
	require.Len(t, env.Snippets, 3)
	for _, s := range env.Snippets {
		assert.Equal(t, 1.0, s.RelevanceScore)
		assert.InDelta(t, 0.8+0.2*s.QualityScore, s.FinalScore, 1e-9)
	}
}

func TestGetDocsInvalidLibraryID(t *testing.T) {
	store := fastapiStore(t)
	svc := newTestService(t, store)

	for _, bad := range []string{"badid", "", "a//b", "owner/", "has space/x"} {
		_, err := svc.GetDocs(context.Background(), bad, types.Query{}, "json")
		assert.ErrorIs(t, err, types.ErrInvalidLibraryID, bad)
	}
	assert.Equal(t, 0, store.FetchCount())
	assert.Zero(t, svc.Stats().Misses, "validation happens before the cache")
}

func TestGetDocsInvalidFormat(t *testing.T) {
	store := fastapiStore(t)
	svc := newTestService(t, store)

	_, err := svc.GetDocs(context.Background(), "fastapi/fastapi", types.Query{}, "xml")
	assert.ErrorIs(t, err, types.ErrInvalidFormat)
	assert.Equal(t, 0, store.FetchCount())
}

func TestGetDocsNotFound(t *testing.T) {
	store := fastapiStore(t)
	svc := newTestService(t, store)

	_, err := svc.GetDocs(context.Background(), "not/a/real/lib", types.Query{}, "json")
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.NotErrorIs(t, err, types.ErrUpstreamUnavailable)
	assert.Equal(t, 1, store.FetchCount(), "NotFound is not retried")

	// Negative entry serves the repeat
	_, err = svc.GetDocs(context.Background(), "not/a/real/lib", types.Query{}, "json")
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.Equal(t, 1, store.FetchCount())
}

func TestGetDocsCacheHit(t *testing.T) {
	store := fastapiStore(t)
	svc := newTestService(t, store)

	first, err := svc.GetDocs(context.Background(), "fastapi/fastapi", types.Query{Topic: "path"}, "txt")
	require.NoError(t, err)
	second, err := svc.GetDocs(context.Background(), "fastapi/fastapi", types.Query{Topic: "  path "}, "txt")
	require.NoError(t, err)

	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Payload, second.Payload)
	assert.Equal(t, 1, store.FetchCount())
	assert.Equal(t, int64(1), svc.Stats().Fills)
}

func TestGetDocsConcurrentSingleFetch(t *testing.T) {
	store := fastapiStore(t)
	release := make(chan struct{})
	store.SetFetchHook(func(ctx context.Context, _ types.LibraryID) error {
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	svc := newTestService(t, store)

	const callers = 10
	var wg sync.WaitGroup
	payloads := make([][]byte, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := svc.GetDocs(context.Background(), "fastapi/fastapi", types.Query{Topic: "path"}, "json")
			if assert.NoError(t, err) {
				payloads[i] = resp.Payload
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 1, store.FetchCount())
	for _, p := range payloads {
		assert.Equal(t, payloads[0], p)
	}
}

func TestGetDocsLimitClamping(t *testing.T) {
	store := storage.NewMemoryStore()
	snippets := make([]types.Snippet, 80)
	for i := range snippets {
		snippets[i] = types.Snippet{ID: fmt.Sprintf("s%02d", i), Title: "Snippet", Code: "x", QualityScore: 0.5}
	}
	addLibrary(t, store, "big/lib", snippets...)
	svc := newTestService(t, store)

	tests := []struct {
		limit int
		want  int
	}{
		{1000, ranking.DefaultMaxLimit},
		{0, ranking.DefaultLimit},
		{-3, ranking.DefaultLimit},
		{7, 7},
	}
	for _, tt := range tests {
		resp, err := svc.GetDocs(context.Background(), "big/lib", types.Query{Limit: tt.limit}, "json")
		require.NoError(t, err)
		assert.Len(t, resp.Result.Snippets, tt.want, "limit %d", tt.limit)
		assert.Len(t, decode(t, resp.Payload).Snippets, tt.want)
		assert.Equal(t, tt.want, resp.Result.Query.Limit)
	}

	// 0 and -3 clamp to the same key
	assert.Equal(t, 3, store.FetchCount())
}

func TestGetDocsFormatEquivalence(t *testing.T) {
	svc := newTestService(t, fastapiStore(t))

	q := types.Query{Topic: "path dependencies"}
	jsonResp, err := svc.GetDocs(context.Background(), "fastapi/fastapi", q, "json")
	require.NoError(t, err)
	textResp, err := svc.GetDocs(context.Background(), "fastapi/fastapi", q, "txt")
	require.NoError(t, err)

	jsonIDs, err := format.SnippetIDs(jsonResp.Payload, types.FormatJSON)
	require.NoError(t, err)
	textIDs, err := format.SnippetIDs(textResp.Payload, types.FormatText)
	require.NoError(t, err)
	assert.NotEmpty(t, jsonIDs)
	assert.Equal(t, jsonIDs, textIDs)
}

func TestGetDocsTopicFiltersEverything(t *testing.T) {
	svc := newTestService(t, fastapiStore(t))

	resp, err := svc.GetDocs(context.Background(), "fastapi/fastapi", types.Query{Topic: "websockets"}, "json")
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Result.Len())
	assert.Equal(t, 3, resp.Result.Candidates)
	assert.Empty(t, decode(t, resp.Payload).Snippets)
}

func TestGetDocsRetriesUpstreamFailure(t *testing.T) {
	store := fastapiStore(t)
	var failures atomic.Int32
	store.SetFetchHook(func(context.Context, types.LibraryID) error {
		if failures.Add(1) <= 2 {
			return errors.New("connection reset")
		}
		return nil
	})
	svc := newTestService(t, store)

	resp, err := svc.GetDocs(context.Background(), "fastapi/fastapi", types.Query{}, "json")
	require.NoError(t, err)
	assert.Len(t, resp.Result.Snippets, 3)
	assert.Equal(t, 3, store.FetchCount())
}

func TestGetDocsUpstreamExhausted(t *testing.T) {
	store := fastapiStore(t)
	store.SetFetchHook(func(context.Context, types.LibraryID) error {
		return errors.New("connection reset")
	})
	svc := newTestService(t, store)

	_, err := svc.GetDocs(context.Background(), "fastapi/fastapi", types.Query{}, "json")
	assert.ErrorIs(t, err, types.ErrUpstreamUnavailable)
	assert.Equal(t, 3, store.FetchCount())

	// Failures are not cached
	store.SetFetchHook(nil)
	resp, err := svc.GetDocs(context.Background(), "fastapi/fastapi", types.Query{}, "json")
	require.NoError(t, err)
	assert.False(t, resp.CacheHit)
}

func TestGetDocsUpstreamTimeout(t *testing.T) {
	store := fastapiStore(t)
	store.SetFetchHook(func(ctx context.Context, _ types.LibraryID) error {
		<-ctx.Done()
		return ctx.Err()
	})
	engine, err := ranking.NewEngine(scorer.NewLexical(), ranking.DefaultConfig())
	require.NoError(t, err)
	c, err := cache.New(cache.DefaultConfig())
	require.NoError(t, err)
	svc, err := NewService(store, engine, c, Options{
		Retry:           retry.Config{MaxRetries: 1, BaseDelay: time.Millisecond},
		UpstreamTimeout: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = svc.GetDocs(context.Background(), "fastapi/fastapi", types.Query{}, "json")
	assert.ErrorIs(t, err, types.ErrUpstreamUnavailable)
	assert.Equal(t, 2, store.FetchCount())
}

func TestGetDocsCallerCanceled(t *testing.T) {
	store := fastapiStore(t)
	store.SetFetchHook(func(ctx context.Context, _ types.LibraryID) error {
		<-ctx.Done()
		return ctx.Err()
	})
	svc := newTestService(t, store)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := svc.GetDocs(ctx, "fastapi/fastapi", types.Query{}, "json")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, types.ErrUpstreamUnavailable)
	assert.Equal(t, 1, store.FetchCount())
}

func TestGetDocsScorerFailure(t *testing.T) {
	store := fastapiStore(t)
	var calls atomic.Int32
	failing := scorer.ScoreFunc(func(context.Context, string, *types.Snippet) (float64, error) {
		calls.Add(1)
		return 0, fmt.Errorf("%w: embedding service down", types.ErrUpstreamUnavailable)
	})
	engine, err := ranking.NewEngine(failing, ranking.Config{MinRelevance: 0.05, DefaultLimit: 10, MaxLimit: 50, Concurrency: 1})
	require.NoError(t, err)
	c, err := cache.New(cache.DefaultConfig())
	require.NoError(t, err)
	svc, err := NewService(store, engine, c, Options{Retry: fastRetry()})
	require.NoError(t, err)

	_, err = svc.GetDocs(context.Background(), "fastapi/fastapi", types.Query{Topic: "x"}, "json")
	assert.ErrorIs(t, err, types.ErrUpstreamUnavailable)
	assert.Equal(t, 1, store.FetchCount(), "candidates are fetched once")
	assert.Equal(t, int32(3), calls.Load(), "ranking is retried")
}

func TestGetDocsScorerTimeout(t *testing.T) {
	store := fastapiStore(t)
	var calls atomic.Int32
	slow := scorer.ScoreFunc(func(ctx context.Context, _ string, _ *types.Snippet) (float64, error) {
		calls.Add(1)
		<-ctx.Done()
		return 0, ctx.Err()
	})
	engine, err := ranking.NewEngine(slow, ranking.Config{MinRelevance: 0.05, DefaultLimit: 10, MaxLimit: 50, Concurrency: 1})
	require.NoError(t, err)
	c, err := cache.New(cache.DefaultConfig())
	require.NoError(t, err)
	svc, err := NewService(store, engine, c, Options{
		Retry:           retry.Config{MaxRetries: 1, BaseDelay: time.Millisecond},
		UpstreamTimeout: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	start := time.Now()
	_, err = svc.GetDocs(context.Background(), "fastapi/fastapi", types.Query{Topic: "routing"}, "json")
	assert.ErrorIs(t, err, types.ErrUpstreamUnavailable)
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, int32(2), calls.Load(), "each attempt is bounded and retried once")
	assert.Equal(t, 1, store.FetchCount())
}

func TestInvalidate(t *testing.T) {
	store := fastapiStore(t)
	svc := newTestService(t, store)

	_, err := svc.GetDocs(context.Background(), "fastapi/fastapi", types.Query{}, "json")
	require.NoError(t, err)
	assert.Equal(t, 1, svc.Invalidate("fastapi/fastapi"))

	resp, err := svc.GetDocs(context.Background(), "fastapi/fastapi", types.Query{}, "json")
	require.NoError(t, err)
	assert.False(t, resp.CacheHit)
	assert.Equal(t, 2, store.FetchCount())
}

func TestSearch(t *testing.T) {
	svc := newTestService(t, fastapiStore(t))

	matches, err := svc.Search(context.Background(), "fastapi", 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "fastapi/fastapi", matches[0].ID)

	_, err = svc.Search(context.Background(), "   ", 5)
	assert.ErrorIs(t, err, types.ErrEmptyQuery)
}

func TestNewServiceValidation(t *testing.T) {
	engine, err := ranking.NewEngine(scorer.NewLexical(), ranking.DefaultConfig())
	require.NoError(t, err)
	c, err := cache.New(cache.DefaultConfig())
	require.NoError(t, err)

	_, err = NewService(nil, engine, c, Options{})
	assert.Error(t, err)
	_, err = NewService(storage.NewMemoryStore(), nil, c, Options{})
	assert.Error(t, err)
	_, err = NewService(storage.NewMemoryStore(), engine, nil, Options{})
	assert.Error(t, err)
}
