package ranking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/doccontext-mcp/internal/scorer"
	"github.com/dshills/doccontext-mcp/pkg/types"
)

// fixedScorer returns relevance by snippet ID
func fixedScorer(scores map[string]float64) scorer.Scorer {
	return scorer.ScoreFunc(func(_ context.Context, topic string, s *types.Snippet) (float64, error) {
		if topic == "" {
			return 1, nil
		}
		return scores[s.ID], nil
	})
}

func newEngine(t *testing.T, s scorer.Scorer) *Engine {
	t.Helper()
	e, err := NewEngine(s, DefaultConfig())
	require.NoError(t, err)
	return e
}

func corpus(qualities ...float64) []types.Snippet {
	out := make([]types.Snippet, len(qualities))
	for i, q := range qualities {
		out[i] = types.Snippet{
			ID:           fmt.Sprintf("s%d", i),
			Title:        fmt.Sprintf("Snippet %d", i),
			Code:         "x = 1",
			QualityScore: q,
			Ordinal:      i,
		}
	}
	return out
}

func ids(scored []types.ScoredSnippet) []string {
	out := make([]string, len(scored))
	for i, s := range scored {
		out[i] = s.ID
	}
	return out
}

func TestRankEmptyTopicOrdersByQuality(t *testing.T) {
	e := newEngine(t, scorer.NewLexical())

	got, err := e.Rank(context.Background(), corpus(0.9, 0.5, 0.7), types.Query{})
	require.NoError(t, err)

	assert.Equal(t, []string{"s0", "s2", "s1"}, ids(got))
	for _, s := range got {
		assert.Equal(t, 1.0, s.Relevance)
	}
}

func TestRankScoreBounds(t *testing.T) {
	scores := map[string]float64{"s0": 0.3, "s1": 1.7, "s2": -0.2, "s3": 0.6}
	e := newEngine(t, fixedScorer(scores))

	got, err := e.Rank(context.Background(), corpus(0.5, 1.4, 0.1, -3), types.Query{Topic: "anything"})
	require.NoError(t, err)

	for i, s := range got {
		assert.GreaterOrEqual(t, s.Final, 0.0)
		assert.LessOrEqual(t, s.Final, 1.0)
		assert.InDelta(t, 0.8*s.Relevance+0.2*s.Quality(), s.Final, 1e-9)
		if i > 0 {
			assert.GreaterOrEqual(t, got[i-1].Final, s.Final)
		}
	}
}

func TestRankTopicFilter(t *testing.T) {
	scores := map[string]float64{"s0": 0.9, "s1": 0.04, "s2": 0.05, "s3": 0}
	e := newEngine(t, fixedScorer(scores))

	got, err := e.Rank(context.Background(), corpus(0.1, 1, 1, 1), types.Query{Topic: "routing"})
	require.NoError(t, err)

	assert.Equal(t, []string{"s0", "s2"}, ids(got))
	for _, s := range got {
		assert.GreaterOrEqual(t, s.Relevance, DefaultMinRelevance)
	}
}

func TestRankFilterEverything(t *testing.T) {
	e := newEngine(t, fixedScorer(map[string]float64{}))

	got, err := e.Rank(context.Background(), corpus(0.9, 0.8), types.Query{Topic: "nothing"})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRankTieBreaks(t *testing.T) {
	// Identical scores fall back to corpus order, then input position
	e := newEngine(t, fixedScorer(map[string]float64{"a": 0.5, "b": 0.5, "c": 0.5, "d": 0.5}))
	candidates := []types.Snippet{
		{ID: "a", Code: "x", QualityScore: 0.5, Ordinal: 3},
		{ID: "b", Code: "x", QualityScore: 0.5, Ordinal: 1},
		{ID: "c", Code: "x", QualityScore: 0.5, Ordinal: 2},
		{ID: "d", Code: "x", QualityScore: 0.5, Ordinal: 1},
	}
	got, err := e.Rank(context.Background(), candidates, types.Query{Topic: "t"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "d", "c", "a"}, ids(got))
}

func TestRankOrderingInvariant(t *testing.T) {
	scores := map[string]float64{}
	qualities := make([]float64, 40)
	for i := range qualities {
		qualities[i] = float64((i*7)%11) / 10
		scores[fmt.Sprintf("s%d", i)] = float64((i*5)%9) / 8
	}
	e := newEngine(t, fixedScorer(scores))

	got, err := e.Rank(context.Background(), corpus(qualities...), types.Query{Topic: "t", Limit: 50})
	require.NoError(t, err)
	require.NotEmpty(t, got)

	for i := 1; i < len(got); i++ {
		prev, cur := got[i-1], got[i]
		require.GreaterOrEqual(t, prev.Final, cur.Final)
		if prev.Final == cur.Final {
			require.GreaterOrEqual(t, prev.Quality(), cur.Quality())
			if prev.Quality() == cur.Quality() {
				require.Less(t, prev.Ordinal, cur.Ordinal)
			}
		}
	}
}

func TestRankDeterministic(t *testing.T) {
	e := newEngine(t, scorer.NewLexical())
	candidates := []types.Snippet{
		{ID: "a", Title: "Dependency injection", Code: "Depends(get_db)", QualityScore: 0.6, Ordinal: 0},
		{ID: "b", Title: "Path parameters", Code: "@app.get('/items/{id}')", QualityScore: 0.8, Ordinal: 1},
		{ID: "c", Title: "Dependencies with yield", Description: "dependency cleanup", Code: "yield db", QualityScore: 0.6, Ordinal: 2},
		{ID: "d", Title: "Query parameters", Code: "def read(q: str)", QualityScore: 0.6, Ordinal: 3},
	}
	q := types.Query{Topic: "dependency injection"}

	first, err := e.Rank(context.Background(), candidates, q)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := e.Rank(context.Background(), candidates, q)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	require.NotEmpty(t, first)
	assert.Equal(t, "a", first[0].ID)
}

func TestRankLimit(t *testing.T) {
	e := newEngine(t, scorer.NewLexical())
	qualities := make([]float64, 80)
	for i := range qualities {
		qualities[i] = float64(i%10) / 10
	}
	candidates := corpus(qualities...)

	tests := []struct {
		limit int
		want  int
	}{
		{0, DefaultLimit},
		{-5, DefaultLimit},
		{1, 1},
		{25, 25},
		{1000, DefaultMaxLimit},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.limit), func(t *testing.T) {
			got, err := e.Rank(context.Background(), candidates, types.Query{Limit: tt.limit})
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 10, ClampLimit(0, 10, 50))
	assert.Equal(t, 50, ClampLimit(51, 10, 50))
	assert.Equal(t, 7, ClampLimit(7, 10, 50))
	assert.Equal(t, 1, ClampLimit(-1, 0, 50))
}

func TestRankTokenBudget(t *testing.T) {
	e := newEngine(t, scorer.NewLexical())
	candidates := []types.Snippet{
		{ID: "a", Code: strings.Repeat("x", 400), QualityScore: 0.9, Ordinal: 0}, // 100 tokens
		{ID: "b", Code: strings.Repeat("y", 400), QualityScore: 0.8, Ordinal: 1},
		{ID: "c", Code: strings.Repeat("z", 40), QualityScore: 0.7, Ordinal: 2}, // 10 tokens
	}

	got, err := e.Rank(context.Background(), candidates, types.Query{Tokens: 150})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(got), "budget keeps a prefix, never skips ahead")

	got, err = e.Rank(context.Background(), candidates, types.Query{Tokens: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(got), "at least one snippet survives")

	got, err = e.Rank(context.Background(), candidates, types.Query{Tokens: 210})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(got))
}

func TestRankScorerError(t *testing.T) {
	boom := errors.New("boom")
	s := scorer.ScoreFunc(func(_ context.Context, _ string, sn *types.Snippet) (float64, error) {
		if sn.ID == "s2" {
			return 0, boom
		}
		return 0.5, nil
	})
	e := newEngine(t, s)

	got, err := e.Rank(context.Background(), corpus(0.1, 0.2, 0.3), types.Query{Topic: "t"})
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, got)
}

func TestRankCanceled(t *testing.T) {
	var calls atomic.Int32
	s := scorer.ScoreFunc(func(ctx context.Context, _ string, _ *types.Snippet) (float64, error) {
		calls.Add(1)
		return 0.5, ctx.Err()
	})
	e := newEngine(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Rank(ctx, corpus(0.1, 0.2, 0.3), types.Query{Topic: "t"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := []Config{
		{MinRelevance: -0.1, DefaultLimit: 10, MaxLimit: 50},
		{MinRelevance: 0.05, DefaultLimit: 10, MaxLimit: 0},
		{MinRelevance: 0.05, DefaultLimit: 60, MaxLimit: 50},
		{MinRelevance: 0.05, DefaultLimit: 10, MaxLimit: 50, Concurrency: -1},
	}
	for _, cfg := range bad {
		assert.Error(t, cfg.Validate(), "%+v", cfg)
	}

	_, err := NewEngine(nil, DefaultConfig())
	assert.Error(t, err)
}
