// Package ranking orders candidate snippets for a query. Each candidate is
// scored for relevance, blended with its quality, filtered by topic,
// sorted deterministically and truncated to the effective limit.
package ranking

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/doccontext-mcp/internal/scorer"
	"github.com/dshills/doccontext-mcp/pkg/types"
)

// Blend weights of the final score
const (
	RelevanceWeight = 0.8
	QualityWeight   = 0.2
)

// Defaults for Config
const (
	DefaultMinRelevance = 0.05
	DefaultLimit        = 10
	DefaultMaxLimit     = 50
)

// Config holds ranking policy
type Config struct {
	MinRelevance float64 // Candidates below this relevance are dropped when a topic is set
	DefaultLimit int     // Used when the query limit is zero or negative
	MaxLimit     int     // Hard cap on returned snippets
	Concurrency  int     // Parallel scorer calls; zero means GOMAXPROCS
}

// DefaultConfig returns the default ranking policy
func DefaultConfig() Config {
	return Config{
		MinRelevance: DefaultMinRelevance,
		DefaultLimit: DefaultLimit,
		MaxLimit:     DefaultMaxLimit,
	}
}

// Validate checks the policy is usable
func (c Config) Validate() error {
	if c.MinRelevance < 0 || c.MinRelevance > 1 {
		return fmt.Errorf("min relevance must be in [0, 1], got %v", c.MinRelevance)
	}
	if c.MaxLimit < 1 {
		return fmt.Errorf("max limit must be at least 1, got %d", c.MaxLimit)
	}
	if c.DefaultLimit < 1 || c.DefaultLimit > c.MaxLimit {
		return fmt.Errorf("default limit must be in [1, %d], got %d", c.MaxLimit, c.DefaultLimit)
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative, got %d", c.Concurrency)
	}
	return nil
}

// Engine ranks snippets using a Scorer
type Engine struct {
	scorer scorer.Scorer
	cfg    Config
}

// NewEngine creates a ranking engine
func NewEngine(s scorer.Scorer, cfg Config) (*Engine, error) {
	if s == nil {
		return nil, fmt.Errorf("scorer is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = runtime.GOMAXPROCS(0)
	}
	return &Engine{scorer: s, cfg: cfg}, nil
}

// Config returns the engine's policy
func (e *Engine) Config() Config {
	return e.cfg
}

// ClampLimit maps a requested limit into [1, MaxLimit]; zero or negative
// selects DefaultLimit.
func (e *Engine) ClampLimit(limit int) int {
	return ClampLimit(limit, e.cfg.DefaultLimit, e.cfg.MaxLimit)
}

// ClampLimit is the policy-free form of Engine.ClampLimit
func ClampLimit(limit, def, max int) int {
	switch {
	case limit <= 0:
		limit = def
	case limit > max:
		limit = max
	}
	if limit < 1 {
		limit = 1
	}
	return limit
}

// FinalScore blends relevance and quality
func FinalScore(relevance, quality float64) float64 {
	return RelevanceWeight*relevance + QualityWeight*quality
}

// Rank scores, filters, orders and truncates candidates. An empty result is
// valid and returned without error. A scorer failure aborts the whole
// ranking; partial results are never returned.
func (e *Engine) Rank(ctx context.Context, candidates []types.Snippet, q types.Query) ([]types.ScoredSnippet, error) {
	q = q.Normalized()
	limit := e.ClampLimit(q.Limit)
	hasTopic := q.Topic != ""

	relevance, err := e.scoreAll(ctx, candidates, q.Topic)
	if err != nil {
		return nil, err
	}

	type ranked struct {
		types.ScoredSnippet
		index int
	}
	kept := make([]ranked, 0, len(candidates))
	for i := range candidates {
		rel := relevance[i]
		if hasTopic && rel < e.cfg.MinRelevance {
			continue
		}
		sn := candidates[i]
		kept = append(kept, ranked{
			ScoredSnippet: types.ScoredSnippet{
				Snippet:   sn,
				Relevance: rel,
				Final:     FinalScore(rel, sn.Quality()),
			},
			index: i,
		})
	}

	sort.SliceStable(kept, func(i, j int) bool {
		a, b := kept[i], kept[j]
		if a.Final != b.Final {
			return a.Final > b.Final
		}
		if qa, qb := a.Quality(), b.Quality(); qa != qb {
			return qa > qb
		}
		if a.Ordinal != b.Ordinal {
			return a.Ordinal < b.Ordinal
		}
		return a.index < b.index
	})

	if len(kept) > limit {
		kept = kept[:limit]
	}

	out := make([]types.ScoredSnippet, len(kept))
	for i, r := range kept {
		out[i] = r.ScoredSnippet
	}
	return ApplyTokenBudget(out, q.Tokens), nil
}

// scoreAll runs the scorer over every candidate with bounded parallelism.
// Results are written by index so ordering never depends on scheduling.
func (e *Engine) scoreAll(ctx context.Context, candidates []types.Snippet, topic string) ([]float64, error) {
	relevance := make([]float64, len(candidates))
	if topic == "" {
		for i := range relevance {
			relevance[i] = 1
		}
		return relevance, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for i := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rel, err := e.scorer.Score(gctx, topic, &candidates[i])
			if err != nil {
				return fmt.Errorf("scoring snippet %s: %w", candidates[i].ID, err)
			}
			relevance[i] = clamp01(rel)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return relevance, nil
}

// ApplyTokenBudget keeps the longest ranked prefix whose estimated token
// count fits within budget. At least one snippet is kept when any are
// present. A budget of zero or less means unlimited.
func ApplyTokenBudget(snippets []types.ScoredSnippet, budget int) []types.ScoredSnippet {
	if budget <= 0 || len(snippets) == 0 {
		return snippets
	}
	used := 0
	for i := range snippets {
		used += snippets[i].EstimatedTokens()
		if used > budget {
			if i == 0 {
				return snippets[:1]
			}
			return snippets[:i]
		}
	}
	return snippets
}

func clamp01(v float64) float64 {
	switch {
	case v < 0 || v != v:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
