// Package scorer computes the relevance of a documentation snippet to a
// topic. Scores are in [0, 1] and deterministic for a given (topic, snippet).
package scorer

import (
	"context"
	"fmt"
	"strings"

	"github.com/dshills/doccontext-mcp/pkg/types"
)

// Scoring modes accepted by New
const (
	ModeLexical   = "lexical"
	ModeEmbedding = "embedding"
	ModeHybrid    = "hybrid"
)

// DefaultHybridAlpha is the lexical share of a hybrid score
const DefaultHybridAlpha = 0.5

// Scorer rates how well a snippet matches a topic
type Scorer interface {
	// Score returns relevance in [0, 1]. An empty topic always scores 1.
	Score(ctx context.Context, topic string, snippet *types.Snippet) (float64, error)

	// Name identifies the scoring method in logs and status output
	Name() string
}

// ScoreFunc adapts a plain function to the Scorer interface
type ScoreFunc func(ctx context.Context, topic string, snippet *types.Snippet) (float64, error)

// Score calls f
func (f ScoreFunc) Score(ctx context.Context, topic string, snippet *types.Snippet) (float64, error) {
	return f(ctx, topic, snippet)
}

// Name returns "func"
func (f ScoreFunc) Name() string { return "func" }

// snippetText is the text of a snippet as seen by semantic scorers
func snippetText(s *types.Snippet) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{s.Title, s.PageTitle, s.Description, s.Code} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n")
}

func clamp(v float64) float64 {
	switch {
	case v < 0 || v != v:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func upstream(name string, err error) error {
	return fmt.Errorf("%w: %s scorer: %v", types.ErrUpstreamUnavailable, name, err)
}
