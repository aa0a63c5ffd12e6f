package scorer

import (
	"context"
	"strings"

	"github.com/dshills/doccontext-mcp/internal/embedder"
	"github.com/dshills/doccontext-mcp/pkg/types"
)

// Embedding scores by cosine similarity between the topic and snippet
// embeddings, with negative similarity floored at 0. Determinism relies on
// the embedder's content-hash cache.
type Embedding struct {
	embedder embedder.Embedder
}

// NewEmbedding returns a scorer backed by e
func NewEmbedding(e embedder.Embedder) *Embedding {
	return &Embedding{embedder: e}
}

// Name returns ModeEmbedding
func (s *Embedding) Name() string { return ModeEmbedding }

// Score implements Scorer
func (s *Embedding) Score(ctx context.Context, topic string, snippet *types.Snippet) (float64, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return 1, nil
	}
	text := snippetText(snippet)
	if text == "" {
		return 0, nil
	}

	topicEmb, err := s.embed(ctx, topic)
	if err != nil {
		return 0, err
	}
	snippetEmb, err := s.embed(ctx, text)
	if err != nil {
		return 0, err
	}

	return clamp(embedder.CosineSimilarity(topicEmb.Vector, snippetEmb.Vector)), nil
}

func (s *Embedding) embed(ctx context.Context, text string) (*embedder.Embedding, error) {
	emb, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, upstream(s.Name(), err)
	}
	return emb, nil
}
