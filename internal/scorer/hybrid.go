package scorer

import (
	"context"
	"fmt"

	"github.com/dshills/doccontext-mcp/internal/embedder"
	"github.com/dshills/doccontext-mcp/pkg/types"
)

// Hybrid blends two scorers: alpha*lexical + (1-alpha)*semantic
type Hybrid struct {
	lexical  Scorer
	semantic Scorer
	alpha    float64
}

// NewHybrid combines lexical and semantic scorers. Alpha must be in [0, 1].
func NewHybrid(lexical, semantic Scorer, alpha float64) (*Hybrid, error) {
	if alpha < 0 || alpha > 1 {
		return nil, fmt.Errorf("hybrid alpha must be in [0, 1], got %v", alpha)
	}
	return &Hybrid{lexical: lexical, semantic: semantic, alpha: alpha}, nil
}

// Name returns ModeHybrid
func (h *Hybrid) Name() string { return ModeHybrid }

// Score implements Scorer
func (h *Hybrid) Score(ctx context.Context, topic string, snippet *types.Snippet) (float64, error) {
	lex, err := h.lexical.Score(ctx, topic, snippet)
	if err != nil {
		return 0, err
	}
	if h.alpha == 1 {
		return clamp(lex), nil
	}
	sem, err := h.semantic.Score(ctx, topic, snippet)
	if err != nil {
		return 0, err
	}
	return clamp(h.alpha*lex + (1-h.alpha)*sem), nil
}

// Config selects and parameterizes a scorer
type Config struct {
	Mode     string  // lexical, embedding or hybrid; empty means lexical
	Alpha    float64 // Lexical share for hybrid mode
	Embedder embedder.Embedder
}

// New builds the scorer described by cfg
func New(cfg Config) (Scorer, error) {
	switch cfg.Mode {
	case "", ModeLexical:
		return NewLexical(), nil
	case ModeEmbedding:
		if cfg.Embedder == nil {
			return nil, fmt.Errorf("%s scorer requires an embedder", ModeEmbedding)
		}
		return NewEmbedding(cfg.Embedder), nil
	case ModeHybrid:
		if cfg.Embedder == nil {
			return nil, fmt.Errorf("%s scorer requires an embedder", ModeHybrid)
		}
		return NewHybrid(NewLexical(), NewEmbedding(cfg.Embedder), cfg.Alpha)
	default:
		return nil, fmt.Errorf("unknown scorer mode %q", cfg.Mode)
	}
}
