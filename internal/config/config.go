// Package config loads runtime settings from the environment and an
// optional .env file in the working directory.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dshills/doccontext-mcp/internal/cache"
	"github.com/dshills/doccontext-mcp/internal/embedder"
	"github.com/dshills/doccontext-mcp/internal/ranking"
	"github.com/dshills/doccontext-mcp/internal/retry"
	"github.com/dshills/doccontext-mcp/internal/scorer"
)

// Environment variables
const (
	EnvDBPath          = "DOCCONTEXT_DB_PATH"
	EnvCorpus          = "DOCCONTEXT_CORPUS"
	EnvScorer          = "DOCCONTEXT_SCORER"
	EnvHybridAlpha     = "DOCCONTEXT_HYBRID_ALPHA"
	EnvCacheSize       = "DOCCONTEXT_CACHE_SIZE"
	EnvCacheTTL        = "DOCCONTEXT_CACHE_TTL"
	EnvNegativeTTL     = "DOCCONTEXT_NEGATIVE_TTL"
	EnvMinRelevance    = "DOCCONTEXT_MIN_RELEVANCE"
	EnvDefaultLimit    = "DOCCONTEXT_DEFAULT_LIMIT"
	EnvMaxLimit        = "DOCCONTEXT_MAX_LIMIT"
	EnvUpstreamTimeout = "DOCCONTEXT_UPSTREAM_TIMEOUT"
	EnvMaxRetries      = "DOCCONTEXT_MAX_RETRIES"
)

// DefaultDBPath is the corpus database location when none is configured
const DefaultDBPath = "~/.doccontext/corpus.db"

// DefaultUpstreamTimeout bounds each store attempt
const DefaultUpstreamTimeout = 5 * time.Second

// Config holds all runtime settings
type Config struct {
	DBPath string
	Corpus string // Optional corpus file, directory or glob loaded at startup

	Scorer      string
	HybridAlpha float64
	Embedding   embedder.Config

	Cache   cache.Config
	Ranking ranking.Config

	UpstreamTimeout time.Duration
	Retry           retry.Config
}

// Default returns the configuration used when no variables are set
func Default() *Config {
	return &Config{
		DBPath:          DefaultDBPath,
		Scorer:          scorer.ModeLexical,
		HybridAlpha:     scorer.DefaultHybridAlpha,
		Cache:           cache.DefaultConfig(),
		Ranking:         ranking.DefaultConfig(),
		UpstreamTimeout: DefaultUpstreamTimeout,
		Retry:           retry.DefaultConfig(),
	}
}

// Load reads .env (if present) and the environment. A missing .env file is
// not an error; a malformed value is.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a variable lookup function
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := Default()
	p := parser{getenv: getenv}

	if v := p.str(EnvDBPath); v != "" {
		cfg.DBPath = v
	}
	cfg.Corpus = p.str(EnvCorpus)
	if v := p.str(EnvScorer); v != "" {
		cfg.Scorer = strings.ToLower(v)
	}
	p.float(EnvHybridAlpha, &cfg.HybridAlpha)

	cfg.Embedding = embedder.Config{
		Provider: strings.ToLower(p.str(embedder.EnvProvider)),
	}
	switch cfg.Embedding.Provider {
	case embedder.ProviderJina:
		cfg.Embedding.APIKey = p.str(embedder.EnvJinaAPIKey)
	case embedder.ProviderOpenAI:
		cfg.Embedding.APIKey = p.str(embedder.EnvOpenAIAPIKey)
	}

	p.int(EnvCacheSize, &cfg.Cache.Size)
	p.duration(EnvCacheTTL, &cfg.Cache.TTL)
	p.duration(EnvNegativeTTL, &cfg.Cache.NegativeTTL)

	p.float(EnvMinRelevance, &cfg.Ranking.MinRelevance)
	p.int(EnvDefaultLimit, &cfg.Ranking.DefaultLimit)
	p.int(EnvMaxLimit, &cfg.Ranking.MaxLimit)

	p.duration(EnvUpstreamTimeout, &cfg.UpstreamTimeout)
	p.int(EnvMaxRetries, &cfg.Retry.MaxRetries)

	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}

	path, err := expandHome(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	cfg.DBPath = path

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	switch c.Scorer {
	case scorer.ModeLexical, scorer.ModeEmbedding, scorer.ModeHybrid:
	default:
		return fmt.Errorf("%s: unknown scorer %q", EnvScorer, c.Scorer)
	}
	if c.HybridAlpha < 0 || c.HybridAlpha > 1 {
		return fmt.Errorf("%s: must be in [0, 1], got %v", EnvHybridAlpha, c.HybridAlpha)
	}
	if c.Cache.Size <= 0 {
		return fmt.Errorf("%s: must be positive, got %d", EnvCacheSize, c.Cache.Size)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("%s: must be positive, got %s", EnvCacheTTL, c.Cache.TTL)
	}
	if c.Cache.NegativeTTL < 0 {
		return fmt.Errorf("%s: must not be negative, got %s", EnvNegativeTTL, c.Cache.NegativeTTL)
	}
	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("%s: must be positive, got %s", EnvUpstreamTimeout, c.UpstreamTimeout)
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("%s: must not be negative, got %d", EnvMaxRetries, c.Retry.MaxRetries)
	}
	if err := c.Ranking.Validate(); err != nil {
		return fmt.Errorf("ranking: %w", err)
	}
	return nil
}

// NeedsEmbedder reports whether the configured scorer uses embeddings
func (c *Config) NeedsEmbedder() bool {
	return c.Scorer == scorer.ModeEmbedding || c.Scorer == scorer.ModeHybrid
}

type parser struct {
	getenv func(string) string
	errs   []error
}

func (p *parser) str(key string) string {
	return strings.TrimSpace(p.getenv(key))
}

func (p *parser) int(key string, dst *int) {
	raw := p.str(key)
	if raw == "" {
		return
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid integer %q", key, raw))
		return
	}
	*dst = v
}

func (p *parser) float(key string, dst *float64) {
	raw := p.str(key)
	if raw == "" {
		return
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid number %q", key, raw))
		return
	}
	*dst = v
}

// duration accepts Go duration strings ("90s", "15m") or plain seconds
func (p *parser) duration(key string, dst *time.Duration) {
	raw := p.str(key)
	if raw == "" {
		return
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		*dst = time.Duration(secs) * time.Second
		return
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid duration %q", key, raw))
		return
	}
	*dst = v
}

func expandHome(path string) (string, error) {
	if path == ":memory:" || !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
