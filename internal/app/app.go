// Package app assembles the retrieval stack from a Config. The MCP server and
// the CLI subcommands share this wiring.
package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/dshills/doccontext-mcp/internal/cache"
	"github.com/dshills/doccontext-mcp/internal/config"
	"github.com/dshills/doccontext-mcp/internal/corpus"
	"github.com/dshills/doccontext-mcp/internal/embedder"
	"github.com/dshills/doccontext-mcp/internal/ranking"
	"github.com/dshills/doccontext-mcp/internal/retrieval"
	"github.com/dshills/doccontext-mcp/internal/scorer"
	"github.com/dshills/doccontext-mcp/internal/storage"
	"github.com/dshills/doccontext-mcp/pkg/types"
)

// App holds the wired components
type App struct {
	Config   *config.Config
	Store    storage.Storage
	Embedder embedder.Embedder // Nil unless the scorer needs embeddings
	Cache    *cache.Cache
	Service  *retrieval.Service
	Loader   *corpus.Loader
	Logger   *log.Logger
}

// New opens the corpus database and builds the retrieval stack on top of it
func New(cfg *config.Config, logger *log.Logger) (*App, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	store, err := storage.NewSQLiteStorage(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	a, err := Assemble(cfg, store, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return a, nil
}

// Assemble builds the stack over an already opened store
func Assemble(cfg *config.Config, store storage.Storage, logger *log.Logger) (*App, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	a := &App{Config: cfg, Store: store, Logger: logger}

	if cfg.NeedsEmbedder() {
		emb, err := embedder.New(cfg.Embedding)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
		a.Embedder = emb
		logger.Printf("embedder: %s/%s (%d dims)", emb.Provider(), emb.Model(), emb.Dimension())
	}

	sc, err := scorer.New(scorer.Config{
		Mode:     cfg.Scorer,
		Alpha:    cfg.HybridAlpha,
		Embedder: a.Embedder,
	})
	if err != nil {
		a.closeEmbedder()
		return nil, fmt.Errorf("failed to initialize scorer: %w", err)
	}

	engine, err := ranking.NewEngine(sc, cfg.Ranking)
	if err != nil {
		a.closeEmbedder()
		return nil, fmt.Errorf("failed to initialize ranking engine: %w", err)
	}

	cacheCfg := cfg.Cache
	cacheCfg.Logger = logger
	a.Cache, err = cache.New(cacheCfg)
	if err != nil {
		a.closeEmbedder()
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	a.Service, err = retrieval.NewService(store, engine, a.Cache, retrieval.Options{
		Catalog:         store,
		Retry:           cfg.Retry,
		UpstreamTimeout: cfg.UpstreamTimeout,
		Logger:          logger,
	})
	if err != nil {
		a.closeEmbedder()
		return nil, fmt.Errorf("failed to initialize retrieval service: %w", err)
	}

	a.Loader = corpus.NewLoader(store, corpus.Options{
		Logger: logger,
		OnLoaded: func(id types.LibraryID) {
			a.Service.Invalidate(id.Base())
		},
	})

	logger.Printf("scorer: %s, cache: %d entries, ttl %s", sc.Name(), cacheCfg.Size, cacheCfg.TTL)
	return a, nil
}

// LoadConfiguredCorpus loads Config.Corpus when it is set
func (a *App) LoadConfiguredCorpus(ctx context.Context) (*corpus.Statistics, error) {
	if a.Config.Corpus == "" {
		return nil, nil
	}
	stats, err := a.Loader.Load(ctx, a.Config.Corpus)
	if err != nil {
		return nil, fmt.Errorf("failed to load corpus %s: %w", a.Config.Corpus, err)
	}
	return stats, nil
}

// Close releases the store and embedder
func (a *App) Close() error {
	a.closeEmbedder()
	return a.Store.Close()
}

func (a *App) closeEmbedder() {
	if a.Embedder != nil {
		_ = a.Embedder.Close()
	}
}
