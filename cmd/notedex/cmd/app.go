package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/notedex/notedex/internal/chunk"
	"github.com/notedex/notedex/internal/config"
	"github.com/notedex/notedex/internal/embed"
	"github.com/notedex/notedex/internal/index"
	"github.com/notedex/notedex/internal/logging"
	"github.com/notedex/notedex/internal/search"
	"github.com/notedex/notedex/internal/store"
	"github.com/notedex/notedex/internal/vault"
)

// vectorsFileName is the on-disk name of the in-process vector store.
const vectorsFileName = "vectors.hnsw"

// app wires the full stack for one vault: config, logging, embedding
// provider, vector store, index manager, and search engine.
type app struct {
	root     string
	cfg      *config.Config
	logger   *slog.Logger
	provider embed.Provider
	vectors  store.VectorStore
	records  *index.RecordStore
	manager  *index.Manager
	engine   *search.Engine

	// memStore is set when the memory backend is active, so the app can
	// persist vectors on shutdown.
	memStore *store.MemoryStore

	cleanups []func()
}

// newApp builds the stack for the given vault root.
func newApp(ctx context.Context, root string) (*app, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve vault root: %w", err)
	}

	cfg, err := config.Load(absRoot)
	if err != nil {
		return nil, err
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.WriteToStderr = false
	if cfg.Logging.File != "" {
		logCfg.FilePath = cfg.Logging.File
	}
	logger, logCleanup, err := logging.Setup(logCfg)
	if err != nil {
		return nil, err
	}

	a := &app{root: absRoot, cfg: cfg, logger: logger}
	a.cleanups = append(a.cleanups, logCleanup)

	provider, err := embed.NewFromConfig(ctx, cfg.Embeddings)
	if err != nil {
		a.close()
		return nil, err
	}
	a.provider = provider
	a.cleanups = append(a.cleanups, func() { _ = provider.Close() })

	vectors, err := store.NewFromConfig(cfg.Store, provider.Dimensions(), logger)
	if err != nil {
		a.close()
		return nil, err
	}
	a.vectors = vectors
	a.cleanups = append(a.cleanups, func() { _ = vectors.Close() })

	dataDir := config.DataDir(absRoot)

	if mem, ok := vectors.(*store.MemoryStore); ok {
		a.memStore = mem
		if err := mem.Load(filepath.Join(dataDir, vectorsFileName)); err != nil {
			a.close()
			return nil, fmt.Errorf("load vector store: %w", err)
		}
	}

	a.records = index.NewRecordStore(filepath.Join(dataDir, "records.json"))
	if err := a.records.Load(); err != nil {
		a.close()
		return nil, err
	}

	chunker, err := chunk.New(cfg.Chunking.MaxSize, cfg.Chunking.Overlap)
	if err != nil {
		a.close()
		return nil, err
	}

	a.manager = index.NewManager(index.Config{
		Scanner:     vault.NewScanner(absRoot, cfg.Indexing.MaxFileSize),
		Chunker:     chunker,
		Provider:    provider,
		Store:       vectors,
		Records:     a.records,
		Logger:      logger,
		BatchSize:   cfg.Indexing.BatchSize,
		Concurrency: cfg.Indexing.Concurrency,
	})

	a.engine = search.NewEngine(search.EngineConfig{
		Provider:       provider,
		Store:          vectors,
		Records:        a.records,
		Logger:         logger,
		TopK:           cfg.Search.TopK,
		Threshold:      cfg.Search.Threshold,
		SemanticWeight: cfg.Search.SemanticWeight,
		KeywordWeight:  cfg.Search.KeywordWeight,
		CacheSize:      cfg.Search.CacheSize,
		CacheTTL:       cfg.Search.CacheTTL,
	})

	return a, nil
}

// persistVectors saves the in-process store. Remote backends persist
// server-side and need nothing here.
func (a *app) persistVectors() error {
	if a.memStore == nil {
		return nil
	}
	return a.memStore.Save(filepath.Join(config.DataDir(a.root), vectorsFileName))
}

// close tears the stack down in reverse construction order.
func (a *app) close() {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
	a.cleanups = nil
}
