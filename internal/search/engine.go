package search

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/notedex/notedex/internal/embed"
	nderrors "github.com/notedex/notedex/internal/errors"
	"github.com/notedex/notedex/internal/index"
	"github.com/notedex/notedex/internal/store"
)

// chunkOverfetch is how many extra chunk hits are pulled per requested
// document so collapsing chunks to documents still fills topK.
const chunkOverfetch = 4

// Engine answers search requests against the index.
// The record store is shared with the index manager and read without
// blocking; the single-active-run guard on the manager keeps writes
// single-threaded.
type Engine struct {
	provider embed.Provider
	vectors  store.VectorStore
	records  *index.RecordStore
	cache    *resultCache
	logger   *slog.Logger
	defaults Options
}

// EngineConfig assembles an Engine.
type EngineConfig struct {
	Provider embed.Provider
	Store    store.VectorStore
	Records  *index.RecordStore
	Logger   *slog.Logger

	// Defaults for per-request options left at zero.
	TopK           int
	Threshold      float64
	SemanticWeight float64
	KeywordWeight  float64

	// CacheSize and CacheTTL bound the result cache. CacheSize < 0
	// disables caching entirely.
	CacheSize int
	CacheTTL  time.Duration
}

// NewEngine creates a search engine.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.SemanticWeight == 0 && cfg.KeywordWeight == 0 {
		cfg.SemanticWeight = DefaultSemanticWeight
		cfg.KeywordWeight = DefaultKeywordWeight
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	var cache *resultCache
	if cfg.CacheSize >= 0 {
		cache = newResultCache(cfg.CacheSize, cfg.CacheTTL)
	}

	return &Engine{
		provider: cfg.Provider,
		vectors:  cfg.Store,
		records:  cfg.Records,
		cache:    cache,
		logger:   cfg.Logger,
		defaults: Options{
			TopK:           cfg.TopK,
			Threshold:      cfg.Threshold,
			SemanticWeight: cfg.SemanticWeight,
			KeywordWeight:  cfg.KeywordWeight,
		},
	}
}

// Search runs a query in the given mode.
func (e *Engine) Search(ctx context.Context, query string, mode Mode, opts Options) (*Response, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nderrors.EmptyInputError("search query must not be blank")
	}

	opts = opts.withDefaults(e.defaults)
	if err := opts.validate(mode); err != nil {
		return nil, err
	}

	key := cacheKey(mode, query, opts)
	if e.cache != nil {
		if resp, ok := e.cache.get(key); ok {
			e.logger.Debug("search cache hit", "mode", string(mode), "query", query)
			return resp, nil
		}
	}

	start := time.Now()
	var results []Result
	var err error

	switch mode {
	case ModeSemantic:
		results, err = e.semantic(ctx, query, opts)
	case ModeKeyword:
		results = e.keyword(query, opts)
	case ModeHybrid:
		results, err = e.hybrid(ctx, query, opts)
	default:
		return nil, nderrors.New(nderrors.ErrCodeInvalidQuery,
			"unknown search mode "+string(mode), nil)
	}
	if err != nil {
		return nil, err
	}

	final, total := finalize(results, opts.Threshold, opts.TopK)
	resp := &Response{Results: final, TotalFound: total}

	if e.cache != nil {
		e.cache.put(key, resp)
	}

	e.logger.Debug("search complete",
		"mode", string(mode),
		"query", query,
		"results", len(final),
		"total", total,
		"duration", time.Since(start))

	return resp, nil
}

// InvalidateCache drops all cached results. Called after indexing runs
// so fresh content is visible immediately instead of after TTL expiry.
func (e *Engine) InvalidateCache() {
	if e.cache != nil {
		e.cache.purge()
	}
}

// semantic embeds the query and collapses chunk hits to documents,
// keeping each document's best chunk score.
func (e *Engine) semantic(ctx context.Context, query string, opts Options) ([]Result, error) {
	vector, err := e.provider.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	matches, err := e.vectors.Query(ctx, vector, opts.TopK*chunkOverfetch, opts.Filter)
	if err != nil {
		return nil, err
	}

	byDoc := make(map[string]Result, len(matches))
	for _, m := range matches {
		score := float64(m.Score)
		if existing, ok := byDoc[m.Metadata.Path]; ok && existing.Score >= score {
			continue
		}
		byDoc[m.Metadata.Path] = Result{
			Path:          m.Metadata.Path,
			Title:         m.Metadata.Title,
			Tags:          m.Metadata.Tags,
			Snippet:       m.Metadata.Snippet,
			ModTime:       m.Metadata.ModTime,
			Score:         score,
			SemanticScore: score,
			MatchType:     ModeSemantic,
		}
	}

	results := make([]Result, 0, len(byDoc))
	for _, r := range byDoc {
		results = append(results, r)
	}
	return results, nil
}

// keyword scans indexed metadata and normalizes scores to 0..1.
func (e *Engine) keyword(query string, opts Options) []Result {
	results := keywordSearch(e.records, query, opts)
	normalizeKeywordScores(results)
	return results
}

// hybrid runs both branches concurrently and merges by document path:
// score = semantic*semanticWeight + keyword*keywordWeight. A document
// present in only one branch keeps that branch's score scaled by its
// weight.
func (e *Engine) hybrid(ctx context.Context, query string, opts Options) ([]Result, error) {
	var semResults, kwResults []Result

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// The branch threshold is applied after fusion, not here.
		var err error
		semResults, err = e.semantic(gctx, query, opts)
		return err
	})
	g.Go(func() error {
		kwResults = e.keyword(query, opts)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]Result, len(semResults)+len(kwResults))
	for _, r := range semResults {
		r.Score = r.SemanticScore * opts.SemanticWeight
		r.MatchType = ModeHybrid
		merged[r.Path] = r
	}
	for _, kw := range kwResults {
		if existing, ok := merged[kw.Path]; ok {
			existing.KeywordScore = kw.KeywordScore
			existing.Score = existing.SemanticScore*opts.SemanticWeight +
				kw.KeywordScore*opts.KeywordWeight
			existing.Highlights = kw.Highlights
			merged[kw.Path] = existing
			continue
		}
		kw.Score = kw.KeywordScore * opts.KeywordWeight
		kw.MatchType = ModeHybrid
		merged[kw.Path] = kw
	}

	results := make([]Result, 0, len(merged))
	for _, r := range merged {
		results = append(results, r)
	}
	return results, nil
}
