package search

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notedex/notedex/internal/chunk"
	"github.com/notedex/notedex/internal/embed"
	nderrors "github.com/notedex/notedex/internal/errors"
	"github.com/notedex/notedex/internal/index"
	"github.com/notedex/notedex/internal/store"
	"github.com/notedex/notedex/internal/vault"
)

type searchHarness struct {
	provider *embed.LocalProvider
	vectors  *store.MemoryStore
	records  *index.RecordStore
}

func newSearchHarness(t *testing.T) *searchHarness {
	t.Helper()

	vectors, err := store.NewMemoryStore(store.MemoryConfig{Dimensions: embed.LocalDimensions})
	require.NoError(t, err)
	t.Cleanup(func() { _ = vectors.Close() })

	return &searchHarness{
		provider: embed.NewLocalProvider(),
		vectors:  vectors,
		records:  index.NewRecordStore(filepath.Join(t.TempDir(), "records.json")),
	}
}

func (h *searchHarness) seed(t *testing.T, path, title, body string, tags ...string) {
	t.Helper()
	ctx := context.Background()

	vec, err := h.provider.Embed(ctx, title+" "+body)
	require.NoError(t, err)

	meta := store.EntryMeta{
		Path:    path,
		Title:   title,
		Tags:    tags,
		Snippet: body,
		ModTime: time.Now(),
	}
	require.NoError(t, h.vectors.UpsertBatch(ctx, []store.VectorEntry{
		{ID: chunk.ContentChunkID(path, 0), Values: vec, Metadata: meta},
	}))

	h.records.Put(path, index.Record{
		ContentHash: vault.HashContent(body),
		ChunkCount:  1,
		IndexedAt:   time.Now(),
		Metadata: vault.Metadata{
			Title:   title,
			Tags:    tags,
			Snippet: body,
			ModTime: meta.ModTime,
		},
	})
}

func (h *searchHarness) engine(cfg EngineConfig) *Engine {
	cfg.Provider = h.provider
	cfg.Store = h.vectors
	cfg.Records = h.records
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEngine(cfg)
}

func TestSearchRejectsBlankQuery(t *testing.T) {
	e := newSearchHarness(t).engine(EngineConfig{})

	_, err := e.Search(context.Background(), "   ", ModeKeyword, Options{})
	require.Error(t, err)
	assert.Equal(t, nderrors.ErrCodeEmptyInput, nderrors.CodeOf(err))
}

func TestSearchRejectsInvalidWeights(t *testing.T) {
	e := newSearchHarness(t).engine(EngineConfig{})
	ctx := context.Background()

	tests := []struct {
		name     string
		semantic float64
		keyword  float64
		wantErr  bool
	}{
		{name: "sum below range", semantic: 0.5, keyword: 0.3, wantErr: true},
		{name: "sum above range", semantic: 0.8, keyword: 0.4, wantErr: true},
		{name: "sum within epsilon", semantic: 0.7, keyword: 0.305},
		{name: "exact", semantic: 0.6, keyword: 0.4},
		{name: "negative weight", semantic: 1.2, keyword: -0.2, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Search(ctx, "query", ModeHybrid, Options{
				SemanticWeight: tt.semantic,
				KeywordWeight:  tt.keyword,
			})
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, nderrors.ErrCodeInvalidWeight, nderrors.CodeOf(err))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestKeywordScoringWeights(t *testing.T) {
	h := newSearchHarness(t)
	h.seed(t, "title.md", "beta release", "nothing relevant here")
	h.seed(t, "tag.md", "untitled", "nothing relevant here", "beta")
	h.seed(t, "body.md", "untitled", "the beta program is open")

	e := h.engine(EngineConfig{Threshold: 0.0001})
	resp, err := e.Search(context.Background(), "beta", ModeKeyword, Options{})
	require.NoError(t, err)
	require.Len(t, resp.Results, 3)

	// Title hits outrank tag hits outrank body hits.
	assert.Equal(t, "title.md", resp.Results[0].Path)
	assert.Equal(t, "tag.md", resp.Results[1].Path)
	assert.Equal(t, "body.md", resp.Results[2].Path)

	// Top raw score normalizes to 1.
	assert.InDelta(t, 1.0, resp.Results[0].Score, 1e-9)
	assert.Contains(t, resp.Results[0].Highlights, "title")
	assert.Contains(t, resp.Results[1].Highlights, "tag:beta")
	assert.Contains(t, resp.Results[2].Highlights, "body")
}

func TestKeywordCaseSensitivity(t *testing.T) {
	h := newSearchHarness(t)
	h.seed(t, "upper.md", "Beta Notes", "about the Beta program")

	e := h.engine(EngineConfig{Threshold: 0.0001})
	ctx := context.Background()

	resp, err := e.Search(ctx, "beta", ModeKeyword, Options{})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 1)

	resp, err = e.Search(ctx, "beta", ModeKeyword, Options{CaseSensitive: true})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestKeywordInvalidRegexDegradesToZeroMatches(t *testing.T) {
	h := newSearchHarness(t)
	h.seed(t, "a.md", "alpha", "alpha body")

	e := h.engine(EngineConfig{Threshold: 0.0001})
	resp, err := e.Search(context.Background(), "a[unclosed", ModeKeyword, Options{Regex: true})
	require.NoError(t, err, "invalid regex must degrade, never fail the search")
	assert.Empty(t, resp.Results)
	assert.Zero(t, resp.TotalFound)
}

func TestKeywordRegexMatching(t *testing.T) {
	h := newSearchHarness(t)
	h.seed(t, "a.md", "meeting 2024-01-15", "project sync")
	h.seed(t, "b.md", "groceries", "milk and eggs")

	e := h.engine(EngineConfig{Threshold: 0.0001})
	resp, err := e.Search(context.Background(), `\d{4}-\d{2}-\d{2}`, ModeKeyword, Options{Regex: true})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "a.md", resp.Results[0].Path)
}

func TestTwoDocumentCorpusScenario(t *testing.T) {
	h := newSearchHarness(t)
	h.seed(t, "a.md", "a", "alpha beta")
	h.seed(t, "b.md", "b", "beta gamma")

	e := h.engine(EngineConfig{Threshold: 0.0001})
	ctx := context.Background()

	kw, err := e.Search(ctx, "beta", ModeKeyword, Options{})
	require.NoError(t, err)
	require.Len(t, kw.Results, 2, "keyword search for beta finds both documents")

	sem, err := e.Search(ctx, "alpha", ModeSemantic, Options{Threshold: 0.0001})
	require.NoError(t, err)
	require.NotEmpty(t, sem.Results)
	assert.Equal(t, "a.md", sem.Results[0].Path,
		"token overlap puts the alpha document first")
}

func TestHybridScoreIsWeightedLinearCombination(t *testing.T) {
	h := newSearchHarness(t)
	h.seed(t, "a.md", "alpha notes", "alpha beta discussion")
	h.seed(t, "b.md", "other", "beta gamma review")
	h.seed(t, "c.md", "unrelated", "completely different topic")

	// Caching off so each mode recomputes from the same state.
	e := h.engine(EngineConfig{Threshold: 0.000001, CacheSize: -1})
	ctx := context.Background()
	opts := Options{SemanticWeight: 0.7, KeywordWeight: 0.3, TopK: 10}

	sem, err := e.Search(ctx, "alpha", ModeSemantic, opts)
	require.NoError(t, err)
	kw, err := e.Search(ctx, "alpha", ModeKeyword, opts)
	require.NoError(t, err)
	hybrid, err := e.Search(ctx, "alpha", ModeHybrid, opts)
	require.NoError(t, err)
	require.NotEmpty(t, hybrid.Results)

	semScores := make(map[string]float64)
	for _, r := range sem.Results {
		semScores[r.Path] = r.Score
	}
	kwScores := make(map[string]float64)
	for _, r := range kw.Results {
		kwScores[r.Path] = r.Score
	}

	for _, r := range hybrid.Results {
		want := semScores[r.Path]*0.7 + kwScores[r.Path]*0.3
		assert.InDelta(t, want, r.Score, 1e-6, "path %s", r.Path)
		assert.Equal(t, ModeHybrid, r.MatchType)
	}
}

func TestHybridDegenerateWeightsMatchSingleBranch(t *testing.T) {
	h := newSearchHarness(t)
	h.seed(t, "a.md", "vector cosine", "vector cosine distance")
	h.seed(t, "b.md", "groceries", "milk and eggs")

	e := h.engine(EngineConfig{Threshold: 0.000001, CacheSize: -1})
	ctx := context.Background()

	// All semantic weight: hybrid scores equal semantic scores.
	semOnly, err := e.Search(ctx, "vector", ModeSemantic, Options{TopK: 10})
	require.NoError(t, err)
	hybrid, err := e.Search(ctx, "vector", ModeHybrid, Options{
		SemanticWeight: 1.0, KeywordWeight: 0.0, TopK: 10,
	})
	require.NoError(t, err)
	require.NotEmpty(t, hybrid.Results)
	require.Len(t, hybrid.Results, len(semOnly.Results))
	for i := range hybrid.Results {
		assert.Equal(t, semOnly.Results[i].Path, hybrid.Results[i].Path)
		assert.InDelta(t, semOnly.Results[i].Score, hybrid.Results[i].Score, 1e-6)
	}

	// All keyword weight: a keyword-only hit keeps its full score.
	kwOnly, err := e.Search(ctx, "vector", ModeKeyword, Options{TopK: 10})
	require.NoError(t, err)
	require.Len(t, kwOnly.Results, 1)
	hybrid, err = e.Search(ctx, "vector", ModeHybrid, Options{
		SemanticWeight: 0.0, KeywordWeight: 1.0, TopK: 10,
	})
	require.NoError(t, err)
	require.NotEmpty(t, hybrid.Results)
	assert.Equal(t, kwOnly.Results[0].Path, hybrid.Results[0].Path)
	assert.InDelta(t, kwOnly.Results[0].Score, hybrid.Results[0].Score, 1e-6)
}

func TestSearchCacheHitWithinTTL(t *testing.T) {
	h := newSearchHarness(t)
	h.seed(t, "a.md", "alpha", "alpha body")

	e := h.engine(EngineConfig{Threshold: 0.0001})
	ctx := context.Background()

	first, err := e.Search(ctx, "alpha", ModeKeyword, Options{})
	require.NoError(t, err)
	assert.False(t, first.Cached)

	// New content is invisible to the cached query.
	h.seed(t, "b.md", "alpha two", "alpha body two")

	second, err := e.Search(ctx, "alpha", ModeKeyword, Options{})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Results, second.Results)
	assert.Equal(t, first.TotalFound, second.TotalFound)

	// Changed options miss the cache.
	third, err := e.Search(ctx, "alpha", ModeKeyword, Options{TopK: 5})
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Len(t, third.Results, 2)
}

func TestSearchCacheExpiry(t *testing.T) {
	h := newSearchHarness(t)
	h.seed(t, "a.md", "alpha", "alpha body")

	e := h.engine(EngineConfig{Threshold: 0.0001, CacheTTL: 30 * time.Millisecond})
	ctx := context.Background()

	_, err := e.Search(ctx, "alpha", ModeKeyword, Options{})
	require.NoError(t, err)

	h.seed(t, "b.md", "alpha two", "alpha body two")
	time.Sleep(60 * time.Millisecond)

	resp, err := e.Search(ctx, "alpha", ModeKeyword, Options{})
	require.NoError(t, err)
	assert.False(t, resp.Cached)
	assert.Len(t, resp.Results, 2, "expired entry recomputes against fresh state")
}

func TestSearchCacheInvalidation(t *testing.T) {
	h := newSearchHarness(t)
	h.seed(t, "a.md", "alpha", "alpha body")

	e := h.engine(EngineConfig{Threshold: 0.0001})
	ctx := context.Background()

	_, err := e.Search(ctx, "alpha", ModeKeyword, Options{})
	require.NoError(t, err)

	h.seed(t, "b.md", "alpha two", "alpha body two")
	e.InvalidateCache()

	resp, err := e.Search(ctx, "alpha", ModeKeyword, Options{})
	require.NoError(t, err)
	assert.False(t, resp.Cached)
	assert.Len(t, resp.Results, 2)
}

func TestSearchTopKAndTotalFound(t *testing.T) {
	h := newSearchHarness(t)
	for i := 0; i < 5; i++ {
		h.seed(t, fmt.Sprintf("n%d.md", i), fmt.Sprintf("alpha note %d", i), "alpha body")
	}

	e := h.engine(EngineConfig{Threshold: 0.0001})
	resp, err := e.Search(context.Background(), "alpha", ModeKeyword, Options{TopK: 3})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 3)
	assert.Equal(t, 5, resp.TotalFound)
}

func TestSearchFilterRestrictsResults(t *testing.T) {
	h := newSearchHarness(t)
	h.seed(t, "work/plan.md", "alpha plan", "alpha body", "work")
	h.seed(t, "home/list.md", "alpha list", "alpha body", "home")

	e := h.engine(EngineConfig{Threshold: 0.0001})
	resp, err := e.Search(context.Background(), "alpha", ModeKeyword, Options{
		Filter: &store.Filter{Tags: []string{"work"}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "work/plan.md", resp.Results[0].Path)
}

func TestParseMode(t *testing.T) {
	for _, valid := range []string{"semantic", "keyword", "hybrid"} {
		mode, err := ParseMode(valid)
		require.NoError(t, err)
		assert.Equal(t, Mode(valid), mode)
	}

	_, err := ParseMode("fuzzy")
	require.Error(t, err)
	assert.Equal(t, nderrors.ErrCodeInvalidQuery, nderrors.CodeOf(err))
}
