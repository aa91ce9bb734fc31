package store

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notedex/notedex/internal/config"
)

func configStoreConfig(backend string) config.StoreConfig {
	return config.StoreConfig{Backend: backend}
}

func newTestMockStore(t *testing.T) *MockStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewMockStore(3, logger)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMockStoreDeterministicSyntheticMatches(t *testing.T) {
	s := newTestMockStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertBatch(ctx, []VectorEntry{
		entry("b", []float32{0, 1, 0}, EntryMeta{Path: "b.md"}),
		entry("a", []float32{1, 0, 0}, EntryMeta{Path: "a.md"}),
		entry("c", []float32{0, 0, 1}, EntryMeta{Path: "c.md"}),
	}))

	first, err := s.Query(ctx, []float32{1, 0, 0}, 2, nil)
	require.NoError(t, err)
	second, err := s.Query(ctx, []float32{0, 0, 1}, 2, nil)
	require.NoError(t, err)

	// Query vector is irrelevant: matches come in sorted id order with
	// decaying synthetic scores.
	assert.Equal(t, first, second)
	require.Len(t, first, 2)
	assert.Equal(t, "a", first[0].ID)
	assert.Equal(t, "b", first[1].ID)
	assert.InDelta(t, 0.25, float64(first[0].Score), 0.001)
	assert.InDelta(t, 0.125, float64(first[1].Score), 0.001)
}

func TestMockStoreDeleteIsTruthful(t *testing.T) {
	s := newTestMockStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertBatch(ctx, []VectorEntry{
		entry("a", []float32{1, 0, 0}, EntryMeta{}),
		entry("b", []float32{0, 1, 0}, EntryMeta{}),
	}))
	require.NoError(t, s.DeleteBatch(ctx, []string{"a", "unknown"}))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalVectors)
	assert.Equal(t, "mock", stats.Mode)

	matches, err := s.Query(ctx, []float32{1, 0, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "b", matches[0].ID)
}

func TestMockStoreRespectsFilter(t *testing.T) {
	s := newTestMockStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertBatch(ctx, []VectorEntry{
		entry("a", []float32{1, 0, 0}, EntryMeta{Tags: []string{"keep"}}),
		entry("b", []float32{0, 1, 0}, EntryMeta{Tags: []string{"drop"}}),
	}))

	matches, err := s.Query(ctx, []float32{1, 0, 0}, 10, &Filter{Tags: []string{"keep"}})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "a", matches[0].ID)
}

func TestFactorySelectsBackend(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name    string
		backend string
		want    string
		wantErr bool
	}{
		{name: "memory", backend: "memory", want: "memory"},
		{name: "default is memory", backend: "", want: "memory"},
		{name: "mock", backend: "mock", want: "mock"},
		{name: "unknown rejected", backend: "pinecone", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewFromConfig(configStoreConfig(tt.backend), 3, logger)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer func() { _ = s.Close() }()

			stats, err := s.Stats(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, stats.Mode)
		})
	}
}
