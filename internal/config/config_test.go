package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nderrors "github.com/notedex/notedex/internal/errors"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	root := t.TempDir()

	cfg, err := Load(root)
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Chunking.MaxSize)
	assert.Equal(t, 200, cfg.Chunking.Overlap)
	assert.Equal(t, "auto", cfg.Embeddings.Provider)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.InDelta(t, 1.0, cfg.Search.SemanticWeight+cfg.Search.KeywordWeight, 0.001)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, DataDirName)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	yaml := `
chunking:
  max_size: 500
  overlap: 100
store:
  backend: mock
search:
  semantic_weight: 0.6
  keyword_weight: 0.4
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(yaml), 0o644))

	cfg, err := Load(root)
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Chunking.MaxSize)
	assert.Equal(t, "mock", cfg.Store.Backend)
	assert.Equal(t, 0.6, cfg.Search.SemanticWeight)
	// Unset fields keep defaults.
	assert.Equal(t, 32, cfg.Indexing.BatchSize)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	root := t.TempDir()
	t.Setenv("NOTEDEX_EMBED_ENDPOINT", "http://embed.internal:8000")
	t.Setenv("NOTEDEX_STORE_BACKEND", "mock")

	cfg, err := Load(root)
	require.NoError(t, err)

	assert.Equal(t, "http://embed.internal:8000", cfg.Embeddings.Endpoint)
	assert.Equal(t, "mock", cfg.Store.Backend)
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		code   string
	}{
		{"overlap >= max_size", func(c *Config) { c.Chunking.Overlap = c.Chunking.MaxSize }, nderrors.ErrCodeChunkOverlap},
		{"weights not summing to 1", func(c *Config) { c.Search.SemanticWeight = 0.9 }, nderrors.ErrCodeInvalidWeight},
		{"unknown store backend", func(c *Config) { c.Store.Backend = "pinecone2" }, nderrors.ErrCodeConfigInvalid},
		{"remote store without endpoint", func(c *Config) { c.Store.Backend = "remote" }, nderrors.ErrCodeConfigInvalid},
		{"zero batch size", func(c *Config) { c.Indexing.BatchSize = 0 }, nderrors.ErrCodeConfigInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, tt.code, nderrors.CodeOf(err))
		})
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	root := t.TempDir()
	cfg := DefaultConfig()
	cfg.Chunking.MaxSize = 800
	cfg.Store.Backend = "mock"

	require.NoError(t, Save(root, cfg))

	loaded, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, 800, loaded.Chunking.MaxSize)
	assert.Equal(t, "mock", loaded.Store.Backend)
}
