// Package config loads and validates notedex configuration.
//
// Configuration sources, lowest to highest priority:
//  1. Built-in defaults (DefaultConfig)
//  2. Config file (<vault>/.notedex/config.yaml)
//  3. Environment variables (NOTEDEX_*)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	nderrors "github.com/notedex/notedex/internal/errors"
)

// ConfigFileName is the config file name inside the data directory.
const ConfigFileName = "config.yaml"

// DataDirName is the per-vault data directory.
const DataDirName = ".notedex"

// Config represents the complete notedex configuration.
type Config struct {
	Version    int              `yaml:"version"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Store      StoreConfig      `yaml:"store"`
	Search     SearchConfig     `yaml:"search"`
	Indexing   IndexingConfig   `yaml:"indexing"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ChunkingConfig configures the token-window chunker.
type ChunkingConfig struct {
	// MaxSize is the window size in whitespace tokens.
	MaxSize int `yaml:"max_size"`

	// Overlap is the number of tokens shared by consecutive windows.
	// Must be strictly smaller than MaxSize.
	Overlap int `yaml:"overlap"`
}

// EmbeddingsConfig configures the embedding provider chain.
type EmbeddingsConfig struct {
	// Provider selects the provider: "remote", "local", or "auto".
	// "auto" probes the remote server and falls back to local.
	Provider string `yaml:"provider"`

	// Endpoint is the remote embedding server base URL.
	Endpoint string `yaml:"endpoint"`

	// Dimensions is the embedding dimension. Zero means auto-detect from the
	// remote server's model-info endpoint (local provider always reports its
	// own fixed dimension).
	Dimensions int `yaml:"dimensions"`

	// Timeout bounds each embedding HTTP request.
	Timeout time.Duration `yaml:"timeout"`

	// CacheSize is the LRU embedding cache capacity (0 disables caching).
	CacheSize int `yaml:"cache_size"`
}

// StoreConfig configures the vector store backend.
type StoreConfig struct {
	// Backend selects the implementation: "remote", "memory", or "mock".
	// The choice is made once at construction, never per call.
	Backend string `yaml:"backend"`

	// Endpoint is the remote ANN service base URL (remote backend only).
	Endpoint string `yaml:"endpoint"`

	// APIKey authenticates against the remote ANN service. Usually supplied
	// via NOTEDEX_STORE_API_KEY rather than the config file.
	APIKey string `yaml:"api_key"`

	// Namespace isolates this vault's vectors in a shared backend.
	Namespace string `yaml:"namespace"`
}

// SearchConfig configures hybrid search parameters.
type SearchConfig struct {
	// SemanticWeight and KeywordWeight are the default hybrid fusion weights.
	// Must sum to 1.0 within 0.01.
	SemanticWeight float64 `yaml:"semantic_weight"`
	KeywordWeight  float64 `yaml:"keyword_weight"`

	// Threshold is the default minimum result score (0..1).
	Threshold float64 `yaml:"threshold"`

	// TopK is the default result count.
	TopK int `yaml:"top_k"`

	// CacheTTL bounds how long cached search results stay valid.
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// CacheSize bounds the number of cached search entries.
	CacheSize int `yaml:"cache_size"`
}

// IndexingConfig configures the incremental index manager.
type IndexingConfig struct {
	// BatchSize is the number of chunks per embedding batch.
	BatchSize int `yaml:"batch_size"`

	// Concurrency is the number of embedding batches in flight at once.
	Concurrency int `yaml:"concurrency"`

	// MaxFileSize is the per-document size cap in bytes. Oversized documents
	// are counted as skipped, never retried.
	MaxFileSize int64 `yaml:"max_file_size"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Chunking: ChunkingConfig{
			MaxSize: 1000,
			Overlap: 200,
		},
		Embeddings: EmbeddingsConfig{
			Provider:  "auto",
			Endpoint:  "http://localhost:8000",
			Timeout:   30 * time.Second,
			CacheSize: 1000,
		},
		Store: StoreConfig{
			Backend: "memory",
		},
		Search: SearchConfig{
			SemanticWeight: 0.7,
			KeywordWeight:  0.3,
			Threshold:      0.3,
			TopK:           10,
			CacheTTL:       5 * time.Minute,
			CacheSize:      512,
		},
		Indexing: IndexingConfig{
			BatchSize:   32,
			Concurrency: 4,
			MaxFileSize: 10 * 1024 * 1024,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DataDir returns the data directory for a vault root.
func DataDir(root string) string {
	return filepath.Join(root, DataDirName)
}

// Load reads configuration for the given vault root.
// A missing config file is not an error; defaults apply.
func Load(root string) (*Config, error) {
	cfg := DefaultConfig()

	path := filepath.Join(DataDir(root), ConfigFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(cfg)
			return cfg, cfg.Validate()
		}
		return nil, nderrors.Wrap(nderrors.ErrCodeConfigNotFound, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, nderrors.ConfigError(fmt.Sprintf("parse %s", path), err)
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to the vault's data directory.
func Save(root string, cfg *Config) error {
	dir := DataDir(root)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(filepath.Join(dir, ConfigFileName), data, 0o644)
}

// applyEnvOverrides applies NOTEDEX_* environment variables.
// Env vars take precedence over the config file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NOTEDEX_EMBED_ENDPOINT"); v != "" {
		cfg.Embeddings.Endpoint = v
	}
	if v := os.Getenv("NOTEDEX_EMBED_PROVIDER"); v != "" {
		cfg.Embeddings.Provider = v
	}
	if v := os.Getenv("NOTEDEX_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("NOTEDEX_STORE_ENDPOINT"); v != "" {
		cfg.Store.Endpoint = v
	}
	if v := os.Getenv("NOTEDEX_STORE_API_KEY"); v != "" {
		cfg.Store.APIKey = v
	}
	if v := os.Getenv("NOTEDEX_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Chunking.MaxSize <= 0 {
		return nderrors.ConfigError("chunking.max_size must be positive", nil)
	}
	if c.Chunking.Overlap < 0 {
		return nderrors.ConfigError("chunking.overlap must not be negative", nil)
	}
	if c.Chunking.Overlap >= c.Chunking.MaxSize {
		return nderrors.New(nderrors.ErrCodeChunkOverlap,
			fmt.Sprintf("chunking.overlap (%d) must be smaller than max_size (%d)",
				c.Chunking.Overlap, c.Chunking.MaxSize), nil)
	}

	switch c.Embeddings.Provider {
	case "remote", "local", "auto":
	default:
		return nderrors.ConfigError(
			fmt.Sprintf("embeddings.provider %q is not one of remote, local, auto", c.Embeddings.Provider), nil)
	}

	switch c.Store.Backend {
	case "remote", "memory", "mock":
	default:
		return nderrors.ConfigError(
			fmt.Sprintf("store.backend %q is not one of remote, memory, mock", c.Store.Backend), nil)
	}
	if c.Store.Backend == "remote" && c.Store.Endpoint == "" {
		return nderrors.ConfigError("store.endpoint is required for the remote backend", nil)
	}

	sum := c.Search.SemanticWeight + c.Search.KeywordWeight
	if sum < 0.99 || sum > 1.01 {
		return nderrors.InvalidWeightError(c.Search.SemanticWeight, c.Search.KeywordWeight)
	}

	if c.Indexing.BatchSize <= 0 {
		return nderrors.ConfigError("indexing.batch_size must be positive", nil)
	}
	if c.Indexing.Concurrency <= 0 {
		return nderrors.ConfigError("indexing.concurrency must be positive", nil)
	}

	return nil
}
