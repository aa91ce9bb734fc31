package store

import (
	"fmt"
	"log/slog"

	"github.com/notedex/notedex/internal/config"
	nderrors "github.com/notedex/notedex/internal/errors"
)

// NewFromConfig builds the vector store selected by cfg.Backend.
// The choice is made once here; callers only see the VectorStore
// interface afterwards.
func NewFromConfig(cfg config.StoreConfig, dims int, logger *slog.Logger) (VectorStore, error) {
	switch cfg.Backend {
	case "memory", "":
		return NewMemoryStore(MemoryConfig{Dimensions: dims})
	case "remote":
		return NewRemoteStore(RemoteConfig{
			Endpoint:   cfg.Endpoint,
			APIKey:     cfg.APIKey,
			Namespace:  cfg.Namespace,
			Dimensions: dims,
		})
	case "mock":
		return NewMockStore(dims, logger), nil
	default:
		return nil, nderrors.ConfigError(
			fmt.Sprintf("unknown store backend %q (expected remote, memory, or mock)", cfg.Backend), nil)
	}
}
