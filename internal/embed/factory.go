package embed

import (
	"context"
	"log/slog"

	"github.com/notedex/notedex/internal/config"
	nderrors "github.com/notedex/notedex/internal/errors"
)

// nderrorsIsTransient reports whether an embedding failure looks like a
// backend problem rather than bad input. Validation errors (blank text,
// oversized batch) must surface to the caller, not trigger a downgrade.
func nderrorsIsTransient(err error) bool {
	switch nderrors.CodeOf(err) {
	case nderrors.ErrCodeEmptyInput, nderrors.ErrCodeConfigInvalid:
		return false
	case nderrors.ErrCodeProviderUnavailable:
		return true
	default:
		// Foreign errors from the HTTP layer are treated as transient.
		return true
	}
}

// NewFromConfig builds the configured provider chain.
//
//	provider=local  -> local only
//	provider=remote -> remote only (construction fails if unreachable)
//	provider=auto   -> Selector over remote with local fallback
//
// The returned provider is wrapped with an LRU cache unless cache size is 0.
func NewFromConfig(ctx context.Context, cfg config.EmbeddingsConfig) (Provider, error) {
	var provider Provider

	switch cfg.Provider {
	case "local":
		provider = NewLocalProvider()

	case "remote":
		remote, err := NewRemoteProvider(ctx, RemoteConfig{
			Endpoint:   cfg.Endpoint,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		provider = remote

	default: // "auto"
		remote, err := NewRemoteProvider(ctx, RemoteConfig{
			Endpoint:   cfg.Endpoint,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout,
		})
		if err != nil {
			slog.Warn("remote embedding provider unavailable, starting local",
				slog.String("endpoint", cfg.Endpoint),
				slog.String("error", err.Error()))
			remote = nil
		}
		var remoteProvider Provider
		if remote != nil {
			remoteProvider = remote
		}
		provider = NewSelector(ctx, remoteProvider, NewLocalProvider())
	}

	if cfg.CacheSize != 0 {
		provider = NewCachedProvider(provider, cfg.CacheSize)
	}

	return provider, nil
}
