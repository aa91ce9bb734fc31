package embed

import (
	"context"
	"log/slog"
	"sync"
)

// State identifies which provider a Selector is currently using.
type State string

const (
	// StateRemote means the remote provider serves all calls.
	StateRemote State = "remote"
	// StateLocal means the local fallback serves all calls.
	StateLocal State = "local"
)

// Selector routes embedding calls to the remote provider while it is
// healthy, and downgrades to the local fallback on failure.
//
// The downgrade is one-way for the remainder of the process lifetime: a
// failing remote call flips the selector to local and it stays there, so
// index and query vectors keep a consistent dimension instead of flapping
// between models. Promote re-probes explicitly.
type Selector struct {
	remote Provider
	local  Provider

	mu    sync.RWMutex
	state State
}

var _ Provider = (*Selector)(nil)

// NewSelector builds a selector over the two providers and performs the
// initial health probe. remote may be nil (construction already failed), in
// which case the selector starts local.
func NewSelector(ctx context.Context, remote Provider, local Provider) *Selector {
	s := &Selector{
		remote: remote,
		local:  local,
		state:  StateLocal,
	}

	if remote != nil && remote.HealthCheck(ctx) {
		s.state = StateRemote
		slog.Info("embedding provider selected",
			slog.String("provider", string(StateRemote)),
			slog.String("model", remote.ModelInfo().Name))
	} else {
		slog.Info("embedding provider selected",
			slog.String("provider", string(StateLocal)),
			slog.String("reason", "remote unavailable at startup"))
	}

	return s
}

// State returns the current provider state.
func (s *Selector) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// active returns the provider for the current state.
func (s *Selector) active() Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == StateRemote {
		return s.remote
	}
	return s.local
}

// downgrade flips to the local provider after a remote failure.
// Idempotent; logs the transition exactly once.
func (s *Selector) downgrade(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateLocal {
		return
	}
	s.state = StateLocal
	slog.Warn("embedding provider downgraded",
		slog.String("from", string(StateRemote)),
		slog.String("to", string(StateLocal)),
		slog.String("error", err.Error()))
}

// Promote re-probes the remote provider and switches back if healthy.
// This is the only path from local back to remote.
func (s *Selector) Promote(ctx context.Context) bool {
	if s.remote == nil || !s.remote.HealthCheck(ctx) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRemote {
		return true
	}
	s.state = StateRemote
	slog.Info("embedding provider promoted",
		slog.String("from", string(StateLocal)),
		slog.String("to", string(StateRemote)))
	return true
}

// Embed routes to the active provider, downgrading on remote failure.
// After a downgrade the failed call is retried once on the local provider
// so callers never see a transient remote error.
func (s *Selector) Embed(ctx context.Context, text string) ([]float32, error) {
	provider := s.active()
	vec, err := provider.Embed(ctx, text)
	if err != nil && provider == s.remote && s.shouldDowngrade(ctx, err) {
		s.downgrade(err)
		return s.local.Embed(ctx, text)
	}
	return vec, err
}

// EmbedBatch routes to the active provider, downgrading on remote failure.
func (s *Selector) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	provider := s.active()
	vectors, err := provider.EmbedBatch(ctx, texts)
	if err != nil && provider == s.remote && s.shouldDowngrade(ctx, err) {
		s.downgrade(err)
		return s.local.EmbedBatch(ctx, texts)
	}
	return vectors, err
}

// shouldDowngrade filters out failures that are the caller's fault.
// Blank input or context cancellation would fail locally too.
func (s *Selector) shouldDowngrade(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return nderrorsIsTransient(err)
}

// Dimensions returns the active provider's dimension.
func (s *Selector) Dimensions() int {
	return s.active().Dimensions()
}

// ModelInfo returns the active provider's model description.
func (s *Selector) ModelInfo() ModelInfo {
	return s.active().ModelInfo()
}

// HealthCheck reports the active provider's health.
func (s *Selector) HealthCheck(ctx context.Context) bool {
	return s.active().HealthCheck(ctx)
}

// Close closes both providers.
func (s *Selector) Close() error {
	var firstErr error
	if s.remote != nil {
		if err := s.remote.Close(); err != nil {
			firstErr = err
		}
	}
	if err := s.local.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
