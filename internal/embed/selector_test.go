package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nderrors "github.com/notedex/notedex/internal/errors"
)

// flakyProvider fails every call once failAfter calls have succeeded.
type flakyProvider struct {
	*LocalProvider
	healthy   bool
	failCalls bool
	calls     int
}

func (f *flakyProvider) HealthCheck(ctx context.Context) bool {
	return f.healthy
}

func (f *flakyProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.failCalls {
		return nil, nderrors.ProviderUnavailable("connection reset", nil)
	}
	return f.LocalProvider.Embed(ctx, text)
}

func (f *flakyProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.failCalls {
		return nil, nderrors.ProviderUnavailable("connection reset", nil)
	}
	return f.LocalProvider.EmbedBatch(ctx, texts)
}

func (f *flakyProvider) ModelInfo() ModelInfo {
	return ModelInfo{Name: "flaky-remote", Dimensions: LocalDimensions, Kind: "remote"}
}

func TestSelector_StartsRemoteWhenHealthy(t *testing.T) {
	remote := &flakyProvider{LocalProvider: NewLocalProvider(), healthy: true}
	s := NewSelector(context.Background(), remote, NewLocalProvider())

	assert.Equal(t, StateRemote, s.State())

	_, err := s.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, 1, remote.calls)
}

func TestSelector_StartsLocalWhenRemoteUnhealthy(t *testing.T) {
	remote := &flakyProvider{LocalProvider: NewLocalProvider(), healthy: false}
	s := NewSelector(context.Background(), remote, NewLocalProvider())

	assert.Equal(t, StateLocal, s.State())
}

func TestSelector_StartsLocalWithNilRemote(t *testing.T) {
	s := NewSelector(context.Background(), nil, NewLocalProvider())
	assert.Equal(t, StateLocal, s.State())

	vec, err := s.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, LocalDimensions)
}

func TestSelector_DowngradeIsOneWay(t *testing.T) {
	remote := &flakyProvider{LocalProvider: NewLocalProvider(), healthy: true}
	s := NewSelector(context.Background(), remote, NewLocalProvider())
	require.Equal(t, StateRemote, s.State())

	// Remote starts failing at request time.
	remote.failCalls = true

	vec, err := s.Embed(context.Background(), "hello")
	require.NoError(t, err, "the failed call must be served by the local fallback")
	assert.Len(t, vec, LocalDimensions)
	assert.Equal(t, StateLocal, s.State())

	// Remote recovers, but no automatic flap back.
	remote.failCalls = false
	_, err = s.Embed(context.Background(), "again")
	require.NoError(t, err)
	assert.Equal(t, StateLocal, s.State())
	assert.Equal(t, 1, remote.calls, "remote must not be consulted after downgrade")
}

func TestSelector_DimensionStableAcrossDowngrade(t *testing.T) {
	remote := &flakyProvider{LocalProvider: NewLocalProvider(), healthy: true}
	s := NewSelector(context.Background(), remote, NewLocalProvider())
	require.Equal(t, StateRemote, s.State())

	dims := s.Dimensions()
	require.Equal(t, RemoteDimensions, dims)

	remote.failCalls = true
	vec, err := s.Embed(context.Background(), "note body")
	require.NoError(t, err)
	require.Equal(t, StateLocal, s.State())

	assert.Len(t, vec, dims, "fallback vectors must fit a store sized before the downgrade")
	assert.Equal(t, dims, s.Dimensions())
	assert.Equal(t, RemoteDimensions, NewLocalProvider().Dimensions(),
		"the fallback pins the remote model's dimension")
}

func TestSelector_PromoteRequiresFreshProbe(t *testing.T) {
	remote := &flakyProvider{LocalProvider: NewLocalProvider(), healthy: true}
	s := NewSelector(context.Background(), remote, NewLocalProvider())

	remote.failCalls = true
	_, _ = s.Embed(context.Background(), "trigger downgrade")
	require.Equal(t, StateLocal, s.State())

	// Unhealthy probe: promotion refused.
	remote.healthy = false
	assert.False(t, s.Promote(context.Background()))
	assert.Equal(t, StateLocal, s.State())

	// Healthy probe: promotion succeeds.
	remote.healthy = true
	remote.failCalls = false
	assert.True(t, s.Promote(context.Background()))
	assert.Equal(t, StateRemote, s.State())
}

func TestSelector_EmptyInputDoesNotDowngrade(t *testing.T) {
	remote := &flakyProvider{LocalProvider: NewLocalProvider(), healthy: true}
	s := NewSelector(context.Background(), remote, NewLocalProvider())

	_, err := s.Embed(context.Background(), "  ")
	require.Error(t, err)
	assert.Equal(t, nderrors.ErrCodeEmptyInput, nderrors.CodeOf(err))
	assert.Equal(t, StateRemote, s.State(), "caller-fault errors must not trigger a downgrade")
}

func TestCachedProvider_SecondCallSkipsBackend(t *testing.T) {
	remote := &flakyProvider{LocalProvider: NewLocalProvider(), healthy: true}
	c := NewCachedProvider(remote, 10)

	_, err := c.Embed(context.Background(), "repeat me")
	require.NoError(t, err)
	_, err = c.Embed(context.Background(), "repeat me")
	require.NoError(t, err)

	assert.Equal(t, 1, remote.calls)
}

func TestCachedProvider_BatchMixedHitsOnlySendsMisses(t *testing.T) {
	remote := &flakyProvider{LocalProvider: NewLocalProvider(), healthy: true}
	c := NewCachedProvider(remote, 10)
	ctx := context.Background()

	_, err := c.Embed(ctx, "cached")
	require.NoError(t, err)

	vectors, err := c.EmbedBatch(ctx, []string{"cached", "fresh"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, 2, remote.calls, "one single embed + one batch for the miss")
}
