package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nderrors "github.com/notedex/notedex/internal/errors"
)

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	// Vectors are unit-normalized, so the dot product is the cosine.
	return dot
}

func TestLocalProvider_Deterministic(t *testing.T) {
	p := NewLocalProvider()
	ctx := context.Background()

	a, err := p.Embed(ctx, "alpha beta gamma")
	require.NoError(t, err)
	b, err := p.Embed(ctx, "alpha beta gamma")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, LocalDimensions)
}

func TestLocalProvider_BlankInputRejected(t *testing.T) {
	p := NewLocalProvider()

	_, err := p.Embed(context.Background(), "   \n ")
	require.Error(t, err)
	assert.Equal(t, nderrors.ErrCodeEmptyInput, nderrors.CodeOf(err))

	_, err = p.EmbedBatch(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, nderrors.ErrCodeEmptyInput, nderrors.CodeOf(err))
}

func TestLocalProvider_TokenOverlapIncreasesSimilarity(t *testing.T) {
	p := NewLocalProvider()
	ctx := context.Background()

	alpha, err := p.Embed(ctx, "alpha beta")
	require.NoError(t, err)
	alphaQuery, err := p.Embed(ctx, "alpha")
	require.NoError(t, err)
	gamma, err := p.Embed(ctx, "beta gamma")
	require.NoError(t, err)

	simAlpha := cosine(alphaQuery, alpha)
	simGamma := cosine(alphaQuery, gamma)
	assert.Greater(t, simAlpha, simGamma,
		"a document containing the query token must score higher")
}

func TestLocalProvider_BatchOrderPreserving(t *testing.T) {
	p := NewLocalProvider()
	ctx := context.Background()

	texts := []string{"one", "two", "three"}
	vectors, err := p.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, vectors, 3)

	for i, text := range texts {
		single, err := p.Embed(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, single, vectors[i], "batch item %d differs from single embed", i)
	}
}

func TestLocalProvider_UnitNorm(t *testing.T) {
	p := NewLocalProvider()
	vec, err := p.Embed(context.Background(), "normalize me please")
	require.NoError(t, err)

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, sum, 1e-5)
}

func TestLocalProvider_ClosedFails(t *testing.T) {
	p := NewLocalProvider()
	require.NoError(t, p.Close())

	_, err := p.Embed(context.Background(), "text")
	assert.Error(t, err)
	assert.False(t, p.HealthCheck(context.Background()))
}
