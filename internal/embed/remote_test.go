package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nderrors "github.com/notedex/notedex/internal/errors"
)

// fakeEmbedServer mimics the embedding server's HTTP API.
func fakeEmbedServer(t *testing.T, dims int, embedCalls *atomic.Int64) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "healthy", "model_loaded": true, "model_name": "test-model",
		})
	})
	mux.HandleFunc("/model-info", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model_name": "test-model", "dimension": dims,
		})
	})
	mux.HandleFunc("/embed", func(w http.ResponseWriter, r *http.Request) {
		if embedCalls != nil {
			embedCalls.Add(1)
		}
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		embeddings := make([][]float32, len(req.Texts))
		for i := range req.Texts {
			vec := make([]float32, dims)
			vec[i%dims] = 1.0
			embeddings[i] = vec
		}
		_ = json.NewEncoder(w).Encode(embedResponse{
			Embeddings: embeddings, ModelName: "test-model", Dimension: dims,
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRemoteProvider_ProbeDetectsDimensions(t *testing.T) {
	srv := fakeEmbedServer(t, 384, nil)

	p, err := NewRemoteProvider(context.Background(), RemoteConfig{Endpoint: srv.URL})
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, 384, p.Dimensions())
	assert.Equal(t, "test-model", p.ModelInfo().Name)
	assert.True(t, p.HealthCheck(context.Background()))
}

func TestRemoteProvider_EmbedBatchOrderAndLength(t *testing.T) {
	srv := fakeEmbedServer(t, 8, nil)
	p, err := NewRemoteProvider(context.Background(), RemoteConfig{Endpoint: srv.URL})
	require.NoError(t, err)
	defer p.Close()

	vectors, err := p.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	for i, vec := range vectors {
		assert.Len(t, vec, 8)
		assert.Equal(t, float32(1.0), vec[i%8])
	}
}

func TestRemoteProvider_BlankInputRejectedWithoutRequest(t *testing.T) {
	var calls atomic.Int64
	srv := fakeEmbedServer(t, 8, &calls)
	p, err := NewRemoteProvider(context.Background(), RemoteConfig{Endpoint: srv.URL})
	require.NoError(t, err)
	defer p.Close()

	_, err = p.EmbedBatch(context.Background(), []string{"ok", "  "})
	require.Error(t, err)
	assert.Equal(t, nderrors.ErrCodeEmptyInput, nderrors.CodeOf(err))
	assert.Equal(t, int64(0), calls.Load(), "blank input must be rejected before any HTTP call")
}

func TestRemoteProvider_UnreachableServerFailsConstruction(t *testing.T) {
	_, err := NewRemoteProvider(context.Background(), RemoteConfig{
		Endpoint: "http://127.0.0.1:1", // reserved port, nothing listens
	})
	require.Error(t, err)
	assert.Equal(t, nderrors.ErrCodeProviderUnavailable, nderrors.CodeOf(err))
}

func TestRemoteProvider_ServerErrorSurfacesAsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p, err := NewRemoteProvider(context.Background(), RemoteConfig{
		Endpoint:  srv.URL,
		SkipProbe: true,
		Retry:     nderrors.RetryConfig{MaxRetries: 1, InitialDelay: 1, MaxDelay: 1, Multiplier: 1},
	})
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.Equal(t, nderrors.ErrCodeProviderUnavailable, nderrors.CodeOf(err))
}
