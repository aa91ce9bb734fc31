package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	nderrors "github.com/notedex/notedex/internal/errors"
)

// DefaultRemoteEndpoint is the default embedding server base URL.
const DefaultRemoteEndpoint = "http://localhost:8000"

// RemoteConfig configures the remote embedding provider.
type RemoteConfig struct {
	// Endpoint is the embedding server base URL.
	Endpoint string

	// Dimensions is the expected embedding dimension.
	// Zero means auto-detect from /model-info.
	Dimensions int

	// Timeout bounds each HTTP request.
	Timeout time.Duration

	// Retry configures transient-failure retries per request.
	Retry nderrors.RetryConfig

	// SkipProbe skips the construction-time model-info probe (tests only).
	SkipProbe bool
}

// DefaultRemoteConfig returns sensible defaults.
func DefaultRemoteConfig() RemoteConfig {
	return RemoteConfig{
		Endpoint:   DefaultRemoteEndpoint,
		Timeout:    DefaultTimeout,
		Retry:      nderrors.DefaultRetryConfig(),
		Dimensions: 0,
	}
}

// RemoteProvider generates embeddings through the embedding server's
// HTTP API: POST /embed, GET /health, GET /model-info.
type RemoteProvider struct {
	client    *http.Client
	transport *http.Transport
	config    RemoteConfig

	mu        sync.RWMutex
	modelName string
	dims      int
	closed    bool
}

var _ Provider = (*RemoteProvider)(nil)

// embedRequest is the POST /embed payload.
type embedRequest struct {
	Texts     []string `json:"texts"`
	Normalize bool     `json:"normalize"`
}

// embedResponse is the POST /embed reply.
type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	ModelName  string      `json:"model_name"`
	Dimension  int         `json:"dimension"`
}

// healthResponse is the GET /health reply.
type healthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	ModelName   string `json:"model_name"`
}

// modelInfoResponse is the GET /model-info reply.
type modelInfoResponse struct {
	ModelName string `json:"model_name"`
	Dimension int    `json:"dimension"`
}

// NewRemoteProvider creates a remote provider and probes the server's
// model info unless SkipProbe is set.
func NewRemoteProvider(ctx context.Context, cfg RemoteConfig) (*RemoteProvider, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultRemoteEndpoint
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.InitialDelay == 0 {
		cfg.Retry = nderrors.DefaultRetryConfig()
	}

	transport := &http.Transport{
		MaxIdleConns:        8,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     10 * time.Second,
	}

	p := &RemoteProvider{
		// Per-request context timeouts are used instead of a static client
		// timeout so callers keep cancellation control.
		client:    &http.Client{Transport: transport},
		transport: transport,
		config:    cfg,
		dims:      cfg.Dimensions,
	}

	if !cfg.SkipProbe {
		info, err := p.fetchModelInfo(ctx)
		if err != nil {
			transport.CloseIdleConnections()
			return nil, nderrors.ProviderUnavailable(
				fmt.Sprintf("embedding server at %s is unreachable", cfg.Endpoint), err).
				WithSuggestion("start the embedding server or set embeddings.provider to local")
		}
		p.modelName = info.ModelName
		if p.dims == 0 {
			p.dims = info.Dimension
		}
	}
	if p.dims == 0 {
		p.dims = RemoteDimensions
	}

	return p, nil
}

// Embed generates an embedding for a single text.
func (p *RemoteProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts.
// The reply is order-preserving with exactly one vector per input.
func (p *RemoteProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, fmt.Errorf("remote provider is closed")
	}
	p.mu.RUnlock()

	if len(texts) == 0 {
		return nil, nderrors.EmptyInputError("cannot embed an empty batch")
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, nderrors.EmptyInputError(fmt.Sprintf("batch item %d is blank", i))
		}
	}
	if len(texts) > MaxBatchSize {
		return nil, nderrors.ConfigError(
			fmt.Sprintf("batch of %d exceeds maximum %d", len(texts), MaxBatchSize), nil)
	}

	var resp embedResponse
	err := nderrors.Retry(ctx, p.config.Retry, func() error {
		return p.doEmbed(ctx, texts, &resp)
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding server returned %d vectors for %d texts",
			len(resp.Embeddings), len(texts))
	}

	p.mu.Lock()
	if resp.ModelName != "" {
		p.modelName = resp.ModelName
	}
	if resp.Dimension > 0 {
		p.dims = resp.Dimension
	}
	p.mu.Unlock()

	return resp.Embeddings, nil
}

// doEmbed performs one POST /embed request.
func (p *RemoteProvider) doEmbed(ctx context.Context, texts []string, out *embedResponse) error {
	reqCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	body, err := json.Marshal(embedRequest{Texts: texts, Normalize: true})
	if err != nil {
		return fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, p.config.Endpoint+"/embed", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nderrors.ProviderUnavailable("embed request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nderrors.ProviderUnavailable(
			fmt.Sprintf("embedding server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode embed response: %w", err)
	}
	return nil
}

// Dimensions returns the embedding dimension.
func (p *RemoteProvider) Dimensions() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dims
}

// ModelInfo returns the model description.
func (p *RemoteProvider) ModelInfo() ModelInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()
	name := p.modelName
	if name == "" {
		name = "remote"
	}
	return ModelInfo{Name: name, Dimensions: p.dims, Kind: "remote"}
}

// HealthCheck probes GET /health.
// Only a 200 reply with model_loaded=true counts as healthy.
func (p *RemoteProvider) HealthCheck(ctx context.Context) bool {
	reqCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, p.config.Endpoint+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return false
	}
	return health.ModelLoaded
}

// fetchModelInfo probes GET /model-info.
func (p *RemoteProvider) fetchModelInfo(ctx context.Context) (*modelInfoResponse, error) {
	reqCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, p.config.Endpoint+"/model-info", nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model-info returned %d", resp.StatusCode)
	}

	var info modelInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode model-info: %w", err)
	}
	return &info, nil
}

// Close releases HTTP resources.
func (p *RemoteProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	p.transport.CloseIdleConnections()
	return nil
}
