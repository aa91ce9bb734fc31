package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	nderrors "github.com/notedex/notedex/internal/errors"
)

// RemoteConfig configures the hosted vector store client.
type RemoteConfig struct {
	// Endpoint is the service base URL (required).
	Endpoint string

	// APIKey is sent on every request when set.
	APIKey string

	// Namespace partitions vectors inside a shared service.
	Namespace string

	// Dimensions is the expected vector dimension.
	Dimensions int

	// Timeout bounds each request (default: 30s).
	Timeout time.Duration

	// Retry controls transient failure handling.
	Retry nderrors.RetryConfig
}

// RemoteStore implements VectorStore against a hosted HTTP vector service.
//
// Wire surface:
//
//	POST /vectors/upsert  {"namespace","vectors":[{"id","values","metadata"}]}
//	POST /query           {"namespace","vector","topK","filter","includeMetadata"}
//	POST /vectors/delete  {"namespace","ids"}
//	GET  /stats?namespace=
type RemoteStore struct {
	endpoint  string
	apiKey    string
	namespace string
	dims      int
	timeout   time.Duration
	retry     nderrors.RetryConfig
	client    *http.Client
}

var _ VectorStore = (*RemoteStore)(nil)

type remoteVector struct {
	ID       string    `json:"id"`
	Values   []float32 `json:"values"`
	Metadata EntryMeta `json:"metadata"`
}

type upsertRequest struct {
	Namespace string         `json:"namespace,omitempty"`
	Vectors   []remoteVector `json:"vectors"`
}

type queryFilter struct {
	Tags       []string `json:"tags,omitempty"`
	PathPrefix string   `json:"pathPrefix,omitempty"`
}

type queryRequest struct {
	Namespace       string      `json:"namespace,omitempty"`
	Vector          []float32   `json:"vector"`
	TopK            int         `json:"topK"`
	Filter          *queryFilter `json:"filter,omitempty"`
	IncludeMetadata bool        `json:"includeMetadata"`
}

type queryResponse struct {
	Matches []struct {
		ID       string    `json:"id"`
		Score    float32   `json:"score"`
		Metadata EntryMeta `json:"metadata"`
	} `json:"matches"`
}

type deleteRequest struct {
	Namespace string   `json:"namespace,omitempty"`
	IDs       []string `json:"ids"`
}

type statsResponse struct {
	TotalVectors int `json:"totalVectors"`
	Dimension    int `json:"dimension"`
}

// NewRemoteStore creates a client for a hosted vector service.
func NewRemoteStore(cfg RemoteConfig) (*RemoteStore, error) {
	if cfg.Endpoint == "" {
		return nil, nderrors.ConfigError("remote store requires an endpoint", nil)
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.InitialDelay == 0 {
		cfg.Retry = nderrors.DefaultRetryConfig()
	}

	return &RemoteStore{
		endpoint:  strings.TrimSuffix(cfg.Endpoint, "/"),
		apiKey:    cfg.APIKey,
		namespace: cfg.Namespace,
		dims:      cfg.Dimensions,
		timeout:   cfg.Timeout,
		retry:     cfg.Retry,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// UpsertBatch sends entries to the service.
func (s *RemoteStore) UpsertBatch(ctx context.Context, entries []VectorEntry) error {
	if len(entries) == 0 {
		return nil
	}

	vectors := make([]remoteVector, len(entries))
	for i, e := range entries {
		if len(e.Values) != s.dims {
			return ErrDimensionMismatch{Expected: s.dims, Got: len(e.Values)}
		}
		vectors[i] = remoteVector{ID: e.ID, Values: e.Values, Metadata: e.Metadata}
	}

	return s.post(ctx, "/vectors/upsert", upsertRequest{Namespace: s.namespace, Vectors: vectors}, nil)
}

// Query asks the service for the topK nearest matches.
//
// Tag and path-prefix restrictions are pushed to the service; mod-time
// range restrictions are applied client-side because the wire filter
// does not carry timestamps.
func (s *RemoteStore) Query(ctx context.Context, vector []float32, topK int, filter *Filter) ([]Match, error) {
	if err := validateTopK(topK); err != nil {
		return nil, err
	}
	if len(vector) != s.dims {
		return nil, ErrDimensionMismatch{Expected: s.dims, Got: len(vector)}
	}

	req := queryRequest{
		Namespace:       s.namespace,
		Vector:          vector,
		TopK:            topK,
		IncludeMetadata: true,
	}
	needClientFilter := false
	if filter != nil {
		req.Filter = &queryFilter{Tags: filter.Tags, PathPrefix: filter.PathPrefix}
		if !filter.ModifiedAfter.IsZero() || !filter.ModifiedBefore.IsZero() {
			needClientFilter = true
			req.TopK = topK * 4
		}
	}

	var resp queryResponse
	if err := s.post(ctx, "/query", req, &resp); err != nil {
		return nil, err
	}

	matches := make([]Match, 0, topK)
	for _, m := range resp.Matches {
		if needClientFilter && !filter.Matches(m.Metadata) {
			continue
		}
		matches = append(matches, Match{ID: m.ID, Score: m.Score, Metadata: m.Metadata})
		if len(matches) == topK {
			break
		}
	}
	return matches, nil
}

// DeleteBatch removes vectors by id; unknown ids are no-ops server-side.
func (s *RemoteStore) DeleteBatch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.post(ctx, "/vectors/delete", deleteRequest{Namespace: s.namespace, IDs: ids}, nil)
}

// Stats queries the service for namespace totals.
func (s *RemoteStore) Stats(ctx context.Context) (Stats, error) {
	url := s.endpoint + "/stats"
	if s.namespace != "" {
		url += "?namespace=" + s.namespace
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("create stats request: %w", err)
	}
	s.setHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return Stats{}, nderrors.StoreUnavailable(s.endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Stats{}, nderrors.StoreUnavailable(s.endpoint,
			fmt.Errorf("stats returned status %d", resp.StatusCode))
	}

	var sr statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return Stats{}, fmt.Errorf("decode stats response: %w", err)
	}

	return Stats{TotalVectors: sr.TotalVectors, Dimension: sr.Dimension, Mode: "remote"}, nil
}

// Close releases idle connections.
func (s *RemoteStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *RemoteStore) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Api-Key", s.apiKey)
	}
}

func (s *RemoteStore) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	return nderrors.Retry(ctx, s.retry, func() error {
		reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, s.endpoint+path, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		s.setHeaders(req)

		resp, err := s.client.Do(req)
		if err != nil {
			return nderrors.StoreUnavailable(s.endpoint, err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nderrors.StoreUnavailable(s.endpoint,
				fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(snippet))))
		}

		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	})
}
