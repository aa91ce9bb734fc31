// Package embed turns note text into fixed-dimension vectors.
//
// Two providers implement the same contract: a remote HTTP model server and
// a deterministic local hash-projection fallback. A Selector probes the
// remote provider once and downgrades to local on request-time failure; the
// downgrade is explicit, logged, and never reversed automatically.
package embed

import (
	"context"
	"math"
	"time"
)

// Common embedding constants.
const (
	// DefaultBatchSize is the default batch size for embedding requests.
	DefaultBatchSize = 32

	// MaxBatchSize caps batch size to prevent memory exhaustion.
	MaxBatchSize = 256

	// DefaultTimeout is the default timeout for remote embedding requests.
	DefaultTimeout = 30 * time.Second

	// RemoteDimensions is the embedding dimension of the remote model server.
	RemoteDimensions = 768

	// LocalDimensions matches RemoteDimensions so a downgrade from the
	// remote provider never invalidates vectors already in the store.
	LocalDimensions = RemoteDimensions
)

// ModelInfo describes a provider's model.
type ModelInfo struct {
	// Name is the model identifier (e.g., the sentence-transformer name).
	Name string
	// Dimensions is the embedding dimension.
	Dimensions int
	// Kind is "remote" or "local".
	Kind string
}

// Provider generates vector embeddings for text.
// Embed and EmbedBatch fail with EmptyInputError on blank input.
// EmbedBatch is order-preserving and returns exactly one vector per input.
type Provider interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelInfo returns the model description.
	ModelInfo() ModelInfo

	// HealthCheck reports whether the provider is ready.
	HealthCheck(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// normalizeVector normalizes a vector to unit length.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
