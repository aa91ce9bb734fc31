package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	nderrors "github.com/notedex/notedex/internal/errors"
)

// LocalProvider generates embeddings with a hash-projected term-frequency
// scheme. It needs no network or model files and is fully deterministic,
// with the useful property that literal token overlap between two texts
// increases their cosine similarity.
type LocalProvider struct {
	mu     sync.RWMutex
	closed bool
}

// Feature weights for vector generation.
const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

// stopWords are high-frequency words that carry no retrieval signal.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"is": true, "are": true, "was": true, "to": true, "of": true,
	"in": true, "on": true, "for": true, "with": true, "this": true,
	"that": true, "it": true, "as": true, "at": true, "be": true,
}

// NewLocalProvider creates the local fallback provider.
func NewLocalProvider() *LocalProvider {
	return &LocalProvider{}
}

var _ Provider = (*LocalProvider)(nil)

// Embed generates an embedding for a single text.
func (p *LocalProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, fmt.Errorf("local provider is closed")
	}
	p.mu.RUnlock()

	if strings.TrimSpace(text) == "" {
		return nil, nderrors.EmptyInputError("cannot embed blank text")
	}

	return normalizeVector(p.generateVector(text)), nil
}

// EmbedBatch generates embeddings for multiple texts, preserving order.
func (p *LocalProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nderrors.EmptyInputError("cannot embed an empty batch")
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := p.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// Dimensions returns the embedding dimension.
func (p *LocalProvider) Dimensions() int {
	return LocalDimensions
}

// ModelInfo returns the model description.
func (p *LocalProvider) ModelInfo() ModelInfo {
	return ModelInfo{
		Name:       "hash-tf",
		Dimensions: LocalDimensions,
		Kind:       "local",
	}
}

// HealthCheck always succeeds: the local provider has no dependencies.
func (p *LocalProvider) HealthCheck(ctx context.Context) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.closed
}

// Close releases resources.
func (p *LocalProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// generateVector projects token and n-gram features into a fixed dimension.
func (p *LocalProvider) generateVector(text string) []float32 {
	vector := make([]float32, LocalDimensions)

	tokens := tokenize(text)
	for _, token := range tokens {
		if stopWords[token] {
			continue
		}
		vector[hashToIndex(token, LocalDimensions)] += tokenWeight
	}

	normalized := strings.ToLower(text)
	for _, ngram := range extractNgrams(normalized, ngramSize) {
		vector[hashToIndex(ngram, LocalDimensions)] += ngramWeight
	}

	return vector
}

// tokenize lowercases and splits text into alphanumeric runs.
func tokenize(text string) []string {
	var tokens []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, strings.ToLower(current.String()))
			current.Reset()
		}
	}

	for _, r := range text {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			current.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()

	return tokens
}

// extractNgrams returns character n-grams of the given size.
func extractNgrams(text string, size int) []string {
	runes := []rune(text)
	if len(runes) < size {
		return nil
	}
	ngrams := make([]string, 0, len(runes)-size+1)
	for i := 0; i+size <= len(runes); i++ {
		ngrams = append(ngrams, string(runes[i:i+size]))
	}
	return ngrams
}

// hashToIndex maps a feature string to a vector index.
func hashToIndex(s string, dims int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % uint32(dims))
}
