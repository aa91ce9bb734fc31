// Package store persists chunk vectors and answers similarity queries.
//
// Three implementations share the VectorStore interface: RemoteStore (a
// managed ANN service over HTTP), MemoryStore (in-process HNSW), and
// MockStore (a clearly flagged stand-in that synthesizes low-confidence
// results so indexing workflows stay testable without a backend). The
// implementation is selected once at construction, never per call.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// EntryMeta is the denormalized document and chunk metadata stored with
// each vector, used for filtering and result presentation.
type EntryMeta struct {
	// Path is the owning document's vault-relative path.
	Path string `json:"path"`

	// Title is the document title.
	Title string `json:"title"`

	// Tags are the document's tags.
	Tags []string `json:"tags,omitempty"`

	// Ordinal is the chunk position (-1 for the title chunk).
	Ordinal int `json:"ordinal"`

	// ChunkCount is the document's content chunk count.
	ChunkCount int `json:"chunkCount"`

	// ModTime is the document modification time.
	ModTime time.Time `json:"modTime"`

	// Snippet is a short body excerpt.
	Snippet string `json:"snippet,omitempty"`
}

// VectorEntry pairs a vector with its id and metadata.
// The Index Manager is the only writer.
type VectorEntry struct {
	ID       string    `json:"id"`
	Values   []float32 `json:"values"`
	Metadata EntryMeta `json:"metadata"`
}

// Match is one ranked similarity result.
type Match struct {
	ID       string    `json:"id"`
	Score    float32   `json:"score"`
	Metadata EntryMeta `json:"metadata"`
}

// Stats describes store contents.
type Stats struct {
	TotalVectors int    `json:"totalVectors"`
	Dimension    int    `json:"dimension"`
	Mode         string `json:"mode"`
}

// Filter restricts query results by metadata.
// All set predicates must hold (AND logic); zero values are ignored.
type Filter struct {
	// Tags matches entries carrying at least one of these tags.
	Tags []string `json:"tags,omitempty"`

	// PathPrefix matches entries whose path starts with this prefix.
	PathPrefix string `json:"pathPrefix,omitempty"`

	// ModifiedAfter / ModifiedBefore bound the document modification time.
	ModifiedAfter  time.Time `json:"modifiedAfter,omitempty"`
	ModifiedBefore time.Time `json:"modifiedBefore,omitempty"`
}

// Matches reports whether meta passes every set predicate.
func (f *Filter) Matches(meta EntryMeta) bool {
	if f == nil {
		return true
	}

	if len(f.Tags) > 0 {
		found := false
		for _, want := range f.Tags {
			for _, have := range meta.Tags {
				if strings.EqualFold(want, have) {
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		if !found {
			return false
		}
	}

	if f.PathPrefix != "" && !strings.HasPrefix(meta.Path, f.PathPrefix) {
		return false
	}

	if !f.ModifiedAfter.IsZero() && !meta.ModTime.After(f.ModifiedAfter) {
		return false
	}
	if !f.ModifiedBefore.IsZero() && !meta.ModTime.Before(f.ModifiedBefore) {
		return false
	}

	return true
}

// VectorStore persists vectors with metadata and answers approximate
// similarity queries.
type VectorStore interface {
	// UpsertBatch inserts or replaces entries, idempotent by id.
	// Last writer wins on identical ids.
	UpsertBatch(ctx context.Context, entries []VectorEntry) error

	// Query returns up to topK matches ranked by descending similarity.
	// topK must be >= 1.
	Query(ctx context.Context, vector []float32, topK int, filter *Filter) ([]Match, error)

	// DeleteBatch removes entries by id; unknown ids are no-ops.
	DeleteBatch(ctx context.Context, ids []string) error

	// Stats returns store contents summary.
	Stats(ctx context.Context) (Stats, error)

	// Close releases resources.
	Close() error
}

// ErrDimensionMismatch indicates vector dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (reindex with --force)", e.Expected, e.Got)
}

// validateTopK rejects nonsensical topK values uniformly across stores.
func validateTopK(topK int) error {
	if topK < 1 {
		return fmt.Errorf("topK must be >= 1, got %d", topK)
	}
	return nil
}

func errClosed() error {
	return fmt.Errorf("vector store is closed")
}
