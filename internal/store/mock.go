package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
)

// mockBaseScore is the synthetic similarity assigned to the top mock match.
const mockBaseScore = 0.25

// MockStore implements VectorStore without any real similarity math.
// It remembers upserted ids and metadata so delete and stats behave
// truthfully, but Query returns synthetic low-confidence matches in
// deterministic id order. It exists for offline smoke testing and must
// be requested explicitly; construction logs a warning so a mock never
// serves real traffic silently.
type MockStore struct {
	mu     sync.RWMutex
	dims   int
	meta   map[string]EntryMeta
	closed bool
}

var _ VectorStore = (*MockStore)(nil)

// NewMockStore creates a flagged mock store.
func NewMockStore(dims int, logger *slog.Logger) *MockStore {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("using mock vector store, search results are synthetic",
		"dimensions", dims)
	return &MockStore{
		dims: dims,
		meta: make(map[string]EntryMeta),
	}
}

// UpsertBatch records entry ids and metadata; vectors are discarded.
func (s *MockStore) UpsertBatch(ctx context.Context, entries []VectorEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errClosed()
	}

	for _, e := range entries {
		if len(e.Values) != s.dims {
			return ErrDimensionMismatch{Expected: s.dims, Got: len(e.Values)}
		}
		s.meta[e.ID] = e.Metadata
	}
	return nil
}

// Query returns up to topK synthetic matches. Ids are served in sorted
// order with scores decaying from mockBaseScore, so repeated queries
// over the same contents are byte-identical.
func (s *MockStore) Query(ctx context.Context, vector []float32, topK int, filter *Filter) ([]Match, error) {
	if err := validateTopK(topK); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errClosed()
	}
	if len(vector) != s.dims {
		return nil, ErrDimensionMismatch{Expected: s.dims, Got: len(vector)}
	}

	ids := make([]string, 0, len(s.meta))
	for id := range s.meta {
		if filter.Matches(s.meta[id]) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	if len(ids) > topK {
		ids = ids[:topK]
	}

	matches := make([]Match, len(ids))
	for i, id := range ids {
		matches[i] = Match{
			ID:       id,
			Score:    mockBaseScore / float32(i+1),
			Metadata: s.meta[id],
		}
	}
	return matches, nil
}

// DeleteBatch removes recorded ids; unknown ids are no-ops.
func (s *MockStore) DeleteBatch(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errClosed()
	}

	for _, id := range ids {
		delete(s.meta, id)
	}
	return nil
}

// Stats reports recorded totals with the mock mode flag.
func (s *MockStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Stats{}, errClosed()
	}

	return Stats{
		TotalVectors: len(s.meta),
		Dimension:    s.dims,
		Mode:         "mock",
	}, nil
}

// Close releases the store.
func (s *MockStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
