package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

// MemoryConfig configures the in-process vector store.
type MemoryConfig struct {
	// Dimensions is the vector dimension.
	Dimensions int

	// M is HNSW max connections per layer (default: 16).
	M int

	// EfSearch is HNSW query-time search width (default: 20).
	EfSearch int
}

// MemoryStore implements VectorStore with an in-process HNSW graph.
// It is the default backend: no service to run, and persistence is a
// single file pair next to the index metadata.
type MemoryStore struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config MemoryConfig

	// ID mapping (string <-> uint64 graph keys).
	idMap   map[string]uint64
	keyMap  map[uint64]string
	meta    map[string]EntryMeta
	nextKey uint64

	closed bool
}

var _ VectorStore = (*MemoryStore)(nil)

// memoryMetadata is the persisted companion state for the HNSW graph file.
type memoryMetadata struct {
	IDMap   map[string]uint64
	Meta    map[string]EntryMeta
	NextKey uint64
	Config  MemoryConfig
}

// NewMemoryStore creates an in-process HNSW-backed vector store.
func NewMemoryStore(cfg MemoryConfig) (*MemoryStore, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &MemoryStore{
		graph:  graph,
		config: cfg,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
		meta:   make(map[string]EntryMeta),
	}, nil
}

// UpsertBatch inserts or replaces entries.
// Existing ids are lazily deleted: the old node stays in the graph but is
// orphaned from the id maps, which avoids graph corruption when removing
// the last node.
func (s *MemoryStore) UpsertBatch(ctx context.Context, entries []VectorEntry) error {
	if len(entries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("memory store is closed")
	}

	for _, e := range entries {
		if len(e.Values) != s.config.Dimensions {
			return ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(e.Values)}
		}
	}

	for _, e := range entries {
		if existingKey, exists := s.idMap[e.ID]; exists {
			delete(s.keyMap, existingKey)
			delete(s.idMap, e.ID)
		}

		key := s.nextKey
		s.nextKey++

		vec := make([]float32, len(e.Values))
		copy(vec, e.Values)
		normalizeInPlace(vec)

		s.graph.Add(hnsw.MakeNode(key, vec))
		s.idMap[e.ID] = key
		s.keyMap[key] = e.ID
		s.meta[e.ID] = e.Metadata
	}

	return nil
}

// Query finds the topK nearest entries passing the filter.
func (s *MemoryStore) Query(ctx context.Context, vector []float32, topK int, filter *Filter) ([]Match, error) {
	if err := validateTopK(topK); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("memory store is closed")
	}
	if len(vector) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(vector)}
	}
	if s.graph.Len() == 0 {
		return []Match{}, nil
	}

	query := make([]float32, len(vector))
	copy(query, vector)
	normalizeInPlace(query)

	// Over-fetch: lazily deleted orphans still hold graph nodes, and a
	// filter can reject live candidates. Orphan count is graph nodes
	// minus live id mappings.
	orphans := s.graph.Len() - len(s.keyMap)
	k := topK + orphans
	if filter != nil {
		k = topK*4 + orphans
	}

	nodes := s.graph.Search(query, k)

	matches := make([]Match, 0, topK)
	for _, node := range nodes {
		id, exists := s.keyMap[node.Key]
		if !exists {
			continue // lazily deleted
		}

		meta := s.meta[id]
		if !filter.Matches(meta) {
			continue
		}

		distance := s.graph.Distance(query, node.Value)
		matches = append(matches, Match{
			ID:       id,
			Score:    1.0 - distance/2.0, // cosine distance 0..2 -> similarity 0..1
			Metadata: meta,
		})

		if len(matches) == topK {
			break
		}
	}

	return matches, nil
}

// DeleteBatch removes entries by id; unknown ids are no-ops.
func (s *MemoryStore) DeleteBatch(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("memory store is closed")
	}

	for _, id := range ids {
		if key, exists := s.idMap[id]; exists {
			delete(s.keyMap, key)
			delete(s.idMap, id)
			delete(s.meta, id)
		}
	}

	return nil
}

// Stats returns store contents summary.
func (s *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Stats{}, fmt.Errorf("memory store is closed")
	}

	return Stats{
		TotalVectors: len(s.idMap),
		Dimension:    s.config.Dimensions,
		Mode:         "memory",
	}, nil
}

// Contains reports whether an id exists.
func (s *MemoryStore) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.idMap[id]
	return exists
}

// Save persists the graph and id mappings next to path.
// Uses atomic temp-file-plus-rename writes. Lazily deleted orphans are
// compacted away so they never reach disk.
func (s *MemoryStore) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("memory store is closed")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	export := s.graph
	if s.graph.Len() > len(s.keyMap) {
		export = s.compacted()
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create store file: %w", err)
	}

	if err := export.Export(file); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close store file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename store file: %w", err)
	}

	return s.saveMetadata(path + ".meta")
}

// compacted rebuilds a graph holding only live entries.
// Caller must hold at least a read lock.
func (s *MemoryStore) compacted() *hnsw.Graph[uint64] {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = s.graph.Distance
	graph.M = s.graph.M
	graph.EfSearch = s.graph.EfSearch
	graph.Ml = s.graph.Ml

	for key := range s.keyMap {
		if vec, ok := s.graph.Lookup(key); ok {
			graph.Add(hnsw.MakeNode(key, vec))
		}
	}
	return graph
}

func (s *MemoryStore) saveMetadata(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create meta file: %w", err)
	}

	meta := memoryMetadata{
		IDMap:   s.idMap,
		Meta:    s.meta,
		NextKey: s.nextKey,
		Config:  s.config,
	}
	if err := gob.NewEncoder(file).Encode(meta); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("encode meta: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close meta file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Load restores a saved store. Missing files mean an empty store.
func (s *MemoryStore) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("memory store is closed")
	}

	metaFile, err := os.Open(path + ".meta")
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open meta file: %w", err)
	}
	defer func() { _ = metaFile.Close() }()

	var meta memoryMetadata
	if err := gob.NewDecoder(metaFile).Decode(&meta); err != nil {
		return fmt.Errorf("decode meta: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open store file: %w", err)
	}
	defer func() { _ = file.Close() }()

	// bufio.Reader because graph import requires io.ByteReader.
	if err := s.graph.Import(bufio.NewReader(file)); err != nil {
		return fmt.Errorf("import graph: %w", err)
	}

	s.idMap = meta.IDMap
	s.meta = meta.Meta
	s.nextKey = meta.NextKey
	s.config = meta.Config
	s.keyMap = make(map[uint64]string, len(meta.IDMap))
	for id, key := range meta.IDMap {
		s.keyMap[key] = id
	}

	return nil
}

// Close releases resources.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.graph = nil
	return nil
}

// normalizeInPlace normalizes a vector to unit length in place.
func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	invMagnitude := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= invMagnitude
	}
}
