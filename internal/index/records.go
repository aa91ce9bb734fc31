// Package index implements incremental note indexing: change detection
// against persisted records, batched embedding, and vector store upkeep.
package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	nderrors "github.com/notedex/notedex/internal/errors"
	"github.com/notedex/notedex/internal/vault"
)

// recordsVersion is the persisted envelope schema version.
const recordsVersion = 1

// Record is the per-document indexing state used for change detection.
type Record struct {
	// ContentHash is the SHA-256 of the document contents at index time.
	ContentHash string `json:"contentHash"`

	// ChunkCount is the number of content chunks the document produced,
	// excluding the title chunk. Deletion derives ChunkCount+1 ids from it.
	ChunkCount int `json:"chunkCount"`

	// IndexedAt is when the document was last indexed.
	IndexedAt time.Time `json:"indexedAt"`

	// Metadata is the document metadata captured at index time. Keyword
	// search scans it without touching the filesystem.
	Metadata vault.Metadata `json:"metadata"`
}

// recordsEnvelope is the on-disk shape of the records file.
type recordsEnvelope struct {
	Version   int               `json:"version"`
	UpdatedAt time.Time         `json:"updatedAt"`
	Notes     map[string]Record `json:"notes"`
}

// RecordStore holds per-document records keyed by vault-relative path.
// Safe for concurrent use.
type RecordStore struct {
	mu      sync.RWMutex
	path    string
	records map[string]Record
	dirty   bool
}

// NewRecordStore creates a store persisted at path.
func NewRecordStore(path string) *RecordStore {
	return &RecordStore{
		path:    path,
		records: make(map[string]Record),
	}
}

// Load reads the records file. A missing file means an empty index and
// is not an error; a present but unparseable file is corruption.
func (rs *RecordStore) Load() error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	data, err := os.ReadFile(rs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return nderrors.New(nderrors.ErrCodeFileUnreadable,
			fmt.Sprintf("read records file %s", rs.path), err)
	}

	var envelope recordsEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nderrors.New(nderrors.ErrCodeRecordsCorrupt,
			fmt.Sprintf("parse records file %s", rs.path), err).
			WithSuggestion("delete the records file and re-index from scratch")
	}
	if envelope.Version != recordsVersion {
		return nderrors.New(nderrors.ErrCodeRecordsCorrupt,
			fmt.Sprintf("records file %s has version %d, expected %d", rs.path, envelope.Version, recordsVersion), nil).
			WithSuggestion("delete the records file and re-index from scratch")
	}

	if envelope.Notes == nil {
		envelope.Notes = make(map[string]Record)
	}
	rs.records = envelope.Notes
	rs.dirty = false
	return nil
}

// Save writes the records file atomically. A sibling lock file guards
// against concurrent writers from other processes.
func (rs *RecordStore) Save() error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(rs.path), 0o755); err != nil {
		return nderrors.New(nderrors.ErrCodePersistFailed, "create records directory", err)
	}

	lock := flock.New(rs.path + ".lock")
	if err := lock.Lock(); err != nil {
		return nderrors.New(nderrors.ErrCodePersistFailed, "acquire records lock", err)
	}
	defer func() { _ = lock.Unlock() }()

	envelope := recordsEnvelope{
		Version:   recordsVersion,
		UpdatedAt: time.Now().UTC(),
		Notes:     rs.records,
	}
	data, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return nderrors.New(nderrors.ErrCodePersistFailed, "encode records", err)
	}

	tmpPath := rs.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return nderrors.New(nderrors.ErrCodePersistFailed, "write records file", err)
	}
	if err := os.Rename(tmpPath, rs.path); err != nil {
		_ = os.Remove(tmpPath)
		return nderrors.New(nderrors.ErrCodePersistFailed, "rename records file", err)
	}

	rs.dirty = false
	return nil
}

// Get returns the record for a document path.
func (rs *RecordStore) Get(path string) (Record, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	rec, ok := rs.records[path]
	return rec, ok
}

// Put stores a record.
func (rs *RecordStore) Put(path string, rec Record) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.records[path] = rec
	rs.dirty = true
}

// Delete removes a record. Returns the removed record when present.
func (rs *RecordStore) Delete(path string) (Record, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rec, ok := rs.records[path]
	if ok {
		delete(rs.records, path)
		rs.dirty = true
	}
	return rec, ok
}

// Len returns the number of indexed documents.
func (rs *RecordStore) Len() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.records)
}

// Dirty reports whether there are unsaved changes.
func (rs *RecordStore) Dirty() bool {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.dirty
}

// Walk calls fn for every record. fn must not call back into the store.
func (rs *RecordStore) Walk(fn func(path string, rec Record)) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	for path, rec := range rs.records {
		fn(path, rec)
	}
}

// Paths returns all indexed document paths.
func (rs *RecordStore) Paths() []string {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	paths := make([]string, 0, len(rs.records))
	for path := range rs.records {
		paths = append(paths, path)
	}
	return paths
}
