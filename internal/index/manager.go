package index

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/notedex/notedex/internal/chunk"
	"github.com/notedex/notedex/internal/embed"
	nderrors "github.com/notedex/notedex/internal/errors"
	"github.com/notedex/notedex/internal/store"
	"github.com/notedex/notedex/internal/vault"
)

const (
	// DefaultBatchSize is the number of chunks per embedding batch.
	DefaultBatchSize = 32

	// DefaultConcurrency is the number of documents embedded in parallel.
	DefaultConcurrency = 4
)

// Options tunes an indexing run.
type Options struct {
	// ForceReindex skips change detection and re-embeds every document.
	ForceReindex bool

	// BatchSize overrides the chunks-per-embedding-batch default.
	BatchSize int

	// Concurrency overrides the parallel document default.
	Concurrency int
}

// Summary reports what an indexing run did.
type Summary struct {
	// Indexed is the number of documents embedded and upserted.
	Indexed int

	// Skipped is the number of unchanged documents left alone.
	Skipped int

	// Deleted is the number of documents removed because their file is gone.
	Deleted int

	// Errors is the number of documents that failed. Failures are isolated:
	// one bad document never aborts the run.
	Errors int

	// ScanStats carries discovery-phase skip counters.
	ScanStats vault.ScanStats

	// Duration is the wall time of the run.
	Duration time.Duration
}

// Manager drives incremental indexing for one vault root: discovery,
// change detection against persisted records, batched embedding, vector
// upserts, and orphan cleanup.
type Manager struct {
	scanner  *vault.Scanner
	chunker  *chunk.Chunker
	provider embed.Provider
	vectors  store.VectorStore
	records  *RecordStore
	logger   *slog.Logger

	batchSize   int
	concurrency int

	// Guards against overlapping runs on the same root.
	runMu   sync.Mutex
	running bool
}

// Config assembles a Manager.
type Config struct {
	Scanner     *vault.Scanner
	Chunker     *chunk.Chunker
	Provider    embed.Provider
	Store       store.VectorStore
	Records     *RecordStore
	Logger      *slog.Logger
	BatchSize   int
	Concurrency int
}

// NewManager creates an indexing manager. Records are loaded lazily by
// the caller before the first run.
func NewManager(cfg Config) *Manager {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{
		scanner:     cfg.Scanner,
		chunker:     cfg.Chunker,
		provider:    cfg.Provider,
		vectors:     cfg.Store,
		records:     cfg.Records,
		logger:      cfg.Logger,
		batchSize:   cfg.BatchSize,
		concurrency: cfg.Concurrency,
	}
}

// Records exposes the record store for search-side metadata scans.
func (m *Manager) Records() *RecordStore {
	return m.records
}

// IndexAll runs a full incremental pass over the vault.
// Only one run may be active per root; a second concurrent call fails
// fast with an already-indexing error. Cancellation stops scheduling new
// documents; documents already in flight finish and their progress is
// kept.
func (m *Manager) IndexAll(ctx context.Context, opts Options) (Summary, error) {
	if err := m.acquireRun(); err != nil {
		return Summary{}, err
	}
	defer m.releaseRun()

	start := time.Now()
	summary := Summary{}

	docs, scanStats, err := m.scanner.Scan(ctx)
	if err != nil {
		return summary, nderrors.New(nderrors.ErrCodeIndexFailed, "vault scan failed", err)
	}
	summary.ScanStats = scanStats

	// Documents whose file vanished since the last run.
	present := make(map[string]bool, len(docs))
	for _, doc := range docs {
		present[doc.Path] = true
	}
	for _, path := range m.records.Paths() {
		if present[path] {
			continue
		}
		if err := m.deleteDocument(ctx, path); err != nil {
			m.logger.Warn("failed to delete vanished document",
				"path", path, "error", err)
			summary.Errors++
			continue
		}
		summary.Deleted++
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = m.batchSize
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = m.concurrency
	}

	var indexed, skipped, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, doc := range docs {
		if gctx.Err() != nil {
			break // stop scheduling, keep partial progress
		}
		doc := doc

		if !opts.ForceReindex {
			if rec, ok := m.records.Get(doc.Path); ok && rec.ContentHash == vault.HashContent(doc.Content) {
				skipped.Add(1)
				continue
			}
		}

		g.Go(func() error {
			if err := m.indexDocument(gctx, doc, batchSize); err != nil {
				if gctx.Err() != nil {
					return nil
				}
				m.logger.Warn("failed to index document",
					"path", doc.Path, "error", err)
				failed.Add(1)
				return nil
			}
			indexed.Add(1)
			return nil
		})
	}

	_ = g.Wait()

	summary.Indexed = int(indexed.Load())
	summary.Skipped = int(skipped.Load())
	summary.Errors += int(failed.Load())
	summary.Duration = time.Since(start)

	if m.records.Dirty() {
		if err := m.records.Save(); err != nil {
			return summary, err
		}
	}

	m.logger.Info("indexing run complete",
		"indexed", summary.Indexed,
		"skipped", summary.Skipped,
		"deleted", summary.Deleted,
		"errors", summary.Errors,
		"duration", summary.Duration)

	if ctx.Err() != nil {
		return summary, ctx.Err()
	}
	return summary, nil
}

// OneResult reports the outcome of indexing a single document.
type OneResult struct {
	Indexed  bool
	Chunks   int
	Metadata vault.Metadata
}

// IndexOne indexes a single document by vault-relative path. Unless force
// is set, a document whose content hash matches its record is left alone.
func (m *Manager) IndexOne(ctx context.Context, relPath string, force bool) (OneResult, error) {
	doc, err := m.scanner.Read(relPath)
	if err != nil {
		return OneResult{}, err
	}
	if !force {
		if rec, ok := m.records.Get(doc.Path); ok && rec.ContentHash == vault.HashContent(doc.Content) {
			return OneResult{Chunks: rec.ChunkCount, Metadata: doc.Metadata}, nil
		}
	}
	if err := m.indexDocument(ctx, doc, m.batchSize); err != nil {
		return OneResult{}, err
	}
	if err := m.records.Save(); err != nil {
		return OneResult{}, err
	}
	rec, _ := m.records.Get(doc.Path)
	return OneResult{Indexed: true, Chunks: rec.ChunkCount, Metadata: doc.Metadata}, nil
}

// DeleteOne removes a document's vectors and record.
// Unknown paths are no-ops.
func (m *Manager) DeleteOne(ctx context.Context, relPath string) error {
	if err := m.deleteDocument(ctx, relPath); err != nil {
		return err
	}
	if m.records.Dirty() {
		return m.records.Save()
	}
	return nil
}

// Stats describes the current index contents.
type Stats struct {
	Documents int
	Vectors   store.Stats
}

// Stats reports indexed document and vector counts.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	vs, err := m.vectors.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Documents: m.records.Len(), Vectors: vs}, nil
}

func (m *Manager) acquireRun() error {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.running {
		return nderrors.AlreadyIndexing(m.scanner.Root())
	}
	m.running = true
	return nil
}

func (m *Manager) releaseRun() {
	m.runMu.Lock()
	m.running = false
	m.runMu.Unlock()
}

// indexDocument chunks, embeds, and upserts one document, then records
// its state. When the document shrank, content chunk ids beyond the new
// count are deleted so no orphans linger.
func (m *Manager) indexDocument(ctx context.Context, doc *vault.Document, batchSize int) error {
	chunks := m.chunker.Document(doc)

	prevCount := -1
	if rec, ok := m.records.Get(doc.Path); ok {
		prevCount = rec.ChunkCount
	}

	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		vectors, err := m.provider.EmbedBatch(ctx, texts)
		if err != nil {
			return nderrors.New(nderrors.ErrCodeEmbeddingFailed,
				"embedding batch failed for "+doc.Path, err)
		}

		entries := make([]store.VectorEntry, len(batch))
		for i, c := range batch {
			entries[i] = store.VectorEntry{
				ID:     c.ID,
				Values: vectors[i],
				Metadata: store.EntryMeta{
					Path:       c.DocPath,
					Title:      c.Metadata.Title,
					Tags:       c.Metadata.Tags,
					Ordinal:    c.Ordinal,
					ChunkCount: c.ChunkCount,
					ModTime:    c.Metadata.ModTime,
					Snippet:    c.Metadata.Snippet,
				},
			}
		}

		if err := m.vectors.UpsertBatch(ctx, entries); err != nil {
			return nderrors.New(nderrors.ErrCodeIndexFailed,
				"vector upsert failed for "+doc.Path, err)
		}
	}

	newCount := len(chunks) - 1 // content chunks only
	if prevCount > newCount {
		orphans := make([]string, 0, prevCount-newCount)
		for i := newCount; i < prevCount; i++ {
			orphans = append(orphans, chunk.ContentChunkID(doc.Path, i))
		}
		if err := m.vectors.DeleteBatch(ctx, orphans); err != nil {
			return nderrors.New(nderrors.ErrCodeIndexFailed,
				"orphan cleanup failed for "+doc.Path, err)
		}
	}

	m.records.Put(doc.Path, Record{
		ContentHash: vault.HashContent(doc.Content),
		ChunkCount:  newCount,
		IndexedAt:   time.Now().UTC(),
		Metadata:    doc.Metadata,
	})

	return nil
}

// deleteDocument removes every vector id the record accounts for.
func (m *Manager) deleteDocument(ctx context.Context, path string) error {
	rec, ok := m.records.Get(path)
	if !ok {
		return nil
	}

	ids := make([]string, 0, rec.ChunkCount+1)
	ids = append(ids, chunk.TitleChunkID(path))
	for i := 0; i < rec.ChunkCount; i++ {
		ids = append(ids, chunk.ContentChunkID(path, i))
	}

	if err := m.vectors.DeleteBatch(ctx, ids); err != nil {
		return nderrors.New(nderrors.ErrCodeIndexFailed,
			"vector delete failed for "+path, err)
	}

	m.records.Delete(path)
	return nil
}
