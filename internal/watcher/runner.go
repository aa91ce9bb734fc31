package watcher

import (
	"context"
	"log/slog"

	"github.com/notedex/notedex/internal/index"
)

// Indexer is the slice of the index manager the runner needs.
type Indexer interface {
	IndexOne(ctx context.Context, relPath string, force bool) (index.OneResult, error)
	DeleteOne(ctx context.Context, relPath string) error
}

// CacheInvalidator drops stale search results after index changes.
type CacheInvalidator interface {
	InvalidateCache()
}

// Runner consumes watcher event batches and applies them to the index.
// Per-note failures are logged and skipped; the runner never stops on a
// single bad note.
type Runner struct {
	watcher *VaultWatcher
	indexer Indexer
	cache   CacheInvalidator
	logger  *slog.Logger
}

// NewRunner wires a watcher to an index manager.
// cache may be nil when no search engine is attached.
func NewRunner(w *VaultWatcher, indexer Indexer, cache CacheInvalidator, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{watcher: w, indexer: indexer, cache: cache, logger: logger}
}

// Run processes event batches until the context is cancelled or the
// watcher stops.
func (r *Runner) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case events, ok := <-r.watcher.Events():
			if !ok {
				return
			}
			r.apply(ctx, events)
		case err, ok := <-r.watcher.Errors():
			if !ok {
				return
			}
			r.logger.Warn("watcher error", "error", err)
		}
	}
}

func (r *Runner) apply(ctx context.Context, events []Event) {
	changed := false
	for _, e := range events {
		if ctx.Err() != nil {
			return
		}

		var err error
		applied := true
		switch e.Operation {
		case OpCreate, OpModify:
			var res index.OneResult
			res, err = r.indexer.IndexOne(ctx, e.Path, false)
			applied = res.Indexed
		case OpDelete:
			err = r.indexer.DeleteOne(ctx, e.Path)
		default:
			continue
		}

		if err != nil {
			r.logger.Warn("failed to apply note change",
				"path", e.Path,
				"operation", e.Operation.String(),
				"error", err)
			continue
		}

		if applied {
			changed = true
			r.logger.Debug("applied note change",
				"path", e.Path,
				"operation", e.Operation.String())
		}
	}

	if changed && r.cache != nil {
		r.cache.InvalidateCache()
	}
}
