package vault

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	nderrors "github.com/notedex/notedex/internal/errors"
)

// DefaultMaxFileSize is the default per-document size cap (10MB).
// Oversized notes are skipped and counted, not retried.
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

// ScanStats summarizes a discovery pass.
type ScanStats struct {
	// Found is the number of documents returned.
	Found int
	// SkippedOversize counts documents over the size cap.
	SkippedOversize int
	// SkippedUnreadable counts documents that could not be read.
	SkippedUnreadable int
}

// Scanner discovers markdown notes under a vault root.
type Scanner struct {
	root        string
	maxFileSize int64
}

// NewScanner creates a scanner for the given vault root.
// maxFileSize <= 0 selects DefaultMaxFileSize.
func NewScanner(root string, maxFileSize int64) *Scanner {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &Scanner{root: root, maxFileSize: maxFileSize}
}

// Root returns the vault root path.
func (s *Scanner) Root() string {
	return s.root
}

// Scan walks the vault and reads every markdown note.
// Hidden directories (including the .notedex data dir) are skipped.
// Per-document read failures degrade to skip counters; only a walk failure
// on the root itself is an error.
func (s *Scanner) Scan(ctx context.Context) ([]*Document, ScanStats, error) {
	var docs []*Document
	var stats ScanStats

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == s.root {
				return walkErr
			}
			stats.SkippedUnreadable++
			return nil
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		name := d.Name()
		if d.IsDir() {
			if path != s.root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if !isMarkdown(name) {
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return nil
		}

		doc, err := s.load(rel)
		if err != nil {
			switch nderrors.CodeOf(err) {
			case nderrors.ErrCodeFileTooLarge:
				stats.SkippedOversize++
				slog.Warn("skipping oversized note", slog.String("path", rel))
			default:
				stats.SkippedUnreadable++
				slog.Warn("skipping unreadable note",
					slog.String("path", rel),
					slog.String("error", err.Error()))
			}
			return nil
		}

		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, stats, err
	}

	stats.Found = len(docs)
	return docs, stats, nil
}

// Read loads a single note by vault-relative path.
func (s *Scanner) Read(relPath string) (*Document, error) {
	return s.load(relPath)
}

func (s *Scanner) load(relPath string) (*Document, error) {
	absPath := filepath.Join(s.root, relPath)

	// Lstat so symlinks are detected without being followed.
	info, err := os.Lstat(absPath)
	if err != nil {
		return nil, nderrors.FileUnreadable(relPath, err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return nil, nderrors.FileUnreadable(relPath, fs.ErrInvalid).
			WithDetail("reason", "symlink")
	}
	if info.Size() > s.maxFileSize {
		return nil, nderrors.FileTooLarge(relPath, info.Size(), s.maxFileSize)
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, nderrors.FileUnreadable(relPath, err)
	}

	body, title, tags := ParseNote(relPath, string(content))

	return &Document{
		Path:    filepath.ToSlash(relPath),
		Content: string(content),
		Metadata: Metadata{
			Title:   title,
			Tags:    tags,
			ModTime: info.ModTime(),
			Size:    info.Size(),
			Snippet: MakeSnippet(body),
		},
	}, nil
}

// Body returns the note body with frontmatter stripped.
func (d *Document) Body() string {
	body, _, _ := ParseNote(d.Path, d.Content)
	return body
}

func isMarkdown(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".md" || ext == ".markdown"
}
