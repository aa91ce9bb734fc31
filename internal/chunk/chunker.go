// Package chunk splits note text into overlapping token windows for
// embedding. Chunking is deterministic: identical input always yields
// identical chunks, which keeps vector ids stable across runs.
package chunk

import (
	"fmt"
	"strings"

	nderrors "github.com/notedex/notedex/internal/errors"
	"github.com/notedex/notedex/internal/vault"
)

// TitleOrdinal marks the distinguished title chunk.
// The title chunk is always prepended so exact title/tag matches stay
// retrievable even when the body yields zero content chunks.
const TitleOrdinal = -1

// Chunk is a bounded, overlapping slice of a document's text.
// Chunks are immutable once created and regenerated wholesale on re-index.
type Chunk struct {
	// ID is path#title for the title chunk, path#chunk#i otherwise.
	ID string

	// Text is the chunk content handed to the embedder.
	Text string

	// Ordinal is the chunk position within the document (-1 for title).
	Ordinal int

	// ChunkCount is the number of content chunks in the document
	// (excluding the title chunk).
	ChunkCount int

	// DocPath references the owning document.
	DocPath string

	// Metadata is the denormalized document metadata.
	Metadata vault.Metadata
}

// TitleChunkID returns the deterministic id of a document's title chunk.
func TitleChunkID(path string) string {
	return path + "#title"
}

// ContentChunkID returns the deterministic id of content chunk i.
func ContentChunkID(path string, i int) string {
	return fmt.Sprintf("%s#chunk#%d", path, i)
}

// Chunker splits text into overlapping fixed-size token windows.
type Chunker struct {
	maxSize int
	overlap int
}

// New creates a chunker. overlap must be strictly smaller than maxSize,
// otherwise the window would never advance.
func New(maxSize, overlap int) (*Chunker, error) {
	if maxSize <= 0 {
		return nil, nderrors.ConfigError(fmt.Sprintf("chunk size must be positive, got %d", maxSize), nil)
	}
	if overlap < 0 {
		return nil, nderrors.ConfigError(fmt.Sprintf("chunk overlap must not be negative, got %d", overlap), nil)
	}
	if overlap >= maxSize {
		return nil, nderrors.New(nderrors.ErrCodeChunkOverlap,
			fmt.Sprintf("overlap (%d) must be smaller than chunk size (%d)", overlap, maxSize), nil)
	}
	return &Chunker{maxSize: maxSize, overlap: overlap}, nil
}

// Split returns the ordered token windows of text.
// Tokens are whitespace-separated; windows of maxSize tokens advance by
// maxSize-overlap; empty windows are dropped.
func (c *Chunker) Split(text string) []string {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil
	}

	step := c.maxSize - c.overlap
	segments := make([]string, 0, (len(tokens)+step-1)/step)

	for start := 0; start < len(tokens); start += step {
		end := start + c.maxSize
		if end > len(tokens) {
			end = len(tokens)
		}

		segment := strings.Join(tokens[start:end], " ")
		if strings.TrimSpace(segment) != "" {
			segments = append(segments, segment)
		}

		if end == len(tokens) {
			break
		}
	}

	return segments
}

// Document chunks a note: the title chunk first, then the body windows.
// ChunkCount on every chunk is the content chunk count, so callers can
// reconstruct the full id set for deletion.
func (c *Chunker) Document(doc *vault.Document) []*Chunk {
	segments := c.Split(doc.Body())

	chunks := make([]*Chunk, 0, len(segments)+1)

	titleText := doc.Metadata.Title
	if len(doc.Metadata.Tags) > 0 {
		titleText += " " + strings.Join(doc.Metadata.Tags, " ")
	}
	chunks = append(chunks, &Chunk{
		ID:         TitleChunkID(doc.Path),
		Text:       titleText,
		Ordinal:    TitleOrdinal,
		ChunkCount: len(segments),
		DocPath:    doc.Path,
		Metadata:   doc.Metadata,
	})

	for i, segment := range segments {
		chunks = append(chunks, &Chunk{
			ID:         ContentChunkID(doc.Path, i),
			Text:       segment,
			Ordinal:    i,
			ChunkCount: len(segments),
			DocPath:    doc.Path,
			Metadata:   doc.Metadata,
		})
	}

	return chunks
}
