// Package vault discovers and reads markdown notes from a vault root.
// It owns the Document representation; the index and search layers only
// read documents, never write them.
package vault

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
	"unicode/utf8"
)

// Metadata carries the denormalized note fields used for keyword matching
// and result presentation.
type Metadata struct {
	// Title from frontmatter, the first heading, or the file name.
	Title string `json:"title"`

	// Tags from frontmatter plus inline #tags.
	Tags []string `json:"tags,omitempty"`

	// ModTime is the file modification time.
	ModTime time.Time `json:"modTime"`

	// Size is the file size in bytes.
	Size int64 `json:"size"`

	// Snippet is a short excerpt of the body for keyword scanning and
	// result display.
	Snippet string `json:"snippet,omitempty"`
}

// Document is a note read from the vault.
// Path is the unique id, relative to the vault root.
type Document struct {
	Path     string
	Content  string
	Metadata Metadata
}

// HashContent fingerprints note content for change detection.
// Identical content always hashes identically, so unchanged documents are
// never re-embedded.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// SnippetLength bounds the stored body excerpt.
const SnippetLength = 500

// MakeSnippet returns the leading excerpt of a note body.
// Truncation backs off to a rune boundary so the snippet stays valid UTF-8.
func MakeSnippet(body string) string {
	if len(body) <= SnippetLength {
		return body
	}
	cut := SnippetLength
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut]
}
