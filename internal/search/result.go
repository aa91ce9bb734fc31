package search

import (
	"sort"
	"time"
)

// Result is one search hit at document granularity. Semantic chunk
// matches are collapsed to their best-scoring document before fusion so
// both branches merge on the same ids.
type Result struct {
	// Path is the vault-relative document path and the result id.
	Path string `json:"path"`

	// Title is the document title.
	Title string `json:"title"`

	// Tags are the document tags.
	Tags []string `json:"tags,omitempty"`

	// Snippet is a short body excerpt.
	Snippet string `json:"snippet,omitempty"`

	// ModTime is the document's last modification time.
	ModTime time.Time `json:"modTime"`

	// Score is the final score (0..1) in the requested mode.
	Score float64 `json:"score"`

	// MatchType reports which branch(es) produced the hit.
	MatchType Mode `json:"matchType"`

	// SemanticScore and KeywordScore are the per-branch scores that
	// went into a hybrid fusion. Zero when the branch had no hit.
	SemanticScore float64 `json:"semanticScore,omitempty"`
	KeywordScore  float64 `json:"keywordScore,omitempty"`

	// Highlights names where the keyword matches landed.
	Highlights []string `json:"highlights,omitempty"`
}

// Response is a completed search.
type Response struct {
	// Results is the threshold-filtered, score-sorted, truncated list.
	Results []Result `json:"results"`

	// TotalFound counts hits past the threshold before truncation.
	TotalFound int `json:"totalFound"`

	// Cached reports whether this response was served from the cache.
	Cached bool `json:"cached"`
}

// finalize applies threshold, deterministic ordering, and topK.
func finalize(results []Result, threshold float64, topK int) ([]Result, int) {
	kept := results[:0]
	for _, r := range results {
		if r.Score >= threshold {
			kept = append(kept, r)
		}
	}

	sort.Slice(kept, func(i, j int) bool {
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}
		return kept[i].Path < kept[j].Path
	})

	total := len(kept)
	if len(kept) > topK {
		kept = kept[:topK]
	}
	return kept, total
}
