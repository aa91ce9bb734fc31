package search

import (
	"regexp"
	"strings"

	"github.com/notedex/notedex/internal/index"
	"github.com/notedex/notedex/internal/store"
)

// Keyword field weights. Title matches dominate, tags help, body
// substrings contribute least; exact word-boundary hits earn a bonus.
const (
	titleWeight        = 10.0
	tagWeight          = 5.0
	bodyWeight         = 1.0
	titleBoundaryBonus = 2.0
	bodyBoundaryBonus  = 0.5
)

// termMatcher matches one query term against a metadata field.
type termMatcher struct {
	term     string
	boundary *regexp.Regexp
	pattern  *regexp.Regexp // regex mode only
	fold     bool
}

// buildMatchers prepares matchers for a query. Returns nil when the
// query is a regex that does not compile: that query simply matches
// nothing, it never fails the search.
func buildMatchers(query string, opts Options) []termMatcher {
	if opts.Regex {
		expr := query
		if !opts.CaseSensitive {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil
		}
		return []termMatcher{{pattern: re}}
	}

	terms := strings.Fields(query)
	matchers := make([]termMatcher, 0, len(terms))
	for _, term := range terms {
		expr := `\b` + regexp.QuoteMeta(term) + `\b`
		if !opts.CaseSensitive {
			expr = "(?i)" + expr
		}
		// Boundary regexps built from quoted literals always compile.
		matchers = append(matchers, termMatcher{
			term:     term,
			boundary: regexp.MustCompile(expr),
			fold:     !opts.CaseSensitive,
		})
	}
	return matchers
}

// matches reports a substring hit and whether it sits on a word boundary.
func (m termMatcher) matches(field string) (hit, boundary bool) {
	if m.pattern != nil {
		return m.pattern.MatchString(field), false
	}

	haystack, needle := field, m.term
	if m.fold {
		haystack = strings.ToLower(haystack)
		needle = strings.ToLower(needle)
	}
	if !strings.Contains(haystack, needle) {
		return false, false
	}
	return true, m.boundary.MatchString(field)
}

// keywordSearch scans indexed metadata and scores each document.
// Scores are raw field-weight sums; the caller normalizes by the
// maximum before fusion.
func keywordSearch(records *index.RecordStore, query string, opts Options) []Result {
	matchers := buildMatchers(query, opts)
	if len(matchers) == 0 {
		return nil
	}

	var results []Result
	records.Walk(func(path string, rec index.Record) {
		meta := store.EntryMeta{
			Path:    path,
			Title:   rec.Metadata.Title,
			Tags:    rec.Metadata.Tags,
			ModTime: rec.Metadata.ModTime,
			Snippet: rec.Metadata.Snippet,
		}
		if !opts.Filter.Matches(meta) {
			return
		}

		var score float64
		var highlights []string

		for _, m := range matchers {
			if hit, boundary := m.matches(meta.Title); hit {
				score += titleWeight
				if boundary {
					score += titleBoundaryBonus
				}
				highlights = appendHighlight(highlights, "title")
			}
			for _, tag := range meta.Tags {
				if hit, _ := m.matches(tag); hit {
					score += tagWeight
					highlights = appendHighlight(highlights, "tag:"+tag)
					break
				}
			}
			if hit, boundary := m.matches(meta.Snippet); hit {
				score += bodyWeight
				if boundary {
					score += bodyBoundaryBonus
				}
				highlights = appendHighlight(highlights, "body")
			}
		}

		if score == 0 {
			return
		}

		results = append(results, Result{
			Path:         path,
			Title:        meta.Title,
			Tags:         meta.Tags,
			Snippet:      meta.Snippet,
			ModTime:      meta.ModTime,
			Score:        score,
			KeywordScore: score,
			MatchType:    ModeKeyword,
			Highlights:   highlights,
		})
	})

	return results
}

// normalizeKeywordScores maps raw scores to 0..1 by dividing by the
// maximum, so keyword relevance is comparable to cosine similarity.
func normalizeKeywordScores(results []Result) {
	var max float64
	for _, r := range results {
		if r.Score > max {
			max = r.Score
		}
	}
	if max == 0 {
		return
	}
	for i := range results {
		results[i].Score /= max
		results[i].KeywordScore = results[i].Score
	}
}

func appendHighlight(highlights []string, h string) []string {
	for _, existing := range highlights {
		if existing == h {
			return highlights
		}
	}
	return append(highlights, h)
}
