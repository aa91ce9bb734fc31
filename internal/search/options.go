// Package search serves semantic, keyword, and hybrid queries over the
// index: vector similarity through the embedding provider and vector
// store, keyword relevance through an in-memory metadata scan, and a
// weighted merge of the two with a bounded TTL result cache in front.
package search

import (
	"fmt"
	"math"
	"strings"
	"time"

	nderrors "github.com/notedex/notedex/internal/errors"
	"github.com/notedex/notedex/internal/store"
)

// Mode selects the search strategy.
type Mode string

const (
	ModeSemantic Mode = "semantic"
	ModeKeyword  Mode = "keyword"
	ModeHybrid   Mode = "hybrid"
)

// weightEpsilon is the tolerance for hybrid weights summing to 1.
const weightEpsilon = 0.01

// Default search parameters.
const (
	DefaultTopK           = 10
	DefaultThreshold      = 0.3
	DefaultSemanticWeight = 0.7
	DefaultKeywordWeight  = 0.3
	DefaultCacheTTL       = 5 * time.Minute
	DefaultCacheSize      = 512
)

// Options tunes a single search request. Zero values select defaults.
type Options struct {
	// TopK caps the result count.
	TopK int

	// Threshold is the minimum final score (0..1).
	Threshold float64

	// SemanticWeight and KeywordWeight are the hybrid fusion weights.
	// They must sum to 1 within 0.01; out-of-range weights are rejected,
	// never silently normalized.
	SemanticWeight float64
	KeywordWeight  float64

	// CaseSensitive makes keyword matching case sensitive.
	CaseSensitive bool

	// Regex treats the query as a regular expression for keyword
	// matching. An invalid pattern yields zero keyword matches.
	Regex bool

	// Filter restricts results by metadata.
	Filter *store.Filter
}

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSemantic, ModeKeyword, ModeHybrid:
		return Mode(s), nil
	default:
		return "", nderrors.New(nderrors.ErrCodeInvalidQuery,
			fmt.Sprintf("unknown search mode %q (expected semantic, keyword, or hybrid)", s), nil)
	}
}

// withDefaults fills zero values from engine defaults.
func (o Options) withDefaults(d Options) Options {
	if o.TopK <= 0 {
		o.TopK = d.TopK
	}
	if o.Threshold == 0 {
		o.Threshold = d.Threshold
	}
	if o.SemanticWeight == 0 && o.KeywordWeight == 0 {
		o.SemanticWeight = d.SemanticWeight
		o.KeywordWeight = d.KeywordWeight
	}
	return o
}

// validate rejects malformed options.
func (o Options) validate(mode Mode) error {
	if mode == ModeHybrid {
		sum := o.SemanticWeight + o.KeywordWeight
		if math.Abs(sum-1.0) > weightEpsilon {
			return nderrors.InvalidWeightError(o.SemanticWeight, o.KeywordWeight)
		}
		if o.SemanticWeight < 0 || o.KeywordWeight < 0 {
			return nderrors.InvalidWeightError(o.SemanticWeight, o.KeywordWeight)
		}
	}
	if o.Threshold < 0 || o.Threshold > 1 {
		return nderrors.New(nderrors.ErrCodeInvalidQuery,
			fmt.Sprintf("threshold must be in [0,1], got %g", o.Threshold), nil)
	}
	return nil
}

// cacheKey builds the normalized cache key for (mode, query, options).
// Every option that changes result contents participates.
func cacheKey(mode Mode, query string, o Options) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|k=%d|t=%.4f|sw=%.4f|kw=%.4f|cs=%t|re=%t",
		mode, query, o.TopK, o.Threshold, o.SemanticWeight, o.KeywordWeight,
		o.CaseSensitive, o.Regex)
	if f := o.Filter; f != nil {
		fmt.Fprintf(&b, "|tags=%s|prefix=%s|after=%d|before=%d",
			strings.Join(f.Tags, ","), f.PathPrefix,
			f.ModifiedAfter.UnixNano(), f.ModifiedBefore.UnixNano())
	}
	return b.String()
}
