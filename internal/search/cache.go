package search

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// resultCache is a bounded TTL cache of completed searches. It is
// purely advisory: a hit saves an embedding call and a store query,
// a miss only costs latency.
type resultCache struct {
	lru *expirable.LRU[string, cachedResponse]
}

type cachedResponse struct {
	results    []Result
	totalFound int
}

func newResultCache(size int, ttl time.Duration) *resultCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &resultCache{
		lru: expirable.NewLRU[string, cachedResponse](size, nil, ttl),
	}
}

// get returns a defensive copy so callers can't mutate cached entries.
func (c *resultCache) get(key string) (*Response, bool) {
	entry, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	results := make([]Result, len(entry.results))
	copy(results, entry.results)
	return &Response{Results: results, TotalFound: entry.totalFound, Cached: true}, true
}

func (c *resultCache) put(key string, resp *Response) {
	results := make([]Result, len(resp.Results))
	copy(results, resp.Results)
	c.lru.Add(key, cachedResponse{results: results, totalFound: resp.TotalFound})
}

func (c *resultCache) purge() {
	c.lru.Purge()
}
