package resolve

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Cache memoizes resolutions for the duration of one run. It is safe for
// concurrent use; each distinct normalized name is scanned against the index
// at most once, even when several goroutines ask for it at the same time.
type Cache struct {
	index         *Index
	minSimilarity float64

	mu      sync.RWMutex
	results map[string]Match
	group   singleflight.Group
	scans   atomic.Int64
}

// NewCache creates an empty per-run cache over index.
func NewCache(index *Index, minSimilarity float64) *Cache {
	if minSimilarity <= 0 {
		minSimilarity = DefaultMinSimilarity
	}
	return &Cache{
		index:         index,
		minSimilarity: minSimilarity,
		results:       make(map[string]Match),
	}
}

// Resolve returns the cached match for raw, scanning the index on first use.
// Cancelled scans are not cached.
func (c *Cache) Resolve(ctx context.Context, raw string) (Match, error) {
	key := Normalize(raw)
	if key == "" {
		return Match{Raw: raw}, nil
	}

	if m, ok := c.lookup(key); ok {
		m.Raw = raw
		return m, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if m, ok := c.lookup(key); ok {
			return m, nil
		}
		c.scans.Add(1)
		m, err := c.index.ResolveContext(ctx, raw, c.minSimilarity)
		if err != nil {
			return Match{}, err
		}
		c.mu.Lock()
		c.results[key] = m
		c.mu.Unlock()
		return m, nil
	})
	if err != nil {
		return Match{Raw: raw}, err
	}
	m := v.(Match)
	m.Raw = raw
	return m, nil
}

func (c *Cache) lookup(key string) (Match, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.results[key]
	return m, ok
}

// Scans returns how many index scans the cache has performed.
func (c *Cache) Scans() int64 { return c.scans.Load() }

// Len returns the number of cached names.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.results)
}
