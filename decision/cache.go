// Package decision implements the per-pass decision cache (spec
// component C6): a memoized verdict per (CrawlUri identity, subscriber,
// hook), keyed by subscriber registration index rather than by a
// concatenated URI+classname string, as spec §9 directs.
package decision

import (
	"sync"

	"github.com/rohmanhakim/crawlcore/subscriber"
)

// Hook identifies which decision hook a cached verdict belongs to.
type Hook int

const (
	ShouldRequest Hook = iota
	NeedsContent
)

type key struct {
	uri             string
	subscriberIndex int
	hook            Hook
}

// Cache is a single crawl pass's decision memo. It is not persisted and
// is safe for concurrent use from multiple goroutines streaming chunks.
type Cache struct {
	mu sync.RWMutex
	m  map[key]subscriber.Verdict
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{m: make(map[key]subscriber.Verdict)}
}

// Get returns the cached verdict for (uri, subscriberIndex, hook), or
// Abstain on a miss — the documented default.
func (c *Cache) Get(uri string, subscriberIndex int, hook Hook) subscriber.Verdict {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.m[key{uri, subscriberIndex, hook}]
	if !ok {
		return subscriber.Abstain
	}
	return v
}

// Lookup is like Get but also reports whether a verdict was stored.
func (c *Cache) Lookup(uri string, subscriberIndex int, hook Hook) (subscriber.Verdict, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.m[key{uri, subscriberIndex, hook}]
	return v, ok
}

// Set stores the verdict for (uri, subscriberIndex, hook). A hook is
// polled at most once per (URI, subscriber) per pass, so Set is called
// at most once per key during a single Crawl().
func (c *Cache) Set(uri string, subscriberIndex int, hook Hook, v subscriber.Verdict) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key{uri, subscriberIndex, hook}] = v
}
