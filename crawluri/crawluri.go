// Package crawluri implements the CrawlUri value object (spec component
// C1): a normalized URI plus its discovery metadata.
package crawluri

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/rohmanhakim/crawlcore/pkg/urlutil"
)

// CrawlUri is a normalized URI plus depth, ancestry, processed state and
// tags. Level and the normalized URI are immutable after construction;
// Processed and the tag set are mutated in place, so CrawlUri is a
// pointer-shaped value: every holder of a *CrawlUri for the same
// identity shares the same mutable state.
type CrawlUri struct {
	uri    string
	level  int
	parent string // empty iff level == 0

	mu        sync.Mutex
	processed bool
	tags      map[string]struct{}
}

// New constructs a CrawlUri, normalizing uri. parent must be the
// already-normalized identity of the discovering URI, or empty for a
// level-0 (seed) CrawlUri.
func New(uri string, level int, processed bool, parent string) (*CrawlUri, error) {
	normalized, err := Normalize(uri)
	if err != nil {
		return nil, err
	}
	return &CrawlUri{
		uri:       normalized,
		level:     level,
		parent:    parent,
		processed: processed,
		tags:      make(map[string]struct{}),
	}, nil
}

// URI returns the normalized identity of this CrawlUri.
func (c *CrawlUri) URI() string { return c.uri }

// Level returns the discovery depth: 0 for seeds, 1 for direct children, etc.
func (c *CrawlUri) Level() int { return c.level }

// Parent returns the normalized URI on which this one was discovered,
// or "" for level-0 CrawlUri.
func (c *CrawlUri) Parent() string { return c.parent }

// Processed reports whether the Engine has already dispatched this CrawlUri.
func (c *CrawlUri) Processed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processed
}

// MarkProcessed transitions Processed from false to true. It is a no-op
// if already processed; the transition is monotonic and happens at most
// once per CrawlUri.
func (c *CrawlUri) MarkProcessed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.processed = true
}

// AddTag attaches a string label to this CrawlUri. Tags are used by
// subscribers to communicate decisions to one another.
func (c *CrawlUri) AddTag(tag string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tags[tag] = struct{}{}
}

// HasTag reports whether tag was previously added.
func (c *CrawlUri) HasTag(tag string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.tags[tag]
	return ok
}

// Tags returns a snapshot of the current tag set.
func (c *CrawlUri) Tags() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.tags))
	for t := range c.tags {
		out = append(out, t)
	}
	return out
}

// CreateLogMessage returns a human-readable message including the URI
// and level, suitable for the logging facade's message field.
func (c *CrawlUri) CreateLogMessage(text string) string {
	return fmt.Sprintf("%s (uri=%s level=%d)", text, c.uri, c.level)
}

// Normalize applies the idempotent normalization required by spec §3:
// lowercase scheme/host, strip default ports, strip the fragment, strip
// query, resolve "."/".." path segments, and drop a non-root trailing
// slash. Normalize(Normalize(u)) == Normalize(u) for any valid u.
func Normalize(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("crawluri: invalid uri %q: %w", raw, err)
	}

	// urlutil.Canonicalize does not resolve "." / ".." path segments, so
	// that step runs first; everything else (case folding, default port
	// stripping, fragment/query removal, trailing slash) is delegated to
	// it to keep a single definition of "canonical" shared with the rest
	// of the module.
	if u.Path != "" {
		cleaned := path.Clean(u.Path)
		if cleaned == "." {
			cleaned = "/"
		}
		if !strings.HasPrefix(cleaned, "/") && strings.HasPrefix(u.Path, "/") {
			cleaned = "/" + cleaned
		}
		u.Path = cleaned
	}

	canonical := urlutil.Canonicalize(*u)
	return canonical.String(), nil
}
