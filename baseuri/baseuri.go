// Package baseuri implements BaseUriCollection (spec component C2): an
// unordered set-with-iteration of seed URIs.
package baseuri

import "github.com/rohmanhakim/crawlcore/crawluri"

// Collection is an immutable, deduplicated set of seed URIs, normalized
// at construction time.
type Collection struct {
	uris []string
}

// New builds a Collection from raw seed URI strings. Invalid URIs are
// skipped; duplicates (after normalization) collapse to one entry.
func New(raw ...string) (Collection, error) {
	seen := make(map[string]struct{}, len(raw))
	var uris []string
	for _, r := range raw {
		normalized, err := crawluri.Normalize(r)
		if err != nil {
			return Collection{}, err
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		uris = append(uris, normalized)
	}
	return Collection{uris: uris}, nil
}

// Empty reports whether the collection has no seeds.
func (c Collection) Empty() bool { return len(c.uris) == 0 }

// Len returns the number of seed URIs.
func (c Collection) Len() int { return len(c.uris) }

// Each calls fn for every seed URI, in insertion order.
func (c Collection) Each(fn func(uri string)) {
	for _, u := range c.uris {
		fn(u)
	}
}

// Slice returns a copy of the underlying seed URIs.
func (c Collection) Slice() []string {
	out := make([]string, len(c.uris))
	copy(out, c.uris)
	return out
}
