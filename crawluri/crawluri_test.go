package crawluri_test

import (
	"testing"

	"github.com/rohmanhakim/crawlcore/crawluri"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases scheme and host", "HTTP://Example.COM/path", "http://example.com/path"},
		{"strips default http port", "http://example.com:80/path", "http://example.com/path"},
		{"strips default https port", "https://example.com:443/path", "https://example.com/path"},
		{"keeps non-default port", "http://example.com:8080/path", "http://example.com:8080/path"},
		{"strips fragment", "http://example.com/path#section", "http://example.com/path"},
		{"strips query", "http://example.com/path?a=1&b=2", "http://example.com/path"},
		{"resolves dot segments", "http://example.com/a/./b/../c", "http://example.com/a/c"},
		{"resolves leading dotdot at root", "http://example.com/../a", "http://example.com/a"},
		{"strips non-root trailing slash", "http://example.com/a/b/", "http://example.com/a/b"},
		{"keeps root slash", "http://example.com/", "http://example.com/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := crawluri.Normalize(tt.in)
			if err != nil {
				t.Fatalf("Normalize(%q) returned error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_InvalidURI(t *testing.T) {
	if _, err := crawluri.Normalize("http://[::1"); err == nil {
		t.Fatal("expected error for malformed uri, got nil")
	}
}

func TestNew_NormalizesAndSetsFields(t *testing.T) {
	c, err := crawluri.New("HTTP://Example.com/a/b/", 2, false, "http://example.com/a")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if c.URI() != "http://example.com/a/b" {
		t.Errorf("URI() = %q, want normalized form", c.URI())
	}
	if c.Level() != 2 {
		t.Errorf("Level() = %d, want 2", c.Level())
	}
	if c.Parent() != "http://example.com/a" {
		t.Errorf("Parent() = %q", c.Parent())
	}
	if c.Processed() {
		t.Error("expected Processed() false")
	}
}

func TestMarkProcessed(t *testing.T) {
	c, err := crawluri.New("http://example.com", 0, false, "")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if c.Processed() {
		t.Fatal("expected fresh CrawlUri to be unprocessed")
	}
	c.MarkProcessed()
	if !c.Processed() {
		t.Error("expected Processed() true after MarkProcessed")
	}
	// idempotent
	c.MarkProcessed()
	if !c.Processed() {
		t.Error("expected Processed() to remain true")
	}
}

func TestTags(t *testing.T) {
	c, err := crawluri.New("http://example.com", 0, false, "")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if c.HasTag("noindex") {
		t.Fatal("expected no tags on a fresh CrawlUri")
	}
	c.AddTag("noindex")
	c.AddTag("nofollow")
	if !c.HasTag("noindex") || !c.HasTag("nofollow") {
		t.Error("expected both tags to be present")
	}
	if len(c.Tags()) != 2 {
		t.Errorf("Tags() length = %d, want 2", len(c.Tags()))
	}
}

func TestCreateLogMessage(t *testing.T) {
	c, err := crawluri.New("http://example.com", 0, false, "")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	msg := c.CreateLogMessage("hello")
	if msg == "" {
		t.Error("expected a non-empty log message")
	}
}
