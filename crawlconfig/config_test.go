package crawlconfig_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rohmanhakim/crawlcore/crawlconfig"
)

func TestWithDefault(t *testing.T) {
	c := crawlconfig.WithDefault()
	if c.UserAgent() != "crawlcore/1.0" {
		t.Errorf("UserAgent() = %q", c.UserAgent())
	}
	if c.Concurrency() != 1 {
		t.Errorf("Concurrency() = %d, want 1", c.Concurrency())
	}
	if c.MaxRequests() != 0 {
		t.Errorf("MaxRequests() = %d, want 0 (unbounded)", c.MaxRequests())
	}
	if c.MaxDepth() != 0 {
		t.Errorf("MaxDepth() = %d, want 0 (unbounded)", c.MaxDepth())
	}
	if c.RequestDelay() != 0 {
		t.Errorf("RequestDelay() = %v, want 0", c.RequestDelay())
	}
	if c.Logger() == nil {
		t.Error("expected a non-nil default logger")
	}
}

func TestConfig_WithModifiersDoNotMutateReceiver(t *testing.T) {
	base := crawlconfig.WithDefault()
	modified := base.WithUserAgent("custom-agent").WithMaxRequests(10).WithMaxDepth(3)

	if base.UserAgent() == modified.UserAgent() {
		t.Error("expected base to be unaffected by WithUserAgent")
	}
	if base.MaxRequests() != 0 {
		t.Errorf("base.MaxRequests() = %d, want unchanged 0", base.MaxRequests())
	}
	if modified.MaxRequests() != 10 {
		t.Errorf("modified.MaxRequests() = %d, want 10", modified.MaxRequests())
	}
	if modified.MaxDepth() != 3 {
		t.Errorf("modified.MaxDepth() = %d, want 3", modified.MaxDepth())
	}
}

func TestConfig_WithConcurrencyClampsToOne(t *testing.T) {
	c := crawlconfig.WithDefault().WithConcurrency(0)
	if c.Concurrency() != 1 {
		t.Errorf("Concurrency() = %d, want clamped to 1", c.Concurrency())
	}
	c = crawlconfig.WithDefault().WithConcurrency(-5)
	if c.Concurrency() != 1 {
		t.Errorf("Concurrency() = %d, want clamped to 1", c.Concurrency())
	}
}

func TestConfig_WithRequestDelayClampsNegative(t *testing.T) {
	c := crawlconfig.WithDefault().WithRequestDelay(-time.Second)
	if c.RequestDelay() != 0 {
		t.Errorf("RequestDelay() = %v, want clamped to 0", c.RequestDelay())
	}
}

func TestConfig_WithLoggerNilFallsBackToNoop(t *testing.T) {
	c := crawlconfig.WithDefault().WithLogger(nil)
	if c.Logger() == nil {
		t.Error("expected WithLogger(nil) to fall back to a non-nil logger")
	}
}

func TestConfig_Build(t *testing.T) {
	c, err := crawlconfig.Config{}.Build()
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if c.Concurrency() != 1 {
		t.Errorf("Concurrency() = %d, want defaulted to 1", c.Concurrency())
	}
	if c.UserAgent() != "crawlcore/1.0" {
		t.Errorf("UserAgent() = %q, want defaulted", c.UserAgent())
	}
	if c.Logger() == nil {
		t.Error("expected Build to default the logger")
	}
}

func TestWithConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	contents := `{
		"userAgent": "file-agent",
		"maxRequests": 100,
		"concurrency": 4,
		"maxDepth": 2,
		"requestDelay": "250ms"
	}`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write test config file: %v", err)
	}

	c, err := crawlconfig.WithConfigFile(path)
	if err != nil {
		t.Fatalf("WithConfigFile returned error: %v", err)
	}
	if c.UserAgent() != "file-agent" {
		t.Errorf("UserAgent() = %q", c.UserAgent())
	}
	if c.MaxRequests() != 100 {
		t.Errorf("MaxRequests() = %d, want 100", c.MaxRequests())
	}
	if c.Concurrency() != 4 {
		t.Errorf("Concurrency() = %d, want 4", c.Concurrency())
	}
	if c.MaxDepth() != 2 {
		t.Errorf("MaxDepth() = %d, want 2", c.MaxDepth())
	}
	if c.RequestDelay() != 250*time.Millisecond {
		t.Errorf("RequestDelay() = %v, want 250ms", c.RequestDelay())
	}
}

func TestWithConfigFile_MissingFile(t *testing.T) {
	if _, err := crawlconfig.WithConfigFile("/nonexistent/path/config.json"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestWithConfigFile_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("failed to write test config file: %v", err)
	}

	if _, err := crawlconfig.WithConfigFile(path); err == nil {
		t.Fatal("expected error for malformed JSON config file")
	}
}

func TestWithConfigFile_InvalidRequestDelay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"requestDelay": "not-a-duration"}`), 0o644); err != nil {
		t.Fatalf("failed to write test config file: %v", err)
	}

	if _, err := crawlconfig.WithConfigFile(path); err == nil {
		t.Fatal("expected error for invalid requestDelay")
	}
}
