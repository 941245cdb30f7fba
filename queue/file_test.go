package queue_test

import (
	"testing"

	"github.com/rohmanhakim/crawlcore/baseuri"
	"github.com/rohmanhakim/crawlcore/crawluri"
	"github.com/rohmanhakim/crawlcore/queue"
)

func TestFileQueue_CreateAndReload(t *testing.T) {
	dir := t.TempDir()

	q, err := queue.NewFileQueue(dir)
	if err != nil {
		t.Fatalf("NewFileQueue returned error: %v", err)
	}

	bases, err := baseuri.New("http://example.com")
	if err != nil {
		t.Fatalf("baseuri.New returned error: %v", err)
	}

	jobId, cerr := q.CreateJobId(bases)
	if cerr != nil {
		t.Fatalf("CreateJobId returned error: %v", cerr)
	}

	c, err := crawluri.New("http://example.com/a", 1, false, "http://example.com")
	if err != nil {
		t.Fatalf("crawluri.New returned error: %v", err)
	}
	if aerr := q.Add(jobId, c); aerr != nil {
		t.Fatalf("Add returned error: %v", aerr)
	}

	// A fresh FileQueue rooted at the same directory must reload the
	// persisted job from disk rather than finding it in a warm cache.
	reloaded, err := queue.NewFileQueue(dir)
	if err != nil {
		t.Fatalf("NewFileQueue (reload) returned error: %v", err)
	}

	if !reloaded.IsJobIdValid(jobId) {
		t.Fatal("expected reloaded queue to recognize persisted jobId")
	}

	got, ok := reloaded.Get(jobId, "http://example.com/a")
	if !ok {
		t.Fatal("expected persisted entry to be present after reload")
	}
	if got.Level() != 1 {
		t.Errorf("Level() = %d, want 1", got.Level())
	}
	if got.Processed() {
		t.Error("expected reloaded entry to be unprocessed")
	}
}

func TestFileQueue_Add_InvalidJobId(t *testing.T) {
	dir := t.TempDir()
	q, err := queue.NewFileQueue(dir)
	if err != nil {
		t.Fatalf("NewFileQueue returned error: %v", err)
	}

	c, err := crawluri.New("http://example.com", 0, false, "")
	if err != nil {
		t.Fatalf("crawluri.New returned error: %v", err)
	}

	if aerr := q.Add("nope", c); aerr == nil {
		t.Fatal("expected error adding to unknown jobId")
	}
}

func TestFileQueue_GetNext_SkipsProcessed(t *testing.T) {
	dir := t.TempDir()
	q, err := queue.NewFileQueue(dir)
	if err != nil {
		t.Fatalf("NewFileQueue returned error: %v", err)
	}

	bases, err := baseuri.New("http://example.com/a", "http://example.com/b")
	if err != nil {
		t.Fatalf("baseuri.New returned error: %v", err)
	}
	jobId, cerr := q.CreateJobId(bases)
	if cerr != nil {
		t.Fatalf("CreateJobId returned error: %v", cerr)
	}

	first, ok := q.GetNext(jobId)
	if !ok {
		t.Fatal("expected a first unprocessed entry")
	}
	first.MarkProcessed()
	if aerr := q.Add(jobId, first); aerr != nil {
		t.Fatalf("Add returned error: %v", aerr)
	}

	second, ok := q.GetNext(jobId)
	if !ok {
		t.Fatal("expected a second unprocessed entry")
	}
	if second.URI() == first.URI() {
		t.Error("expected GetNext to skip the already-processed entry")
	}
}

func TestFileQueue_CreateJobId_EmptyBases(t *testing.T) {
	dir := t.TempDir()
	q, err := queue.NewFileQueue(dir)
	if err != nil {
		t.Fatalf("NewFileQueue returned error: %v", err)
	}

	if _, cerr := q.CreateJobId(baseuri.Collection{}); cerr == nil {
		t.Fatal("expected error for empty base uris")
	}
}
