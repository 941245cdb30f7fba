package queue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rohmanhakim/crawlcore/baseuri"
	"github.com/rohmanhakim/crawlcore/crawluri"
	"github.com/rohmanhakim/crawlcore/failure"
)

// crawlUriDTO is the JSON-serializable form of a CrawlUri record,
// following the same DTO round-trip pattern used for configuration.
type crawlUriDTO struct {
	URI       string   `json:"uri"`
	Level     int      `json:"level"`
	Parent    string   `json:"parent"`
	Processed bool     `json:"processed"`
	Tags      []string `json:"tags"`
}

type jobDTO struct {
	JobId    string        `json:"jobId"`
	BaseUris []string      `json:"baseUris"`
	Entries  []crawlUriDTO `json:"entries"`
}

// FileQueue is a persistent Queue backend: one JSON file per job under
// Dir, rewritten on every Add. Suitable for single-process resumable
// crawls; it does not arbitrate between two processes sharing a jobId.
type FileQueue struct {
	Dir string

	mu    sync.Mutex
	cache map[string]*job
}

// NewFileQueue returns a FileQueue rooted at dir, creating it if needed.
func NewFileQueue(dir string) (*FileQueue, failure.ClassifiedError) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &failure.UnknownError{Cause: err}
	}
	return &FileQueue{Dir: dir, cache: make(map[string]*job)}, nil
}

func (q *FileQueue) path(jobId string) string {
	return filepath.Join(q.Dir, jobId+".json")
}

func (q *FileQueue) CreateJobId(bases baseuri.Collection) (string, failure.ClassifiedError) {
	if bases.Empty() {
		return "", &EmptyBaseUrisError{}
	}

	jobId, err := randomJobId()
	if err != nil {
		return "", &failure.UnknownError{Cause: err}
	}

	j := &job{bases: bases, byURI: make(map[string]*crawluri.CrawlUri)}
	var ferr failure.ClassifiedError
	bases.Each(func(uri string) {
		if ferr != nil {
			return
		}
		c, cerr := crawluri.New(uri, 0, false, "")
		if cerr != nil {
			ferr = &failure.UnknownError{Cause: cerr}
			return
		}
		j.byURI[uri] = c
		j.order.enqueue(uri)
	})
	if ferr != nil {
		return "", ferr
	}

	q.mu.Lock()
	q.cache[jobId] = j
	q.mu.Unlock()

	if err := q.persist(jobId, j); err != nil {
		return "", err
	}
	return jobId, nil
}

func (q *FileQueue) IsJobIdValid(jobId string) bool {
	if q.load(jobId) == nil {
		return false
	}
	return true
}

func (q *FileQueue) GetBaseUris(jobId string) (baseuri.Collection, bool) {
	j := q.load(jobId)
	if j == nil {
		return baseuri.Collection{}, false
	}
	return j.bases, true
}

func (q *FileQueue) Get(jobId, uri string) (*crawluri.CrawlUri, bool) {
	j := q.load(jobId)
	if j == nil {
		return nil, false
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	c, ok := j.byURI[uri]
	return c, ok
}

func (q *FileQueue) Add(jobId string, c *crawluri.CrawlUri) failure.ClassifiedError {
	j := q.load(jobId)
	if j == nil {
		return &InvalidJobIdError{JobId: jobId}
	}

	j.mu.Lock()
	if _, existed := j.byURI[c.URI()]; !existed {
		j.order.enqueue(c.URI())
	}
	j.byURI[c.URI()] = c
	j.mu.Unlock()

	return q.persist(jobId, j)
}

func (q *FileQueue) GetNext(jobId string) (*crawluri.CrawlUri, bool) {
	j := q.load(jobId)
	if j == nil {
		return nil, false
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	for i := 0; i < len(j.order); i++ {
		uri, ok := j.order.dequeue()
		if !ok {
			break
		}
		c := j.byURI[uri]
		j.order.enqueue(uri)
		if c != nil && !c.Processed() {
			return c, true
		}
	}
	return nil, false
}

// load returns the in-memory job, reading it from disk on first access.
func (q *FileQueue) load(jobId string) *job {
	q.mu.Lock()
	defer q.mu.Unlock()

	if j, ok := q.cache[jobId]; ok {
		return j
	}

	data, err := os.ReadFile(q.path(jobId))
	if err != nil {
		return nil
	}

	var dto jobDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil
	}

	bases, err := baseuri.New(dto.BaseUris...)
	if err != nil {
		return nil
	}

	j := &job{bases: bases, byURI: make(map[string]*crawluri.CrawlUri)}
	for _, e := range dto.Entries {
		c, err := crawluri.New(e.URI, e.Level, e.Processed, e.Parent)
		if err != nil {
			continue
		}
		for _, t := range e.Tags {
			c.AddTag(t)
		}
		j.byURI[e.URI] = c
		j.order.enqueue(e.URI)
	}

	q.cache[jobId] = j
	return j
}

func (q *FileQueue) persist(jobId string, j *job) failure.ClassifiedError {
	j.mu.Lock()
	dto := jobDTO{JobId: jobId, BaseUris: j.bases.Slice()}
	for _, uri := range j.order {
		c, ok := j.byURI[uri]
		if !ok {
			continue
		}
		dto.Entries = append(dto.Entries, crawlUriDTO{
			URI:       c.URI(),
			Level:     c.Level(),
			Parent:    c.Parent(),
			Processed: c.Processed(),
			Tags:      c.Tags(),
		})
	}
	j.mu.Unlock()

	data, err := json.MarshalIndent(dto, "", "  ")
	if err != nil {
		return &failure.UnknownError{Cause: err}
	}

	tmp := q.path(jobId) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &failure.UnknownError{Cause: err}
	}
	if err := os.Rename(tmp, q.path(jobId)); err != nil {
		return &failure.UnknownError{Cause: fmt.Errorf("rename job file: %w", err)}
	}
	return nil
}
