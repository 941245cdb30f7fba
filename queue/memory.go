package queue

import (
	"crypto/rand"
	"encoding/hex"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/rohmanhakim/crawlcore/baseuri"
	"github.com/rohmanhakim/crawlcore/crawluri"
	"github.com/rohmanhakim/crawlcore/failure"
)

// fifo is a minimal generic FIFO, the same shape used throughout this
// corpus for ordered work: append on Enqueue, pop-from-front on Dequeue.
type fifo[T any] []T

func (f *fifo[T]) enqueue(item T) { *f = append(*f, item) }

func (f *fifo[T]) dequeue() (T, bool) {
	var zero T
	if len(*f) == 0 {
		return zero, false
	}
	first := (*f)[0]
	*f = (*f)[1:]
	return first, true
}

type job struct {
	bases baseuri.Collection

	mu       sync.Mutex
	byURI    map[string]*crawluri.CrawlUri
	order    fifo[string]
	seen     *bloom.BloomFilter // fast-reject pre-filter ahead of byURI
}

// MemoryQueue is the transient, in-process Queue backend: every job
// lives only as long as the process, backed by a map plus an
// insertion-order FIFO for fairness and a bloom filter fast-reject layer
// in front of it, so Get on a large frontier stays cheap when most
// lookups are "not present".
type MemoryQueue struct {
	mu   sync.Mutex
	jobs map[string]*job
}

// NewMemoryQueue returns an empty MemoryQueue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{jobs: make(map[string]*job)}
}

func (q *MemoryQueue) CreateJobId(bases baseuri.Collection) (string, failure.ClassifiedError) {
	if bases.Empty() {
		return "", &EmptyBaseUrisError{}
	}

	jobId, err := randomJobId()
	if err != nil {
		return "", &failure.UnknownError{Cause: err}
	}

	j := &job{
		bases: bases,
		byURI: make(map[string]*crawluri.CrawlUri),
		seen:  bloom.NewWithEstimates(100000, 0.01),
	}

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
		j.seen.AddString(uri)
	})
	if ferr != nil {
		return "", ferr
	}

	q.mu.Lock()
	q.jobs[jobId] = j
	q.mu.Unlock()

	return jobId, nil
}

func (q *MemoryQueue) IsJobIdValid(jobId string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.jobs[jobId]
	return ok
}

func (q *MemoryQueue) GetBaseUris(jobId string) (baseuri.Collection, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[jobId]
	if !ok {
		return baseuri.Collection{}, false
	}
	return j.bases, true
}

func (q *MemoryQueue) Get(jobId, uri string) (*crawluri.CrawlUri, bool) {
	q.mu.Lock()
	j, ok := q.jobs[jobId]
	q.mu.Unlock()
	if !ok {
		return nil, false
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.seen != nil && !j.seen.TestString(uri) {
		return nil, false
	}
	c, ok := j.byURI[uri]
	return c, ok
}

func (q *MemoryQueue) Add(jobId string, c *crawluri.CrawlUri) failure.ClassifiedError {
	q.mu.Lock()
	j, ok := q.jobs[jobId]
	q.mu.Unlock()
	if !ok {
		return &InvalidJobIdError{JobId: jobId}
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if _, existed := j.byURI[c.URI()]; !existed {
		j.order.enqueue(c.URI())
		j.seen.AddString(c.URI())
	}
	j.byURI[c.URI()] = c
	return nil
}

func (q *MemoryQueue) GetNext(jobId string) (*crawluri.CrawlUri, bool) {
	q.mu.Lock()
	j, ok := q.jobs[jobId]
	q.mu.Unlock()
	if !ok {
		return nil, false
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	// Fair scan: requeue processed entries we pass over so GetNext never
	// starves an unprocessed entry behind them.
	for i := 0; i < len(j.order); i++ {
		uri, ok := j.order.dequeue()
		if !ok {
			break
		}
		c := j.byURI[uri]
		if c != nil && !c.Processed() {
			j.order.enqueue(uri)
			return c, true
		}
		j.order.enqueue(uri)
	}
	return nil, false
}

func randomJobId() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
