// Package queue implements the Queue contract (spec component C3/§4.4):
// a durable or in-memory store of CrawlUri per job, with deduplication
// and fair next-to-process selection. The Engine depends only on the
// Queue interface defined here.
package queue

import (
	"github.com/rohmanhakim/crawlcore/baseuri"
	"github.com/rohmanhakim/crawlcore/crawluri"
	"github.com/rohmanhakim/crawlcore/failure"
)

// Queue is the storage contract the Engine uses for a job's frontier.
// Implementations must serialize concurrent upserts per key; a Queue
// backend shared by two live Engine instances on the same jobId is the
// backend's responsibility to arbitrate, not the Engine's.
type Queue interface {
	// CreateJobId seeds the queue with a level-0 CrawlUri for each base
	// URI and returns an opaque, implementation-defined job identifier
	// that is stable across restarts for persistent backends.
	CreateJobId(bases baseuri.Collection) (string, failure.ClassifiedError)
	IsJobIdValid(jobId string) bool
	GetBaseUris(jobId string) (baseuri.Collection, bool)

	// Get looks up a CrawlUri by its normalized identity.
	Get(jobId, uri string) (*crawluri.CrawlUri, bool)
	// Add upserts a CrawlUri by identity; a second Add with an existing
	// key replaces the stored record, used to persist the Processed
	// transition and tag updates.
	Add(jobId string, c *crawluri.CrawlUri) failure.ClassifiedError
	// GetNext returns any CrawlUri with Processed() == false, or
	// (nil, false) if none remain. Ordering is implementation-defined
	// but must be fair: every unprocessed entry is eventually returned.
	GetNext(jobId string) (*crawluri.CrawlUri, bool)
}

// EmptyBaseUrisError is returned when CreateJobId is called with no
// seeds. Fatal at job construction.
type EmptyBaseUrisError struct{}

func (e *EmptyBaseUrisError) Error() string { return "queue: cannot create a job with no base uris" }

func (e *EmptyBaseUrisError) Severity() failure.Severity { return failure.SeverityFatal }

// InvalidJobIdError is returned when Resume is requested for a job the
// queue does not know. Fatal at Engine construction.
type InvalidJobIdError struct {
	JobId string
}

func (e *InvalidJobIdError) Error() string { return "queue: invalid job id " + e.JobId }

func (e *InvalidJobIdError) Severity() failure.Severity { return failure.SeverityFatal }
