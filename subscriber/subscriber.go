// Package subscriber defines the crawl decision protocol (spec
// component C5): the three required hooks every Subscriber implements,
// and the optional capability interfaces an Engine detects once at
// registration time rather than probing on every hook dispatch.
package subscriber

import (
	"github.com/rohmanhakim/crawlcore/crawluri"
	"github.com/rohmanhakim/crawlcore/failure"
	"github.com/rohmanhakim/crawlcore/httpclient"
)

// Verdict is the outcome of a decision hook.
type Verdict int

const (
	Abstain Verdict = iota
	Positive
	Negative
)

// Subscriber is the required contract. All three hooks run inline on
// the Engine's dispatch goroutine and must not block indefinitely.
type Subscriber interface {
	ShouldRequest(c *crawluri.CrawlUri) Verdict
	NeedsContent(c *crawluri.CrawlUri, resp httpclient.Response, chunk httpclient.Chunk) Verdict
	OnLastChunk(c *crawluri.CrawlUri, resp httpclient.Response, chunk httpclient.Chunk)
}

// ExceptionSubscriber is an optional capability: subscribers that want
// to observe transport- or HTTP-level failures implement it.
type ExceptionSubscriber interface {
	Subscriber
	OnTransportException(c *crawluri.CrawlUri, err failure.ClassifiedError, resp httpclient.Response)
	OnHttpException(c *crawluri.CrawlUri, err failure.ClassifiedError, resp httpclient.Response, chunk httpclient.Chunk)
}

// FinishedCrawlingSubscriber is an optional capability: subscribers
// notified exactly once per Crawl() call, after the loop has drained.
type FinishedCrawlingSubscriber interface {
	Subscriber
	FinishedCrawling()
}

// Engine is the narrow surface a subscriber needs to call back into the
// dispatcher: enqueue new work and look up existing CrawlUri.
// It is satisfied by *engine.Engine; defined here to avoid an import
// cycle between subscriber and engine.
type Engine interface {
	AddUriToQueue(uri string, foundOn *crawluri.CrawlUri, processed bool) (*crawluri.CrawlUri, error)
	GetCrawlUri(uri string) (*crawluri.CrawlUri, bool)
}

// EngineAware is an optional capability: subscribers that need to call
// back into the Engine implement it. SetEngine is called once on
// AddSubscriber and again on every clone-with-modifier, rebinding the
// subscriber to its new owning Engine. The Engine never treats this as
// ownership; the subscriber list is exclusively Engine-owned.
type EngineAware interface {
	Subscriber
	SetEngine(e Engine)
}

// Capabilities records which optional interfaces a Subscriber
// implements, computed once at registration time so the dispatch loop
// never performs a type assertion on the hot path.
type Capabilities struct {
	Exception        ExceptionSubscriber
	FinishedCrawling FinishedCrawlingSubscriber
	EngineAware      EngineAware
}

// Detect inspects s once and returns its cached capability set.
func Detect(s Subscriber) Capabilities {
	var caps Capabilities
	if e, ok := s.(ExceptionSubscriber); ok {
		caps.Exception = e
	}
	if f, ok := s.(FinishedCrawlingSubscriber); ok {
		caps.FinishedCrawling = f
	}
	if a, ok := s.(EngineAware); ok {
		caps.EngineAware = a
	}
	return caps
}
