// Package engine implements the crawl dispatcher (spec component C7):
// the main loop that turns a Queue into a bounded stream of concurrent
// HTTP requests, multiplexes their streamed responses, and drives the
// registered subscribers through the decision protocol.
package engine

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/rohmanhakim/crawlcore/baseuri"
	"github.com/rohmanhakim/crawlcore/crawlconfig"
	"github.com/rohmanhakim/crawlcore/crawllog"
	"github.com/rohmanhakim/crawlcore/crawluri"
	"github.com/rohmanhakim/crawlcore/decision"
	"github.com/rohmanhakim/crawlcore/failure"
	"github.com/rohmanhakim/crawlcore/httpclient"
	"github.com/rohmanhakim/crawlcore/queue"
	"github.com/rohmanhakim/crawlcore/subscriber"
)

// Engine is the dispatcher. Its fields are all unexported;
// callers interact through Create/Resume, the With... modifiers,
// AddSubscriber and Crawl.
type Engine struct {
	cfg    crawlconfig.Config
	q      queue.Queue
	client httpclient.Client
	jobId  string

	subscribers []subscriber.Subscriber
	caps        []subscriber.Capabilities

	decisions *decision.Cache
	limiter   *rate.Limiter

	// running and requestsSent are mutated only from the dispatch
	// goroutine running Crawl; no lock is needed (spec §5).
	running      map[string]struct{}
	requestsSent int
}

// Create seeds a new job from baseUris and returns an Engine ready to
// Crawl. It fails with an EmptyBaseUrisError when baseUris is empty.
// client may be nil, in which case a default httpclient.HTTPAdapter is used.
func Create(baseUris baseuri.Collection, q queue.Queue, client httpclient.Client) (*Engine, failure.ClassifiedError) {
	jobId, err := q.CreateJobId(baseUris)
	if err != nil {
		return nil, err
	}
	return newEngine(jobId, q, client), nil
}

// Resume rebuilds an Engine for an existing jobId. It fails with an
// InvalidJobIdError when the queue does not recognize jobId.
func Resume(jobId string, q queue.Queue, client httpclient.Client) (*Engine, failure.ClassifiedError) {
	if !q.IsJobIdValid(jobId) {
		return nil, &queue.InvalidJobIdError{JobId: jobId}
	}
	return newEngine(jobId, q, client), nil
}

func newEngine(jobId string, q queue.Queue, client httpclient.Client) *Engine {
	if client == nil {
		client = httpclient.NewHTTPAdapter()
	}
	cfg, _ := crawlconfig.WithDefault().Build()
	return &Engine{
		cfg:       cfg,
		q:         q,
		client:    client,
		jobId:     jobId,
		decisions: decision.New(),
		limiter:   rate.NewLimiter(rate.Inf, 1),
		running:   make(map[string]struct{}),
	}
}

// clone returns a copy of e sharing the queue, client, subscribers and
// decision cache, with the given config. Every EngineAware subscriber
// is rebound to the clone, per spec's cyclic-reference design note.
func (e *Engine) clone(cfg crawlconfig.Config) *Engine {
	n := &Engine{
		cfg:         cfg,
		q:           e.q,
		client:      e.client,
		jobId:       e.jobId,
		subscribers: append([]subscriber.Subscriber(nil), e.subscribers...),
		caps:        append([]subscriber.Capabilities(nil), e.caps...),
		decisions:   e.decisions,
		limiter:     newLimiterFor(cfg.RequestDelay()),
		running:     make(map[string]struct{}),
	}
	for _, c := range n.caps {
		if c.EngineAware != nil {
			c.EngineAware.SetEngine(n)
		}
	}
	return n
}

func newLimiterFor(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

func (e *Engine) WithUserAgent(ua string) *Engine { return e.clone(e.cfg.WithUserAgent(ua)) }
func (e *Engine) WithMaxRequests(n int) *Engine    { return e.clone(e.cfg.WithMaxRequests(n)) }
func (e *Engine) WithConcurrency(n int) *Engine    { return e.clone(e.cfg.WithConcurrency(n)) }
func (e *Engine) WithMaxDepth(n int) *Engine       { return e.clone(e.cfg.WithMaxDepth(n)) }
func (e *Engine) WithRequestDelay(d time.Duration) *Engine {
	return e.clone(e.cfg.WithRequestDelay(d))
}
func (e *Engine) WithLogger(l crawllog.Logger) *Engine { return e.clone(e.cfg.WithLogger(l)) }

// AddSubscriber registers s. Registration order is the observable hook
// dispatch order. If s is EngineAware, SetEngine(e) is called immediately.
func (e *Engine) AddSubscriber(s subscriber.Subscriber) {
	e.subscribers = append(e.subscribers, s)
	caps := subscriber.Detect(s)
	e.caps = append(e.caps, caps)
	if caps.EngineAware != nil {
		caps.EngineAware.SetEngine(e)
	}
}

// AddUriToQueue returns the existing CrawlUri for uri if one is already
// present (no side effect), else inserts a new one at foundOn.Level()+1
// with parent foundOn.URI(). It guarantees at most one CrawlUri per
// normalized URI per job.
func (e *Engine) AddUriToQueue(uri string, foundOn *crawluri.CrawlUri, processed bool) (*crawluri.CrawlUri, error) {
	normalized, err := crawluri.Normalize(uri)
	if err != nil {
		return nil, err
	}
	if existing, ok := e.q.Get(e.jobId, normalized); ok {
		return existing, nil
	}

	level := 0
	parent := ""
	if foundOn != nil {
		level = foundOn.Level() + 1
		parent = foundOn.URI()
	}

	c, err := crawluri.New(uri, level, processed, parent)
	if err != nil {
		return nil, err
	}
	if addErr := e.q.Add(e.jobId, c); addErr != nil {
		return nil, addErr
	}
	return c, nil
}

// GetCrawlUri looks up a previously enqueued CrawlUri by its normalized identity.
func (e *Engine) GetCrawlUri(uri string) (*crawluri.CrawlUri, bool) {
	normalized, err := crawluri.Normalize(uri)
	if err != nil {
		return nil, false
	}
	return e.q.Get(e.jobId, normalized)
}

// JobId returns the job this Engine is operating on.
func (e *Engine) JobId() string { return e.jobId }

// Crawl runs the main loop to completion: it blocks until the queue is
// drained of unprocessed entries and every in-flight request has
// resolved, then invokes FinishedCrawling on every capable subscriber
// exactly once, in registration order.
func (e *Engine) Crawl(ctx context.Context) failure.ClassifiedError {
	inFlight := make(map[string]httpclient.Response)

	for {
		if err := e.prepare(ctx, inFlight); err != nil {
			return err
		}

		if len(inFlight) == 0 {
			break
		}

		responses := make([]httpclient.Response, 0, len(inFlight))
		for _, r := range inFlight {
			responses = append(responses, r)
		}

		if err := e.streamOnce(ctx, inFlight, responses); err != nil {
			return err
		}
	}

	e.cfg.Logger().Log(crawllog.LevelDebug, fmt.Sprintf("crawl finished: requestsSent=%d", e.requestsSent))

	for _, c := range e.caps {
		if c.FinishedCrawling != nil {
			c.FinishedCrawling.FinishedCrawling()
		}
	}
	return nil
}

// prepare fills inFlight up to concurrency, pulling from the queue and
// enforcing scheme, depth and shouldRequest gates.
func (e *Engine) prepare(ctx context.Context, inFlight map[string]httpclient.Response) failure.ClassifiedError {
	for len(inFlight) < e.cfg.Concurrency() {
		if e.cfg.MaxRequests() > 0 && e.requestsSent >= e.cfg.MaxRequests() {
			return nil
		}

		c, ok := e.q.GetNext(e.jobId)
		if !ok {
			return nil
		}
		if c.Processed() {
			continue
		}

		c.MarkProcessed()
		if err := e.q.Add(e.jobId, c); err != nil {
			return err
		}

		u, err := url.Parse(c.URI())
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			e.cfg.Logger().Log(crawllog.LevelDebug, c.CreateLogMessage("rejecting non-http(s) scheme"))
			continue
		}

		if e.cfg.MaxDepth() != 0 && c.Level() >= e.cfg.MaxDepth() {
			e.cfg.Logger().Log(crawllog.LevelDebug, c.CreateLogMessage("depth limit reached"))
			continue
		}

		if !e.pollShouldRequest(c) {
			continue
		}

		if e.cfg.RequestDelay() > 0 {
			if err := e.limiter.Wait(ctx); err != nil {
				return &failure.UnknownError{Cause: err}
			}
		}

		resp, reqErr := e.client.Request(ctx, c.URI(), httpclient.Options{
			UserAgent: e.cfg.UserAgent(),
			UserData:  c,
		})
		if reqErr != nil {
			e.handleException(c, reqErr, nil, httpclient.Chunk{})
			continue
		}

		if _, already := e.running[c.URI()]; !already {
			e.requestsSent++
		}
		e.running[c.URI()] = struct{}{}
		inFlight[c.URI()] = resp
	}
	return nil
}

// pollShouldRequest polls every subscriber's shouldRequest(c) in
// registration order, caching each verdict. Returns true iff at least
// one subscriber returned Positive.
func (e *Engine) pollShouldRequest(c *crawluri.CrawlUri) bool {
	positive := false
	for i, s := range e.subscribers {
		if _, cached := e.decisions.Lookup(c.URI(), i, decision.ShouldRequest); cached {
			continue
		}
		v := s.ShouldRequest(c)
		e.decisions.Set(c.URI(), i, decision.ShouldRequest, v)
		if v == subscriber.Positive {
			positive = true
		}
	}
	return positive
}

// streamOnce multiplexes one round of (response, chunk) events across
// every in-flight response and drives needsContent/onLastChunk.
func (e *Engine) streamOnce(ctx context.Context, inFlight map[string]httpclient.Response, responses []httpclient.Response) failure.ClassifiedError {
	for ev := range e.client.Stream(ctx, responses) {
		c, ok := ev.Response.UserData().(*crawluri.CrawlUri)
		if !ok {
			continue
		}

		if ev.Err != nil {
			// Both transport failures and header-materialization HTTP
			// errors are terminal for this response: mark it finished
			// before notifying subscribers, so they observe consistent
			// running-set state (spec §4.3).
			e.finishRequest(c, inFlight)
			e.handleException(c, ev.Err, ev.Response, ev.Chunk)
			continue
		}

		if ev.Chunk.IsFirst {
			if _, err := ev.Response.Headers(); err != nil {
				e.handleException(c, err, ev.Response, ev.Chunk)
				e.finishRequest(c, inFlight)
				continue
			}
			if !e.pollNeedsContent(c, ev.Response, ev.Chunk) {
				ev.Response.Cancel()
				e.finishRequest(c, inFlight)
				continue
			}
		}

		if ev.Chunk.IsLast {
			e.pollOnLastChunk(c, ev.Response, ev.Chunk)
			e.finishRequest(c, inFlight)
		}
	}
	return nil
}

func (e *Engine) pollNeedsContent(c *crawluri.CrawlUri, resp httpclient.Response, chunk httpclient.Chunk) bool {
	positive := false
	for i, s := range e.subscribers {
		if v, _ := e.decisions.Lookup(c.URI(), i, decision.ShouldRequest); v == subscriber.Negative {
			continue
		}
		v := s.NeedsContent(c, resp, chunk)
		e.decisions.Set(c.URI(), i, decision.NeedsContent, v)
		if v == subscriber.Positive {
			positive = true
		}
	}
	return positive
}

func (e *Engine) pollOnLastChunk(c *crawluri.CrawlUri, resp httpclient.Response, chunk httpclient.Chunk) {
	for i, s := range e.subscribers {
		if v, _ := e.decisions.Lookup(c.URI(), i, decision.NeedsContent); v == subscriber.Negative {
			continue
		}
		s.OnLastChunk(c, resp, chunk)
	}
}

// handleException routes an exception per spec §4.3: log at DEBUG, then
// dispatch to every ExceptionSubscriber by exception kind. Only
// *httpclient.TransportError and *httpclient.HTTPError reach a subscriber
// hook; an error of any other kind is only logged, no hook is invoked,
// and the crawl continues.
func (e *Engine) handleException(c *crawluri.CrawlUri, err failure.ClassifiedError, resp httpclient.Response, chunk httpclient.Chunk) {
	e.cfg.Logger().Log(crawllog.LevelDebug, c.CreateLogMessage(fmt.Sprintf("exception: %T: %v", err, err)), "cause", exceptionCause(err).String())

	for _, cap := range e.caps {
		if cap.Exception == nil {
			continue
		}
		switch err.(type) {
		case *httpclient.TransportError:
			cap.Exception.OnTransportException(c, err, resp)
		case *httpclient.HTTPError:
			cap.Exception.OnHttpException(c, err, resp, chunk)
		}
	}
}

// exceptionCause maps an exception to an observational-only crawllog.Cause;
// this mapping is used for log grouping alone and must never gate retry
// or abort decisions, which are decided by failure.Severity instead.
func exceptionCause(err failure.ClassifiedError) crawllog.Cause {
	switch err.(type) {
	case *httpclient.TransportError:
		return crawllog.CauseNetworkFailure
	case *httpclient.HTTPError:
		return crawllog.CauseContentInvalid
	default:
		return crawllog.CauseUnknown
	}
}

func (e *Engine) finishRequest(c *crawluri.CrawlUri, inFlight map[string]httpclient.Response) {
	delete(e.running, c.URI())
	delete(inFlight, c.URI())
}
