// Package robotspolicy implements the bundled RobotsSubscriber (spec
// component C8): robots.txt disallow tagging, sitemap discovery from
// level-0 CrawlUri, and noindex/nofollow tagging from X-Robots-Tag and
// the <head><meta name="robots"> tag.
package robotspolicy

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/time/rate"

	"github.com/rohmanhakim/crawlcore/crawllog"
	"github.com/rohmanhakim/crawlcore/crawluri"
	"github.com/rohmanhakim/crawlcore/failure"
	"github.com/rohmanhakim/crawlcore/htmlscan"
	"github.com/rohmanhakim/crawlcore/httpclient"
	"github.com/rohmanhakim/crawlcore/pkg/retry"
	"github.com/rohmanhakim/crawlcore/pkg/timeutil"
	"github.com/rohmanhakim/crawlcore/subscriber"
)

// sideFetchLimiter caps robots.txt/sitemap fetches at 5/s regardless of how
// many origins the crawl touches concurrently: these are side fetches off
// the Engine's own requestDelay gate and should not be able to burst ahead
// of it.
var sideFetchLimiter = rate.NewLimiter(5, 1)

// fetchRetryParam bounds robots.txt/sitemap fetches to three attempts with
// exponential backoff; both are best-effort side fetches off the main
// request path, so they get a short budget rather than the Engine's own
// retry policy.
var fetchRetryParam = retry.NewRetryParam(
	200*time.Millisecond,
	100*time.Millisecond,
	1,
	3,
	timeutil.NewBackoffParam(200*time.Millisecond, 2.0, 2*time.Second),
)

// getWithRetry wraps client.Get with fetchRetryParam, classifying a
// transport failure as recoverable so retry.Retry will retry it.
func getWithRetry(client httpGetter, url string) (*http.Response, failure.ClassifiedError) {
	result := retry.Retry(fetchRetryParam, func() (*http.Response, failure.ClassifiedError) {
		waitCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		waitErr := sideFetchLimiter.Wait(waitCtx)
		cancel()
		if waitErr != nil {
			return nil, &httpclient.TransportError{URL: url, Message: "side-fetch rate limiter: " + waitErr.Error(), Cause: waitErr}
		}

		resp, err := client.Get(url)
		if err != nil {
			return nil, &httpclient.TransportError{URL: url, Message: err.Error(), Cause: err}
		}
		return resp, nil
	})
	return result.Value(), result.Err()
}

const (
	TagDisallowedRobotsTxt = "disallowed-robots-txt"
	TagNoindex             = "noindex"
	TagNofollow            = "nofollow"
)

// httpGetter is the narrow synchronous-GET surface robotspolicy needs
// for robots.txt and sitemap fetches; satisfied by *http.Client.
type httpGetter interface {
	Get(url string) (*http.Response, error)
}

// Subscriber is the bundled robots/sitemap/meta-robots policy
// subscriber. It is engine-aware so it can call back AddUriToQueue for
// sitemap-discovered URIs.
type Subscriber struct {
	UserAgent string
	Logger    crawllog.Logger
	client    httpGetter

	engine subscriber.Engine

	mu    sync.Mutex
	cache map[string]*robotstxt.RobotsData // origin -> parsed robots.txt
}

// New returns a Subscriber that fetches robots.txt/sitemaps with client
// (typically &http.Client{}); if client is nil, http.DefaultClient is used.
func New(userAgent string, logger crawllog.Logger, client httpGetter) *Subscriber {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = crawllog.Noop{}
	}
	return &Subscriber{
		UserAgent: userAgent,
		Logger:    logger,
		client:    client,
		cache:     make(map[string]*robotstxt.RobotsData),
	}
}

func (s *Subscriber) SetEngine(e subscriber.Engine) { s.engine = e }

// ShouldRequest fetches (or reuses the cached) robots.txt for c's
// origin, tags c as disallowed when applicable, and discovers sitemaps
// for level-0 CrawlUri. It always returns Abstain: whether the tag
// prevents requesting is left to other subscribers.
func (s *Subscriber) ShouldRequest(c *crawluri.CrawlUri) subscriber.Verdict {
	u, err := url.Parse(c.URI())
	if err != nil {
		return subscriber.Abstain
	}

	data := s.robotsFor(u)
	if data != nil {
		if !data.TestAgent(u.Path, s.UserAgent) {
			c.AddTag(TagDisallowedRobotsTxt)
			s.Logger.Log(crawllog.LevelDebug, c.CreateLogMessage("disallowed by robots.txt"), "cause", crawllog.CausePolicyDisallow.String())
		}
	}

	if c.Level() == 0 && data != nil {
		s.discoverSitemaps(u, data)
	}

	return subscriber.Abstain
}

// robotsFor returns the parsed robots.txt for u's origin, fetching and
// caching it on first use. A non-200 or transport failure is treated as
// "no robots.txt" — allow all — per spec §4.5.A.
func (s *Subscriber) robotsFor(u *url.URL) *robotstxt.RobotsData {
	origin := u.Scheme + "://" + u.Host

	s.mu.Lock()
	if data, ok := s.cache[origin]; ok {
		s.mu.Unlock()
		return data
	}
	s.mu.Unlock()

	statusCode := http.StatusOK
	var body []byte

	resp, err := getWithRetry(s.client, origin+"/robots.txt")
	if err == nil {
		defer resp.Body.Close()
		statusCode = resp.StatusCode
		body, _ = io.ReadAll(io.LimitReader(resp.Body, 512<<10))
	}

	// FromStatusAndBytes would disallow everything on a 5xx status, so a
	// transport failure or any non-200 status is replaced by an empty body
	// with a forced 200 status, which parses as "allow all".
	if err != nil || statusCode != http.StatusOK {
		statusCode = http.StatusOK
		body = nil
	}

	data, parseErr := robotstxt.FromStatusAndBytes(statusCode, body)
	if parseErr != nil {
		data, _ = robotstxt.FromStatusAndBytes(http.StatusOK, nil)
	}

	s.mu.Lock()
	s.cache[origin] = data
	s.mu.Unlock()
	return data
}

// discoverSitemaps iterates the Sitemap: directives of data, fetching
// each and enqueueing every <url><loc> entry via the Engine. Discovered
// URIs are found on a synthetic, already-processed CrawlUri representing
// the robots.txt resource at level 1, so they land at level 2.
func (s *Subscriber) discoverSitemaps(origin *url.URL, data *robotstxt.RobotsData) {
	if s.engine == nil {
		return
	}

	robotsURL := origin.Scheme + "://" + origin.Host + "/robots.txt"
	synthetic, err := crawluri.New(robotsURL, 1, true, origin.String())
	if err != nil {
		return
	}

	for _, sitemapURL := range data.Sitemaps {
		s.processSitemap(sitemapURL, synthetic)
	}
}

func (s *Subscriber) processSitemap(sitemapURL string, foundOn *crawluri.CrawlUri) {
	resp, err := getWithRetry(s.client, sitemapURL)
	if err != nil {
		s.Logger.Log(crawllog.LevelDebug, "sitemap fetch failed: "+sitemapURL)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return
	}

	var set sitemapURLSet
	if err := xml.Unmarshal(body, &set); err != nil {
		s.Logger.Log(crawllog.LevelDebug, "sitemap parse failed: "+sitemapURL)
		return
	}

	for _, entry := range set.URLs {
		loc := strings.TrimSpace(entry.Loc)
		if loc == "" {
			continue
		}
		if _, err := s.engine.AddUriToQueue(loc, foundOn, false); err != nil {
			s.Logger.Log(crawllog.LevelDebug, "sitemap entry rejected: "+loc)
		}
	}
}

type sitemapURLSet struct {
	XMLName xml.Name       `xml:"urlset"`
	URLs    []sitemapEntry `xml:"url"`
}

type sitemapEntry struct {
	Loc string `xml:"loc"`
}

// NeedsContent scans the X-Robots-Tag header for noindex/nofollow and
// tags c accordingly. Always returns Abstain.
func (s *Subscriber) NeedsContent(c *crawluri.CrawlUri, resp httpclient.Response, chunk httpclient.Chunk) subscriber.Verdict {
	headers, err := resp.Headers()
	if err != nil {
		return subscriber.Abstain
	}
	s.tagFromRobotsDirectives(c, headers.Get("X-Robots-Tag"))
	return subscriber.Abstain
}

// OnLastChunk parses the DOM of text/html responses for
// <head><meta name="robots" content="..."> and applies the same tagging.
func (s *Subscriber) OnLastChunk(c *crawluri.CrawlUri, resp httpclient.Response, chunk httpclient.Chunk) {
	headers, err := resp.Headers()
	if err != nil {
		return
	}
	if !strings.Contains(headers.Get("Content-Type"), "text/html") {
		return
	}

	content := htmlscan.MetaRobotsContent(string(resp.Content()))
	s.tagFromRobotsDirectives(c, content)
}

// tagFromRobotsDirectives applies the case-sensitive noindex/nofollow
// substring scan spec §4.5.C mandates (Open Question (a): deliberately
// not made case-insensitive; see DESIGN.md).
func (s *Subscriber) tagFromRobotsDirectives(c *crawluri.CrawlUri, directives string) {
	if directives == "" {
		return
	}
	if strings.Contains(directives, "noindex") {
		c.AddTag(TagNoindex)
		s.Logger.Log(crawllog.LevelDebug, c.CreateLogMessage("tagged noindex"))
	}
	if strings.Contains(directives, "nofollow") {
		c.AddTag(TagNofollow)
		s.Logger.Log(crawllog.LevelDebug, c.CreateLogMessage("tagged nofollow"))
	}
}
