package robotspolicy_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rohmanhakim/crawlcore/crawluri"
	"github.com/rohmanhakim/crawlcore/failure"
	"github.com/rohmanhakim/crawlcore/httpclient"
	"github.com/rohmanhakim/crawlcore/robotspolicy"
)

type fakeEngine struct {
	mu    sync.Mutex
	added []string
}

func (e *fakeEngine) AddUriToQueue(uri string, foundOn *crawluri.CrawlUri, processed bool) (*crawluri.CrawlUri, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.added = append(e.added, uri)
	return nil, nil
}
func (e *fakeEngine) GetCrawlUri(uri string) (*crawluri.CrawlUri, bool) { return nil, false }

func newCrawlUri(t *testing.T, uri string, level int) *crawluri.CrawlUri {
	t.Helper()
	c, err := crawluri.New(uri, level, false, "")
	if err != nil {
		t.Fatalf("crawluri.New returned error: %v", err)
	}
	return c
}

func TestShouldRequest_TagsDisallowedPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := robotspolicy.New("crawlcore-test", nil, http.DefaultClient)

	c := newCrawlUri(t, srv.URL+"/private", 1)
	s.ShouldRequest(c)

	if !c.HasTag(robotspolicy.TagDisallowedRobotsTxt) {
		t.Error("expected /private to be tagged disallowed")
	}
}

func TestShouldRequest_AllowsUntaggedPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := robotspolicy.New("crawlcore-test", nil, http.DefaultClient)

	c := newCrawlUri(t, srv.URL+"/public", 1)
	s.ShouldRequest(c)

	if c.HasTag(robotspolicy.TagDisallowedRobotsTxt) {
		t.Error("expected /public to not be tagged disallowed")
	}
}

func TestShouldRequest_MissingRobotsTxtAllowsAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := robotspolicy.New("crawlcore-test", nil, http.DefaultClient)

	c := newCrawlUri(t, srv.URL+"/anything", 1)
	s.ShouldRequest(c)

	if c.HasTag(robotspolicy.TagDisallowedRobotsTxt) {
		t.Error("expected a missing robots.txt to allow everything")
	}
}

func TestShouldRequest_CachesRobotsTxtPerOrigin(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			atomic.AddInt32(&hits, 1)
			fmt.Fprint(w, "User-agent: *\nDisallow:\n")
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := robotspolicy.New("crawlcore-test", nil, http.DefaultClient)

	s.ShouldRequest(newCrawlUri(t, srv.URL+"/a", 1))
	s.ShouldRequest(newCrawlUri(t, srv.URL+"/b", 1))

	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("robots.txt fetched %d times, want exactly 1", got)
	}
}

func TestShouldRequest_DiscoversSitemapAtLevelZero(t *testing.T) {
	srv := httptest.NewUnstartedServer(nil)
	baseURL := "http://" + srv.Listener.Addr().String()

	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "User-agent: *\nDisallow:\nSitemap: %s/sitemap.xml\n", baseURL)
	})
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprintf(w, `<urlset><url><loc>%s/a</loc></url><url><loc>%s/b</loc></url></urlset>`, baseURL, baseURL)
	})
	srv.Config.Handler = mux
	srv.Start()
	defer srv.Close()

	eng := &fakeEngine{}
	s := robotspolicy.New("crawlcore-test", nil, http.DefaultClient)
	s.SetEngine(eng)

	s.ShouldRequest(newCrawlUri(t, srv.URL+"/", 0))

	eng.mu.Lock()
	defer eng.mu.Unlock()
	if len(eng.added) != 2 {
		t.Fatalf("added = %v, want 2 sitemap entries enqueued", eng.added)
	}
}

func TestShouldRequest_NoSitemapDiscoveryBeyondLevelZero(t *testing.T) {
	srv := httptest.NewUnstartedServer(nil)
	baseURL := "http://" + srv.Listener.Addr().String()

	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "User-agent: *\nDisallow:\nSitemap: %s/sitemap.xml\n", baseURL)
	})
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprintf(w, `<urlset><url><loc>%s/a</loc></url></urlset>`, baseURL)
	})
	srv.Config.Handler = mux
	srv.Start()
	defer srv.Close()

	eng := &fakeEngine{}
	s := robotspolicy.New("crawlcore-test", nil, http.DefaultClient)
	s.SetEngine(eng)

	s.ShouldRequest(newCrawlUri(t, srv.URL+"/deep/page", 2))

	eng.mu.Lock()
	defer eng.mu.Unlock()
	if len(eng.added) != 0 {
		t.Errorf("added = %v, want no sitemap discovery beyond level 0", eng.added)
	}
}

func TestNeedsContent_TagsFromXRobotsTagHeader(t *testing.T) {
	s := robotspolicy.New("crawlcore-test", nil, http.DefaultClient)
	c := newCrawlUri(t, "http://example.com/page", 1)

	h := http.Header{}
	h.Set("X-Robots-Tag", "noindex, nofollow")
	resp := &fakeResponse{headers: h}

	s.NeedsContent(c, resp, httpclient.Chunk{})

	if !c.HasTag(robotspolicy.TagNoindex) {
		t.Error("expected noindex tag from X-Robots-Tag")
	}
	if !c.HasTag(robotspolicy.TagNofollow) {
		t.Error("expected nofollow tag from X-Robots-Tag")
	}
}

func TestOnLastChunk_TagsFromMetaRobots(t *testing.T) {
	s := robotspolicy.New("crawlcore-test", nil, http.DefaultClient)
	c := newCrawlUri(t, "http://example.com/page", 1)

	h := http.Header{}
	h.Set("Content-Type", "text/html; charset=utf-8")
	body := `<html><head><meta name="robots" content="noindex"></head></html>`
	resp := &fakeResponse{headers: h, content: []byte(body)}

	s.OnLastChunk(c, resp, httpclient.Chunk{})

	if !c.HasTag(robotspolicy.TagNoindex) {
		t.Error("expected noindex tag from meta robots")
	}
}

func TestOnLastChunk_IgnoresNonHTML(t *testing.T) {
	s := robotspolicy.New("crawlcore-test", nil, http.DefaultClient)
	c := newCrawlUri(t, "http://example.com/page.json", 1)

	h := http.Header{}
	h.Set("Content-Type", "application/json")
	resp := &fakeResponse{headers: h, content: []byte(`{"noindex": true}`)}

	s.OnLastChunk(c, resp, httpclient.Chunk{})

	if c.HasTag(robotspolicy.TagNoindex) {
		t.Error("expected no tagging from non-HTML content")
	}
}

type fakeResponse struct {
	headers http.Header
	content []byte
}

func (r *fakeResponse) Headers() (http.Header, failure.ClassifiedError) {
	return r.headers, nil
}
func (r *fakeResponse) StatusCode() int     { return http.StatusOK }
func (r *fakeResponse) Content() []byte     { return r.content }
func (r *fakeResponse) Info(key string) any { return nil }
func (r *fakeResponse) UserData() any       { return nil }
func (r *fakeResponse) Cancel()             {}
