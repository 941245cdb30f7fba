package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/PuerkitoBio/rehttp"
	"golang.org/x/sync/errgroup"

	"github.com/rohmanhakim/crawlcore/failure"
)

// chunkSize is the read buffer size used when draining a response body
// into the Stream event channel.
const chunkSize = 32 * 1024

// HTTPAdapter is the default Client implementation: a stdlib
// *http.Client whose transport retries transient transport failures
// with exponential jittered backoff, grounded on the retry transport
// composition pattern used elsewhere in the corpus.
type HTTPAdapter struct {
	client *http.Client
}

// NewHTTPAdapter builds an adapter with sane defaults: up to 3 retries on
// temporary network errors (HTTP status codes are not retried), with an
// exponential jittered delay on a 1s base, capped at 10s.
func NewHTTPAdapter() *HTTPAdapter {
	transport := rehttp.NewTransport(
		&http.Transport{},
		rehttp.RetryAll(
			rehttp.RetryMaxRetries(3),
			rehttp.RetryTemporaryErr(),
		),
		rehttp.ExpJitterDelay(time.Second, 10*time.Second),
	)
	return &HTTPAdapter{client: &http.Client{Transport: transport}}
}

func (a *HTTPAdapter) Request(ctx context.Context, url string, opts Options) (Response, failure.ClassifiedError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &TransportError{URL: url, Message: err.Error(), Cause: err}
	}
	if opts.UserAgent != "" {
		req.Header.Set("User-Agent", opts.UserAgent)
	}

	httpResp, err := a.client.Do(req)
	if err != nil {
		return nil, &TransportError{URL: url, Message: err.Error(), Cause: err}
	}

	return &httpResponse{
		url:      url,
		raw:      httpResp,
		userData: opts.UserData,
	}, nil
}

// Stream fans one goroutine per response into a shared channel, managed
// with an errgroup the way the corpus structures worker pools. streamOne
// never returns an error (per-response failures are reported as Events,
// not goroutine errors), so the group's own error is always nil; it is
// used here purely for its WaitGroup-plus-derived-context shape.
func (a *HTTPAdapter) Stream(ctx context.Context, responses []Response) <-chan Event {
	out := make(chan Event)

	go func() {
		defer close(out)

		group, groupCtx := errgroup.WithContext(ctx)
		for _, r := range responses {
			r := r
			group.Go(func() error {
				streamOne(groupCtx, r, out)
				return nil
			})
		}
		_ = group.Wait()
	}()

	return out
}

// streamOne drains one response's body into chunkSize pieces, emitting
// first-chunk-then-possibly-more-then-last-chunk events on out.
func streamOne(ctx context.Context, r Response, out chan<- Event) {
	hr, ok := r.(*httpResponse)
	if !ok {
		return
	}

	if _, err := r.Headers(); err != nil {
		select {
		case out <- Event{Response: r, Err: err}:
		case <-ctx.Done():
		}
		return
	}

	buf := make([]byte, chunkSize)
	first := true
	for {
		if hr.cancelled() {
			return
		}

		n, readErr := hr.raw.Body.Read(buf)
		isLast := readErr == io.EOF || readErr != nil
		if n > 0 {
			hr.appendContent(buf[:n])
		}

		if n > 0 || isLast {
			chunk := Chunk{Data: append([]byte(nil), buf[:n]...), IsFirst: first, IsLast: isLast}
			first = false
			select {
			case out <- Event{Response: r, Chunk: chunk}:
			case <-ctx.Done():
				return
			}
		}

		if isLast {
			if readErr != nil && readErr != io.EOF {
				select {
				case out <- Event{Response: r, Err: &TransportError{URL: hr.url, Message: readErr.Error(), Cause: readErr}}:
				case <-ctx.Done():
				}
			}
			hr.raw.Body.Close()
			return
		}
	}
}

type httpResponse struct {
	url      string
	raw      *http.Response
	userData any

	mu        sync.Mutex
	content   bytes.Buffer
	cancel    bool
	headersOK bool
}

func (r *httpResponse) Headers() (http.Header, failure.ClassifiedError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.raw.StatusCode < 200 || r.raw.StatusCode >= 300 {
		return r.raw.Header, &HTTPError{
			URL:        r.url,
			StatusCode: r.raw.StatusCode,
			Message:    fmt.Sprintf("non-2xx status %d", r.raw.StatusCode),
		}
	}
	r.headersOK = true
	return r.raw.Header, nil
}

func (r *httpResponse) StatusCode() int { return r.raw.StatusCode }

func (r *httpResponse) Content() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]byte(nil), r.content.Bytes()...)
}

func (r *httpResponse) appendContent(b []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.content.Write(b)
}

func (r *httpResponse) Info(key string) any {
	switch key {
	case "status_code":
		return r.raw.StatusCode
	case "content_type":
		return r.raw.Header.Get("Content-Type")
	default:
		return nil
	}
}

func (r *httpResponse) UserData() any { return r.userData }

func (r *httpResponse) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancel = true
	r.raw.Body.Close()
}

func (r *httpResponse) cancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel
}
