// Package httpclient names the HTTP client external collaborator (spec
// component C4, §6): issuing GET requests and exposing their response
// as a stream of chunks. The Engine depends only on this interface; the
// default implementation in this package is one concrete adapter, not
// the contract itself.
package httpclient

import (
	"context"
	"net/http"

	"github.com/rohmanhakim/crawlcore/failure"
)

// Options carries per-request parameters the Engine attaches to a GET.
type Options struct {
	UserAgent string
	// UserData is an opaque attachment the caller can retrieve from the
	// resulting Response; the Engine stores the originating CrawlUri here.
	UserData any
}

// Chunk is one piece of a streamed response body.
type Chunk struct {
	Data    []byte
	IsFirst bool
	IsLast  bool
}

// Response is a streamable HTTP response handle.
type Response interface {
	// Headers forces header materialization, surfacing any HTTP-level
	// error (non-2xx) as an HTTPError at this point.
	Headers() (http.Header, failure.ClassifiedError)
	StatusCode() int
	// Content returns the bytes accumulated so far (or, once Stream has
	// been fully drained, the complete body).
	Content() []byte
	Info(key string) any
	UserData() any
	Cancel()
}

// Client issues GETs and multiplexes their streamed responses.
type Client interface {
	// Request issues a GET for url with the given options and returns a
	// handle immediately; the request may still be establishing its
	// connection. A TransportError is returned if the request could not
	// even be started (DNS failure, connection refused, etc).
	Request(ctx context.Context, url string, opts Options) (Response, failure.ClassifiedError)

	// Stream multiplexes the given in-flight responses, yielding
	// (response, chunk) events on the returned channel as they arrive,
	// interleaved across responses, each response's events ordered
	// first-chunk ... last-chunk. The channel closes once every response
	// has yielded its last chunk or been cancelled.
	Stream(ctx context.Context, responses []Response) <-chan Event
}

// Event pairs a Response with one Chunk of its body, or carries an error
// observed while streaming that response.
type Event struct {
	Response Response
	Chunk    Chunk
	Err      failure.ClassifiedError
}

// TransportError is a network-level failure: connection reset, DNS
// failure, timeout on the socket. Always recoverable at the Engine
// level — the request that produced it is finished, others continue.
type TransportError struct {
	URL     string
	Message string
	Cause   error
}

func (e *TransportError) Error() string {
	return "transport error for " + e.URL + ": " + e.Message
}

func (e *TransportError) Severity() failure.Severity { return failure.SeverityRecoverable }

func (e *TransportError) Unwrap() error { return e.Cause }

// HTTPError is a non-2xx or malformed response surfaced at header
// materialization or later. Always recoverable at the Engine level.
type HTTPError struct {
	URL        string
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return "http error for " + e.URL + ": status " + http.StatusText(e.StatusCode) + ": " + e.Message
}

func (e *HTTPError) Severity() failure.Severity { return failure.SeverityRecoverable }
