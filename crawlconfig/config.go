// Package crawlconfig implements the Engine's immutable-with-modifier
// configuration (spec component C11): a plain record consumed once at
// construction, with With... combinators that each return a new value,
// following the teacher corpus's config-builder shape.
package crawlconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rohmanhakim/crawlcore/crawllog"
)

// Config holds every tunable the Engine's main loop reads. Zero values
// are meaningful: MaxRequests == 0 means unbounded, MaxDepth == 0 means
// unbounded, RequestDelay == 0 means no pacing.
type Config struct {
	userAgent    string
	maxRequests  int
	concurrency  int
	maxDepth     int
	requestDelay time.Duration
	logger       crawllog.Logger
}

// configDTO is the JSON round-trip shape for WithConfigFile, mirroring
// the corpus's config-file-to-builder pattern.
type configDTO struct {
	UserAgent    string `json:"userAgent"`
	MaxRequests  int    `json:"maxRequests"`
	Concurrency  int    `json:"concurrency"`
	MaxDepth     int    `json:"maxDepth"`
	RequestDelay string `json:"requestDelay"`
}

// WithDefault returns the baseline Config: concurrency 1, no request or
// depth limit, no delay, the no-op logger.
func WithDefault() Config {
	return Config{
		userAgent:   "crawlcore/1.0",
		concurrency: 1,
		logger:      crawllog.Noop{},
	}
}

// WithConfigFile loads a Config from a JSON file on top of WithDefault,
// the way the corpus's CLI layer loads a config file on top of its
// builder defaults.
func WithConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("crawlconfig: read config file: %w", err)
	}

	var dto configDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return Config{}, fmt.Errorf("crawlconfig: parse config file: %w", err)
	}

	c := WithDefault()
	if dto.UserAgent != "" {
		c = c.WithUserAgent(dto.UserAgent)
	}
	if dto.MaxRequests != 0 {
		c = c.WithMaxRequests(dto.MaxRequests)
	}
	if dto.Concurrency != 0 {
		c = c.WithConcurrency(dto.Concurrency)
	}
	if dto.MaxDepth != 0 {
		c = c.WithMaxDepth(dto.MaxDepth)
	}
	if dto.RequestDelay != "" {
		d, err := time.ParseDuration(dto.RequestDelay)
		if err != nil {
			return Config{}, fmt.Errorf("crawlconfig: parse requestDelay: %w", err)
		}
		c = c.WithRequestDelay(d)
	}
	return c, nil
}

func (c Config) WithUserAgent(ua string) Config {
	c.userAgent = ua
	return c
}

// WithMaxRequests sets the request budget; 0 means unbounded.
func (c Config) WithMaxRequests(n int) Config {
	c.maxRequests = n
	return c
}

// WithConcurrency sets the in-flight request cap; it is clamped to 1.
func (c Config) WithConcurrency(n int) Config {
	if n < 1 {
		n = 1
	}
	c.concurrency = n
	return c
}

// WithMaxDepth sets the depth cutoff; 0 means unbounded.
func (c Config) WithMaxDepth(n int) Config {
	c.maxDepth = n
	return c
}

// WithRequestDelay sets the global inter-request-start delay, enforced
// on the dispatch thread only — it does not pace per host (spec §9c).
func (c Config) WithRequestDelay(d time.Duration) Config {
	if d < 0 {
		d = 0
	}
	c.requestDelay = d
	return c
}

func (c Config) WithLogger(l crawllog.Logger) Config {
	if l == nil {
		l = crawllog.Noop{}
	}
	c.logger = l
	return c
}

// Build validates and defaults the Config, mirroring the corpus's
// builder Build() step.
func (c Config) Build() (Config, error) {
	if c.concurrency < 1 {
		c.concurrency = 1
	}
	if c.userAgent == "" {
		c.userAgent = "crawlcore/1.0"
	}
	if c.logger == nil {
		c.logger = crawllog.Noop{}
	}
	return c, nil
}

func (c Config) UserAgent() string          { return c.userAgent }
func (c Config) MaxRequests() int           { return c.maxRequests }
func (c Config) Concurrency() int           { return c.concurrency }
func (c Config) MaxDepth() int              { return c.maxDepth }
func (c Config) RequestDelay() time.Duration { return c.requestDelay }
func (c Config) Logger() crawllog.Logger    { return c.logger }
