// Package pagesink is a bundled, optional Subscriber (SPEC_FULL §4, not
// part of the core): it is the "default crawl policy" that turns robots
// tags into a shouldRequest verdict, discovers outbound links to keep
// the crawl moving, and renders HTML pages to Markdown files on disk.
// Removing it from an Engine's subscriber list leaves the core's
// spec-described behavior completely intact — nothing else in the
// library follows page links or issues a positive shouldRequest vote
// (robotspolicy enqueues only sitemap entries).
package pagesink

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"golang.org/x/net/html"

	"github.com/rohmanhakim/crawlcore/crawllog"
	"github.com/rohmanhakim/crawlcore/crawluri"
	"github.com/rohmanhakim/crawlcore/htmlscan"
	"github.com/rohmanhakim/crawlcore/httpclient"
	"github.com/rohmanhakim/crawlcore/pkg/fileutil"
	"github.com/rohmanhakim/crawlcore/pkg/hashutil"
	"github.com/rohmanhakim/crawlcore/robotspolicy"
	"github.com/rohmanhakim/crawlcore/subscriber"
)

// Subscriber renders fetched HTML pages to Markdown under OutputDir and
// follows their outbound links.
type Subscriber struct {
	OutputDir string
	Logger    crawllog.Logger

	engine subscriber.Engine
}

// New returns a Subscriber writing rendered pages under outputDir.
func New(outputDir string, logger crawllog.Logger) *Subscriber {
	if logger == nil {
		logger = crawllog.Noop{}
	}
	return &Subscriber{OutputDir: outputDir, Logger: logger}
}

func (s *Subscriber) SetEngine(e subscriber.Engine) { s.engine = e }

// ShouldRequest votes Negative for anything robotspolicy tagged
// disallowed, Positive otherwise — the default "crawl it" policy.
func (s *Subscriber) ShouldRequest(c *crawluri.CrawlUri) subscriber.Verdict {
	if c.HasTag(robotspolicy.TagDisallowedRobotsTxt) {
		return subscriber.Negative
	}
	return subscriber.Positive
}

// NeedsContent votes Positive for text/html responses not tagged
// noindex by robotspolicy (which must be registered before this
// Subscriber to have already inspected X-Robots-Tag by this point).
func (s *Subscriber) NeedsContent(c *crawluri.CrawlUri, resp httpclient.Response, chunk httpclient.Chunk) subscriber.Verdict {
	if c.HasTag(robotspolicy.TagNoindex) {
		return subscriber.Negative
	}
	headers, err := resp.Headers()
	if err != nil {
		return subscriber.Abstain
	}
	if strings.Contains(headers.Get("Content-Type"), "text/html") {
		return subscriber.Positive
	}
	return subscriber.Abstain
}

// OnLastChunk discovers outbound links (skipping them if c is tagged
// nofollow) and renders the page body to a Markdown file.
func (s *Subscriber) OnLastChunk(c *crawluri.CrawlUri, resp httpclient.Response, chunk httpclient.Chunk) {
	body := string(resp.Content())

	base, err := url.Parse(c.URI())
	if err != nil {
		return
	}

	if !c.HasTag(robotspolicy.TagNofollow) && s.engine != nil {
		links, err := htmlscan.Links(body, base)
		if err == nil {
			for _, link := range links {
				if _, err := s.engine.AddUriToQueue(link, c, false); err != nil {
					s.Logger.Log(crawllog.LevelDebug, "link rejected: "+link)
				}
			}
		}
	}

	if s.OutputDir == "" {
		return
	}
	if err := s.writeMarkdown(c, body); err != nil {
		s.Logger.Log(crawllog.LevelDebug, c.CreateLogMessage("page write failed: "+err.Error()))
	}
}

func (s *Subscriber) writeMarkdown(c *crawluri.CrawlUri, body string) error {
	title := htmlscan.Title(body)

	node, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return err
	}

	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
	rendered, err := conv.ConvertNode(node)
	if err != nil {
		return err
	}

	var doc strings.Builder
	if title != "" {
		doc.WriteString("# " + title + "\n\n")
	}
	doc.Write(rendered)

	hash, err := hashutil.HashBytes([]byte(c.URI()), hashutil.HashAlgoBLAKE3)
	if err != nil {
		return err
	}
	if len(hash) > 12 {
		hash = hash[:12]
	}

	if ferr := fileutil.EnsureDir(s.OutputDir); ferr != nil {
		return ferr
	}

	return os.WriteFile(filepath.Join(s.OutputDir, hash+".md"), []byte(doc.String()), 0o644)
}
