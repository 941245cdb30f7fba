// Package htmlscan is the HTML parser external collaborator named in
// spec §6: it locates <head><meta name="robots">, and iterates anchor
// elements yielding absolute URLs resolved against a base URL.
package htmlscan

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Links returns every a[href] found in html, resolved against base. Hrefs
// that fail to parse or resolve are skipped.
func Links(html string, base *url.URL) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var out []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		resolved, err := base.Parse(href)
		if err != nil {
			return
		}
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		out = append(out, resolved.String())
	})
	return out, nil
}

// Title returns the document's <title> text, or "" if absent.
func Title(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// MetaRobotsContent returns the content attribute of
// <head><meta name="robots">, or "" if absent.
func MetaRobotsContent(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	content, _ := doc.Find(`head meta[name="robots"]`).Attr("content")
	return content
}
