// Package extractor pulls headlines, article bodies and asset references
// out of fetched HTML using a configurable selector rule set.
package extractor

import (
	"bytes"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"github.com/HsienYu/BreakingNewsEffects/internal/news"
)

// Headline is one homepage entry. Summary, ImageURL and Published are
// optional; Title and Link are not.
type Headline struct {
	Title     string
	Link      string
	Summary   string
	ImageURL  string
	Published *time.Time
}

// HeadlineResult carries extracted headlines in document order plus the
// count of candidates dropped for missing a usable link or title.
type HeadlineResult struct {
	Headlines []Headline
	Skipped   int
}

// Extractor applies a validated rule set to documents.
type Extractor struct {
	rules  Rules
	logger *zap.Logger
}

// New validates the rules and builds an Extractor.
func New(rules Rules, logger *zap.Logger) (*Extractor, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return &Extractor{rules: rules, logger: logger}, nil
}

// Headlines extracts homepage entries. Relative links resolve against
// baseURL; links are canonicalized and deduplicated. A document goquery
// cannot parse yields an empty result and a ParseError the caller is
// expected to log and survive.
func (e *Extractor) Headlines(baseURL string, body []byte, contentType string) (HeadlineResult, error) {
	doc, err := parseDocument(body, contentType)
	if err != nil {
		return HeadlineResult{}, &news.ParseError{URL: baseURL, Err: err}
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return HeadlineResult{}, &news.ParseError{URL: baseURL, Err: err}
	}

	var result HeadlineResult
	seen := make(map[string]struct{})
	doc.Find(e.rules.Headline.Image).Each(func(_ int, img *goquery.Selection) {
		alt := strings.TrimSpace(img.AttrOr("alt", ""))
		imgTitle := strings.TrimSpace(img.AttrOr("title", ""))
		imageURL := news.ResolveRef(base, img.AttrOr("src", ""))

		var link, text, summary string
		var published *time.Time
		if anchor := img.Closest("a"); anchor.Length() > 0 {
			link = news.ResolveRef(base, anchor.AttrOr("href", ""))
			text = strings.TrimSpace(anchor.Text())
		}
		if container := img.Closest(e.rules.Headline.Container); container.Length() > 0 {
			if t := strings.TrimSpace(container.Find(e.rules.Headline.Text).First().Text()); t != "" {
				text = t
			}
			if e.rules.Headline.Summary != "" {
				summary = strings.TrimSpace(container.Find(e.rules.Headline.Summary).First().Text())
			}
			if e.rules.Headline.Published != "" {
				published = parsePublished(container.Find(e.rules.Headline.Published).First())
			}
			if link == "" {
				link = news.ResolveRef(base, container.Find("a[href]").First().AttrOr("href", ""))
			}
		}

		title := firstNonEmpty(alt, text, imgTitle)
		if link == "" || title == "" {
			result.Skipped++
			return
		}
		canonical, err := news.CanonicalizeLink(link)
		if err != nil {
			result.Skipped++
			return
		}
		if _, dup := seen[canonical]; dup {
			return
		}
		seen[canonical] = struct{}{}
		if summary == title {
			summary = ""
		}
		result.Headlines = append(result.Headlines, Headline{
			Title:     title,
			Link:      canonical,
			Summary:   summary,
			ImageURL:  imageURL,
			Published: published,
		})
	})
	e.logger.Debug("extracted headlines",
		zap.String("base", baseURL),
		zap.Int("found", len(result.Headlines)),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

// parseDocument decodes body to UTF-8 based on the Content-Type header
// and parses it. Decoding failures fall back to the raw bytes.
func parseDocument(body []byte, contentType string) (*goquery.Document, error) {
	var reader io.Reader = bytes.NewReader(body)
	if utf8Reader, err := charset.NewReader(reader, contentType); err == nil {
		reader = utf8Reader
	} else {
		reader = bytes.NewReader(body)
	}
	return goquery.NewDocumentFromReader(reader)
}

var publishedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parsePublished(sel *goquery.Selection) *time.Time {
	if sel.Length() == 0 {
		return nil
	}
	raw := strings.TrimSpace(sel.AttrOr("datetime", ""))
	if raw == "" {
		raw = strings.TrimSpace(sel.Text())
	}
	if raw == "" {
		return nil
	}
	for _, layout := range publishedLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			ts = ts.UTC()
			return &ts
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
