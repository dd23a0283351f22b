// Package rewriter points archived documents at their locally cached
// copies. References without a cached copy stay remote so an offline page
// degrades to a missing image, never a dead relative path.
package rewriter

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/HsienYu/BreakingNewsEffects/internal/news"
)

// HTML rewrites asset and article references whose canonical URL appears
// in lookup. lookup values are cache-root-relative paths; rewritten
// attributes are made relative to pageDir, the directory the page is
// stored in. Only attribute values change; text and script bodies are
// untouched.
func HTML(body []byte, baseURL, pageDir string, lookup map[string]string) ([]byte, error) {
	if len(lookup) == 0 {
		return body, nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &news.ParseError{URL: baseURL, Err: err}
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, &news.ParseError{URL: baseURL, Err: err}
	}

	rewrite := func(selector, attr string, canonical func(string) (string, error)) {
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			ref, ok := sel.Attr(attr)
			if !ok {
				return
			}
			abs := news.ResolveRef(base, ref)
			if abs == "" {
				return
			}
			key, err := canonical(abs)
			if err != nil {
				return
			}
			local, ok := lookup[key]
			if !ok {
				return
			}
			sel.SetAttr(attr, relativeTo(pageDir, local))
		})
	}

	rewrite("img", "src", news.CanonicalizeAssetURL)
	rewrite("img", "data-src", news.CanonicalizeAssetURL)
	rewrite("link", "href", news.CanonicalizeAssetURL)
	rewrite("script", "src", news.CanonicalizeAssetURL)
	rewrite("a", "href", news.CanonicalizeLink)

	rendered, err := doc.Html()
	if err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return []byte(rendered), nil
}

// cssURLRef matches url(...) references in stylesheets, quoted or not.
var cssURLRef = regexp.MustCompile(`url\(\s*['"]?([^'")\s]+)['"]?\s*\)`)

// CSS rewrites url(...) references whose canonical URL appears in lookup,
// relative to fromDir. Unmapped references are left as-is.
func CSS(css []byte, cssURL, fromDir string, lookup map[string]string) []byte {
	if len(lookup) == 0 {
		return css
	}
	base, err := url.Parse(cssURL)
	if err != nil {
		return css
	}
	return cssURLRef.ReplaceAllFunc(css, func(match []byte) []byte {
		sub := cssURLRef.FindSubmatch(match)
		ref := strings.TrimSpace(string(sub[1]))
		abs := news.ResolveRef(base, ref)
		if abs == "" {
			return match
		}
		key, err := news.CanonicalizeAssetURL(abs)
		if err != nil {
			return match
		}
		local, ok := lookup[key]
		if !ok {
			return match
		}
		return []byte(`url("` + relativeTo(fromDir, local) + `")`)
	})
}

// relativeTo returns the path to target, a cache-root-relative path, as
// seen from inside fromDir.
func relativeTo(fromDir, target string) string {
	fromDir = strings.Trim(fromDir, "/")
	if fromDir == "" || fromDir == "." {
		return target
	}
	levels := strings.Count(fromDir, "/") + 1
	return strings.Repeat("../", levels) + target
}
