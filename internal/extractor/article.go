package extractor

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/HsienYu/BreakingNewsEffects/internal/news"
)

// AssetRef is one external resource a document depends on.
type AssetRef struct {
	URL   string
	Class news.MimeClass
}

// ArticleResult carries the extracted article fields and every asset the
// page references, in document order.
type ArticleResult struct {
	Title  string
	Text   string
	Assets []AssetRef
}

// Article extracts the title, body and asset references from an article
// page. Relative asset URLs resolve against baseURL. Unparsable documents
// yield an empty result and a ParseError; the pass continues without them.
func (e *Extractor) Article(baseURL string, body []byte, contentType string) (ArticleResult, error) {
	doc, err := parseDocument(body, contentType)
	if err != nil {
		return ArticleResult{}, &news.ParseError{URL: baseURL, Err: err}
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return ArticleResult{}, &news.ParseError{URL: baseURL, Err: err}
	}

	var result ArticleResult
	// Assets come off the full document before the exclusion pass mutates it.
	result.Assets = enumerateAssets(doc, base)
	result.Title = strings.TrimSpace(doc.Find(e.rules.Article.Title).First().Text())

	bodySel := doc.Find(e.rules.Article.Body).First()
	if bodySel.Length() > 0 {
		if e.rules.Article.Exclude != "" {
			bodySel.Find(e.rules.Article.Exclude).Remove()
		}
		var paragraphs []string
		bodySel.Find("p").Each(func(_ int, p *goquery.Selection) {
			if text := strings.TrimSpace(p.Text()); text != "" {
				paragraphs = append(paragraphs, text)
			}
		})
		result.Text = strings.Join(paragraphs, "\n")
	}

	e.logger.Debug("extracted article",
		zap.String("url", baseURL),
		zap.Int("assets", len(result.Assets)),
		zap.Int("text_bytes", len(result.Text)))
	return result, nil
}

// enumerateAssets walks the selectors the offline archive must satisfy:
// images, stylesheets, scripts and preloaded fonts.
func enumerateAssets(doc *goquery.Document, base *url.URL) []AssetRef {
	var refs []AssetRef
	seen := make(map[string]struct{})
	add := func(rawRef string, class news.MimeClass) {
		abs := news.ResolveRef(base, rawRef)
		if abs == "" {
			return
		}
		key, err := news.CanonicalizeAssetURL(abs)
		if err != nil {
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		refs = append(refs, AssetRef{URL: abs, Class: class})
	}

	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		if src, ok := img.Attr("src"); ok {
			add(src, news.ClassImage)
		} else if dataSrc, ok := img.Attr("data-src"); ok {
			add(dataSrc, news.ClassImage)
		}
	})
	doc.Find("link[rel='stylesheet']").Each(func(_ int, link *goquery.Selection) {
		if href, ok := link.Attr("href"); ok {
			add(href, news.ClassCSS)
		}
	})
	doc.Find("script[src]").Each(func(_ int, script *goquery.Selection) {
		if src, ok := script.Attr("src"); ok {
			add(src, news.ClassJS)
		}
	})
	doc.Find("link[rel='preload'][as='font']").Each(func(_ int, link *goquery.Selection) {
		if href, ok := link.Attr("href"); ok {
			add(href, news.ClassFont)
		}
	})
	return refs
}

// cssURLPattern matches url(...) references in stylesheets, quoted or not.
var cssURLPattern = regexp.MustCompile(`url\(\s*['"]?([^'")\s]+)['"]?\s*\)`)

// CSSRefs scans a fetched stylesheet for url(...) references so fonts and
// background images get archived too. data: URIs are already inline and
// are skipped.
func CSSRefs(css []byte, cssURL string) []AssetRef {
	base, err := url.Parse(cssURL)
	if err != nil {
		return nil
	}
	var refs []AssetRef
	seen := make(map[string]struct{})
	for _, match := range cssURLPattern.FindAllSubmatch(css, -1) {
		ref := strings.TrimSpace(string(match[1]))
		abs := news.ResolveRef(base, ref)
		if abs == "" {
			continue
		}
		key, err := news.CanonicalizeAssetURL(abs)
		if err != nil {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		refs = append(refs, AssetRef{URL: abs, Class: classifyCSSRef(abs)})
	}
	return refs
}

// classifyCSSRef buckets a stylesheet reference by its path extension.
// Fonts keep their class so they land in fonts/; everything else a
// stylesheet pulls in renders as an image.
func classifyCSSRef(abs string) news.MimeClass {
	parsed, err := url.Parse(abs)
	if err != nil {
		return news.ClassImage
	}
	switch {
	case hasAnySuffix(parsed.Path, ".woff2", ".woff", ".ttf", ".otf", ".eot"):
		return news.ClassFont
	case hasAnySuffix(parsed.Path, ".css"):
		return news.ClassCSS
	default:
		return news.ClassImage
	}
}

func hasAnySuffix(path string, suffixes ...string) bool {
	lower := strings.ToLower(path)
	for _, suffix := range suffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}
