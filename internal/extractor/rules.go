package extractor

import (
	"fmt"

	"github.com/andybalholm/cascadia"
)

// Rules declares the CSS selectors the extractor walks. Sites change
// markup without notice, so everything here is configurable; Default
// matches the target site's current layout.
type Rules struct {
	Headline HeadlineRules `mapstructure:"headline"`
	Article  ArticleRules  `mapstructure:"article"`
}

// HeadlineRules locate headline blocks on the homepage. Discovery is
// image-anchored: each matching image marks a candidate block, the
// enclosing container supplies link text and summary.
type HeadlineRules struct {
	Image     string `mapstructure:"image"`
	Container string `mapstructure:"container"`
	Text      string `mapstructure:"text"`
	Summary   string `mapstructure:"summary"`
	Published string `mapstructure:"published"`
}

// ArticleRules locate the title and body of an article page.
type ArticleRules struct {
	Title   string `mapstructure:"title"`
	Body    string `mapstructure:"body"`
	Exclude string `mapstructure:"exclude"`
}

// Default returns the rule set tuned for the target site's markup.
func Default() Rules {
	return Rules{
		Headline: HeadlineRules{
			Image:     "img[loading='lazy']",
			Container: "div, article, section",
			Text:      "h2, h3, p, span",
			Summary:   "p",
			Published: "time[datetime]",
		},
		Article: ArticleRules{
			Title:   "h1",
			Body:    "article, .article-content, .content, .post-content",
			Exclude: "script, style, nav, header, footer",
		},
	}
}

// Validate checks that required selectors are present and that every
// configured selector compiles. goquery panics on bad selectors, so this
// runs before any document is parsed.
func (r Rules) Validate() error {
	required := map[string]string{
		"headline.image":     r.Headline.Image,
		"headline.container": r.Headline.Container,
		"headline.text":      r.Headline.Text,
		"article.title":      r.Article.Title,
		"article.body":       r.Article.Body,
	}
	for name, sel := range required {
		if sel == "" {
			return fmt.Errorf("rules: %s selector is required", name)
		}
	}
	optional := map[string]string{
		"headline.summary":   r.Headline.Summary,
		"headline.published": r.Headline.Published,
		"article.exclude":    r.Article.Exclude,
	}
	for name, sel := range required {
		if err := compileSelector(sel); err != nil {
			return fmt.Errorf("rules: %s: %w", name, err)
		}
	}
	for name, sel := range optional {
		if sel == "" {
			continue
		}
		if err := compileSelector(sel); err != nil {
			return fmt.Errorf("rules: %s: %w", name, err)
		}
	}
	return nil
}

func compileSelector(sel string) error {
	if _, err := cascadia.ParseGroup(sel); err != nil {
		return fmt.Errorf("invalid selector %q: %w", sel, err)
	}
	return nil
}
