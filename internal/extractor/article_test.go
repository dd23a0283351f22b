package extractor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HsienYu/BreakingNewsEffects/internal/news"
)

const articleFixture = `<!DOCTYPE html>
<html>
<head>
  <link rel="stylesheet" href="/static/site.css">
  <link rel="preload" as="font" href="/static/fonts/headline.woff2">
  <script src="https://cdn.example.com/bundle.js"></script>
</head>
<body>
<nav><a href="/">Inicio</a></nav>
<div class="article-content">
  <h1>Acuerdo comercial firmado</h1>
  <img src="/media/firma.jpg" alt="firma">
  <img data-src="/media/lazy-grafico.png" alt="gráfico">
  <p>El acuerdo entra en vigor el próximo mes.</p>
  <script>trackPageview();</script>
  <p>Ambas delegaciones celebraron el cierre.</p>
</div>
<footer><img src="/media/firma.jpg?b=2&a=1"><img src="/media/firma.jpg?a=1&b=2"></footer>
</body>
</html>`

func TestArticle(t *testing.T) {
	e := newTestExtractor(t)

	result, err := e.Article("https://www.example.com/noticias/acuerdo", []byte(articleFixture), "text/html")
	require.NoError(t, err)

	require.Equal(t, "Acuerdo comercial firmado", result.Title)
	require.Equal(t, "El acuerdo entra en vigor el próximo mes.\nAmbas delegaciones celebraron el cierre.", result.Text)

	wantAssets := []AssetRef{
		{URL: "https://www.example.com/media/firma.jpg", Class: news.ClassImage},
		{URL: "https://www.example.com/media/lazy-grafico.png", Class: news.ClassImage},
		{URL: "https://www.example.com/media/firma.jpg?b=2&a=1", Class: news.ClassImage},
		{URL: "https://www.example.com/static/site.css", Class: news.ClassCSS},
		{URL: "https://cdn.example.com/bundle.js", Class: news.ClassJS},
		{URL: "https://www.example.com/static/fonts/headline.woff2", Class: news.ClassFont},
	}
	require.Equal(t, wantAssets, result.Assets)
}

func TestArticleWithoutBodyContainer(t *testing.T) {
	e := newTestExtractor(t)

	result, err := e.Article("https://www.example.com/x", []byte("<html><body><h1>Solo título</h1></body></html>"), "")
	require.NoError(t, err)
	require.Equal(t, "Solo título", result.Title)
	require.Empty(t, result.Text)
	require.Empty(t, result.Assets)
}

func TestCSSRefs(t *testing.T) {
	css := []byte(`
@font-face {
  font-family: Headline;
  src: url("/static/fonts/headline.woff2") format("woff2"),
       url('/static/fonts/headline.ttf') format("truetype");
}
.hero { background: url(../img/hero.png) no-repeat; }
.icon { background-image: url(data:image/svg+xml;base64,PHN2Zz4=); }
@import url("extra.css");
.dup { background: url(../img/hero.png); }
`)
	refs := CSSRefs(css, "https://www.example.com/static/css/site.css")

	want := []AssetRef{
		{URL: "https://www.example.com/static/fonts/headline.woff2", Class: news.ClassFont},
		{URL: "https://www.example.com/static/fonts/headline.ttf", Class: news.ClassFont},
		{URL: "https://www.example.com/static/img/hero.png", Class: news.ClassImage},
		{URL: "https://www.example.com/static/css/extra.css", Class: news.ClassCSS},
	}
	require.Equal(t, want, refs)
}

func TestCSSRefsBadStylesheetURL(t *testing.T) {
	require.Nil(t, CSSRefs([]byte(`.a { background: url(x.png); }`), "://bad"))
}
