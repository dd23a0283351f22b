package extractor

import "bytes"

// renderMinHTMLBytes is the size below which a homepage is assumed to be
// a JavaScript shell rather than server-rendered content.
const renderMinHTMLBytes = 2048

var renderKeywords = [][]byte{
	[]byte("please enable javascript"),
	[]byte("javascript is required"),
	[]byte("you need to enable javascript"),
	[]byte("data-reactroot"),
	[]byte(`id="__next"`),
	[]byte("window.__nuxt__"),
}

// RenderDependent reports whether a page looks like it needs JavaScript
// to produce its content. The archiver never renders; this only powers a
// warning that the archive may be incomplete.
func RenderDependent(body []byte) bool {
	if len(body) < renderMinHTMLBytes {
		return true
	}
	lower := bytes.ToLower(body)
	for _, kw := range renderKeywords {
		if bytes.Contains(lower, kw) {
			return true
		}
	}
	return false
}
