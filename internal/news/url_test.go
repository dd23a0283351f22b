package news

import (
	"net/url"
	"testing"
)

func TestCanonicalizeLink(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "lowercases scheme and host",
			in:   "HTTPS://WWW.NTN24.COM/Noticia",
			want: "https://www.ntn24.com/Noticia",
		},
		{
			name: "strips default https port",
			in:   "https://www.ntn24.com:443/a",
			want: "https://www.ntn24.com/a",
		},
		{
			name: "strips default http port",
			in:   "http://example.com:80/a",
			want: "http://example.com/a",
		},
		{
			name: "drops fragment",
			in:   "https://example.com/a#section-2",
			want: "https://example.com/a",
		},
		{
			name: "strips tracking params and keeps the rest sorted",
			in:   "https://example.com/a?utm_source=tw&b=2&a=1&fbclid=xyz",
			want: "https://example.com/a?a=1&b=2",
		},
		{
			name: "trims trailing slash",
			in:   "https://example.com/noticia/",
			want: "https://example.com/noticia",
		},
		{
			name: "root path survives",
			in:   "https://example.com/",
			want: "https://example.com/",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CanonicalizeLink(tc.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("CanonicalizeLink(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestCanonicalizeLink_CollapsesTrackingVariants(t *testing.T) {
	t.Parallel()
	a, err := CanonicalizeLink("https://example.com/story?utm_campaign=spring")
	if err != nil {
		t.Fatal(err)
	}
	b, err := CanonicalizeLink("https://example.com/story/")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatalf("tracking variant did not collapse: %q vs %q", a, b)
	}
}

func TestCanonicalizeLink_RejectsRelative(t *testing.T) {
	t.Parallel()
	if _, err := CanonicalizeLink("/noticia/123"); err == nil {
		t.Fatal("expected error for relative url")
	}
}

func TestCanonicalizeAssetURL_KeepsQuery(t *testing.T) {
	t.Parallel()
	got, err := CanonicalizeAssetURL("https://cdn.example.com/img.jpg?w=300&v=2")
	if err != nil {
		t.Fatal(err)
	}
	want := "https://cdn.example.com/img.jpg?v=2&w=300"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	other, err := CanonicalizeAssetURL("https://cdn.example.com/img.jpg?w=600")
	if err != nil {
		t.Fatal(err)
	}
	if other == got {
		t.Fatal("different query strings must stay distinct asset identities")
	}
}

func TestResolveRef(t *testing.T) {
	t.Parallel()
	base, err := url.Parse("https://www.ntn24.com/section/page")
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		name string
		ref  string
		want string
	}{
		{
			name: "relative path",
			ref:  "../images/photo.jpg",
			want: "https://www.ntn24.com/images/photo.jpg",
		},
		{
			name: "root relative path",
			ref:  "/noticia/123",
			want: "https://www.ntn24.com/noticia/123",
		},
		{
			name: "protocol relative",
			ref:  "//cdn.example.com/a.css",
			want: "https://cdn.example.com/a.css",
		},
		{
			name: "already absolute",
			ref:  "http://other.example.com/x",
			want: "http://other.example.com/x",
		},
		{
			name: "surrounding whitespace trimmed",
			ref:  "  /style.css  ",
			want: "https://www.ntn24.com/style.css",
		},
		{
			name: "empty ref",
			ref:  "",
			want: "",
		},
		{
			name: "data uri skipped",
			ref:  "data:image/png;base64,AAAA",
			want: "",
		},
		{
			name: "javascript skipped",
			ref:  "JavaScript:void(0)",
			want: "",
		},
		{
			name: "mailto skipped",
			ref:  "mailto:news@example.com",
			want: "",
		},
		{
			name: "non http scheme skipped",
			ref:  "ftp://example.com/file",
			want: "",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ResolveRef(base, tc.ref); got != tc.want {
				t.Fatalf("ResolveRef(%q) = %q, want %q", tc.ref, got, tc.want)
			}
		})
	}
}

func TestHost(t *testing.T) {
	t.Parallel()
	if got := Host("https://CDN.Example.com:8443/x"); got != "cdn.example.com" {
		t.Fatalf("Host = %q", got)
	}
	if got := Host("://bad"); got != "" {
		t.Fatalf("expected empty host for bad url, got %q", got)
	}
}
