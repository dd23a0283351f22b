// Package news defines the archiver's core types shared across subsystems.
package news

import (
	"net/http"
	"time"
)

// SchemaVersion identifies the manifest document layout.
const SchemaVersion = 1

// MimeClass buckets an asset into one of the cache directories.
type MimeClass string

// Asset classes recognized by the resolver; each maps to a directory under
// the cache root.
const (
	ClassImage MimeClass = "image"
	ClassCSS   MimeClass = "css"
	ClassJS    MimeClass = "js"
	ClassFont  MimeClass = "font"
)

// Valid reports whether the class is one the resolver knows how to place.
func (c MimeClass) Valid() bool {
	switch c {
	case ClassImage, ClassCSS, ClassJS, ClassFont:
		return true
	default:
		return false
	}
}

// Dir returns the cache-root subdirectory for the class, or "" when the
// class is unknown.
func (c MimeClass) Dir() string {
	switch c {
	case ClassImage:
		return "images"
	case ClassCSS:
		return "css"
	case ClassJS:
		return "js"
	case ClassFont:
		return "fonts"
	default:
		return ""
	}
}

// DefaultExt returns the fallback file extension used when the asset URL
// path carries none.
func (c MimeClass) DefaultExt() string {
	switch c {
	case ClassImage:
		return ".jpg"
	case ClassCSS:
		return ".css"
	case ClassJS:
		return ".js"
	case ClassFont:
		return ".woff2"
	default:
		return ""
	}
}

// Item is one archived headline/article. Identity is the canonicalized
// Link; a manifest holds at most one Item per link and re-crawls update
// the entry in place rather than duplicating it.
type Item struct {
	Title      string     `json:"title"`
	Link       string     `json:"link"`
	Summary    string     `json:"summary,omitempty"`
	LocalImage string     `json:"local_image,omitempty"`
	LocalHTML  string     `json:"local_html,omitempty"`
	Published  *time.Time `json:"published,omitempty"`
	FetchedAt  time.Time  `json:"fetched_at"`
}

// AssetRecord describes one cached non-HTML resource. LocalPath is a pure
// function of the remote URL and class, which is what makes re-crawls
// idempotent and concurrent resolution collision-free.
type AssetRecord struct {
	RemoteURL   string    `json:"remote_url"`
	LocalPath   string    `json:"local_path"`
	ContentHash string    `json:"content_hash"`
	Class       MimeClass `json:"class"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// Manifest is the persisted root record for a cache directory: the ordered
// item list plus every asset keyed by remote URL. It is owned exclusively
// by the cache manager; other components receive manifest data by value.
type Manifest struct {
	SchemaVersion int                    `json:"schema_version"`
	LastUpdated   time.Time              `json:"last_updated"`
	Items         []Item                 `json:"items"`
	Assets        map[string]AssetRecord `json:"assets"`
}

// FeedItem is the stable shape handed to display-layer consumers. It must
// not change regardless of the internal manifest representation.
type FeedItem struct {
	Title     string  `json:"title"`
	Link      string  `json:"link"`
	Image     *string `json:"image"`
	Summary   string  `json:"summary,omitempty"`
	Published string  `json:"published,omitempty"`
}

// PassMode selects how much of the site a pass archives.
type PassMode string

// Pass modes exposed on the command surface.
const (
	ModeQuick    PassMode = "quick"    // headlines and thumbnails only
	ModeArticles PassMode = "articles" // article HTML without asset mirroring
	ModeFull     PassMode = "full"     // fully self-contained offline archive
)

// PassPhase labels the orchestrator's position in the pass state machine.
type PassPhase string

// Phases a pass moves through, in order.
const (
	PhaseIdle            PassPhase = "idle"
	PhaseFetchHomepage   PassPhase = "fetching_homepage"
	PhaseExtractHeadline PassPhase = "extracting_headlines"
	PhaseArchiveArticles PassPhase = "archiving_articles"
	PhaseCommitting      PassPhase = "committing_manifest"
)

// PassResult summarizes one crawl pass. Item and asset failures are
// accumulated here instead of propagating to the caller.
type PassResult struct {
	PassID        string        `json:"pass_id"`
	Mode          PassMode      `json:"mode"`
	ItemsFound    int           `json:"items_found"`
	ItemsFailed   int           `json:"items_failed"`
	AssetsFetched int           `json:"assets_fetched"`
	AssetsSkipped int           `json:"assets_skipped"`
	Duration      time.Duration `json:"duration"`
}

// FetchKind distinguishes page and asset requests for politeness and
// observability purposes.
type FetchKind string

// Request kinds understood by the fetcher.
const (
	FetchKindPage  FetchKind = "page"
	FetchKindAsset FetchKind = "asset"
)

// FetchRequest captures everything needed to fetch one URL.
type FetchRequest struct {
	URL     string
	Kind    FetchKind
	Referer string
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}
