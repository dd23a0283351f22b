// Package archiver orchestrates archival passes: it drives the fetcher,
// extractor, resolver and rewriter through the pass state machine and is
// the only component that reads or writes the manifest.
package archiver

import (
	"errors"
	"fmt"
	"net/url"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/HsienYu/BreakingNewsEffects/internal/extractor"
	"github.com/HsienYu/BreakingNewsEffects/internal/news"
	"github.com/HsienYu/BreakingNewsEffects/internal/progress"
	"github.com/HsienYu/BreakingNewsEffects/internal/store"
)

// ErrPassInProgress is returned when RunPass is called while another pass
// is still running. Passes never overlap; the manifest under construction
// has exactly one owner.
var ErrPassInProgress = errors.New("archive pass already running")

// Config controls pass behavior.
type Config struct {
	// BaseURL is the homepage the pass starts from.
	BaseURL string
	// Concurrency bounds the article worker pool.
	Concurrency int
	// AssetConcurrency bounds the per-article asset fan-out.
	AssetConcurrency int
	// MaxItems trims the merged manifest oldest-first; 0 keeps everything.
	MaxItems int
	// KeepFeeds prunes old feed snapshots; 0 keeps everything.
	KeepFeeds int
}

// Options selects what a single pass archives.
type Options struct {
	Mode     news.PassMode
	NoImages bool
}

// Manager owns the manifest and runs archival passes over the target site.
type Manager struct {
	cfg       Config
	base      *url.URL
	fetcher   news.Fetcher
	extract   *extractor.Extractor
	resolver  news.AssetResolver
	fs        *store.CacheFS
	manifests *store.ManifestStore
	hasher    news.Hasher
	clock     news.Clock
	ids       news.IDGenerator
	emitter   progress.Emitter
	logger    *zap.Logger

	running atomic.Bool
}

// New constructs a Manager. emitter may be nil when progress reporting is
// disabled.
func New(
	cfg Config,
	fetcher news.Fetcher,
	extract *extractor.Extractor,
	resolver news.AssetResolver,
	fs *store.CacheFS,
	manifests *store.ManifestStore,
	hasher news.Hasher,
	clock news.Clock,
	ids news.IDGenerator,
	emitter progress.Emitter,
	logger *zap.Logger,
) (*Manager, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q is not absolute", cfg.BaseURL)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.AssetConcurrency <= 0 {
		cfg.AssetConcurrency = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		cfg:       cfg,
		base:      base,
		fetcher:   fetcher,
		extract:   extract,
		resolver:  resolver,
		fs:        fs,
		manifests: manifests,
		hasher:    hasher,
		clock:     clock,
		ids:       ids,
		emitter:   emitter,
		logger:    logger,
	}, nil
}

// Running reports whether a pass is currently executing.
func (m *Manager) Running() bool {
	return m.running.Load()
}

// Ready reports whether a committed manifest exists, i.e. the cache has
// served at least one pass.
func (m *Manager) Ready() bool {
	return m.manifests.HasManifest()
}

// NewsFeed returns the committed items in manifest order, newest pass
// first. It reads only committed data, so it is callable at any time,
// including while a pass runs. A missing manifest yields an empty feed.
func (m *Manager) NewsFeed() ([]news.FeedItem, error) {
	manifest, err := m.manifests.Load()
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}
	return manifest.Feed(), nil
}

// ListCached returns the same sequence as NewsFeed; the enumeration
// command consumes it.
func (m *Manager) ListCached() ([]news.FeedItem, error) {
	return m.NewsFeed()
}
