// Package assets maps remote asset URLs to deterministic cache paths and
// downloads each asset at most once per pass.
package assets

import (
	"context"
	"crypto/md5" // #nosec G501 -- md5 names cache files, it is not used for security.
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/HsienYu/BreakingNewsEffects/internal/news"
	"github.com/HsienYu/BreakingNewsEffects/internal/store"
	"github.com/HsienYu/BreakingNewsEffects/internal/telemetry"
)

// ErrBlockedDomain marks assets whose host is on the deny list.
var ErrBlockedDomain = errors.New("asset domain blocked")

// DefaultTTL is how long a cached asset stays fresh without a re-fetch.
const DefaultTTL = 24 * time.Hour

// Resolve maps a remote URL to its cache path: the class directory, the
// md5 of the canonical URL, and the URL's extension (or the class
// default). Pure and deterministic — the same URL resolves to the same
// path in any process, which is what makes re-crawls idempotent.
func Resolve(remoteURL string, class news.MimeClass) (string, error) {
	canonical, err := news.CanonicalizeAssetURL(remoteURL)
	if err != nil {
		return "", err
	}
	dir := class.Dir()
	if dir == "" {
		return "", fmt.Errorf("unknown mime class %q", class)
	}
	// #nosec G401 -- md5 names cache files, it is not used for security.
	sum := md5.Sum([]byte(canonical))
	return dir + "/" + hex.EncodeToString(sum[:]) + extensionFor(canonical, class), nil
}

// PageLocalPath maps an article link to its offline page path under html/,
// using the same hashed naming as assets so re-crawls land on the same file.
func PageLocalPath(link string) (string, error) {
	canonical, err := news.CanonicalizeLink(link)
	if err != nil {
		return "", err
	}
	// #nosec G401 -- md5 names cache files, it is not used for security.
	sum := md5.Sum([]byte(canonical))
	return "html/" + hex.EncodeToString(sum[:]) + ".html", nil
}

func extensionFor(canonical string, class news.MimeClass) string {
	u, err := url.Parse(canonical)
	if err != nil {
		return class.DefaultExt()
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if ext == "" || len(ext) > 8 {
		return class.DefaultExt()
	}
	return ext
}

// Config controls resolver behavior.
type Config struct {
	// TTL is the freshness threshold for cached assets. Zero means an
	// existing file never goes stale.
	TTL time.Duration
	// DenyDomains lists hosts (exact or *.suffix) never fetched.
	DenyDomains []string
}

// Resolver downloads assets into the cache. Concurrent requests for the
// same asset collapse into one download.
type Resolver struct {
	cfg       Config
	fetcher   news.Fetcher
	fs        *store.CacheFS
	hasher    news.Hasher
	clock     news.Clock
	blocklist *Blocklist
	group     singleflight.Group
	logger    *zap.Logger
}

// NewResolver builds a Resolver.
func NewResolver(cfg Config, fetcher news.Fetcher, fs *store.CacheFS, hasher news.Hasher, clock news.Clock, logger *zap.Logger) *Resolver {
	return &Resolver{
		cfg:       cfg,
		fetcher:   fetcher,
		fs:        fs,
		hasher:    hasher,
		clock:     clock,
		blocklist: NewBlocklist(cfg.DenyDomains),
		logger:    logger,
	}
}

// EnsureCached returns a record for the asset, downloading it only when
// the prior record is missing, stale, or its file is gone. prior is the
// record from the previous manifest, nil when the asset is new. Failures
// mean the asset is skipped; the caller never escalates them to a pass
// failure.
func (r *Resolver) EnsureCached(ctx context.Context, remoteURL string, class news.MimeClass, prior *news.AssetRecord) (news.AssetRecord, error) {
	canonical, err := news.CanonicalizeAssetURL(remoteURL)
	if err != nil {
		telemetry.ObserveAssetSkipped(string(class), "bad_url")
		return news.AssetRecord{}, err
	}
	if r.blocklist.IsBlocked(news.Host(canonical)) {
		telemetry.ObserveAssetSkipped(string(class), "blocked")
		return news.AssetRecord{}, fmt.Errorf("%w: %s", ErrBlockedDomain, news.Host(canonical))
	}

	v, err, _ := r.group.Do(canonical, func() (any, error) {
		return r.ensure(ctx, remoteURL, canonical, class, prior)
	})
	if err != nil {
		return news.AssetRecord{}, err
	}
	record, ok := v.(news.AssetRecord)
	if !ok {
		return news.AssetRecord{}, fmt.Errorf("unexpected coalesced result type %T", v)
	}
	return record, nil
}

func (r *Resolver) ensure(ctx context.Context, remoteURL, canonical string, class news.MimeClass, prior *news.AssetRecord) (news.AssetRecord, error) {
	localPath, err := Resolve(canonical, class)
	if err != nil {
		telemetry.ObserveAssetSkipped(string(class), "bad_url")
		return news.AssetRecord{}, err
	}

	if prior != nil && prior.LocalPath == localPath && r.fs.Exists(localPath) && r.fresh(prior.FetchedAt) {
		r.logger.Debug("asset fresh in cache", zap.String("url", canonical), zap.String("path", localPath))
		return *prior, nil
	}

	resp, err := r.fetcher.Fetch(ctx, news.FetchRequest{URL: remoteURL, Kind: news.FetchKindAsset})
	if err != nil {
		telemetry.ObserveAssetSkipped(string(class), "fetch_failed")
		return news.AssetRecord{}, err
	}
	if err := r.fs.WriteFile(localPath, resp.Body); err != nil {
		telemetry.ObserveAssetSkipped(string(class), "storage")
		return news.AssetRecord{}, err
	}
	hash, err := r.hasher.Hash(resp.Body)
	if err != nil {
		return news.AssetRecord{}, fmt.Errorf("hash asset %s: %w", canonical, err)
	}

	telemetry.ObserveAssetCached(string(class))
	r.logger.Debug("asset cached",
		zap.String("url", canonical),
		zap.String("path", localPath),
		zap.Int("bytes", len(resp.Body)))
	return news.AssetRecord{
		RemoteURL:   canonical,
		LocalPath:   localPath,
		ContentHash: hash,
		Class:       class,
		FetchedAt:   r.clock.Now(),
	}, nil
}

func (r *Resolver) fresh(fetchedAt time.Time) bool {
	if r.cfg.TTL <= 0 {
		return true
	}
	return r.clock.Now().Sub(fetchedAt) < r.cfg.TTL
}
