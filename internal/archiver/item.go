package archiver

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/HsienYu/BreakingNewsEffects/internal/extractor"
	"github.com/HsienYu/BreakingNewsEffects/internal/news"
	"github.com/HsienYu/BreakingNewsEffects/internal/rewriter"
)

// processItem archives one discovered headline. The bool reports whether
// the item belongs in the manifest; hard article failures drop it, so a
// copy archived by an earlier pass survives the merge untouched.
func (m *Manager) processItem(ctx context.Context, ps *passState, job articleJob) (news.Item, bool) {
	h := job.headline
	item := news.Item{
		Title:     h.Title,
		Link:      h.Link,
		Summary:   h.Summary,
		Published: h.Published,
		FetchedAt: m.clock.Now(),
	}
	if h.ImageURL != "" && !ps.opts.NoImages {
		if rec, ok := m.ensureAsset(ctx, ps, h.ImageURL, news.ClassImage); ok {
			item.LocalImage = rec.LocalPath
		}
	}
	if ps.opts.Mode == news.ModeQuick {
		m.emitItem(ps.pid, h.Link, true)
		return item, true
	}
	if err := m.archiveArticle(ctx, ps, &item); err != nil {
		m.logger.Warn("article archive failed",
			zap.String("url", h.Link),
			zap.Error(err))
		m.emitItem(ps.pid, h.Link, false)
		return item, false
	}
	m.emitItem(ps.pid, h.Link, true)
	return item, true
}

// archiveArticle fetches the article page, refines the item from its
// content, and stores the page locally. In full mode the page's assets
// are mirrored first so the stored copy renders offline. Extraction
// failures are not fatal: the headline data stands.
func (m *Manager) archiveArticle(ctx context.Context, ps *passState, item *news.Item) error {
	resp, err := m.fetcher.Fetch(ctx, news.FetchRequest{
		URL:     item.Link,
		Kind:    news.FetchKindPage,
		Referer: m.cfg.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("fetch article: %w", err)
	}
	m.emitFetch(ps.pid, resp)

	art, err := m.extract.Article(resp.URL, resp.Body, resp.Headers.Get("Content-Type"))
	if err != nil {
		m.logger.Warn("article extraction failed",
			zap.String("url", item.Link),
			zap.Error(err))
		return nil
	}
	if art.Title != "" {
		item.Title = art.Title
	}
	if item.Summary == "" {
		item.Summary = summarize(art.Text)
	}

	if ps.opts.Mode == news.ModeFull {
		m.cacheAssets(ctx, ps, art.Assets)
	}
	local, ok := ps.pages[pageKey(item.Link)]
	if !ok {
		return nil
	}
	if err := m.storePage(ps, resp, local); err != nil {
		return fmt.Errorf("store article: %w", err)
	}
	item.LocalHTML = local
	return nil
}

// storePage rewrites the fetched document against everything cached so
// far and writes it under the cache root. A document the rewriter cannot
// process is stored as fetched.
func (m *Manager) storePage(ps *passState, resp news.FetchResponse, local string) error {
	body, err := rewriter.HTML(resp.Body, resp.URL, path.Dir(local), ps.lookupFor(ps.opts.Mode))
	if err != nil {
		m.logger.Warn("rewrite failed, storing original",
			zap.String("url", resp.URL),
			zap.Error(err))
		body = resp.Body
	}
	return m.fs.WriteFile(local, body)
}

// cacheAssets fans a page's asset references out through the resolver,
// bounded by AssetConcurrency. Failures are recorded and skipped; they
// never fail the article.
func (m *Manager) cacheAssets(ctx context.Context, ps *passState, refs []extractor.AssetRef) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.AssetConcurrency)
	for _, ref := range refs {
		ref := ref
		if ps.opts.NoImages && ref.Class == news.ClassImage {
			continue
		}
		g.Go(func() error {
			m.ensureAsset(gctx, ps, ref.URL, ref.Class)
			return nil
		})
	}
	_ = g.Wait()
}

// ensureAsset puts one asset URL through the pass-level registry and the
// resolver. Each unique URL is downloaded, or given up on, at most once
// per pass no matter how many documents reference it.
func (m *Manager) ensureAsset(ctx context.Context, ps *passState, rawURL string, class news.MimeClass) (news.AssetRecord, bool) {
	canonical, err := news.CanonicalizeAssetURL(rawURL)
	if err != nil {
		m.logger.Debug("asset url rejected", zap.String("url", rawURL), zap.Error(err))
		return news.AssetRecord{}, false
	}
	if rec, ok := ps.registry.lookup(canonical); ok {
		return rec, true
	}
	if _, ok := ps.registry.failure(canonical); ok {
		return news.AssetRecord{}, false
	}

	var prior *news.AssetRecord
	if p, ok := ps.prior.Assets[canonical]; ok {
		prior = &p
	}
	rec, err := m.resolver.EnsureCached(ctx, canonical, class, prior)
	if err != nil {
		if ps.registry.addFailure(canonical, err.Error()) {
			m.logger.Warn("asset skipped",
				zap.String("url", canonical),
				zap.String("class", string(class)),
				zap.Error(err))
			m.emitAsset(ps.pid, class, false, errorNote(err))
		}
		return news.AssetRecord{}, false
	}
	fresh := prior == nil || rec != *prior
	stored, first := ps.registry.add(canonical, rec, fresh)
	if first && fresh {
		m.emitAsset(ps.pid, class, true, "")
		if class == news.ClassCSS {
			m.cacheStylesheet(ctx, ps, stored)
		}
	}
	return stored, true
}

// cacheStylesheet pulls a freshly downloaded stylesheet's url(...)
// children into the cache and rewrites the stylesheet to reference them
// relatively. The registry breaks @import cycles: the parent is already
// registered when its children are ensured.
func (m *Manager) cacheStylesheet(ctx context.Context, ps *passState, rec news.AssetRecord) {
	data, err := m.fs.ReadFile(rec.LocalPath)
	if err != nil {
		m.logger.Warn("stylesheet readback failed",
			zap.String("path", rec.LocalPath),
			zap.Error(err))
		return
	}
	refs := extractor.CSSRefs(data, rec.RemoteURL)
	if len(refs) == 0 {
		return
	}
	lookup := make(map[string]string, len(refs))
	for _, ref := range refs {
		if ps.opts.NoImages && ref.Class == news.ClassImage {
			continue
		}
		child, ok := m.ensureAsset(ctx, ps, ref.URL, ref.Class)
		if !ok {
			continue
		}
		key, err := news.CanonicalizeAssetURL(ref.URL)
		if err != nil {
			continue
		}
		lookup[key] = child.LocalPath
	}
	if len(lookup) == 0 {
		return
	}
	rewritten := rewriter.CSS(data, rec.RemoteURL, path.Dir(rec.LocalPath), lookup)
	if bytes.Equal(rewritten, data) {
		return
	}
	if err := m.fs.WriteFile(rec.LocalPath, rewritten); err != nil {
		m.logger.Warn("stylesheet rewrite failed",
			zap.String("path", rec.LocalPath),
			zap.Error(err))
		return
	}
	hash, err := m.hasher.Hash(rewritten)
	if err != nil {
		m.logger.Warn("stylesheet rehash failed",
			zap.String("path", rec.LocalPath),
			zap.Error(err))
		return
	}
	ps.registry.updateHash(rec.RemoteURL, hash)
}

// summarize derives a one-line summary from extracted article text,
// capped at 240 runes on a word boundary.
func summarize(text string) string {
	line := strings.TrimSpace(text)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	const maxRunes = 240
	if utf8.RuneCountInString(line) <= maxRunes {
		return line
	}
	runes := []rune(line)
	cut := string(runes[:maxRunes])
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut + "…"
}

// pageKey is the canonical form article links are looked up by, matching
// what the rewriter uses for anchors.
func pageKey(link string) string {
	key, err := news.CanonicalizeLink(link)
	if err != nil {
		return ""
	}
	return key
}

// errorNote trims an error to a short note for progress events.
func errorNote(err error) string {
	s := err.Error()
	if len(s) > 120 {
		s = s[:120]
	}
	return s
}

// assetRegistry tracks every asset touched during a pass: successful
// records for the manifest and rewrite maps, failures so a bad URL is
// attempted only once, and the fetched/skipped tallies for the result.
type assetRegistry struct {
	mu       sync.Mutex
	records  map[string]news.AssetRecord
	failures map[string]string
	fetched  int
	skipped  int
}

func newAssetRegistry() *assetRegistry {
	return &assetRegistry{
		records:  make(map[string]news.AssetRecord),
		failures: make(map[string]string),
	}
}

func (r *assetRegistry) lookup(canonical string) (news.AssetRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[canonical]
	return rec, ok
}

func (r *assetRegistry) failure(canonical string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reason, ok := r.failures[canonical]
	return reason, ok
}

// add stores a record unless one exists. It reports the stored record and
// whether this call was first, so concurrent callers coalesced by the
// resolver cannot double-count a download.
func (r *assetRegistry) add(canonical string, rec news.AssetRecord, fresh bool) (news.AssetRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.records[canonical]; ok {
		return existing, false
	}
	r.records[canonical] = rec
	if fresh {
		r.fetched++
	}
	return rec, true
}

// addFailure records a failed asset once; later references within the
// pass reuse the verdict instead of refetching.
func (r *assetRegistry) addFailure(canonical, reason string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.failures[canonical]; ok {
		return false
	}
	r.failures[canonical] = reason
	r.skipped++
	return true
}

func (r *assetRegistry) updateHash(canonical, hash string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[canonical]
	if !ok {
		return
	}
	rec.ContentHash = hash
	r.records[canonical] = rec
}

// fillLookup adds a canonical-URL to local-path mapping for every cached
// record to dst.
func (r *assetRegistry) fillLookup(dst map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for canonical, rec := range r.records {
		dst[canonical] = rec.LocalPath
	}
}

// snapshot copies the records and tallies for manifest assembly.
func (r *assetRegistry) snapshot() (map[string]news.AssetRecord, int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]news.AssetRecord, len(r.records))
	for k, v := range r.records {
		out[k] = v
	}
	return out, r.fetched, r.skipped
}
