package archiver

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HsienYu/BreakingNewsEffects/internal/assets"
	"github.com/HsienYu/BreakingNewsEffects/internal/extractor"
	"github.com/HsienYu/BreakingNewsEffects/internal/news"
	"github.com/HsienYu/BreakingNewsEffects/internal/progress"
)

// homepageLocalPath is where a full pass mirrors the homepage itself, so
// the archive is browsable from the top.
const homepageLocalPath = "html/index.html"

// passState carries what a single pass accumulates: the prior manifest
// for reuse decisions, the asset registry, and the precomputed local
// paths of every article page this pass will store.
type passState struct {
	pid      [16]byte
	opts     Options
	prior    news.Manifest
	registry *assetRegistry
	pages    map[string]string
}

// lookupFor builds the rewrite map for a page. Article links always map
// to their local pages; asset mappings join in only when the pass mirrors
// assets.
func (ps *passState) lookupFor(mode news.PassMode) map[string]string {
	out := make(map[string]string, len(ps.pages))
	for k, v := range ps.pages {
		out[k] = v
	}
	if mode == news.ModeFull {
		ps.registry.fillLookup(out)
	}
	return out
}

// itemOutcome is one slot of the fan-out result. done distinguishes a
// processed item from one cancellation never reached; only processed
// items count as found or failed.
type itemOutcome struct {
	item news.Item
	ok   bool
	done bool
}

// RunPass executes one archival pass and commits the resulting manifest.
// Item and asset failures are counted in the result, never returned as
// errors; the two fatal cases are an unreachable homepage and a failed
// commit, both of which leave the previous manifest untouched. Passes
// never overlap: a second caller gets ErrPassInProgress.
func (m *Manager) RunPass(ctx context.Context, opts Options) (news.PassResult, error) {
	if !m.running.CompareAndSwap(false, true) {
		return news.PassResult{}, ErrPassInProgress
	}
	defer m.running.Store(false)

	if opts.Mode == "" {
		opts.Mode = news.ModeQuick
	}
	passID, err := m.ids.NewID()
	if err != nil {
		return news.PassResult{}, fmt.Errorf("new pass id: %w", err)
	}
	result := news.PassResult{PassID: passID, Mode: opts.Mode}
	raw, err := uuid.Parse(passID)
	if err != nil {
		return result, fmt.Errorf("parse pass id %q: %w", passID, err)
	}
	ps := &passState{
		pid:      progress.UUIDToBytes(raw),
		opts:     opts,
		registry: newAssetRegistry(),
		pages:    make(map[string]string),
	}

	started := m.clock.Now()
	m.logger.Info("pass started",
		zap.String("pass_id", passID),
		zap.String("mode", string(opts.Mode)))
	m.emitStart(ps.pid, opts.Mode)

	prior, err := m.manifests.Load()
	if err != nil {
		m.logger.Warn("prior manifest unreadable, starting fresh", zap.Error(err))
		prior = news.NewManifest()
	}
	ps.prior = prior

	m.emitPhase(ps.pid, news.PhaseFetchHomepage)
	resp, err := m.fetcher.Fetch(ctx, news.FetchRequest{URL: m.cfg.BaseURL, Kind: news.FetchKindPage})
	if err != nil {
		m.logger.Error("homepage fetch failed",
			zap.String("url", m.cfg.BaseURL),
			zap.Error(err))
		m.emitPassError(ps.pid, errorNote(err))
		return result, &news.FatalFetchError{URL: m.cfg.BaseURL, Err: err}
	}
	m.emitFetch(ps.pid, resp)
	if extractor.RenderDependent(resp.Body) {
		m.logger.Warn("homepage appears to require javascript, archive may be incomplete",
			zap.String("url", resp.URL))
	}

	m.emitPhase(ps.pid, news.PhaseExtractHeadline)
	hr, err := m.extract.Headlines(resp.URL, resp.Body, resp.Headers.Get("Content-Type"))
	if err != nil {
		m.logger.Warn("headline extraction failed",
			zap.String("url", resp.URL),
			zap.Error(err))
		hr = extractor.HeadlineResult{}
	}
	result.ItemsFailed += hr.Skipped
	m.logger.Info("headlines discovered",
		zap.Int("count", len(hr.Headlines)),
		zap.Int("skipped", hr.Skipped))

	// Local page paths are a pure function of the link, so they can be
	// precomputed for the whole pass and cross-article links rewritten
	// without any coordination between workers.
	if opts.Mode != news.ModeQuick {
		for _, h := range hr.Headlines {
			local, err := assets.PageLocalPath(h.Link)
			if err != nil {
				continue
			}
			ps.pages[pageKey(h.Link)] = local
		}
	}

	m.emitPhase(ps.pid, news.PhaseArchiveArticles)
	outcomes := m.archiveAll(ctx, ps, hr.Headlines)

	if opts.Mode == news.ModeFull && ctx.Err() == nil {
		m.mirrorHomepage(ctx, ps, resp)
	}

	var items []news.Item
	for _, out := range outcomes {
		switch {
		case out.ok:
			items = append(items, out.item)
		case out.done:
			result.ItemsFailed++
		}
	}
	result.ItemsFound = len(items)
	records, fetched, skipped := ps.registry.snapshot()
	result.AssetsFetched = fetched
	result.AssetsSkipped = skipped

	if err := ctx.Err(); err != nil && len(items) == 0 {
		m.emitPassError(ps.pid, errorNote(err))
		return result, fmt.Errorf("pass canceled: %w", err)
	}

	m.emitPhase(ps.pid, news.PhaseCommitting)
	manifest := news.Manifest{
		SchemaVersion: news.SchemaVersion,
		LastUpdated:   m.clock.Now(),
		Items:         news.TrimItems(news.MergeItems(prior.Items, items), m.cfg.MaxItems),
		Assets:        mergeAssets(prior.Assets, records),
	}
	if err := m.manifests.Commit(manifest); err != nil {
		m.emitPassError(ps.pid, errorNote(err))
		return result, fmt.Errorf("commit manifest: %w", err)
	}
	if m.cfg.KeepFeeds > 0 {
		if _, err := m.manifests.PruneFeeds(m.cfg.KeepFeeds); err != nil {
			m.logger.Warn("feed prune failed", zap.Error(err))
		}
	}

	result.Duration = m.clock.Now().Sub(started)
	m.emitDone(ps.pid, result.Duration)
	m.emitPhase(ps.pid, news.PhaseIdle)
	m.logger.Info("pass completed",
		zap.String("pass_id", passID),
		zap.Int("items_found", result.ItemsFound),
		zap.Int("items_failed", result.ItemsFailed),
		zap.Int("assets_fetched", result.AssetsFetched),
		zap.Int("assets_skipped", result.AssetsSkipped),
		zap.Duration("duration", result.Duration))

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("pass canceled after partial archive: %w", err)
	}
	return result, nil
}

// archiveAll fans headlines out to the worker pool and reassembles
// outcomes by discovery index, so manifest order never depends on
// completion order. Cancellation stops intake between items.
func (m *Manager) archiveAll(ctx context.Context, ps *passState, headlines []extractor.Headline) []itemOutcome {
	outcomes := make([]itemOutcome, len(headlines))
	if len(headlines) == 0 {
		return outcomes
	}

	work := newWorklist(m.cfg.Concurrency)
	var wg sync.WaitGroup
	for i := 0; i < m.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, err := work.Next(ctx)
				if err != nil {
					return
				}
				item, ok := m.processItem(ctx, ps, job)
				outcomes[job.index] = itemOutcome{item: item, ok: ok, done: true}
			}
		}()
	}

	for i, h := range headlines {
		if err := work.Add(ctx, articleJob{index: i, headline: h}); err != nil {
			break
		}
	}
	work.Close()
	wg.Wait()
	return outcomes
}

// mirrorHomepage archives the homepage document itself, assets included,
// as the entry point of a full archive.
func (m *Manager) mirrorHomepage(ctx context.Context, ps *passState, resp news.FetchResponse) {
	art, err := m.extract.Article(resp.URL, resp.Body, resp.Headers.Get("Content-Type"))
	if err != nil {
		m.logger.Warn("homepage asset scan failed", zap.Error(err))
	} else {
		m.cacheAssets(ctx, ps, art.Assets)
	}
	if err := m.storePage(ps, resp, homepageLocalPath); err != nil {
		m.logger.Warn("homepage store failed", zap.Error(err))
	}
}

// mergeAssets carries prior records forward and overlays this pass's.
func mergeAssets(prior, current map[string]news.AssetRecord) map[string]news.AssetRecord {
	out := make(map[string]news.AssetRecord, len(prior)+len(current))
	for k, v := range prior {
		out[k] = v
	}
	for k, v := range current {
		out[k] = v
	}
	return out
}
