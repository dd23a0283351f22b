// Package app builds and holds the long-lived services behind every command.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/HsienYu/BreakingNewsEffects/internal/api"
	"github.com/HsienYu/BreakingNewsEffects/internal/archiver"
	"github.com/HsienYu/BreakingNewsEffects/internal/assets"
	"github.com/HsienYu/BreakingNewsEffects/internal/clock/system"
	"github.com/HsienYu/BreakingNewsEffects/internal/config"
	"github.com/HsienYu/BreakingNewsEffects/internal/extractor"
	"github.com/HsienYu/BreakingNewsEffects/internal/fetcher"
	"github.com/HsienYu/BreakingNewsEffects/internal/hash/sha256"
	idgen "github.com/HsienYu/BreakingNewsEffects/internal/id/uuid"
	"github.com/HsienYu/BreakingNewsEffects/internal/logging"
	"github.com/HsienYu/BreakingNewsEffects/internal/progress"
	"github.com/HsienYu/BreakingNewsEffects/internal/progress/sinks"
	"github.com/HsienYu/BreakingNewsEffects/internal/ratelimit"
	"github.com/HsienYu/BreakingNewsEffects/internal/store"
)

// journalFile is where the progress journal sink writes, relative to the
// cache root.
const journalFile = "pass_journal.jsonl"

// App contains the application's dependencies.
type App struct {
	cfg         config.Config
	logger      *zap.Logger
	cacheFS     *store.CacheFS
	manager     *archiver.Manager
	apiServer   *api.Server
	progressHub *progress.Hub
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Manager returns the pass manager for one-shot commands.
func (a *App) Manager() *archiver.Manager {
	return a.manager
}

// CacheDir returns the absolute cache root path.
func (a *App) CacheDir() string {
	return a.cacheFS.Root()
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)

	a := &App{cfg: cfg, logger: logger}
	logger.Info("building application dependencies",
		zap.String("base_url", cfg.Site.BaseURL),
		zap.String("cache_dir", cfg.Cache.Dir),
	)

	a.cacheFS, err = store.NewCacheFS(cfg.Cache.Dir, logger.Named("store"))
	if err != nil {
		return nil, fmt.Errorf("cache init failed: %w", err)
	}

	clock := system.New()
	hasher := sha256.New()
	manifests := store.NewManifestStore(a.cacheFS, clock, logger.Named("manifest"))

	limiter := ratelimit.New(ratelimit.Config{MinDelay: cfg.Fetch.PolitenessDelay})
	fetch := fetcher.New(fetcher.Config{
		UserAgent:      cfg.Site.UserAgent,
		Timeout:        cfg.Fetch.Timeout,
		MaxAttempts:    cfg.Fetch.MaxAttempts,
		RetryBaseDelay: cfg.Fetch.RetryBaseDelay,
		RetryMaxDelay:  cfg.Fetch.RetryMaxDelay,
		MaxBodyBytes:   cfg.Fetch.MaxBodyBytes,
		RespectRobots:  cfg.Site.RespectRobots,
	}, limiter, logger.Named("fetcher"))

	extract, err := extractor.New(cfg.Rules, logger.Named("extractor"))
	if err != nil {
		return nil, fmt.Errorf("extractor init failed: %w", err)
	}

	resolver := assets.NewResolver(assets.Config{
		TTL:         cfg.Cache.AssetTTL,
		DenyDomains: cfg.Assets.DenyDomains,
	}, fetch, a.cacheFS, hasher, clock, logger.Named("assets"))

	emitter, err := a.setupProgress(ctx)
	if err != nil {
		return nil, err
	}

	a.manager, err = archiver.New(archiver.Config{
		BaseURL:          cfg.Site.BaseURL,
		Concurrency:      cfg.Fetch.Concurrency,
		AssetConcurrency: cfg.Fetch.AssetConcurrency,
		MaxItems:         cfg.Cache.MaxItems,
		KeepFeeds:        cfg.Cache.KeepFeeds,
	}, fetch, extract, resolver, a.cacheFS, manifests, hasher, clock, idgen.New(), emitter, logger.Named("archiver"))
	if err != nil {
		return nil, fmt.Errorf("archiver init failed: %w", err)
	}

	a.apiServer = api.NewServer(a.manager, a.cacheFS.Root(), logger.Named("api"))
	return a, nil
}

func (a *App) setupProgress(ctx context.Context) (progress.Emitter, error) {
	prom, err := sinks.NewPrometheusSink(nil)
	if err != nil {
		return nil, fmt.Errorf("progress prometheus sink init failed: %w", err)
	}
	sinkList := []progress.Sink{prom}
	if a.cfg.Progress.LogEnabled {
		sinkList = append(sinkList, sinks.NewLogSink(a.logger.Named("progress_log")))
	}
	if a.cfg.Progress.JournalEnabled {
		journal, err := sinks.NewJournalSink(
			filepath.Join(a.cacheFS.Root(), journalFile),
			a.logger.Named("progress_journal"),
		)
		if err != nil {
			return nil, fmt.Errorf("progress journal sink init failed: %w", err)
		}
		sinkList = append(sinkList, journal)
	}

	hubCfg := progress.Config{
		BufferSize:     a.cfg.Progress.BufferSize,
		MaxBatchEvents: a.cfg.Progress.MaxBatchEvents,
		MaxBatchWait:   a.cfg.Progress.BatchMaxWait(),
		SinkTimeout:    a.cfg.Progress.SinkTimeout(),
		BaseContext:    ctx,
		Logger:         a.logger.Named("progress_hub"),
	}
	a.progressHub = progress.NewHub(hubCfg, sinkList...)
	a.logger.Debug("progress hub initialized",
		zap.Int("sinks", len(sinkList)),
		zap.Int("buffer_size", hubCfg.BufferSize),
	)
	return a.progressHub, nil
}

// Run serves the HTTP surface and blocks until the context is canceled or a
// signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	return a.Close(shutdownCtx)
}

// Close flushes the progress hub and the logger.
func (a *App) Close(ctx context.Context) error {
	if a.progressHub != nil {
		if err := a.progressHub.Close(ctx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
		}
	}
	if err := a.logger.Sync(); err != nil {
		// Sync on stderr fails on some platforms; nothing actionable.
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
	return nil
}
