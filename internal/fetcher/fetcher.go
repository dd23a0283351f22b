// Package fetcher retrieves pages and assets over HTTP with per-host
// politeness, jittered retries and coalescing of identical in-flight
// requests.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/HsienYu/BreakingNewsEffects/internal/news"
	"github.com/HsienYu/BreakingNewsEffects/internal/ratelimit"
	"github.com/HsienYu/BreakingNewsEffects/internal/telemetry"
)

// ErrRobotsDisallowed marks URLs the site's robots.txt forbids.
var ErrRobotsDisallowed = errors.New("blocked by robots.txt")

// Config controls collector and retry behavior.
type Config struct {
	UserAgent      string
	Timeout        time.Duration
	MaxAttempts    int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	MaxBodyBytes   int
	RespectRobots  bool
}

// Fetcher implements news.Fetcher using the Colly collector.
type Fetcher struct {
	cfg     Config
	base    *colly.Collector
	retry   *ExponentialRetryPolicy
	limiter *ratelimit.Limiter
	robots  RobotsPolicy
	group   singleflight.Group
	logger  *zap.Logger
}

// New constructs a configured Colly-based Fetcher.
func New(cfg Config, limiter *ratelimit.Limiter, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	base := colly.NewCollector(colly.UserAgent(cfg.UserAgent))
	// Passes re-fetch the same URLs; revisit bookkeeping happens upstream.
	base.AllowURLRevisit = true
	// Robots enforcement goes through RobotsPolicy, not Colly.
	base.IgnoreRobotsTxt = true
	if cfg.MaxBodyBytes > 0 {
		base.MaxBodySize = cfg.MaxBodyBytes
	}
	base.WithTransport(newHTTPTransport())
	base.SetRequestTimeout(cfg.Timeout)

	return &Fetcher{
		cfg:     cfg,
		base:    base,
		retry:   NewExponentialRetryPolicy(cfg.MaxAttempts, cfg.RetryBaseDelay, cfg.RetryMaxDelay),
		limiter: limiter,
		robots:  NewRobotsPolicy(cfg.RespectRobots, cfg.UserAgent, logger),
		logger:  logger,
	}
}

// Fetch retrieves a single URL. Concurrent calls for the same URL share one
// network request and its result.
func (f *Fetcher) Fetch(ctx context.Context, req news.FetchRequest) (news.FetchResponse, error) {
	if req.Kind == "" {
		req.Kind = news.FetchKindPage
	}
	v, err, _ := f.group.Do(coalesceKey(req), func() (any, error) {
		return f.fetchWithRetry(ctx, req)
	})
	if err != nil {
		return news.FetchResponse{}, err
	}
	resp, ok := v.(news.FetchResponse)
	if !ok {
		return news.FetchResponse{}, fmt.Errorf("unexpected coalesced result type %T", v)
	}
	return resp, nil
}

func (f *Fetcher) fetchWithRetry(ctx context.Context, req news.FetchRequest) (news.FetchResponse, error) {
	if !f.robots.Allowed(ctx, req.URL) {
		return news.FetchResponse{}, &news.FetchError{
			URL:    req.URL,
			Kind:   news.ErrorKindHTTPStatus,
			Status: http.StatusForbidden,
			Err:    ErrRobotsDisallowed,
		}
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := f.limiter.Wait(ctx, req.URL); err != nil {
			return news.FetchResponse{}, err
		}
		telemetry.ObserveFetchAttempt(req.URL, string(req.Kind))

		resp, err := f.visit(ctx, req)
		if err == nil {
			f.logger.Debug("fetched",
				zap.String("url", resp.URL),
				zap.String("kind", string(req.Kind)),
				zap.Int("status", resp.StatusCode),
				zap.Int("bytes", len(resp.Body)),
				zap.Duration("duration", resp.Duration))
			return resp, nil
		}
		lastErr = err

		if !f.retry.ShouldRetry(err, attempt+1) {
			break
		}
		backoff := f.retry.Backoff(err, attempt)
		telemetry.ObserveFetchRetry(req.URL)
		f.logger.Debug("retrying fetch",
			zap.String("url", req.URL),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		if err := sleep(ctx, backoff); err != nil {
			return news.FetchResponse{}, err
		}
	}

	telemetry.ObserveFetchError(req.URL, errorClass(lastErr))
	return news.FetchResponse{}, lastErr
}

// visit runs a single attempt on a cloned collector, racing the visit
// against the context.
func (f *Fetcher) visit(ctx context.Context, req news.FetchRequest) (news.FetchResponse, error) {
	collector := f.base.Clone()
	var (
		resp     news.FetchResponse
		status   int
		fetchErr error
	)
	start := time.Now()

	collector.OnRequest(func(r *colly.Request) {
		if req.Referer != "" {
			r.Headers.Set("Referer", req.Referer)
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		resp = news.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(req.URL)
	}()

	select {
	case <-ctx.Done():
		return news.FetchResponse{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err == nil {
			err = fetchErr
		}
		if err != nil {
			return news.FetchResponse{}, classifyError(req.URL, status, err)
		}
		return resp, nil
	}
}

// classifyError maps transport failures onto the fetch error taxonomy.
// Errors raised before any network activity (bad scheme, malformed URL)
// stay unclassified and are not retried.
func classifyError(rawURL string, status int, err error) error {
	switch {
	case status == http.StatusTooManyRequests:
		telemetry.ObserveRateLimitHit()
		return &news.FetchError{URL: rawURL, Kind: news.ErrorKindRateLimited, Status: status, Err: err}
	case status >= 400:
		return &news.FetchError{URL: rawURL, Kind: news.ErrorKindHTTPStatus, Status: status, Err: err}
	}
	var netErr net.Error
	if (errors.As(err, &netErr) && netErr.Timeout()) || errors.Is(err, context.DeadlineExceeded) {
		return &news.FetchError{URL: rawURL, Kind: news.ErrorKindTimeout, Err: err}
	}
	if errors.As(err, &netErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &news.FetchError{URL: rawURL, Kind: news.ErrorKindConnection, Err: err}
	}
	return fmt.Errorf("visit %s: %w", rawURL, err)
}

func errorClass(err error) string {
	var fetchErr *news.FetchError
	if errors.As(err, &fetchErr) {
		return string(fetchErr.Kind)
	}
	return "other"
}

// coalesceKey collapses URL spellings of the same resource so concurrent
// fetches share one request.
func coalesceKey(req news.FetchRequest) string {
	key := req.URL
	switch req.Kind {
	case news.FetchKindAsset:
		if c, err := news.CanonicalizeAssetURL(req.URL); err == nil {
			key = c
		}
	default:
		if c, err := news.CanonicalizeLink(req.URL); err == nil {
			key = c
		}
	}
	return string(req.Kind) + " " + key
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
