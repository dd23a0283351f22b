package fetcher

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"net"
	"time"

	"github.com/HsienYu/BreakingNewsEffects/internal/news"
)

// ExponentialRetryPolicy implements jittered exponential backoff over the
// fetch error taxonomy. Rate-limited responses back off harder than other
// transient failures.
type ExponentialRetryPolicy struct {
	maxAttempts     int
	baseDelay       time.Duration
	maxDelay        time.Duration
	rateLimitFactor float64
}

// NewExponentialRetryPolicy builds a policy, falling back to sane defaults
// for zero values.
func NewExponentialRetryPolicy(maxAttempts int, baseDelay, maxDelay time.Duration) *ExponentialRetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if baseDelay <= 0 {
		baseDelay = 250 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}
	return &ExponentialRetryPolicy{
		maxAttempts:     maxAttempts,
		baseDelay:       baseDelay,
		maxDelay:        maxDelay,
		rateLimitFactor: 3,
	}
}

// MaxAttempts reports the attempt budget, counting the first try.
func (p *ExponentialRetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// ShouldRetry decides whether the error is retryable. Timeouts, connection
// failures, 5xx and 429 retry; other client errors and canceled contexts
// do not.
func (p *ExponentialRetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.maxAttempts {
		return false
	}
	var fetchErr *news.FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Retryable()
	}
	// A bare context error means the caller gave up, not the attempt.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// Backoff returns the wait duration before the next attempt.
func (p *ExponentialRetryPolicy) Backoff(err error, attempt int) time.Duration {
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	if news.IsRateLimited(err) {
		delay *= p.rateLimitFactor
	}
	jitter := p.randomJitter(time.Duration(delay) / 2)
	return time.Duration(delay/2) + jitter
}

func (p *ExponentialRetryPolicy) randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
