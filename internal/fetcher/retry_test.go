package fetcher

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/HsienYu/BreakingNewsEffects/internal/news"
)

func TestShouldRetry(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(3, 10*time.Millisecond, time.Second)

	testCases := []struct {
		name    string
		err     error
		attempt int
		want    bool
	}{
		{"nil error", nil, 1, false},
		{"server error", &news.FetchError{Kind: news.ErrorKindHTTPStatus, Status: http.StatusInternalServerError}, 1, true},
		{"not found", &news.FetchError{Kind: news.ErrorKindHTTPStatus, Status: http.StatusNotFound}, 1, false},
		{"rate limited", &news.FetchError{Kind: news.ErrorKindRateLimited, Status: http.StatusTooManyRequests}, 1, true},
		{"timeout", &news.FetchError{Kind: news.ErrorKindTimeout}, 1, true},
		{"connection", &news.FetchError{Kind: news.ErrorKindConnection}, 1, true},
		{"attempts exhausted", &news.FetchError{Kind: news.ErrorKindTimeout}, 3, false},
		{"context canceled", context.Canceled, 1, false},
		{"context deadline", context.DeadlineExceeded, 1, false},
		{"plain error", errors.New("boom"), 1, false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := p.ShouldRetry(tc.err, tc.attempt); got != tc.want {
				t.Errorf("ShouldRetry(%v, %d) = %v; want %v", tc.err, tc.attempt, got, tc.want)
			}
		})
	}
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(5, 100*time.Millisecond, 400*time.Millisecond)
	serverErr := &news.FetchError{Kind: news.ErrorKindHTTPStatus, Status: http.StatusBadGateway}

	// Jitter keeps the result in [delay/2, delay).
	for attempt, wantMax := range []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		400 * time.Millisecond, // capped
	} {
		got := p.Backoff(serverErr, attempt)
		if got < wantMax/2 || got >= wantMax {
			t.Errorf("Backoff(attempt=%d) = %v; want in [%v, %v)", attempt, got, wantMax/2, wantMax)
		}
	}
}

func TestBackoffRateLimitedBacksOffHarder(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(3, 100*time.Millisecond, time.Second)
	rateLimited := &news.FetchError{Kind: news.ErrorKindRateLimited, Status: http.StatusTooManyRequests}

	// attempt 0: base 100ms tripled to 300ms, jittered into [150ms, 300ms).
	got := p.Backoff(rateLimited, 0)
	if got < 150*time.Millisecond || got >= 300*time.Millisecond {
		t.Errorf("Backoff for 429 = %v; want in [150ms, 300ms)", got)
	}
}

func TestPolicyDefaults(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(0, 0, 0)
	if p.MaxAttempts() != 3 {
		t.Errorf("expected default max attempts 3, got %d", p.MaxAttempts())
	}
	if got := p.Backoff(&news.FetchError{Kind: news.ErrorKindTimeout}, 0); got <= 0 {
		t.Errorf("expected positive backoff, got %v", got)
	}
}
