package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_Wait(t *testing.T) {
	// 100ms between requests keeps the test fast while still measurable.
	l := New(Config{MinDelay: 100 * time.Millisecond})

	ctx := context.Background()

	// First call should be immediate.
	start := time.Now()
	if err := l.Wait(ctx, "https://example.com/foo"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) > 10*time.Millisecond {
		t.Logf("warning: first wait took %v", time.Since(start))
	}

	// Second call to the same host should wait ~100ms.
	start = time.Now()
	if err := l.Wait(ctx, "https://example.com/bar"); err != nil {
		t.Fatal(err)
	}
	dur := time.Since(start)
	if dur < 80*time.Millisecond {
		t.Errorf("expected wait ~100ms, got %v", dur)
	}
}

func TestLimiter_DifferentDomains(t *testing.T) {
	l := New(Config{MinDelay: time.Second})

	ctx := context.Background()

	// Domain A.
	if err := l.Wait(ctx, "https://a.com/1"); err != nil {
		t.Fatal(err)
	}

	// Domain B should not be blocked by A.
	start := time.Now()
	if err := l.Wait(ctx, "https://b.com/1"); err != nil {
		t.Fatal(err)
	}
	if time.Since(start) > 10*time.Millisecond {
		t.Errorf("domain B blocked unexpectedly")
	}
}

func TestLimiter_Disabled(t *testing.T) {
	l := New(Config{MinDelay: 0})

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := l.Wait(ctx, "https://example.com/x"); err != nil {
			t.Fatal(err)
		}
	}
	if time.Since(start) > 10*time.Millisecond {
		t.Errorf("disabled limiter should not wait, took %v", time.Since(start))
	}
}

func TestLimiter_ContextCanceled(t *testing.T) {
	l := New(Config{MinDelay: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	if err := l.Wait(ctx, "https://example.com/1"); err != nil {
		t.Fatal(err)
	}
	cancel()
	if err := l.Wait(ctx, "https://example.com/2"); err == nil {
		t.Error("expected error from canceled context")
	}
}
