package news

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchErrorRetryable(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name      string
		err       *FetchError
		retryable bool
	}{
		{"timeout", &FetchError{Kind: ErrorKindTimeout}, true},
		{"connection", &FetchError{Kind: ErrorKindConnection}, true},
		{"rate limited", &FetchError{Kind: ErrorKindRateLimited, Status: 429}, true},
		{"server error", &FetchError{Kind: ErrorKindHTTPStatus, Status: 503}, true},
		{"not found", &FetchError{Kind: ErrorKindHTTPStatus, Status: 404}, false},
		{"forbidden", &FetchError{Kind: ErrorKindHTTPStatus, Status: 403}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.retryable, tc.err.Retryable())
		})
	}
}

func TestErrorHelpers(t *testing.T) {
	t.Parallel()
	rateLimited := fmt.Errorf("attempt 3: %w", &FetchError{
		URL:    "https://example.com",
		Kind:   ErrorKindRateLimited,
		Status: 429,
	})
	require.True(t, IsRetryable(rateLimited))
	require.True(t, IsRateLimited(rateLimited))

	notFound := &FetchError{URL: "https://example.com/x", Kind: ErrorKindHTTPStatus, Status: 404}
	require.False(t, IsRetryable(notFound))
	require.False(t, IsRateLimited(notFound))

	require.False(t, IsRetryable(errors.New("plain")))
}

func TestErrorUnwrapping(t *testing.T) {
	t.Parallel()
	inner := errors.New("connection refused")
	fe := &FetchError{URL: "https://example.com", Kind: ErrorKindConnection, Err: inner}
	fatal := &FatalFetchError{URL: "https://example.com", Err: fe}

	require.ErrorIs(t, fatal, inner)

	var unwrapped *FetchError
	require.ErrorAs(t, fatal, &unwrapped)
	assert.Equal(t, ErrorKindConnection, unwrapped.Kind)

	se := &StorageError{Op: "write", Path: "images/x.jpg", Err: inner}
	require.ErrorIs(t, se, inner)
	assert.Contains(t, se.Error(), "images/x.jpg")
}
