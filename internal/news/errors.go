package news

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a fetch failure for retry decisions.
type ErrorKind string

// Failure classes produced by the fetcher.
const (
	ErrorKindTimeout     ErrorKind = "timeout"
	ErrorKindConnection  ErrorKind = "connection"
	ErrorKindHTTPStatus  ErrorKind = "http_status"
	ErrorKindRateLimited ErrorKind = "rate_limited"
)

// FetchError describes a failed fetch with enough detail for the retry
// policy to decide whether another attempt is worthwhile.
type FetchError struct {
	URL    string
	Kind   ErrorKind
	Status int   // set for http_status and rate_limited
	Err    error // underlying transport error, if any
}

func (e *FetchError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("fetch %s: %s (status %d)", e.URL, e.Kind, e.Status)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Retryable reports whether the failure class is transient: timeouts,
// connection drops, 5xx responses and 429s. Other client errors are
// permanent and dropped immediately.
func (e *FetchError) Retryable() bool {
	switch e.Kind {
	case ErrorKindTimeout, ErrorKindConnection, ErrorKindRateLimited:
		return true
	case ErrorKindHTTPStatus:
		return e.Status >= 500
	default:
		return false
	}
}

// ParseError marks a document whose markup could not be used. The affected
// extraction comes back empty and the pass continues.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse %s: %v", e.URL, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// StorageError wraps a disk failure. It aborts only the current item or
// asset, never the whole pass.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}
func (e *StorageError) Unwrap() error { return e.Err }

// FatalFetchError means the homepage itself was unreachable. The pass
// aborts and the previously committed manifest stays untouched.
type FatalFetchError struct {
	URL string
	Err error
}

func (e *FatalFetchError) Error() string {
	return fmt.Sprintf("homepage fetch %s: %v", e.URL, e.Err)
}
func (e *FatalFetchError) Unwrap() error { return e.Err }

// IsRetryable reports whether err carries a retryable FetchError.
func IsRetryable(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Retryable()
	}
	return false
}

// IsRateLimited reports whether err is a 429-class fetch failure, which
// earns a longer backoff than other transient errors.
func IsRateLimited(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == ErrorKindRateLimited
}
