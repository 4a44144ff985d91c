// Package source fetches raw content from a remote pack hub.
//
// A Source performs exactly one request per Fetch call and reports
// classified failures; retry policy belongs to the caller.
package source

import (
	"context"
	"fmt"
	"net/http"
)

// ErrorKind classifies a fetch failure.
type ErrorKind string

// Fetch failure kinds.
const (
	// KindTimeout means the request exceeded its deadline.
	KindTimeout ErrorKind = "timeout"
	// KindConnection means the request never produced a response.
	KindConnection ErrorKind = "connection"
	// KindStatus means the backend answered with a non-2xx status.
	KindStatus ErrorKind = "status"
	// KindDecode means a response body could not be decoded.
	KindDecode ErrorKind = "decode"
)

// FetchError describes a failed fetch with enough detail for the
// caller to decide whether a retry can help.
type FetchError struct {
	// Kind classifies the failure.
	Kind ErrorKind
	// Path is the hub-relative path that was requested.
	Path string
	// Status is the HTTP status code for KindStatus errors, zero otherwise.
	Status int
	// Err is the underlying error, if any.
	Err error
}

func (e *FetchError) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.Path, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.Path, e.Kind)
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error { return e.Err }

// Temporary reports whether a retry could plausibly succeed.
// Timeouts, connection failures, 5xx responses, and 429 qualify;
// other statuses and decode failures are deterministic.
func (e *FetchError) Temporary() bool {
	switch e.Kind {
	case KindTimeout, KindConnection:
		return true
	case KindStatus:
		return e.Status >= 500 || e.Status == http.StatusTooManyRequests
	default:
		return false
	}
}

// RateLimited reports whether the backend explicitly throttled the request.
func (e *FetchError) RateLimited() bool {
	return e.Kind == KindStatus && e.Status == http.StatusTooManyRequests
}

// Source fetches raw hub content by hub-relative path.
// Implementations perform exactly one request per call and never retry.
type Source interface {
	// Fetch returns the full content at the given hub-relative path.
	// Failures are reported as *FetchError where classifiable.
	Fetch(ctx context.Context, path string) ([]byte, error)

	// Describe returns a short human-readable description of the
	// backend for logs and reports.
	Describe() string
}
