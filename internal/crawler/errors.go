package crawler

import (
	"errors"
	"fmt"
)

// Crawler errors.
//
// Design decision: Fetch problems are classified with sentinel errors
// wrapped in a FetchError because:
//  1. The spider only needs to know "failed" to drop a URL and move on
//  2. The failure list in the result keeps the status code and reason
//  3. Tests can check the class of failure with errors.Is
var (
	// ErrUnexpectedStatus is returned for a non-2xx response.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")

	// ErrNotHTML is returned when the response is not an HTML document.
	ErrNotHTML = errors.New("response is not HTML")

	// ErrInvalidProxyAddress is returned when the proxy address is not in
	// "host:port" format.
	ErrInvalidProxyAddress = errors.New("invalid proxy address: must be host:port")

	// ErrSeedNotAllowed is returned when the seed URL is not an absolute
	// http(s) URL.
	ErrSeedNotAllowed = errors.New("seed URL must be an absolute http or https URL")
)

// FetchError describes a failed fetch of a single URL.
type FetchError struct {
	// URL is the URL that was requested.
	URL string

	// StatusCode is the HTTP status, or 0 if no response arrived.
	StatusCode int

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}
