package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and NormalizeSeedURL().
//
// Design decision: We use package-level sentinel errors so callers can use
// errors.Is() while the CLI still prints a readable message. Every one of
// them is a configuration error: it is reported before any request is made.
var (
	// ErrNoSeedURL is returned when no seed URL is given.
	ErrNoSeedURL = errors.New("no seed URL specified: provide the URL of the site to crawl")

	// ErrInvalidSeedURL is returned when the seed URL cannot be parsed or is
	// not an http(s) URL with a host.
	ErrInvalidSeedURL = errors.New("invalid seed URL")

	// ErrInvalidMaxPages is returned when the page limit is not positive.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be positive")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidCrawlDelay is returned when the crawl delay is negative.
	// Use 0 for no delay between requests.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidLinkFanout is returned when the per-page link fan-out is not positive.
	ErrInvalidLinkFanout = errors.New("invalid link fan-out: must be positive")

	// ErrInvalidWorkers is returned when the worker count is out of range.
	ErrInvalidWorkers = errors.New("invalid worker count: must be between 1 and 8")

	// ErrInvalidRateLimit is returned when the global rate limit is negative.
	ErrInvalidRateLimit = errors.New("invalid rate limit: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrUnknownReportFormat is returned for a --format value we cannot render.
	ErrUnknownReportFormat = errors.New("unknown report format: use simple, json, markdown, html or text")

	// ErrConflictingReportOutputs is returned when both --output and --out-dir are given.
	ErrConflictingReportOutputs = errors.New("conflicting report outputs: --output and --out-dir cannot be used together")
)
