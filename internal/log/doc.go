// Package log provides secure logging built on top of the standard slog
// package.
//
// The SecureHandler masks sensitive information before it is written:
//   - cookies and authentication headers taken from the site file
//   - bearer/basic credentials and JWTs, whatever the attribute key
//   - passwords embedded in URLs and session or token query parameters
//
// Crawled URLs are logged at debug level for every page, so the URL
// sanitizer runs on every string attribute that looks like an http(s) URL.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("fetched page", "url", "https://example.com/?token=abc")
//	// url=https://example.com/?token=%2A%2A%2AREDACTED%2A%2A%2A
package log
