// Package main provides the entry point for the sitescraper CLI.
//
// sitescraper crawls a single website, extracts the readable content of
// every page, computes corpus statistics and exports the result as JSON,
// Markdown, HTML or plain text. Every crawl is kept in a local history
// database so that later crawls of the same site can be compared.
//
// Usage:
//
//	sitescraper crawl <url>
//	sitescraper history [domain]
//	sitescraper search <query> --input scraped_data.json
//
// See --help for all available options.
package main

// main is the entry point for sitescraper.
func main() {
	Execute()
}
