// Package analyzer computes corpus statistics over scraped pages.
//
// Analyze is a pure function of the page list: it never looks at the
// network, the clock or any global state, and running it twice on the same
// pages gives the same result. The statistics can therefore be recomputed
// from a JSON export or a stored crawl at any time.
package analyzer
