// Package search finds pages of a crawl that mention a query.
//
// Matching is a case-insensitive substring test on the page title and full
// text, which is what a reader expects from a search box over a small
// corpus. There is no index: a crawl holds at most a few hundred pages.
package search
