// Package report renders crawl results.
//
// This package contains writers for different output formats:
//   - SimpleWriter: human-readable summary for terminal display
//   - JSONWriter: structured export that ReadJSON can load back
//   - MarkdownWriter: a document with a table of contents and one section per page
//   - HTMLWriter: a self-contained viewer with statistics and an inline search
//   - TextWriter: the plain text of every page
//
// Design decision: We separate report writing from the data structures
// (which are in the model package) to follow the single responsibility
// principle. This allows adding new output formats without modifying
// the crawler or the models.
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed with MultiWriter. Renderers never modify
// the result they are given; when the analyzer has not run yet they
// compute the stats on the fly.
package report
