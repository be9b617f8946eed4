// Package model defines the data structures shared by the crawler, the
// analyzer, the report writers and the history database.
//
// This package contains the following main types:
//   - Page: one scraped document with its extracted content
//   - CorpusStats: aggregate statistics over a list of pages
//   - CrawlResult: the pages, failures and stats of one crawl
//
// Design decision: We keep the models in their own package so that the
// crawler, analyzer, report and database packages can all depend on them
// without import cycles. All types marshal to JSON with snake_case names,
// which is the export format read back by report.ReadJSON.
package model
