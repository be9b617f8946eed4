// Package textutil holds the pure text functions shared by the extractor,
// the analyzer and the search: whitespace normalization, tokenization and
// the stop-word list.
//
// Design decision: These functions live in their own package with no
// dependency on the crawler because:
//  1. The analyzer must give the same answer for a page read back from an
//     export as for a freshly crawled one
//  2. They are trivially testable without HTML or HTTP
//  3. Keeping them free of state makes them safe to call from any worker
package textutil
