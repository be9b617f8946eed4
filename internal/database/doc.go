// Package database provides SQLite-based storage for the crawl history.
//
// This package implements the CrawlDB, which stores:
//   - One row per crawl run with its stats and failures
//   - The pages of every run with a content fingerprint
//
// Design decision: We use SQLite (via modernc.org/sqlite) instead of other
// databases because:
// 1. No external dependencies - the database is a single file
// 2. CGO-free implementation allows easy cross-compilation
// 3. Sufficient performance for our use case
// 4. WAL mode provides good concurrent read performance
//
// Pages are stored as JSON next to their URL and fingerprint, so a stored
// run can be loaded back as a model.CrawlResult and fed to the report
// writers, while run comparisons only need the fingerprint column.
package database
