// Package pipeline runs the stages of a crawl session in sequence.
//
// A session goes through: crawl, analyze, export (one step per report
// destination) and, optionally, save to the history database. Each stage
// is a Step that receives the shared model.CrawlResult and fills in its
// part of it.
//
// Design decision: We use a pipeline pattern instead of direct function calls
// because:
// 1. It allows easy addition/removal of steps without modifying core logic
// 2. It provides consistent error handling and logging across steps
// 3. It supports cancellation via context for long-running crawls
//
// An interrupted crawl is not an error: DefaultPipeline finishes the
// remaining steps on a detached context so the partial result is still
// exported and saved.
package pipeline
