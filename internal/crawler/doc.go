// Package crawler provides the crawl core: a breadth-first, single-domain
// website crawler that turns HTML pages into model.Page records.
//
// # Architecture
//
// The package is designed around the Spider type, which coordinates the
// crawl. Per crawl it owns a Frontier (queue plus attempted and visited
// sets), resolves discovered links with a LinkResolver, and hands fetched
// documents to an Extractor.
//
// Design decision: We implement our own crawler rather than using a
// third-party framework because:
//  1. The crawl rules are small and precise (exact host, canonical URLs,
//     per-page fan-out, hard page ceiling)
//  2. We need tight control over request timing to stay polite
//  3. Tests must be able to count every fetch
//
// # Components
//
//   - Spider: the crawl loop and worker pool
//   - Frontier: FIFO queue with deduplication
//   - LinkResolver: href resolution, canonicalization and scoping
//   - Extractor: goquery-based page extraction
//   - HTTPFetcher: HTTP GET with timeout, charset decoding and HTML parsing
//
// # Politeness
//
//   - A fixed delay after every request of a worker (1s by default)
//   - One worker by default; at most a handful when enabled
//   - An optional global requests-per-second ceiling
//   - A hard page limit and a per-page link fan-out limit
//
// # Usage
//
//	client, err := crawler.NewHTTPClient(15*time.Second, "")
//	fetcher := crawler.NewHTTPFetcher(client)
//	spider := crawler.NewSpider(fetcher, crawler.WithMaxPages(20))
//	result, err := spider.Crawl(ctx, "https://example.com/")
//
// # Error Handling
//
// Fetch and parse failures never stop a crawl. They are logged, recorded
// in CrawlResult.Failures and the URL is not retried. Cancelling the
// context returns the pages collected so far.
package crawler
