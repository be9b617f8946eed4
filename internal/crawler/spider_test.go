package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/net/html"
)

// scriptedFetcher serves in-memory pages and records every fetch.
type scriptedFetcher struct {
	mu      sync.Mutex
	pages   map[string]string
	block   map[string]bool
	calls   []string
	started chan string
}

func newScriptedFetcher(pages map[string]string) *scriptedFetcher {
	return &scriptedFetcher{
		pages:   pages,
		block:   make(map[string]bool),
		started: make(chan string, 64),
	}
}

func (f *scriptedFetcher) Fetch(ctx context.Context, u string) (*Document, error) {
	f.mu.Lock()
	f.calls = append(f.calls, u)
	body, ok := f.pages[u]
	blocked := f.block[u]
	f.mu.Unlock()

	select {
	case f.started <- u:
	default:
	}

	if blocked {
		<-ctx.Done()
		return nil, &FetchError{URL: u, Err: ctx.Err()}
	}
	if !ok {
		return nil, &FetchError{URL: u, StatusCode: http.StatusNotFound, Err: ErrUnexpectedStatus}
	}
	root, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, &FetchError{URL: u, Err: err}
	}
	return &Document{URL: u, FinalURL: u, StatusCode: http.StatusOK, Root: root}, nil
}

func (f *scriptedFetcher) fetchCount(u string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, c := range f.calls {
		if c == u {
			n++
		}
	}
	return n
}

func (f *scriptedFetcher) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// linkPage builds a page linking to the given hrefs.
func linkPage(title string, hrefs ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<html><head><title>%s</title></head><body><main>", title)
	for _, h := range hrefs {
		fmt.Fprintf(&b, `<a href="%s">link to %s</a>`, h, h)
	}
	b.WriteString("</main></body></html>")
	return b.String()
}

const origin = "https://example.com"

// TestSpiderCrawl tests the crawl loop.
func TestSpiderCrawl(t *testing.T) {
	t.Parallel()

	t.Run("crawls single page", func(t *testing.T) {
		t.Parallel()

		f := newScriptedFetcher(map[string]string{origin + "/": linkPage("Home")})
		result, err := NewSpider(f, WithDelay(0)).Crawl(context.Background(), origin)
		if err != nil {
			t.Fatalf("failed to crawl: %v", err)
		}

		if len(result.Pages) != 1 {
			t.Fatalf("expected 1 page, got %d", len(result.Pages))
		}
		if result.Pages[0].URL != origin+"/" {
			t.Errorf("expected canonical seed URL, got %q", result.Pages[0].URL)
		}
		if result.Domain != "example.com" {
			t.Errorf("expected domain example.com, got %q", result.Domain)
		}
		if result.Cancelled {
			t.Error("expected completed crawl")
		}
		if result.FinishedAt.IsZero() {
			t.Error("expected FinishedAt to be set")
		}
	})

	t.Run("summary log counts visited pages and failures", func(t *testing.T) {
		t.Parallel()

		f := newScriptedFetcher(map[string]string{
			origin + "/":   linkPage("Home", "/ok", "/missing"),
			origin + "/ok": linkPage("OK"),
		})
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

		if _, err := NewSpider(f, WithDelay(0), WithSpiderLogger(logger)).Crawl(context.Background(), origin); err != nil {
			t.Fatalf("failed to crawl: %v", err)
		}

		out := buf.String()
		for _, want := range []string{`msg="crawl finished"`, "pages=2", "visited=2", "failures=1"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected log to contain %q, got %q", want, out)
			}
		}
	})

	t.Run("enqueues at most ten new links per page in document order", func(t *testing.T) {
		t.Parallel()

		pages := map[string]string{}
		hrefs := make([]string, 0, 15)
		for i := 1; i <= 15; i++ {
			p := fmt.Sprintf("/p%d", i)
			hrefs = append(hrefs, p)
			pages[origin+p] = linkPage(p)
		}
		pages[origin+"/"] = linkPage("Home", hrefs...)

		f := newScriptedFetcher(pages)
		result, err := NewSpider(f, WithDelay(0), WithMaxPages(100)).Crawl(context.Background(), origin+"/")
		if err != nil {
			t.Fatalf("failed to crawl: %v", err)
		}

		if len(result.Pages) != 11 {
			t.Fatalf("expected 11 pages, got %d", len(result.Pages))
		}
		for i := 1; i <= 10; i++ {
			want := fmt.Sprintf("%s/p%d", origin, i)
			if result.Pages[i].URL != want {
				t.Errorf("page %d: expected %q, got %q", i, want, result.Pages[i].URL)
			}
		}
		for i := 11; i <= 15; i++ {
			if n := f.fetchCount(fmt.Sprintf("%s/p%d", origin, i)); n != 0 {
				t.Errorf("expected /p%d not to be fetched, got %d fetches", i, n)
			}
		}
	})

	t.Run("query and fragment variants are fetched once", func(t *testing.T) {
		t.Parallel()

		f := newScriptedFetcher(map[string]string{
			origin + "/":  linkPage("Home", "/a?x=1", "/a#frag", "/a", "/b"),
			origin + "/a": linkPage("A", "/a?x=2", "/"),
			origin + "/b": linkPage("B", "/a#other"),
		})
		result, err := NewSpider(f, WithDelay(0)).Crawl(context.Background(), origin+"/")
		if err != nil {
			t.Fatalf("failed to crawl: %v", err)
		}

		if n := f.fetchCount(origin + "/a"); n != 1 {
			t.Errorf("expected /a fetched once, got %d", n)
		}
		if len(result.Pages) != 3 {
			t.Errorf("expected 3 pages, got %d", len(result.Pages))
		}

		seen := make(map[string]bool)
		for _, p := range result.Pages {
			if seen[p.URL] {
				t.Errorf("duplicate page %q", p.URL)
			}
			seen[p.URL] = true
		}
	})

	t.Run("max pages one fetches exactly once", func(t *testing.T) {
		t.Parallel()

		f := newScriptedFetcher(map[string]string{
			origin + "/":  linkPage("Home", "/a", "/b"),
			origin + "/a": linkPage("A"),
			origin + "/b": linkPage("B"),
		})
		result, err := NewSpider(f, WithDelay(0), WithMaxPages(1)).Crawl(context.Background(), origin+"/")
		if err != nil {
			t.Fatalf("failed to crawl: %v", err)
		}

		if f.totalCalls() != 1 {
			t.Errorf("expected exactly 1 fetch, got %d", f.totalCalls())
		}
		if len(result.Pages) != 1 {
			t.Errorf("expected 1 page, got %d", len(result.Pages))
		}
	})

	t.Run("stays on the seed host", func(t *testing.T) {
		t.Parallel()

		f := newScriptedFetcher(map[string]string{
			origin + "/": linkPage("Home",
				"https://other.org/",
				"https://blog.example.com/",
				"http://example.com:8080/",
				"/local"),
			origin + "/local": linkPage("Local"),
		})
		result, err := NewSpider(f, WithDelay(0)).Crawl(context.Background(), origin+"/")
		if err != nil {
			t.Fatalf("failed to crawl: %v", err)
		}

		if f.totalCalls() != 2 {
			t.Errorf("expected 2 fetches, got %d", f.totalCalls())
		}
		for _, p := range result.Pages {
			if !strings.HasPrefix(p.URL, origin+"/") {
				t.Errorf("crawled out-of-scope page %q", p.URL)
			}
		}
	})

	t.Run("failed URLs are recorded and never retried", func(t *testing.T) {
		t.Parallel()

		f := newScriptedFetcher(map[string]string{
			origin + "/":  linkPage("Home", "/missing", "/a"),
			origin + "/a": linkPage("A", "/missing"),
		})
		result, err := NewSpider(f, WithDelay(0)).Crawl(context.Background(), origin+"/")
		if err != nil {
			t.Fatalf("failed to crawl: %v", err)
		}

		if n := f.fetchCount(origin + "/missing"); n != 1 {
			t.Errorf("expected /missing fetched once, got %d", n)
		}
		if len(result.Pages) != 2 {
			t.Errorf("expected 2 pages, got %d", len(result.Pages))
		}
		if len(result.Failures) != 1 {
			t.Fatalf("expected 1 failure, got %d", len(result.Failures))
		}
		if result.Failures[0].StatusCode != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", result.Failures[0].StatusCode)
		}
	})

	t.Run("seed failure gives empty result", func(t *testing.T) {
		t.Parallel()

		f := newScriptedFetcher(map[string]string{})
		result, err := NewSpider(f, WithDelay(0)).Crawl(context.Background(), origin+"/")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(result.Pages) != 0 || len(result.Failures) != 1 {
			t.Errorf("expected 0 pages and 1 failure, got %d and %d", len(result.Pages), len(result.Failures))
		}
	})

	t.Run("ignore patterns", func(t *testing.T) {
		t.Parallel()

		f := newScriptedFetcher(map[string]string{
			origin + "/":            linkPage("Home", "/admin/panel", "/docs/a.pdf", "/blog"),
			origin + "/blog":        linkPage("Blog"),
			origin + "/admin/panel": linkPage("Admin"),
		})
		result, err := NewSpider(f, WithDelay(0), WithIgnorePatterns([]string{"/admin/*", "*.pdf"})).
			Crawl(context.Background(), origin+"/")
		if err != nil {
			t.Fatalf("failed to crawl: %v", err)
		}

		if len(result.Pages) != 2 {
			t.Errorf("expected 2 pages, got %d", len(result.Pages))
		}
		if f.fetchCount(origin+"/admin/panel") != 0 {
			t.Error("expected /admin/panel to be ignored")
		}
	})

	t.Run("chrome links are not followed", func(t *testing.T) {
		t.Parallel()

		f := newScriptedFetcher(map[string]string{
			origin + "/": `<html><body><nav><a href="/nav">Nav</a></nav>
				<footer><a href="/footer">Footer</a></footer>
				<main><a href="/content">Content</a></main></body></html>`,
			origin + "/content": linkPage("Content"),
		})
		if _, err := NewSpider(f, WithDelay(0)).Crawl(context.Background(), origin+"/"); err != nil {
			t.Fatalf("failed to crawl: %v", err)
		}

		if f.totalCalls() != 2 {
			t.Errorf("expected 2 fetches, got %d", f.totalCalls())
		}
	})

	t.Run("progress callback", func(t *testing.T) {
		t.Parallel()

		f := newScriptedFetcher(map[string]string{
			origin + "/":  linkPage("Home", "/a"),
			origin + "/a": linkPage("A"),
		})
		var counts []int
		_, err := NewSpider(f, WithDelay(0), WithProgress(func(pages int, _ string) {
			counts = append(counts, pages)
		})).Crawl(context.Background(), origin+"/")
		if err != nil {
			t.Fatalf("failed to crawl: %v", err)
		}

		if len(counts) != 2 || counts[0] != 1 || counts[1] != 2 {
			t.Errorf("expected progress [1 2], got %v", counts)
		}
	})

	t.Run("invalid seed", func(t *testing.T) {
		t.Parallel()

		for _, seed := range []string{"example.com/path", "ftp://example.com/", "http://[::1"} {
			_, err := NewSpider(newScriptedFetcher(nil)).Crawl(context.Background(), seed)
			if !errors.Is(err, ErrSeedNotAllowed) {
				t.Errorf("expected ErrSeedNotAllowed for %q, got %v", seed, err)
			}
		}
	})
}

// TestSpiderCancellation tests that cancelling keeps collected pages.
func TestSpiderCancellation(t *testing.T) {
	t.Parallel()

	f := newScriptedFetcher(map[string]string{
		origin + "/":    linkPage("Home", "/slow"),
		origin + "/slow": linkPage("Slow"),
	})
	f.block[origin+"/slow"] = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		for u := range f.started {
			if u == origin+"/slow" {
				cancel()
				return
			}
		}
	}()

	done := make(chan struct{})
	var (
		resultPages int
		cancelled   bool
		failures    int
		crawlErr    error
	)
	go func() {
		defer close(done)
		result, err := NewSpider(f, WithDelay(0)).Crawl(ctx, origin+"/")
		crawlErr = err
		if result != nil {
			resultPages = len(result.Pages)
			cancelled = result.Cancelled
			failures = len(result.Failures)
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("crawl did not stop after cancellation")
	}

	if crawlErr != nil {
		t.Fatalf("expected no error on cancellation, got %v", crawlErr)
	}
	if !cancelled {
		t.Error("expected Cancelled to be set")
	}
	if resultPages != 1 {
		t.Errorf("expected the seed page to be kept, got %d pages", resultPages)
	}
	if failures != 0 {
		t.Errorf("expected cancelled fetch not to be a failure, got %d", failures)
	}
}

// TestSpiderWorkers tests the concurrent crawl invariants.
func TestSpiderWorkers(t *testing.T) {
	t.Parallel()

	// A small site where every page links to every other page.
	const size = 30
	pages := make(map[string]string, size)
	hrefs := make([]string, 0, size)
	for i := range size {
		hrefs = append(hrefs, fmt.Sprintf("/n%d", i))
	}
	pages[origin+"/"] = linkPage("Home", hrefs...)
	for i := range size {
		pages[fmt.Sprintf("%s/n%d", origin, i)] = linkPage(fmt.Sprintf("N%d", i), hrefs...)
	}

	t.Run("no duplicates and no overshoot", func(t *testing.T) {
		t.Parallel()

		f := newScriptedFetcher(pages)
		result, err := NewSpider(f, WithDelay(0), WithWorkers(4), WithMaxPages(7)).
			Crawl(context.Background(), origin+"/")
		if err != nil {
			t.Fatalf("failed to crawl: %v", err)
		}

		if len(result.Pages) != 7 {
			t.Errorf("expected 7 pages, got %d", len(result.Pages))
		}
		if f.totalCalls() != 7 {
			t.Errorf("expected 7 fetches, got %d", f.totalCalls())
		}
		seen := make(map[string]bool)
		for _, p := range result.Pages {
			if seen[p.URL] {
				t.Errorf("duplicate page %q", p.URL)
			}
			seen[p.URL] = true
		}
	})

	t.Run("crawls whole site", func(t *testing.T) {
		t.Parallel()

		f := newScriptedFetcher(pages)
		result, err := NewSpider(f, WithDelay(0), WithWorkers(4), WithMaxPages(100)).
			Crawl(context.Background(), origin+"/")
		if err != nil {
			t.Fatalf("failed to crawl: %v", err)
		}

		if len(result.Pages) != size+1 {
			t.Errorf("expected %d pages, got %d", size+1, len(result.Pages))
		}
	})

	t.Run("rate limit", func(t *testing.T) {
		t.Parallel()

		small := map[string]string{
			origin + "/":  linkPage("Home", "/a", "/b"),
			origin + "/a": linkPage("A"),
			origin + "/b": linkPage("B"),
		}
		f := newScriptedFetcher(small)
		start := time.Now()
		result, err := NewSpider(f, WithDelay(0), WithWorkers(3), WithRateLimit(20)).
			Crawl(context.Background(), origin+"/")
		if err != nil {
			t.Fatalf("failed to crawl: %v", err)
		}

		if len(result.Pages) != 3 {
			t.Errorf("expected 3 pages, got %d", len(result.Pages))
		}
		// Three requests at 20/s with a burst of one take at least 100ms.
		if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
			t.Errorf("expected rate limiting, crawl took %v", elapsed)
		}
	})
}

// TestSpiderDelay tests the politeness delay.
func TestSpiderDelay(t *testing.T) {
	t.Parallel()

	f := newScriptedFetcher(map[string]string{
		origin + "/":  linkPage("Home", "/a"),
		origin + "/a": linkPage("A"),
	})

	start := time.Now()
	result, err := NewSpider(f, WithDelay(100*time.Millisecond)).Crawl(context.Background(), origin+"/")
	if err != nil {
		t.Fatalf("failed to crawl: %v", err)
	}

	if len(result.Pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(result.Pages))
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("expected at least one delay between requests, crawl took %v", elapsed)
	}
}

// TestSpiderOverHTTP tests a crawl against a real HTTP server.
func TestSpiderOverHTTP(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/{$}", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>Home</title></head><body>
			<a href="/about">About</a><a href="/broken">Broken</a><a href="/file.json">Data</a>
		</body></html>`)) //nolint:errcheck
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>About</title></head><body>
			<p>We build small, polite crawlers for single websites.</p></body></html>`)) //nolint:errcheck
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/file.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`)) //nolint:errcheck
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	spider := NewSpider(NewHTTPFetcher(server.Client()), WithDelay(0))
	result, err := spider.Crawl(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("failed to crawl: %v", err)
	}

	if len(result.Pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(result.Pages))
	}
	if result.Pages[1].Title != "About" {
		t.Errorf("expected second page About, got %q", result.Pages[1].Title)
	}
	if len(result.Pages[1].Paragraphs) != 1 {
		t.Errorf("expected 1 paragraph on About, got %d", len(result.Pages[1].Paragraphs))
	}
	if len(result.Failures) != 2 {
		t.Errorf("expected 2 failures, got %d", len(result.Failures))
	}
}
