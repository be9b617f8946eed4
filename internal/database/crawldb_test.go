package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/sitescraper/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *CrawlDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

// newTestResult creates a crawl result for domain started at start.
func newTestResult(domain string, start time.Time, pages ...*model.Page) *model.CrawlResult {
	return &model.CrawlResult{
		SeedURL:    "https://" + domain + "/",
		Domain:     domain,
		StartedAt:  start,
		FinishedAt: start.Add(5 * time.Second),
		Pages:      pages,
	}
}

// newTestPage creates a page with the given path and text.
func newTestPage(domain, path, text string) *model.Page {
	return &model.Page{
		URL:        "https://" + domain + path,
		Title:      "Page " + path,
		ScrapedAt:  time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
		Paragraphs: []string{text},
		Headings:   []model.Heading{{Level: 1, Text: "Heading " + path}},
		FullText:   text,
	}
}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		dbPath := filepath.Join(dbDir, FileName)
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if db.Path() != dbPath {
			t.Errorf("expected path %s, got %s", dbPath, db.Path())
		}
	})

	t.Run("CreateIfNotExists=false fails for missing database", func(t *testing.T) {
		t.Parallel()

		opts := Options{CreateIfNotExists: false, EnableWAL: true}
		if _, err := Open(filepath.Join(t.TempDir(), "missing"), opts); err == nil {
			t.Error("expected error for missing database")
		}
	})

	t.Run("CreateIfNotExists=false opens existing database", func(t *testing.T) {
		t.Parallel()

		tmpDir := t.TempDir()
		db, err := Open(tmpDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		_ = db.Close()

		db, err = Open(tmpDir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to open existing database: %v", err)
		}
		_ = db.Close()
	})

	t.Run("without WAL", func(t *testing.T) {
		t.Parallel()

		db, err := Open(t.TempDir(), Options{CreateIfNotExists: true})
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		_ = db.Close()
	})
}

// TestSaveAndGetRun tests storing and loading a run.
func TestSaveAndGetRun(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	start := time.Date(2026, 2, 3, 4, 5, 6, 700, time.UTC)
	result := newTestResult("example.com", start,
		newTestPage("example.com", "/", "gardens need water and patience"),
		newTestPage("example.com", "/tools", "spades and rakes for gardens"),
	)
	result.Failures = []model.FetchFailure{{URL: "https://example.com/broken", StatusCode: 500, Reason: "boom", At: start}}
	result.Cancelled = true

	id, err := db.SaveRun(ctx, result)
	if err != nil {
		t.Fatalf("failed to save run: %v", err)
	}
	if id <= 0 {
		t.Fatalf("expected positive run id, got %d", id)
	}

	loaded, err := db.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}

	if loaded.Domain != "example.com" || loaded.SeedURL != "https://example.com/" {
		t.Errorf("unexpected domain/seed: %s %s", loaded.Domain, loaded.SeedURL)
	}
	if !loaded.StartedAt.Equal(start) {
		t.Errorf("expected start %v, got %v", start, loaded.StartedAt)
	}
	if !loaded.Cancelled {
		t.Error("expected cancelled flag to survive")
	}
	if len(loaded.Pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(loaded.Pages))
	}
	for i, p := range loaded.Pages {
		o := result.Pages[i]
		if p.URL != o.URL || p.Title != o.Title || p.FullText != o.FullText {
			t.Errorf("page %d differs after load", i)
		}
		if len(p.Headings) != 1 || p.Headings[0].Level != 1 {
			t.Errorf("page %d headings differ after load", i)
		}
	}
	if len(loaded.Failures) != 1 || loaded.Failures[0].StatusCode != 500 {
		t.Errorf("unexpected failures: %+v", loaded.Failures)
	}
	if loaded.Stats == nil || loaded.Stats.TotalPages != 2 {
		t.Error("expected stats computed on save")
	}
}

// TestGetRunNotFound tests loading a missing run.
func TestGetRunNotFound(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)

	if _, err := db.GetRun(context.Background(), 42); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

// TestListDomainsAndRuns tests history listing.
func TestListDomainsAndRuns(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, domain := range []string{"b.example", "a.example", "b.example"} {
		result := newTestResult(domain, base.Add(time.Duration(i)*time.Hour),
			newTestPage(domain, "/", "some text about things"))
		if _, err := db.SaveRun(ctx, result); err != nil {
			t.Fatalf("failed to save run: %v", err)
		}
	}

	domains, err := db.ListDomains(ctx)
	if err != nil {
		t.Fatalf("failed to list domains: %v", err)
	}
	if len(domains) != 2 || domains[0] != "a.example" || domains[1] != "b.example" {
		t.Errorf("unexpected domains: %v", domains)
	}

	runs, err := db.ListRuns(ctx, "b.example")
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if !runs[0].StartedAt.After(runs[1].StartedAt) {
		t.Error("expected newest run first")
	}
	if runs[0].PageCount != 1 || runs[0].Stats.TotalPages != 1 {
		t.Errorf("unexpected metadata: %+v", runs[0])
	}

	none, err := db.ListRuns(ctx, "unknown.example")
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no runs, got %d", len(none))
	}
}

// TestLatestRuns tests loading the most recent runs.
func TestLatestRuns(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range 3 {
		result := newTestResult("example.com", base.Add(time.Duration(i)*time.Hour),
			newTestPage("example.com", "/", "version text"))
		if _, err := db.SaveRun(ctx, result); err != nil {
			t.Fatalf("failed to save run: %v", err)
		}
	}

	tests := []struct {
		name string
		n    int
		want int
	}{
		{name: "two latest", n: 2, want: 2},
		{name: "more than stored", n: 10, want: 3},
		{name: "zero", n: 0, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			runs, err := db.LatestRuns(ctx, "example.com", tt.n)
			if err != nil {
				t.Fatalf("failed to load runs: %v", err)
			}
			if len(runs) != tt.want {
				t.Fatalf("expected %d runs, got %d", tt.want, len(runs))
			}
			if len(runs) >= 2 && !runs[0].StartedAt.After(runs[1].StartedAt) {
				t.Error("expected newest run first")
			}
		})
	}
}

// TestPageFingerprints tests fingerprint lookup for comparisons.
func TestPageFingerprints(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	page := newTestPage("example.com", "/", "fingerprinted text")
	id, err := db.SaveRun(ctx, newTestResult("example.com", time.Now(), page))
	if err != nil {
		t.Fatalf("failed to save run: %v", err)
	}

	fps, err := db.PageFingerprints(ctx, id)
	if err != nil {
		t.Fatalf("failed to get fingerprints: %v", err)
	}
	if fps[page.URL] != page.Fingerprint() {
		t.Errorf("expected fingerprint %s, got %s", page.Fingerprint(), fps[page.URL])
	}
}

// TestDeleteRun tests run deletion.
func TestDeleteRun(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	id, err := db.SaveRun(ctx, newTestResult("example.com", time.Now(),
		newTestPage("example.com", "/", "to be deleted")))
	if err != nil {
		t.Fatalf("failed to save run: %v", err)
	}

	if err := db.DeleteRun(ctx, id); err != nil {
		t.Fatalf("failed to delete run: %v", err)
	}
	if _, err := db.GetRun(ctx, id); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound after delete, got %v", err)
	}
	fps, err := db.PageFingerprints(ctx, id)
	if err != nil {
		t.Fatalf("failed to get fingerprints: %v", err)
	}
	if len(fps) != 0 {
		t.Error("expected pages to be deleted")
	}
	if err := db.DeleteRun(ctx, id); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound for second delete, got %v", err)
	}
}

// TestSaveRunEmpty tests storing a run without pages.
func TestSaveRunEmpty(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	id, err := db.SaveRun(ctx, newTestResult("example.com", time.Now()))
	if err != nil {
		t.Fatalf("failed to save run: %v", err)
	}
	loaded, err := db.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if len(loaded.Pages) != 0 || loaded.Failures != nil {
		t.Errorf("expected empty run, got %d pages, %v failures", len(loaded.Pages), loaded.Failures)
	}
}

// TestParseTimestamp tests timestamp parsing.
func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		zero  bool
	}{
		{name: "rfc3339 nano", input: "2026-01-02T03:04:05.123456789Z"},
		{name: "rfc3339", input: "2026-01-02T03:04:05+09:00"},
		{name: "sqlite default", input: "2026-01-02 03:04:05"},
		{name: "invalid", input: "yesterday", zero: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := parseTimestamp(tt.input)
			if got.IsZero() != tt.zero {
				t.Errorf("parseTimestamp(%q) = %v", tt.input, got)
			}
		})
	}
}
