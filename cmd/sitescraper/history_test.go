package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/sitescraper/internal/analyzer"
	"github.com/nao1215/sitescraper/internal/database"
	"github.com/nao1215/sitescraper/internal/model"
)

// newHistoryPage creates a page of example.com with the given path and text.
func newHistoryPage(path, text string) *model.Page {
	return &model.Page{
		URL:        "https://example.com" + path,
		Title:      "Page " + path,
		ScrapedAt:  time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Paragraphs: []string{text},
		FullText:   text,
	}
}

// seedHistory stores two runs of example.com in a new database and
// returns its directory and the run IDs (older first).
//
// Between the runs /old disappears, /new appears and / changes its text.
func seedHistory(t *testing.T) (string, int64, int64) {
	t.Helper()

	dbDir := t.TempDir()
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	runs := []*model.CrawlResult{
		{
			SeedURL:    "https://example.com/",
			Domain:     "example.com",
			StartedAt:  start,
			FinishedAt: start.Add(time.Minute),
			Pages: []*model.Page{
				newHistoryPage("/", "welcome to the first version of the site"),
				newHistoryPage("/about", "about the team behind the site"),
				newHistoryPage("/old", "this page will be removed soon"),
			},
		},
		{
			SeedURL:    "https://example.com/",
			Domain:     "example.com",
			StartedAt:  start.Add(24 * time.Hour),
			FinishedAt: start.Add(24*time.Hour + time.Minute),
			Pages: []*model.Page{
				newHistoryPage("/", "welcome to the second version of the site with pricing"),
				newHistoryPage("/about", "about the team behind the site"),
				newHistoryPage("/new", "a brand new page about pricing plans"),
			},
			Failures: []model.FetchFailure{{URL: "https://example.com/broken", StatusCode: 500, Reason: "unexpected status"}},
		},
	}

	ids := make([]int64, 0, len(runs))
	for _, run := range runs {
		stats := analyzer.Analyze(run.Pages)
		run.Stats = &stats
		id, err := db.SaveRun(t.Context(), run)
		if err != nil {
			t.Fatalf("failed to save run: %v", err)
		}
		ids = append(ids, id)
	}

	return dbDir, ids[0], ids[1]
}

// itoa formats a run ID as a command line argument.
func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

// TestNewHistoryCmd tests the history command creation.
func TestNewHistoryCmd(t *testing.T) {
	t.Parallel()

	cmd := NewHistoryCmd()

	if cmd.Use != "history [domain]" {
		t.Errorf("expected use 'history [domain]', got %q", cmd.Use)
	}

	flags := []struct {
		name      string
		shorthand string
	}{
		{name: "compare", shorthand: "C"},
		{name: "with-run-id", shorthand: "i"},
		{name: "show"},
		{name: "format", shorthand: "f"},
		{name: "delete"},
		{name: "json", shorthand: "j"},
		{name: "markdown", shorthand: "m"},
		{name: "db-dir"},
	}
	for _, tt := range flags {
		t.Run("has "+tt.name+" flag", func(t *testing.T) {
			t.Parallel()

			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Fatalf("expected %s flag", tt.name)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("expected shorthand %q, got %q", tt.shorthand, flag.Shorthand)
			}
		})
	}
}

// TestNormalizeDomain tests domain argument normalization.
func TestNormalizeDomain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		arg  string
		want string
	}{
		{name: "bare host", arg: "example.com", want: "example.com"},
		{name: "mixed case", arg: "Example.COM", want: "example.com"},
		{name: "trailing slash", arg: "example.com/", want: "example.com"},
		{name: "full URL", arg: "https://Example.com/docs/", want: "example.com"},
		{name: "host with port", arg: "http://localhost:8080/", want: "localhost:8080"},
		{name: "surrounding spaces", arg: "  example.com ", want: "example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := normalizeDomain(tt.arg); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

// TestCompareRuns tests page and stat comparison between two runs.
func TestCompareRuns(t *testing.T) {
	t.Parallel()

	previous := database.RunMetadata{
		ID:        1,
		Domain:    "example.com",
		StartedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		PageCount: 3,
		Stats:     model.CorpusStats{TotalWords: 100, TotalLinks: 10, TotalImages: 2, ReadingTimeMinutes: 1},
	}
	current := database.RunMetadata{
		ID:           2,
		Domain:       "example.com",
		StartedAt:    time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		PageCount:    3,
		FailureCount: 1,
		Stats:        model.CorpusStats{TotalWords: 80, TotalLinks: 12, TotalImages: 2, ReadingTimeMinutes: 1},
	}
	previousPages := map[string]string{
		"https://example.com/":      "aaa",
		"https://example.com/about": "bbb",
		"https://example.com/old":   "ccc",
	}
	currentPages := map[string]string{
		"https://example.com/":      "zzz",
		"https://example.com/about": "bbb",
		"https://example.com/new":   "ddd",
	}

	result := compareRuns(previous, current, previousPages, currentPages)

	if result.Domain != "example.com" {
		t.Errorf("expected domain example.com, got %q", result.Domain)
	}
	if !slices.Equal(result.AddedPages, []string{"https://example.com/new"}) {
		t.Errorf("unexpected added pages: %v", result.AddedPages)
	}
	if !slices.Equal(result.RemovedPages, []string{"https://example.com/old"}) {
		t.Errorf("unexpected removed pages: %v", result.RemovedPages)
	}
	if !slices.Equal(result.ChangedPages, []string{"https://example.com/"}) {
		t.Errorf("unexpected changed pages: %v", result.ChangedPages)
	}
	if result.UnchangedCount != 1 {
		t.Errorf("expected 1 unchanged page, got %d", result.UnchangedCount)
	}
	if !result.HasChanges() {
		t.Error("expected HasChanges to be true")
	}

	want := StatsChange{PageDelta: 0, FailureDelta: 1, WordDelta: -20, LinkDelta: 2, ImageDelta: 0, ReadingTimeDelta: 0}
	if result.StatsChange != want {
		t.Errorf("expected %+v, got %+v", want, result.StatsChange)
	}

	t.Run("identical runs have no changes", func(t *testing.T) {
		t.Parallel()

		same := compareRuns(previous, previous, previousPages, previousPages)
		if same.HasChanges() {
			t.Error("expected no changes")
		}
		if same.UnchangedCount != 3 {
			t.Errorf("expected 3 unchanged pages, got %d", same.UnchangedCount)
		}
	})
}

// TestFormatDelta tests signed delta formatting.
func TestFormatDelta(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		delta int
		want  string
	}{
		{name: "positive", delta: 5, want: "+5"},
		{name: "negative", delta: -3, want: "-3"},
		{name: "zero", delta: 0, want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := formatDelta(tt.delta); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

// TestOutputComparison tests the three comparison renderings.
func TestOutputComparison(t *testing.T) {
	t.Parallel()

	result := &ComparisonResult{
		Domain:         "example.com",
		PreviousRun:    RunSummary{ID: 1, StartedAt: "2026-03-01 09:00:00", PageCount: 3, TotalWords: 100},
		CurrentRun:     RunSummary{ID: 2, StartedAt: "2026-03-02 09:00:00", PageCount: 4, TotalWords: 120},
		AddedPages:     []string{"https://example.com/new"},
		RemovedPages:   []string{"https://example.com/old"},
		ChangedPages:   []string{"https://example.com/"},
		UnchangedCount: 2,
		StatsChange:    StatsChange{PageDelta: 1, WordDelta: 20},
	}

	t.Run("text", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if err := outputComparisonText(&buf, result); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		for _, want := range []string{
			"Crawl Comparison: example.com",
			"Previous run: #1",
			"[+] https://example.com/new",
			"[-] https://example.com/old",
			"[~] https://example.com/",
			"+20",
			"Unchanged: 2 pages",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected text output to contain %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("markdown", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if err := outputComparisonMarkdown(&buf, result); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		for _, want := range []string{
			"# Crawl Comparison: example.com",
			"## Added Pages (1)",
			"## Removed Pages (1)",
			"## Changed Pages (1)",
			"| Metric",
			"*2 pages unchanged*",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected Markdown output to contain %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("json", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if err := outputComparisonJSON(&buf, result); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var decoded ComparisonResult
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("failed to decode JSON: %v", err)
		}
		if decoded.StatsChange.WordDelta != 20 || len(decoded.AddedPages) != 1 {
			t.Errorf("unexpected decoded result: %+v", decoded)
		}
	})

	t.Run("text without page changes", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if err := outputComparisonText(&buf, &ComparisonResult{Domain: "example.com", UnchangedCount: 3}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "No page changes.") {
			t.Errorf("expected no-change message, got:\n%s", buf.String())
		}
	})
}

// TestRunHistoryCmd tests the history command against a seeded database.
func TestRunHistoryCmd(t *testing.T) {
	t.Parallel()

	t.Run("lists domains", func(t *testing.T) {
		t.Parallel()

		dbDir, _, _ := seedHistory(t)
		stdout, _, err := executeCommand(t, "history", "--db-dir", dbDir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "Crawled domains (1)") || !strings.Contains(stdout, "example.com") {
			t.Errorf("unexpected output:\n%s", stdout)
		}
	})

	t.Run("empty database", func(t *testing.T) {
		t.Parallel()

		stdout, _, err := executeCommand(t, "history", "--db-dir", t.TempDir())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "No crawled domains found") {
			t.Errorf("unexpected output:\n%s", stdout)
		}
	})

	t.Run("lists runs newest first", func(t *testing.T) {
		t.Parallel()

		dbDir, olderID, newerID := seedHistory(t)
		stdout, _, err := executeCommand(t, "history", "--db-dir", dbDir, "https://Example.com/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "Crawl history for example.com (2 runs)") {
			t.Errorf("unexpected output:\n%s", stdout)
		}

		newer := strings.Index(stdout, "\n  "+itoa(newerID)+" ")
		older := strings.Index(stdout, "\n  "+itoa(olderID)+" ")
		if newer < 0 || older < 0 || newer > older {
			t.Errorf("expected run %d before run %d, got:\n%s", newerID, olderID, stdout)
		}
	})

	t.Run("compares the latest two runs as JSON", func(t *testing.T) {
		t.Parallel()

		dbDir, olderID, newerID := seedHistory(t)
		stdout, _, err := executeCommand(t, "history", "--db-dir", dbDir, "--compare", "--json", "example.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var result ComparisonResult
		if err := json.Unmarshal([]byte(stdout), &result); err != nil {
			t.Fatalf("failed to decode JSON: %v\n%s", err, stdout)
		}
		if result.PreviousRun.ID != olderID || result.CurrentRun.ID != newerID {
			t.Errorf("expected runs %d → %d, got %d → %d", olderID, newerID, result.PreviousRun.ID, result.CurrentRun.ID)
		}
		if !slices.Equal(result.AddedPages, []string{"https://example.com/new"}) {
			t.Errorf("unexpected added pages: %v", result.AddedPages)
		}
		if !slices.Equal(result.RemovedPages, []string{"https://example.com/old"}) {
			t.Errorf("unexpected removed pages: %v", result.RemovedPages)
		}
		if !slices.Equal(result.ChangedPages, []string{"https://example.com/"}) {
			t.Errorf("unexpected changed pages: %v", result.ChangedPages)
		}
		if result.UnchangedCount != 1 {
			t.Errorf("expected 1 unchanged page, got %d", result.UnchangedCount)
		}
		if result.StatsChange.FailureDelta != 1 {
			t.Errorf("expected failure delta 1, got %d", result.StatsChange.FailureDelta)
		}
	})

	t.Run("with-run-id implies compare", func(t *testing.T) {
		t.Parallel()

		dbDir, olderID, _ := seedHistory(t)
		stdout, _, err := executeCommand(t, "history", "--db-dir", dbDir, "-i", itoa(olderID), "example.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "Crawl Comparison: example.com") {
			t.Errorf("unexpected output:\n%s", stdout)
		}
	})

	t.Run("shows a stored run", func(t *testing.T) {
		t.Parallel()

		dbDir, olderID, _ := seedHistory(t)
		stdout, _, err := executeCommand(t, "history", "--db-dir", dbDir, "--show", itoa(olderID), "-f", "text")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "PAGE 3: Page /old") {
			t.Errorf("expected text export of the stored run, got:\n%s", stdout)
		}
	})

	t.Run("deletes a stored run", func(t *testing.T) {
		t.Parallel()

		dbDir, olderID, _ := seedHistory(t)
		if _, _, err := executeCommand(t, "history", "--db-dir", dbDir, "--delete", itoa(olderID)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		_, _, err := executeCommand(t, "history", "--db-dir", dbDir, "--show", itoa(olderID))
		if !errors.Is(err, database.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound after delete, got %v", err)
		}
	})
}

// TestRunHistoryCmdErrors tests invalid history invocations.
func TestRunHistoryCmdErrors(t *testing.T) {
	t.Parallel()

	dbDir, _, newerID := seedHistory(t)

	tests := []struct {
		name    string
		args    []string
		wantMsg string
	}{
		{
			name:    "compare without domain",
			args:    []string{"history", "--db-dir", dbDir, "--compare"},
			wantMsg: "domain is required",
		},
		{
			name:    "json and markdown together",
			args:    []string{"history", "--db-dir", dbDir, "--compare", "-j", "-m", "example.com"},
			wantMsg: "cannot be used together",
		},
		{
			name:    "unknown domain",
			args:    []string{"history", "--db-dir", dbDir, "--compare", "unknown.example"},
			wantMsg: "no crawl history found",
		},
		{
			name:    "compare latest run with itself",
			args:    []string{"history", "--db-dir", dbDir, "-i", itoa(newerID), "example.com"},
			wantMsg: "is the latest run",
		},
		{
			name:    "unknown report format",
			args:    []string{"history", "--db-dir", dbDir, "--show", itoa(newerID), "-f", "pdf"},
			wantMsg: "unknown report format",
		},
	}

	// The subtests share one database file, so they run one at a time.
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := executeCommand(t, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("expected error containing %q, got %v", tt.wantMsg, err)
			}
		})
	}
}
