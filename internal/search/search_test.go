package search

import (
	"errors"
	"strings"
	"testing"

	"github.com/nao1215/sitescraper/internal/model"
)

func samplePages() []*model.Page {
	return []*model.Page{
		{URL: "https://example.com/", Title: "Home", FullText: "Welcome to the Go crawler. Crawlers crawl."},
		{URL: "https://example.com/about", Title: "About the Crawler", FullText: "Nothing relevant here."},
		{URL: "https://example.com/misc", Title: "Misc", FullText: "Unrelated text."},
	}
}

// TestSearch tests case-insensitive substring search.
func TestSearch(t *testing.T) {
	t.Parallel()

	t.Run("matches title or text in page order", func(t *testing.T) {
		t.Parallel()

		matches, err := Search(samplePages(), "CRAWL")
		if err != nil {
			t.Fatalf("failed to search: %v", err)
		}

		if len(matches) != 2 {
			t.Fatalf("expected 2 matches, got %d", len(matches))
		}
		if matches[0].Index != 1 || matches[0].Occurrences != 3 {
			t.Errorf("unexpected first match %+v", matches[0])
		}
		if matches[1].Index != 2 || matches[1].Occurrences != 0 {
			t.Errorf("expected title-only match on page 2, got %+v", matches[1])
		}
	})

	t.Run("query is trimmed", func(t *testing.T) {
		t.Parallel()

		matches, err := Search(samplePages(), "  misc  ")
		if err != nil {
			t.Fatalf("failed to search: %v", err)
		}
		if len(matches) != 1 || matches[0].URL != "https://example.com/misc" {
			t.Errorf("expected the misc page, got %+v", matches)
		}
	})

	t.Run("short query", func(t *testing.T) {
		t.Parallel()

		for _, q := range []string{"", "go", "  ab  "} {
			if _, err := Search(samplePages(), q); !errors.Is(err, ErrQueryTooShort) {
				t.Errorf("expected ErrQueryTooShort for %q, got %v", q, err)
			}
		}
	})

	t.Run("no results", func(t *testing.T) {
		t.Parallel()

		matches, err := Search(samplePages(), "nonexistent")
		if err != nil {
			t.Fatalf("failed to search: %v", err)
		}
		if len(matches) != 0 {
			t.Errorf("expected no matches, got %d", len(matches))
		}
	})
}

// TestSnippet tests snippet extraction.
func TestSnippet(t *testing.T) {
	t.Parallel()

	t.Run("short text is returned whole", func(t *testing.T) {
		t.Parallel()

		text := "find the needle here"
		if got := snippet(text, strings.ToLower(text), "needle"); got != text {
			t.Errorf("expected %q, got %q", text, got)
		}
	})

	t.Run("long text is cut around the match", func(t *testing.T) {
		t.Parallel()

		text := strings.Repeat("a", 200) + "NEEDLE" + strings.Repeat("b", 200)
		got := snippet(text, strings.ToLower(text), "needle")

		if !strings.HasPrefix(got, "...") || !strings.HasSuffix(got, "...") {
			t.Errorf("expected ellipses on both sides, got %q", got)
		}
		if !strings.Contains(got, "NEEDLE") {
			t.Errorf("expected original case to be kept, got %q", got)
		}
		if want := 3 + snippetRadius + len("NEEDLE") + snippetRadius + 3; len(got) != want {
			t.Errorf("expected length %d, got %d", want, len(got))
		}
	})

	t.Run("title-only match uses start of text", func(t *testing.T) {
		t.Parallel()

		text := strings.Repeat("x", 300)
		got := snippet(text, text, "zzz")
		if !strings.HasSuffix(got, "...") || len(got) != 2*snippetRadius+3 {
			t.Errorf("unexpected snippet %q", got)
		}
	})
}
