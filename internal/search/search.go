package search

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/nao1215/sitescraper/internal/model"
)

// MinQueryLength is the minimum query length in characters.
const MinQueryLength = 3

// snippetRadius is the number of characters kept on each side of the first
// match in a snippet.
const snippetRadius = 60

// ErrQueryTooShort is returned for queries shorter than MinQueryLength.
var ErrQueryTooShort = errors.New("search query must be at least 3 characters")

// Match is a page that contains the query.
type Match struct {
	// Index is the 1-based position of the page in the crawl.
	Index int `json:"index"`

	// URL and Title identify the page.
	URL   string `json:"url"`
	Title string `json:"title"`

	// Occurrences counts non-overlapping matches in the full text.
	Occurrences int `json:"occurrences"`

	// Snippet is the full text around the first match, or the start of the
	// full text when only the title matched.
	Snippet string `json:"snippet"`
}

// Search returns the pages whose title or full text contains query,
// ignoring case, in page order. The query is trimmed first.
func Search(pages []*model.Page, query string) ([]Match, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < MinQueryLength {
		return nil, ErrQueryTooShort
	}
	needle := strings.ToLower(query)

	matches := make([]Match, 0)
	for i, p := range pages {
		if p == nil {
			continue
		}
		text := strings.ToLower(p.FullText)
		inTitle := strings.Contains(strings.ToLower(p.Title), needle)
		occurrences := strings.Count(text, needle)
		if !inTitle && occurrences == 0 {
			continue
		}

		matches = append(matches, Match{
			Index:       i + 1,
			URL:         p.URL,
			Title:       p.Title,
			Occurrences: occurrences,
			Snippet:     snippet(p.FullText, text, needle),
		})
	}
	return matches, nil
}

// snippet cuts original around the first occurrence of needle in lower.
// lower must be strings.ToLower(original); when the two differ in length
// the snippet is taken from lower so that offsets stay valid.
func snippet(original, lower, needle string) string {
	source := original
	if len(original) != len(lower) {
		source = lower
	}

	pos := strings.Index(lower, needle)
	if pos < 0 {
		return truncate(source, 2*snippetRadius)
	}

	start := backRunes(source, pos, snippetRadius)
	end := forwardRunes(source, pos+len(needle), snippetRadius)

	s := source[start:end]
	if start > 0 {
		s = "..." + s
	}
	if end < len(source) {
		s += "..."
	}
	return s
}

// backRunes moves n runes back from byte offset pos.
func backRunes(s string, pos, n int) int {
	for ; n > 0 && pos > 0; n-- {
		_, size := utf8.DecodeLastRuneInString(s[:pos])
		pos -= size
	}
	return pos
}

// forwardRunes moves n runes forward from byte offset pos.
func forwardRunes(s string, pos, n int) int {
	for ; n > 0 && pos < len(s); n-- {
		_, size := utf8.DecodeRuneInString(s[pos:])
		pos += size
	}
	return pos
}

// truncate keeps the first n runes of s.
func truncate(s string, n int) string {
	end := forwardRunes(s, 0, n)
	if end < len(s) {
		return s[:end] + "..."
	}
	return s
}
