package analyzer

import (
	"cmp"
	"slices"
	"unicode/utf8"

	"github.com/nao1215/sitescraper/internal/model"
	"github.com/nao1215/sitescraper/internal/textutil"
)

const (
	// KeywordLimit is the number of keywords reported in CorpusStats.
	KeywordLimit = 20

	// WordsPerMinute is the reading speed used for ReadingTimeMinutes.
	WordsPerMinute = 200

	// MinKeywordLength is the minimum rune length of a keyword.
	MinKeywordLength = 4
)

// Analyze aggregates pages into corpus statistics.
//
// Words are the tokens of each page's FullText (see textutil.Tokenize),
// taken in page order. Averages and reading time use integer division.
// An empty or nil page list gives all-zero stats and no keywords.
func Analyze(pages []*model.Page) model.CorpusStats {
	stats := model.CorpusStats{
		TotalPages:  len(pages),
		TopKeywords: make([]model.Keyword, 0),
	}
	if len(pages) == 0 {
		return stats
	}

	tokens := make([]string, 0)
	for _, p := range pages {
		if p == nil {
			continue
		}
		words := textutil.Tokenize(p.FullText)
		tokens = append(tokens, words...)

		stats.TotalWords += len(words)
		stats.TotalParagraphs += len(p.Paragraphs)
		stats.TotalHeadings += len(p.Headings)
		stats.TotalLinks += len(p.Links)
		stats.TotalImages += len(p.Images)
	}

	stats.AvgWordsPerPage = stats.TotalWords / stats.TotalPages
	stats.ReadingTimeMinutes = stats.TotalWords / WordsPerMinute
	stats.TopKeywords = TopKeywords(tokens, KeywordLimit)

	return stats
}

// TopKeywords counts tokens that are at least MinKeywordLength runes long
// and are not stop words, and returns the n most frequent. Ties keep the
// order in which the words first appeared.
func TopKeywords(tokens []string, n int) []model.Keyword {
	if n <= 0 {
		return make([]model.Keyword, 0)
	}

	counts := make(map[string]int)
	order := make([]string, 0)
	for _, tok := range tokens {
		if utf8.RuneCountInString(tok) < MinKeywordLength || textutil.IsStopWord(tok) {
			continue
		}
		if _, seen := counts[tok]; !seen {
			order = append(order, tok)
		}
		counts[tok]++
	}

	keywords := make([]model.Keyword, 0, len(order))
	for _, word := range order {
		keywords = append(keywords, model.Keyword{Word: word, Count: counts[word]})
	}

	// Stable sort on count keeps first-occurrence order among equals.
	slices.SortStableFunc(keywords, func(a, b model.Keyword) int {
		return cmp.Compare(b.Count, a.Count)
	})

	if len(keywords) > n {
		keywords = keywords[:n]
	}
	return keywords
}
