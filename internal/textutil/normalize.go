package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Normalize collapses every run of whitespace into a single space and
// trims the result.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Tokenize splits s into lower-cased maximal runs of word characters
// (letters, digits and underscore) in order of appearance.
//
// Lower-casing uses x/text/cases rather than strings.ToLower so that
// language-neutral folding is applied to the whole input at once.
// A Caser keeps state and is not safe for concurrent use, so one is
// created per call.
func Tokenize(s string) []string {
	lower := cases.Lower(language.Und).String(s)
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !isWordRune(r)
	})
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// stopWords are dropped from keyword statistics.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {},
	"with": {}, "by": {}, "from": {}, "as": {}, "is": {}, "was": {},
	"are": {}, "were": {}, "be": {}, "been": {}, "being": {}, "have": {},
	"has": {}, "had": {}, "do": {}, "does": {}, "did": {}, "will": {},
	"would": {}, "should": {}, "could": {}, "may": {}, "might": {},
	"must": {}, "can": {}, "this": {}, "that": {}, "these": {},
	"those": {}, "i": {}, "you": {}, "he": {}, "she": {}, "it": {},
	"we": {}, "they": {},
}

// IsStopWord reports whether tok (already lower-cased) is a stop word.
func IsStopWord(tok string) bool {
	_, ok := stopWords[tok]
	return ok
}
