package model

import (
	"encoding/hex"
	"time"

	"golang.org/x/crypto/sha3"
)

// Page is one scraped document.
//
// A Page is built once by the extractor, appended once to the crawl
// result and never modified afterwards. Every collection is in document
// order.
//
// Design decision: Page holds only extracted content, not the raw body or
// response headers, because:
//  1. Every consumer (analyzer, search, reports, history) works on text
//  2. Exports and the history database stay small
//  3. A Page can be rebuilt from an export without loss (round trip)
type Page struct {
	// URL is the canonical absolute URL (scheme + host + path) and the
	// unique key of the page within a crawl.
	URL string `json:"url"`

	// ScrapedAt is when the fetch completed.
	ScrapedAt time.Time `json:"scraped_at"`

	// Title is the <title> text, or URL when the document has none.
	Title string `json:"title"`

	// MainHeading is the text of the first <h1>, if any.
	MainHeading string `json:"main_heading,omitempty"`

	// MetaDescription is the content of <meta name="description">, if any.
	MetaDescription string `json:"meta_description,omitempty"`

	// Headings lists h1..h6 with non-empty text.
	Headings []Heading `json:"headings"`

	// Paragraphs holds paragraph texts longer than MinParagraphLength.
	Paragraphs []string `json:"paragraphs"`

	// Lists holds one item-group per <ul>/<ol>; never contains an empty group.
	Lists [][]string `json:"lists"`

	// Links holds anchors with non-empty text, at most 50 by default.
	Links []Link `json:"links"`

	// Images holds <img src> entries, at most 20 by default.
	Images []Image `json:"images"`

	// FullText is the normalized text of <main>, else <article>, else <body>.
	FullText string `json:"full_text"`
}

// MinParagraphLength is the length a paragraph must exceed to be kept.
// Shorter fragments are usually buttons, captions or bylines.
const MinParagraphLength = 20

// Heading is a heading element and its level (1 for h1 ... 6 for h6).
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// Tag returns the HTML tag name of the heading, e.g. "h2".
func (h Heading) Tag() string {
	if h.Level < 1 || h.Level > 6 {
		return "h?"
	}
	return "h" + string(rune('0'+h.Level))
}

// Link is an anchor's text and its absolute URL.
type Link struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// Image is an image's absolute source URL and its alt text ("" when absent).
type Image struct {
	URL string `json:"url"`
	Alt string `json:"alt"`
}

// Fingerprint returns a hex SHA3-256 digest of the page's title and full
// text. Two crawls of the same URL with equal fingerprints saw the same
// content; the history command uses this to report changed pages.
func (p *Page) Fingerprint() string {
	h := sha3.New256()
	// hash.Hash.Write never returns an error.
	_, _ = h.Write([]byte(p.Title))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(p.FullText))
	return hex.EncodeToString(h.Sum(nil))
}

// WordCount returns the number of whitespace-separated words in FullText.
// It is a cheap display figure; the analyzer's tokenizer is authoritative.
func (p *Page) WordCount() int {
	count := 0
	inWord := false
	for _, r := range p.FullText {
		if r == ' ' {
			inWord = false
			continue
		}
		if !inWord {
			count++
			inWord = true
		}
	}
	return count
}
