package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/sitescraper/internal/model"
)

// Per-page limits of the Markdown export.
const (
	markdownMaxHeadings   = 10
	markdownMaxParagraphs = 5
	markdownMaxLists      = 3
	markdownMaxListItems  = 10
	markdownChartKeywords = 8
)

// MarkdownWriter outputs crawl results as a Markdown document.
// This format is designed for documentation and for feeding the scraped
// text to other tools.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the result in Markdown format.
func (w *MarkdownWriter) Write(result *model.CrawlResult) (int, error) {
	md := markdown.NewMarkdown(w.output)
	stats := statsOf(result)

	w.writeHeader(md, result)
	w.writeStats(md, stats)
	w.writeKeywords(md, stats)
	w.writeTOC(md, result.Pages)
	for i, p := range result.Pages {
		w.writePage(md, i+1, p)
	}
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the title and crawl information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, result *model.CrawlResult) {
	md.H1("Scraped Content: " + result.Domain)
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Domain", "`" + result.Domain + "`"},
			{"Seed URL", result.SeedURL},
			{"Scraped on", formatTime(result.StartedAt)},
			{"Total Pages", strconv.Itoa(len(result.Pages))},
			{"Failed URLs", strconv.Itoa(len(result.Failures))},
			{"Status", statusText(result)},
		},
	})
	md.PlainText("")

	if result.Cancelled {
		md.Warningf("The crawl was cancelled. %d page(s) were collected before it stopped.", len(result.Pages))
		md.PlainText("")
	}
}

// writeStats writes the corpus statistics table.
func (w *MarkdownWriter) writeStats(md *markdown.Markdown, stats model.CorpusStats) {
	md.H2("Content Analysis")
	md.PlainText("")

	if stats.IsEmpty() {
		md.Note("No pages were scraped.")
		md.PlainText("")
		return
	}

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Pages", strconv.Itoa(stats.TotalPages)},
			{"Words", strconv.Itoa(stats.TotalWords)},
			{"Reading time (min)", strconv.Itoa(stats.ReadingTimeMinutes)},
			{"Avg words per page", strconv.Itoa(stats.AvgWordsPerPage)},
			{"Paragraphs", strconv.Itoa(stats.TotalParagraphs)},
			{"Headings", strconv.Itoa(stats.TotalHeadings)},
			{"Links", strconv.Itoa(stats.TotalLinks)},
			{"Images", strconv.Itoa(stats.TotalImages)},
		},
	})
	md.PlainText("")
}

// writeKeywords writes the keyword table and a pie chart of the most
// frequent keywords.
func (w *MarkdownWriter) writeKeywords(md *markdown.Markdown, stats model.CorpusStats) {
	md.H2("Top Keywords")
	md.PlainText("")

	if len(stats.TopKeywords) == 0 {
		md.Note("No keywords found.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(stats.TopKeywords))
	for i, k := range stats.TopKeywords {
		rows[i] = []string{k.Word, strconv.Itoa(k.Count)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Keyword", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Keyword Distribution"),
		piechart.WithShowData(true),
	)
	for i, k := range stats.TopKeywords {
		if i == markdownChartKeywords {
			break
		}
		chart.LabelAndIntValue(k.Word, uint64(k.Count)) //nolint:gosec // counts are never negative
	}
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeTOC writes a numbered table of contents linking to page sections.
func (w *MarkdownWriter) writeTOC(md *markdown.Markdown, pages []*model.Page) {
	md.H2("Table of Contents")
	md.PlainText("")

	if len(pages) == 0 {
		md.PlainText("No pages were scraped.")
		md.PlainText("")
		return
	}

	for i, p := range pages {
		md.PlainTextf("%d. %s", i+1, markdown.Link(p.Title, "#"+anchor(i+1, p.Title)))
	}
	md.PlainText("")
	md.HorizontalRule()
	md.PlainText("")
}

// writePage writes one page section.
func (w *MarkdownWriter) writePage(md *markdown.Markdown, idx int, p *model.Page) {
	md.H2(fmt.Sprintf("%d. %s", idx, p.Title))
	md.PlainText("")
	md.PlainTextf("**URL:** %s", markdown.Link(p.URL, p.URL))
	md.PlainText("")

	if p.MainHeading != "" {
		md.H3(p.MainHeading)
		md.PlainText("")
	}

	if p.MetaDescription != "" {
		md.Blockquote(p.MetaDescription)
		md.PlainText("")
	}

	if len(p.Headings) > 0 {
		md.H4("Headings")
		md.PlainText("")
		for i, h := range p.Headings {
			if i == markdownMaxHeadings {
				break
			}
			md.PlainText(strings.Repeat("  ", max(h.Level-1, 0)) + "- " + h.Text)
		}
		md.PlainText("")
	}

	if len(p.Paragraphs) > 0 {
		md.H4("Content")
		md.PlainText("")
		for i, para := range p.Paragraphs {
			if i == markdownMaxParagraphs {
				break
			}
			md.PlainText(para)
			md.PlainText("")
		}
	}

	if len(p.Lists) > 0 {
		md.H4("Lists")
		md.PlainText("")
		for i, list := range p.Lists {
			if i == markdownMaxLists {
				break
			}
			md.BulletList(list[:min(len(list), markdownMaxListItems)]...)
			md.PlainText("")
		}
	}

	md.HorizontalRule()
	md.PlainText("")
}

// writeFooter writes the document footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.PlainTextf("*Generated by [sitescraper](https://github.com/nao1215/sitescraper)*")
}

// anchor returns the GitHub-style anchor of the heading "<idx>. <title>":
// lower-cased, punctuation removed, spaces turned into hyphens.
func anchor(idx int, title string) string {
	heading := cases.Lower(language.Und).String(fmt.Sprintf("%d. %s", idx, title))

	var b strings.Builder
	for _, r := range heading {
		switch {
		case r == ' ':
			b.WriteRune('-')
		case r == '-' || r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		}
	}
	return b.String()
}

// formatTime formats t for reports, or "-" for the zero time.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05 MST")
}
