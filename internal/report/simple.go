package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/sitescraper/internal/model"
)

// simpleWidth is the width of the rules drawn by SimpleWriter.
const simpleWidth = 70

// SimpleWriter outputs a human-readable crawl summary.
// This format is designed for terminal display after a crawl.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type SimpleWriter struct {
	baseWriter

	// showPages lists every scraped page with its title.
	showPages bool

	// verbose also lists the failed URLs.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowPages configures the writer to list the scraped pages.
func WithShowPages(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showPages = show
	}
}

// WithVerbose enables the list of failed URLs.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the crawl summary in human-readable format.
func (w *SimpleWriter) Write(result *model.CrawlResult) (int, error) {
	var sb strings.Builder
	stats := statsOf(result)

	w.writeHeader(&sb, result)
	w.writeStats(&sb, stats)
	w.writeKeywords(&sb, stats)
	w.writePages(&sb, result)
	w.writeFailures(&sb, result)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeSection writes a section title between two rules.
func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", simpleWidth) + "\n")
	sb.WriteString(title + "\n")
	sb.WriteString(strings.Repeat("-", simpleWidth) + "\n\n")
}

// writeHeader writes the report header with crawl information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, result *model.CrawlResult) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", simpleWidth) + "\n")
	sb.WriteString("                       SITESCRAPER REPORT\n")
	sb.WriteString(strings.Repeat("=", simpleWidth) + "\n\n")

	fmt.Fprintf(sb, "Domain:        %s\n", result.Domain)
	fmt.Fprintf(sb, "Seed URL:      %s\n", result.SeedURL)
	fmt.Fprintf(sb, "Scraped on:    %s\n", formatTime(result.StartedAt))
	if d := result.Duration(); d > 0 {
		fmt.Fprintf(sb, "Duration:      %s\n", d.Round(time.Second / 10))
	}
	fmt.Fprintf(sb, "Pages Scraped: %d\n", len(result.Pages))
	fmt.Fprintf(sb, "Failed URLs:   %d\n", len(result.Failures))
	fmt.Fprintf(sb, "Status:        %s\n", statusText(result))
	sb.WriteString("\n")
}

// writeStats writes the corpus statistics.
func (w *SimpleWriter) writeStats(sb *strings.Builder, stats model.CorpusStats) {
	writeSection(sb, "CONTENT ANALYSIS")

	if stats.IsEmpty() {
		sb.WriteString("  No pages scraped\n\n")
		return
	}
	fmt.Fprintf(sb, "  Words:              %d\n", stats.TotalWords)
	fmt.Fprintf(sb, "  Reading time:       %d min\n", stats.ReadingTimeMinutes)
	fmt.Fprintf(sb, "  Avg words per page: %d\n", stats.AvgWordsPerPage)
	fmt.Fprintf(sb, "  Paragraphs:         %d\n", stats.TotalParagraphs)
	fmt.Fprintf(sb, "  Headings:           %d\n", stats.TotalHeadings)
	fmt.Fprintf(sb, "  Links:              %d\n", stats.TotalLinks)
	fmt.Fprintf(sb, "  Images:             %d\n", stats.TotalImages)
	sb.WriteString("\n")
}

// writeKeywords writes the top keywords.
func (w *SimpleWriter) writeKeywords(sb *strings.Builder, stats model.CorpusStats) {
	writeSection(sb, "TOP KEYWORDS")

	if len(stats.TopKeywords) == 0 {
		sb.WriteString("  No keywords found\n\n")
		return
	}
	for i, k := range stats.TopKeywords {
		fmt.Fprintf(sb, "  %2d. %-24s %d\n", i+1, k.Word, k.Count)
	}
	sb.WriteString("\n")
}

// writePages lists the scraped pages when enabled.
func (w *SimpleWriter) writePages(sb *strings.Builder, result *model.CrawlResult) {
	if !w.showPages || len(result.Pages) == 0 {
		return
	}

	writeSection(sb, "PAGES")
	for i, p := range result.Pages {
		fmt.Fprintf(sb, "  %3d. %s\n", i+1, truncateString(p.Title, 60))
		fmt.Fprintf(sb, "       %s\n", p.URL)
	}
	sb.WriteString("\n")
}

// writeFailures lists the failed URLs in verbose mode.
func (w *SimpleWriter) writeFailures(sb *strings.Builder, result *model.CrawlResult) {
	if !w.verbose || len(result.Failures) == 0 {
		return
	}

	writeSection(sb, "FAILED URLS")
	for _, f := range result.Failures {
		fmt.Fprintf(sb, "  [x] %s\n", f.URL)
		fmt.Fprintf(sb, "      %s\n", f.Reason)
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", simpleWidth) + "\n")
	sb.WriteString("Report generated by sitescraper\n")
	sb.WriteString("https://github.com/nao1215/sitescraper\n")
	sb.WriteString(strings.Repeat("=", simpleWidth) + "\n")
}
