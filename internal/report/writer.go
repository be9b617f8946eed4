package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/nao1215/sitescraper/internal/analyzer"
	"github.com/nao1215/sitescraper/internal/config"
	"github.com/nao1215/sitescraper/internal/model"
)

var (
	// ErrUnsupportedFormat is returned by NewWriter for an unknown format.
	ErrUnsupportedFormat = errors.New("unsupported report format")

	// ErrInvalidExport is returned by ReadJSON for input that is not a
	// sitescraper export.
	ErrInvalidExport = errors.New("invalid export")
)

// Writer defines the interface for report output.
// Implementations render a crawl result in one format.
//
// Design decision: We use an interface to allow different output formats
// and destinations. This enables writing to files, stdout, or network
// connections with the same API.
type Writer interface {
	// Write renders the result to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(result *model.CrawlResult) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for writing every export format in one pass.
//
// Design decision: We implement this as a separate type rather than
// using io.MultiWriter because our Writer interface is different
// from io.Writer - we write reports, not raw bytes.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the result to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(result *model.CrawlResult) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(result)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// NewWriter returns the writer for format (see config.ReportFormats).
// version is recorded in JSON exports.
func NewWriter(format string, output io.Writer, version string) (Writer, error) {
	switch format {
	case config.FormatSimple:
		return NewSimpleWriter(output), nil
	case config.FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint(), WithVersion(version)), nil
	case config.FormatMarkdown:
		return NewMarkdownWriter(output), nil
	case config.FormatHTML:
		return NewHTMLWriter(output), nil
	case config.FormatText:
		return NewTextWriter(output), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// FileFormats are the formats written by an export to a directory.
var FileFormats = []string{config.FormatJSON, config.FormatMarkdown, config.FormatHTML, config.FormatText}

// DefaultFileName returns the file name used for format in an export
// directory, or "" for formats that are terminal-only.
func DefaultFileName(format string) string {
	switch format {
	case config.FormatJSON:
		return "scraped_data.json"
	case config.FormatMarkdown:
		return "scraped_content.md"
	case config.FormatHTML:
		return "scraped_website.html"
	case config.FormatText:
		return "scraped_data.txt"
	default:
		return ""
	}
}

// statsOf returns the result's stats, computing them when the analyzer
// has not run yet.
func statsOf(result *model.CrawlResult) model.CorpusStats {
	if result.Stats != nil {
		return *result.Stats
	}
	return analyzer.Analyze(result.Pages)
}

// statusText describes how the crawl ended.
func statusText(result *model.CrawlResult) string {
	if result.Cancelled {
		return "Cancelled (partial results)"
	}
	return "Complete"
}

// truncateString truncates a string to maxLen runes with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
