package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/sitescraper/internal/model"
)

// textRule separates pages in the plain text export.
var textRule = strings.Repeat("=", 80)

// TextWriter outputs the scraped text of every page as plain text.
// Only titles, URLs, main headings and paragraphs are written; the
// result is meant for reading or for feeding to text tools.
type TextWriter struct {
	baseWriter
}

// NewTextWriter creates a TextWriter that outputs to the given writer.
func NewTextWriter(output io.Writer) *TextWriter {
	return &TextWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the result as plain text.
func (w *TextWriter) Write(result *model.CrawlResult) (int, error) {
	var sb strings.Builder

	for i, p := range result.Pages {
		sb.WriteString("\n" + textRule + "\n")
		fmt.Fprintf(&sb, "PAGE %d: %s\n", i+1, p.Title)
		fmt.Fprintf(&sb, "URL: %s\n", p.URL)
		sb.WriteString(textRule + "\n\n")

		if p.MainHeading != "" {
			fmt.Fprintf(&sb, "HEADING: %s\n\n", p.MainHeading)
		}

		sb.WriteString("CONTENT:\n")
		for _, para := range p.Paragraphs {
			sb.WriteString(para + "\n\n")
		}
	}

	return io.WriteString(w.output, sb.String())
}
