package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/nao1215/sitescraper/internal/model"
)

// JSONWriter outputs crawl results as a JSON export.
// This format is designed for tool integration and for reading a crawl
// back with ReadJSON.
//
// Design decision: We use standard encoding/json rather than a third-party
// JSON library because:
// 1. It's part of the standard library (no extra dependencies)
// 2. It's sufficient for our needs
// 3. It provides consistent behavior across Go versions
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string

	// version is the sitescraper version recorded in the export.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
// This is a convenience wrapper for WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion records the sitescraper version in the export.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
		version:    "dev",
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Export is the JSON document written by JSONWriter.
//
// Design decision: We wrap the pages rather than writing a bare array
// because the domain, the crawl window and the stats travel with them,
// and a later reader (search, history import) does not have to guess.
type Export struct {
	// Version is the sitescraper version that wrote the export.
	Version string `json:"version"`

	Domain      string    `json:"domain"`
	SeedURL     string    `json:"seed_url"`
	GeneratedAt time.Time `json:"generated_at"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Cancelled   bool      `json:"cancelled,omitempty"`

	Pages    []*model.Page        `json:"pages"`
	Failures []model.FetchFailure `json:"failures,omitempty"`
	Stats    model.CorpusStats    `json:"stats"`
}

// NewExport builds the export document for result.
func NewExport(result *model.CrawlResult, version string) *Export {
	pages := result.Pages
	if pages == nil {
		pages = make([]*model.Page, 0)
	}
	return &Export{
		Version:     version,
		Domain:      result.Domain,
		SeedURL:     result.SeedURL,
		GeneratedAt: time.Now().UTC(),
		StartedAt:   result.StartedAt,
		FinishedAt:  result.FinishedAt,
		Cancelled:   result.Cancelled,
		Pages:       pages,
		Failures:    result.Failures,
		Stats:       statsOf(result),
	}
}

// Write outputs the export in JSON format.
func (w *JSONWriter) Write(result *model.CrawlResult) (int, error) {
	return w.writeJSON(NewExport(result, w.version))
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}

// ReadJSON reads a crawl result back from a JSON export.
//
// Besides the Export document it accepts a bare array of pages, the
// format produced by the export button of the HTML viewer. In that case
// the domain and seed are taken from the first page. Stats are always
// recomputed from the pages.
func ReadJSON(r io.Reader) (*model.CrawlResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read export: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidExport)
	}

	var export Export
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &export.Pages); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidExport, err)
		}
	} else {
		if err := json.Unmarshal(trimmed, &export); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidExport, err)
		}
		if export.Pages == nil {
			return nil, fmt.Errorf("%w: missing pages", ErrInvalidExport)
		}
	}

	for i, p := range export.Pages {
		if p == nil || strings.TrimSpace(p.URL) == "" {
			return nil, fmt.Errorf("%w: page %d has no URL", ErrInvalidExport, i+1)
		}
	}

	if export.SeedURL == "" && len(export.Pages) > 0 {
		export.SeedURL = export.Pages[0].URL
	}
	if export.Domain == "" && export.SeedURL != "" {
		if u, err := url.Parse(export.SeedURL); err == nil {
			export.Domain = strings.ToLower(u.Host)
		}
	}

	result := &model.CrawlResult{
		SeedURL:    export.SeedURL,
		Domain:     export.Domain,
		StartedAt:  export.StartedAt,
		FinishedAt: export.FinishedAt,
		Pages:      export.Pages,
		Failures:   export.Failures,
		Cancelled:  export.Cancelled,
	}
	stats := statsOf(result)
	result.Stats = &stats
	return result, nil
}
