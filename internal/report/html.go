package report

import (
	"bytes"
	"fmt"
	"html/template"
	"io"

	"github.com/nao1215/sitescraper/internal/model"
	"github.com/nao1215/sitescraper/internal/search"
)

// Limits of the HTML viewer.
const (
	htmlMaxKeywords   = 15
	htmlMaxParagraphs = 10
)

// HTMLWriter outputs a self-contained HTML page for browsing the
// scraped content offline. The page shows the corpus statistics, the
// top keywords and one collapsible section per page, and carries an
// inline search over the page texts.
type HTMLWriter struct {
	baseWriter

	// withSearch embeds the page texts and the search script.
	withSearch bool
}

// HTMLWriterOption configures an HTMLWriter.
type HTMLWriterOption func(*HTMLWriter)

// WithSearch enables or disables the inline search box.
func WithSearch(enabled bool) HTMLWriterOption {
	return func(w *HTMLWriter) {
		w.withSearch = enabled
	}
}

// NewHTMLWriter creates an HTMLWriter that outputs to the given writer.
// Search is enabled by default.
func NewHTMLWriter(output io.Writer, opts ...HTMLWriterOption) *HTMLWriter {
	w := &HTMLWriter{
		baseWriter: newBaseWriter(output),
		withSearch: true,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// htmlPage is the template projection of a model.Page.
type htmlPage struct {
	Index       int
	URL         string
	Title       string
	MainHeading string
	Paragraphs  []string
	More        int
}

// searchEntry is the data the inline search script works on.
type searchEntry struct {
	Index int    `json:"index"`
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"full_text"`
}

// htmlView is the data passed to htmlTmpl.
type htmlView struct {
	Domain        string
	ScrapedOn     string
	Status        string
	Cancelled     bool
	Stats         model.CorpusStats
	Keywords      []model.Keyword
	Pages         []htmlPage
	Failures      int
	WithSearch    bool
	MinQuery      int
	SearchEntries []searchEntry
}

// Write outputs the result as an HTML document.
func (w *HTMLWriter) Write(result *model.CrawlResult) (int, error) {
	stats := statsOf(result)

	view := htmlView{
		Domain:     result.Domain,
		ScrapedOn:  formatTime(result.StartedAt),
		Status:     statusText(result),
		Cancelled:  result.Cancelled,
		Stats:      stats,
		Keywords:   stats.TopKeywords[:min(len(stats.TopKeywords), htmlMaxKeywords)],
		Pages:      make([]htmlPage, 0, len(result.Pages)),
		Failures:   len(result.Failures),
		WithSearch: w.withSearch,
		MinQuery:   search.MinQueryLength,
	}

	for i, p := range result.Pages {
		shown := p.Paragraphs[:min(len(p.Paragraphs), htmlMaxParagraphs)]
		view.Pages = append(view.Pages, htmlPage{
			Index:       i + 1,
			URL:         p.URL,
			Title:       p.Title,
			MainHeading: p.MainHeading,
			Paragraphs:  shown,
			More:        len(p.Paragraphs) - len(shown),
		})
		if w.withSearch {
			view.SearchEntries = append(view.SearchEntries, searchEntry{
				Index: i + 1,
				URL:   p.URL,
				Title: p.Title,
				Text:  p.FullText,
			})
		}
	}

	var buf bytes.Buffer
	if err := htmlTmpl.Execute(&buf, view); err != nil {
		return 0, fmt.Errorf("failed to render HTML report: %w", err)
	}
	return w.output.Write(buf.Bytes())
}

var htmlTmpl = template.Must(template.New("viewer").Parse(`<!DOCTYPE html>
<html lang="en"><head><meta charset="UTF-8"><meta name="viewport" content="width=device-width,initial-scale=1">
<title>Scraped Content: {{.Domain}}</title>
<style>
body{font-family:system-ui,sans-serif;max-width:960px;margin:2rem auto;padding:0 1rem;color:#222;background:#fafafa}
h1{font-size:1.6rem;border-bottom:2px solid #e0e0e0;padding-bottom:.5rem}
.meta{font-size:.85rem;color:#666}
.cards{display:flex;flex-wrap:wrap;gap:.75rem;margin:1rem 0}
.card{background:#fff;border:1px solid #e0e0e0;border-radius:6px;padding:.75rem 1rem;min-width:110px}
.card b{display:block;font-size:1.3rem}
.warn{background:#fff4e5;border:1px solid #f0c36d;border-radius:6px;padding:.5rem 1rem}
.keywords span{display:inline-block;margin:.2rem .5rem .2rem 0}
details{background:#fff;border:1px solid #e0e0e0;border-radius:6px;padding:.75rem 1rem;margin-bottom:.75rem}
summary{cursor:pointer;font-weight:600}
.url{font-size:.85rem;word-break:break-all}
#search{width:100%;padding:.5rem;font-size:1rem;box-sizing:border-box}
#results li{margin:.3rem 0}
</style></head><body>
<h1>Scraped Content: {{.Domain}}</h1>
<p class="meta">Scraped on {{.ScrapedOn}} &middot; {{.Status}} &middot; {{.Failures}} failed URL(s)</p>
{{- if .Cancelled}}
<p class="warn">The crawl was cancelled before it finished. The pages below are partial results.</p>
{{- end}}
<div class="cards">
<div class="card"><b>{{.Stats.TotalPages}}</b>pages</div>
<div class="card"><b>{{.Stats.TotalWords}}</b>words</div>
<div class="card"><b>{{.Stats.ReadingTimeMinutes}}</b>min read</div>
<div class="card"><b>{{.Stats.TotalHeadings}}</b>headings</div>
<div class="card"><b>{{.Stats.TotalLinks}}</b>links</div>
</div>
<h2>Content Analysis</h2>
<div class="cards">
<div class="card"><b>{{.Stats.TotalParagraphs}}</b>paragraphs</div>
<div class="card"><b>{{.Stats.AvgWordsPerPage}}</b>avg words/page</div>
<div class="card"><b>{{.Stats.TotalImages}}</b>images</div>
</div>
<h2>Top Keywords</h2>
<p class="keywords">
{{- range .Keywords}}<span><strong>{{.Word}}</strong> ({{.Count}})</span>{{end}}
{{- if not .Keywords}}<em>No keywords found.</em>{{end}}
</p>
{{- if .WithSearch}}
<h2>Search</h2>
<input id="search" type="search" placeholder="Search pages (at least {{.MinQuery}} characters)">
<ul id="results"></ul>
{{- end}}
<h2>Pages</h2>
{{- range .Pages}}
<details id="page-{{.Index}}">
<summary>Page {{.Index}}: {{.Title}}</summary>
<p class="url"><a href="{{.URL}}">{{.URL}}</a></p>
{{- if .MainHeading}}
<h3>{{.MainHeading}}</h3>
{{- end}}
{{- range .Paragraphs}}
<p>{{.}}</p>
{{- end}}
{{- if .More}}
<p class="meta">{{.More}} more paragraph(s) not shown.</p>
{{- end}}
</details>
{{- end}}
{{- if not .Pages}}
<p class="meta">No pages were scraped.</p>
{{- end}}
{{- if .WithSearch}}
<script>
(function () {
  const pages = {{.SearchEntries}} || [];
  const minLength = {{.MinQuery}};
  const input = document.getElementById("search");
  const list = document.getElementById("results");
  input.addEventListener("input", function () {
    const q = input.value.trim().toLowerCase();
    list.replaceChildren();
    if (q.length < minLength) {
      return;
    }
    for (const p of pages) {
      const text = p.full_text.toLowerCase();
      if (!p.title.toLowerCase().includes(q) && !text.includes(q)) {
        continue;
      }
      const count = text.split(q).length - 1;
      const li = document.createElement("li");
      const a = document.createElement("a");
      a.href = "#page-" + p.index;
      a.textContent = "Page " + p.index + ": " + p.title;
      a.addEventListener("click", function () {
        document.getElementById("page-" + p.index).open = true;
      });
      li.appendChild(a);
      li.appendChild(document.createTextNode(" (" + count + " occurrence(s))"));
      list.appendChild(li);
    }
  });
})();
</script>
{{- end}}
<p class="meta">Generated by sitescraper</p>
</body></html>`))
