package crawler

import (
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/nao1215/sitescraper/internal/model"
	"github.com/nao1215/sitescraper/internal/textutil"
)

// chromeSelector matches page chrome that is removed before anything is
// harvested, including the anchors used for link discovery.
const chromeSelector = "script, style, nav, footer, header, aside"

// Extractor builds a model.Page from a parsed HTML document.
//
// Design decision: We use goquery selectors on top of x/net/html rather
// than walking the node tree by hand because:
//  1. Every field is naturally "first match" or "all matches" of a selector
//  2. Selector groups such as "h1, h2" are returned in document order
//  3. Removing chrome elements is a single call
type Extractor struct {
	maxLinks  int
	maxImages int
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithMaxLinks caps Page.Links. Values <= 0 are ignored.
func WithMaxLinks(n int) ExtractorOption {
	return func(e *Extractor) {
		if n > 0 {
			e.maxLinks = n
		}
	}
}

// WithMaxImages caps Page.Images. Values <= 0 are ignored.
func WithMaxImages(n int) ExtractorOption {
	return func(e *Extractor) {
		if n > 0 {
			e.maxImages = n
		}
	}
}

// NewExtractor creates an Extractor keeping at most 50 links and 20 images
// per page unless configured otherwise.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		maxLinks:  50,
		maxImages: 20,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract builds the Page for root, which was fetched from pageURL.
// It also returns the raw href values of the anchors left after chrome
// removal, in document order, for link discovery.
//
// Extract removes chrome elements from root. Callers must not reuse the
// tree afterwards.
func (e *Extractor) Extract(root *html.Node, pageURL string, scrapedAt time.Time) (*model.Page, []string) {
	doc := goquery.NewDocumentFromNode(root)
	doc.Find(chromeSelector).Remove()

	base, err := url.Parse(pageURL)
	if err != nil {
		base = &url.URL{}
	}

	page := &model.Page{
		URL:        pageURL,
		ScrapedAt:  scrapedAt,
		Headings:   make([]model.Heading, 0),
		Paragraphs: make([]string, 0),
		Lists:      make([][]string, 0),
		Links:      make([]model.Link, 0),
		Images:     make([]model.Image, 0),
	}

	page.Title = textutil.Normalize(doc.Find("title").First().Text())
	if page.Title == "" {
		page.Title = pageURL
	}

	if content, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
		page.MetaDescription = textutil.Normalize(content)
	}

	page.MainHeading = textutil.Normalize(doc.Find("h1").First().Text())

	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		text := textutil.Normalize(s.Text())
		if text == "" {
			return
		}
		page.Headings = append(page.Headings, model.Heading{
			Level: headingLevel(goquery.NodeName(s)),
			Text:  text,
		})
	})

	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		text := textutil.Normalize(s.Text())
		if utf8.RuneCountInString(text) > model.MinParagraphLength {
			page.Paragraphs = append(page.Paragraphs, text)
		}
	})

	doc.Find("ul, ol").Each(func(_ int, list *goquery.Selection) {
		items := make([]string, 0)
		list.Find("li").Each(func(_ int, li *goquery.Selection) {
			if text := textutil.Normalize(li.Text()); text != "" {
				items = append(items, text)
			}
		})
		if len(items) > 0 {
			page.Lists = append(page.Lists, items)
		}
	})

	hrefs := make([]string, 0)
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		hrefs = append(hrefs, href)

		if len(page.Links) >= e.maxLinks {
			return
		}
		text := textutil.Normalize(a.Text())
		if text == "" {
			return
		}
		if abs, ok := absoluteURL(base, href); ok {
			page.Links = append(page.Links, model.Link{Text: text, URL: abs})
		}
	})

	doc.Find("img[src]").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		if len(page.Images) >= e.maxImages {
			return false
		}
		src, _ := img.Attr("src")
		if abs, ok := absoluteURL(base, src); ok {
			alt, _ := img.Attr("alt")
			page.Images = append(page.Images, model.Image{URL: abs, Alt: textutil.Normalize(alt)})
		}
		return true
	})

	page.FullText = textutil.Normalize(fullTextSelection(doc).Text())

	return page, hrefs
}

// fullTextSelection returns <main>, else <article>, else <body>, else the
// whole document.
func fullTextSelection(doc *goquery.Document) *goquery.Selection {
	for _, selector := range []string{"main", "article", "body"} {
		if s := doc.Find(selector).First(); s.Length() > 0 {
			return s
		}
	}
	return doc.Selection
}

// headingLevel maps "h1".."h6" to 1..6.
func headingLevel(tag string) int {
	if len(tag) != 2 || tag[0] != 'h' || tag[1] < '1' || tag[1] > '6' {
		return 0
	}
	return int(tag[1] - '0')
}
