package model

import (
	"net"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// CrawlResult is everything a crawl produces: the pages in append order,
// the fetch failures, and the stats once the analyzer has run.
// Renderers and the history database consume this type only.
type CrawlResult struct {
	// SeedURL is the canonical URL the crawl started from.
	SeedURL string `json:"seed_url"`

	// Domain is the host (with port, if any) of SeedURL. Only URLs on this
	// exact host are crawled.
	Domain string `json:"domain"`

	// StartedAt and FinishedAt bracket the crawl.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Pages are the scraped pages, at most MaxPages of them.
	Pages []*Page `json:"pages"`

	// Failures lists URLs whose single fetch attempt failed.
	Failures []FetchFailure `json:"failures,omitempty"`

	// Cancelled is true when the crawl was stopped from outside before the
	// frontier was exhausted or the page limit was reached.
	Cancelled bool `json:"cancelled,omitempty"`

	// Stats is nil until the analyzer has run.
	Stats *CorpusStats `json:"stats,omitempty"`
}

// FetchFailure records a URL that could not be fetched or parsed.
type FetchFailure struct {
	URL        string    `json:"url"`
	StatusCode int       `json:"status_code,omitempty"`
	Reason     string    `json:"reason"`
	At         time.Time `json:"at"`
}

// NewCrawlResult creates an empty result for seedURL.
func NewCrawlResult(seedURL string) *CrawlResult {
	r := &CrawlResult{
		SeedURL:   seedURL,
		StartedAt: time.Now(),
		Pages:     make([]*Page, 0),
	}
	if u, err := url.Parse(seedURL); err == nil {
		r.Domain = strings.ToLower(u.Host)
	}
	return r
}

// Duration returns how long the crawl took, or zero while it is running.
func (r *CrawlResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// RegistrableDomain returns the eTLD+1 of Domain ("blog.example.co.uk" →
// "example.co.uk"). IP addresses, localhost and hosts without a public
// suffix are returned as they are.
func (r *CrawlResult) RegistrableDomain() string {
	return RegistrableDomain(r.Domain)
}

// RegistrableDomain returns the eTLD+1 of host, ignoring any port.
func RegistrableDomain(host string) string {
	hostname := host
	if h, _, err := net.SplitHostPort(host); err == nil {
		hostname = h
	}
	if hostname == "" || net.ParseIP(hostname) != nil {
		return hostname
	}

	etld1, err := publicsuffix.EffectiveTLDPlusOne(hostname)
	if err != nil {
		return hostname
	}
	return etld1
}
