package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultMaxPages bounds a crawl when the user does not say otherwise.
	// Fifty pages covers a typical small site and keeps a polite crawl
	// under a minute at the default delay.
	DefaultMaxPages = 50

	// DefaultTimeout is the per-request timeout. A page that has not
	// arrived after 15 seconds is treated as a fetch failure.
	DefaultTimeout = 15 * time.Second

	// DefaultCrawlDelay is the pause between two requests made by the same
	// worker. This is a politeness setting toward the target server.
	DefaultCrawlDelay = 1 * time.Second

	// DefaultLinkFanout is the number of newly discovered links that a single
	// page may add to the frontier.
	DefaultLinkFanout = 10

	// DefaultMaxLinksPerPage caps Page.Links.
	DefaultMaxLinksPerPage = 50

	// DefaultMaxImagesPerPage caps Page.Images.
	DefaultMaxImagesPerPage = 20

	// DefaultWorkers keeps the crawl strictly sequential.
	DefaultWorkers = 1

	// MaxWorkers is the upper bound for the worker pool. A single-domain
	// crawler has no business opening more connections than this.
	MaxWorkers = 8

	// DefaultMaxBodySize limits the response body read per page.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// AppName is the application name used for XDG directory paths.
	AppName = "sitescraper"

	// DefaultUserAgent identifies sitescraper in HTTP requests so that site
	// operators can recognise the traffic in their logs.
	DefaultUserAgent = "sitescraper/1.0 (+https://github.com/nao1215/sitescraper)"
)

// Report formats accepted by Config.ReportFormat.
const (
	FormatSimple   = "simple"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
	FormatText     = "text"
)

// ReportFormats lists every supported report format in display order.
var ReportFormats = []string{FormatSimple, FormatJSON, FormatMarkdown, FormatHTML, FormatText}

// Config holds all options for a single crawl invocation.
// It is built from CLI flags and the optional site file, validated once,
// and then handed to the pipeline.
type Config struct {
	// SeedURL is the URL the crawl starts from. NormalizeSeedURL is applied
	// before validation, so a bare "example.com" becomes "https://example.com/".
	SeedURL string

	// MaxPages is the hard ceiling on successfully scraped pages.
	MaxPages int

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// CrawlDelay is the pause between requests of one worker.
	CrawlDelay time.Duration

	// LinkFanout is the maximum number of new URLs a page may enqueue.
	LinkFanout int

	// MaxLinksPerPage and MaxImagesPerPage cap the per-page collections.
	MaxLinksPerPage  int
	MaxImagesPerPage int

	// Workers is the number of concurrent fetch workers. 1 means sequential.
	// The crawl delay applies to each worker separately, so N workers may
	// issue up to N requests per delay period.
	Workers int

	// RateLimit is an optional global ceiling in requests per second shared
	// by all workers. Zero disables it.
	RateLimit float64

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" form.
	ProxyAddress string

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes.
	MaxBodySize int64

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the explicit site file path, if any.
	ConfigFilePath string

	// SiteConfigs holds the parsed site file. Never nil after buildConfig.
	SiteConfigs *File

	// ReportFormat selects the report printed to stdout or ReportFile.
	ReportFormat string

	// ReportFile redirects the report to a file.
	ReportFile string

	// OutputDir, when set, receives every report format at once
	// (scraped_data.json, scraped_content.md, scraped_website.html,
	// scraped_data.txt).
	OutputDir string

	// DBDir is the directory of the history database.
	DBDir string

	// SaveToDB stores the crawl result in the history database.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		MaxPages:         DefaultMaxPages,
		Timeout:          DefaultTimeout,
		CrawlDelay:       DefaultCrawlDelay,
		LinkFanout:       DefaultLinkFanout,
		MaxLinksPerPage:  DefaultMaxLinksPerPage,
		MaxImagesPerPage: DefaultMaxImagesPerPage,
		Workers:          DefaultWorkers,
		UserAgent:        DefaultUserAgent,
		MaxBodySize:      DefaultMaxBodySize,
		ReportFormat:     FormatSimple,
		SiteConfigs:      &File{Sites: make(map[string]SiteConfig)},
	}
}

// XDGDataDir returns the XDG data directory for sitescraper.
// On Linux: ~/.local/share/sitescraper
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for sitescraper.
// On Linux: ~/.config/sitescraper
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// NormalizeSeedURL turns user input into an absolute http(s) URL.
// A missing scheme defaults to https and an empty path becomes "/".
func NormalizeSeedURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrNoSeedURL
	}

	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidSeedURL, err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidSeedURL, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidSeedURL)
	}

	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String(), nil
}

// Validate checks if the configuration is valid and returns the first
// problem found.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SeedURL) == "" {
		return ErrNoSeedURL
	}

	if _, err := NormalizeSeedURL(c.SeedURL); err != nil {
		return err
	}

	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}

	if c.LinkFanout <= 0 {
		return ErrInvalidLinkFanout
	}

	if c.Workers <= 0 || c.Workers > MaxWorkers {
		return ErrInvalidWorkers
	}

	if c.RateLimit < 0 {
		return ErrInvalidRateLimit
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if !IsReportFormat(c.ReportFormat) {
		return ErrUnknownReportFormat
	}

	if c.OutputDir != "" && c.ReportFile != "" {
		return ErrConflictingReportOutputs
	}

	return nil
}

// IsReportFormat reports whether format is one of ReportFormats.
func IsReportFormat(format string) bool {
	for _, f := range ReportFormats {
		if f == format {
			return true
		}
	}
	return false
}

// SeedHost returns the lower-cased host (with port) of the seed URL,
// which is the key used to look up site configuration.
func (c *Config) SeedHost() string {
	normalized, err := NormalizeSeedURL(c.SeedURL)
	if err != nil {
		return ""
	}
	u, err := url.Parse(normalized)
	if err != nil {
		return ""
	}
	return u.Host
}

// ApplySiteConfig overlays site-level overrides on the crawl settings.
// Only MaxPages and Delay live on both sides; the rest of SiteConfig is
// request-level and is consumed by the fetcher.
func (c *Config) ApplySiteConfig(site SiteConfig) {
	if site.MaxPages > 0 {
		c.MaxPages = site.MaxPages
	}
	if site.Delay != nil {
		c.CrawlDelay = *site.Delay
	}
}
