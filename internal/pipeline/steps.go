package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nao1215/sitescraper/internal/analyzer"
	"github.com/nao1215/sitescraper/internal/config"
	"github.com/nao1215/sitescraper/internal/crawler"
	"github.com/nao1215/sitescraper/internal/database"
	"github.com/nao1215/sitescraper/internal/model"
	"github.com/nao1215/sitescraper/internal/report"
)

// ErrNoDestination is returned by an ExportStep without output writer or path.
var ErrNoDestination = errors.New("export step has no destination")

// CrawlStep crawls the site of the result's seed URL and fills the result
// with the scraped pages and failures.
//
// Design decision: Crawling is a step like any other because:
// 1. Tests can replace it with a canned result
// 2. Its configuration (limits, delay, patterns) stays out of the CLI
// 3. Cancellation is reported through the result, not as an error
type CrawlStep struct {
	// spider performs the crawl.
	spider *crawler.Spider

	// logger for structured logging.
	logger *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithCrawlLogger sets a custom logger for the crawl step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a crawl step around spider.
func NewCrawlStep(spider *crawler.Spider, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		spider: spider,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do executes the crawl step.
func (s *CrawlStep) Do(ctx context.Context, result *model.CrawlResult) error {
	crawled, err := s.spider.Crawl(ctx, result.SeedURL)
	if err != nil {
		return fmt.Errorf("crawl failed: %w", err)
	}

	*result = *crawled

	s.logger.Info("crawl completed",
		"domain", result.Domain,
		"pages", len(result.Pages),
		"failures", len(result.Failures),
		"cancelled", result.Cancelled,
	)

	return nil
}

// AnalyzeStep computes the corpus statistics of the result.
type AnalyzeStep struct{}

// NewAnalyzeStep creates an analyze step.
func NewAnalyzeStep() *AnalyzeStep {
	return &AnalyzeStep{}
}

// Name returns the step name.
func (s *AnalyzeStep) Name() string {
	return "analyze"
}

// Do executes the analyze step.
func (s *AnalyzeStep) Do(_ context.Context, result *model.CrawlResult) error {
	stats := analyzer.Analyze(result.Pages)
	result.Stats = &stats
	return nil
}

// ExportStep renders the result in one report format.
// The destination is opened when the step runs, so a pipeline that stops
// early never leaves empty report files behind.
type ExportStep struct {
	// format is one of config.ReportFormats.
	format string

	// path is the destination file; empty means output.
	path string

	// output is the destination when path is empty.
	output io.Writer

	// version is recorded in JSON exports.
	version string

	// logger for structured logging.
	logger *slog.Logger
}

// ExportStepOption configures an ExportStep.
type ExportStepOption func(*ExportStep)

// WithExportVersion sets the version recorded in JSON exports.
func WithExportVersion(version string) ExportStepOption {
	return func(s *ExportStep) {
		s.version = version
	}
}

// WithExportLogger sets a custom logger for the export step.
func WithExportLogger(logger *slog.Logger) ExportStepOption {
	return func(s *ExportStep) {
		s.logger = logger
	}
}

// NewExportStep creates a step that writes the report in format to output.
func NewExportStep(format string, output io.Writer, opts ...ExportStepOption) *ExportStep {
	s := &ExportStep{
		format:  format,
		output:  output,
		version: "dev",
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// NewFileExportStep creates a step that writes the report in format to
// the file at path, creating parent directories as needed.
func NewFileExportStep(format, path string, opts ...ExportStepOption) *ExportStep {
	s := NewExportStep(format, nil, opts...)
	s.path = path
	return s
}

// Name returns the step name.
func (s *ExportStep) Name() string {
	return "export_" + s.format
}

// Do executes the export step.
func (s *ExportStep) Do(_ context.Context, result *model.CrawlResult) (err error) {
	output, closeFn, err := s.open()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeFn(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close report file: %w", cerr)
		}
	}()

	w, err := report.NewWriter(s.format, output, s.version)
	if err != nil {
		return err
	}
	n, err := w.Write(result)
	if err != nil {
		return fmt.Errorf("failed to write %s report: %w", s.format, err)
	}

	if s.path != "" {
		s.logger.Info("report written", "format", s.format, "path", s.path, "bytes", n)
	}
	return nil
}

// open returns the destination of the report and a function closing it.
func (s *ExportStep) open() (io.Writer, func() error, error) {
	if s.path == "" {
		if s.output == nil {
			return nil, nil, ErrNoDestination
		}
		return s.output, func() error { return nil }, nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
		return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(s.path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create report file: %w", err)
	}
	return f, f.Close, nil
}

// SaveStep stores the result in the history database.
type SaveStep struct {
	// db is the history database.
	db *database.CrawlDB

	// runID is the ID of the saved run, zero until Do succeeds.
	runID int64

	// logger for structured logging.
	logger *slog.Logger
}

// SaveStepOption configures a SaveStep.
type SaveStepOption func(*SaveStep)

// WithSaveLogger sets a custom logger for the save step.
func WithSaveLogger(logger *slog.Logger) SaveStepOption {
	return func(s *SaveStep) {
		s.logger = logger
	}
}

// NewSaveStep creates a step that saves results to db.
func NewSaveStep(db *database.CrawlDB, opts ...SaveStepOption) *SaveStep {
	s := &SaveStep{
		db:     db,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *SaveStep) Name() string {
	return "save"
}

// Do executes the save step.
func (s *SaveStep) Do(ctx context.Context, result *model.CrawlResult) error {
	id, err := s.db.SaveRun(ctx, result)
	if err != nil {
		return fmt.Errorf("failed to save crawl run: %w", err)
	}
	s.runID = id

	s.logger.Info("crawl run saved", "run_id", id, "domain", result.Domain)
	return nil
}

// RunID returns the ID of the saved run, or zero if nothing was saved.
func (s *SaveStep) RunID() int64 {
	return s.runID
}

// DefaultPipelineConfig holds the collaborators of the default pipeline
// that do not come from config.Config.
type DefaultPipelineConfig struct {
	// Output receives the report when no report file is configured.
	Output io.Writer

	// DB is the history database. Nil disables saving.
	DB *database.CrawlDB

	// Version is recorded in JSON exports.
	Version string

	// Progress is called after every scraped page.
	Progress func(pages int, pageURL string)

	// Logger is shared by the spider and the steps.
	Logger *slog.Logger
}

// DefaultPipelineOption configures a DefaultPipelineConfig.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithPipelineOutput sets the destination of the terminal report.
func WithPipelineOutput(w io.Writer) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Output = w
	}
}

// WithPipelineDB enables saving to the history database.
func WithPipelineDB(db *database.CrawlDB) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.DB = db
	}
}

// WithPipelineVersion sets the version recorded in JSON exports.
func WithPipelineVersion(version string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Version = version
	}
}

// WithPipelineProgress sets a callback invoked after every scraped page.
func WithPipelineProgress(fn func(pages int, pageURL string)) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Progress = fn
	}
}

// WithPipelineLogger sets the logger of the pipeline, the spider and the steps.
func WithPipelineLogger(logger *slog.Logger) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Logger = logger
	}
}

// DefaultPipeline creates the crawl → analyze → export → save pipeline
// for cfg. fetcher performs the HTTP requests; the CLI builds it with the
// site's cookie and headers.
//
// Design decision: We provide a default pipeline because:
// 1. Most users want every step
// 2. Reduces boilerplate in CLI
// 3. Ensures consistent ordering
//
// Reports go to cfg.OutputDir (every file format), else to cfg.ReportFile,
// else to the configured output. The run is saved when cfg.SaveToDB is
// set and a database was given. The pipeline finishes on cancellation and
// continues past export errors, so an interrupted crawl is still saved.
func DefaultPipeline(fetcher crawler.Fetcher, cfg *config.Config, opts ...DefaultPipelineOption) *Pipeline {
	pc := &DefaultPipelineConfig{
		Output:  os.Stdout,
		Version: "dev",
		Logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(pc)
	}

	var site config.SiteConfig
	if cfg.SiteConfigs != nil {
		site = cfg.SiteConfigs.GetSiteConfig(cfg.SeedHost())
	}

	extractor := crawler.NewExtractor(
		crawler.WithMaxLinks(cfg.MaxLinksPerPage),
		crawler.WithMaxImages(cfg.MaxImagesPerPage),
	)
	spiderOpts := []crawler.SpiderOption{
		crawler.WithMaxPages(cfg.MaxPages),
		crawler.WithDelay(cfg.CrawlDelay),
		crawler.WithLinkFanout(cfg.LinkFanout),
		crawler.WithWorkers(cfg.Workers),
		crawler.WithExtractor(extractor),
		crawler.WithSpiderLogger(pc.Logger),
	}
	if cfg.RateLimit > 0 {
		spiderOpts = append(spiderOpts, crawler.WithRateLimit(cfg.RateLimit))
	}
	if len(site.IgnorePatterns) > 0 {
		spiderOpts = append(spiderOpts, crawler.WithIgnorePatterns(site.IgnorePatterns))
	}
	if len(site.FollowPatterns) > 0 {
		spiderOpts = append(spiderOpts, crawler.WithFollowPatterns(site.FollowPatterns))
	}
	if pc.Progress != nil {
		spiderOpts = append(spiderOpts, crawler.WithProgress(pc.Progress))
	}

	p := New(
		WithLogger(pc.Logger),
		WithContinueOnError(true),
		WithFinishOnCancel(true),
	)
	p.AddSteps(
		NewCrawlStep(crawler.NewSpider(fetcher, spiderOpts...), WithCrawlLogger(pc.Logger)),
		NewAnalyzeStep(),
	)

	exportOpts := []ExportStepOption{
		WithExportVersion(pc.Version),
		WithExportLogger(pc.Logger),
	}
	switch {
	case cfg.OutputDir != "":
		for _, format := range report.FileFormats {
			path := filepath.Join(cfg.OutputDir, report.DefaultFileName(format))
			p.AddStep(NewFileExportStep(format, path, exportOpts...))
		}
	case cfg.ReportFile != "":
		p.AddStep(NewFileExportStep(cfg.ReportFormat, cfg.ReportFile, exportOpts...))
	default:
		p.AddStep(NewExportStep(cfg.ReportFormat, pc.Output, exportOpts...))
	}

	if cfg.SaveToDB && pc.DB != nil {
		p.AddStep(NewSaveStep(pc.DB, WithSaveLogger(pc.Logger)))
	}

	return p
}
