package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nao1215/sitescraper/internal/config"
	"github.com/nao1215/sitescraper/internal/crawler"
	"github.com/nao1215/sitescraper/internal/database"
	"github.com/nao1215/sitescraper/internal/log"
	"github.com/nao1215/sitescraper/internal/model"
	"github.com/nao1215/sitescraper/internal/pipeline"
	"github.com/spf13/cobra"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <url>",
		Short: "Crawl a website and export its content",
		Long: `Crawl starts at the given URL and follows links on the same host until
the page limit is reached or no new links are left.

For every page it records the title, meta description, headings,
paragraphs, lists, links and images. Navigation, header, footer and
sidebar content is ignored. A page that fails to load is tried once and
listed as a failure.

Press Ctrl+C to stop early; the pages scraped so far are still reported
and saved.

Examples:
  # Crawl up to 50 pages and print a summary
  sitescraper crawl example.com

  # Crawl 200 pages with four workers and no delay
  sitescraper crawl -p 200 -w 4 -d 0 https://example.com/docs/

  # Export every format into a directory
  sitescraper crawl --out-dir ./out https://example.com

  # Write a Markdown report to a file
  sitescraper crawl -f markdown -o site.md https://example.com

Configuration file (.sitescraper) example:
  sites:
    example.com:
      cookie: "session_id=abc123"
      maxPages: 200
      ignorePatterns:
        - "/logout*"`,
		Args: cobra.ExactArgs(1),
		RunE: runCrawlCmd,
	}

	// Crawl behavior flags
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages to scrape")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().DurationP("delay", "d", config.DefaultCrawlDelay,
		"Pause between two requests of the same worker")
	cmd.Flags().Int("fanout", config.DefaultLinkFanout,
		"Maximum number of new links a single page may add")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		fmt.Sprintf("Number of concurrent fetch workers (1-%d)", config.MaxWorkers))
	cmd.Flags().Float64("rate", 0,
		"Global request limit in requests per second (0 disables it)")

	// Connection flags
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy address (e.g., 127.0.0.1:1080)")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .sitescraper in current or home directory)")

	// Report flags
	cmd.Flags().StringP("format", "f", config.FormatSimple,
		"Report format: "+strings.Join(config.ReportFormats, "|"))
	cmd.Flags().StringP("output", "o", "",
		"Write the report to the specified file path (creates directories if needed)")
	cmd.Flags().String("out-dir", "",
		"Write the JSON, Markdown, HTML and text exports into this directory")

	// History flags
	cmd.Flags().Bool("no-save", false,
		"Do not save the crawl in the history database")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose, getLogJSONFlag(cmd))

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runCrawl(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	return getPersistentBool(cmd, "verbose")
}

// getLogJSONFlag retrieves the log-json flag from the command or its parent.
func getLogJSONFlag(cmd *cobra.Command) bool {
	return getPersistentBool(cmd, "log-json")
}

func getPersistentBool(cmd *cobra.Command, name string) bool {
	value, err := cmd.Flags().GetBool(name)
	if err != nil {
		value, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return value
}

// buildConfig creates a Config from cobra command flags and the site file.
// Settings from the site file apply only where the matching flag was not
// given explicitly.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error

	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.CrawlDelay, err = flags.GetDuration("delay"); err != nil {
		return nil, err
	}
	if cfg.LinkFanout, err = flags.GetInt("fanout"); err != nil {
		return nil, err
	}
	if cfg.Workers, err = flags.GetInt("workers"); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = flags.GetFloat64("rate"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.ReportFormat, err = flags.GetString("format"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.OutputDir, err = flags.GetString("out-dir"); err != nil {
		return nil, err
	}

	noSave, err := flags.GetBool("no-save")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noSave

	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	if cfg.DBDir == "" {
		cfg.DBDir = config.XDGDataDir()
	}

	cfg.Verbose = getVerboseFlag(cmd)
	cfg.ReportFormat = strings.ToLower(cfg.ReportFormat)

	// If the user named a config file, it must exist. Otherwise a missing
	// file just means no site settings.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{
			Sites: make(map[string]config.SiteConfig),
		}
	}

	if len(args) > 0 {
		cfg.SeedURL, err = config.NormalizeSeedURL(args[0])
		if err != nil {
			return nil, err
		}
	}

	site := cfg.SiteConfigs.GetSiteConfig(cfg.SeedHost())
	if flags.Changed("max-pages") {
		site.MaxPages = 0
	}
	if flags.Changed("delay") {
		site.Delay = nil
	}
	cfg.ApplySiteConfig(site)

	return cfg, nil
}

// setupLogger creates the secure logger used by every command. jsonFormat
// switches from logfmt-style text to JSON lines.
func setupLogger(w io.Writer, verbose, jsonFormat bool) *slog.Logger {
	if jsonFormat {
		return log.NewSecureJSONLogger(w, verbose)
	}
	return log.NewSecureLogger(w, verbose)
}

// runCrawl executes one crawl with the default pipeline. Progress lines go
// to progress; the terminal report goes to out.
func runCrawl(ctx context.Context, out, progress io.Writer, cfg *config.Config, logger *slog.Logger) error {
	site := cfg.SiteConfigs.GetSiteConfig(cfg.SeedHost())

	logger.Info("starting crawl",
		"seed", log.SanitizeURL(cfg.SeedURL),
		"maxPages", cfg.MaxPages,
		"workers", cfg.Workers,
		"delay", cfg.CrawlDelay,
		"saveToDB", cfg.SaveToDB,
	)

	client, err := crawler.NewHTTPClient(cfg.Timeout, cfg.ProxyAddress)
	if err != nil {
		return fmt.Errorf("failed to create HTTP client: %w", err)
	}

	fetcherOpts := []crawler.FetcherOption{
		crawler.WithUserAgent(cfg.UserAgent),
		crawler.WithTimeout(cfg.Timeout),
		crawler.WithMaxBodySize(cfg.MaxBodySize),
		crawler.WithFetcherLogger(logger),
	}
	if site.Cookie != "" {
		fetcherOpts = append(fetcherOpts, crawler.WithCookie(site.Cookie))
	}
	if len(site.Headers) > 0 {
		fetcherOpts = append(fetcherOpts, crawler.WithHeaders(site.Headers))
	}
	fetcher := crawler.NewHTTPFetcher(client, fetcherOpts...)

	pipelineOpts := []pipeline.DefaultPipelineOption{
		pipeline.WithPipelineOutput(out),
		pipeline.WithPipelineVersion(getVersion()),
		pipeline.WithPipelineLogger(logger),
		pipeline.WithPipelineProgress(func(pages int, pageURL string) {
			fmt.Fprintf(progress, "[%d/%d] %s\n", pages, cfg.MaxPages, log.SanitizeURL(pageURL))
		}),
	}

	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
		pipelineOpts = append(pipelineOpts, pipeline.WithPipelineDB(db))
	}

	fmt.Fprintf(progress, "Crawling %s...\n", log.SanitizeURL(cfg.SeedURL))

	result := model.NewCrawlResult(cfg.SeedURL)
	p := pipeline.DefaultPipeline(fetcher, cfg, pipelineOpts...)
	err = p.Execute(ctx, result)

	printCrawlSummary(progress, cfg, result)

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// printCrawlSummary reports where the results went.
func printCrawlSummary(w io.Writer, cfg *config.Config, result *model.CrawlResult) {
	status := "completed"
	if result.Cancelled {
		status = "cancelled"
	}
	fmt.Fprintf(w, "Crawl %s: %d page(s), %d failure(s) in %s\n",
		status, len(result.Pages), len(result.Failures), result.Duration().Round(time.Millisecond))

	switch {
	case cfg.OutputDir != "":
		fmt.Fprintf(w, "Exports written to %s\n", cfg.OutputDir)
	case cfg.ReportFile != "":
		fmt.Fprintf(w, "Report written to %s\n", cfg.ReportFile)
	}
}
