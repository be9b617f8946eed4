package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/sitescraper/internal/config"
	"github.com/nao1215/sitescraper/internal/database"
	"github.com/nao1215/sitescraper/internal/report"
	"github.com/spf13/cobra"
)

// NewHistoryCmd creates the history command.
// This command lists and compares crawl runs stored in the database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [domain]",
		Short: "List and compare previous crawls",
		Long: `History shows the crawls stored in the local database.

Without arguments it lists every crawled domain. With a domain it lists
the runs of that domain, newest first. With --compare it shows how the
site changed between two runs:
- Pages that appeared since the previous run
- Pages that disappeared
- Pages whose title or text changed
- Changes in page, word, link and image counts

Examples:
  # List all crawled domains
  sitescraper history

  # List the runs of a domain
  sitescraper history example.com

  # Compare the latest two runs
  sitescraper history --compare example.com

  # Compare the latest run with run 5
  sitescraper history --compare --with-run-id 5 example.com

  # Output the comparison as JSON
  sitescraper history --compare --json example.com

  # Print a stored run as Markdown
  sitescraper history --show 7 --format markdown

  # Delete a stored run
  sitescraper history --delete 7`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	// Comparison flags
	cmd.Flags().BoolP("compare", "C", false,
		"Compare the latest run of the domain with the previous one")
	cmd.Flags().Int64P("with-run-id", "i", 0,
		"Compare the latest run with a specific run by ID (use 'history <domain>' to see IDs)")

	// Stored run flags
	cmd.Flags().Int64("show", 0,
		"Print the stored run with this ID as a report")
	cmd.Flags().StringP("format", "f", config.FormatSimple,
		"Report format for --show: "+strings.Join(config.ReportFormats, "|"))
	cmd.Flags().Int64("delete", 0,
		"Delete the stored run with this ID")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")

	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	compare, err := flags.GetBool("compare")
	if err != nil {
		return err
	}
	withRunID, err := flags.GetInt64("with-run-id")
	if err != nil {
		return err
	}
	showID, err := flags.GetInt64("show")
	if err != nil {
		return err
	}
	deleteID, err := flags.GetInt64("delete")
	if err != nil {
		return err
	}
	format, err := flags.GetString("format")
	if err != nil {
		return err
	}
	jsonOutput, err := flags.GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := flags.GetBool("markdown")
	if err != nil {
		return err
	}
	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return err
	}

	// Validate arguments before opening the database.
	if jsonOutput && markdownOutput {
		return errors.New("--json and --markdown cannot be used together")
	}
	if withRunID != 0 {
		compare = true
	}
	var domain string
	if len(args) > 0 {
		domain = normalizeDomain(args[0])
	}
	if compare && domain == "" {
		return errors.New("domain is required for --compare (run 'sitescraper history' to see crawled domains)")
	}
	if showID != 0 && !config.IsReportFormat(format) {
		return fmt.Errorf("%w: %q", config.ErrUnknownReportFormat, format)
	}

	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case deleteID != 0:
		if err := db.DeleteRun(ctx, deleteID); err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted run %d\n", deleteID)
		return nil
	case showID != 0:
		return showRun(ctx, out, db, showID, format)
	case compare:
		return runComparison(ctx, out, db, domain, withRunID, jsonOutput, markdownOutput)
	case domain != "":
		return listRunHistory(ctx, out, db, domain)
	default:
		return listCrawledDomains(ctx, out, db)
	}
}

// normalizeDomain accepts a bare host or a URL and returns the lower-cased
// host under which runs are stored.
func normalizeDomain(arg string) string {
	arg = strings.TrimSpace(arg)
	if strings.Contains(arg, "://") {
		if u, err := url.Parse(arg); err == nil && u.Host != "" {
			return strings.ToLower(u.Host)
		}
	}
	return strings.ToLower(strings.TrimSuffix(arg, "/"))
}

// listCrawledDomains lists all domains that have runs in the database.
func listCrawledDomains(ctx context.Context, out io.Writer, db *database.CrawlDB) error {
	domains, err := db.ListDomains(ctx)
	if err != nil {
		return fmt.Errorf("failed to list domains: %w", err)
	}

	if len(domains) == 0 {
		fmt.Fprintln(out, "No crawled domains found in the database.")
		fmt.Fprintln(out, "\nUse 'sitescraper crawl <url>' to crawl a website.")
		return nil
	}

	fmt.Fprintf(out, "Crawled domains (%d):\n\n", len(domains))
	for _, domain := range domains {
		fmt.Fprintf(out, "  • %s\n", domain)
	}
	fmt.Fprintln(out, "\nUse 'sitescraper history <domain>' to see the runs of a domain.")

	return nil
}

// listRunHistory lists all runs for a specific domain.
func listRunHistory(ctx context.Context, out io.Writer, db *database.CrawlDB, domain string) error {
	runs, err := db.ListRuns(ctx, domain)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintf(out, "No crawl history found for %s\n", domain)
		fmt.Fprintln(out, "\nUse 'sitescraper crawl' to crawl this site.")
		return nil
	}

	fmt.Fprintf(out, "Crawl history for %s (%d runs):\n\n", domain, len(runs))
	fmt.Fprintf(out, "  %-6s  %-20s  %-6s  %-8s  %-8s  %s\n", "ID", "Date", "Pages", "Failed", "Words", "Status")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 64))

	for _, run := range runs {
		status := "complete"
		if run.Cancelled {
			status = "cancelled"
		}
		fmt.Fprintf(out, "  %-6d  %-20s  %-6d  %-8d  %-8d  %s\n",
			run.ID,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.PageCount,
			run.FailureCount,
			run.Stats.TotalWords,
			status,
		)
	}

	fmt.Fprintln(out, "\nUse 'sitescraper history --compare <domain>' to compare the latest two runs.")
	fmt.Fprintln(out, "Use 'sitescraper history --show <id>' to print a stored run.")

	return nil
}

// showRun renders a stored run with the report writer for format.
func showRun(ctx context.Context, out io.Writer, db *database.CrawlDB, id int64, format string) error {
	result, err := db.GetRun(ctx, id)
	if err != nil {
		return err
	}

	writer, err := report.NewWriter(format, out, getVersion())
	if err != nil {
		return err
	}
	if _, err := writer.Write(result); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// runComparison compares the latest run of domain with the previous run,
// or with run withRunID when it is non-zero.
func runComparison(ctx context.Context, out io.Writer, db *database.CrawlDB, domain string, withRunID int64, jsonOutput, markdownOutput bool) error {
	runs, err := db.ListRuns(ctx, domain)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}

	if len(runs) == 0 {
		return fmt.Errorf("no crawl history found for %s", domain)
	}

	if len(runs) < 2 && withRunID == 0 {
		return fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(runs))
	}

	current := runs[0]
	var previous database.RunMetadata
	if withRunID != 0 {
		meta, err := db.GetRunMetadata(ctx, withRunID)
		if err != nil {
			return err
		}
		if meta.Domain != domain {
			return fmt.Errorf("run %d belongs to %s, not %s", withRunID, meta.Domain, domain)
		}
		if meta.ID == current.ID {
			return fmt.Errorf("run %d is the latest run; choose an older run to compare with", withRunID)
		}
		previous = *meta
	} else {
		previous = runs[1]
	}

	previousPages, err := db.PageFingerprints(ctx, previous.ID)
	if err != nil {
		return err
	}
	currentPages, err := db.PageFingerprints(ctx, current.ID)
	if err != nil {
		return err
	}

	result := compareRuns(previous, current, previousPages, currentPages)

	switch {
	case jsonOutput:
		return outputComparisonJSON(out, result)
	case markdownOutput:
		return outputComparisonMarkdown(out, result)
	default:
		return outputComparisonText(out, result)
	}
}

// ComparisonResult describes how a site changed between two runs.
type ComparisonResult struct {
	// Domain is the crawled host.
	Domain string `json:"domain"`

	// PreviousRun and CurrentRun summarize the compared runs.
	PreviousRun RunSummary `json:"previous_run"`
	CurrentRun  RunSummary `json:"current_run"`

	// AddedPages are URLs scraped in the current run only.
	AddedPages []string `json:"added_pages,omitempty"`

	// RemovedPages are URLs scraped in the previous run only.
	RemovedPages []string `json:"removed_pages,omitempty"`

	// ChangedPages are URLs scraped in both runs whose fingerprint differs.
	ChangedPages []string `json:"changed_pages,omitempty"`

	// UnchangedCount is the number of pages with identical content.
	UnchangedCount int `json:"unchanged_count"`

	// StatsChange holds current minus previous for each figure.
	StatsChange StatsChange `json:"stats_change"`
}

// RunSummary contains the figures of one run shown in a comparison.
type RunSummary struct {
	ID                 int64  `json:"id"`
	StartedAt          string `json:"started_at"`
	PageCount          int    `json:"page_count"`
	FailureCount       int    `json:"failure_count"`
	TotalWords         int    `json:"total_words"`
	TotalLinks         int    `json:"total_links"`
	TotalImages        int    `json:"total_images"`
	ReadingTimeMinutes int    `json:"reading_time_minutes"`
}

// StatsChange is the difference between two RunSummary values.
type StatsChange struct {
	PageDelta        int `json:"page_delta"`
	FailureDelta     int `json:"failure_delta"`
	WordDelta        int `json:"word_delta"`
	LinkDelta        int `json:"link_delta"`
	ImageDelta       int `json:"image_delta"`
	ReadingTimeDelta int `json:"reading_time_delta"`
}

// summarizeRun extracts the compared figures from run metadata.
func summarizeRun(meta database.RunMetadata) RunSummary {
	return RunSummary{
		ID:                 meta.ID,
		StartedAt:          meta.StartedAt.Local().Format("2006-01-02 15:04:05"),
		PageCount:          meta.PageCount,
		FailureCount:       meta.FailureCount,
		TotalWords:         meta.Stats.TotalWords,
		TotalLinks:         meta.Stats.TotalLinks,
		TotalImages:        meta.Stats.TotalImages,
		ReadingTimeMinutes: meta.Stats.ReadingTimeMinutes,
	}
}

// compareRuns compares two runs given their metadata and their
// url → fingerprint maps. URL lists are sorted.
func compareRuns(previous, current database.RunMetadata, previousPages, currentPages map[string]string) *ComparisonResult {
	result := &ComparisonResult{
		Domain:      current.Domain,
		PreviousRun: summarizeRun(previous),
		CurrentRun:  summarizeRun(current),
	}

	for u, fp := range currentPages {
		prevFP, exists := previousPages[u]
		switch {
		case !exists:
			result.AddedPages = append(result.AddedPages, u)
		case prevFP != fp:
			result.ChangedPages = append(result.ChangedPages, u)
		default:
			result.UnchangedCount++
		}
	}
	for u := range previousPages {
		if _, exists := currentPages[u]; !exists {
			result.RemovedPages = append(result.RemovedPages, u)
		}
	}

	slices.Sort(result.AddedPages)
	slices.Sort(result.RemovedPages)
	slices.Sort(result.ChangedPages)

	prev, cur := result.PreviousRun, result.CurrentRun
	result.StatsChange = StatsChange{
		PageDelta:        cur.PageCount - prev.PageCount,
		FailureDelta:     cur.FailureCount - prev.FailureCount,
		WordDelta:        cur.TotalWords - prev.TotalWords,
		LinkDelta:        cur.TotalLinks - prev.TotalLinks,
		ImageDelta:       cur.TotalImages - prev.TotalImages,
		ReadingTimeDelta: cur.ReadingTimeMinutes - prev.ReadingTimeMinutes,
	}

	return result
}

// HasChanges reports whether any page was added, removed or changed.
func (r *ComparisonResult) HasChanges() bool {
	return len(r.AddedPages)+len(r.RemovedPages)+len(r.ChangedPages) > 0
}

// comparisonRows returns the metric table shared by the text and
// Markdown outputs.
func comparisonRows(result *ComparisonResult) [][]string {
	prev, cur, delta := result.PreviousRun, result.CurrentRun, result.StatsChange
	row := func(name string, p, c, d int) []string {
		return []string{name, strconv.Itoa(p), strconv.Itoa(c), formatDelta(d)}
	}
	return [][]string{
		row("Pages", prev.PageCount, cur.PageCount, delta.PageDelta),
		row("Failures", prev.FailureCount, cur.FailureCount, delta.FailureDelta),
		row("Words", prev.TotalWords, cur.TotalWords, delta.WordDelta),
		row("Links", prev.TotalLinks, cur.TotalLinks, delta.LinkDelta),
		row("Images", prev.TotalImages, cur.TotalImages, delta.ImageDelta),
		row("Reading time (min)", prev.ReadingTimeMinutes, cur.ReadingTimeMinutes, delta.ReadingTimeDelta),
	}
}

// outputComparisonJSON outputs the comparison result in JSON format.
func outputComparisonJSON(out io.Writer, result *ComparisonResult) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// outputComparisonMarkdown outputs the comparison result in Markdown format.
func outputComparisonMarkdown(out io.Writer, result *ComparisonResult) error {
	md := markdown.NewMarkdown(out).
		H1("Crawl Comparison: " + result.Domain).
		H2("Summary").
		Table(markdown.TableSet{
			Header: []string{"Metric", "Previous", "Current", "Change"},
			Rows: append([][]string{
				{"Run", "#" + strconv.FormatInt(result.PreviousRun.ID, 10), "#" + strconv.FormatInt(result.CurrentRun.ID, 10), "-"},
				{"Date", result.PreviousRun.StartedAt, result.CurrentRun.StartedAt, "-"},
			}, comparisonRows(result)...),
		})

	if len(result.AddedPages) > 0 {
		md.H2(fmt.Sprintf("Added Pages (%d)", len(result.AddedPages))).BulletList(result.AddedPages...)
	}
	if len(result.RemovedPages) > 0 {
		md.H2(fmt.Sprintf("Removed Pages (%d)", len(result.RemovedPages))).BulletList(result.RemovedPages...)
	}
	if len(result.ChangedPages) > 0 {
		md.H2(fmt.Sprintf("Changed Pages (%d)", len(result.ChangedPages))).BulletList(result.ChangedPages...)
	}
	if result.UnchangedCount > 0 {
		md.HorizontalRule().PlainTextf("*%d pages unchanged*", result.UnchangedCount)
	}

	return md.Build()
}

// outputComparisonText outputs the comparison result in human-readable text format.
func outputComparisonText(out io.Writer, result *ComparisonResult) error {
	fmt.Fprintf(out, "Crawl Comparison: %s\n", result.Domain)
	fmt.Fprintln(out, strings.Repeat("=", 60))

	fmt.Fprintf(out, "\nPrevious run: #%d  %s\n", result.PreviousRun.ID, result.PreviousRun.StartedAt)
	fmt.Fprintf(out, "Current run:  #%d  %s\n", result.CurrentRun.ID, result.CurrentRun.StartedAt)

	fmt.Fprintln(out, "\nSummary:")
	fmt.Fprintf(out, "  %-20s  %-10s  %-10s  %-10s\n", "Metric", "Previous", "Current", "Change")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 56))
	for _, row := range comparisonRows(result) {
		fmt.Fprintf(out, "  %-20s  %-10s  %-10s  %-10s\n", row[0], row[1], row[2], row[3])
	}

	if len(result.AddedPages) > 0 {
		fmt.Fprintf(out, "\nAdded Pages (%d):\n", len(result.AddedPages))
		for _, u := range result.AddedPages {
			fmt.Fprintf(out, "  [+] %s\n", u)
		}
	}

	if len(result.RemovedPages) > 0 {
		fmt.Fprintf(out, "\nRemoved Pages (%d):\n", len(result.RemovedPages))
		for _, u := range result.RemovedPages {
			fmt.Fprintf(out, "  [-] %s\n", u)
		}
	}

	if len(result.ChangedPages) > 0 {
		fmt.Fprintf(out, "\nChanged Pages (%d):\n", len(result.ChangedPages))
		for _, u := range result.ChangedPages {
			fmt.Fprintf(out, "  [~] %s\n", u)
		}
	}

	if !result.HasChanges() {
		fmt.Fprintln(out, "\nNo page changes.")
	}
	if result.UnchangedCount > 0 {
		fmt.Fprintf(out, "\nUnchanged: %d pages\n", result.UnchangedCount)
	}

	return nil
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
