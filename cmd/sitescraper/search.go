package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nao1215/sitescraper/internal/config"
	"github.com/nao1215/sitescraper/internal/database"
	"github.com/nao1215/sitescraper/internal/model"
	"github.com/nao1215/sitescraper/internal/report"
	"github.com/nao1215/sitescraper/internal/search"
	"github.com/spf13/cobra"
)

// NewSearchCmd creates the search command.
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the content of scraped pages",
		Long: fmt.Sprintf(`Search finds the pages whose title or text contains the query.

Matching ignores case. The query must be at least %d characters long.
Pages can come from a JSON export, a stored run, or the latest stored
run of a domain.

Examples:
  # Search a JSON export
  sitescraper search --input out/scraped_data.json "garden tools"

  # Search a stored run
  sitescraper search --run-id 7 pricing

  # Search the latest run of a domain
  sitescraper search --domain example.com pricing

  # Output matches as JSON
  sitescraper search --domain example.com --json pricing`, search.MinQueryLength),
		Args: cobra.ExactArgs(1),
		RunE: runSearchCmd,
	}

	// Source flags
	cmd.Flags().StringP("input", "i", "",
		"JSON export produced by 'sitescraper crawl -f json' or --out-dir")
	cmd.Flags().Int64P("run-id", "r", 0,
		"Search the stored run with this ID")
	cmd.Flags().StringP("domain", "D", "",
		"Search the latest stored run of this domain")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output matches in JSON format")

	return cmd
}

// runSearchCmd executes the search command.
func runSearchCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	input, err := flags.GetString("input")
	if err != nil {
		return err
	}
	runID, err := flags.GetInt64("run-id")
	if err != nil {
		return err
	}
	domain, err := flags.GetString("domain")
	if err != nil {
		return err
	}
	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return err
	}
	jsonOutput, err := flags.GetBool("json")
	if err != nil {
		return err
	}

	sources := 0
	for _, set := range []bool{input != "", runID != 0, domain != ""} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return errors.New("specify exactly one of --input, --run-id or --domain")
	}

	var result *model.CrawlResult
	if input != "" {
		result, err = loadExport(input)
	} else {
		if dbDir == "" {
			dbDir = config.XDGDataDir()
		}
		result, err = loadStoredRun(cmd.Context(), dbDir, runID, normalizeDomain(domain))
	}
	if err != nil {
		return err
	}

	matches, err := search.Search(result.Pages, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(matches)
	}
	outputMatchesText(out, args[0], len(result.Pages), matches)
	return nil
}

// loadExport reads a JSON export from path.
func loadExport(path string) (*model.CrawlResult, error) {
	f, err := os.Open(path) //nolint:gosec // path is given by the user
	if err != nil {
		return nil, fmt.Errorf("failed to open export: %w", err)
	}
	defer f.Close()

	return report.ReadJSON(f)
}

// loadStoredRun loads run id, or the latest run of domain when id is zero.
func loadStoredRun(ctx context.Context, dbDir string, id int64, domain string) (*model.CrawlResult, error) {
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if id != 0 {
		return db.GetRun(ctx, id)
	}

	runs, err := db.LatestRuns(ctx, domain, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("no crawl history found for %s", domain)
	}
	return runs[0], nil
}

// outputMatchesText prints matches in human-readable form.
func outputMatchesText(out io.Writer, query string, pageCount int, matches []search.Match) {
	if len(matches) == 0 {
		fmt.Fprintf(out, "No pages match %q (%d pages searched)\n", query, pageCount)
		return
	}

	fmt.Fprintf(out, "Found %q in %d of %d pages:\n", query, len(matches), pageCount)
	for _, m := range matches {
		fmt.Fprintf(out, "\n%d. %s\n", m.Index, m.Title)
		fmt.Fprintf(out, "   %s\n", m.URL)
		fmt.Fprintf(out, "   %d occurrence(s)\n", m.Occurrences)
		if m.Snippet != "" {
			fmt.Fprintf(out, "   %s\n", m.Snippet)
		}
	}
}
