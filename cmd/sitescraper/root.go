package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for sitescraper.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitescraper",
		Short: "Crawl a website and export its content",
		Long: `sitescraper crawls a single website starting from a seed URL, stays on
the seed's host, and extracts titles, headings, paragraphs, lists, links
and images from every page it visits.

The scraped pages are analyzed (word counts, reading time, top keywords)
and exported as a terminal summary, JSON, Markdown, HTML or plain text.
Every crawl is saved in a local history database.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write log records to stderr as JSON lines")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewSearchCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
