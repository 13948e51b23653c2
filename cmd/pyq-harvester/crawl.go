// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pyq-harvester/internal/crawl"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Walk the platform hierarchy and store every paper",
	Long: `Crawl fetches the exam list, then every course, bundle and paper below it,
depth-first and in platform order. Each paper is saved as a raw document under
the work directory, its images are downloaded, and the normalized exam is
merged into its subject library. Failed papers are reported and skipped.

The crawl stops once --limit papers are stored. --filter restricts the crawl
to exams whose name contains the given text.`,
	Args: cobra.NoArgs,
	RunE: runCrawl,
}

func init() {
	crawlCmd.Flags().Int("limit", 0, "stop after storing this many papers (0 = no limit)")
	crawlCmd.Flags().String("filter", "", "only crawl exams whose name contains this text (case-insensitive)")
	crawlCmd.Flags().Bool("skip-harvested", false, "skip papers already recorded in the harvest ledger")
	crawlCmd.Flags().Duration("delay", 0, "politeness delay between paper fetches (default 1s)")
	crawlCmd.Flags().String("report", "", "write a YAML crawl report to this file")

	bindFlags(crawlCmd.Flags(), map[string]string{
		"crawl.limit":          "limit",
		"crawl.filter":         "filter",
		"crawl.skip_harvested": "skip-harvested",
		"crawl.delay":          "delay",
	})

	rootCmd.AddCommand(crawlCmd)
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Crawl.Limit < 0 {
		return fmt.Errorf("--limit must not be negative")
	}

	c, err := buildComponents(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	out := cmd.OutOrStdout()
	crawler := crawl.New(c.client, c.pipeline, cfg.Crawl, appLog.With("stage", "crawl"), out)

	summary, crawlErr := crawler.Discover(cmd.Context(), cfg.Crawl.Limit, cfg.Crawl.NameFilter)
	switch {
	case errors.Is(crawlErr, context.Canceled):
		fmt.Fprintln(out, "crawl interrupted")
	case crawlErr != nil:
		appLog.Error("crawl aborted", "error", crawlErr)
	}

	if report, _ := cmd.Flags().GetString("report"); report != "" {
		if err := crawl.WriteReport(report, summary); err != nil {
			appLog.Error("writing crawl report", "error", err)
		} else {
			fmt.Fprintf(out, "report written to %s\n", report)
		}
	}
	return nil
}
