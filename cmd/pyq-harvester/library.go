// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pyq-harvester/internal/ledger"
	"github.com/pdiddy/pyq-harvester/internal/library"
)

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Inspect the subject library and harvest ledger",
}

var libraryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List subject documents with exam and question counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		summaries, err := store.List()
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "FILE\tSUBJECT\tCODE\tEXAMS\tQUESTIONS")
		for _, s := range summaries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", s.File, s.Meta.Name, s.Meta.Code, s.Exams, s.Questions)
		}
		return tw.Flush()
	},
}

var libraryIndexCmd = &cobra.Command{
	Use:   "index",
	Short: "Write index.json summarizing every subject document",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		path, err := store.WriteIndex()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "index written to %s\n", path)
		return nil
	},
}

var libraryLedgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "List papers recorded in the harvest ledger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		l, err := ledger.OpenInDir(cfg.WorkDir)
		if err != nil {
			return err
		}
		defer l.Close()

		entries, err := l.List(cmd.Context())
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "HARVESTED\tEXAM\tSUBJECT\tQUESTIONS\tURL")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
				e.HarvestedAt.Local().Format("2006-01-02 15:04"), e.ExamID, e.Subject, e.Questions, e.PaperURL)
		}
		return tw.Flush()
	},
}

func init() {
	libraryCmd.AddCommand(libraryListCmd, libraryIndexCmd, libraryLedgerCmd)
	rootCmd.AddCommand(libraryCmd)
}

func openStore() (*library.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return library.NewStore(cfg.Library, appLog.With("stage", "library"))
}
