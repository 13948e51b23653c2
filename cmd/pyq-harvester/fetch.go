// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch URL",
	Short: "Store a single paper in the subject library",
	Long: `Fetch retrieves one paper page, saves its raw document and images under the
work directory, and merges the normalized exam into the library. The exam is
routed by its subject unless --subject names a library document or subject.`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().String("subject", "", "library document (file, slug or subject name) to store the exam in")
	fetchCmd.Flags().String("path", "", "slash-separated raw document path under the work directory, e.g. Exam/Course/Bundle/Paper")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	subject, _ := cmd.Flags().GetString("subject")
	rawPath, _ := cmd.Flags().GetString("path")

	var parts []string
	for _, p := range strings.Split(rawPath, "/") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}

	c, err := buildComponents(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	out := cmd.OutOrStdout()
	res, err := c.pipeline.ProcessInto(cmd.Context(), args[0], parts, subject)
	if err != nil {
		fmt.Fprintf(out, "failed  %s: %v\n", args[0], err)
		appLog.Error("fetch failed", "url", args[0], "error", err)
		return nil
	}
	fmt.Fprintf(out, "stored  %s (%d questions, %d/%d images) -> %s\n",
		res.ExamID, res.Questions, res.Images, res.ImageRefs, res.LibraryPath)
	fmt.Fprintf(out, "raw document: %s\n", res.RawPath)
	return nil
}
