// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pyq-harvester/internal/assets"
	"github.com/pdiddy/pyq-harvester/internal/normalize"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize FILE",
	Short: "Convert a saved raw paper document into a canonical exam",
	Long: `Normalize reads a raw paper document (or page props, or a bare question_paper
object) and prints the canonical exam as JSON. Images already downloaded
beside the document are referenced locally; others use the CDN or source URL.`,
	Args: cobra.ExactArgs(1),
	RunE: runNormalize,
}

func init() {
	normalizeCmd.Flags().String("out", "", "write the exam to this file instead of stdout")
	normalizeCmd.Flags().String("id", "", "exam id to use instead of a generated one")

	rootCmd.AddCommand(normalizeCmd)
}

func runNormalize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("parsing %s: %w", args[0], err)
	}

	root := normalize.Record(tree)
	imageDir, _ := root.String("local_save_dir")
	if imageDir == "" {
		imageDir = filepath.Dir(args[0])
	}
	var raw []map[string]any
	for _, q := range normalize.Questions(root) {
		raw = append(raw, map[string]any(q))
	}
	resolved := assets.OnDisk(normalize.CollectImages(raw), imageDir)

	id, _ := cmd.Flags().GetString("id")
	exam, err := normalize.New(cfg.Normalize).Build(tree, resolved, id)
	if err != nil {
		return fmt.Errorf("normalizing %s: %w", args[0], err)
	}

	encoded, err := json.MarshalIndent(exam, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding exam: %w", err)
	}
	encoded = append(encoded, '\n')

	outPath, _ := cmd.Flags().GetString("out")
	if outPath == "" {
		_, err := cmd.OutOrStdout().Write(encoded)
		return err
	}
	if err := os.WriteFile(outPath, encoded, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d questions -> %s\n", exam.ID, len(exam.Questions), outPath)
	return nil
}
