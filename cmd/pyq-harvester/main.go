// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the pyq-harvester CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/pyq-harvester/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

// appLog is built from --log-mode and --log-level before any subcommand runs.
var appLog = logger.Nop()

// rootCmd is the base command for the pyq-harvester CLI.
var rootCmd = &cobra.Command{
	Use:   "pyq-harvester",
	Short: "Harvest past exam papers into per-subject JSON libraries",
	Long: `pyq-harvester crawls a quiz-practice platform that speaks the Inertia
page protocol, downloads every question paper with its images, normalizes the
papers into canonical exams, and merges them into one JSON library per subject.

Subcommands: crawl walks the whole exam hierarchy, fetch stores a single paper,
normalize converts a saved raw document, and library inspects the stored
subjects.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logger.New(viper.GetString("log.mode"), viper.GetString("log.level"))
		if err != nil {
			return err
		}
		appLog = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		appLog.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./pyq-harvester.yaml or ~/.config/pyq-harvester/pyq-harvester.yaml)")
	pf.String("log-mode", "dev", "log encoder: dev (console) or prod (JSON)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("base-url", "", "platform origin (default https://quizpractice.space)")
	pf.String("work-dir", "", "directory for raw documents, images and the ledger (default scraped_data)")
	pf.String("library-dir", "", "subject library directory (default subjects)")

	bindFlags(pf, map[string]string{
		"log.mode":    "log-mode",
		"log.level":   "log-level",
		"base_url":    "base-url",
		"work_dir":    "work-dir",
		"library.dir": "library-dir",
	})
	setDefaults()
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("pyq-harvester")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "pyq-harvester"))
		}
	}

	viper.SetEnvPrefix("PYQ_HARVESTER")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
