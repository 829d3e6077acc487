// Package main is the entry point for the trialpulse CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/trialpulse/trialpulse/internal/config"
)

// Version information set via ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trialpulse",
		Short: "TrialPulse biomedical change detection server",
		Long:  `TrialPulse ingests daily snapshots of drugs, trials, companies and regulatory filings, detects and classifies changes, and delivers alerts and digests to watching subscribers.`,
	}

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(detectCmd())
	cmd.AddCommand(digestCmd())
	cmd.AddCommand(versionCmd())

	return cmd
}

// loadConfig loads configuration from .env file and environment variables.
func loadConfig(envFile string) (config.AppConfig, error) {
	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
