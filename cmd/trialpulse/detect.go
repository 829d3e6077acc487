package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/trialpulse/trialpulse/domain/snapshot"
	"github.com/trialpulse/trialpulse/internal/config"
	"github.com/trialpulse/trialpulse/internal/log"
)

func detectCmd() *cobra.Command {
	var (
		envFile string
		dateStr string
	)

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Run one detection, match and route pass",
		Long: `Run one detection pass for a snapshot day, match the resulting
changes against watch subscriptions, and route pending alerts.

Intended for deployments that drive the pipeline from an external
scheduler instead of serve mode's internal timers.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(cmd.Context(), envFile, dateStr)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().StringVar(&dateStr, "date", "", "Snapshot day to diff, YYYY-MM-DD (default: today)")

	return cmd
}

func runDetect(ctx context.Context, envFile, dateStr string) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	day := snapshot.Day(now)
	if dateStr != "" {
		parsed, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return fmt.Errorf("parse date: %w", err)
		}
		day = parsed
	}

	logger := log.Configure(cfg)
	slogger := logger.Slog()

	client, err := buildClient(cfg, slogger, config.PassesConfig{})
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			slogger.Error("failed to close client", slog.Any("error", err))
		}
	}()

	result, err := client.Detection.Run(ctx, day)
	if err != nil {
		return fmt.Errorf("detection pass: %w", err)
	}

	alerts, err := client.Matcher.MatchSince(ctx, day)
	if err != nil {
		return fmt.Errorf("match pass: %w", err)
	}

	routed, err := client.Router.Route(ctx, now)
	if err != nil {
		return fmt.Errorf("routing pass: %w", err)
	}

	fmt.Printf("detected %d change(s) across %d entities (%d new, %d skipped)\n",
		result.Changes, result.Entities, result.New, result.Skipped)
	fmt.Printf("matched %d alert(s); routed %d sent, %d deferred, %d failed\n",
		alerts, routed.Sent, routed.Deferred, routed.Failed)
	return nil
}
