package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/trialpulse/trialpulse/internal/config"
	"github.com/trialpulse/trialpulse/internal/log"
)

func digestCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Run one digest compilation pass",
		Long: `Evaluate every subscriber's digest preference at the current time
and compile a digest for each that is due. Already-delivered periods are
skipped, so running this more often than the shortest cadence is safe.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDigest(cmd.Context(), envFile)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")

	return cmd
}

func runDigest(ctx context.Context, envFile string) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
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

	result, err := client.Digests.Run(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("digest pass: %w", err)
	}

	fmt.Printf("%d subscriber(s) due: %d compiled, %d empty, %d already delivered\n",
		result.Due, result.Compiled, result.Empty, result.Collided)
	return nil
}
