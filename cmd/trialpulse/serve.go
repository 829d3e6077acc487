package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/trialpulse/trialpulse"
	"github.com/trialpulse/trialpulse/domain/change"
	"github.com/trialpulse/trialpulse/infrastructure/api"
	"github.com/trialpulse/trialpulse/internal/config"
	"github.com/trialpulse/trialpulse/internal/log"
)

func serveCmd() *cobra.Command {
	var (
		envFile string
		host    string
		port    int
		dbURL   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server.

Configuration is loaded in the following order (later sources override earlier):
  1. Default values
  2. .env file (if --env-file specified or .env exists in current directory)
  3. Environment variables
  4. Command line flags

Environment variables:
  TRIALPULSE_HOST              Server host to bind to (default: 0.0.0.0)
  TRIALPULSE_PORT              Server port to listen on (default: 8080)
  TRIALPULSE_DATA_DIR          Data directory (default: ~/.trialpulse)
  TRIALPULSE_DB_URL            Database URL (default: sqlite:///{data_dir}/trialpulse.db)
  TRIALPULSE_LOG_LEVEL         Log level: DEBUG, INFO, WARN, ERROR (default: INFO)
  TRIALPULSE_LOG_FORMAT        Log format: pretty, json (default: pretty)
  TRIALPULSE_SCHEMA_PATH       Optional YAML comparator schema override

  TRIALPULSE_DETECTION_WORKERS          Entities diffed concurrently (default: 4)
  TRIALPULSE_DETECTION_SCORE_TOLERANCE  Score comparator tolerance (default: 1.0)
  TRIALPULSE_DIGEST_WORKERS             Subscribers compiled concurrently (default: 4)

  TRIALPULSE_PASSES_ENABLED                     Run passes on an internal timer (default: true)
  TRIALPULSE_PASSES_DETECTION_INTERVAL_SECONDS  Detection pass interval (default: 3600)
  TRIALPULSE_PASSES_DIGEST_INTERVAL_SECONDS     Digest pass interval (default: 900)

  TRIALPULSE_NOTIFY_URLS       Comma-separated shoutrrr service URLs
  TRIALPULSE_NOTIFY_TIMEOUT    Send timeout in seconds (default: 10)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(envFile, host, port, dbURL)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().StringVar(&host, "host", "", "Server host to bind to (default: 0.0.0.0)")
	cmd.Flags().IntVar(&port, "port", 0, "Server port to listen on (default: 8080)")
	cmd.Flags().StringVar(&dbURL, "db-url", "", "Database URL")

	return cmd
}

func runServe(envFile, host string, port int, dbURL string) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}

	// Flags take precedence over env vars
	if host != "" {
		cfg = cfg.WithHost(host)
	}
	if port != 0 {
		cfg = cfg.WithPort(port)
	}
	if dbURL != "" {
		cfg = cfg.WithDBURL(dbURL)
	}

	logger := log.Configure(cfg)
	slogger := logger.Slog()

	client, err := buildClient(cfg, slogger, cfg.Passes())
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			slogger.Error("failed to close client", slog.Any("error", err))
		}
	}()

	slogger.Info("starting trialpulse",
		slog.String("version", version),
		slog.String("addr", cfg.Addr()),
		slog.Bool("passes_enabled", cfg.Passes().Enabled()),
	)

	apiServer := api.NewAPIServer(client.Detection, client.Watchlist, slogger)
	router := apiServer.Router()

	// Mount API routes after any custom middleware is configured
	apiServer.MountRoutes()

	// Root endpoint with API info
	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, `{"name":"trialpulse","version":"%s"}`, version)
	})

	// Graceful shutdown on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		slogger.Info("shutting down server")
		cancel()
		if err := apiServer.Shutdown(ctx); err != nil {
			slogger.Error("shutdown error", slog.Any("error", err))
		}
	}()

	if err := apiServer.ListenAndServe(cfg.Addr()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// buildClient assembles a trialpulse client from config. Pass scheduling
// comes from the caller so one-shot commands run without timers.
func buildClient(cfg config.AppConfig, slogger *slog.Logger, passes config.PassesConfig) (*trialpulse.Client, error) {
	dbURL, err := cfg.DBURL()
	if err != nil {
		return nil, err
	}

	opts := []trialpulse.Option{
		trialpulse.WithDatabaseURL(dbURL),
		trialpulse.WithLogger(slogger),
		trialpulse.WithRegistry(change.DefaultRegistry(cfg.Detection().ScoreTolerance())),
		trialpulse.WithDetectionConfig(cfg.Detection()),
		trialpulse.WithDigestConfig(cfg.Digest()),
		trialpulse.WithPasses(passes),
	}
	if cfg.SchemaPath() != "" {
		opts = append(opts, trialpulse.WithSchemaFile(cfg.SchemaPath()))
	}

	senderOpts, err := buildSenders(cfg, slogger)
	if err != nil {
		return nil, err
	}
	opts = append(opts, senderOpts...)

	client, err := trialpulse.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create trialpulse client: %w", err)
	}
	return client, nil
}
