// Package trialpulse provides a library for biomedical change detection
// and alerting.
//
// TrialPulse ingests daily snapshots of drugs, trials, companies and
// regulatory filings, diffs them against the previous state, classifies
// each change by significance, and delivers alerts and digests to
// watching subscribers.
//
// Basic usage:
//
//	client, err := trialpulse.New(
//	    trialpulse.WithSQLite(".trialpulse/data.db"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Ingest a fetched payload
//	snap, err := client.Detection.Observe(ctx, entity.TypeDrug, "DB001", day, payload)
//
//	// Run a detection pass for the day
//	result, err := client.Detection.Run(ctx, day)
//
//	// Watch an entity
//	sub, err := client.Watchlist.Watch(ctx, "alice", ref, kinds, channels)
package trialpulse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/trialpulse/trialpulse/application/service"
	"github.com/trialpulse/trialpulse/domain/change"
	"github.com/trialpulse/trialpulse/infrastructure/persistence"
	"github.com/trialpulse/trialpulse/internal/database"
)

// ErrNoDatabase indicates New was called without a database option.
var ErrNoDatabase = errors.New("no database configured: use WithSQLite, WithPostgres or WithDatabaseURL")

// ErrClientClosed indicates the client has already been closed.
var ErrClientClosed = errors.New("client is closed")

// Client is the main entry point for the trialpulse library.
// Periodic passes start automatically on creation when enabled.
//
// Access the pipeline via struct fields:
//
//	client.Detection.Run(ctx, day)
//	client.Watchlist.PendingChanges(ctx, "alice")
type Client struct {
	// Public service fields (direct access)
	Detection *service.Detection
	Matcher   *service.Matcher
	Router    *service.Router
	Digests   *service.Digest
	Watchlist *service.Watchlist

	db     database.Database
	passes *service.Passes

	logger *slog.Logger
	closed atomic.Bool
	mu     sync.Mutex
}

// New creates a new Client with the given options.
// Periodic passes are started automatically when enabled via WithPasses.
func New(opts ...Option) (*Client, error) {
	cfg := newClientConfig()

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.dbURL == "" {
		return nil, ErrNoDatabase
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx := context.Background()

	db, err := database.NewDatabase(ctx, cfg.dbURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := persistence.AutoMigrate(db); err != nil {
		errClose := db.Close()
		return nil, errors.Join(fmt.Errorf("auto migrate: %w", err), errClose)
	}

	if err := persistence.ValidateSchema(db); err != nil {
		errClose := db.Close()
		return nil, errors.Join(fmt.Errorf("validate schema: %w", err), errClose)
	}

	// Create stores
	snapshotStore := persistence.NewSnapshotStore(db)
	changeStore := persistence.NewChangeStore(db)
	subscriptionStore := persistence.NewSubscriptionStore(db)
	alertStore := persistence.NewAlertStore(db)
	preferenceStore := persistence.NewDigestPreferenceStore(db)
	digestStore := persistence.NewDigestRecordStore(db)

	// Resolve the comparator schema registry
	registry := cfg.registry
	if cfg.schemaPath != "" {
		raw, err := os.ReadFile(cfg.schemaPath)
		if err != nil {
			errClose := db.Close()
			return nil, errors.Join(fmt.Errorf("read schema file: %w", err), errClose)
		}
		registry, err = change.LoadRegistry(raw)
		if err != nil {
			errClose := db.Close()
			return nil, errors.Join(err, errClose)
		}
		logger.Info("loaded comparator schema override", slog.String("path", cfg.schemaPath))
	}

	// Create services
	detection := service.NewDetection(cfg.detection, snapshotStore, changeStore, registry, cfg.classifier, logger)
	matcher := service.NewMatcher(changeStore, subscriptionStore, alertStore, cfg.renderer, logger)
	router := service.NewRouter(alertStore, subscriptionStore, preferenceStore, cfg.senders, logger)
	digests := service.NewDigest(cfg.digest, preferenceStore, digestStore, changeStore, subscriptionStore, cfg.senders, cfg.renderer, logger)
	watchlist := service.NewWatchlist(subscriptionStore, alertStore, changeStore, preferenceStore, digestStore)

	passes := service.NewPasses(cfg.passes, detection, matcher, router, digests, logger)

	client := &Client{
		Detection: detection,
		Matcher:   matcher,
		Router:    router,
		Digests:   digests,
		Watchlist: watchlist,
		db:        db,
		passes:    passes,
		logger:    logger,
	}

	passes.Start(ctx)

	return client, nil
}

// Close stops the periodic passes and releases all resources.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClientClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.passes.Stop()

	if err := c.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}

	c.logger.Info("trialpulse client closed")
	return nil
}

// Logger returns the client's logger.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}
