package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/trialpulse/trialpulse/domain/change"
	"github.com/trialpulse/trialpulse/domain/notify"
	"github.com/trialpulse/trialpulse/domain/watch"
)

// Matcher turns ledger records into candidate alerts for the subscribers
// watching the affected entity. It only reads the ledger; alerts carry
// their own lifecycle.
type Matcher struct {
	ledger        change.Ledger
	subscriptions watch.SubscriptionStore
	alerts        watch.AlertStore
	renderer      notify.Renderer
	logger        *slog.Logger
}

// NewMatcher creates a Matcher.
func NewMatcher(
	ledger change.Ledger,
	subscriptions watch.SubscriptionStore,
	alerts watch.AlertStore,
	renderer notify.Renderer,
	logger *slog.Logger,
) *Matcher {
	return &Matcher{
		ledger:        ledger,
		subscriptions: subscriptions,
		alerts:        alerts,
		renderer:      renderer,
		logger:        logger,
	}
}

// Match creates a pending alert per subscription that watches the
// record's entity with the record's change kind enabled. Re-running the
// same record creates nothing new.
func (m *Matcher) Match(ctx context.Context, rec change.Record) ([]watch.Alert, error) {
	options := watch.WithWatchedEntity(rec.Entity().Type(), rec.Entity().ID())
	subs, err := m.subscriptions.Find(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("find subscriptions: %w", err)
	}

	var created []watch.Alert
	for _, sub := range subs {
		if !sub.WantsKind(rec.Kind()) {
			continue
		}

		title, body := m.renderer.RenderAlert(rec)
		alert := watch.NewAlert(rec.ID(), sub.ID(), sub.UserID(), title, body, rec.Significance())
		stored, isNew, err := m.alerts.Create(ctx, alert)
		if err != nil {
			return nil, fmt.Errorf("create alert: %w", err)
		}
		if isNew {
			created = append(created, stored)
		}
	}

	if len(created) > 0 {
		m.logger.Debug("matched change to subscribers",
			slog.Int64("change_id", rec.ID()),
			slog.Int("alerts", len(created)),
		)
	}
	return created, nil
}

// MatchSince matches every ledger record detected at or after the given
// time. Used by the periodic pass so alerts trail detection by one pass
// at most.
func (m *Matcher) MatchSince(ctx context.Context, since time.Time) (int, error) {
	records, err := m.ledger.Find(ctx, change.WithDetectedSince(since))
	if err != nil {
		return 0, fmt.Errorf("find recent changes: %w", err)
	}

	total := 0
	for _, rec := range records {
		created, err := m.Match(ctx, rec)
		if err != nil {
			return total, err
		}
		total += len(created)
	}
	return total, nil
}
