package service

import (
	"context"
	"fmt"

	"github.com/trialpulse/trialpulse/domain/change"
	"github.com/trialpulse/trialpulse/domain/digest"
	"github.com/trialpulse/trialpulse/domain/entity"
	"github.com/trialpulse/trialpulse/domain/notify"
	"github.com/trialpulse/trialpulse/domain/query"
	"github.com/trialpulse/trialpulse/domain/watch"
)

// Watchlist is the collaborator-facing service: subscription management,
// pending-change queries, the alert lifecycle, and digest settings and
// history.
type Watchlist struct {
	subscriptions watch.SubscriptionStore
	alerts        watch.AlertStore
	ledger        change.Ledger
	preferences   digest.PreferenceStore
	digests       digest.RecordStore
}

// NewWatchlist creates a Watchlist service.
func NewWatchlist(
	subscriptions watch.SubscriptionStore,
	alerts watch.AlertStore,
	ledger change.Ledger,
	preferences digest.PreferenceStore,
	digests digest.RecordStore,
) *Watchlist {
	return &Watchlist{
		subscriptions: subscriptions,
		alerts:        alerts,
		ledger:        ledger,
		preferences:   preferences,
		digests:       digests,
	}
}

// Watch creates or updates the subscriber's watch on an entity. Watching
// an already-watched entity replaces the kind and channel flags.
func (w *Watchlist) Watch(ctx context.Context, userID string, ref entity.Ref, kinds map[change.Kind]bool, channels map[notify.Channel]bool) (watch.Subscription, error) {
	options := append(watch.WithWatchedEntity(ref.Type(), ref.ID()), watch.WithUser(userID))
	existing, err := w.subscriptions.FindOne(ctx, options...)
	if err == nil {
		return w.subscriptions.Save(ctx, existing.WithFlags(kinds, channels))
	}

	return w.subscriptions.Save(ctx, watch.NewSubscription(userID, ref, kinds, channels))
}

// Unwatch removes the subscriber's watch on an entity.
func (w *Watchlist) Unwatch(ctx context.Context, userID string, entityType entity.Type, entityID string) error {
	options := append(watch.WithWatchedEntity(entityType, entityID), watch.WithUser(userID))
	sub, err := w.subscriptions.FindOne(ctx, options...)
	if err != nil {
		return fmt.Errorf("find subscription: %w", err)
	}
	return w.subscriptions.Delete(ctx, sub)
}

// Subscriptions returns the subscriber's watchlist.
func (w *Watchlist) Subscriptions(ctx context.Context, userID string) ([]watch.Subscription, error) {
	return w.subscriptions.Find(ctx, watch.WithUser(userID))
}

// PendingChanges returns the subscriber's undelivered ledger records,
// most significant first.
func (w *Watchlist) PendingChanges(ctx context.Context, userID string, options ...query.Option) ([]change.Record, error) {
	return w.ledger.PendingFor(ctx, userID, options...)
}

// Changes returns ledger records matching the given options, for the
// entity history surface.
func (w *Watchlist) Changes(ctx context.Context, options ...query.Option) ([]change.Record, error) {
	return w.ledger.Find(ctx, options...)
}

// Alerts returns the subscriber's alerts, optionally filtered by status.
func (w *Watchlist) Alerts(ctx context.Context, userID string, options ...query.Option) ([]watch.Alert, error) {
	return w.alerts.Find(ctx, append([]query.Option{watch.WithUser(userID)}, options...)...)
}

// Acknowledge marks a sent alert as read.
func (w *Watchlist) Acknowledge(ctx context.Context, userID string, alertID int64) (watch.Alert, error) {
	return w.transition(ctx, userID, alertID, watch.Alert.MarkRead)
}

// Dismiss marks a sent alert as dismissed.
func (w *Watchlist) Dismiss(ctx context.Context, userID string, alertID int64) (watch.Alert, error) {
	return w.transition(ctx, userID, alertID, watch.Alert.MarkDismissed)
}

func (w *Watchlist) transition(ctx context.Context, userID string, alertID int64, move func(watch.Alert) (watch.Alert, error)) (watch.Alert, error) {
	alert, err := w.alerts.FindOne(ctx, query.WithID(alertID), watch.WithUser(userID))
	if err != nil {
		return watch.Alert{}, fmt.Errorf("find alert: %w", err)
	}

	moved, err := move(alert)
	if err != nil {
		return watch.Alert{}, err
	}
	return w.alerts.Update(ctx, moved)
}

// Preference returns the subscriber's digest settings.
func (w *Watchlist) Preference(ctx context.Context, userID string) (digest.Preference, error) {
	return w.preferences.Get(ctx, userID)
}

// SavePreference stores the subscriber's digest settings.
func (w *Watchlist) SavePreference(ctx context.Context, pref digest.Preference) (digest.Preference, error) {
	return w.preferences.Save(ctx, pref)
}

// DigestHistory returns the subscriber's digest audit records, newest
// first.
func (w *Watchlist) DigestHistory(ctx context.Context, userID string, limit int) ([]digest.Record, error) {
	options := []query.Option{digest.WithUser(userID), query.WithOrderDesc("sent_at")}
	if limit > 0 {
		options = append(options, query.WithLimit(limit))
	}
	return w.digests.Find(ctx, options...)
}
