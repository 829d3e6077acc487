package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/trialpulse/trialpulse/domain/digest"
	"github.com/trialpulse/trialpulse/domain/notify"
	"github.com/trialpulse/trialpulse/domain/query"
	"github.com/trialpulse/trialpulse/domain/watch"
	"github.com/trialpulse/trialpulse/internal/database"
)

// Router dispatches pending alerts over each subscriber's enabled
// channels, honoring per-channel minimum significance and quiet hours.
// Deferred and failed alerts stay pending and are re-evaluated on the
// next pass.
type Router struct {
	alerts        watch.AlertStore
	subscriptions watch.SubscriptionStore
	preferences   digest.PreferenceStore
	senders       map[notify.Channel]notify.Sender
	logger        *slog.Logger
}

// NewRouter creates a Router. Channels without a sender are treated as
// unavailable and never block an alert from other channels.
func NewRouter(
	alerts watch.AlertStore,
	subscriptions watch.SubscriptionStore,
	preferences digest.PreferenceStore,
	senders map[notify.Channel]notify.Sender,
	logger *slog.Logger,
) *Router {
	return &Router{
		alerts:        alerts,
		subscriptions: subscriptions,
		preferences:   preferences,
		senders:       senders,
		logger:        logger,
	}
}

// RouteResult summarizes one routing pass.
type RouteResult struct {
	Sent     int
	Deferred int
	Failed   int
}

// Route evaluates every pending alert at the given instant. An alert is
// sent when at least one subscribed channel admits it; an alert below
// every channel minimum or inside the subscriber's quiet hours stays
// pending for the next pass or the subscriber's digest.
func (r *Router) Route(ctx context.Context, now time.Time) (RouteResult, error) {
	pending, err := r.alerts.Find(ctx, watch.WithStatus(watch.StatusPending))
	if err != nil {
		return RouteResult{}, fmt.Errorf("find pending alerts: %w", err)
	}

	var result RouteResult
	for _, alert := range pending {
		sent, err := r.routeOne(ctx, alert, now)
		if err != nil {
			return result, err
		}
		switch sent {
		case routeSent:
			result.Sent++
		case routeDeferred:
			result.Deferred++
		case routeFailed:
			result.Failed++
		}
	}

	if result.Sent+result.Deferred+result.Failed > 0 {
		r.logger.Info("alert routing pass complete",
			slog.Int("sent", result.Sent),
			slog.Int("deferred", result.Deferred),
			slog.Int("failed", result.Failed),
		)
	}
	return result, nil
}

type routeOutcome int

const (
	routeDeferred routeOutcome = iota
	routeSent
	routeFailed
)

func (r *Router) routeOne(ctx context.Context, alert watch.Alert, now time.Time) (routeOutcome, error) {
	sub, err := r.subscriptions.FindOne(ctx, query.WithID(alert.SubscriptionID()))
	if err != nil {
		return routeDeferred, fmt.Errorf("load subscription for alert: %w", err)
	}

	pref, err := r.preference(ctx, alert.UserID())
	if err != nil {
		return routeDeferred, err
	}

	if pref.InQuietHours(now) {
		return routeDeferred, nil
	}

	delivered := false
	attempted := false
	for channel, sender := range r.senders {
		if !sub.WantsChannel(channel) {
			continue
		}
		if !alert.Significance().AtLeast(pref.ChannelMinimum(channel)) {
			continue
		}

		attempted = true
		msg := notify.NewMessage(alert.UserID(), alert.Title(), alert.Body(), alert.Significance())
		if err := sender.Send(ctx, msg); err != nil {
			r.logger.Warn("alert dispatch failed",
				slog.Int64("alert_id", alert.ID()),
				slog.String("channel", channel.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		delivered = true
	}

	if !delivered {
		if attempted {
			return routeFailed, nil
		}
		return routeDeferred, nil
	}

	sent, err := alert.MarkSent(now)
	if err != nil {
		return routeDeferred, fmt.Errorf("mark alert sent: %w", err)
	}
	if _, err := r.alerts.Update(ctx, sent); err != nil {
		return routeDeferred, fmt.Errorf("update alert: %w", err)
	}
	return routeSent, nil
}

// preference returns the subscriber's digest preference, or permissive
// defaults when none is stored.
func (r *Router) preference(ctx context.Context, userID string) (digest.Preference, error) {
	pref, err := r.preferences.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return digest.NewPreference(userID, digest.CadenceDaily, time.Monday, 9, "UTC"), nil
		}
		return digest.Preference{}, fmt.Errorf("load digest preference: %w", err)
	}
	return pref, nil
}
