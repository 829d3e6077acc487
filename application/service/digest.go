package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/trialpulse/trialpulse/domain/change"
	"github.com/trialpulse/trialpulse/domain/digest"
	"github.com/trialpulse/trialpulse/domain/notify"
	"github.com/trialpulse/trialpulse/domain/query"
	"github.com/trialpulse/trialpulse/domain/watch"
	"github.com/trialpulse/trialpulse/internal/config"
	"golang.org/x/sync/errgroup"
)

// Digest compiles and delivers periodic summaries of undelivered changes.
// Dueness is a pure function of the preference and the injected clock;
// the caller decides when a pass runs.
type Digest struct {
	preferences   digest.PreferenceStore
	records       digest.RecordStore
	ledger        change.Ledger
	subscriptions watch.SubscriptionStore
	senders       map[notify.Channel]notify.Sender
	renderer      notify.Renderer
	logger        *slog.Logger
	workers       int
}

// NewDigest creates a Digest service.
func NewDigest(
	cfg config.DigestConfig,
	preferences digest.PreferenceStore,
	records digest.RecordStore,
	ledger change.Ledger,
	subscriptions watch.SubscriptionStore,
	senders map[notify.Channel]notify.Sender,
	renderer notify.Renderer,
	logger *slog.Logger,
) *Digest {
	return &Digest{
		preferences:   preferences,
		records:       records,
		ledger:        ledger,
		subscriptions: subscriptions,
		senders:       senders,
		renderer:      renderer,
		logger:        logger,
		workers:       cfg.Workers(),
	}
}

// DigestResult summarizes one digest pass.
type DigestResult struct {
	Due      int
	Compiled int
	Empty    int
	Collided int
}

// Run evaluates every subscriber's preference at the given instant and
// compiles a digest for each that is due. Subscribers are independent, so
// compilation is parallel with a bounded worker count.
func (d *Digest) Run(ctx context.Context, now time.Time) (DigestResult, error) {
	prefs, err := d.preferences.FindAll(ctx)
	if err != nil {
		return DigestResult{}, fmt.Errorf("find digest preferences: %w", err)
	}

	results := make([]DigestResult, len(prefs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for i, pref := range prefs {
		g.Go(func() error {
			r, err := d.compileFor(gctx, pref, now)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return DigestResult{}, err
	}

	var result DigestResult
	for _, r := range results {
		result.Due += r.Due
		result.Compiled += r.Compiled
		result.Empty += r.Empty
		result.Collided += r.Collided
	}
	if result.Due > 0 {
		d.logger.Info("digest pass complete",
			slog.Int("due", result.Due),
			slog.Int("compiled", result.Compiled),
			slog.Int("empty", result.Empty),
			slog.Int("collided", result.Collided),
		)
	}
	return result, nil
}

// CompileFor compiles and delivers one subscriber's digest at the given
// instant, regardless of dueness. Used by Run after the dueness check and
// exposed for on-demand compilation.
func (d *Digest) CompileFor(ctx context.Context, pref digest.Preference, now time.Time) (digest.Record, bool, error) {
	pending, err := d.pendingFor(ctx, pref)
	if err != nil {
		return digest.Record{}, false, err
	}
	if len(pending) == 0 {
		return digest.Record{}, false, nil
	}

	ids := make([]int64, len(pending))
	for i, rec := range pending {
		ids[i] = rec.ID()
	}

	// The record is persisted before delivery marking so a crash between
	// the two steps is detectable and the idempotency key blocks a
	// duplicate compile for the same period.
	rec := digest.NewRecord(
		pref.UserID(),
		pref.Cadence(),
		pref.PeriodKey(now),
		pref.IdempotencyKey(now),
		ids,
		now,
		digest.DeliverySent,
	)
	stored, created, err := d.records.Create(ctx, rec)
	if err != nil {
		return digest.Record{}, false, fmt.Errorf("create digest record: %w", err)
	}
	if !created {
		// Another run already compiled this period. Its record carries
		// the exact ids it included, so finish the delivery marking in
		// case that run died between the two steps; MarkDelivered is
		// idempotent when it did not.
		if err := d.ledger.MarkDelivered(ctx, stored.ChangeIDs(), pref.UserID()); err != nil {
			return digest.Record{}, false, fmt.Errorf("mark digest changes delivered: %w", err)
		}
		return stored, false, nil
	}

	if err := d.ledger.MarkDelivered(ctx, ids, pref.UserID()); err != nil {
		return digest.Record{}, false, fmt.Errorf("mark digest changes delivered: %w", err)
	}

	d.deliver(ctx, pref, pending)

	return stored, true, nil
}

func (d *Digest) compileFor(ctx context.Context, pref digest.Preference, now time.Time) (DigestResult, error) {
	// Quiet hours hold back immediate alerts, not the scheduled digest;
	// a subscriber may deliberately place the digest inside the window.
	if !pref.IsDue(now) {
		return DigestResult{}, nil
	}

	result := DigestResult{Due: 1}
	stored, created, err := d.CompileFor(ctx, pref, now)
	if err != nil {
		return DigestResult{}, err
	}
	switch {
	case created:
		result.Compiled = 1
	case stored.ID() != 0:
		result.Collided = 1
	default:
		result.Empty = 1
	}

	if _, err := d.preferences.Save(ctx, pref.WithLastSentAt(now)); err != nil {
		return DigestResult{}, fmt.Errorf("update digest preference: %w", err)
	}
	return result, nil
}

// pendingFor returns the subscriber's undelivered changes under the
// preference's significance, entity-type, and watchlist filters.
func (d *Digest) pendingFor(ctx context.Context, pref digest.Preference) ([]change.Record, error) {
	options := []query.Option{change.WithMinSignificance(pref.MinSignificance())}
	if types := pref.EntityTypes(); len(types) > 0 {
		options = append(options, change.WithEntityTypeIn(types))
	}

	pending, err := d.ledger.PendingFor(ctx, pref.UserID(), options...)
	if err != nil {
		return nil, fmt.Errorf("find pending changes: %w", err)
	}

	if !pref.WatchlistOnly() {
		return pending, nil
	}

	subs, err := d.subscriptions.Find(ctx, watch.WithUser(pref.UserID()))
	if err != nil {
		return nil, fmt.Errorf("find watchlist: %w", err)
	}
	watched := make(map[string]bool, len(subs))
	for _, sub := range subs {
		watched[sub.Entity().Type().String()+"/"+sub.Entity().ID()] = true
	}

	filtered := pending[:0]
	for _, rec := range pending {
		if watched[rec.Entity().Type().String()+"/"+rec.Entity().ID()] {
			filtered = append(filtered, rec)
		}
	}
	return filtered, nil
}

// deliver renders the digest and sends it over every channel with a
// sender. Send failures are logged; the digest record already marks the
// period as compiled.
func (d *Digest) deliver(ctx context.Context, pref digest.Preference, pending []change.Record) {
	groups := GroupBySignificance(pending)
	title, body := d.renderer.RenderDigest(pref.UserID(), groups)
	msg := notify.NewMessage(pref.UserID(), title, body, topSignificance(pending))

	for channel, sender := range d.senders {
		if err := sender.Send(ctx, msg); err != nil {
			d.logger.Warn("digest dispatch failed",
				slog.String("user_id", pref.UserID()),
				slog.String("channel", channel.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}

// GroupBySignificance buckets records into per-tier digest groups, most
// significant first. Record order within a group is preserved.
func GroupBySignificance(records []change.Record) []notify.DigestGroup {
	buckets := map[change.Significance][]change.Record{}
	for _, rec := range records {
		buckets[rec.Significance()] = append(buckets[rec.Significance()], rec)
	}

	tiers := make([]change.Significance, 0, len(buckets))
	for tier := range buckets {
		tiers = append(tiers, tier)
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i] > tiers[j] })

	groups := make([]notify.DigestGroup, len(tiers))
	for i, tier := range tiers {
		groups[i] = notify.DigestGroup{Significance: tier, Records: buckets[tier]}
	}
	return groups
}

func topSignificance(records []change.Record) change.Significance {
	top := change.SignificanceLow
	for _, rec := range records {
		if rec.Significance() > top {
			top = rec.Significance()
		}
	}
	return top
}
