package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trialpulse/trialpulse/domain/change"
	"github.com/trialpulse/trialpulse/domain/digest"
	"github.com/trialpulse/trialpulse/domain/entity"
	"github.com/trialpulse/trialpulse/domain/notify"
	"github.com/trialpulse/trialpulse/domain/watch"
	"github.com/trialpulse/trialpulse/infrastructure/persistence"
	"github.com/trialpulse/trialpulse/internal/database"
	"github.com/trialpulse/trialpulse/internal/testdb"
)

type watchlistFixture struct {
	db        database.Database
	ledger    persistence.ChangeStore
	alerts    persistence.AlertStore
	watchlist *Watchlist
}

func newWatchlistFixture(t *testing.T) watchlistFixture {
	t.Helper()
	db := testdb.New(t)
	ledger := persistence.NewChangeStore(db)
	alerts := persistence.NewAlertStore(db)
	w := NewWatchlist(
		persistence.NewSubscriptionStore(db),
		alerts,
		ledger,
		persistence.NewDigestPreferenceStore(db),
		persistence.NewDigestRecordStore(db),
	)
	return watchlistFixture{db: db, ledger: ledger, alerts: alerts, watchlist: w}
}

func TestWatchlist_WatchThenUnwatch(t *testing.T) {
	ctx := context.Background()
	f := newWatchlistFixture(t)

	ref := entity.NewRef(entity.TypeDrug, "DB001", "Lecanemab")
	sub, err := f.watchlist.Watch(ctx, "alice", ref, watch.AllKindsEnabled(), nil)
	require.NoError(t, err)
	assert.NotZero(t, sub.ID())

	subs, err := f.watchlist.Subscriptions(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, subs, 1)

	require.NoError(t, f.watchlist.Unwatch(ctx, "alice", entity.TypeDrug, "DB001"))

	subs, err = f.watchlist.Subscriptions(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestWatchlist_RewatchReplacesFlags(t *testing.T) {
	ctx := context.Background()
	f := newWatchlistFixture(t)

	ref := entity.NewRef(entity.TypeDrug, "DB001", "Lecanemab")
	first, err := f.watchlist.Watch(ctx, "alice", ref, watch.AllKindsEnabled(), nil)
	require.NoError(t, err)

	kinds := map[change.Kind]bool{change.KindPhaseChange: true}
	channels := map[notify.Channel]bool{notify.ChannelEmail: true}
	second, err := f.watchlist.Watch(ctx, "alice", ref, kinds, channels)
	require.NoError(t, err)

	assert.Equal(t, first.ID(), second.ID())
	assert.True(t, second.WantsKind(change.KindPhaseChange))
	assert.False(t, second.WantsKind(change.KindStatusChange))
	assert.True(t, second.WantsChannel(notify.ChannelEmail))

	subs, err := f.watchlist.Subscriptions(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func sentAlert(t *testing.T, f watchlistFixture, userID string) watch.Alert {
	t.Helper()
	ctx := context.Background()
	created, _, err := f.alerts.Create(ctx, watch.NewAlert(1, 1, userID, "t", "b", change.SignificanceHigh))
	require.NoError(t, err)
	sent, err := created.MarkSent(time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	updated, err := f.alerts.Update(ctx, sent)
	require.NoError(t, err)
	return updated
}

func TestWatchlist_AcknowledgeAlert(t *testing.T) {
	ctx := context.Background()
	f := newWatchlistFixture(t)
	alert := sentAlert(t, f, "alice")

	read, err := f.watchlist.Acknowledge(ctx, "alice", alert.ID())
	require.NoError(t, err)
	assert.Equal(t, watch.StatusRead, read.Status())
}

func TestWatchlist_DismissAlert(t *testing.T) {
	ctx := context.Background()
	f := newWatchlistFixture(t)
	alert := sentAlert(t, f, "alice")

	dismissed, err := f.watchlist.Dismiss(ctx, "alice", alert.ID())
	require.NoError(t, err)
	assert.Equal(t, watch.StatusDismissed, dismissed.Status())
}

func TestWatchlist_AcknowledgePendingAlertFails(t *testing.T) {
	ctx := context.Background()
	f := newWatchlistFixture(t)

	created, _, err := f.alerts.Create(ctx, watch.NewAlert(1, 1, "alice", "t", "b", change.SignificanceHigh))
	require.NoError(t, err)

	_, err = f.watchlist.Acknowledge(ctx, "alice", created.ID())
	assert.ErrorIs(t, err, watch.ErrInvalidTransition)
}

func TestWatchlist_AcknowledgeOtherUsersAlertFails(t *testing.T) {
	ctx := context.Background()
	f := newWatchlistFixture(t)
	alert := sentAlert(t, f, "alice")

	_, err := f.watchlist.Acknowledge(ctx, "bob", alert.ID())
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestWatchlist_PendingChanges(t *testing.T) {
	ctx := context.Background()
	f := newWatchlistFixture(t)

	ref := entity.NewRef(entity.TypeTrial, "NCT001", "Trial NCT001")
	rec, _, err := f.ledger.Append(ctx, change.NewRecord(ref, change.KindPhaseChange, "phase", "2", "3", change.SignificanceCritical, "registry", time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	pending, err := f.watchlist.PendingChanges(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, rec.ID(), pending[0].ID())
}

func TestWatchlist_DigestHistoryNewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newWatchlistFixture(t)
	records := persistence.NewDigestRecordStore(f.db)

	older := digest.NewRecord("alice", digest.CadenceWeekly, "2026-W34", "alice:weekly:2026-W34", []int64{1}, time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC), digest.DeliverySent)
	newer := digest.NewRecord("alice", digest.CadenceWeekly, "2026-W35", "alice:weekly:2026-W35", []int64{2}, time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC), digest.DeliverySent)
	for _, rec := range []digest.Record{older, newer} {
		_, _, err := records.Create(ctx, rec)
		require.NoError(t, err)
	}

	history, err := f.watchlist.DigestHistory(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "2026-W35", history[0].PeriodKey())
}
