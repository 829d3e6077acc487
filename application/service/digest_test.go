package service

import (
	"context"
	"log/slog"
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
	"github.com/trialpulse/trialpulse/internal/config"
	"github.com/trialpulse/trialpulse/internal/database"
	"github.com/trialpulse/trialpulse/internal/testdb"
)

type digestFixture struct {
	db            database.Database
	ledger        persistence.ChangeStore
	preferences   persistence.DigestPreferenceStore
	records       persistence.DigestRecordStore
	subscriptions persistence.SubscriptionStore
	push          *fakeSender
	digest        *Digest
}

func newDigestFixture(t *testing.T) digestFixture {
	t.Helper()
	db := testdb.New(t)
	ledger := persistence.NewChangeStore(db)
	preferences := persistence.NewDigestPreferenceStore(db)
	records := persistence.NewDigestRecordStore(db)
	subscriptions := persistence.NewSubscriptionStore(db)
	push := &fakeSender{name: "push"}
	d := NewDigest(
		config.DigestConfig{},
		preferences,
		records,
		ledger,
		subscriptions,
		map[notify.Channel]notify.Sender{notify.ChannelPush: push},
		notify.PlainRenderer{},
		slog.Default(),
	)
	return digestFixture{
		db:            db,
		ledger:        ledger,
		preferences:   preferences,
		records:       records,
		subscriptions: subscriptions,
		push:          push,
		digest:        d,
	}
}

func appendChange(t *testing.T, f digestFixture, entityID, field string, sig change.Significance) change.Record {
	t.Helper()
	ref := entity.NewRef(entity.TypeTrial, entityID, "Trial "+entityID)
	rec := change.NewRecord(ref, change.KindFieldChange, field, "old", "new", sig, "registry", day("2026-08-28"))
	stored, _, err := f.ledger.Append(context.Background(), rec)
	require.NoError(t, err)
	return stored
}

// mondayNineUTC is a weekly-Monday-9am scheduled slot.
func mondayNineUTC() time.Time {
	return time.Date(2026, 8, 31, 9, 30, 0, 0, time.UTC)
}

func weeklyHighPref(userID string) digest.Preference {
	return digest.NewPreference(userID, digest.CadenceWeekly, time.Monday, 9, "UTC").
		WithMinSignificance(change.SignificanceHigh)
}

func TestDigest_WeeklyHighMinimumFiltersLowChanges(t *testing.T) {
	ctx := context.Background()
	f := newDigestFixture(t)

	appendChange(t, f, "NCT001", "enrollment", change.SignificanceLow)
	high := appendChange(t, f, "NCT002", "status", change.SignificanceHigh)
	critical := appendChange(t, f, "NCT003", "phase", change.SignificanceCritical)

	_, err := f.preferences.Save(ctx, weeklyHighPref("alice"))
	require.NoError(t, err)

	result, err := f.digest.Run(ctx, mondayNineUTC())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Compiled)

	records, err := f.records.Find(ctx, digest.WithUser("alice"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.ElementsMatch(t, []int64{high.ID(), critical.ID()}, records[0].ChangeIDs())

	// The low change is still pending for a future, lower-threshold digest.
	pending, err := f.ledger.PendingFor(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, change.SignificanceLow, pending[0].Significance())
}

func TestDigest_RunTwiceProducesOneRecord(t *testing.T) {
	ctx := context.Background()
	f := newDigestFixture(t)

	appendChange(t, f, "NCT001", "phase", change.SignificanceCritical)
	_, err := f.preferences.Save(ctx, weeklyHighPref("alice"))
	require.NoError(t, err)

	first, err := f.digest.Run(ctx, mondayNineUTC())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Compiled)

	// Same instant again, as a crashed-and-retried scheduler would.
	pref, err := f.preferences.Get(ctx, "alice")
	require.NoError(t, err)
	_, created, err := f.digest.CompileFor(ctx, pref, mondayNineUTC())
	require.NoError(t, err)
	assert.False(t, created)

	records, err := f.records.Find(ctx, digest.WithUser("alice"))
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Len(t, f.push.messages(), 1)
}

func TestDigest_RetryAfterPartialRunMarksDelivered(t *testing.T) {
	ctx := context.Background()
	f := newDigestFixture(t)

	rec := appendChange(t, f, "NCT001", "phase", change.SignificanceCritical)
	_, err := f.preferences.Save(ctx, weeklyHighPref("alice"))
	require.NoError(t, err)

	// A previous run persisted the digest record for this period but died
	// before marking its changes delivered.
	now := mondayNineUTC()
	pref, err := f.preferences.Get(ctx, "alice")
	require.NoError(t, err)
	partial := digest.NewRecord(
		"alice",
		digest.CadenceWeekly,
		pref.PeriodKey(now),
		pref.IdempotencyKey(now),
		[]int64{rec.ID()},
		now,
		digest.DeliverySent,
	)
	_, created, err := f.records.Create(ctx, partial)
	require.NoError(t, err)
	require.True(t, created)

	// The retry collides on the idempotency key and must complete the
	// interrupted run's bookkeeping instead of leaving the change pending.
	stored, created, err := f.digest.CompileFor(ctx, pref, now)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, []int64{rec.ID()}, stored.ChangeIDs())

	pending, err := f.ledger.PendingFor(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, pending)

	records, err := f.records.Find(ctx, digest.WithUser("alice"))
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestDigest_QuietHoursDoNotBlockSchedule(t *testing.T) {
	ctx := context.Background()
	f := newDigestFixture(t)

	appendChange(t, f, "NCT001", "phase", change.SignificanceCritical)
	pref := digest.NewPreference("alice", digest.CadenceDaily, time.Monday, 23, "UTC").
		WithMinSignificance(change.SignificanceHigh).
		WithQuietHours(digest.NewQuietHours(22, 7))
	_, err := f.preferences.Save(ctx, pref)
	require.NoError(t, err)

	// The scheduled hour sits inside the quiet window. Quiet hours gate
	// immediate alerts only; the digest still compiles at its hour.
	at := time.Date(2026, 8, 31, 23, 15, 0, 0, time.UTC)
	result, err := f.digest.Run(ctx, at)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Due)
	assert.Equal(t, 1, result.Compiled)
	assert.Len(t, f.push.messages(), 1)
}

func TestDigest_EmptyDigestIsNotSent(t *testing.T) {
	ctx := context.Background()
	f := newDigestFixture(t)

	_, err := f.preferences.Save(ctx, weeklyHighPref("alice"))
	require.NoError(t, err)

	result, err := f.digest.Run(ctx, mondayNineUTC())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Due)
	assert.Equal(t, 1, result.Empty)
	assert.Equal(t, 0, result.Compiled)

	records, err := f.records.Find(ctx, digest.WithUser("alice"))
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Empty(t, f.push.messages())
}

func TestDigest_NotDueSubscriberIsSkipped(t *testing.T) {
	ctx := context.Background()
	f := newDigestFixture(t)

	appendChange(t, f, "NCT001", "phase", change.SignificanceCritical)
	_, err := f.preferences.Save(ctx, weeklyHighPref("alice"))
	require.NoError(t, err)

	// A Tuesday: the weekly Monday digest is not due.
	tuesday := time.Date(2026, 9, 1, 9, 30, 0, 0, time.UTC)
	result, err := f.digest.Run(ctx, tuesday)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Due)
}

func TestDigest_DeliveryIsPerSubscriber(t *testing.T) {
	ctx := context.Background()
	f := newDigestFixture(t)

	rec := appendChange(t, f, "NCT001", "phase", change.SignificanceCritical)
	_, err := f.preferences.Save(ctx, weeklyHighPref("alice"))
	require.NoError(t, err)
	_, err = f.preferences.Save(ctx, weeklyHighPref("bob"))
	require.NoError(t, err)

	result, err := f.digest.Run(ctx, mondayNineUTC())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Compiled)

	for _, user := range []string{"alice", "bob"} {
		records, err := f.records.Find(ctx, digest.WithUser(user))
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, []int64{rec.ID()}, records[0].ChangeIDs())
	}
}

func TestDigest_WatchlistOnlyFiltersUnwatchedEntities(t *testing.T) {
	ctx := context.Background()
	f := newDigestFixture(t)

	watched := appendChange(t, f, "NCT001", "phase", change.SignificanceCritical)
	appendChange(t, f, "NCT002", "phase", change.SignificanceCritical)

	ref := entity.NewRef(entity.TypeTrial, "NCT001", "Trial NCT001")
	_, err := f.subscriptions.Save(ctx, watch.NewSubscription("alice", ref, watch.AllKindsEnabled(), nil))
	require.NoError(t, err)

	_, err = f.preferences.Save(ctx, weeklyHighPref("alice").WithWatchlistOnly(true))
	require.NoError(t, err)

	result, err := f.digest.Run(ctx, mondayNineUTC())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Compiled)

	records, err := f.records.Find(ctx, digest.WithUser("alice"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []int64{watched.ID()}, records[0].ChangeIDs())
}

func TestDigest_EntityTypeAllowlist(t *testing.T) {
	ctx := context.Background()
	f := newDigestFixture(t)

	trial := appendChange(t, f, "NCT001", "phase", change.SignificanceCritical)
	drugRef := entity.NewRef(entity.TypeDrug, "DB001", "Lecanemab")
	_, _, err := f.ledger.Append(ctx, change.NewRecord(drugRef, change.KindPhaseChange, "phase", "2", "3", change.SignificanceCritical, "pipeline", day("2026-08-28")))
	require.NoError(t, err)

	pref := weeklyHighPref("alice").WithEntityTypes([]entity.Type{entity.TypeTrial})
	_, err = f.preferences.Save(ctx, pref)
	require.NoError(t, err)

	_, err = f.digest.Run(ctx, mondayNineUTC())
	require.NoError(t, err)

	records, err := f.records.Find(ctx, digest.WithUser("alice"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []int64{trial.ID()}, records[0].ChangeIDs())
}

func TestDigest_UpdatesLastSentAt(t *testing.T) {
	ctx := context.Background()
	f := newDigestFixture(t)

	appendChange(t, f, "NCT001", "phase", change.SignificanceCritical)
	_, err := f.preferences.Save(ctx, weeklyHighPref("alice"))
	require.NoError(t, err)

	now := mondayNineUTC()
	_, err = f.digest.Run(ctx, now)
	require.NoError(t, err)

	pref, err := f.preferences.Get(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, pref.LastSentAt().IsZero())

	// Immediately after, the weekly digest is no longer due.
	assert.False(t, pref.IsDue(now.Add(time.Hour)))
}
