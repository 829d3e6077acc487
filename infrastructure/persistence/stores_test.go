package persistence

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
	"github.com/trialpulse/trialpulse/domain/snapshot"
	"github.com/trialpulse/trialpulse/domain/watch"
	"github.com/trialpulse/trialpulse/internal/database"
)

// newTestDB creates an in-memory SQLite database for testing.
// Cannot use testdb package here due to import cycle (testdb imports persistence).
func newTestDB(t *testing.T) database.Database {
	t.Helper()
	ctx := context.Background()
	db, err := database.NewDatabase(ctx, "sqlite:///:memory:")
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestSnapshotStore_UpsertIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewSnapshotStore(newTestDB(t))

	payload := map[string]any{"phase": "2", "status": "recruiting"}
	snap := snapshot.New(entity.TypeTrial, "NCT001", day("2026-08-30"), payload, []string{"phase", "status"})

	first, err := store.Upsert(ctx, snap)
	require.NoError(t, err)
	assert.NotZero(t, first.ID())

	second, err := store.Upsert(ctx, snap)
	require.NoError(t, err)
	assert.Equal(t, first.ID(), second.ID())

	count, err := store.Count(ctx, snapshot.WithEntityID("NCT001"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSnapshotStore_UpsertReplacesPayload(t *testing.T) {
	ctx := context.Background()
	store := NewSnapshotStore(newTestDB(t))

	fields := []string{"phase"}
	_, err := store.Upsert(ctx, snapshot.New(entity.TypeTrial, "NCT001", day("2026-08-30"), map[string]any{"phase": "2"}, fields))
	require.NoError(t, err)

	updated, err := store.Upsert(ctx, snapshot.New(entity.TypeTrial, "NCT001", day("2026-08-30"), map[string]any{"phase": "3"}, fields))
	require.NoError(t, err)

	phase, ok := updated.Field("phase")
	require.True(t, ok)
	assert.Equal(t, "3", phase)
}

func TestSnapshotStore_LatestBefore(t *testing.T) {
	ctx := context.Background()
	store := NewSnapshotStore(newTestDB(t))

	fields := []string{"phase"}
	for _, d := range []string{"2026-08-27", "2026-08-28", "2026-08-30"} {
		_, err := store.Upsert(ctx, snapshot.New(entity.TypeTrial, "NCT001", day(d), map[string]any{"phase": d}, fields))
		require.NoError(t, err)
	}

	prev, err := store.LatestBefore(ctx, entity.TypeTrial, "NCT001", day("2026-08-30"))
	require.NoError(t, err)
	assert.Equal(t, "2026-08-28", snapshot.DayString(prev.Date()))

	_, err = store.LatestBefore(ctx, entity.TypeTrial, "NCT999", day("2026-08-30"))
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestSnapshotStore_LatestBeforeIgnoresOtherEntities(t *testing.T) {
	ctx := context.Background()
	store := NewSnapshotStore(newTestDB(t))

	fields := []string{"phase"}
	_, err := store.Upsert(ctx, snapshot.New(entity.TypeTrial, "NCT001", day("2026-08-29"), map[string]any{"phase": "1"}, fields))
	require.NoError(t, err)
	_, err = store.Upsert(ctx, snapshot.New(entity.TypeDrug, "NCT001", day("2026-08-29"), map[string]any{"phase": "9"}, fields))
	require.NoError(t, err)

	prev, err := store.LatestBefore(ctx, entity.TypeTrial, "NCT001", day("2026-08-30"))
	require.NoError(t, err)
	assert.Equal(t, entity.TypeTrial, prev.EntityType())
}

func testRecord(t *testing.T, entityID, field, newValue string, sig change.Significance, detectedAt time.Time) change.Record {
	t.Helper()
	ref := entity.NewRef(entity.TypeTrial, entityID, "Trial "+entityID)
	return change.NewRecord(ref, change.KindFieldChange, field, "old", newValue, sig, "ctgov", detectedAt)
}

func TestChangeStore_AppendIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewChangeStore(newTestDB(t))

	rec := testRecord(t, "NCT001", "phase", "3", change.SignificanceCritical, day("2026-08-30"))

	first, created, err := store.Append(ctx, rec)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, first.ID())

	second, created, err := store.Append(ctx, rec)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID(), second.ID())

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestChangeStore_PendingForOrdering(t *testing.T) {
	ctx := context.Background()
	store := NewChangeStore(newTestDB(t))

	low, _, err := store.Append(ctx, testRecord(t, "NCT001", "score", "63", change.SignificanceLow, day("2026-08-30")))
	require.NoError(t, err)
	critical, _, err := store.Append(ctx, testRecord(t, "NCT002", "phase", "3", change.SignificanceCritical, day("2026-08-28")))
	require.NoError(t, err)
	high, _, err := store.Append(ctx, testRecord(t, "NCT003", "status", "terminated", change.SignificanceHigh, day("2026-08-29")))
	require.NoError(t, err)

	pending, err := store.PendingFor(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, critical.ID(), pending[0].ID())
	assert.Equal(t, high.ID(), pending[1].ID())
	assert.Equal(t, low.ID(), pending[2].ID())
}

func TestChangeStore_MarkDeliveredPerSubscriber(t *testing.T) {
	ctx := context.Background()
	store := NewChangeStore(newTestDB(t))

	rec, _, err := store.Append(ctx, testRecord(t, "NCT001", "phase", "3", change.SignificanceCritical, day("2026-08-30")))
	require.NoError(t, err)

	require.NoError(t, store.MarkDelivered(ctx, []int64{rec.ID()}, "alice"))

	alicePending, err := store.PendingFor(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, alicePending)

	bobPending, err := store.PendingFor(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, bobPending, 1)
}

func TestChangeStore_MarkDeliveredIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewChangeStore(newTestDB(t))

	rec, _, err := store.Append(ctx, testRecord(t, "NCT001", "phase", "3", change.SignificanceCritical, day("2026-08-30")))
	require.NoError(t, err)

	require.NoError(t, store.MarkDelivered(ctx, []int64{rec.ID()}, "alice"))
	require.NoError(t, store.MarkDelivered(ctx, []int64{rec.ID()}, "alice"))

	pending, err := store.PendingFor(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestChangeStore_PendingForRespectsFilters(t *testing.T) {
	ctx := context.Background()
	store := NewChangeStore(newTestDB(t))

	_, _, err := store.Append(ctx, testRecord(t, "NCT001", "score", "63", change.SignificanceLow, day("2026-08-30")))
	require.NoError(t, err)
	_, _, err = store.Append(ctx, testRecord(t, "NCT002", "phase", "3", change.SignificanceCritical, day("2026-08-30")))
	require.NoError(t, err)

	pending, err := store.PendingFor(ctx, "alice", change.WithMinSignificance(change.SignificanceHigh))
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, change.SignificanceCritical, pending[0].Significance())
}

func TestSubscriptionStore_SaveAndFind(t *testing.T) {
	ctx := context.Background()
	store := NewSubscriptionStore(newTestDB(t))

	ref := entity.NewRef(entity.TypeDrug, "DB001", "Lecanemab")
	sub := watch.NewSubscription("alice", ref, watch.AllKindsEnabled(), map[notify.Channel]bool{notify.ChannelPush: true})

	saved, err := store.Save(ctx, sub)
	require.NoError(t, err)
	assert.NotZero(t, saved.ID())

	found, err := store.FindOne(ctx, watch.WithUser("alice"))
	require.NoError(t, err)
	assert.Equal(t, "DB001", found.Entity().ID())
	assert.True(t, found.WantsKind(change.KindPhaseChange))
	assert.True(t, found.WantsChannel(notify.ChannelPush))
	assert.False(t, found.WantsChannel(notify.ChannelEmail))
}

func TestSubscriptionStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := NewSubscriptionStore(newTestDB(t))

	ref := entity.NewRef(entity.TypeDrug, "DB001", "Lecanemab")
	saved, err := store.Save(ctx, watch.NewSubscription("alice", ref, watch.AllKindsEnabled(), nil))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, saved))

	subs, err := store.Find(ctx, watch.WithUser("alice"))
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestSubscriptionStore_DeleteRemovesPendingAlerts(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	subs := NewSubscriptionStore(db)
	alerts := NewAlertStore(db)

	ref := entity.NewRef(entity.TypeDrug, "DB001", "Lecanemab")
	sub, err := subs.Save(ctx, watch.NewSubscription("alice", ref, watch.AllKindsEnabled(), nil))
	require.NoError(t, err)

	pending, _, err := alerts.Create(ctx, watch.NewAlert(10, sub.ID(), "alice", "t", "b", change.SignificanceHigh))
	require.NoError(t, err)

	dispatched, _, err := alerts.Create(ctx, watch.NewAlert(11, sub.ID(), "alice", "t", "b", change.SignificanceHigh))
	require.NoError(t, err)
	sent, err := dispatched.MarkSent(day("2026-08-30"))
	require.NoError(t, err)
	_, err = alerts.Update(ctx, sent)
	require.NoError(t, err)

	require.NoError(t, subs.Delete(ctx, sub))

	remaining, err := alerts.Find(ctx, watch.WithUser("alice"))
	require.NoError(t, err)
	require.Len(t, remaining, 1, "sent alerts survive, pending ones go")
	assert.Equal(t, watch.StatusSent, remaining[0].Status())
	assert.NotEqual(t, pending.ID(), remaining[0].ID())
}

func TestAlertStore_CreateIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewAlertStore(newTestDB(t))

	alert := watch.NewAlert(10, 20, "alice", "Phase change", "Trial moved to phase 3", change.SignificanceCritical)

	first, created, err := store.Create(ctx, alert)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, watch.StatusPending, first.Status())

	_, created, err = store.Create(ctx, alert)
	require.NoError(t, err)
	assert.False(t, created)

	alerts, err := store.Find(ctx, watch.WithUser("alice"))
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestAlertStore_UpdateTransition(t *testing.T) {
	ctx := context.Background()
	store := NewAlertStore(newTestDB(t))

	created, _, err := store.Create(ctx, watch.NewAlert(10, 20, "alice", "t", "b", change.SignificanceHigh))
	require.NoError(t, err)

	sent, err := created.MarkSent(day("2026-08-30"))
	require.NoError(t, err)
	updated, err := store.Update(ctx, sent)
	require.NoError(t, err)
	assert.Equal(t, watch.StatusSent, updated.Status())
	assert.False(t, updated.SentAt().IsZero())

	found, err := store.FindOne(ctx, watch.WithStatus(watch.StatusSent))
	require.NoError(t, err)
	assert.Equal(t, updated.ID(), found.ID())
}

func TestDigestPreferenceStore_SaveRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewDigestPreferenceStore(newTestDB(t))

	pref := digest.NewPreference("alice", digest.CadenceWeekly, time.Monday, 9, "America/New_York").
		WithMinSignificance(change.SignificanceHigh).
		WithChannelMinimum(notify.ChannelPush, change.SignificanceCritical).
		WithEntityTypes([]entity.Type{entity.TypeTrial}).
		WithQuietHours(digest.NewQuietHours(22, 7))

	_, err := store.Save(ctx, pref)
	require.NoError(t, err)

	got, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, digest.CadenceWeekly, got.Cadence())
	assert.Equal(t, change.SignificanceHigh, got.MinSignificance())
	assert.Equal(t, change.SignificanceCritical, got.ChannelMinimum(notify.ChannelPush))
	assert.Equal(t, []entity.Type{entity.TypeTrial}, got.EntityTypes())
	assert.True(t, got.QuietHours().Enabled())
	assert.Equal(t, 22, got.QuietHours().StartHour())
}

func TestDigestPreferenceStore_SaveReplacesExisting(t *testing.T) {
	ctx := context.Background()
	store := NewDigestPreferenceStore(newTestDB(t))

	_, err := store.Save(ctx, digest.NewPreference("alice", digest.CadenceDaily, time.Monday, 8, "UTC"))
	require.NoError(t, err)
	_, err = store.Save(ctx, digest.NewPreference("alice", digest.CadenceMonthly, time.Friday, 17, "UTC"))
	require.NoError(t, err)

	all, err := store.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, digest.CadenceMonthly, all[0].Cadence())
}

func TestDigestRecordStore_CreateIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewDigestRecordStore(newTestDB(t))

	rec := digest.NewRecord("alice", digest.CadenceWeekly, "2026-W35", "alice:weekly:2026-W35", []int64{1, 2, 3}, day("2026-08-30"), digest.DeliverySent)

	first, created, err := store.Create(ctx, rec)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, []int64{1, 2, 3}, first.ChangeIDs())

	second, created, err := store.Create(ctx, rec)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID(), second.ID())

	records, err := store.Find(ctx, digest.WithUser("alice"))
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
