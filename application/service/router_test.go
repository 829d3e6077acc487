package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
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

// fakeSender records sent messages and optionally fails every send.
type fakeSender struct {
	name string
	fail bool

	mu   sync.Mutex
	sent []notify.Message
}

func (s *fakeSender) Name() string { return s.name }

func (s *fakeSender) Send(_ context.Context, msg notify.Message) error {
	if s.fail {
		return errors.New("channel unavailable")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *fakeSender) messages() []notify.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notify.Message(nil), s.sent...)
}

type routerFixture struct {
	db            database.Database
	subscriptions persistence.SubscriptionStore
	alerts        persistence.AlertStore
	preferences   persistence.DigestPreferenceStore
	push          *fakeSender
	router        *Router
}

func newRouterFixture(t *testing.T) routerFixture {
	t.Helper()
	db := testdb.New(t)
	subscriptions := persistence.NewSubscriptionStore(db)
	alerts := persistence.NewAlertStore(db)
	preferences := persistence.NewDigestPreferenceStore(db)
	push := &fakeSender{name: "push"}
	router := NewRouter(
		alerts,
		subscriptions,
		preferences,
		map[notify.Channel]notify.Sender{notify.ChannelPush: push},
		slog.Default(),
	)
	return routerFixture{
		db:            db,
		subscriptions: subscriptions,
		alerts:        alerts,
		preferences:   preferences,
		push:          push,
		router:        router,
	}
}

// pendingAlert saves a push subscription for the user and a pending alert
// at the given tier.
func pendingAlert(t *testing.T, f routerFixture, userID string, sig change.Significance) watch.Alert {
	t.Helper()
	ctx := context.Background()

	ref := entity.NewRef(entity.TypeTrial, "NCT001", "Trial NCT001")
	channels := map[notify.Channel]bool{notify.ChannelPush: true}
	sub, err := f.subscriptions.Save(ctx, watch.NewSubscription(userID, ref, watch.AllKindsEnabled(), channels))
	require.NoError(t, err)

	alert, _, err := f.alerts.Create(ctx, watch.NewAlert(1, sub.ID(), userID, "Phase change", "2 to 3", sig))
	require.NoError(t, err)
	return alert
}

func noonUTC() time.Time {
	return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
}

func TestRouter_SendsQualifyingAlert(t *testing.T) {
	ctx := context.Background()
	f := newRouterFixture(t)
	alert := pendingAlert(t, f, "alice", change.SignificanceCritical)

	result, err := f.router.Route(ctx, noonUTC())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)

	updated, err := f.alerts.FindOne(ctx, watch.WithChangeID(alert.ChangeID()))
	require.NoError(t, err)
	assert.Equal(t, watch.StatusSent, updated.Status())
	assert.False(t, updated.SentAt().IsZero())

	require.Len(t, f.push.messages(), 1)
	assert.Equal(t, "alice", f.push.messages()[0].Recipient())
}

func TestRouter_BelowChannelMinimumIsDeferred(t *testing.T) {
	ctx := context.Background()
	f := newRouterFixture(t)
	pendingAlert(t, f, "alice", change.SignificanceLow)

	pref := digest.NewPreference("alice", digest.CadenceDaily, time.Monday, 9, "UTC").
		WithChannelMinimum(notify.ChannelPush, change.SignificanceHigh)
	_, err := f.preferences.Save(ctx, pref)
	require.NoError(t, err)

	result, err := f.router.Route(ctx, noonUTC())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Sent)
	assert.Equal(t, 1, result.Deferred)
	assert.Empty(t, f.push.messages())

	// Still pending for the next pass and the digest.
	pending, err := f.alerts.Find(ctx, watch.WithStatus(watch.StatusPending))
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestRouter_QuietHoursDefersThenReleases(t *testing.T) {
	ctx := context.Background()
	f := newRouterFixture(t)
	pendingAlert(t, f, "alice", change.SignificanceCritical)

	pref := digest.NewPreference("alice", digest.CadenceDaily, time.Monday, 9, "UTC").
		WithQuietHours(digest.NewQuietHours(22, 7))
	_, err := f.preferences.Save(ctx, pref)
	require.NoError(t, err)

	night := time.Date(2026, 8, 30, 23, 0, 0, 0, time.UTC)
	result, err := f.router.Route(ctx, night)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Deferred)
	assert.Empty(t, f.push.messages())

	morning := time.Date(2026, 8, 31, 8, 0, 0, 0, time.UTC)
	result, err = f.router.Route(ctx, morning)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	assert.Len(t, f.push.messages(), 1)
}

func TestRouter_FailedSendStaysPending(t *testing.T) {
	ctx := context.Background()
	f := newRouterFixture(t)
	f.push.fail = true
	pendingAlert(t, f, "alice", change.SignificanceCritical)

	result, err := f.router.Route(ctx, noonUTC())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Sent)
	assert.Equal(t, 1, result.Failed)

	pending, err := f.alerts.Find(ctx, watch.WithStatus(watch.StatusPending))
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	// Next pass retries after the channel recovers.
	f.push.fail = false
	result, err = f.router.Route(ctx, noonUTC())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
}

func TestRouter_NoPreferenceUsesPermissiveDefaults(t *testing.T) {
	ctx := context.Background()
	f := newRouterFixture(t)
	pendingAlert(t, f, "alice", change.SignificanceLow)

	result, err := f.router.Route(ctx, noonUTC())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
}
