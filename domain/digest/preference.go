// Package digest provides digest preferences, the dueness predicate, and
// the digest audit record.
package digest

import (
	"fmt"
	"maps"
	"time"

	"github.com/trialpulse/trialpulse/domain/change"
	"github.com/trialpulse/trialpulse/domain/entity"
	"github.com/trialpulse/trialpulse/domain/notify"
)

// Cadence is how often a subscriber receives a digest.
type Cadence string

// Cadence values.
const (
	CadenceDaily   Cadence = "daily"
	CadenceWeekly  Cadence = "weekly"
	CadenceMonthly Cadence = "monthly"
	CadenceNever   Cadence = "never"
)

// Valid reports whether the cadence is known.
func (c Cadence) Valid() bool {
	switch c {
	case CadenceDaily, CadenceWeekly, CadenceMonthly, CadenceNever:
		return true
	default:
		return false
	}
}

// String returns the cadence name.
func (c Cadence) String() string { return string(c) }

// ParseCadence converts a string to a Cadence.
func ParseCadence(s string) (Cadence, error) {
	c := Cadence(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown cadence %q", s)
	}
	return c, nil
}

// minGap is the minimum wall-clock time that must elapse since the last
// sent digest before a cadence is due again. Slightly under the nominal
// period so clock drift around the scheduled hour never skips a cycle.
var minGap = map[Cadence]time.Duration{
	CadenceDaily:   20 * time.Hour,
	CadenceWeekly:  6 * 24 * time.Hour,
	CadenceMonthly: 25 * 24 * time.Hour,
}

// QuietHours is a subscriber-local window suppressing immediate alerts.
// A window may wrap midnight (e.g. 22 → 7).
type QuietHours struct {
	enabled   bool
	startHour int
	endHour   int
}

// NewQuietHours creates an enabled quiet-hours window.
func NewQuietHours(startHour, endHour int) QuietHours {
	return QuietHours{enabled: true, startHour: startHour, endHour: endHour}
}

// NoQuietHours returns a disabled window.
func NoQuietHours() QuietHours { return QuietHours{} }

// Enabled reports whether the window is active.
func (q QuietHours) Enabled() bool { return q.enabled }

// StartHour returns the local hour the window opens.
func (q QuietHours) StartHour() int { return q.startHour }

// EndHour returns the local hour the window closes.
func (q QuietHours) EndHour() int { return q.endHour }

// Contains reports whether the local time falls inside the window.
func (q QuietHours) Contains(local time.Time) bool {
	if !q.enabled || q.startHour == q.endHour {
		return false
	}
	h := local.Hour()
	if q.startHour < q.endHour {
		return h >= q.startHour && h < q.endHour
	}
	return h >= q.startHour || h < q.endHour
}

// Preference is one subscriber's digest and alert delivery settings.
type Preference struct {
	userID          string
	cadence         Cadence
	dayOfWeek       time.Weekday
	hourOfDay       int
	timezone        string
	minSignificance change.Significance
	channelMins     map[notify.Channel]change.Significance
	entityTypes     []entity.Type
	watchlistOnly   bool
	quietHours      QuietHours
	lastSentAt      time.Time
}

// NewPreference creates a Preference with the given schedule. The minimum
// significance defaults to low (everything included).
func NewPreference(userID string, cadence Cadence, dayOfWeek time.Weekday, hourOfDay int, timezone string) Preference {
	return Preference{
		userID:          userID,
		cadence:         cadence,
		dayOfWeek:       dayOfWeek,
		hourOfDay:       hourOfDay,
		timezone:        timezone,
		minSignificance: change.SignificanceLow,
	}
}

// ReconstructPreference rebuilds a Preference from stored fields.
func ReconstructPreference(
	userID string,
	cadence Cadence,
	dayOfWeek time.Weekday,
	hourOfDay int,
	timezone string,
	minSignificance change.Significance,
	channelMins map[notify.Channel]change.Significance,
	entityTypes []entity.Type,
	watchlistOnly bool,
	quietHours QuietHours,
	lastSentAt time.Time,
) Preference {
	return Preference{
		userID:          userID,
		cadence:         cadence,
		dayOfWeek:       dayOfWeek,
		hourOfDay:       hourOfDay,
		timezone:        timezone,
		minSignificance: minSignificance,
		channelMins:     copyMins(channelMins),
		entityTypes:     copyTypes(entityTypes),
		watchlistOnly:   watchlistOnly,
		quietHours:      quietHours,
		lastSentAt:      lastSentAt,
	}
}

// UserID returns the subscriber.
func (p Preference) UserID() string { return p.userID }

// Cadence returns the digest cadence.
func (p Preference) Cadence() Cadence { return p.cadence }

// DayOfWeek returns the scheduled weekday (weekly and monthly cadences).
func (p Preference) DayOfWeek() time.Weekday { return p.dayOfWeek }

// HourOfDay returns the scheduled local hour.
func (p Preference) HourOfDay() int { return p.hourOfDay }

// Timezone returns the IANA timezone name.
func (p Preference) Timezone() string { return p.timezone }

// MinSignificance returns the digest inclusion threshold.
func (p Preference) MinSignificance() change.Significance { return p.minSignificance }

// ChannelMinimum returns the immediate-alert threshold for a channel,
// falling back to the digest threshold when the channel has no override.
func (p Preference) ChannelMinimum(c notify.Channel) change.Significance {
	if m, ok := p.channelMins[c]; ok {
		return m
	}
	return p.minSignificance
}

// ChannelMinimums returns the explicit per-channel overrides only, without
// the digest-threshold fallback applied.
func (p Preference) ChannelMinimums() map[notify.Channel]change.Significance {
	return copyMins(p.channelMins)
}

// EntityTypes returns the entity-type allowlist (empty means all types).
func (p Preference) EntityTypes() []entity.Type { return copyTypes(p.entityTypes) }

// AllowsEntityType reports whether the allowlist admits the type.
func (p Preference) AllowsEntityType(t entity.Type) bool {
	if len(p.entityTypes) == 0 {
		return true
	}
	for _, allowed := range p.entityTypes {
		if allowed == t {
			return true
		}
	}
	return false
}

// WatchlistOnly reports whether digests are restricted to entities with an
// active watch subscription.
func (p Preference) WatchlistOnly() bool { return p.watchlistOnly }

// QuietHours returns the subscriber-local quiet window.
func (p Preference) QuietHours() QuietHours { return p.quietHours }

// LastSentAt returns when the last digest was sent (zero when never).
func (p Preference) LastSentAt() time.Time { return p.lastSentAt }

// WithMinSignificance returns a copy with the digest threshold replaced.
func (p Preference) WithMinSignificance(s change.Significance) Preference {
	p.minSignificance = s
	return p
}

// WithChannelMinimum returns a copy with one channel threshold replaced.
func (p Preference) WithChannelMinimum(c notify.Channel, s change.Significance) Preference {
	mins := copyMins(p.channelMins)
	mins[c] = s
	p.channelMins = mins
	return p
}

// WithEntityTypes returns a copy with the entity-type allowlist replaced.
func (p Preference) WithEntityTypes(types []entity.Type) Preference {
	p.entityTypes = copyTypes(types)
	return p
}

// WithWatchlistOnly returns a copy with the watchlist-only flag replaced.
func (p Preference) WithWatchlistOnly(v bool) Preference {
	p.watchlistOnly = v
	return p
}

// WithQuietHours returns a copy with the quiet window replaced.
func (p Preference) WithQuietHours(q QuietHours) Preference {
	p.quietHours = q
	return p
}

// WithLastSentAt returns a copy with the last-sent timestamp replaced.
func (p Preference) WithLastSentAt(t time.Time) Preference {
	p.lastSentAt = t
	return p
}

// Location resolves the subscriber's timezone, defaulting to UTC when the
// name is empty or unknown.
func (p Preference) Location() *time.Location {
	if p.timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsDue reports whether the subscriber is due for a digest at the given
// instant. The clock is injected so dueness stays a pure predicate over
// (cadence, schedule, last_sent, now-in-local-timezone).
func (p Preference) IsDue(now time.Time) bool {
	if p.cadence == CadenceNever || !p.cadence.Valid() {
		return false
	}

	local := now.In(p.Location())
	if local.Hour() < p.hourOfDay {
		return false
	}

	switch p.cadence {
	case CadenceWeekly:
		if local.Weekday() != p.dayOfWeek {
			return false
		}
	case CadenceMonthly:
		// Monthly digests go out on the first scheduled weekday of the month.
		if local.Weekday() != p.dayOfWeek || local.Day() > 7 {
			return false
		}
	}

	if p.lastSentAt.IsZero() {
		return true
	}
	return now.Sub(p.lastSentAt) >= minGap[p.cadence]
}

// InQuietHours reports whether the instant falls inside the subscriber's
// local quiet window.
func (p Preference) InQuietHours(now time.Time) bool {
	return p.quietHours.Contains(now.In(p.Location()))
}

// PeriodKey returns the digest period identifier for an instant in the
// subscriber's local time: the day for daily, the ISO week for weekly,
// and the month for monthly cadences.
func (p Preference) PeriodKey(now time.Time) string {
	local := now.In(p.Location())
	switch p.cadence {
	case CadenceWeekly:
		year, week := local.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	case CadenceMonthly:
		return local.Format("2006-01")
	default:
		return local.Format("2006-01-02")
	}
}

// IdempotencyKey returns the digest persistence key for a period.
func (p Preference) IdempotencyKey(now time.Time) string {
	return fmt.Sprintf("%s:%s:%s", p.userID, p.cadence, p.PeriodKey(now))
}

func copyMins(m map[notify.Channel]change.Significance) map[notify.Channel]change.Significance {
	if m == nil {
		return make(map[notify.Channel]change.Significance)
	}
	result := make(map[notify.Channel]change.Significance, len(m))
	maps.Copy(result, m)
	return result
}

func copyTypes(types []entity.Type) []entity.Type {
	result := make([]entity.Type, len(types))
	copy(result, types)
	return result
}
