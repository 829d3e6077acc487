package persistence

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/trialpulse/trialpulse/domain/change"
	"github.com/trialpulse/trialpulse/domain/digest"
	"github.com/trialpulse/trialpulse/domain/entity"
	"github.com/trialpulse/trialpulse/domain/notify"
	"github.com/trialpulse/trialpulse/domain/snapshot"
	"github.com/trialpulse/trialpulse/domain/watch"
)

// SnapshotMapper converts between snapshot.Snapshot and SnapshotModel.
type SnapshotMapper struct{}

// ToModel converts a domain snapshot to its database model.
func (SnapshotMapper) ToModel(s snapshot.Snapshot) SnapshotModel {
	payload, _ := json.Marshal(s.Payload())
	return SnapshotModel{
		ID:           s.ID(),
		EntityType:   s.EntityType().String(),
		EntityID:     s.EntityID(),
		SnapshotDate: snapshot.DayString(s.Date()),
		Payload:      string(payload),
		ContentHash:  s.ContentHash(),
		CreatedAt:    s.CreatedAt(),
	}
}

// ToDomain converts a database model to its domain snapshot.
func (SnapshotMapper) ToDomain(m SnapshotModel) snapshot.Snapshot {
	var payload map[string]any
	if m.Payload != "" {
		_ = json.Unmarshal([]byte(m.Payload), &payload)
	}
	date, _ := time.Parse("2006-01-02", m.SnapshotDate)
	return snapshot.Reconstruct(
		m.ID,
		entity.Type(m.EntityType),
		m.EntityID,
		date,
		payload,
		m.ContentHash,
		m.CreatedAt,
	)
}

// ChangeRecordMapper converts between change.Record and ChangeRecordModel.
type ChangeRecordMapper struct{}

// ToModel converts a domain change record to its database model.
func (ChangeRecordMapper) ToModel(r change.Record) ChangeRecordModel {
	return ChangeRecordModel{
		ID:           r.ID(),
		DedupKey:     r.DedupKey(),
		EntityType:   r.Entity().Type().String(),
		EntityID:     r.Entity().ID(),
		EntityName:   r.Entity().Name(),
		Kind:         r.Kind().String(),
		Field:        r.Field(),
		OldValue:     r.OldValue(),
		NewValue:     r.NewValue(),
		Significance: int(r.Significance()),
		Source:       r.Source(),
		DetectedAt:   r.DetectedAt(),
	}
}

// ToDomain converts a database model to its domain change record.
func (ChangeRecordMapper) ToDomain(m ChangeRecordModel) change.Record {
	ref := entity.NewRef(entity.Type(m.EntityType), m.EntityID, m.EntityName)
	return change.Reconstruct(
		m.ID,
		ref,
		change.Kind(m.Kind),
		m.Field,
		m.OldValue,
		m.NewValue,
		change.Significance(m.Significance),
		m.Source,
		m.DetectedAt,
		m.DedupKey,
	)
}

// SubscriptionMapper converts between watch.Subscription and SubscriptionModel.
type SubscriptionMapper struct{}

// ToModel converts a domain subscription to its database model.
func (SubscriptionMapper) ToModel(s watch.Subscription) SubscriptionModel {
	return SubscriptionModel{
		ID:         s.ID(),
		UserID:     s.UserID(),
		EntityType: s.Entity().Type().String(),
		EntityID:   s.Entity().ID(),
		EntityName: s.Entity().Name(),
		Kinds:      encodeFlags(s.Kinds()),
		Channels:   encodeFlags(s.Channels()),
		CreatedAt:  s.CreatedAt(),
		UpdatedAt:  s.UpdatedAt(),
	}
}

// ToDomain converts a database model to its domain subscription.
func (SubscriptionMapper) ToDomain(m SubscriptionModel) watch.Subscription {
	ref := entity.NewRef(entity.Type(m.EntityType), m.EntityID, m.EntityName)
	return watch.Reconstruct(
		m.ID,
		m.UserID,
		ref,
		decodeFlags[change.Kind](m.Kinds),
		decodeFlags[notify.Channel](m.Channels),
		m.CreatedAt,
		m.UpdatedAt,
	)
}

// AlertMapper converts between watch.Alert and AlertModel.
type AlertMapper struct{}

// ToModel converts a domain alert to its database model.
func (AlertMapper) ToModel(a watch.Alert) AlertModel {
	m := AlertModel{
		ID:             a.ID(),
		ChangeID:       a.ChangeID(),
		SubscriptionID: a.SubscriptionID(),
		UserID:         a.UserID(),
		Title:          a.Title(),
		Body:           a.Body(),
		Significance:   int(a.Significance()),
		Status:         a.Status().String(),
		CreatedAt:      a.CreatedAt(),
	}
	if !a.SentAt().IsZero() {
		sentAt := a.SentAt()
		m.SentAt = &sentAt
	}
	return m
}

// ToDomain converts a database model to its domain alert.
func (AlertMapper) ToDomain(m AlertModel) watch.Alert {
	var sentAt time.Time
	if m.SentAt != nil {
		sentAt = *m.SentAt
	}
	return watch.ReconstructAlert(
		m.ID,
		m.ChangeID,
		m.SubscriptionID,
		m.UserID,
		m.Title,
		m.Body,
		change.Significance(m.Significance),
		watch.Status(m.Status),
		m.CreatedAt,
		sentAt,
	)
}

// DigestPreferenceMapper converts between digest.Preference and DigestPreferenceModel.
type DigestPreferenceMapper struct{}

// ToModel converts a domain digest preference to its database model.
func (DigestPreferenceMapper) ToModel(p digest.Preference) DigestPreferenceModel {
	mins, _ := json.Marshal(channelMinsToStrings(p.ChannelMinimums()))
	m := DigestPreferenceModel{
		UserID:          p.UserID(),
		Cadence:         p.Cadence().String(),
		DayOfWeek:       int(p.DayOfWeek()),
		HourOfDay:       p.HourOfDay(),
		Timezone:        p.Timezone(),
		MinSignificance: int(p.MinSignificance()),
		ChannelMins:     string(mins),
		EntityTypes:     encodeTypes(p.EntityTypes()),
		WatchlistOnly:   p.WatchlistOnly(),
		QuietEnabled:    p.QuietHours().Enabled(),
		QuietStart:      p.QuietHours().StartHour(),
		QuietEnd:        p.QuietHours().EndHour(),
	}
	if !p.LastSentAt().IsZero() {
		lastSent := p.LastSentAt()
		m.LastSentAt = &lastSent
	}
	return m
}

// ToDomain converts a database model to its domain digest preference.
func (DigestPreferenceMapper) ToDomain(m DigestPreferenceModel) digest.Preference {
	quiet := digest.NoQuietHours()
	if m.QuietEnabled {
		quiet = digest.NewQuietHours(m.QuietStart, m.QuietEnd)
	}
	var lastSent time.Time
	if m.LastSentAt != nil {
		lastSent = *m.LastSentAt
	}
	return digest.ReconstructPreference(
		m.UserID,
		digest.Cadence(m.Cadence),
		time.Weekday(m.DayOfWeek),
		m.HourOfDay,
		m.Timezone,
		change.Significance(m.MinSignificance),
		channelMinsFromJSON(m.ChannelMins),
		decodeTypes(m.EntityTypes),
		m.WatchlistOnly,
		quiet,
		lastSent,
	)
}

// DigestRecordMapper converts between digest.Record and DigestRecordModel.
type DigestRecordMapper struct{}

// ToModel converts a domain digest record to its database model.
func (DigestRecordMapper) ToModel(r digest.Record) DigestRecordModel {
	return DigestRecordModel{
		ID:             r.ID(),
		UserID:         r.UserID(),
		DigestType:     r.DigestType().String(),
		PeriodKey:      r.PeriodKey(),
		IdempotencyKey: r.IdempotencyKey(),
		ChangeIDs:      encodeIDs(r.ChangeIDs()),
		SentAt:         r.SentAt(),
		Status:         string(r.Status()),
	}
}

// ToDomain converts a database model to its domain digest record.
func (DigestRecordMapper) ToDomain(m DigestRecordModel) digest.Record {
	return digest.ReconstructRecord(
		m.ID,
		m.UserID,
		digest.Cadence(m.DigestType),
		m.PeriodKey,
		m.IdempotencyKey,
		decodeIDs(m.ChangeIDs),
		m.SentAt,
		digest.DeliveryStatus(m.Status),
	)
}

// encodeFlags serializes enabled flags as a sorted JSON string array.
func encodeFlags[K ~string](flags map[K]bool) string {
	enabled := make([]string, 0, len(flags))
	for k, on := range flags {
		if on {
			enabled = append(enabled, string(k))
		}
	}
	sort.Strings(enabled)
	data, _ := json.Marshal(enabled)
	return string(data)
}

func decodeFlags[K ~string](data string) map[K]bool {
	flags := map[K]bool{}
	if data == "" {
		return flags
	}
	var enabled []string
	if err := json.Unmarshal([]byte(data), &enabled); err != nil {
		return flags
	}
	for _, k := range enabled {
		flags[K(k)] = true
	}
	return flags
}

func channelMinsToStrings(mins map[notify.Channel]change.Significance) map[string]string {
	out := make(map[string]string, len(mins))
	for c, s := range mins {
		out[c.String()] = s.String()
	}
	return out
}

func channelMinsFromJSON(data string) map[notify.Channel]change.Significance {
	mins := map[notify.Channel]change.Significance{}
	if data == "" {
		return mins
	}
	var raw map[string]string
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return mins
	}
	for c, s := range raw {
		sig, err := change.ParseSignificance(s)
		if err != nil {
			continue
		}
		mins[notify.Channel(c)] = sig
	}
	return mins
}

func encodeTypes(types []entity.Type) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	return strings.Join(names, ",")
}

func decodeTypes(data string) []entity.Type {
	if data == "" {
		return nil
	}
	parts := strings.Split(data, ",")
	types := make([]entity.Type, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			types = append(types, entity.Type(p))
		}
	}
	return types
}

func encodeIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

func decodeIDs(data string) []int64 {
	if data == "" {
		return nil
	}
	parts := strings.Split(data, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
