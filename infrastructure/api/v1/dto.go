// Package v1 provides the v1 API routes.
package v1

import (
	"time"

	"github.com/trialpulse/trialpulse/domain/change"
	"github.com/trialpulse/trialpulse/domain/digest"
	"github.com/trialpulse/trialpulse/domain/snapshot"
	"github.com/trialpulse/trialpulse/domain/watch"
)

// SnapshotRequest is the fetcher-facing ingest payload.
type SnapshotRequest struct {
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Date       string         `json:"date"`
	Payload    map[string]any `json:"payload"`
}

// SnapshotResponse describes a stored snapshot.
type SnapshotResponse struct {
	ID          int64  `json:"id"`
	EntityType  string `json:"entity_type"`
	EntityID    string `json:"entity_id"`
	Date        string `json:"date"`
	ContentHash string `json:"content_hash"`
}

func toSnapshotResponse(s snapshot.Snapshot) SnapshotResponse {
	return SnapshotResponse{
		ID:          s.ID(),
		EntityType:  s.EntityType().String(),
		EntityID:    s.EntityID(),
		Date:        snapshot.DayString(s.Date()),
		ContentHash: s.ContentHash(),
	}
}

// ChangeResponse describes one ledger record.
type ChangeResponse struct {
	ID           int64     `json:"id"`
	EntityType   string    `json:"entity_type"`
	EntityID     string    `json:"entity_id"`
	EntityName   string    `json:"entity_name"`
	Kind         string    `json:"kind"`
	Field        string    `json:"field,omitempty"`
	OldValue     string    `json:"old_value,omitempty"`
	NewValue     string    `json:"new_value,omitempty"`
	Significance string    `json:"significance"`
	Source       string    `json:"source"`
	DetectedAt   time.Time `json:"detected_at"`
	Summary      string    `json:"summary"`
}

func toChangeResponse(rec change.Record) ChangeResponse {
	return ChangeResponse{
		ID:           rec.ID(),
		EntityType:   rec.Entity().Type().String(),
		EntityID:     rec.Entity().ID(),
		EntityName:   rec.Entity().Name(),
		Kind:         rec.Kind().String(),
		Field:        rec.Field(),
		OldValue:     rec.OldValue(),
		NewValue:     rec.NewValue(),
		Significance: rec.Significance().String(),
		Source:       rec.Source(),
		DetectedAt:   rec.DetectedAt(),
		Summary:      rec.Summary(),
	}
}

func toChangeResponses(records []change.Record) []ChangeResponse {
	out := make([]ChangeResponse, len(records))
	for i, rec := range records {
		out[i] = toChangeResponse(rec)
	}
	return out
}

// SubscriptionRequest creates or replaces a watch.
type SubscriptionRequest struct {
	UserID     string   `json:"user_id"`
	EntityType string   `json:"entity_type"`
	EntityID   string   `json:"entity_id"`
	EntityName string   `json:"entity_name,omitempty"`
	Kinds      []string `json:"kinds,omitempty"`
	Channels   []string `json:"channels,omitempty"`
}

// SubscriptionResponse describes one watch subscription.
type SubscriptionResponse struct {
	ID         int64    `json:"id"`
	UserID     string   `json:"user_id"`
	EntityType string   `json:"entity_type"`
	EntityID   string   `json:"entity_id"`
	EntityName string   `json:"entity_name"`
	Kinds      []string `json:"kinds"`
	Channels   []string `json:"channels"`
}

func toSubscriptionResponse(sub watch.Subscription) SubscriptionResponse {
	kinds := []string{}
	for kind, on := range sub.Kinds() {
		if on {
			kinds = append(kinds, kind.String())
		}
	}
	channels := []string{}
	for channel, on := range sub.Channels() {
		if on {
			channels = append(channels, channel.String())
		}
	}
	return SubscriptionResponse{
		ID:         sub.ID(),
		UserID:     sub.UserID(),
		EntityType: sub.Entity().Type().String(),
		EntityID:   sub.Entity().ID(),
		EntityName: sub.Entity().Name(),
		Kinds:      kinds,
		Channels:   channels,
	}
}

// AlertResponse describes one alert.
type AlertResponse struct {
	ID           int64      `json:"id"`
	ChangeID     int64      `json:"change_id"`
	UserID       string     `json:"user_id"`
	Title        string     `json:"title"`
	Body         string     `json:"body"`
	Significance string     `json:"significance"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
}

func toAlertResponse(alert watch.Alert) AlertResponse {
	resp := AlertResponse{
		ID:           alert.ID(),
		ChangeID:     alert.ChangeID(),
		UserID:       alert.UserID(),
		Title:        alert.Title(),
		Body:         alert.Body(),
		Significance: alert.Significance().String(),
		Status:       alert.Status().String(),
		CreatedAt:    alert.CreatedAt(),
	}
	if !alert.SentAt().IsZero() {
		sentAt := alert.SentAt()
		resp.SentAt = &sentAt
	}
	return resp
}

// PreferenceRequest creates or replaces digest settings.
type PreferenceRequest struct {
	UserID          string            `json:"user_id"`
	Cadence         string            `json:"cadence"`
	DayOfWeek       int               `json:"day_of_week"`
	HourOfDay       int               `json:"hour_of_day"`
	Timezone        string            `json:"timezone"`
	MinSignificance string            `json:"min_significance,omitempty"`
	ChannelMinimums map[string]string `json:"channel_minimums,omitempty"`
	EntityTypes     []string          `json:"entity_types,omitempty"`
	WatchlistOnly   bool              `json:"watchlist_only,omitempty"`
	QuietHours      *QuietHoursDTO    `json:"quiet_hours,omitempty"`
}

// QuietHoursDTO is the subscriber-local quiet window.
type QuietHoursDTO struct {
	StartHour int `json:"start_hour"`
	EndHour   int `json:"end_hour"`
}

// PreferenceResponse describes digest settings.
type PreferenceResponse struct {
	UserID          string            `json:"user_id"`
	Cadence         string            `json:"cadence"`
	DayOfWeek       int               `json:"day_of_week"`
	HourOfDay       int               `json:"hour_of_day"`
	Timezone        string            `json:"timezone"`
	MinSignificance string            `json:"min_significance"`
	ChannelMinimums map[string]string `json:"channel_minimums"`
	EntityTypes     []string          `json:"entity_types"`
	WatchlistOnly   bool              `json:"watchlist_only"`
	QuietHours      *QuietHoursDTO    `json:"quiet_hours,omitempty"`
	LastSentAt      *time.Time        `json:"last_sent_at,omitempty"`
}

func toPreferenceResponse(pref digest.Preference) PreferenceResponse {
	mins := map[string]string{}
	for channel, sig := range pref.ChannelMinimums() {
		mins[channel.String()] = sig.String()
	}
	types := []string{}
	for _, t := range pref.EntityTypes() {
		types = append(types, t.String())
	}

	resp := PreferenceResponse{
		UserID:          pref.UserID(),
		Cadence:         pref.Cadence().String(),
		DayOfWeek:       int(pref.DayOfWeek()),
		HourOfDay:       pref.HourOfDay(),
		Timezone:        pref.Timezone(),
		MinSignificance: pref.MinSignificance().String(),
		ChannelMinimums: mins,
		EntityTypes:     types,
		WatchlistOnly:   pref.WatchlistOnly(),
	}
	if pref.QuietHours().Enabled() {
		resp.QuietHours = &QuietHoursDTO{
			StartHour: pref.QuietHours().StartHour(),
			EndHour:   pref.QuietHours().EndHour(),
		}
	}
	if !pref.LastSentAt().IsZero() {
		lastSent := pref.LastSentAt()
		resp.LastSentAt = &lastSent
	}
	return resp
}

// DigestRecordResponse describes one digest audit record.
type DigestRecordResponse struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"user_id"`
	DigestType string    `json:"digest_type"`
	PeriodKey  string    `json:"period_key"`
	ChangeIDs  []int64   `json:"change_ids"`
	SentAt     time.Time `json:"sent_at"`
	Status     string    `json:"status"`
}

func toDigestRecordResponse(rec digest.Record) DigestRecordResponse {
	return DigestRecordResponse{
		ID:         rec.ID(),
		UserID:     rec.UserID(),
		DigestType: rec.DigestType().String(),
		PeriodKey:  rec.PeriodKey(),
		ChangeIDs:  rec.ChangeIDs(),
		SentAt:     rec.SentAt(),
		Status:     string(rec.Status()),
	}
}
