// Package persistence provides database storage implementations.
package persistence

import "time"

// SnapshotModel represents one dated entity state capture.
type SnapshotModel struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	EntityType   string    `gorm:"column:entity_type;uniqueIndex:idx_snapshots_entity_date;size:32"`
	EntityID     string    `gorm:"column:entity_id;uniqueIndex:idx_snapshots_entity_date;index;size:255"`
	SnapshotDate string    `gorm:"column:snapshot_date;uniqueIndex:idx_snapshots_entity_date;index;size:10"`
	Payload      string    `gorm:"column:payload;type:text"`
	ContentHash  string    `gorm:"column:content_hash;size:64"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

// TableName returns the table name.
func (SnapshotModel) TableName() string {
	return "snapshots"
}

// ChangeRecordModel represents one immutable change record.
type ChangeRecordModel struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	DedupKey     string    `gorm:"column:dedup_key;uniqueIndex;size:512"`
	EntityType   string    `gorm:"column:entity_type;index:idx_change_records_entity;size:32"`
	EntityID     string    `gorm:"column:entity_id;index:idx_change_records_entity;size:255"`
	EntityName   string    `gorm:"column:entity_name;size:512"`
	Kind         string    `gorm:"column:kind;index;size:32"`
	Field        string    `gorm:"column:field;size:255"`
	OldValue     string    `gorm:"column:old_value;type:text"`
	NewValue     string    `gorm:"column:new_value;type:text"`
	Significance int       `gorm:"column:significance;index"`
	Source       string    `gorm:"column:source;size:255"`
	DetectedAt   time.Time `gorm:"column:detected_at;index"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

// TableName returns the table name.
func (ChangeRecordModel) TableName() string {
	return "change_records"
}

// DeliveryModel marks one change record as delivered to one subscriber.
// The composite unique index is what makes MarkDelivered idempotent.
type DeliveryModel struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	ChangeID    int64     `gorm:"column:change_id;uniqueIndex:idx_deliveries_change_user;index"`
	UserID      string    `gorm:"column:user_id;uniqueIndex:idx_deliveries_change_user;index;size:255"`
	DeliveredAt time.Time `gorm:"column:delivered_at"`
}

// TableName returns the table name.
func (DeliveryModel) TableName() string {
	return "change_deliveries"
}

// SubscriptionModel represents one watch subscription.
type SubscriptionModel struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	UserID     string    `gorm:"column:user_id;uniqueIndex:idx_subscriptions_user_entity;index;size:255"`
	EntityType string    `gorm:"column:entity_type;uniqueIndex:idx_subscriptions_user_entity;size:32"`
	EntityID   string    `gorm:"column:entity_id;uniqueIndex:idx_subscriptions_user_entity;index;size:255"`
	EntityName string    `gorm:"column:entity_name;size:512"`
	Kinds      string    `gorm:"column:kinds;type:text"`
	Channels   string    `gorm:"column:channels;type:text"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

// TableName returns the table name.
func (SubscriptionModel) TableName() string {
	return "watch_subscriptions"
}

// AlertModel represents one candidate alert.
type AlertModel struct {
	ID             int64      `gorm:"primaryKey;autoIncrement"`
	ChangeID       int64      `gorm:"column:change_id;uniqueIndex:idx_alerts_change_subscription;index"`
	SubscriptionID int64      `gorm:"column:subscription_id;uniqueIndex:idx_alerts_change_subscription"`
	UserID         string     `gorm:"column:user_id;index;size:255"`
	Title          string     `gorm:"column:title;size:512"`
	Body           string     `gorm:"column:body;type:text"`
	Significance   int        `gorm:"column:significance"`
	Status         string     `gorm:"column:status;index;size:16"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	SentAt         *time.Time `gorm:"column:sent_at"`
}

// TableName returns the table name.
func (AlertModel) TableName() string {
	return "alerts"
}

// DigestPreferenceModel represents one subscriber's digest settings.
type DigestPreferenceModel struct {
	UserID          string     `gorm:"column:user_id;primaryKey;size:255"`
	Cadence         string     `gorm:"column:cadence;size:16"`
	DayOfWeek       int        `gorm:"column:day_of_week"`
	HourOfDay       int        `gorm:"column:hour_of_day"`
	Timezone        string     `gorm:"column:timezone;size:64"`
	MinSignificance int        `gorm:"column:min_significance"`
	ChannelMins     string     `gorm:"column:channel_mins;type:text"`
	EntityTypes     string     `gorm:"column:entity_types;type:text"`
	WatchlistOnly   bool       `gorm:"column:watchlist_only;default:false"`
	QuietEnabled    bool       `gorm:"column:quiet_enabled;default:false"`
	QuietStart      int        `gorm:"column:quiet_start"`
	QuietEnd        int        `gorm:"column:quiet_end"`
	LastSentAt      *time.Time `gorm:"column:last_sent_at"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at"`
}

// TableName returns the table name.
func (DigestPreferenceModel) TableName() string {
	return "digest_preferences"
}

// DigestRecordModel is the audit trail of one compiled digest.
type DigestRecordModel struct {
	ID             int64     `gorm:"primaryKey;autoIncrement"`
	UserID         string    `gorm:"column:user_id;index;size:255"`
	DigestType     string    `gorm:"column:digest_type;size:16"`
	PeriodKey      string    `gorm:"column:period_key;size:32"`
	IdempotencyKey string    `gorm:"column:idempotency_key;uniqueIndex;size:512"`
	ChangeIDs      string    `gorm:"column:change_ids;type:text"`
	SentAt         time.Time `gorm:"column:sent_at"`
	Status         string    `gorm:"column:status;size:16"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

// TableName returns the table name.
func (DigestRecordModel) TableName() string {
	return "digest_records"
}
