package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/trialpulse/trialpulse/domain/digest"
	"github.com/trialpulse/trialpulse/internal/database"
	"gorm.io/gorm/clause"
)

// DigestPreferenceStore implements digest.PreferenceStore using GORM.
type DigestPreferenceStore struct {
	database.Repository[digest.Preference, DigestPreferenceModel]
}

// NewDigestPreferenceStore creates a new DigestPreferenceStore.
func NewDigestPreferenceStore(db database.Database) DigestPreferenceStore {
	return DigestPreferenceStore{
		Repository: database.NewRepository[digest.Preference, DigestPreferenceModel](db, DigestPreferenceMapper{}, "digest preference"),
	}
}

// Save creates or replaces the subscriber's digest settings.
func (s DigestPreferenceStore) Save(ctx context.Context, pref digest.Preference) (digest.Preference, error) {
	model := s.Mapper().ToModel(pref)
	now := time.Now()
	model.UpdatedAt = now
	if model.CreatedAt.IsZero() {
		model.CreatedAt = now
	}

	result := s.DB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"cadence", "day_of_week", "hour_of_day", "timezone",
			"min_significance", "channel_mins", "entity_types",
			"watchlist_only", "quiet_enabled", "quiet_start", "quiet_end",
			"last_sent_at", "updated_at",
		}),
	}).Create(&model)
	if result.Error != nil {
		return digest.Preference{}, fmt.Errorf("save digest preference: %w", result.Error)
	}
	return s.Mapper().ToDomain(model), nil
}

// Get returns the subscriber's digest settings.
func (s DigestPreferenceStore) Get(ctx context.Context, userID string) (digest.Preference, error) {
	return s.FindOne(ctx, digest.WithUser(userID))
}

// FindAll returns every subscriber's digest settings.
func (s DigestPreferenceStore) FindAll(ctx context.Context) ([]digest.Preference, error) {
	return s.Find(ctx)
}

// DigestRecordStore implements digest.RecordStore using GORM.
type DigestRecordStore struct {
	database.Repository[digest.Record, DigestRecordModel]
}

// NewDigestRecordStore creates a new DigestRecordStore.
func NewDigestRecordStore(db database.Database) DigestRecordStore {
	return DigestRecordStore{
		Repository: database.NewRepository[digest.Record, DigestRecordModel](db, DigestRecordMapper{}, "digest record"),
	}
}

// Create writes a digest audit record. The idempotency key unique index
// makes a concurrent or repeated compile for the same subscriber and
// period a no-op; the existing row is returned and the bool reports
// whether a new row was written.
func (s DigestRecordStore) Create(ctx context.Context, rec digest.Record) (digest.Record, bool, error) {
	model := s.Mapper().ToModel(rec)
	model.ID = 0
	model.CreatedAt = time.Now()

	result := s.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "idempotency_key"}},
		DoNothing: true,
	}).Create(&model)
	if result.Error != nil {
		return digest.Record{}, false, fmt.Errorf("create digest record: %w", result.Error)
	}

	created := result.RowsAffected > 0
	if created && model.ID != 0 {
		return s.Mapper().ToDomain(model), true, nil
	}

	stored, err := s.FindOne(ctx, digest.WithIdempotencyKey(rec.IdempotencyKey()))
	if err != nil {
		return digest.Record{}, false, fmt.Errorf("read back digest record: %w", err)
	}
	return stored, created, nil
}

// Update persists a delivery status change on an existing record.
func (s DigestRecordStore) Update(ctx context.Context, rec digest.Record) (digest.Record, error) {
	if rec.ID() == 0 {
		return digest.Record{}, fmt.Errorf("update digest record: missing id")
	}

	model := s.Mapper().ToModel(rec)
	result := s.DB(ctx).Save(&model)
	if result.Error != nil {
		return digest.Record{}, fmt.Errorf("update digest record: %w", result.Error)
	}
	return s.Mapper().ToDomain(model), nil
}
