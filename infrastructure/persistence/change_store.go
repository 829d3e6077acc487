package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/trialpulse/trialpulse/domain/change"
	"github.com/trialpulse/trialpulse/domain/query"
	"github.com/trialpulse/trialpulse/internal/database"
	"gorm.io/gorm/clause"
)

// ChangeStore implements change.Ledger using GORM. Records are append-only;
// delivery state lives in a separate join table so one subscriber's digest
// never consumes another's pending changes.
type ChangeStore struct {
	database.Repository[change.Record, ChangeRecordModel]
}

// NewChangeStore creates a new ChangeStore.
func NewChangeStore(db database.Database) ChangeStore {
	return ChangeStore{
		Repository: database.NewRepository[change.Record, ChangeRecordModel](db, ChangeRecordMapper{}, "change record"),
	}
}

// Append writes a change record. The dedup key unique index makes a repeat
// append from a re-run detection cycle a no-op; the existing row is
// returned and the bool reports whether a new row was written.
func (s ChangeStore) Append(ctx context.Context, rec change.Record) (change.Record, bool, error) {
	model := s.Mapper().ToModel(rec)
	model.ID = 0
	model.CreatedAt = time.Now()

	result := s.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dedup_key"}},
		DoNothing: true,
	}).Create(&model)
	if result.Error != nil {
		return change.Record{}, false, fmt.Errorf("append change record: %w", result.Error)
	}

	created := result.RowsAffected > 0
	if created && model.ID != 0 {
		return s.Mapper().ToDomain(model), true, nil
	}

	stored, err := s.FindOne(ctx, change.WithDedupKey(rec.DedupKey()))
	if err != nil {
		return change.Record{}, false, fmt.Errorf("read back change record: %w", err)
	}
	return stored, created, nil
}

// PendingFor returns the records not yet marked delivered to the
// subscriber, most significant first and newest first within a tier.
func (s ChangeStore) PendingFor(ctx context.Context, userID string, options ...query.Option) ([]change.Record, error) {
	var models []ChangeRecordModel
	db := s.DB(ctx).
		Model(&ChangeRecordModel{}).
		Joins("LEFT JOIN change_deliveries ON change_deliveries.change_id = change_records.id AND change_deliveries.user_id = ?", userID).
		Where("change_deliveries.id IS NULL")
	db = database.ApplyConditions(db, options...)
	result := db.
		Order("change_records.significance DESC").
		Order("change_records.detected_at DESC").
		Order("change_records.id ASC").
		Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("find pending changes: %w", result.Error)
	}

	records := make([]change.Record, len(models))
	for i, model := range models {
		records[i] = s.Mapper().ToDomain(model)
	}
	return records, nil
}

// MarkDelivered records delivery of the given change ids to one subscriber.
// The (change_id, user_id) unique index absorbs repeats.
func (s ChangeStore) MarkDelivered(ctx context.Context, ids []int64, userID string) error {
	if len(ids) == 0 {
		return nil
	}

	now := time.Now()
	deliveries := make([]DeliveryModel, len(ids))
	for i, id := range ids {
		deliveries[i] = DeliveryModel{
			ChangeID:    id,
			UserID:      userID,
			DeliveredAt: now,
		}
	}

	result := s.DB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "change_id"},
			{Name: "user_id"},
		},
		DoNothing: true,
	}).Create(&deliveries)
	if result.Error != nil {
		return fmt.Errorf("mark changes delivered: %w", result.Error)
	}
	return nil
}
