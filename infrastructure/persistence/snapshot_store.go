package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/trialpulse/trialpulse/domain/entity"
	"github.com/trialpulse/trialpulse/domain/query"
	"github.com/trialpulse/trialpulse/domain/snapshot"
	"github.com/trialpulse/trialpulse/internal/database"
	"gorm.io/gorm/clause"
)

// SnapshotStore implements snapshot.Store using GORM.
type SnapshotStore struct {
	database.Repository[snapshot.Snapshot, SnapshotModel]
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(db database.Database) SnapshotStore {
	return SnapshotStore{
		Repository: database.NewRepository[snapshot.Snapshot, SnapshotModel](db, SnapshotMapper{}, "snapshot"),
	}
}

// Upsert writes a snapshot, replacing the payload and hash when a row for
// the same (entity type, entity id, date) already exists. Re-ingesting the
// same feed twice leaves a single row per entity per day.
func (s SnapshotStore) Upsert(ctx context.Context, snap snapshot.Snapshot) (snapshot.Snapshot, error) {
	model := s.Mapper().ToModel(snap)
	model.ID = 0
	model.CreatedAt = time.Now()

	result := s.DB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "entity_type"},
			{Name: "entity_id"},
			{Name: "snapshot_date"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "content_hash"}),
	}).Create(&model)
	if result.Error != nil {
		return snapshot.Snapshot{}, fmt.Errorf("upsert snapshot: %w", result.Error)
	}

	// On conflict SQLite reports the existing row id through RETURNING on
	// some driver versions but not others, so re-read for a stable result.
	var stored SnapshotModel
	lookup := s.DB(ctx).
		Where("entity_type = ?", model.EntityType).
		Where("entity_id = ?", model.EntityID).
		Where("snapshot_date = ?", model.SnapshotDate).
		First(&stored)
	if lookup.Error != nil {
		return snapshot.Snapshot{}, fmt.Errorf("read back snapshot: %w", lookup.Error)
	}
	return s.Mapper().ToDomain(stored), nil
}

// LatestBefore returns the most recent snapshot of the entity strictly
// before the given date.
func (s SnapshotStore) LatestBefore(ctx context.Context, entityType entity.Type, entityID string, date time.Time) (snapshot.Snapshot, error) {
	return s.FindOne(ctx,
		snapshot.WithEntityType(entityType),
		snapshot.WithEntityID(entityID),
		snapshot.WithDateBefore(date),
		query.WithOrderDesc("snapshot_date"),
	)
}
