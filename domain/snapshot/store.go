package snapshot

import (
	"context"
	"time"

	"github.com/trialpulse/trialpulse/domain/entity"
	"github.com/trialpulse/trialpulse/domain/query"
)

// Store persists snapshots. Rows are never mutated or deleted; Upsert is
// idempotent on (entity type, entity id, date).
type Store interface {
	Upsert(ctx context.Context, snap Snapshot) (Snapshot, error)
	// LatestBefore returns the most recent snapshot strictly before date,
	// or database.ErrNotFound when this is the entity's first observation.
	LatestBefore(ctx context.Context, entityType entity.Type, entityID string, date time.Time) (Snapshot, error)
	Find(ctx context.Context, options ...query.Option) ([]Snapshot, error)
	Count(ctx context.Context, options ...query.Option) (int64, error)
}

// WithEntityType filters by the "entity_type" column.
func WithEntityType(t entity.Type) query.Option {
	return query.WithCondition("entity_type", string(t))
}

// WithEntityID filters by the "entity_id" column.
func WithEntityID(id string) query.Option {
	return query.WithCondition("entity_id", id)
}

// WithDate filters by the "snapshot_date" column.
func WithDate(date time.Time) query.Option {
	return query.WithCondition("snapshot_date", DayString(date))
}

// WithDateBefore filters snapshots strictly before the given day.
func WithDateBefore(date time.Time) query.Option {
	return query.WithWhere("snapshot_date < ?", DayString(date))
}
