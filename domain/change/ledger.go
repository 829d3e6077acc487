package change

import (
	"context"
	"time"

	"github.com/trialpulse/trialpulse/domain/entity"
	"github.com/trialpulse/trialpulse/domain/query"
)

// Ledger is the append-only store of change records with per-subscriber
// delivery bookkeeping. Records are never updated or deleted.
type Ledger interface {
	// Append writes a record. It is idempotent on the record's dedup key:
	// the returned bool is false when an identical record from an earlier
	// run of the same cycle already existed.
	Append(ctx context.Context, rec Record) (Record, bool, error)

	Find(ctx context.Context, options ...query.Option) ([]Record, error)
	Count(ctx context.Context, options ...query.Option) (int64, error)

	// PendingFor returns the records not yet delivered to the subscriber,
	// ordered by significance tier then recency. The query is restartable:
	// calling it again returns the same records until they are marked
	// delivered.
	PendingFor(ctx context.Context, userID string, options ...query.Option) ([]Record, error)

	// MarkDelivered records delivery of the given records to one
	// subscriber. Idempotent: marking the same ids twice has the same
	// effect as once, and never affects other subscribers.
	MarkDelivered(ctx context.Context, ids []int64, userID string) error
}

// WithEntity filters by entity type and id.
func WithEntity(t entity.Type, id string) []query.Option {
	return []query.Option{
		query.WithCondition("entity_type", string(t)),
		query.WithCondition("entity_id", id),
	}
}

// WithEntityTypeIn filters by the "entity_type" column using IN.
func WithEntityTypeIn(types []entity.Type) query.Option {
	values := make([]string, len(types))
	for i, t := range types {
		values[i] = string(t)
	}
	return query.WithConditionIn("entity_type", values)
}

// WithKind filters by the "kind" column.
func WithKind(k Kind) query.Option {
	return query.WithCondition("kind", string(k))
}

// WithMinSignificance filters records at or above the given tier.
func WithMinSignificance(s Significance) query.Option {
	return query.WithWhere("significance >= ?", int(s))
}

// WithDetectedSince filters records detected at or after the given time.
func WithDetectedSince(t time.Time) query.Option {
	return query.WithWhere("detected_at >= ?", t)
}

// WithDedupKey filters by the "dedup_key" column.
func WithDedupKey(key string) query.Option {
	return query.WithCondition("dedup_key", key)
}
