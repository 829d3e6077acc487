package digest

import (
	"context"

	"github.com/trialpulse/trialpulse/domain/query"
)

// PreferenceStore persists digest preferences, one row per subscriber.
type PreferenceStore interface {
	Save(ctx context.Context, pref Preference) (Preference, error)
	Get(ctx context.Context, userID string) (Preference, error)
	FindAll(ctx context.Context) ([]Preference, error)
}

// RecordStore persists digest audit records. Create is idempotent on the
// idempotency key: a collision is a successful no-op, reported via the
// returned bool.
type RecordStore interface {
	Create(ctx context.Context, rec Record) (Record, bool, error)
	Update(ctx context.Context, rec Record) (Record, error)
	Find(ctx context.Context, options ...query.Option) ([]Record, error)
}

// WithUser filters by the "user_id" column.
func WithUser(userID string) query.Option {
	return query.WithCondition("user_id", userID)
}

// WithPeriod filters by the "period_key" column.
func WithPeriod(key string) query.Option {
	return query.WithCondition("period_key", key)
}

// WithIdempotencyKey filters by the "idempotency_key" column.
func WithIdempotencyKey(key string) query.Option {
	return query.WithCondition("idempotency_key", key)
}
