package watch

import (
	"context"

	"github.com/trialpulse/trialpulse/domain/entity"
	"github.com/trialpulse/trialpulse/domain/query"
)

// SubscriptionStore persists watch subscriptions.
type SubscriptionStore interface {
	Save(ctx context.Context, sub Subscription) (Subscription, error)
	Delete(ctx context.Context, sub Subscription) error
	Find(ctx context.Context, options ...query.Option) ([]Subscription, error)
	FindOne(ctx context.Context, options ...query.Option) (Subscription, error)
}

// AlertStore persists alerts. Create is idempotent on
// (change id, subscription id) so a re-run of the matching step never
// duplicates candidate alerts.
type AlertStore interface {
	Create(ctx context.Context, alert Alert) (Alert, bool, error)
	Update(ctx context.Context, alert Alert) (Alert, error)
	Find(ctx context.Context, options ...query.Option) ([]Alert, error)
	FindOne(ctx context.Context, options ...query.Option) (Alert, error)
}

// WithUser filters by the "user_id" column.
func WithUser(userID string) query.Option {
	return query.WithCondition("user_id", userID)
}

// WithWatchedEntity filters subscriptions by entity type and id.
func WithWatchedEntity(t entity.Type, id string) []query.Option {
	return []query.Option{
		query.WithCondition("entity_type", string(t)),
		query.WithCondition("entity_id", id),
	}
}

// WithStatus filters alerts by the "status" column.
func WithStatus(s Status) query.Option {
	return query.WithCondition("status", string(s))
}

// WithChangeID filters alerts by the "change_id" column.
func WithChangeID(id int64) query.Option {
	return query.WithCondition("change_id", id)
}
