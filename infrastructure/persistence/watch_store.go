package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/trialpulse/trialpulse/domain/query"
	"github.com/trialpulse/trialpulse/domain/watch"
	"github.com/trialpulse/trialpulse/internal/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubscriptionStore implements watch.SubscriptionStore using GORM.
type SubscriptionStore struct {
	database.Repository[watch.Subscription, SubscriptionModel]
}

// NewSubscriptionStore creates a new SubscriptionStore.
func NewSubscriptionStore(db database.Database) SubscriptionStore {
	return SubscriptionStore{
		Repository: database.NewRepository[watch.Subscription, SubscriptionModel](db, SubscriptionMapper{}, "subscription"),
	}
}

// Save creates or updates a subscription.
func (s SubscriptionStore) Save(ctx context.Context, sub watch.Subscription) (watch.Subscription, error) {
	model := s.Mapper().ToModel(sub)
	now := time.Now()

	if model.ID == 0 {
		model.CreatedAt = now
		model.UpdatedAt = now
		result := s.DB(ctx).Create(&model)
		if result.Error != nil {
			return watch.Subscription{}, fmt.Errorf("create subscription: %w", result.Error)
		}
	} else {
		model.UpdatedAt = now
		result := s.DB(ctx).Save(&model)
		if result.Error != nil {
			return watch.Subscription{}, fmt.Errorf("update subscription: %w", result.Error)
		}
	}

	return s.Mapper().ToDomain(model), nil
}

// Delete removes a subscription together with its pending alerts. Sent
// and terminal alerts stay for the subscriber's history.
func (s SubscriptionStore) Delete(ctx context.Context, sub watch.Subscription) error {
	return database.WithTransaction(ctx, s.Database(), func(tx *gorm.DB) error {
		result := tx.
			Where("subscription_id = ? AND status = ?", sub.ID(), watch.StatusPending.String()).
			Delete(&AlertModel{})
		if result.Error != nil {
			return fmt.Errorf("delete pending alerts: %w", result.Error)
		}

		model := s.Mapper().ToModel(sub)
		if result := tx.Delete(&model); result.Error != nil {
			return fmt.Errorf("delete subscription: %w", result.Error)
		}
		return nil
	})
}

// AlertStore implements watch.AlertStore using GORM.
type AlertStore struct {
	database.Repository[watch.Alert, AlertModel]
}

// NewAlertStore creates a new AlertStore.
func NewAlertStore(db database.Database) AlertStore {
	return AlertStore{
		Repository: database.NewRepository[watch.Alert, AlertModel](db, AlertMapper{}, "alert"),
	}
}

// Create writes a candidate alert. The (change_id, subscription_id) unique
// index makes a repeat from a re-run matching step a no-op; the existing
// row is returned and the bool reports whether a new row was written.
func (s AlertStore) Create(ctx context.Context, alert watch.Alert) (watch.Alert, bool, error) {
	model := s.Mapper().ToModel(alert)
	model.ID = 0
	model.CreatedAt = time.Now()

	result := s.DB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "change_id"},
			{Name: "subscription_id"},
		},
		DoNothing: true,
	}).Create(&model)
	if result.Error != nil {
		return watch.Alert{}, false, fmt.Errorf("create alert: %w", result.Error)
	}

	created := result.RowsAffected > 0
	if created && model.ID != 0 {
		return s.Mapper().ToDomain(model), true, nil
	}

	stored, err := s.FindOne(ctx,
		watch.WithChangeID(alert.ChangeID()),
		query.WithCondition("subscription_id", alert.SubscriptionID()),
	)
	if err != nil {
		return watch.Alert{}, false, fmt.Errorf("read back alert: %w", err)
	}
	return stored, created, nil
}

// Update persists a state transition on an existing alert.
func (s AlertStore) Update(ctx context.Context, alert watch.Alert) (watch.Alert, error) {
	if alert.ID() == 0 {
		return watch.Alert{}, fmt.Errorf("update alert: missing id")
	}

	model := s.Mapper().ToModel(alert)
	result := s.DB(ctx).Save(&model)
	if result.Error != nil {
		return watch.Alert{}, fmt.Errorf("update alert: %w", result.Error)
	}
	return s.Mapper().ToDomain(model), nil
}
