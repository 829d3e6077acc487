package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/trialpulse/trialpulse/domain/change"
	"github.com/trialpulse/trialpulse/domain/entity"
	"github.com/trialpulse/trialpulse/domain/snapshot"
	"github.com/trialpulse/trialpulse/internal/config"
	"github.com/trialpulse/trialpulse/internal/database"
	"golang.org/x/sync/errgroup"
)

// DetectionResult summarizes one detection pass.
type DetectionResult struct {
	Entities int
	Changes  int
	New      int
	Skipped  int
}

// Detection observes entity snapshots and diffs each against its latest
// prior capture, appending classified change records to the ledger.
type Detection struct {
	snapshots  snapshot.Store
	ledger     change.Ledger
	registry   change.Registry
	classifier change.Classifier
	logger     *slog.Logger
	workers    int
}

// NewDetection creates a Detection service.
func NewDetection(
	cfg config.DetectionConfig,
	snapshots snapshot.Store,
	ledger change.Ledger,
	registry change.Registry,
	classifier change.Classifier,
	logger *slog.Logger,
) *Detection {
	return &Detection{
		snapshots:  snapshots,
		ledger:     ledger,
		registry:   registry,
		classifier: classifier,
		logger:     logger,
		workers:    cfg.Workers(),
	}
}

// Observe validates and stores one fetched payload as the entity's
// snapshot for the given day. The write is idempotent per entity per day.
func (d *Detection) Observe(ctx context.Context, entityType entity.Type, entityID string, date time.Time, payload map[string]any) (snapshot.Snapshot, error) {
	schema, ok := d.registry.Schema(entityType)
	if !ok {
		return snapshot.Snapshot{}, fmt.Errorf("%w: %s", ErrUnknownEntityType, entityType)
	}
	if err := schema.Validate(payload); err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	snap := snapshot.New(entityType, entityID, date, payload, schema.FieldNames())
	stored, err := d.snapshots.Upsert(ctx, snap)
	if err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("store snapshot: %w", err)
	}
	return stored, nil
}

// Run diffs every snapshot captured on the given day against its latest
// prior capture. Entities are independent, so diffing is parallel with a
// bounded worker count. The pass is idempotent: re-running it appends no
// duplicate records.
func (d *Detection) Run(ctx context.Context, date time.Time) (DetectionResult, error) {
	snaps, err := d.snapshots.Find(ctx, snapshot.WithDate(date))
	if err != nil {
		return DetectionResult{}, fmt.Errorf("find snapshots for cycle: %w", err)
	}

	var result DetectionResult
	results := make([]DetectionResult, len(snaps))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for i, snap := range snaps {
		g.Go(func() error {
			r, err := d.detectEntity(gctx, snap)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return DetectionResult{}, err
	}

	for _, r := range results {
		result.Entities += r.Entities
		result.Changes += r.Changes
		result.New += r.New
		result.Skipped += r.Skipped
	}
	d.logger.Info("detection pass complete",
		slog.String("date", snapshot.DayString(date)),
		slog.Int("entities", result.Entities),
		slog.Int("changes", result.Changes),
		slog.Int("new_entities", result.New),
		slog.Int("skipped", result.Skipped),
	)
	return result, nil
}

// detectEntity diffs one snapshot against the entity's latest prior
// capture and appends the resulting records.
func (d *Detection) detectEntity(ctx context.Context, snap snapshot.Snapshot) (DetectionResult, error) {
	schema, ok := d.registry.Schema(snap.EntityType())
	if !ok {
		d.logger.Warn("skipping entity with no comparator schema",
			slog.String("entity_type", snap.EntityType().String()),
			slog.String("entity_id", snap.EntityID()),
		)
		return DetectionResult{Entities: 1, Skipped: 1}, nil
	}

	payload := snap.Payload()
	if err := schema.Validate(payload); err != nil {
		d.logger.Warn("skipping entity with invalid payload",
			slog.String("entity_type", snap.EntityType().String()),
			slog.String("entity_id", snap.EntityID()),
			slog.String("error", err.Error()),
		)
		return DetectionResult{Entities: 1, Skipped: 1}, nil
	}

	ref := entity.NewRef(snap.EntityType(), snap.EntityID(), schema.Name(payload))

	prev, err := d.snapshots.LatestBefore(ctx, snap.EntityType(), snap.EntityID(), snap.Date())
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			return DetectionResult{}, fmt.Errorf("load prior snapshot: %w", err)
		}
		// First observation of this entity.
		sig := d.classifier.Classify(ref.Type(), change.KindNewEntity, change.FieldChange{})
		rec := change.NewEntityRecord(ref, sig, schema.Source(), snap.Date())
		if _, _, err := d.ledger.Append(ctx, rec); err != nil {
			return DetectionResult{}, fmt.Errorf("append new-entity record: %w", err)
		}
		return DetectionResult{Entities: 1, New: 1}, nil
	}

	if prev.ContentHash() == snap.ContentHash() {
		return DetectionResult{Entities: 1}, nil
	}

	changes := change.Diff(schema, prev.Payload(), payload)
	appended := 0
	for _, fc := range changes {
		sig := d.classifier.Classify(ref.Type(), fc.Kind(), fc)
		rec := change.NewRecord(ref, fc.Kind(), fc.Field(), fc.OldValue(), fc.NewValue(), sig, schema.Source(), snap.Date())
		if _, created, err := d.ledger.Append(ctx, rec); err != nil {
			return DetectionResult{}, fmt.Errorf("append change record: %w", err)
		} else if created {
			appended++
		}
	}
	return DetectionResult{Entities: 1, Changes: appended}, nil
}
