// Package reliability implements the reliability telemetry, adaptive
// threshold, and recovery strategy services of spec.md §4.4: persisting
// defense-layer events, aggregating trigger rates, and adjusting
// thresholds within configured bounds.
package reliability

import (
	"context"
	"time"

	"github.com/codeready-toolchain/repairagent/pkg/models"
)

// EventStore is the persistence seam ReliabilityTelemetry writes
// through; pkg/store provides the pgx-backed implementation.
type EventStore interface {
	InsertReliabilityEvent(ctx context.Context, event *models.ReliabilityEvent) (string, error)
	UpdateRecoveryOutcome(ctx context.Context, eventID string, strategy string, success bool) error
	RecentReliabilityEvents(ctx context.Context, layer models.ReliabilityLayer, n int) ([]models.ReliabilityEvent, error)
	DeleteReliabilityEventsOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Telemetry appends reliability events to the store and mutates earlier
// rows once a recovery attempt resolves.
type Telemetry struct {
	store EventStore
}

// NewTelemetry constructs a Telemetry backed by store.
func NewTelemetry(store EventStore) *Telemetry {
	return &Telemetry{store: store}
}

// RecordEventInput is the payload for RecordEvent.
type RecordEventInput struct {
	Layer     models.ReliabilityLayer
	Triggered bool
	Threshold float64
	Context   map[string]any
	Outcome   models.ReliabilityOutcome
}

// RecordEvent appends a new reliability event row.
func (t *Telemetry) RecordEvent(ctx context.Context, in RecordEventInput) (string, error) {
	event := &models.ReliabilityEvent{
		Layer:     in.Layer,
		Triggered: in.Triggered,
		Threshold: in.Threshold,
		Context:   in.Context,
		Outcome:   in.Outcome,
		CreatedAt: time.Now(),
	}
	return t.store.InsertReliabilityEvent(ctx, event)
}

// RecordReproductionRequired is a convenience wrapper for layer
// phase2-reproduction firing because no reproduction command was
// available.
func (t *Telemetry) RecordReproductionRequired(ctx context.Context, threshold float64, runCtx map[string]any) (string, error) {
	return t.RecordEvent(ctx, RecordEventInput{
		Layer:     models.LayerPhase2Reproduction,
		Triggered: true,
		Threshold: threshold,
		Context:   runCtx,
		Outcome:   models.OutcomeTriggered,
	})
}

// RecordStrategyLoopDetected is a convenience wrapper for layer
// phase3-loop-detection firing because the loop detector found a
// duplicate fingerprint.
func (t *Telemetry) RecordStrategyLoopDetected(ctx context.Context, threshold float64, runCtx map[string]any) (string, error) {
	return t.RecordEvent(ctx, RecordEventInput{
		Layer:     models.LayerPhase3LoopDetection,
		Triggered: true,
		Threshold: threshold,
		Context:   runCtx,
		Outcome:   models.OutcomeTriggered,
	})
}

// UpdateRecoveryOutcome mutates an earlier event row once a recovery
// strategy has been attempted, recording whether it succeeded. The
// race against a concurrent GetLayerMetrics read is accepted as
// eventual consistency (spec.md §9, Open Question 2): both the pre- and
// post-update row are valid snapshots.
func (t *Telemetry) UpdateRecoveryOutcome(ctx context.Context, eventID, strategy string, success bool) error {
	return t.store.UpdateRecoveryOutcome(ctx, eventID, strategy, success)
}

// GetRecentEvents returns the n most recent events for layer.
func (t *Telemetry) GetRecentEvents(ctx context.Context, layer models.ReliabilityLayer, n int) ([]models.ReliabilityEvent, error) {
	return t.store.RecentReliabilityEvents(ctx, layer, n)
}

// DeleteOldEvents prunes events older than the given retention window.
func (t *Telemetry) DeleteOldEvents(ctx context.Context, olderThan time.Duration) (int64, error) {
	return t.store.DeleteReliabilityEventsOlderThan(ctx, time.Now().Add(-olderThan))
}
