package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/codeready-toolchain/repairagent/pkg/models"
	"github.com/google/uuid"
)

// InsertReliabilityEvent implements pkg/reliability.EventStore: it
// records one defense-layer firing (or passing) and returns the new
// row's ID so callers can later attach a recovery outcome to it.
func (s *Store) InsertReliabilityEvent(ctx context.Context, event *models.ReliabilityEvent) (string, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	contextJSON, err := json.Marshal(event.Context)
	if err != nil {
		return "", fmt.Errorf("encoding reliability event context: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO reliability_events
			(id, layer, triggered, threshold, context, outcome, recovery_strategy, recovery_successful)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID, event.Layer, event.Triggered, event.Threshold, contextJSON,
		event.Outcome, nullableString(event.RecoveryStrategy), event.RecoverySuccessful)
	if err != nil {
		return "", err
	}
	return event.ID, nil
}

// UpdateRecoveryOutcome attaches a resolved recovery strategy/outcome
// to a previously-inserted event, setting outcome to
// models.RecoveredBy(strategy) or models.FailedStrategy(strategy)
// depending on success.
func (s *Store) UpdateRecoveryOutcome(ctx context.Context, eventID string, strategy string, success bool) error {
	outcome := models.FailedStrategy(strategy)
	if success {
		outcome = models.RecoveredBy(strategy)
	}

	_, err := s.pool.Exec(ctx, `
		UPDATE reliability_events
		SET recovery_strategy = $2, recovery_successful = $3, outcome = $4
		WHERE id = $1`,
		eventID, strategy, success, outcome)
	return err
}

// RecentReliabilityEvents returns the n most recent events for layer,
// newest first, for pkg/reliability.Metrics/AdaptiveThresholdService.
func (s *Store) RecentReliabilityEvents(ctx context.Context, layer models.ReliabilityLayer, n int) ([]models.ReliabilityEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, layer, triggered, threshold, context, outcome,
		       recovery_strategy, recovery_successful, created_at
		FROM reliability_events
		WHERE layer = $1
		ORDER BY created_at DESC
		LIMIT $2`, layer, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.ReliabilityEvent
	for rows.Next() {
		var e models.ReliabilityEvent
		var ctxJSON []byte
		var strategy *string

		if err := rows.Scan(&e.ID, &e.Layer, &e.Triggered, &e.Threshold, &ctxJSON,
			&e.Outcome, &strategy, &e.RecoverySuccessful, &e.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(ctxJSON, &e.Context); err != nil {
			return nil, fmt.Errorf("decoding reliability event context: %w", err)
		}
		if strategy != nil {
			e.RecoveryStrategy = *strategy
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// DeleteReliabilityEventsOlderThan prunes rows older than cutoff and
// reports how many were removed.
func (s *Store) DeleteReliabilityEventsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM reliability_events WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
