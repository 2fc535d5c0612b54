package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/codeready-toolchain/repairagent/pkg/models"
	"github.com/google/uuid"
)

// UpsertFixTrajectory records one completed repair attempt's tool
// sequence for offline learning. A second occurrence of the same
// (errorCategory, toolSequence) pair accumulates onto the existing row
// rather than creating a duplicate: occurrence_count increments, cost
// and latency totals add, and reward/success/last_used move to the
// caller's latest values.
func (s *Store) UpsertFixTrajectory(ctx context.Context, t models.FixTrajectory) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	toolSequence, err := json.Marshal(t.ToolSequence)
	if err != nil {
		return fmt.Errorf("encoding tool sequence: %w", err)
	}
	sequenceKey := strings.Join(t.ToolSequence, ",")

	_, err = s.pool.Exec(ctx, `
		INSERT INTO fix_trajectories
			(id, error_category, complexity, tool_sequence, tool_sequence_key,
			 success, occurrence_count, total_cost, total_latency_ms, reward, last_used)
		VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $8, $9, $10)
		ON CONFLICT (error_category, tool_sequence_key) DO UPDATE SET
			success          = EXCLUDED.success,
			occurrence_count = fix_trajectories.occurrence_count + 1,
			total_cost       = fix_trajectories.total_cost + EXCLUDED.total_cost,
			total_latency_ms = fix_trajectories.total_latency_ms + EXCLUDED.total_latency_ms,
			reward           = EXCLUDED.reward,
			last_used        = EXCLUDED.last_used`,
		t.ID, t.ErrorCategory, t.Complexity, toolSequence, sequenceKey,
		t.Success, t.TotalCost, t.TotalLatency.Milliseconds(), t.Reward, t.LastUsed)
	return err
}

// TopFixTrajectories returns the n highest-reward trajectories recorded
// for category, most recently used first among ties, for the planning
// node to consult when proposing a tool sequence.
func (s *Store) TopFixTrajectories(ctx context.Context, category models.ErrorCategory, n int) ([]models.FixTrajectory, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, error_category, complexity, tool_sequence, success,
		       occurrence_count, total_cost, total_latency_ms, reward, last_used
		FROM fix_trajectories
		WHERE error_category = $1
		ORDER BY reward DESC, last_used DESC
		LIMIT $2`, category, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trajectories []models.FixTrajectory
	for rows.Next() {
		var t models.FixTrajectory
		var toolSequence []byte
		var latencyMS int64

		if err := rows.Scan(&t.ID, &t.ErrorCategory, &t.Complexity, &toolSequence,
			&t.Success, &t.OccurrenceCount, &t.TotalCost, &latencyMS, &t.Reward, &t.LastUsed); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(toolSequence, &t.ToolSequence); err != nil {
			return nil, fmt.Errorf("decoding tool sequence: %w", err)
		}
		t.TotalLatency = time.Duration(latencyMS) * time.Millisecond
		trajectories = append(trajectories, t)
	}
	return trajectories, rows.Err()
}
