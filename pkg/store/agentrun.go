package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/codeready-toolchain/repairagent/pkg/models"
)

// CreateAgentRun inserts the initial row for a newly admitted session
// (pkg/orchestrator.Store).
func (s *Store) CreateAgentRun(ctx context.Context, run models.AgentRun) error {
	state, err := json.Marshal(run.State)
	if err != nil {
		return fmt.Errorf("encoding graph state: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO agent_runs (id, group_id, status, state)
		VALUES ($1, $2, $3, $4)`,
		run.ID, run.GroupID, run.Status, state)
	return err
}

// UpdateAgentRunState persists the latest GraphState snapshot and
// status for runID (pkg/orchestrator.Store, called after every graph
// node transition via GraphContext.UpdateStateCallback).
func (s *Store) UpdateAgentRunState(ctx context.Context, runID string, state models.GraphState) error {
	encoded, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding graph state: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		UPDATE agent_runs
		SET status = $2, state = $3, updated_at = now()
		WHERE id = $1`,
		runID, state.Status, encoded)
	return err
}

// GetAgentRun loads one run by ID, for the API's status endpoint.
func (s *Store) GetAgentRun(ctx context.Context, runID string) (models.AgentRun, error) {
	var run models.AgentRun
	var state []byte

	err := s.pool.QueryRow(ctx, `
		SELECT id, group_id, status, state, created_at, updated_at
		FROM agent_runs WHERE id = $1`, runID).
		Scan(&run.ID, &run.GroupID, &run.Status, &state, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		return models.AgentRun{}, err
	}

	if err := json.Unmarshal(state, &run.State); err != nil {
		return models.AgentRun{}, fmt.Errorf("decoding graph state: %w", err)
	}
	return run, nil
}

// InsertErrorFact records one per-iteration diagnosis summary
// (pkg/graph.Store).
func (s *Store) InsertErrorFact(ctx context.Context, fact models.ErrorFact) error {
	notes, err := json.Marshal(fact.Notes)
	if err != nil {
		return fmt.Errorf("encoding error fact notes: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO error_facts (id, run_id, summary, file_path, fix_action, notes)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		fact.ID, fact.RunID, fact.Summary, fact.FilePath, fact.FixAction, notes)
	return err
}

// InsertFileModification records one file write performed by the
// execution node (pkg/graph.Store).
func (s *Store) InsertFileModification(ctx context.Context, mod models.FileModification) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO file_modifications (id, run_id, path, before_hash, after_hash)
		VALUES ($1, $2, $3, $4, $5)`,
		mod.ID, mod.RunID, mod.Path, mod.BeforeHash, mod.AfterHash)
	return err
}
