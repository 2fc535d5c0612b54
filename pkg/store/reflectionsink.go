package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/codeready-toolchain/repairagent/pkg/reflection"
)

// PersistFailure upserts one FailurePattern row, keyed on
// (error_type, failure_reason) — the same key reflection.PatternStore
// uses in memory — so a repeated failure updates frequency/last_seen
// in place instead of accumulating duplicate rows. Satisfies
// pkg/reflection.Sink for reflection.PersistenceQueue's flusher
// goroutine.
func (s *Store) PersistFailure(ctx context.Context, p reflection.FailurePattern) error {
	contextJSON, err := json.Marshal(p.Context)
	if err != nil {
		return fmt.Errorf("encoding failure pattern context: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO failure_patterns
			(error_type, failure_reason, frequency, attempted_fix, context, first_seen, last_seen)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (error_type, failure_reason) DO UPDATE SET
			frequency     = EXCLUDED.frequency,
			attempted_fix = EXCLUDED.attempted_fix,
			context       = EXCLUDED.context,
			last_seen     = EXCLUDED.last_seen`,
		p.ErrorType, p.FailureReason, p.Frequency, p.AttemptedFix, contextJSON, p.FirstSeen, p.LastSeen)
	return err
}

// PersistSuccess upserts one SuccessPattern row, keyed on error_type.
func (s *Store) PersistSuccess(ctx context.Context, p reflection.SuccessPattern) error {
	contextJSON, err := json.Marshal(p.Context)
	if err != nil {
		return fmt.Errorf("encoding success pattern context: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO success_patterns (error_type, context, last_seen)
		VALUES ($1, $2, $3)
		ON CONFLICT (error_type) DO UPDATE SET
			context   = EXCLUDED.context,
			last_seen = EXCLUDED.last_seen`,
		p.ErrorType, contextJSON, p.LastSeen)
	return err
}
