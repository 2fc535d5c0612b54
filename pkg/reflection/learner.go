package reflection

import "context"

// Learner is the public seam the orchestrator drives: an in-memory
// PatternStore for synchronous reads plus a PersistenceQueue for async
// durability, composed behind the four operations spec.md §4.6 names.
type Learner struct {
	patterns *PatternStore
	queue    *PersistenceQueue
}

// NewLearner constructs a Learner. queue may be nil, in which case
// pattern recording is in-memory only (used by tests and by any
// deployment that has not configured a durable sink).
func NewLearner(queue *PersistenceQueue) *Learner {
	return &Learner{patterns: NewPatternStore(), queue: queue}
}

// RecordFailure updates the in-memory FailurePattern table and, if a
// durable sink is configured, enqueues the updated row for async
// persistence.
func (l *Learner) RecordFailure(errorType, failureReason, attemptedFix string, context map[string]any) FailurePattern {
	p := l.patterns.RecordFailure(errorType, failureReason, attemptedFix, context)
	if l.queue != nil {
		l.queue.EnqueueFailure(p)
	}
	return p
}

// RecordSuccess updates the in-memory SuccessPattern table and, if a
// durable sink is configured, enqueues the row for async persistence.
func (l *Learner) RecordSuccess(errorType string, context map[string]any) SuccessPattern {
	p := l.patterns.RecordSuccess(errorType, context)
	if l.queue != nil {
		l.queue.EnqueueSuccess(p)
	}
	return p
}

// Reflect ranks the current in-memory patterns. See PatternStore.Reflect.
func (l *Learner) Reflect() []Insight {
	return l.patterns.Reflect()
}

// GetTelemetry reports PersistenceQueue health, or a zero-value
// Telemetry if no durable sink is configured.
func (l *Learner) GetTelemetry() Telemetry {
	if l.queue == nil {
		return Telemetry{}
	}
	return l.queue.Telemetry()
}

// Flush blocks until the persistence queue has drained its current
// backlog, or is a no-op if no durable sink is configured.
func (l *Learner) Flush(ctx context.Context) error {
	if l.queue == nil {
		return nil
	}
	return l.queue.Flush(ctx)
}
