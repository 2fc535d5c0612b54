package reflection

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Sink persists pattern rows durably. pkg/store implements it against
// Postgres; tests use an in-memory fake.
type Sink interface {
	PersistFailure(ctx context.Context, p FailurePattern) error
	PersistSuccess(ctx context.Context, p SuccessPattern) error
}

type writeJob struct {
	failure   *FailurePattern
	success   *SuccessPattern
	enqueued  time.Time
}

// Telemetry is the snapshot returned by PersistenceQueue.Telemetry.
type Telemetry struct {
	QueueSize       int     `json:"queueSize"`
	WritesSucceeded int64   `json:"writesSucceeded"`
	WritesFailed    int64   `json:"writesFailed"`
	AvgLatencyMs    float64 `json:"avgLatencyMs"`
}

// queueCapacity bounds the in-memory backlog of unpersisted pattern
// writes. Chosen generously against the performance contract's 1000
// concurrent-write case (spec.md §4.6).
const queueCapacity = 4096

// PersistenceQueue is a single-flusher async writer in front of a Sink,
// grounded on the teacher's Worker poll loop (pkg/queue/worker.go):
// a stopCh/stopOnce/wg pair for idempotent shutdown, and one goroutine
// selecting on the work channel, stopCh, and ctx.Done(). Unlike the
// teacher's poll-for-work loop, this flusher is push-driven: Enqueue
// sends directly into a buffered channel rather than polling a store.
type PersistenceQueue struct {
	sink Sink

	jobs     chan writeJob
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	succeeded    atomic.Int64
	failed       atomic.Int64
	latencySumMs atomic.Int64
	latencyCount atomic.Int64

	flushCh chan chan struct{}
}

// NewPersistenceQueue constructs a queue backed by sink and starts its
// flusher goroutine.
func NewPersistenceQueue(ctx context.Context, sink Sink) *PersistenceQueue {
	q := &PersistenceQueue{
		sink:    sink,
		jobs:    make(chan writeJob, queueCapacity),
		stopCh:  make(chan struct{}),
		flushCh: make(chan chan struct{}),
	}
	q.wg.Add(1)
	go q.run(ctx)
	return q
}

// EnqueueFailure pushes a FailurePattern write without blocking the
// caller beyond the channel send — recordFailure's in-memory update
// must stay authoritative and fast (spec.md §4.6 performance contract:
// 100 concurrent recordFailure calls accepted in under 100ms).
func (q *PersistenceQueue) EnqueueFailure(p FailurePattern) {
	select {
	case q.jobs <- writeJob{failure: &p, enqueued: time.Now()}:
	case <-q.stopCh:
	}
}

// EnqueueSuccess pushes a SuccessPattern write.
func (q *PersistenceQueue) EnqueueSuccess(p SuccessPattern) {
	select {
	case q.jobs <- writeJob{success: &p, enqueued: time.Now()}:
	case <-q.stopCh:
	}
}

// Telemetry returns a point-in-time snapshot of queue depth and
// cumulative write outcomes.
func (q *PersistenceQueue) Telemetry() Telemetry {
	count := q.latencyCount.Load()
	avg := 0.0
	if count > 0 {
		avg = float64(q.latencySumMs.Load()) / float64(count)
	}
	return Telemetry{
		QueueSize:       len(q.jobs),
		WritesSucceeded: q.succeeded.Load(),
		WritesFailed:    q.failed.Load(),
		AvgLatencyMs:    avg,
	}
}

// Flush blocks until every job enqueued before the call returns has
// been drained by the flusher, or ctx is done.
func (q *PersistenceQueue) Flush(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case q.flushCh <- done:
	case <-q.stopCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop signals the flusher to exit after draining any buffered jobs,
// and waits for it to finish. Safe to call more than once.
func (q *PersistenceQueue) Stop() {
	q.stopOnce.Do(func() { close(q.stopCh) })
	q.wg.Wait()
}

func (q *PersistenceQueue) run(ctx context.Context) {
	defer q.wg.Done()
	log := slog.With("component", "reflection.PersistenceQueue")

	for {
		select {
		case job := <-q.jobs:
			q.process(ctx, job, log)
		case reply := <-q.flushCh:
			q.drainAndAck(ctx, log, reply)
		case <-q.stopCh:
			q.drainRemaining(ctx, log)
			log.Info("persistence queue shutting down")
			return
		case <-ctx.Done():
			q.drainRemaining(ctx, log)
			log.Info("context cancelled, persistence queue shutting down")
			return
		}
	}
}

// drainAndAck processes every job currently buffered (non-blocking),
// then acknowledges the flush request.
func (q *PersistenceQueue) drainAndAck(ctx context.Context, log *slog.Logger, reply chan struct{}) {
	for {
		select {
		case job := <-q.jobs:
			q.process(ctx, job, log)
		default:
			close(reply)
			return
		}
	}
}

func (q *PersistenceQueue) drainRemaining(ctx context.Context, log *slog.Logger) {
	for {
		select {
		case job := <-q.jobs:
			q.process(ctx, job, log)
		default:
			return
		}
	}
}

func (q *PersistenceQueue) process(ctx context.Context, job writeJob, log *slog.Logger) {
	var err error
	switch {
	case job.failure != nil:
		err = q.sink.PersistFailure(ctx, *job.failure)
	case job.success != nil:
		err = q.sink.PersistSuccess(ctx, *job.success)
	default:
		return
	}

	latencyMs := time.Since(job.enqueued).Milliseconds()
	q.latencySumMs.Add(latencyMs)
	q.latencyCount.Add(1)

	if err != nil {
		q.failed.Add(1)
		log.Error("persisting pattern failed", "error", err)
		return
	}
	q.succeeded.Add(1)
}
