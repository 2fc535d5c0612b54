package reflection

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	mu        sync.Mutex
	failures  []FailurePattern
	successes []SuccessPattern
	failErr   error
}

func (s *fakeSink) PersistFailure(ctx context.Context, p FailurePattern) error {
	if s.failErr != nil {
		return s.failErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, p)
	return nil
}

func (s *fakeSink) PersistSuccess(ctx context.Context, p SuccessPattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.successes = append(s.successes, p)
	return nil
}

func (s *fakeSink) failureCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.failures)
}

func TestRecordFailureIncrementsFrequency(t *testing.T) {
	store := NewPatternStore()

	store.RecordFailure("BuildError", "missing dependency", "npm install", nil)
	p := store.RecordFailure("BuildError", "missing dependency", "npm install", nil)

	assert.Equal(t, 2, p.Frequency)
	assert.False(t, p.FirstSeen.After(p.LastSeen))
}

func TestRecordSuccessOverwritesPriorEntry(t *testing.T) {
	store := NewPatternStore()

	store.RecordSuccess("BuildError", map[string]any{"attempt": 1})
	second := store.RecordSuccess("BuildError", map[string]any{"attempt": 2})

	assert.Equal(t, 2, second.Context["attempt"])
}

func TestReflectSkipsPatternsBelowFrequencyFloor(t *testing.T) {
	store := NewPatternStore()
	store.RecordFailure("BuildError", "missing dependency", "", nil)
	store.RecordFailure("BuildError", "missing dependency", "", nil)

	insights := store.Reflect()

	assert.Empty(t, insights)
}

func TestReflectRanksByFrequencyAndSuggestsAboveHalfFailureRate(t *testing.T) {
	store := NewPatternStore()
	for i := 0; i < 5; i++ {
		store.RecordFailure("BuildError", "missing dependency", "npm install", nil)
	}
	for i := 0; i < 3; i++ {
		store.RecordFailure("TestFailure", "assertion mismatch", "", nil)
	}
	store.RecordSuccess("TestFailure", nil)
	store.RecordSuccess("TestFailure", nil)
	store.RecordSuccess("TestFailure", nil)
	store.RecordSuccess("TestFailure", nil)
	store.RecordSuccess("TestFailure", nil)
	store.RecordSuccess("TestFailure", nil)

	insights := store.Reflect()

	require.Len(t, insights, 2)
	assert.Equal(t, "BuildError", insights[0].ErrorType)
	assert.NotEmpty(t, insights[0].Suggestion, "failure rate is 100%% with no recorded successes, must suggest")

	var testFailureInsight *Insight
	for i := range insights {
		if insights[i].ErrorType == "TestFailure" {
			testFailureInsight = &insights[i]
		}
	}
	require.NotNil(t, testFailureInsight)
	assert.Less(t, testFailureInsight.FailureRate, 0.5)
	assert.Empty(t, testFailureInsight.Suggestion)
}

func TestLearnerEnqueuesPersistenceJobsOnRecord(t *testing.T) {
	sink := &fakeSink{}
	queue := NewPersistenceQueue(context.Background(), sink)
	defer queue.Stop()

	learner := NewLearner(queue)
	learner.RecordFailure("BuildError", "missing dependency", "npm install", nil)
	learner.RecordSuccess("BuildError", nil)

	require.NoError(t, queue.Flush(context.Background()))

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Len(t, sink.failures, 1)
	assert.Len(t, sink.successes, 1)
}

func TestPersistenceQueueTelemetryTracksOutcomes(t *testing.T) {
	sink := &fakeSink{}
	queue := NewPersistenceQueue(context.Background(), sink)
	defer queue.Stop()

	for i := 0; i < 10; i++ {
		queue.EnqueueFailure(FailurePattern{ErrorType: "BuildError", FailureReason: "x"})
	}
	require.NoError(t, queue.Flush(context.Background()))

	telemetry := queue.Telemetry()
	assert.Equal(t, int64(10), telemetry.WritesSucceeded)
	assert.Equal(t, int64(0), telemetry.WritesFailed)
	assert.Equal(t, 0, telemetry.QueueSize)
}

func TestPersistenceQueueTracksFailedWrites(t *testing.T) {
	sink := &fakeSink{failErr: assertErr{}}
	queue := NewPersistenceQueue(context.Background(), sink)
	defer queue.Stop()

	queue.EnqueueFailure(FailurePattern{ErrorType: "BuildError", FailureReason: "x"})
	require.NoError(t, queue.Flush(context.Background()))

	telemetry := queue.Telemetry()
	assert.Equal(t, int64(1), telemetry.WritesFailed)
}

type assertErr struct{}

func (assertErr) Error() string { return "persist failed" }

// TestPersistenceQueueAccepts100ConcurrentWritesQuickly checks that 100
// concurrent recordFailure calls are accepted on the in-memory path
// within 500ms, a looser bound than the 100ms performance contract so
// that a slow CI host does not fail it; persistence itself is verified
// separately via Flush.
func TestPersistenceQueueAccepts100ConcurrentWritesQuickly(t *testing.T) {
	sink := &fakeSink{}
	queue := NewPersistenceQueue(context.Background(), sink)
	defer queue.Stop()
	learner := NewLearner(queue)

	var wg sync.WaitGroup
	var accepted atomic.Int64
	start := time.Now()
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			learner.RecordFailure("BuildError", "missing dependency", "", nil)
			accepted.Add(1)
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	assert.Equal(t, int64(100), accepted.Load())
	assert.Less(t, elapsed, 500*time.Millisecond, "in-memory acceptance must stay fast even if this CI host is slow")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, queue.Flush(ctx))
	assert.Equal(t, 100, sink.failureCount())
}

func TestLearnerGetTelemetryWithoutQueueIsZeroValue(t *testing.T) {
	learner := NewLearner(nil)
	learner.RecordFailure("BuildError", "missing dependency", "", nil)

	assert.Equal(t, Telemetry{}, learner.GetTelemetry())
	assert.NoError(t, learner.Flush(context.Background()))
}
