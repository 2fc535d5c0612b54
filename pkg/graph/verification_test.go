package graph

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/repairagent/pkg/loopdetect"
	"github.com/codeready-toolchain/repairagent/pkg/models"
	"github.com/codeready-toolchain/repairagent/pkg/reliability"
	"github.com/codeready-toolchain/repairagent/pkg/sandbox"
)

type fakeEventStore struct {
	nextID int
	events map[string]*models.ReliabilityEvent
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{events: make(map[string]*models.ReliabilityEvent)}
}

func (f *fakeEventStore) InsertReliabilityEvent(ctx context.Context, event *models.ReliabilityEvent) (string, error) {
	f.nextID++
	id := fmt.Sprintf("evt-%d", f.nextID)
	event.ID = id
	f.events[id] = event
	return id, nil
}

func (f *fakeEventStore) UpdateRecoveryOutcome(ctx context.Context, eventID, strategy string, success bool) error {
	if e, ok := f.events[eventID]; ok {
		e.RecoveryStrategy = strategy
		e.RecoverySuccessful = &success
	}
	return nil
}

func (f *fakeEventStore) RecentReliabilityEvents(ctx context.Context, layer models.ReliabilityLayer, n int) ([]models.ReliabilityEvent, error) {
	return nil, nil
}

func (f *fakeEventStore) DeleteReliabilityEventsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type fakeReproducer struct {
	command string
	ok      bool
}

func (f *fakeReproducer) Infer(ctx context.Context, repoRoot string, hint reliability.ReproductionHint) (string, bool) {
	return f.command, f.ok
}

func TestVerificationNodeSucceedsOnPassingReproduction(t *testing.T) {
	state := newTestState()
	state.Diagnosis = &models.Diagnosis{ReproductionCommand: "pytest"}
	state.Files = map[string]models.FileEntry{}

	sbx := newFakeSandbox()
	sbx.result = sandbox.ExecResult{ExitCode: 0, Stdout: "3 passed"}
	gctx := &GraphContext{Sandbox: sbx, LoopDetector: loopdetect.New(2)}

	node := &VerificationNode{}
	require.NoError(t, node.Run(context.Background(), state, gctx))

	assert.Equal(t, models.StatusSuccess, state.Status)
	assert.Equal(t, "finish", state.CurrentNode)
}

func TestVerificationNodeLoopsBackToAnalysisOnFailure(t *testing.T) {
	state := newTestState()
	state.Diagnosis = &models.Diagnosis{ReproductionCommand: "pytest"}
	state.MaxIterations = 5
	state.Files = map[string]models.FileEntry{}

	sbx := newFakeSandbox()
	sbx.result = sandbox.ExecResult{ExitCode: 1, Stdout: "1 failed"}
	gctx := &GraphContext{Sandbox: sbx, LoopDetector: loopdetect.New(2)}

	node := &VerificationNode{}
	require.NoError(t, node.Run(context.Background(), state, gctx))

	assert.Equal(t, "analysis", state.CurrentNode)
	assert.Equal(t, 1, state.Iteration)
	require.Len(t, state.Feedback, 1)
	assert.Contains(t, state.Feedback[0], "Test Suite Failed")
}

func TestVerificationNodeFailsWhenMaxIterationsExceeded(t *testing.T) {
	state := newTestState()
	state.Diagnosis = &models.Diagnosis{ReproductionCommand: "pytest"}
	state.MaxIterations = 1
	state.Iteration = 0
	state.Files = map[string]models.FileEntry{}

	sbx := newFakeSandbox()
	sbx.result = sandbox.ExecResult{ExitCode: 1}
	gctx := &GraphContext{Sandbox: sbx, LoopDetector: loopdetect.New(2)}

	node := &VerificationNode{}
	require.NoError(t, node.Run(context.Background(), state, gctx))

	assert.Equal(t, models.StatusFailed, state.Status)
	assert.Equal(t, "Max iterations exceeded", state.FailureReason)
}

func TestVerificationNodeRecoversReproductionCommandViaRecoveryService(t *testing.T) {
	state := newTestState()
	state.Files = map[string]models.FileEntry{}

	store := newFakeEventStore()
	telemetry := reliability.NewTelemetry(store)
	recovery := reliability.NewRecoveryStrategyService(telemetry, &fakeReproducer{command: "go test ./...", ok: true})

	sbx := newFakeSandbox()
	sbx.result = sandbox.ExecResult{ExitCode: 0}
	gctx := &GraphContext{Sandbox: sbx, LoopDetector: loopdetect.New(2), Telemetry: telemetry, Recovery: recovery}

	node := &VerificationNode{}
	require.NoError(t, node.Run(context.Background(), state, gctx))

	assert.Equal(t, models.StatusSuccess, state.Status)
	assert.Contains(t, sbx.commands, "go test ./...")
}

func TestVerificationNodeFailsWhenReproductionUnrecoverable(t *testing.T) {
	state := newTestState()
	state.Files = map[string]models.FileEntry{}

	store := newFakeEventStore()
	telemetry := reliability.NewTelemetry(store)
	recovery := reliability.NewRecoveryStrategyService(telemetry, &fakeReproducer{ok: false})

	gctx := &GraphContext{Sandbox: newFakeSandbox(), LoopDetector: loopdetect.New(2), Telemetry: telemetry, Recovery: recovery}

	node := &VerificationNode{}
	require.NoError(t, node.Run(context.Background(), state, gctx))

	assert.Equal(t, models.StatusFailed, state.Status)
	assert.Equal(t, "Reproduction command unavailable", state.FailureReason)
}

func TestVerificationNodeDetectsLoopAndFailsWithoutRecovery(t *testing.T) {
	state := newTestState()
	state.Diagnosis = &models.Diagnosis{ReproductionCommand: "pytest"}
	state.MaxIterations = 5
	state.Classification = &models.Classification{Category: models.CategoryTestFailure}
	state.Files = map[string]models.FileEntry{
		"src/app.py": {Modified: &models.FileContent{Content: "same content"}},
	}
	state.FileReservations = []string{"src/app.py"}

	sbx := newFakeSandbox()
	sbx.result = sandbox.ExecResult{ExitCode: 1}
	detector := loopdetect.New(2)
	gctx := &GraphContext{Sandbox: sbx, LoopDetector: detector}

	node := &VerificationNode{}
	require.NoError(t, node.Run(context.Background(), state, gctx))
	require.NoError(t, node.Run(context.Background(), state, gctx))

	assert.Equal(t, models.StatusFailed, state.Status)
	assert.Equal(t, "Strategy loop", state.FailureReason)
}

func TestVerificationNodeFingerprintReflectsLogTextBeforeReset(t *testing.T) {
	state := newTestState()
	state.Diagnosis = &models.Diagnosis{ReproductionCommand: "pytest"}
	state.MaxIterations = 5
	state.Classification = &models.Classification{Category: models.CategoryTestFailure}
	state.Files = map[string]models.FileEntry{
		"src/app.py": {Modified: &models.FileContent{Content: "same content"}},
	}
	state.FileReservations = []string{"src/app.py"}

	sbx := newFakeSandbox()
	sbx.result = sandbox.ExecResult{ExitCode: 1}
	detector := loopdetect.New(2)
	gctx := &GraphContext{Sandbox: sbx, LoopDetector: detector}

	node := &VerificationNode{}

	// Same files/content across iterations, but distinct log text each
	// time: the error fingerprint component must track CurrentLogText,
	// so the loop detector must not collapse these into a duplicate.
	state.CurrentLogText = "AssertionError: expected 1 got 2"
	require.NoError(t, node.Run(context.Background(), state, gctx))
	require.Equal(t, "analysis", state.CurrentNode)
	assert.Empty(t, state.CurrentLogText)

	state.CurrentLogText = "TypeError: cannot read property of undefined"
	require.NoError(t, node.Run(context.Background(), state, gctx))

	assert.Equal(t, "analysis", state.CurrentNode)
	assert.NotEqual(t, models.StatusFailed, state.Status)
	assert.Empty(t, state.FailureReason)
}
