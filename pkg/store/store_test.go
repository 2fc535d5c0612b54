package store_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/codeready-toolchain/repairagent/pkg/models"
	"github.com/codeready-toolchain/repairagent/pkg/reflection"
	"github.com/codeready-toolchain/repairagent/pkg/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	sharedDSN     string
	containerOnce sync.Once
	containerErr  error
)

// setupTestStore starts (once per package) a shared Postgres
// testcontainer, points New at it, and returns a ready Store whose
// migrations have already been applied. Grounded on the teacher's
// test/util/database.go, but without the Ent layer: pkg/store runs
// raw SQL through pgxpool directly, so there's no generated client to
// construct per test.
func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()

	dsn := getOrCreateSharedDatabase(t)
	s, err := store.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func getOrCreateSharedDatabase(t *testing.T) string {
	t.Helper()

	if ci := os.Getenv("CI_DATABASE_URL"); ci != "" {
		return ci
	}

	containerOnce.Do(func() {
		ctx := context.Background()
		pgContainer, err := postgres.Run(ctx,
			"postgres:17-alpine",
			postgres.WithDatabase("repairagent_test"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		if err != nil {
			containerErr = fmt.Errorf("starting postgres container: %w", err)
			return
		}

		connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			containerErr = fmt.Errorf("getting connection string: %w", err)
			return
		}
		sharedDSN = connStr
	})

	require.NoError(t, containerErr)
	return sharedDSN
}

func TestCreateAndGetAgentRun(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	run := models.AgentRun{
		ID:      uuid.NewString(),
		GroupID: uuid.NewString(),
		Status:  models.StatusWorking,
		State: models.GraphState{
			Status:        models.StatusWorking,
			MaxIterations: 5,
			Group:         models.RunGroup{MainRunID: "main-1"},
		},
	}

	require.NoError(t, s.CreateAgentRun(ctx, run))

	loaded, err := s.GetAgentRun(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, run.ID, loaded.ID)
	require.Equal(t, run.GroupID, loaded.GroupID)
	require.Equal(t, models.StatusWorking, loaded.Status)
	require.Equal(t, 5, loaded.State.MaxIterations)
	require.Equal(t, "main-1", loaded.State.Group.MainRunID)
}

func TestUpdateAgentRunStatePersistsStatusAndIteration(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	run := models.AgentRun{
		ID:      uuid.NewString(),
		GroupID: uuid.NewString(),
		Status:  models.StatusWorking,
		State:   models.GraphState{Status: models.StatusWorking},
	}
	require.NoError(t, s.CreateAgentRun(ctx, run))

	updated := run.State
	updated.Status = models.StatusSuccess
	updated.Iteration = 3
	require.NoError(t, s.UpdateAgentRunState(ctx, run.ID, updated))

	loaded, err := s.GetAgentRun(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusSuccess, loaded.Status)
	require.Equal(t, 3, loaded.State.Iteration)
}

func TestInsertErrorFactAndFileModificationCascadeOnRunDelete(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	run := models.AgentRun{ID: uuid.NewString(), GroupID: uuid.NewString(), Status: models.StatusWorking}
	require.NoError(t, s.CreateAgentRun(ctx, run))

	require.NoError(t, s.InsertErrorFact(ctx, models.ErrorFact{
		ID:        uuid.NewString(),
		RunID:     run.ID,
		Summary:   "nil pointer dereference in handler",
		FilePath:  "internal/handler/run.go",
		FixAction: models.FixActionEdit,
	}))

	require.NoError(t, s.InsertFileModification(ctx, models.FileModification{
		ID:         uuid.NewString(),
		RunID:      run.ID,
		Path:       "internal/handler/run.go",
		BeforeHash: "abc123",
		AfterHash:  "def456",
	}))
}

func TestReliabilityEventInsertAndUpdateOutcome(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	event := &models.ReliabilityEvent{
		Layer:     models.LayerPhase3LoopDetection,
		Triggered: true,
		Threshold: 0.8,
		Context:   map[string]any{"iteration": float64(4)},
		Outcome:   models.OutcomeTriggered,
	}
	id, err := s.InsertReliabilityEvent(ctx, event)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.NoError(t, s.UpdateRecoveryOutcome(ctx, id, "retry-with-broader-context", true))

	events, err := s.RecentReliabilityEvents(ctx, models.LayerPhase3LoopDetection, 10)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	require.Equal(t, id, events[0].ID)
	require.Equal(t, "retry-with-broader-context", events[0].RecoveryStrategy)
	require.NotNil(t, events[0].RecoverySuccessful)
	require.True(t, *events[0].RecoverySuccessful)
	require.Equal(t, models.RecoveredBy("retry-with-broader-context"), events[0].Outcome)
}

func TestDeleteReliabilityEventsOlderThan(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.InsertReliabilityEvent(ctx, &models.ReliabilityEvent{
		Layer:     models.LayerPhase2Reproduction,
		Triggered: false,
		Outcome:   models.OutcomePassed,
		Context:   map[string]any{},
	})
	require.NoError(t, err)

	n, err := s.DeleteReliabilityEventsOlderThan(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, int64(1))
}

func TestUpsertFixTrajectoryAccumulatesOccurrenceCount(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	trajectory := models.FixTrajectory{
		ErrorCategory: models.CategoryBuild,
		Complexity:    2,
		ToolSequence:  []string{"read_file", "edit_file", "run_command"},
		Success:       true,
		TotalCost:     0.02,
		TotalLatency:  2 * time.Second,
		Reward:        0.9,
		LastUsed:      time.Now(),
	}
	require.NoError(t, s.UpsertFixTrajectory(ctx, trajectory))
	require.NoError(t, s.UpsertFixTrajectory(ctx, trajectory))

	top, err := s.TopFixTrajectories(ctx, models.CategoryBuild, 5)
	require.NoError(t, err)
	require.Len(t, top, 1)
	require.Equal(t, 2, top[0].OccurrenceCount)
	require.Equal(t, strings.Join(trajectory.ToolSequence, ","), strings.Join(top[0].ToolSequence, ","))
}

func TestReflectionSinkPersistFailureAndSuccess(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	failure := reflection.FailurePattern{
		ErrorType:     string(models.CategoryRuntime),
		FailureReason: "timeout waiting for pod ready",
		Frequency:     1,
		FirstSeen:     time.Now(),
		LastSeen:      time.Now(),
	}
	require.NoError(t, s.PersistFailure(ctx, failure))

	failure.Frequency = 4
	require.NoError(t, s.PersistFailure(ctx, failure))

	success := reflection.SuccessPattern{
		ErrorType: string(models.CategoryRuntime),
		LastSeen:  time.Now(),
		Context:   map[string]any{"strategy": "increase-timeout"},
	}
	require.NoError(t, s.PersistSuccess(ctx, success))
}
