package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/repairagent/pkg/loopdetect"
	"github.com/codeready-toolchain/repairagent/pkg/models"
	"github.com/codeready-toolchain/repairagent/pkg/sandbox"
)

func TestDriverRunsStraightThroughToSuccess(t *testing.T) {
	state := newTestState()
	state.CurrentLogText = "AssertionError: expected 1 got 2"

	llm := &fakeLLM{
		classification: models.Classification{Category: models.CategoryTestFailure},
		diagnosis: models.Diagnosis{
			Summary:             "off by one",
			FixAction:           models.FixActionCommand,
			SuggestedCommand:    "npm run fix",
			ReproductionCommand: "npm test",
		},
		plan: models.Plan{Goal: "apply fix", Approved: true},
	}

	sbx := newFakeSandbox()
	sbx.result = sandbox.ExecResult{ExitCode: 0}

	var finalState *models.GraphState
	gctx := &GraphContext{
		LLM:          llm,
		Sandbox:      sbx,
		Store:        &fakeStore{},
		LoopDetector: loopdetect.New(2),
		UpdateStateCallback: func(s *models.GraphState) {
			finalState = s
		},
	}

	driver := NewDriver()
	require.NoError(t, driver.Run(context.Background(), state, gctx))

	assert.Equal(t, models.StatusSuccess, state.Status)
	assert.True(t, state.Terminal())
	require.NotNil(t, finalState)
	assert.Equal(t, models.StatusSuccess, finalState.Status)
}

func TestDriverStopsAfterMaxIterationsOnRepeatedFailure(t *testing.T) {
	state := newTestState()
	state.MaxIterations = 1
	state.CurrentLogText = "AssertionError: expected 1 got 2"

	llm := &fakeLLM{
		classification: models.Classification{Category: models.CategoryTestFailure},
		diagnosis: models.Diagnosis{
			FixAction:           models.FixActionCommand,
			SuggestedCommand:    "npm run fix",
			ReproductionCommand: "npm test",
		},
	}

	sbx := newFakeSandbox()
	sbx.result = sandbox.ExecResult{ExitCode: 1}

	gctx := &GraphContext{
		LLM:          llm,
		Sandbox:      sbx,
		Store:        &fakeStore{},
		LoopDetector: loopdetect.New(2),
	}

	driver := NewDriver()
	require.NoError(t, driver.Run(context.Background(), state, gctx))

	assert.Equal(t, models.StatusFailed, state.Status)
	assert.Equal(t, "Max iterations exceeded", state.FailureReason)
}

func TestDriverAbortsOnCancelledContext(t *testing.T) {
	state := newTestState()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gctx := &GraphContext{LLM: &fakeLLM{}, Sandbox: newFakeSandbox()}

	driver := NewDriver()
	require.NoError(t, driver.Run(ctx, state, gctx))

	assert.Equal(t, models.StatusFailed, state.Status)
	assert.Equal(t, "Cancelled", state.FailureReason)
}
