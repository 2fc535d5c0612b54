package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/repairagent/pkg/models"
	"github.com/codeready-toolchain/repairagent/pkg/pipeline"
)

// fakePipelineLLM is a scriptable pipeline.LLMGateway fake, distinct
// from fakeLLM since the pipeline's prompt shapes differ from the
// graph's.
type fakePipelineLLM struct {
	loc        pipeline.FaultLocalization
	candidates map[pipeline.Strategy]pipeline.PatchCandidate
}

func (f *fakePipelineLLM) LocalizeFault(ctx context.Context, log string, frames []pipeline.StackFrame, repoContext string) (pipeline.FaultLocalization, error) {
	return f.loc, nil
}

func (f *fakePipelineLLM) GeneratePatchCandidate(ctx context.Context, loc pipeline.FaultLocalization, strategy pipeline.Strategy, temperature float64, feedback []string) (pipeline.PatchCandidate, error) {
	c := f.candidates[strategy]
	c.Strategy = strategy
	return c, nil
}

func TestExecutionNodeRunsCommandFixWithoutFileModification(t *testing.T) {
	state := newTestState()
	state.Diagnosis = &models.Diagnosis{FixAction: models.FixActionCommand, SuggestedCommand: "pip install requests"}

	sbx := newFakeSandbox()
	store := &fakeStore{}
	gctx := &GraphContext{LLM: &fakeLLM{}, Sandbox: sbx, Store: store}

	node := &ExecutionNode{}
	require.NoError(t, node.Run(context.Background(), state, gctx))

	assert.Equal(t, "verification", state.CurrentNode)
	assert.Contains(t, sbx.commands, "pip install requests")
	assert.Empty(t, store.modFiles)
}

func TestExecutionNodeEditsReservedFilesAndPersistsModification(t *testing.T) {
	state := newTestState()
	state.Diagnosis = &models.Diagnosis{FixAction: models.FixActionEdit, FilePath: "src/app.py"}
	state.FileReservations = []string{"src/app.py"}

	llm := &fakeLLM{fixContent: "print('fixed')", judgeApproved: true}
	sbx := newFakeSandbox()
	store := &fakeStore{}
	gctx := &GraphContext{LLM: llm, Sandbox: sbx, Store: store}

	node := &ExecutionNode{}
	require.NoError(t, node.Run(context.Background(), state, gctx))

	assert.Equal(t, "verification", state.CurrentNode)
	require.Len(t, store.modFiles, 1)
	assert.Equal(t, "src/app.py", store.modFiles[0].Path)
	assert.NotEqual(t, store.modFiles[0].BeforeHash, store.modFiles[0].AfterHash)
	assert.Equal(t, []byte("print('fixed')"), sbx.writtenFile["src/app.py"])
	assert.Equal(t, models.FileStatusModified, state.Files["src/app.py"].Status)
}

func TestExecutionNodeAppendsFeedbackWhenJudgeRejects(t *testing.T) {
	state := newTestState()
	state.Diagnosis = &models.Diagnosis{FixAction: models.FixActionEdit, FilePath: "src/app.py"}
	state.FileReservations = []string{"src/app.py"}

	llm := &fakeLLM{fixContent: "print('maybe')", judgeApproved: false, judgeReasoning: "doesn't address root cause"}
	gctx := &GraphContext{LLM: llm, Sandbox: newFakeSandbox(), Store: &fakeStore{}}

	node := &ExecutionNode{}
	require.NoError(t, node.Run(context.Background(), state, gctx))

	require.Len(t, state.Feedback, 1)
	assert.Contains(t, state.Feedback[0], "not approved")
}

func TestExecutionNodeFailsWithoutDiagnosis(t *testing.T) {
	state := newTestState()
	gctx := &GraphContext{LLM: &fakeLLM{}, Sandbox: newFakeSandbox()}

	node := &ExecutionNode{}
	require.NoError(t, node.Run(context.Background(), state, gctx))

	assert.Equal(t, models.StatusFailed, state.Status)
	assert.Equal(t, "No diagnosis", state.FailureReason)
}

func TestExecutionNodeDelegatesHighComplexityEditToPipeline(t *testing.T) {
	state := newTestState()
	state.Diagnosis = &models.Diagnosis{FixAction: models.FixActionEdit, FilePath: "src/app.py", ReproductionCommand: "pytest"}
	state.FileReservations = []string{"src/app.py"}
	complexity := highComplexityThreshold
	state.ProblemComplexity = &complexity

	sbx := newFakeSandbox()
	store := &fakeStore{}
	llm := &fakePipelineLLM{
		candidates: map[pipeline.Strategy]pipeline.PatchCandidate{
			pipeline.StrategyDirect:       {ID: "d", Code: "direct fix", Confidence: 0.9},
			pipeline.StrategyConservative: {ID: "c", Code: "conservative fix", Confidence: 0.5},
			pipeline.StrategyAlternative:  {ID: "a", Code: "alternative fix", Confidence: 0.4},
		},
	}
	gctx := &GraphContext{LLM: &fakeLLM{}, Sandbox: sbx, Store: store, Pipeline: pipeline.NewPipeline(llm)}

	node := &ExecutionNode{}
	require.NoError(t, node.Run(context.Background(), state, gctx))

	assert.Equal(t, "verification", state.CurrentNode)
	require.Len(t, store.modFiles, 1)
	assert.Equal(t, "src/app.py", store.modFiles[0].Path)
	assert.Equal(t, []byte("direct fix"), sbx.writtenFile["src/app.py"])
	assert.Equal(t, models.FileStatusModified, state.Files["src/app.py"].Status)
}

func TestExecutionNodeUsesDirectEditBelowComplexityThreshold(t *testing.T) {
	state := newTestState()
	state.Diagnosis = &models.Diagnosis{FixAction: models.FixActionEdit, FilePath: "src/app.py"}
	state.FileReservations = []string{"src/app.py"}
	complexity := highComplexityThreshold - 1
	state.ProblemComplexity = &complexity

	llm := &fakeLLM{fixContent: "print('direct path')", judgeApproved: true}
	sbx := newFakeSandbox()
	store := &fakeStore{}
	gctx := &GraphContext{LLM: llm, Sandbox: sbx, Store: store, Pipeline: pipeline.NewPipeline(&fakePipelineLLM{})}

	node := &ExecutionNode{}
	require.NoError(t, node.Run(context.Background(), state, gctx))

	assert.Equal(t, []byte("print('direct path')"), sbx.writtenFile["src/app.py"])
}

func TestHashContentIsDeterministicAndSensitiveToContent(t *testing.T) {
	a := hashContent("foo")
	b := hashContent("foo")
	c := hashContent("bar")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
