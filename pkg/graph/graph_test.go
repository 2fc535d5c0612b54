package graph

import (
	"context"
	"sync"

	"github.com/codeready-toolchain/repairagent/pkg/models"
	"github.com/codeready-toolchain/repairagent/pkg/sandbox"
)

// fakeLLM is a scriptable LLMGateway fake; each field is consulted by
// the corresponding method with a default zero-value fallback so tests
// only need to set what they exercise.
type fakeLLM struct {
	classification models.Classification
	classifyErr    error

	diagnosis   models.Diagnosis
	diagnoseErr error

	refined    string
	refineErr  error

	plan    models.Plan
	planErr error

	fixContent string
	fixErr     error

	judgeApproved  bool
	judgeReasoning string
	judgeErr       error

	repoSummary string
	summaryErr  error
}

func (f *fakeLLM) ClassifyErrorWithHistory(ctx context.Context, log, mainPath string, history []models.HistoryEntry) (models.Classification, error) {
	return f.classification, f.classifyErr
}

func (f *fakeLLM) DiagnoseError(ctx context.Context, log, repoContext string, classification models.Classification, feedback []string) (models.Diagnosis, error) {
	return f.diagnosis, f.diagnoseErr
}

func (f *fakeLLM) RefineProblemStatement(ctx context.Context, diagnosis models.Diagnosis, feedback []string, previousRefined string) (string, error) {
	return f.refined, f.refineErr
}

func (f *fakeLLM) GenerateDetailedPlan(ctx context.Context, diagnosis models.Diagnosis, state *models.GraphState) (models.Plan, error) {
	return f.plan, f.planErr
}

func (f *fakeLLM) GenerateFix(ctx context.Context, path, original string, diagnosis models.Diagnosis, feedback []string, webSearchCtx string) (string, error) {
	return f.fixContent, f.fixErr
}

func (f *fakeLLM) JudgeFix(ctx context.Context, path, original, modified string, diagnosis models.Diagnosis) (bool, string, error) {
	return f.judgeApproved, f.judgeReasoning, f.judgeErr
}

func (f *fakeLLM) SummarizeRepoContext(ctx context.Context, repoTree []string) (string, error) {
	return f.repoSummary, f.summaryErr
}

// fakeSandbox is a scriptable sandbox.Sandbox fake.
type fakeSandbox struct {
	mu          sync.Mutex
	commands    []string
	result      sandbox.ExecResult
	runErr      error
	writtenFile map[string][]byte
}

func newFakeSandbox() *fakeSandbox {
	return &fakeSandbox{writtenFile: make(map[string][]byte)}
}

func (f *fakeSandbox) Init(ctx context.Context) error { return nil }

func (f *fakeSandbox) RunCommand(ctx context.Context, cmd string, opts sandbox.RunOptions) (sandbox.ExecResult, error) {
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	f.mu.Unlock()
	return f.result, f.runErr
}

func (f *fakeSandbox) WriteFile(ctx context.Context, path string, content []byte) error {
	f.writtenFile[path] = content
	return nil
}

func (f *fakeSandbox) ReadFile(ctx context.Context, path string) ([]byte, error) {
	return f.writtenFile[path], nil
}

func (f *fakeSandbox) GetResourceStats(ctx context.Context) (*sandbox.ResourceStats, error) {
	return nil, nil
}

func (f *fakeSandbox) Teardown(ctx context.Context) error { return nil }

// fakeStore is an in-memory graph.Store fake.
type fakeStore struct {
	mu       sync.Mutex
	facts    []models.ErrorFact
	modFiles []models.FileModification
}

func (f *fakeStore) InsertErrorFact(ctx context.Context, fact models.ErrorFact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.facts = append(f.facts, fact)
	return nil
}

func (f *fakeStore) InsertFileModification(ctx context.Context, mod models.FileModification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modFiles = append(f.modFiles, mod)
	return nil
}

func newTestState() *models.GraphState {
	state := models.NewGraphState(models.Config{RepoURL: "https://github.com/o/r", MaxIterations: 5}, models.RunGroup{MainRunID: "1"}, 5)
	return state
}
