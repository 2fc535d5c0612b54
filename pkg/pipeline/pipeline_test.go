package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/codeready-toolchain/repairagent/pkg/sandbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	mu         sync.Mutex
	loc        FaultLocalization
	locErr     error
	candidates map[Strategy]PatchCandidate
	genErr     error
	genCalls   int
}

func (f *fakeLLM) LocalizeFault(ctx context.Context, log string, frames []StackFrame, repoContext string) (FaultLocalization, error) {
	return f.loc, f.locErr
}

func (f *fakeLLM) GeneratePatchCandidate(ctx context.Context, loc FaultLocalization, strategy Strategy, temperature float64, feedback []string) (PatchCandidate, error) {
	f.mu.Lock()
	f.genCalls++
	f.mu.Unlock()
	if f.genErr != nil {
		return PatchCandidate{}, f.genErr
	}
	c := f.candidates[strategy]
	c.Strategy = strategy
	return c, nil
}

type fakeSandbox struct {
	mu       sync.Mutex
	written  map[string]string
	results  []sandbox.ExecResult
	errs     []error
	callIdx  int
}

func (s *fakeSandbox) Init(ctx context.Context) error { return nil }

func (s *fakeSandbox) RunCommand(ctx context.Context, cmd string, opts sandbox.RunOptions) (sandbox.ExecResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.callIdx >= len(s.results) {
		return sandbox.ExecResult{ExitCode: 0}, nil
	}
	r, err := s.results[s.callIdx], s.errs[s.callIdx]
	s.callIdx++
	return r, err
}

func (s *fakeSandbox) WriteFile(ctx context.Context, path string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.written == nil {
		s.written = make(map[string]string)
	}
	s.written[path] = string(content)
	return nil
}

func (s *fakeSandbox) ReadFile(ctx context.Context, path string) ([]byte, error) { return nil, nil }
func (s *fakeSandbox) GetResourceStats(ctx context.Context) (*sandbox.ResourceStats, error) {
	return nil, nil
}
func (s *fakeSandbox) Teardown(ctx context.Context) error { return nil }

func TestParseStackTraceExtractsNodeFrames(t *testing.T) {
	log := "TypeError: x is not a function\n    at Object.<anonymous> (/app/src/index.js:42:17)\n    at Module._compile (node:internal/modules/cjs/loader:1105:14)"

	frames := parseStackTrace(log)

	require.NotEmpty(t, frames)
	assert.Equal(t, "/app/src/index.js", frames[0].File)
	assert.Equal(t, 42, frames[0].Line)
	assert.Equal(t, 17, frames[0].Column)
}

func TestParseStackTraceExtractsPythonFrames(t *testing.T) {
	log := "Traceback (most recent call last):\n  File \"/app/main.py\", line 42, in handle_request\n    raise ValueError(\"bad\")"

	frames := parseStackTrace(log)

	require.NotEmpty(t, frames)
	assert.Equal(t, "/app/main.py", frames[0].File)
	assert.Equal(t, 42, frames[0].Line)
	assert.Equal(t, "handle_request", frames[0].Function)
}

func TestPostProcessPatchFixesShellFlagTypo(t *testing.T) {
	fixed := postProcessPatch("npm install —save-dev eslint")
	assert.Contains(t, fixed, "--save-dev")
}

func TestPostProcessPatchStripsDockerfileRunComments(t *testing.T) {
	code := "RUN apt-get update \\\n    # upgrade pip \\\n    && pip install --upgrade pip"
	fixed := postProcessPatch(code)
	assert.NotContains(t, fixed, "# upgrade pip")
	assert.Contains(t, fixed, "pip install --upgrade pip")
}

func TestGeneratePatchCandidatesRunsAllThreeStrategiesInParallel(t *testing.T) {
	llm := &fakeLLM{candidates: map[Strategy]PatchCandidate{
		StrategyDirect:       {ID: "d", Code: "direct fix", Confidence: 0.9},
		StrategyConservative: {ID: "c", Code: "conservative fix", Confidence: 0.8},
		StrategyAlternative:  {ID: "a", Code: "alternative fix", Confidence: 0.6},
	}}

	candidates, err := generatePatchCandidates(context.Background(), llm, FaultLocalization{}, nil)

	require.NoError(t, err)
	require.Len(t, candidates, 3)
	assert.Equal(t, 3, llm.genCalls)
}

func TestRankPatchesPrefersHigherConfidenceBand(t *testing.T) {
	ranked := rankPatches([]RankedCandidate{
		{Candidate: PatchCandidate{Strategy: StrategyAlternative, Confidence: 0.91}},
		{Candidate: PatchCandidate{Strategy: StrategyDirect, Confidence: 0.5}},
	})

	assert.Equal(t, StrategyAlternative, ranked[0].Candidate.Strategy)
}

func TestRankPatchesTieBreaksByStrategyWithinBand(t *testing.T) {
	ranked := rankPatches([]RankedCandidate{
		{Candidate: PatchCandidate{Strategy: StrategyAlternative, Confidence: 0.81}},
		{Candidate: PatchCandidate{Strategy: StrategyDirect, Confidence: 0.85}},
		{Candidate: PatchCandidate{Strategy: StrategyConservative, Confidence: 0.83}},
	})

	assert.Equal(t, StrategyDirect, ranked[0].Candidate.Strategy)
	assert.Equal(t, StrategyConservative, ranked[1].Candidate.Strategy)
	assert.Equal(t, StrategyAlternative, ranked[2].Candidate.Strategy)
}

func TestValidatePatchesMarksPassWhenAllStagesSucceed(t *testing.T) {
	box := &fakeSandbox{
		results: []sandbox.ExecResult{{ExitCode: 0}, {ExitCode: 0}, {ExitCode: 0}},
		errs:    []error{nil, nil, nil},
	}
	criteria := ValidationCriteria{TargetPath: "a.go", SyntaxCheckCmd: "go vet", StaticAnalysisCmd: "golangci-lint", ReproductionCmd: "go test ./..."}

	ranked := validatePatches(context.Background(), box, []PatchCandidate{{ID: "1", Code: "fixed"}}, criteria)

	require.Len(t, ranked, 1)
	assert.True(t, ranked[0].Validation.Passed)
}

func TestValidatePatchesStopsAtFirstFailingStage(t *testing.T) {
	box := &fakeSandbox{
		results: []sandbox.ExecResult{{ExitCode: 1, Stderr: "syntax error"}},
		errs:    []error{nil},
	}
	criteria := ValidationCriteria{TargetPath: "a.go", SyntaxCheckCmd: "go vet", StaticAnalysisCmd: "golangci-lint", ReproductionCmd: "go test ./..."}

	ranked := validatePatches(context.Background(), box, []PatchCandidate{{ID: "1", Code: "still broken"}}, criteria)

	require.Len(t, ranked, 1)
	assert.False(t, ranked[0].Validation.Passed)
	assert.False(t, ranked[0].Validation.StaticAnalysisPassed)
	assert.Equal(t, "syntax error", ranked[0].Validation.ErrorMessage)
}

func TestIterativeRefinementReturnsImmediatelyOnFirstPassSuccess(t *testing.T) {
	llm := &fakeLLM{}
	box := &fakeSandbox{}
	best := RankedCandidate{Candidate: PatchCandidate{ID: "1"}, Validation: ValidationResult{Passed: true}}

	attempts, final := iterativeRefinement(context.Background(), llm, box, FaultLocalization{}, best, ValidationCriteria{})

	assert.Empty(t, attempts)
	assert.True(t, final.Validation.Passed)
	assert.Equal(t, 0, llm.genCalls)
}

func TestIterativeRefinementStopsAtMaxIterations(t *testing.T) {
	llm := &fakeLLM{candidates: map[Strategy]PatchCandidate{
		StrategyDirect: {ID: "refined", Code: "still failing"},
	}}
	box := &fakeSandbox{
		results: []sandbox.ExecResult{{ExitCode: 1}, {ExitCode: 1}, {ExitCode: 1}},
		errs:    []error{nil, nil, nil},
	}
	criteria := ValidationCriteria{TargetPath: "a.go", ReproductionCmd: "go test ./..."}
	best := RankedCandidate{Candidate: PatchCandidate{ID: "1", Strategy: StrategyDirect}, Validation: ValidationResult{Passed: false, ErrorMessage: "boom"}}

	attempts, final := iterativeRefinement(context.Background(), llm, box, FaultLocalization{}, best, criteria)

	assert.Len(t, attempts, maxRefinementIterations)
	assert.False(t, final.Validation.Passed)
	assert.Equal(t, maxRefinementIterations, llm.genCalls)
}

func TestPipelineRunEndToEndSucceedsOnFirstCandidate(t *testing.T) {
	llm := &fakeLLM{
		loc: FaultLocalization{PrimaryLocation: Location{File: "a.go", Line: 10}},
		candidates: map[Strategy]PatchCandidate{
			StrategyDirect:       {ID: "d", Code: "direct fix", Confidence: 0.9},
			StrategyConservative: {ID: "c", Code: "conservative fix", Confidence: 0.5},
			StrategyAlternative:  {ID: "a", Code: "alternative fix", Confidence: 0.4},
		},
	}
	box := &fakeSandbox{
		results: []sandbox.ExecResult{{ExitCode: 0}}, // every candidate is validated; this fake returns exit 0 once the queue is exhausted
		errs:    []error{nil},
	}
	criteria := ValidationCriteria{TargetPath: "a.go", ReproductionCmd: "go test ./..."}

	p := NewPipeline(llm)
	result, err := p.Run(context.Background(), box, "some log", "repo context", criteria)

	require.NoError(t, err)
	require.NotNil(t, result.Best)
	assert.Equal(t, StrategyDirect, result.Best.Candidate.Strategy)
}
