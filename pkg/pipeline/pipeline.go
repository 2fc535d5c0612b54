package pipeline

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/repairagent/pkg/sandbox"
)

// Pipeline runs the full multi-candidate repair flow for one
// high-complexity diagnosis: localize, generate, validate, rank,
// refine. It is stateless and safe for concurrent use across sessions
// as long as the sandbox and LLM gateway passed to Run are not shared
// across concurrent calls (the same single-exec-at-a-time constraint
// pkg/sandbox.Sandbox already carries).
type Pipeline struct {
	LLM LLMGateway
}

// NewPipeline constructs a Pipeline bound to an LLM gateway.
func NewPipeline(llm LLMGateway) *Pipeline {
	return &Pipeline{LLM: llm}
}

// Run executes the pipeline end to end and returns the best candidate
// found, whether or not it ultimately passed validation (the caller —
// the graph's execution node — treats a failing Result the same as any
// other unresolved iteration and proceeds to the next verification
// pass rather than aborting the session).
func (p *Pipeline) Run(ctx context.Context, box sandbox.Sandbox, log string, repoContext string, criteria ValidationCriteria) (Result, error) {
	frames := parseStackTrace(log)

	loc, err := localizeFault(ctx, p.LLM, log, frames, repoContext)
	if err != nil {
		return Result{}, fmt.Errorf("localizing fault: %w", err)
	}

	candidates, err := generatePatchCandidates(ctx, p.LLM, loc, nil)
	if err != nil {
		return Result{}, fmt.Errorf("generating patch candidates: %w", err)
	}

	validated := validatePatches(ctx, box, candidates, criteria)
	ranked := rankPatches(validated)
	if len(ranked) == 0 {
		return Result{}, fmt.Errorf("no patch candidates produced")
	}

	best := ranked[0]
	attempts := []RefinementAttempt{{Iteration: 0, Candidate: best.Candidate, Validation: best.Validation}}

	if !best.Validation.Passed {
		refinementAttempts, refined := iterativeRefinement(ctx, p.LLM, box, loc, best, criteria)
		attempts = append(attempts, refinementAttempts...)
		best = refined
	}

	return Result{
		Best:      &best,
		Attempts:  attempts,
		Succeeded: best.Validation.Passed,
	}, nil
}
