package pipeline

import (
	"context"

	"github.com/codeready-toolchain/repairagent/pkg/sandbox"
)

// iterativeRefinement re-prompts the LLM with the best candidate's
// validation failure (accumulated alongside prior feedback) and
// re-validates, up to maxRefinementIterations passes. A pass that
// passes validation returns immediately (spec.md §4.7 step 6).
func iterativeRefinement(ctx context.Context, llm LLMGateway, box sandbox.Sandbox, loc FaultLocalization, best RankedCandidate, criteria ValidationCriteria) ([]RefinementAttempt, RankedCandidate) {
	var attempts []RefinementAttempt
	current := best
	var feedback []string

	for i := 0; i < maxRefinementIterations; i++ {
		if current.Validation.Passed {
			return attempts, current
		}

		feedback = append(feedback, current.Validation.ErrorMessage)
		refined, err := llm.GeneratePatchCandidate(ctx, loc, current.Candidate.Strategy, strategyTemperature[current.Candidate.Strategy], feedback)
		if err != nil {
			return attempts, current
		}
		refined.Strategy = current.Candidate.Strategy
		refined.Code = postProcessPatch(refined.Code)

		validation := validateOne(ctx, box, refined, criteria)
		current = RankedCandidate{Candidate: refined, Validation: validation}
		attempts = append(attempts, RefinementAttempt{Iteration: i + 1, Candidate: refined, Validation: validation})
	}

	return attempts, current
}
