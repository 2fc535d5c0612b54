package pipeline

import "context"

// LLMGateway is the pipeline's narrow LLM seam, following the same
// one-named-method-per-prompt-shape pattern as pkg/graph.LLMGateway
// (itself grounded on the teacher's PromptBuilder/LLMClient split).
// pkg/llmapi satisfies this against a real provider; tests use a fake.
type LLMGateway interface {
	// LocalizeFault maps a failure log plus parsed stack frames onto a
	// primary suspected location and alternatives.
	LocalizeFault(ctx context.Context, log string, frames []StackFrame, repoContext string) (FaultLocalization, error)

	// GeneratePatchCandidate produces one candidate fix for the given
	// strategy/temperature, optionally conditioned on prior validation
	// feedback (refinement passes).
	GeneratePatchCandidate(ctx context.Context, loc FaultLocalization, strategy Strategy, temperature float64, feedback []string) (PatchCandidate, error)
}
