package pipeline

import "context"

// localizeFault delegates frame-aware fault localization to the LLM
// gateway (spec.md §4.7 step 2).
func localizeFault(ctx context.Context, llm LLMGateway, log string, frames []StackFrame, repoContext string) (FaultLocalization, error) {
	return llm.LocalizeFault(ctx, log, frames, repoContext)
}
