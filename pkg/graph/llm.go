package graph

import (
	"context"

	"github.com/codeready-toolchain/repairagent/pkg/models"
)

// LLMGateway is the narrow set of model calls the graph nodes make,
// grounded on the teacher's PromptBuilder/LLMClient split (pkg/agent
// prompt.Builder + llm_client.go): one seam per named operation rather
// than a single generic "chat" method, so each call site stays testable
// against a hand-written fake without a prompt-string assertion. A
// concrete implementation lives in pkg/llmapi, backed by the gRPC or
// OpenAI-compatible provider selected by config.
type LLMGateway interface {
	// ClassifyErrorWithHistory returns the error category for log,
	// given the repository's main module path and prior classification
	// history for this session.
	ClassifyErrorWithHistory(ctx context.Context, log, mainPath string, history []models.HistoryEntry) (models.Classification, error)

	// DiagnoseError proposes a root cause and remedy.
	DiagnoseError(ctx context.Context, log, repoContext string, classification models.Classification, feedback []string) (models.Diagnosis, error)

	// RefineProblemStatement re-states the problem incorporating
	// accumulated feedback from failed verification attempts.
	RefineProblemStatement(ctx context.Context, diagnosis models.Diagnosis, feedback []string, previousRefined string) (string, error)

	// GenerateDetailedPlan turns a diagnosis into an ordered task list.
	GenerateDetailedPlan(ctx context.Context, diagnosis models.Diagnosis, state *models.GraphState) (models.Plan, error)

	// GenerateFix produces new file content for path given the current
	// diagnosis and accumulated feedback; webSearchCtx is non-empty
	// only from iteration ≥ 1.
	GenerateFix(ctx context.Context, path, original string, diagnosis models.Diagnosis, feedback []string, webSearchCtx string) (string, error)

	// JudgeFix is a soft quality gate over a generated fix: it never
	// blocks persistence, only informs feedback for the next iteration.
	JudgeFix(ctx context.Context, path, original, modified string, diagnosis models.Diagnosis) (approved bool, reasoning string, err error)

	// SummarizeRepoContext produces the initial-iteration repo summary.
	SummarizeRepoContext(ctx context.Context, repoTree []string) (string, error)
}
