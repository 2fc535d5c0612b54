package llmapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/codeready-toolchain/repairagent/pkg/models"
	"github.com/codeready-toolchain/repairagent/pkg/pipeline"
)

// Gateway adapts one Provider to both pkg/graph.LLMGateway and
// pkg/pipeline.LLMGateway: it builds the prompt for the named operation,
// calls Provider.Generate with the retry wrapper from retry.go, and
// unmarshals structured responses into the caller's domain types.
type Gateway struct {
	provider Provider
	model    string
	log      *slog.Logger
}

// NewGateway constructs a Gateway over provider, defaulting every
// Request.Model field to model unless the call site overrides it.
func NewGateway(provider Provider, model string) *Gateway {
	return &Gateway{provider: provider, model: model, log: slog.With("component", "llmapi.Gateway")}
}

func (g *Gateway) generateJSON(ctx context.Context, messages []ConversationMessage, out any) error {
	resp, err := withRetry(ctx, g.log, func() (Response, error) {
		return g.provider.Generate(ctx, Request{
			Model:          g.model,
			Messages:       messages,
			ResponseFormat: ResponseFormatJSON,
		})
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(resp.Text), out); err != nil {
		return fmt.Errorf("parsing llm json response: %w", err)
	}
	return nil
}

func (g *Gateway) generateText(ctx context.Context, messages []ConversationMessage, temperature float64) (string, error) {
	resp, err := withRetry(ctx, g.log, func() (Response, error) {
		return g.provider.Generate(ctx, Request{
			Model:          g.model,
			Messages:       messages,
			Temperature:    temperature,
			ResponseFormat: ResponseFormatText,
		})
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// Generate sends a single user-role prompt and returns the raw text
// response, satisfying pkg/reproduction.LLMProvider's minimal
// text-generation seam (strategies 1 and 5 of reproduction command
// inference).
func (g *Gateway) Generate(ctx context.Context, prompt string) (string, error) {
	return g.generateText(ctx, []ConversationMessage{{Role: RoleUser, Content: prompt}}, 0)
}

// --- pkg/graph.LLMGateway ---

func (g *Gateway) ClassifyErrorWithHistory(ctx context.Context, log, mainPath string, history []models.HistoryEntry) (models.Classification, error) {
	var out models.Classification
	err := g.generateJSON(ctx, buildClassifyMessages(log, mainPath, history), &out)
	return out, err
}

func (g *Gateway) DiagnoseError(ctx context.Context, log, repoContext string, classification models.Classification, feedback []string) (models.Diagnosis, error) {
	var out models.Diagnosis
	err := g.generateJSON(ctx, buildDiagnoseMessages(log, repoContext, classification, feedback), &out)
	return out, err
}

func (g *Gateway) RefineProblemStatement(ctx context.Context, diagnosis models.Diagnosis, feedback []string, previousRefined string) (string, error) {
	return g.generateText(ctx, buildRefineMessages(diagnosis, feedback, previousRefined), 0.2)
}

func (g *Gateway) GenerateDetailedPlan(ctx context.Context, diagnosis models.Diagnosis, state *models.GraphState) (models.Plan, error) {
	var out models.Plan
	err := g.generateJSON(ctx, buildPlanMessages(diagnosis, state), &out)
	return out, err
}

func (g *Gateway) GenerateFix(ctx context.Context, path, original string, diagnosis models.Diagnosis, feedback []string, webSearchCtx string) (string, error) {
	return g.generateText(ctx, buildGenerateFixMessages(path, original, diagnosis, feedback, webSearchCtx), 0.1)
}

type judgeFixResponse struct {
	Approved  bool   `json:"approved"`
	Reasoning string `json:"reasoning"`
}

func (g *Gateway) JudgeFix(ctx context.Context, path, original, modified string, diagnosis models.Diagnosis) (bool, string, error) {
	var out judgeFixResponse
	if err := g.generateJSON(ctx, buildJudgeFixMessages(path, original, modified, diagnosis), &out); err != nil {
		return false, "", err
	}
	return out.Approved, out.Reasoning, nil
}

func (g *Gateway) SummarizeRepoContext(ctx context.Context, repoTree []string) (string, error) {
	return g.generateText(ctx, buildSummarizeRepoMessages(repoTree), 0.2)
}

// --- pkg/pipeline.LLMGateway ---

func (g *Gateway) LocalizeFault(ctx context.Context, log string, frames []pipeline.StackFrame, repoContext string) (pipeline.FaultLocalization, error) {
	var out pipeline.FaultLocalization
	err := g.generateJSON(ctx, buildLocalizeFaultMessages(log, frames, repoContext), &out)
	out.StackTrace = frames
	return out, err
}

func (g *Gateway) GeneratePatchCandidate(ctx context.Context, loc pipeline.FaultLocalization, strategy pipeline.Strategy, temperature float64, feedback []string) (pipeline.PatchCandidate, error) {
	resp, err := withRetry(ctx, g.log, func() (Response, error) {
		return g.provider.Generate(ctx, Request{
			Model:          g.model,
			Messages:       buildPatchCandidateMessages(loc, strategy, feedback),
			Temperature:    temperature,
			ResponseFormat: ResponseFormatJSON,
		})
	})
	if err != nil {
		return pipeline.PatchCandidate{}, err
	}

	var parsed struct {
		Code        string  `json:"code"`
		Description string  `json:"description"`
		Confidence  float64 `json:"confidence"`
		Reasoning   string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(resp.Text), &parsed); err != nil {
		return pipeline.PatchCandidate{}, fmt.Errorf("parsing patch candidate json response: %w", err)
	}

	return pipeline.PatchCandidate{
		Code:        parsed.Code,
		Description: parsed.Description,
		Confidence:  parsed.Confidence,
		Strategy:    strategy,
		Reasoning:   parsed.Reasoning,
	}, nil
}
