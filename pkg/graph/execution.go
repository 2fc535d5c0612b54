package graph

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/codeready-toolchain/repairagent/pkg/models"
	"github.com/codeready-toolchain/repairagent/pkg/pipeline"
	"github.com/codeready-toolchain/repairagent/pkg/sandbox"
)

// lintCheckCommand is a best-effort, ecosystem-agnostic syntax/lint
// pass run after each file edit; a failure is absorbed into feedback
// rather than aborting the node (verification will catch anything that
// actually matters).
const lintCheckCommand = "test -f go.mod && go vet ./... || (test -f package.json && npx --no-install eslint . ) || (test -f pyproject.toml && ruff check . ) || true"

// highComplexityThreshold is the problemComplexity floor past which
// the execution node delegates to the multi-candidate pipeline instead
// of a single direct LLM.GenerateFix call (spec.md §4.7 "high-complexity
// paths"). Equal to the RUNTIME category base (7), so RUNTIME routes
// through the pipeline, while UNKNOWN/TIMEOUT (base 6) and
// BUILD/TEST_FAILURE (base 5) stay on the cheaper direct path unless the
// cascading +2 bump pushes them to 7 or above.
const highComplexityThreshold = 7

// ExecutionNode implements the execution contract of spec.md §4.5.
type ExecutionNode struct{}

func (n *ExecutionNode) Name() string { return "execution" }

func (n *ExecutionNode) Run(ctx context.Context, state *models.GraphState, gctx *GraphContext) error {
	if state.Diagnosis == nil {
		state.Status = models.StatusFailed
		state.FailureReason = "No diagnosis"
		state.CurrentNode = "finish"
		return nil
	}
	diagnosis := *state.Diagnosis

	switch diagnosis.FixAction {
	case models.FixActionCommand:
		if _, err := gctx.Sandbox.RunCommand(ctx, diagnosis.SuggestedCommand, sandbox.RunOptions{Timeout: 120 * time.Second}); err != nil {
			gctx.log(fmt.Sprintf("execution: command %q failed (absorbed, verification will catch): %v", diagnosis.SuggestedCommand, err))
		}
	case models.FixActionEdit:
		if gctx.Pipeline != nil && state.ProblemComplexity != nil && *state.ProblemComplexity >= highComplexityThreshold {
			n.runPipeline(ctx, state, gctx, diagnosis)
		} else {
			n.runEdits(ctx, state, gctx, diagnosis)
		}
	}

	state.CurrentNode = "verification"
	state.History = append(state.History, models.HistoryEntry{
		Node:      n.Name(),
		Action:    string(diagnosis.FixAction),
		Result:    fmt.Sprintf("files=%d", len(state.FileReservations)),
		Timestamp: time.Now(),
	})
	return nil
}

func (n *ExecutionNode) runEdits(ctx context.Context, state *models.GraphState, gctx *GraphContext, diagnosis models.Diagnosis) {
	webSearchCtx := ""
	if state.Iteration >= 1 {
		webSearchCtx = state.RefinedProblemStatement
	}

	for _, path := range state.FileReservations {
		original := ""
		if gctx.SourceHost != nil {
			if content, err := gctx.SourceHost.GetFileContent(ctx, gctx.RepoRef, path); err != nil {
				gctx.log(fmt.Sprintf("execution: fetching original content of %q failed, continuing with empty original: %v", path, err))
			} else {
				original = content.Content
			}
		}

		modified, err := gctx.LLM.GenerateFix(ctx, path, original, diagnosis, state.Feedback, webSearchCtx)
		if err != nil {
			gctx.log(fmt.Sprintf("execution: generateFix failed for %q (absorbed): %v", path, err))
			continue
		}

		if _, err := gctx.Sandbox.RunCommand(ctx, lintCheckCommand, sandbox.RunOptions{Timeout: 30 * time.Second}); err != nil {
			state.Feedback = append(state.Feedback, fmt.Sprintf("Lint check failed after editing %s: %v", path, err))
		}

		approved, reasoning, err := gctx.LLM.JudgeFix(ctx, path, original, modified, diagnosis)
		if err != nil {
			gctx.log(fmt.Sprintf("execution: judgeFix failed for %q (soft vote, absorbed): %v", path, err))
		} else if !approved {
			state.Feedback = append(state.Feedback, fmt.Sprintf("Fix to %s was not approved by judge: %s", path, reasoning))
		}

		entry := state.Files[path]
		entry.Path = path
		entry.Status = models.FileStatusModified
		if entry.Original.Content == "" {
			entry.Original = models.FileContent{Content: original}
		}
		entry.Modified = &models.FileContent{Content: modified}
		state.Files[path] = entry

		if err := gctx.Sandbox.WriteFile(ctx, path, []byte(modified)); err != nil {
			gctx.log(fmt.Sprintf("execution: writing %q into sandbox failed (absorbed): %v", path, err))
		}

		mod := models.FileModification{
			RunID:      gctx.RunID,
			Path:       path,
			BeforeHash: hashContent(original),
			AfterHash:  hashContent(modified),
			CreatedAt:  time.Now(),
		}
		if gctx.Store != nil {
			if err := gctx.Store.InsertFileModification(ctx, mod); err != nil {
				gctx.log(fmt.Sprintf("execution: persisting FileModification for %q failed (absorbed): %v", path, err))
			}
		}
	}
}

// runPipeline delegates a high-complexity edit diagnosis to the
// multi-candidate Repair Pipeline (spec.md §4.7) instead of generating
// a single fix directly: stack-trace parsing, parallel strategy
// generation, sandboxed validation, ranking, and refinement all happen
// inside gctx.Pipeline.Run. Falls back to the direct single-candidate
// path if there's no resolvable target file or the pipeline itself
// errors out, so a high-complexity diagnosis never aborts the session
// outright.
func (n *ExecutionNode) runPipeline(ctx context.Context, state *models.GraphState, gctx *GraphContext, diagnosis models.Diagnosis) {
	targetPath := diagnosis.FilePath
	if targetPath == "" && len(state.FileReservations) > 0 {
		targetPath = state.FileReservations[0]
	}
	if targetPath == "" {
		gctx.log("execution: high-complexity diagnosis has no target file, falling back to direct edit")
		n.runEdits(ctx, state, gctx, diagnosis)
		return
	}

	original := ""
	if gctx.SourceHost != nil {
		if content, err := gctx.SourceHost.GetFileContent(ctx, gctx.RepoRef, targetPath); err != nil {
			gctx.log(fmt.Sprintf("execution: fetching original content of %q failed, continuing with empty original: %v", targetPath, err))
		} else {
			original = content.Content
		}
	}

	criteria := pipeline.ValidationCriteria{
		TargetPath:      targetPath,
		SyntaxCheckCmd:  lintCheckCommand,
		ReproductionCmd: diagnosis.ReproductionCommand,
	}

	result, err := gctx.Pipeline.Run(ctx, gctx.Sandbox, state.CurrentLogText, state.InitialRepoContext, criteria)
	if err != nil {
		gctx.log(fmt.Sprintf("execution: repair pipeline failed, falling back to direct edit: %v", err))
		n.runEdits(ctx, state, gctx, diagnosis)
		return
	}
	if !result.Succeeded {
		state.Feedback = append(state.Feedback, fmt.Sprintf("Repair pipeline's best candidate (%s strategy) failed validation: %s", result.Best.Candidate.Strategy, result.Best.Validation.ErrorMessage))
	}

	modified := result.Best.Candidate.Code

	entry := state.Files[targetPath]
	entry.Path = targetPath
	entry.Status = models.FileStatusModified
	if entry.Original.Content == "" {
		entry.Original = models.FileContent{Content: original}
	}
	entry.Modified = &models.FileContent{Content: modified}
	state.Files[targetPath] = entry

	if err := gctx.Sandbox.WriteFile(ctx, targetPath, []byte(modified)); err != nil {
		gctx.log(fmt.Sprintf("execution: writing %q into sandbox failed (absorbed): %v", targetPath, err))
	}

	mod := models.FileModification{
		RunID:      gctx.RunID,
		Path:       targetPath,
		BeforeHash: hashContent(original),
		AfterHash:  hashContent(modified),
		CreatedAt:  time.Now(),
	}
	if gctx.Store != nil {
		if err := gctx.Store.InsertFileModification(ctx, mod); err != nil {
			gctx.log(fmt.Sprintf("execution: persisting FileModification for %q failed (absorbed): %v", targetPath, err))
		}
	}
}

func hashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
