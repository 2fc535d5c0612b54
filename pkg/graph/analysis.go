package graph

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/codeready-toolchain/repairagent/pkg/models"
	"github.com/codeready-toolchain/repairagent/pkg/sandbox"
	"github.com/codeready-toolchain/repairagent/pkg/sourcehost"
)

// moduleMissingPattern matches the common "dependency not installed"
// failure shapes across ecosystems, gating the iteration-0 dependency
// scan (spec.md §4.5 analysis step 4).
var moduleMissingPattern = regexp.MustCompile(`(?i)ModuleNotFoundError|Cannot find module|No module named|cannot find package`)

// complexityBaseByCategory is the category-based heuristic base for
// problemComplexity, elevated below for cascading (multi-category)
// errors.
var complexityBaseByCategory = map[models.ErrorCategory]int{
	models.CategorySyntax:        2,
	models.CategoryDependency:    3,
	models.CategoryConfiguration: 3,
	models.CategoryBuild:         5,
	models.CategoryTestFailure:   5,
	models.CategoryTimeout:       6,
	models.CategoryRuntime:       7,
	models.CategoryUnknown:       6,
}

// isAtomicThreshold is the complexity ceiling below which a
// monotone-decreasing complexityHistory tail is considered "atomic"
// (spec.md §4.5 analysis step 7).
const isAtomicThreshold = 4

// AnalysisNode implements the analysis contract of spec.md §4.5.
type AnalysisNode struct{}

func (n *AnalysisNode) Name() string { return "analysis" }

func (n *AnalysisNode) Run(ctx context.Context, state *models.GraphState, gctx *GraphContext) error {
	if err := n.ensureLogText(ctx, state, gctx); err != nil {
		return n.fail(state, err.Error())
	}

	if state.Iteration == 0 {
		summary, err := n.summarizeRepoContext(ctx, gctx)
		if err != nil {
			gctx.log(fmt.Sprintf("analysis: repo context summary failed: %v", err))
		} else {
			state.InitialRepoContext = summary
			state.InitialLogText = state.CurrentLogText
		}
	}

	classification, err := gctx.LLM.ClassifyErrorWithHistory(ctx, state.CurrentLogText, state.Config.RepoURL, state.History)
	if err != nil {
		return n.fail(state, fmt.Sprintf("classification failed: %v", err))
	}
	state.Classification = &classification

	if state.Iteration == 0 && moduleMissingPattern.MatchString(state.CurrentLogText) {
		gctx.log("analysis: module-missing pattern detected, enriching context with dependency scan")
		if scan, scanErr := gctx.Sandbox.RunCommand(ctx, dependencyScanCommand(), sandbox.RunOptions{Timeout: 30 * time.Second}); scanErr == nil {
			state.InitialRepoContext += "\n\nDependency scan:\n" + scan.Stdout
		}
	}

	diagnosis, err := gctx.LLM.DiagnoseError(ctx, state.CurrentLogText, state.InitialRepoContext, classification, state.Feedback)
	if err != nil {
		return n.fail(state, fmt.Sprintf("diagnosis failed: %v", err))
	}
	state.Diagnosis = &diagnosis

	if state.Iteration == 0 {
		fact := models.ErrorFact{
			RunID:     gctx.RunID,
			Summary:   diagnosis.Summary,
			FilePath:  diagnosis.FilePath,
			FixAction: diagnosis.FixAction,
			CreatedAt: time.Now(),
		}
		complexity := computeProblemComplexity(classification)
		fact.Notes = models.ErrorFactNotes{
			Complexity:             complexity,
			IsAtomic:               isAtomicTail(append(append([]int(nil), state.ComplexityHistory...), complexity), isAtomicThreshold),
			ClassificationCategory: classification.Category,
		}
		if gctx.Store != nil {
			if err := gctx.Store.InsertErrorFact(ctx, fact); err != nil {
				gctx.log(fmt.Sprintf("analysis: persisting ErrorFact failed (absorbed): %v", err))
			}
		}
	}

	complexity := computeProblemComplexity(classification)
	state.ProblemComplexity = &complexity
	state.ComplexityHistory = append(state.ComplexityHistory, complexity)

	if len(state.Feedback) > 0 {
		refined, err := gctx.LLM.RefineProblemStatement(ctx, diagnosis, state.Feedback, state.RefinedProblemStatement)
		if err != nil {
			gctx.log(fmt.Sprintf("analysis: refine problem statement failed (absorbed): %v", err))
		} else {
			state.RefinedProblemStatement = refined
		}
	}

	atomic := isAtomicTail(state.ComplexityHistory, isAtomicThreshold)
	state.IsAtomic = &atomic

	state.CurrentNode = "planning"
	state.History = append(state.History, models.HistoryEntry{
		Node:      n.Name(),
		Action:    "diagnose",
		Result:    fmt.Sprintf("category=%s complexity=%d atomic=%t", classification.Category, complexity, atomic),
		Timestamp: time.Now(),
	})
	return nil
}

func (n *AnalysisNode) fail(state *models.GraphState, reason string) error {
	state.Status = models.StatusFailed
	state.FailureReason = reason
	state.CurrentNode = "finish"
	return nil
}

// ensureLogText populates state.CurrentLogText, fetching it via the
// source-host service when empty using the per-iteration strategy
// named in spec.md §4.5 step 1.
func (n *AnalysisNode) ensureLogText(ctx context.Context, state *models.GraphState, gctx *GraphContext) error {
	if state.CurrentLogText != "" {
		return nil
	}
	if gctx.SourceHost == nil {
		return fmt.Errorf("no failed job found")
	}

	var strategy sourcehost.LogStrategy
	switch state.Iteration {
	case 0:
		strategy = sourcehost.StrategyExtended
	case 1:
		strategy = sourcehost.StrategyAnyError
	case 2:
		strategy = sourcehost.StrategyForceLatest
	default:
		return fmt.Errorf("no failed job found")
	}

	logs, err := gctx.SourceHost.GetWorkflowLogs(ctx, gctx.RepoRef, state.Group.MainRunID, strategy)
	if err != nil {
		return fmt.Errorf("no failed job found: %w", err)
	}
	state.CurrentLogText = logs.LogText
	return nil
}

func (n *AnalysisNode) summarizeRepoContext(ctx context.Context, gctx *GraphContext) (string, error) {
	return gctx.LLM.SummarizeRepoContext(ctx, nil)
}

// computeProblemComplexity applies the category-based heuristic,
// elevated when a single log implicates more than one affected file
// (taken as a proxy for a cascading failure).
func computeProblemComplexity(c models.Classification) int {
	base, ok := complexityBaseByCategory[c.Category]
	if !ok {
		base = 5
	}
	if len(c.AffectedFiles) > 2 {
		base += 2
	}
	if base > 10 {
		base = 10
	}
	if base < 1 {
		base = 1
	}
	return base
}

// isAtomicTail reports whether the complexity history's last two entries
// are non-increasing and the latest value is below threshold. A
// single-entry history only needs its value below threshold.
func isAtomicTail(history []int, threshold int) bool {
	n := len(history)
	if n == 0 {
		return false
	}
	if history[n-1] >= threshold {
		return false
	}
	if n >= 2 && history[n-1] > history[n-2] {
		return false
	}
	return true
}

func dependencyScanCommand() string {
	return "test -f package.json && npm ls --depth=0 || (test -f requirements.txt && pip list) || (test -f go.mod && go list -m all) || true"
}
