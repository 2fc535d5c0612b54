package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/codeready-toolchain/repairagent/pkg/models"
)

// PlanningNode implements the planning contract of spec.md §4.5.
type PlanningNode struct{}

func (n *PlanningNode) Name() string { return "planning" }

func (n *PlanningNode) Run(ctx context.Context, state *models.GraphState, gctx *GraphContext) error {
	if state.Diagnosis == nil {
		state.Status = models.StatusFailed
		state.FailureReason = "No diagnosis"
		state.CurrentNode = "finish"
		return nil
	}

	diagnosis := *state.Diagnosis

	if diagnosis.FixAction == models.FixActionCommand {
		state.FileReservations = nil
	} else {
		resolved := diagnosis.FilePath
		if gctx.SourceHost != nil && resolved != "" {
			if closest, ok := gctx.SourceHost.FindClosestFile(ctx, gctx.RepoRef, resolved, fileTreeSnapshot(state)); ok {
				resolved = closest.Path
			} else {
				gctx.log(fmt.Sprintf("planning: could not resolve file %q via closest-file lookup, proceeding anyway", resolved))
			}
		}
		diagnosis.FilePath = resolved
		state.Diagnosis = &diagnosis
	}

	plan, err := gctx.LLM.GenerateDetailedPlan(ctx, diagnosis, state)
	if err != nil {
		state.Status = models.StatusFailed
		state.FailureReason = fmt.Sprintf("planning failed: %v", err)
		state.CurrentNode = "finish"
		return nil
	}
	state.Plan = &plan

	if diagnosis.FixAction != models.FixActionCommand {
		state.FileReservations = uniqueTargetFiles(plan, diagnosis.FilePath)
	}

	state.CurrentNode = "execution"
	state.History = append(state.History, models.HistoryEntry{
		Node:      n.Name(),
		Action:    "plan",
		Result:    fmt.Sprintf("tasks=%d reservations=%d", len(plan.Tasks), len(state.FileReservations)),
		Timestamp: time.Now(),
	})
	return nil
}

// uniqueTargetFiles collects each task's TargetFile (falling back to
// fallback when a task doesn't name one), de-duplicated, preserving
// first-seen order.
func uniqueTargetFiles(plan models.Plan, fallback string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range plan.Tasks {
		target := t.TargetFile
		if target == "" {
			target = fallback
		}
		if target == "" || seen[target] {
			continue
		}
		seen[target] = true
		out = append(out, target)
	}
	if len(out) == 0 && fallback != "" {
		out = append(out, fallback)
	}
	return out
}

// fileTreeSnapshot returns the paths already known to this session's
// Files map, used as the tree snapshot for closest-file resolution.
func fileTreeSnapshot(state *models.GraphState) []string {
	paths := make([]string, 0, len(state.Files))
	for p := range state.Files {
		paths = append(paths, p)
	}
	return paths
}
