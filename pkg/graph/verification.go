package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/codeready-toolchain/repairagent/pkg/loopdetect"
	"github.com/codeready-toolchain/repairagent/pkg/models"
	"github.com/codeready-toolchain/repairagent/pkg/reliability"
	"github.com/codeready-toolchain/repairagent/pkg/sandbox"
)

const reproductionTimeout = 120 * time.Second

// VerificationNode implements the verification contract of spec.md
// §4.5.
type VerificationNode struct{}

func (n *VerificationNode) Name() string { return "verification" }

func (n *VerificationNode) Run(ctx context.Context, state *models.GraphState, gctx *GraphContext) error {
	command, err := n.resolveReproductionCommand(ctx, state, gctx)
	if err != nil {
		state.Status = models.StatusFailed
		state.FailureReason = err.Error()
		state.CurrentNode = "finish"
		return nil
	}

	result, execErr := gctx.Sandbox.RunCommand(ctx, command, sandbox.RunOptions{Timeout: reproductionTimeout})
	passed := execErr == nil && result.ExitCode == 0

	if passed {
		state.Status = models.StatusSuccess
		state.CurrentNode = "finish"
		state.History = append(state.History, models.HistoryEntry{
			Node: n.Name(), Action: "verify", Result: "passed", Timestamp: time.Now(),
		})
		return nil
	}

	excerpt := tailExcerpt(result.Stdout+result.Stderr, 2000)
	state.Feedback = append(state.Feedback, fmt.Sprintf("Test Suite Failed: %s", excerpt))
	state.Iteration++
	state.CurrentNode = "analysis"

	if state.Iteration >= state.MaxIterations {
		state.Status = models.StatusFailed
		state.FailureReason = "Max iterations exceeded"
		state.CurrentNode = "finish"
		state.CurrentLogText = ""
		return nil
	}

	// checkLoop's errorFingerprint reads state.CurrentLogText, so the
	// reset for the next iteration happens only after it runs.
	loopErr := n.checkLoop(ctx, state, gctx)
	state.CurrentLogText = ""
	if loopErr != nil {
		state.Status = models.StatusFailed
		state.FailureReason = loopErr.Error()
		state.CurrentNode = "finish"
		return nil
	}

	state.History = append(state.History, models.HistoryEntry{
		Node: n.Name(), Action: "verify", Result: "failed, looping to analysis", Timestamp: time.Now(),
	})
	return nil
}

// resolveReproductionCommand returns diagnosis.ReproductionCommand if
// set; otherwise it records a phase2-reproduction telemetry event and
// takes the command the Recovery Strategy Service supplies, failing
// when telemetry or recovery is not configured or recovery yields no
// command.
func (n *VerificationNode) resolveReproductionCommand(ctx context.Context, state *models.GraphState, gctx *GraphContext) (string, error) {
	if state.Diagnosis != nil && state.Diagnosis.ReproductionCommand != "" {
		return state.Diagnosis.ReproductionCommand, nil
	}

	if gctx.Telemetry == nil {
		return "", fmt.Errorf("Reproduction command unavailable")
	}

	eventID, err := gctx.Telemetry.RecordReproductionRequired(ctx, 1.0, map[string]any{
		"runId":     gctx.RunID,
		"iteration": state.Iteration,
	})
	if err != nil {
		gctx.log(fmt.Sprintf("verification: recording phase2-reproduction event failed: %v", err))
	}

	if gctx.Recovery == nil {
		return "", fmt.Errorf("Reproduction command unavailable")
	}

	outcome, err := gctx.Recovery.AttemptRecovery(ctx, eventID, models.LayerPhase2Reproduction, "", reliability.ReproductionHint{
		LogText: state.CurrentLogText,
	})
	if err != nil || !outcome.Resolved || outcome.Command == "" {
		return "", fmt.Errorf("Reproduction command unavailable")
	}

	if state.Diagnosis != nil {
		state.Diagnosis.ReproductionCommand = outcome.Command
	}
	return outcome.Command, nil
}

// checkLoop computes this iteration's LoopStateSnapshot and hands it to
// the loop detector; a detected duplicate escalates to the Recovery
// Strategy Service, which may advise a strategy shift or exhaust into a
// fatal "Strategy loop".
func (n *VerificationNode) checkLoop(ctx context.Context, state *models.GraphState, gctx *GraphContext) error {
	if gctx.LoopDetector == nil {
		return nil
	}

	contents := make(map[string]string, len(state.FileReservations))
	for _, path := range state.FileReservations {
		if entry, ok := state.Files[path]; ok && entry.Modified != nil {
			contents[path] = entry.Modified.Content
		}
	}

	snapshot := models.LoopStateSnapshot{
		Iteration:        state.Iteration,
		FilesChanged:     state.FileReservations,
		ContentChecksum:  loopdetect.Checksum(contents),
		ErrorFingerprint: errorFingerprint(state),
		Timestamp:        time.Now(),
	}

	result := gctx.LoopDetector.DetectLoop(snapshot)
	if !result.Detected {
		return nil
	}

	gctx.log(fmt.Sprintf("verification: loop detected - %s", result.Message))

	if gctx.Telemetry == nil || gctx.Recovery == nil {
		return fmt.Errorf("Strategy loop")
	}

	eventID, err := gctx.Telemetry.RecordStrategyLoopDetected(ctx, 1.0, map[string]any{
		"runId":     gctx.RunID,
		"iteration": state.Iteration,
		"message":   result.Message,
	})
	if err != nil {
		gctx.log(fmt.Sprintf("verification: recording phase3-loop-detection event failed: %v", err))
	}

	outcome, err := gctx.Recovery.AttemptRecovery(ctx, eventID, models.LayerPhase3LoopDetection, "", reliability.ReproductionHint{})
	if err != nil || !outcome.Resolved {
		return fmt.Errorf("Strategy loop")
	}

	state.Feedback = append(state.Feedback, fmt.Sprintf("Strategy shift advised: %s", outcome.Notes))
	return nil
}

func tailExcerpt(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[len(s)-maxLen:]
}

func errorFingerprint(state *models.GraphState) string {
	if state.Classification == nil {
		return hashContent(state.CurrentLogText)
	}
	return hashContent(string(state.Classification.Category) + "|" + tailExcerpt(state.CurrentLogText, 500))
}
