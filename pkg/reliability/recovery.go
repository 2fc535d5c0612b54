package reliability

import (
	"context"

	"github.com/codeready-toolchain/repairagent/pkg/models"
)

// ReproductionInferrer is the seam RecoveryStrategyService calls into
// when a phase2-reproduction event fires because no reproduction
// command was available; pkg/reproduction.Engine implements it.
type ReproductionInferrer interface {
	Infer(ctx context.Context, repoRoot string, hint ReproductionHint) (command string, ok bool)
}

// ReproductionHint carries whatever failure context is available to
// guide inference (workflow path, log text); both fields are optional.
type ReproductionHint struct {
	WorkflowPath string
	LogText      string
}

// RecoveryOutcome is what RecoveryStrategyService.AttemptRecovery
// returns: the chosen strategy name, free-form notes, and whether the
// caller may proceed with a usable artifact (e.g. an inferred command).
type RecoveryOutcome struct {
	Strategy string
	Notes    string
	Command  string
	Resolved bool
}

// RecoveryStrategyService maps a fired reliability event to a concrete
// recovery action and records the outcome back through Telemetry.
type RecoveryStrategyService struct {
	telemetry   *Telemetry
	reproducer  ReproductionInferrer
}

// NewRecoveryStrategyService constructs a RecoveryStrategyService.
func NewRecoveryStrategyService(telemetry *Telemetry, reproducer ReproductionInferrer) *RecoveryStrategyService {
	return &RecoveryStrategyService{telemetry: telemetry, reproducer: reproducer}
}

// AttemptRecovery chooses and executes a recovery strategy for eventID,
// which belongs to layer. For phase2-reproduction it attempts command
// inference; for phase3-loop-detection it always advises a strategy
// shift (a resolved "shift-strategy" outcome) and never requests human
// intervention. An unrecognized layer gets an unresolved
// "human-requested" outcome. The outcome is always recorded via
// Telemetry.UpdateRecoveryOutcome.
func (r *RecoveryStrategyService) AttemptRecovery(ctx context.Context, eventID string, layer models.ReliabilityLayer, repoRoot string, hint ReproductionHint) (RecoveryOutcome, error) {
	switch layer {
	case models.LayerPhase2Reproduction:
		return r.recoverReproduction(ctx, eventID, repoRoot, hint)
	case models.LayerPhase3LoopDetection:
		return r.recoverLoop(ctx, eventID)
	default:
		outcome := RecoveryOutcome{Strategy: "human-requested", Notes: "unrecognized defense layer"}
		_ = r.telemetry.UpdateRecoveryOutcome(ctx, eventID, outcome.Strategy, false)
		return outcome, nil
	}
}

func (r *RecoveryStrategyService) recoverReproduction(ctx context.Context, eventID, repoRoot string, hint ReproductionHint) (RecoveryOutcome, error) {
	if r.reproducer == nil {
		outcome := RecoveryOutcome{Strategy: "human-requested", Notes: "no reproduction inferrer configured"}
		return outcome, r.telemetry.UpdateRecoveryOutcome(ctx, eventID, outcome.Strategy, false)
	}

	command, ok := r.reproducer.Infer(ctx, repoRoot, hint)
	if !ok {
		outcome := RecoveryOutcome{Strategy: "human-requested", Notes: "inference exhausted all strategies"}
		return outcome, r.telemetry.UpdateRecoveryOutcome(ctx, eventID, outcome.Strategy, false)
	}

	outcome := RecoveryOutcome{Strategy: "infer-command", Command: command, Resolved: true}
	return outcome, r.telemetry.UpdateRecoveryOutcome(ctx, eventID, outcome.Strategy, true)
}

func (r *RecoveryStrategyService) recoverLoop(ctx context.Context, eventID string) (RecoveryOutcome, error) {
	outcome := RecoveryOutcome{
		Strategy: "shift-strategy",
		Notes:    "advise an alternative approach for the next iteration",
		Resolved: true,
	}
	return outcome, r.telemetry.UpdateRecoveryOutcome(ctx, eventID, outcome.Strategy, true)
}
