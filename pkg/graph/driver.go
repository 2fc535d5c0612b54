package graph

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/codeready-toolchain/repairagent/pkg/models"
)

var tracer = otel.Tracer("repairgraph")

// maxDriverSteps guards against an unregistered or cyclic CurrentNode
// name turning into an infinite loop; it is an order of magnitude above
// any plausible maxIterations × node count.
const maxDriverSteps = 10_000

// Driver runs the repair state machine to completion, the direct
// analogue of the teacher's ReActController.Run iteration loop —
// repeatedly dispatching the current node, logging the transition, and
// checking for a terminal state — generalized from ReAct's fixed
// iteration count to the graph's named-node dispatch.
type Driver struct {
	registry *NodeRegistry
	logger   *slog.Logger
}

// NewDriver constructs a Driver over the standard node registry.
func NewDriver() *Driver {
	return &Driver{registry: NewNodeRegistry(), logger: slog.Default()}
}

// Run iterates node transitions starting from state.CurrentNode until
// state.Terminal() is true (status success or failed) or a structural
// problem (unregistered node, context cancellation, step-count guard)
// forces an abort. It never returns a non-nil error for a node's own
// unrecoverable condition — those are reflected into state.Status —
// only for driver-level faults.
func (d *Driver) Run(ctx context.Context, state *models.GraphState, gctx *GraphContext) error {
	for steps := 0; !state.Terminal(); steps++ {
		if steps >= maxDriverSteps {
			state.Status = models.StatusFailed
			state.FailureReason = "Repair graph exceeded its step guard"
			break
		}

		select {
		case <-ctx.Done():
			state.Status = models.StatusFailed
			state.FailureReason = "Cancelled"
			return nil
		default:
		}

		node, ok := d.registry.Get(state.CurrentNode)
		if !ok {
			return fmt.Errorf("repair graph: no node registered for %q", state.CurrentNode)
		}

		if err := d.runNode(ctx, node, state, gctx); err != nil {
			return err
		}

		if state.CurrentNode == "finish" {
			finishNode, ok := d.registry.Get("finish")
			if ok {
				_ = finishNode.Run(ctx, state, gctx)
			}
			break
		}
	}
	return nil
}

func (d *Driver) runNode(ctx context.Context, node GraphNode, state *models.GraphState, gctx *GraphContext) error {
	ctx, span := tracer.Start(ctx, node.Name(), trace.WithAttributes(
		attribute.Int("repair.iteration", state.Iteration),
		attribute.String("repair.repo_url", state.Config.RepoURL),
	))
	defer span.End()

	before := state.CurrentNode
	err := node.Run(ctx, state, gctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	d.logger.Info("repair graph transition",
		"from", before,
		"to", state.CurrentNode,
		"iteration", state.Iteration,
		"status", state.Status,
	)
	if gctx.UpdateStateCallback != nil {
		gctx.UpdateStateCallback(state)
	}
	return nil
}
