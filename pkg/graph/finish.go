package graph

import (
	"context"

	"github.com/codeready-toolchain/repairagent/pkg/models"
)

// FinishNode is the terminal node: it invokes the session's
// updateStateCallback one final time and otherwise does nothing — the
// driver loop stops iterating once CurrentNode reaches "finish" by
// checking GraphState.Terminal() alongside the name.
type FinishNode struct{}

func (n *FinishNode) Name() string { return "finish" }

func (n *FinishNode) Run(ctx context.Context, state *models.GraphState, gctx *GraphContext) error {
	if gctx.UpdateStateCallback != nil {
		gctx.UpdateStateCallback(state)
	}
	return nil
}
