// Package graph implements the Repair Graph (spec.md §4.5): the
// per-session state machine that iterates analysis → planning →
// execution → verification → finish under a bounded iteration budget,
// plus the optional DAG executor for composite diagnoses.
package graph

import (
	"context"

	"github.com/codeready-toolchain/repairagent/pkg/loopdetect"
	"github.com/codeready-toolchain/repairagent/pkg/models"
	"github.com/codeready-toolchain/repairagent/pkg/pipeline"
	"github.com/codeready-toolchain/repairagent/pkg/reliability"
	"github.com/codeready-toolchain/repairagent/pkg/reproduction"
	"github.com/codeready-toolchain/repairagent/pkg/sandbox"
	"github.com/codeready-toolchain/repairagent/pkg/sourcehost"
)

// Store is the narrow persistence seam the graph writes through: one
// insert per ErrorFact (iteration 0 only) and per FileModification
// (execution node, edit action). pkg/store implements it against
// Postgres; tests use an in-memory fake.
type Store interface {
	InsertErrorFact(ctx context.Context, fact models.ErrorFact) error
	InsertFileModification(ctx context.Context, mod models.FileModification) error
}

// GraphContext bundles the services a node needs, mirroring the
// teacher's ExecutionContext (LLMClient/ToolExecutor/PromptBuilder
// injected onto one struct rather than threaded as separate
// parameters). One GraphContext is constructed per session by the
// orchestrator and shared read-only across all five nodes.
type GraphContext struct {
	RunID        string
	LLM          LLMGateway
	Sandbox      sandbox.Sandbox
	SourceHost   *sourcehost.Client
	Reproducer   *reproduction.Engine
	LoopDetector *loopdetect.Detector
	Telemetry    *reliability.Telemetry
	Recovery     *reliability.RecoveryStrategyService
	Pipeline     *pipeline.Pipeline
	Store        Store
	RepoRef      sourcehost.RepoRef

	LogCallback         func(msg string)
	UpdateStateCallback func(state *models.GraphState)
}

func (g *GraphContext) log(msg string) {
	if g.LogCallback != nil {
		g.LogCallback(msg)
	}
}

// GraphNode is one state of the repair state machine. Run reads state
// and the shared services in gctx, mutates state in place to reflect
// the node's contract (spec.md §4.5), and returns an error only for
// unrecoverable conditions the driver should treat as a fatal abort of
// the whole session (recoverable failures are absorbed into
// state.Status/FailureReason directly, per spec.md §5's propagation
// rule).
type GraphNode interface {
	Name() string
	Run(ctx context.Context, state *models.GraphState, gctx *GraphContext) error
}

// NodeRegistry resolves a GraphState.CurrentNode name to its GraphNode.
type NodeRegistry struct {
	nodes map[string]GraphNode
}

// NewNodeRegistry builds the standard five-node registry.
func NewNodeRegistry() *NodeRegistry {
	r := &NodeRegistry{nodes: make(map[string]GraphNode)}
	r.Register(&AnalysisNode{})
	r.Register(&PlanningNode{})
	r.Register(&ExecutionNode{})
	r.Register(&VerificationNode{})
	r.Register(&FinishNode{})
	return r
}

// Register adds or replaces a node under its own Name().
func (r *NodeRegistry) Register(n GraphNode) {
	r.nodes[n.Name()] = n
}

// Get resolves a node by name.
func (r *NodeRegistry) Get(name string) (GraphNode, bool) {
	n, ok := r.nodes[name]
	return n, ok
}
