package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	repairerrors "github.com/codeready-toolchain/repairagent/pkg/errors"
	"github.com/codeready-toolchain/repairagent/pkg/graph"
	"github.com/codeready-toolchain/repairagent/pkg/models"
	"github.com/codeready-toolchain/repairagent/pkg/sandbox"
)

// sessionTimeout bounds one repair session end to end, independent of
// the per-command timeouts enforced inside the sandbox and graph
// nodes (spec.md §5).
const sessionTimeout = 30 * time.Minute

// runSession owns the full lifecycle of one admitted session: sandbox
// init before analysis, the graph driver loop, and teardown after
// finish — with best-effort teardown even if the driver panics, so one
// broken session can never leak a sandbox for the process's lifetime
// (spec.md §4.8).
func (p *Pool) runSession(s *session) {
	ctx, cancel := context.WithTimeout(context.Background(), sessionTimeout)
	defer cancel()

	p.registerSession(s.runID, cancel)
	defer p.unregisterSession(s.runID)

	log := p.log.With("run_id", s.runID)
	log.Info("session admitted")

	box, err := p.deps.SandboxFactory(ctx, s.cfg, s.runID)
	if err != nil {
		s.state.Status = models.StatusFailed
		s.state.FailureReason = fmt.Sprintf("sandbox init failed: %v", err)
		p.persistFinalState(ctx, s)
		return
	}
	defer p.teardown(box, log)

	if err := box.Init(ctx); err != nil {
		s.state.Status = models.StatusFailed
		s.state.FailureReason = fmt.Sprintf("sandbox init failed: %v", err)
		p.persistFinalState(ctx, s)
		return
	}

	gctx := p.deps.GraphContextFactory(s.runID, s.cfg, box)
	gctx.UpdateStateCallback = func(state *models.GraphState) {
		p.persistState(ctx, s.runID, state)
	}

	// The resource watcher runs for the lifetime of the driver only: its
	// own context is stopped right after the driver returns so a
	// long-idle session doesn't keep sampling (and so stopWatcher always
	// races the driver finishing, never a later session-timeout cancel).
	watcherCtx, stopWatcher := context.WithCancel(ctx)
	var resourceOutcome atomic.Value
	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		p.watchResources(watcherCtx, s.runID, box, p.deps.ResourceThresholds, cancel, &resourceOutcome)
	}()

	p.runDriverSafely(ctx, s, gctx, log)
	stopWatcher()
	<-watcherDone

	if resErr, ok := resourceOutcome.Load().(*repairerrors.ResourceExhaustedError); ok && resErr != nil {
		s.state.Status = models.StatusFailed
		s.state.FailureReason = resErr.Error()
	}

	p.persistFinalState(ctx, s)
}

// runDriverSafely recovers a panic from the graph driver into a failed
// terminal state rather than crashing the process or leaking the
// sandbox teardown deferred in runSession.
func (p *Pool) runDriverSafely(ctx context.Context, s *session, gctx *graph.GraphContext, log *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			s.state.Status = models.StatusFailed
			s.state.FailureReason = fmt.Sprintf("panic: %v", r)
			log.Error("session panicked", "recovered", r)
		}
	}()

	driver := graph.NewDriver()
	if err := driver.Run(ctx, s.state, gctx); err != nil {
		s.state.Status = models.StatusFailed
		s.state.FailureReason = err.Error()
	}
}

func (p *Pool) teardown(box sandbox.Sandbox, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := box.Teardown(ctx); err != nil {
		log.Error("sandbox teardown failed", "error", err)
	}
}

func (p *Pool) persistState(ctx context.Context, runID string, state *models.GraphState) {
	if err := p.deps.Store.UpdateAgentRunState(ctx, runID, *state); err != nil {
		p.log.Error("persisting graph state failed", "run_id", runID, "error", err)
	}
}

func (p *Pool) persistFinalState(ctx context.Context, s *session) {
	p.persistState(ctx, s.runID, s.state)
	if p.deps.OnSessionComplete != nil {
		p.deps.OnSessionComplete(s.state)
	}
}
