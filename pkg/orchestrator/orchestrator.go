// Package orchestrator implements session admission and the
// per-session sandbox lifecycle (spec.md §4.8): a process-wide
// concurrency cap with FIFO dispatch and fail-fast backpressure, the
// active-session cancellation registry, and the sandbox init/teardown
// boundary wrapped around one graph Driver.Run call.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"

	"github.com/codeready-toolchain/repairagent/pkg/config"
	"github.com/codeready-toolchain/repairagent/pkg/errors"
	"github.com/codeready-toolchain/repairagent/pkg/graph"
	"github.com/codeready-toolchain/repairagent/pkg/models"
	"github.com/codeready-toolchain/repairagent/pkg/sandbox"
	"github.com/google/uuid"
)

// Store is the narrow AgentRun persistence seam the Pool writes
// through: one insert on admission, one update per graph transition.
type Store interface {
	graph.Store
	CreateAgentRun(ctx context.Context, run models.AgentRun) error
	UpdateAgentRunState(ctx context.Context, runID string, state models.GraphState) error
}

// SandboxFactory constructs a fresh Sandbox for one session. Supplied
// by cmd/ wiring so Pool stays independent of the concrete execution
// backend (spec.md §4.1's Docker/Kubernetes/E2B/simulation choices).
type SandboxFactory func(ctx context.Context, cfg models.Config, runID string) (sandbox.Sandbox, error)

// queueCapacity bounds the FIFO admission backlog independently of
// MaxConcurrentAgents — saturating it triggers the typed Overloaded
// error rather than blocking the caller (spec.md §5 backpressure).
const queueCapacity = 256

// Pool is the process-wide session scheduler. One Pool serves the
// whole process; NewPool starts its dispatcher goroutine immediately.
type Pool struct {
	maxConcurrent int

	jobs chan *session
	sem  chan struct{}

	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once

	mu             sync.RWMutex
	activeSessions map[string]context.CancelFunc

	deps Dependencies
	log  *slog.Logger
}

// Dependencies bundles everything Pool needs to construct and run one
// session's GraphContext. GraphContextFactory is responsible for
// wiring the per-session-scoped loop detector (spec.md §5: "Loop
// detector is per-session") alongside the process-wide LLM/telemetry/
// recovery/source-host singletons — Pool itself stays agnostic of
// those concrete types.
type Dependencies struct {
	SandboxFactory      SandboxFactory
	Store               Store
	GraphContextFactory func(runID string, cfg models.Config, box sandbox.Sandbox) *graph.GraphContext

	// ResourceThresholds gates the periodic sandbox resource watcher
	// (spec.md §4.1); the zero value disables every level (warn/crit
	// both 0), so callers that don't care about resource exhaustion can
	// leave this unset rather than special-casing it.
	ResourceThresholds config.ResourceThresholds

	// OnSessionComplete, if set, is called with the terminal
	// GraphState once a session finishes (successfully, failed, or
	// panicked) so cmd/ wiring can feed pkg/reflection.Learner without
	// Pool depending on that package directly.
	OnSessionComplete func(state *models.GraphState)
}

// NewPool constructs a Pool with the given admission cap and starts
// its dispatcher goroutine (grounded on pkg/queue/pool.go's
// WorkerPool.Start spawning N workers — here one dispatcher gates N
// concurrent session goroutines via a semaphore instead of N
// long-lived DB-polling workers, since admission here is push-driven).
func NewPool(maxConcurrent int, deps Dependencies) *Pool {
	p := &Pool{
		maxConcurrent:  maxConcurrent,
		jobs:           make(chan *session, queueCapacity),
		sem:            make(chan struct{}, maxConcurrent),
		stopCh:         make(chan struct{}),
		activeSessions: make(map[string]context.CancelFunc),
		deps:           deps,
		log:            slog.With("component", "orchestrator.Pool"),
	}
	p.wg.Add(1)
	go p.dispatch()
	return p
}

// Admit enqueues a new repair session and returns its run ID
// immediately; the session itself executes asynchronously once
// capacity frees up. Returns an *errors.OverloadedError if the
// admission queue is saturated (spec.md §5 backpressure).
func (p *Pool) Admit(ctx context.Context, cfg models.Config, group models.RunGroup) (string, error) {
	runID := uuid.NewString()
	state := models.NewGraphState(cfg, group, cfg.MaxIterations)

	run := models.AgentRun{ID: runID, GroupID: group.MainRunID, Status: state.Status, State: *state}
	if err := p.deps.Store.CreateAgentRun(ctx, run); err != nil {
		return "", err
	}

	s := &session{runID: runID, cfg: cfg, state: state}
	select {
	case p.jobs <- s:
		return runID, nil
	default:
		return "", &errors.OverloadedError{QueueDepth: len(p.jobs), Capacity: queueCapacity}
	}
}

// CancelSession triggers context cancellation for a running session.
// Returns true if the session was found active on this process
// (grounded directly on pkg/queue/pool.go's WorkerPool.CancelSession).
func (p *Pool) CancelSession(runID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if cancel, ok := p.activeSessions[runID]; ok {
		cancel()
		return true
	}
	return false
}

// Stop signals the dispatcher to stop admitting new work from the
// queue and waits for in-flight sessions to finish.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
}

func (p *Pool) dispatch() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		case s := <-p.jobs:
			select {
			case p.sem <- struct{}{}:
			case <-p.stopCh:
				return
			}
			p.wg.Add(1)
			go func() {
				defer p.wg.Done()
				defer func() { <-p.sem }()
				p.runSession(s)
			}()
		}
	}
}

func (p *Pool) registerSession(runID string, cancel context.CancelFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activeSessions[runID] = cancel
}

func (p *Pool) unregisterSession(runID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.activeSessions, runID)
}

type session struct {
	runID string
	cfg   models.Config
	state *models.GraphState
}
