// Package sandbox implements the uniform execution-environment contract
// (spec.md §4.1) over three real backends — local Docker containers,
// Kubernetes Jobs, and the E2B cloud micro-VM API — plus a no-isolation
// simulation backend for tests, all behind a single Sandbox interface.
package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/repairagent/pkg/config"
)

// ExecResult is the outcome of one Sandbox.RunCommand call.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// ResourceStats is a point-in-time sample of sandbox resource usage.
// GetResourceStats returns nil when the backend cannot observe it
// (e.g. the e2b backend, which exposes no equivalent API).
type ResourceStats struct {
	CPUPercent float64
	MemPercent float64
	PIDs       int
}

// RunOptions configures one RunCommand invocation.
type RunOptions struct {
	Timeout time.Duration
	Cwd     string
}

// Sandbox is the uniform lifecycle contract every backend implements:
// init, exec, read/write, resource observation, teardown. All methods
// are fallible. The docker_local, kubernetes and e2b backends report
// transport, timeout and command-not-found (exit 127) failures as
// pkg/errors types; the simulation backend does so only for timeouts
// and returns exit 127 as a plain exit code. No backend returns a
// resource-exhausted error.
type Sandbox interface {
	Init(ctx context.Context) error
	RunCommand(ctx context.Context, cmd string, opts RunOptions) (ExecResult, error)
	WriteFile(ctx context.Context, path string, content []byte) error
	ReadFile(ctx context.Context, path string) ([]byte, error)
	GetResourceStats(ctx context.Context) (*ResourceStats, error)
	Teardown(ctx context.Context) error
}

// New constructs the Sandbox implementation selected by
// cfg.ExecutionBackend, scoped to sessionID for logging.
func New(cfg *config.Config, sessionID string) (Sandbox, error) {
	logger := slog.Default().With("session_id", sessionID, "backend", string(cfg.ExecutionBackend))

	switch cfg.ExecutionBackend {
	case config.BackendDockerLocal:
		return newDockerSandbox(cfg, logger), nil
	case config.BackendKubernetes:
		return newKubernetesSandbox(cfg, logger)
	case config.BackendE2B:
		return newE2BSandbox(cfg, logger), nil
	case config.BackendSimulation:
		return newSimulationSandbox(logger), nil
	default:
		return nil, fmt.Errorf("unknown execution backend %q", cfg.ExecutionBackend)
	}
}
