package sandbox

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	repairerrors "github.com/codeready-toolchain/repairagent/pkg/errors"
)

// simulationSandbox runs commands directly in a temporary directory with
// no isolation; it exists for tests where spinning up Docker or a
// Kubernetes Job is unnecessary overhead.
type simulationSandbox struct {
	logger *slog.Logger
	dir    string
}

func newSimulationSandbox(logger *slog.Logger) *simulationSandbox {
	return &simulationSandbox{logger: logger}
}

func (s *simulationSandbox) Init(ctx context.Context) error {
	dir, err := os.MkdirTemp("", "repairagent-sim-*")
	if err != nil {
		return err
	}
	s.dir = dir
	s.logger.InfoContext(ctx, "simulation sandbox initialized", "dir", dir)
	return nil
}

func (s *simulationSandbox) RunCommand(ctx context.Context, command string, opts RunOptions) (ExecResult, error) {
	if s.dir == "" {
		return ExecResult{}, errors.New("sandbox not initialized")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cwd := s.dir
	if opts.Cwd != "" {
		cwd = filepath.Join(s.dir, opts.Cwd)
	}

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	cmd.Dir = cwd

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return ExecResult{}, &repairerrors.TimeoutError{Operation: "sandbox.runCommand", Err: runCtx.Err()}
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return ExecResult{}, err
		}
	}

	return ExecResult{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: exitCode}, nil
}

func (s *simulationSandbox) WriteFile(ctx context.Context, path string, content []byte) error {
	full := filepath.Join(s.dir, path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.WriteFile(full, content, 0o644)
}

func (s *simulationSandbox) ReadFile(ctx context.Context, path string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.dir, path))
}

func (s *simulationSandbox) GetResourceStats(ctx context.Context) (*ResourceStats, error) {
	return nil, nil
}

func (s *simulationSandbox) Teardown(ctx context.Context) error {
	if s.dir == "" {
		return nil
	}
	err := os.RemoveAll(s.dir)
	s.dir = ""
	return err
}
