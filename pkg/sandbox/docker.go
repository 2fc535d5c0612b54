package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/testcontainers/testcontainers-go"

	"github.com/codeready-toolchain/repairagent/pkg/config"
	repairerrors "github.com/codeready-toolchain/repairagent/pkg/errors"
)

// dockerSandbox backs a session with a long-lived local container
// ("sleep infinity"), using testcontainers-go for lifecycle management
// and resource-limit configuration.
type dockerSandbox struct {
	cfg       *config.Config
	logger    *slog.Logger
	container testcontainers.Container
}

func newDockerSandbox(cfg *config.Config, logger *slog.Logger) *dockerSandbox {
	return &dockerSandbox{cfg: cfg, logger: logger}
}

func (d *dockerSandbox) Init(ctx context.Context) error {
	req := testcontainers.ContainerRequest{
		Image:      d.cfg.Sandbox.Image,
		Cmd:        []string{"sleep", "infinity"},
		WaitingFor: nil,
		HostConfigModifier: func(hc *container.HostConfig) {
			hc.NanoCPUs = 1_000_000_000 // 1.0 CPU
			hc.Memory = 2 << 30         // 2 GiB
			hc.PidsLimit = int64Ptr(2000)
		},
	}

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return &repairerrors.TransportError{Target: "docker_local", Err: err}
	}

	d.container = c
	d.logger.InfoContext(ctx, "docker sandbox initialized", "image", d.cfg.Sandbox.Image)
	return nil
}

func (d *dockerSandbox) RunCommand(ctx context.Context, command string, opts RunOptions) (ExecResult, error) {
	if d.container == nil {
		return ExecResult{}, fmt.Errorf("sandbox not initialized")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	argv := []string{"sh", "-c", command}
	if opts.Cwd != "" {
		argv = []string{"sh", "-c", fmt.Sprintf("cd %q && %s", opts.Cwd, command)}
	}

	exitCode, reader, err := d.container.Exec(runCtx, argv)
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return ExecResult{}, &repairerrors.TimeoutError{Operation: "sandbox.runCommand", Err: err}
		}
		return ExecResult{}, &repairerrors.TransportError{Target: "docker_local", Err: err}
	}

	var out bytes.Buffer
	_, _ = io.Copy(&out, reader)

	if exitCode == 127 {
		return ExecResult{Stdout: out.String(), ExitCode: exitCode}, &repairerrors.CommandNotFoundError{Command: command}
	}

	return ExecResult{Stdout: out.String(), ExitCode: exitCode}, nil
}

func (d *dockerSandbox) WriteFile(ctx context.Context, path string, content []byte) error {
	return d.container.CopyToContainer(ctx, content, path, 0o644)
}

func (d *dockerSandbox) ReadFile(ctx context.Context, path string) ([]byte, error) {
	reader, err := d.container.CopyFileFromContainer(ctx, path)
	if err != nil {
		return nil, &repairerrors.TransportError{Target: "docker_local", Err: err}
	}
	defer reader.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (d *dockerSandbox) GetResourceStats(ctx context.Context) (*ResourceStats, error) {
	// testcontainers-go exposes no live stats stream of its own, so the
	// container's host-visible PID is inspected and handed to HostSampler
	// (gopsutil) instead.
	if d.container == nil {
		return nil, fmt.Errorf("sandbox not initialized")
	}
	info, err := d.container.Inspect(ctx)
	if err != nil {
		return nil, &repairerrors.TransportError{Target: "docker_local", Err: err}
	}
	pid := int32(info.State.Pid)
	if pid <= 0 {
		return nil, fmt.Errorf("container reports no live pid")
	}
	return NewHostSampler(pid).Sample(ctx)
}

func (d *dockerSandbox) Teardown(ctx context.Context) error {
	if d.container == nil {
		return nil
	}
	err := d.container.Terminate(ctx)
	d.container = nil
	return err
}

func int64Ptr(v int64) *int64 { return &v }
