package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/codeready-toolchain/repairagent/pkg/config"
	repairerrors "github.com/codeready-toolchain/repairagent/pkg/errors"
)

// e2bSandbox talks to the E2B control-plane REST API to create an
// ephemeral cloud micro-VM and drive it via HTTP. There is no Go SDK for
// this API anywhere in the example corpus, so this is a small hand-rolled
// net/http client — the same shape as pkg/runbook/github.go's GitHub
// REST client.
type e2bSandbox struct {
	cfg       *config.Config
	logger    *slog.Logger
	client    *http.Client
	sandboxID string
}

func newE2BSandbox(cfg *config.Config, logger *slog.Logger) *e2bSandbox {
	return &e2bSandbox{
		cfg:    cfg,
		logger: logger,
		client: &http.Client{Timeout: cfg.Sandbox.InitTimeout},
	}
}

func (e *e2bSandbox) baseURL() string {
	if e.cfg.Sandbox.E2BBaseURL != "" {
		return e.cfg.Sandbox.E2BBaseURL
	}
	return "https://api.e2b.dev"
}

func (e *e2bSandbox) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, e.baseURL()+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("X-API-Key", e.cfg.Sandbox.E2BAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return &repairerrors.TransportError{Target: "e2b", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return &repairerrors.TransportError{Target: "e2b", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode >= 400 {
		return &repairerrors.ClientError{Target: "e2b", Status: resp.StatusCode, Err: fmt.Errorf("request failed")}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (e *e2bSandbox) Init(ctx context.Context) error {
	var created struct {
		SandboxID string `json:"sandboxID"`
	}
	err := e.doJSON(ctx, http.MethodPost, "/sandboxes", map[string]any{
		"templateID": e.cfg.Sandbox.Image,
	}, &created)
	if err != nil {
		return err
	}
	e.sandboxID = created.SandboxID
	e.logger.InfoContext(ctx, "e2b sandbox initialized", "sandbox_id", e.sandboxID)
	return nil
}

func (e *e2bSandbox) RunCommand(ctx context.Context, command string, opts RunOptions) (ExecResult, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var result struct {
		Stdout   string `json:"stdout"`
		Stderr   string `json:"stderr"`
		ExitCode int    `json:"exitCode"`
	}
	err := e.doJSON(runCtx, http.MethodPost, fmt.Sprintf("/sandboxes/%s/exec", e.sandboxID), map[string]any{
		"cmd": command,
		"cwd": opts.Cwd,
	}, &result)
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return ExecResult{}, &repairerrors.TimeoutError{Operation: "sandbox.runCommand", Err: err}
		}
		return ExecResult{}, err
	}

	if result.ExitCode == 127 {
		return ExecResult(result), &repairerrors.CommandNotFoundError{Command: command}
	}
	return ExecResult(result), nil
}

func (e *e2bSandbox) WriteFile(ctx context.Context, path string, content []byte) error {
	return e.doJSON(ctx, http.MethodPost, fmt.Sprintf("/sandboxes/%s/files", e.sandboxID), map[string]any{
		"path":    path,
		"content": string(content),
	}, nil)
}

func (e *e2bSandbox) ReadFile(ctx context.Context, path string) ([]byte, error) {
	var result struct {
		Content string `json:"content"`
	}
	err := e.doJSON(ctx, http.MethodGet, fmt.Sprintf("/sandboxes/%s/files?path=%s", e.sandboxID, path), nil, &result)
	if err != nil {
		return nil, err
	}
	return []byte(result.Content), nil
}

func (e *e2bSandbox) GetResourceStats(ctx context.Context) (*ResourceStats, error) {
	// The E2B control plane exposes no equivalent resource-usage API.
	return nil, nil
}

func (e *e2bSandbox) Teardown(ctx context.Context) error {
	if e.sandboxID == "" {
		return nil
	}
	err := e.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/sandboxes/%s", e.sandboxID), nil, nil)
	e.sandboxID = ""
	return err
}
