// Package sourcehost implements the repair agent's source-control host
// capability (spec.md §6): workflow log retrieval with a per-iteration
// fetch strategy, closest-file lookup, and file content fetch, against
// the GitHub REST API.
package sourcehost

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	repairerrors "github.com/codeready-toolchain/repairagent/pkg/errors"
)

// LogStrategy selects how aggressively Client.GetWorkflowLogs searches
// for a failed job, per spec.md §4.5 analysis node: 0 → extended, 1 →
// any_error, 2 → force_latest, ≥3 → fail.
type LogStrategy int

const (
	StrategyExtended LogStrategy = iota
	StrategyAnyError
	StrategyForceLatest
)

// WorkflowLogs is the result of GetWorkflowLogs.
type WorkflowLogs struct {
	LogText string
	HeadSHA string
	JobName string
}

// FileContent is the result of GetFileContent.
type FileContent struct {
	Name     string
	Content  string
	Language string
}

// ClosestFile is the result of FindClosestFile.
type ClosestFile struct {
	File string
	Path string
}

// RepoRef identifies a GitHub repository and the run under repair.
type RepoRef struct {
	Owner string
	Repo  string
	Token string
}

// Client is a thin GitHub REST client, grounded on the teacher's GitHub
// content-fetch client: blob-URL download plus the Contents API, here
// extended to workflow-run log retrieval via Actions' zip log archive.
type Client struct {
	httpClient *http.Client
	baseAPI    string
	logger     *slog.Logger
}

// New constructs a Client. baseAPI overrides the GitHub API root for
// tests; pass "" for the default https://api.github.com.
func New(baseAPI string) *Client {
	if baseAPI == "" {
		baseAPI = "https://api.github.com"
	}
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseAPI:    baseAPI,
		logger:     slog.Default(),
	}
}

func (c *Client) authHeader(req *http.Request, token string) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
}

// GetWorkflowLogs downloads and unpacks the log archive for runID,
// selecting the failed job according to strategy.
func (c *Client) GetWorkflowLogs(ctx context.Context, ref RepoRef, runID string, strategy LogStrategy) (WorkflowLogs, error) {
	run, err := c.getRun(ctx, ref, runID)
	if err != nil {
		return WorkflowLogs{}, err
	}

	archive, err := c.downloadLogsZip(ctx, ref, runID)
	if err != nil {
		return WorkflowLogs{}, err
	}

	jobName, logText, err := selectJobLog(archive, strategy)
	if err != nil {
		return WorkflowLogs{}, err
	}

	return WorkflowLogs{LogText: logText, HeadSHA: run.HeadSHA, JobName: jobName}, nil
}

type runSummary struct {
	HeadSHA string `json:"head_sha"`
}

func (c *Client) getRun(ctx context.Context, ref RepoRef, runID string) (runSummary, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/actions/runs/%s", c.baseAPI, ref.Owner, ref.Repo, runID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return runSummary{}, err
	}
	c.authHeader(req, ref.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return runSummary{}, &repairerrors.TransportError{Target: "github", Err: err}
	}
	defer resp.Body.Close()

	if err := c.statusError(resp); err != nil {
		return runSummary{}, err
	}

	var run runSummary
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		return runSummary{}, err
	}
	return run, nil
}

func (c *Client) downloadLogsZip(ctx context.Context, ref RepoRef, runID string) (*zip.Reader, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/actions/runs/%s/logs", c.baseAPI, ref.Owner, ref.Repo, runID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	c.authHeader(req, ref.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &repairerrors.TransportError{Target: "github", Err: err}
	}
	defer resp.Body.Close()

	if err := c.statusError(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	reader, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, fmt.Errorf("unpack log archive: %w", err)
	}
	return reader, nil
}

// selectJobLog picks a log file from the archive per strategy: extended
// prefers a file whose name suggests a full job (not a setup step);
// any_error picks the first file containing "error" (case-insensitive);
// force_latest picks the last file in the archive by name.
func selectJobLog(archive *zip.Reader, strategy LogStrategy) (jobName, logText string, err error) {
	if len(archive.File) == 0 {
		return "", "", fmt.Errorf("log archive is empty")
	}

	switch strategy {
	case StrategyAnyError:
		for _, f := range archive.File {
			content, readErr := readZipFile(f)
			if readErr != nil {
				continue
			}
			if strings.Contains(strings.ToLower(content), "error") {
				return path.Base(f.Name), content, nil
			}
		}
		return "", "", fmt.Errorf("no job log contains an error marker")
	case StrategyForceLatest:
		last := archive.File[len(archive.File)-1]
		content, readErr := readZipFile(last)
		if readErr != nil {
			return "", "", readErr
		}
		return path.Base(last.Name), content, nil
	default: // StrategyExtended
		for _, f := range archive.File {
			if strings.Contains(strings.ToLower(f.Name), "setup") {
				continue
			}
			content, readErr := readZipFile(f)
			if readErr != nil {
				continue
			}
			return path.Base(f.Name), content, nil
		}
		return "", "", fmt.Errorf("no non-setup job log found")
	}
}

func readZipFile(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// GetFileContent fetches a single file's content via the Contents API.
func (c *Client) GetFileContent(ctx context.Context, ref RepoRef, filePath string) (FileContent, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.baseAPI, ref.Owner, ref.Repo, filePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return FileContent{}, err
	}
	c.authHeader(req, ref.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return FileContent{}, &repairerrors.TransportError{Target: "github", Err: err}
	}
	defer resp.Body.Close()

	if err := c.statusError(resp); err != nil {
		return FileContent{}, err
	}

	var decoded struct {
		Name     string `json:"name"`
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return FileContent{}, err
	}

	content := decoded.Content
	if decoded.Encoding == "base64" {
		content = strings.ReplaceAll(content, "\n", "")
	}

	return FileContent{
		Name:     decoded.Name,
		Content:  content,
		Language: languageFromExtension(filePath),
	}, nil
}

// FindClosestFile lists the repository tree and returns the entry whose
// base name matches targetPath's base name, or the exact path if it
// exists verbatim. Returns ok=false if nothing matches.
func (c *Client) FindClosestFile(ctx context.Context, ref RepoRef, targetPath string, treeSnapshot []string) (ClosestFile, bool) {
	for _, candidate := range treeSnapshot {
		if candidate == targetPath {
			return ClosestFile{File: path.Base(candidate), Path: candidate}, true
		}
	}

	target := path.Base(targetPath)
	for _, candidate := range treeSnapshot {
		if path.Base(candidate) == target {
			return ClosestFile{File: path.Base(candidate), Path: candidate}, true
		}
	}

	return ClosestFile{}, false
}

func (c *Client) statusError(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	if resp.StatusCode >= 500 {
		return &repairerrors.TransportError{Target: "github", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	return &repairerrors.ClientError{Target: "github", Status: resp.StatusCode, Err: fmt.Errorf("request failed")}
}

var extensionLanguages = map[string]string{
	".go":   "go",
	".py":   "python",
	".ts":   "typescript",
	".tsx":  "typescript",
	".js":   "javascript",
	".jsx":  "javascript",
	".rs":   "rust",
	".java": "java",
	".rb":   "ruby",
	".yml":  "yaml",
	".yaml": "yaml",
}

func languageFromExtension(filePath string) string {
	ext := path.Ext(filePath)
	if lang, ok := extensionLanguages[ext]; ok {
		return lang
	}
	return ""
}
