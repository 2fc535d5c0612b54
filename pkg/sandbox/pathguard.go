package sandbox

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar"
)

// readCommandRe extracts the path operand from a small set of
// file-reading commands (cat, less, head, tail, sed -n).
var readCommandRe = regexp.MustCompile(`^\s*(?:cat|less|head|tail|sed\s+-n[^\s]*)\s+(\S+)\s*$`)

// HallucinationRecorder is the seam the path guard calls into when a
// referenced path has no match anywhere in the tree snapshot;
// pkg/loopdetect.Detector satisfies it.
type HallucinationRecorder interface {
	RecordHallucination(path string)
}

// PathGuard wraps RunCommand to intercept file-reading commands that
// reference a path absent from the sandbox's known file tree, and
// fuzzy-resolves it via glob before falling through to the sandbox.
type PathGuard struct {
	inner      Sandbox
	treeSnapshot []string // repo-relative paths known to exist
	recorder   HallucinationRecorder
}

// NewPathGuard wraps inner, using tree as the known-good path set and
// recorder to track hallucinated references.
func NewPathGuard(inner Sandbox, tree []string, recorder HallucinationRecorder) *PathGuard {
	return &PathGuard{inner: inner, treeSnapshot: tree, recorder: recorder}
}

// RunCommand rewrites a file-reading command whose path operand is
// absent from the tree snapshot but uniquely resolvable via fuzzy glob;
// on ambiguous or zero matches it returns an explanatory error instead
// of delegating to the sandbox.
func (g *PathGuard) RunCommand(ctx context.Context, cmd string, opts RunOptions) (ExecResult, error) {
	match := readCommandRe.FindStringSubmatch(cmd)
	if match == nil {
		return g.inner.RunCommand(ctx, cmd, opts)
	}

	path := match[1]
	if g.exists(path) {
		return g.inner.RunCommand(ctx, cmd, opts)
	}

	candidates := g.fuzzyMatch(path)
	switch len(candidates) {
	case 0:
		if g.recorder != nil {
			g.recorder.RecordHallucination(path)
		}
		return ExecResult{}, fmt.Errorf("path %q does not exist in the repository and no fuzzy match was found", path)
	case 1:
		rewritten := strings.Replace(cmd, path, candidates[0], 1)
		return g.inner.RunCommand(ctx, rewritten, opts)
	default:
		return ExecResult{}, fmt.Errorf("path %q is ambiguous; candidates: %s", path, strings.Join(candidates, ", "))
	}
}

func (g *PathGuard) exists(path string) bool {
	for _, known := range g.treeSnapshot {
		if known == path {
			return true
		}
	}
	return false
}

func (g *PathGuard) fuzzyMatch(path string) []string {
	base := path
	if idx := strings.LastIndex(path, "/"); idx != -1 {
		base = path[idx+1:]
	}
	pattern := "**/" + base

	var matches []string
	for _, known := range g.treeSnapshot {
		ok, err := doublestar.Match(pattern, known)
		if err == nil && ok {
			matches = append(matches, known)
		}
	}
	return matches
}

// Init, WriteFile, ReadFile, GetResourceStats, Teardown delegate
// unchanged; only RunCommand is intercepted.
func (g *PathGuard) Init(ctx context.Context) error { return g.inner.Init(ctx) }
func (g *PathGuard) WriteFile(ctx context.Context, path string, content []byte) error {
	return g.inner.WriteFile(ctx, path, content)
}
func (g *PathGuard) ReadFile(ctx context.Context, path string) ([]byte, error) {
	return g.inner.ReadFile(ctx, path)
}
func (g *PathGuard) GetResourceStats(ctx context.Context) (*ResourceStats, error) {
	return g.inner.GetResourceStats(ctx)
}
func (g *PathGuard) Teardown(ctx context.Context) error { return g.inner.Teardown(ctx) }
