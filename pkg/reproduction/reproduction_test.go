package reproduction

import (
	"context"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFS struct {
	files map[string][]byte
}

func newFakeFS() *fakeFS { return &fakeFS{files: map[string][]byte{}} }

func (f *fakeFS) put(p, content string) { f.files[p] = []byte(content) }

func (f *fakeFS) ReadFile(p string) ([]byte, error) {
	content, ok := f.files[p]
	if !ok {
		return nil, assertNotFound(p)
	}
	return content, nil
}

func (f *fakeFS) Glob(pattern string) ([]string, error) {
	var out []string
	for p := range f.files {
		if ok, _ := path.Match(pattern, p); ok {
			out = append(out, p)
		}
		if ok, _ := path.Match(pattern, path.Base(p)); ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type notFoundErr struct{ path string }

func (e notFoundErr) Error() string { return "not found: " + e.path }
func assertNotFound(p string) error { return notFoundErr{p} }

func TestInferWorkflowScanMatchesTestStepSkipsCheckout(t *testing.T) {
	fs := newFakeFS()
	fs.put(".github/workflows/ci.yml", `
jobs:
  build:
    steps:
      - run: actions/checkout@v4
      - run: pytest backend/tests/
`)
	engine := New(fs, nil, nil)
	result := engine.Infer(context.Background(), Hint{})
	require.True(t, result.Ok)
	assert.Equal(t, "pytest backend/tests/", result.Command)
	assert.Equal(t, "workflow-scan", result.Strategy)
	assert.Equal(t, 0.9, result.Confidence)
}

func TestInferSignatureMatchFallsBackToGoTest(t *testing.T) {
	fs := newFakeFS()
	fs.put("go.mod", "module example.com/foo\n")
	engine := New(fs, nil, nil)
	result := engine.Infer(context.Background(), Hint{})
	require.True(t, result.Ok)
	assert.Equal(t, "go test ./...", result.Command)
	assert.Equal(t, "signature-match", result.Strategy)
}

func TestInferBuildToolRequiresTestTarget(t *testing.T) {
	fs := newFakeFS()
	fs.put("Makefile", "build:\n\tgo build ./...\n")
	engine := New(fs, nil, nil)
	result := engine.Infer(context.Background(), Hint{})
	assert.False(t, result.Ok)

	fs.put("Makefile", "test:\n\tgo test ./...\n")
	result = engine.Infer(context.Background(), Hint{})
	require.True(t, result.Ok)
	assert.Equal(t, "make test", result.Command)
}

func TestInferSafeScanFindsTestsDirectory(t *testing.T) {
	fs := newFakeFS()
	fs.put("tests/placeholder", "")
	engine := New(fs, nil, nil)
	result := engine.Infer(context.Background(), Hint{})
	require.True(t, result.Ok)
	assert.Equal(t, "safe-scan", result.Strategy)
}

func TestInferReturnsNotOkWhenNothingMatches(t *testing.T) {
	fs := newFakeFS()
	engine := New(fs, nil, nil)
	result := engine.Infer(context.Background(), Hint{})
	assert.False(t, result.Ok)
}

type fakeDryRunner struct {
	exitCode int
	stderr   string
}

func (f fakeDryRunner) RunCommand(_ context.Context, _ string, _ int) (string, string, int, error) {
	return "", f.stderr, f.exitCode, nil
}

func TestValidateDisqualifiesCommandNotFound(t *testing.T) {
	fs := newFakeFS()
	fs.put("go.mod", "module example.com/foo\n")
	engine := New(fs, nil, fakeDryRunner{exitCode: 127})
	result := engine.Infer(context.Background(), Hint{})
	assert.False(t, result.Ok)
}

func TestValidateAcceptsNonZeroExitOtherThanCommandNotFound(t *testing.T) {
	fs := newFakeFS()
	fs.put("go.mod", "module example.com/foo\n")
	engine := New(fs, nil, fakeDryRunner{exitCode: 1})
	result := engine.Infer(context.Background(), Hint{})
	require.True(t, result.Ok)
	assert.Equal(t, "go test ./...", result.Command)
}

func TestInferIsIdempotentForDeterministicStrategies(t *testing.T) {
	fs := newFakeFS()
	fs.put("Cargo.toml", "[package]\nname = \"x\"\n")
	engine := New(fs, nil, nil)
	first := engine.Infer(context.Background(), Hint{})
	second := engine.Infer(context.Background(), Hint{})
	assert.Equal(t, first, second)
}
