// Package reproduction infers a single shell command that reproduces a
// CI failure, trying a fixed chain of strategies from most to least
// confident and optionally dry-run validating each candidate inside a
// sandbox (spec.md §4.2).
package reproduction

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/codeready-toolchain/repairagent/pkg/reliability"
)

// Result is the inferred reproduction command, or the zero value with
// Ok=false if every strategy was exhausted.
type Result struct {
	Command    string
	Confidence float64
	Strategy   string
	Reasoning  string
	Ok         bool
}

// FileSystem is the narrow repo-tree access Engine needs: reading a
// file's bytes and listing paths matching a glob, relative to repo
// root. cmd/repairagent's sandboxFileSystem adapter satisfies it, as
// would a plain os.DirFS wrapper.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
	Glob(pattern string) ([]string, error)
}

// LLMProvider is the minimal text-generation seam strategies 1 and 5
// call into; *llmapi.Gateway satisfies it through its Generate method.
type LLMProvider interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// DryRunner executes a candidate command with a short timeout to check
// it isn't simply missing ("command not found"); cmd/repairagent's
// sandboxDryRunner adapts pkg/sandbox.Sandbox's RunCommand to it.
type DryRunner interface {
	RunCommand(ctx context.Context, cmd string, timeoutSeconds int) (stdout, stderr string, exitCode int, err error)
}

// Hint carries whatever failure context is available to steer
// inference; all fields are optional.
type Hint struct {
	WorkflowPath string
	LogText      string
}

// Engine infers reproduction commands for one repository tree.
type Engine struct {
	fs   FileSystem
	llm  LLMProvider
	sbx  DryRunner
}

// New constructs an Engine. llm and sbx may be nil: without an llm,
// strategies 1 and 5 are skipped; without a sbx, candidates are not
// dry-run validated.
func New(fs FileSystem, llm LLMProvider, sbx DryRunner) *Engine {
	return &Engine{fs: fs, llm: llm, sbx: sbx}
}

var testKeywordRe = regexp.MustCompile(`(?i)(test|pytest|vitest|jest|mocha|cypress|go test|cargo test)`)

type workflowFile struct {
	Jobs map[string]struct {
		Steps []struct {
			Run string `yaml:"run"`
		} `yaml:"steps"`
	} `yaml:"jobs"`
}

// Infer runs the six-strategy chain in order, dry-run validating each
// candidate (if a DryRunner was configured) and returning the first one
// that is not disqualified. Returns Ok=false if every strategy failed or
// was disqualified.
func (e *Engine) Infer(ctx context.Context, hint Hint) Result {
	strategies := []func(context.Context, Hint) (Result, bool){
		e.workflowLLMPinpoint,
		e.workflowScan,
		e.signatureMatch,
		e.buildTool,
		e.llmRetry,
		e.safeScan,
	}

	for _, strategy := range strategies {
		result, tried := strategy(ctx, hint)
		if !tried {
			continue
		}
		if e.validate(ctx, result.Command) {
			result.Ok = true
			return result
		}
	}
	return Result{}
}

// validate dry-runs cmd if a DryRunner is configured. A DryRunner-free
// Engine accepts every candidate (no way to check). Exit code 127 or
// "command not found" in stderr disqualifies the candidate; any other
// failure is accepted since the reproduction is expected to fail — that
// is the point of running it.
func (e *Engine) validate(ctx context.Context, cmd string) bool {
	if e.sbx == nil || cmd == "" {
		return cmd != ""
	}
	_, stderr, exitCode, err := e.sbx.RunCommand(ctx, cmd, 10)
	if err != nil {
		return false
	}
	if exitCode == 127 || strings.Contains(strings.ToLower(stderr), "command not found") {
		return false
	}
	return true
}

func (e *Engine) workflowLLMPinpoint(ctx context.Context, hint Hint) (Result, bool) {
	if e.llm == nil || hint.WorkflowPath == "" || hint.LogText == "" {
		return Result{}, false
	}
	raw, err := e.fs.ReadFile(hint.WorkflowPath)
	if err != nil {
		return Result{}, false
	}
	prompt := "Given this workflow file and failure log, extract the exact `run:` step that failed:\n\n" +
		string(raw) + "\n\n---\n" + hint.LogText
	command, err := e.llm.Generate(ctx, prompt)
	if err != nil || strings.TrimSpace(command) == "" {
		return Result{}, false
	}
	return Result{
		Command:    strings.TrimSpace(command),
		Confidence: 0.95,
		Strategy:   "workflow-llm-pinpoint",
		Reasoning:  "LLM identified the failing run step from workflow + log context",
	}, true
}

func (e *Engine) workflowScan(_ context.Context, _ Hint) (Result, bool) {
	paths, err := e.fs.Glob(".github/workflows/*.yml")
	if err != nil {
		return Result{}, false
	}
	morePaths, err := e.fs.Glob(".github/workflows/*.yaml")
	if err == nil {
		paths = append(paths, morePaths...)
	}
	sort.Strings(paths)

	for _, path := range paths {
		raw, err := e.fs.ReadFile(path)
		if err != nil {
			continue
		}
		var wf workflowFile
		if err := yaml.Unmarshal(raw, &wf); err != nil {
			continue
		}
		jobNames := make([]string, 0, len(wf.Jobs))
		for name := range wf.Jobs {
			jobNames = append(jobNames, name)
		}
		sort.Strings(jobNames)
		for _, name := range jobNames {
			for _, step := range wf.Jobs[name].Steps {
				run := strings.TrimSpace(step.Run)
				if run == "" {
					continue
				}
				lower := strings.ToLower(run)
				if !testKeywordRe.MatchString(lower) {
					continue
				}
				if strings.Contains(lower, "actions/checkout") {
					continue
				}
				return Result{
					Command:    run,
					Confidence: 0.9,
					Strategy:   "workflow-scan",
					Reasoning:  "matched a test-like run step in " + path,
				}, true
			}
		}
	}
	return Result{}, false
}

type signature struct {
	marker     string
	command    string
	confidence float64
}

var signatures = []signature{
	{"package.json", "npm test", 0.8},
	{"Cargo.toml", "cargo test", 0.8},
	{"go.mod", "go test ./...", 0.8},
	{"pytest.ini", "pytest", 0.75},
	{"bun.lockb", "bun test", 0.7},
}

func (e *Engine) signatureMatch(_ context.Context, _ Hint) (Result, bool) {
	for _, sig := range signatures {
		if matches, _ := e.fs.Glob(sig.marker); len(matches) > 0 {
			return Result{
				Command:    sig.command,
				Confidence: sig.confidence,
				Strategy:   "signature-match",
				Reasoning:  "found marker file " + sig.marker,
			}, true
		}
	}
	return Result{}, false
}

type buildToolSignature struct {
	marker  string
	command string
	// requiresContent, if non-empty, must appear in marker's contents for
	// the signature to apply (distinguishes a Makefile with a test target
	// from one without).
	requiresContent string
}

var buildTools = []buildToolSignature{
	{"Makefile", "make test", "test:"},
	{"build.gradle", "./gradlew test", ""},
	{"pom.xml", "mvn test", ""},
	{"Rakefile", "rake test", ""},
}

func (e *Engine) buildTool(_ context.Context, _ Hint) (Result, bool) {
	for _, tool := range buildTools {
		matches, _ := e.fs.Glob(tool.marker)
		if len(matches) == 0 {
			continue
		}
		if tool.requiresContent != "" {
			raw, err := e.fs.ReadFile(matches[0])
			if err != nil || !strings.Contains(string(raw), tool.requiresContent) {
				continue
			}
		}
		return Result{
			Command:    tool.command,
			Confidence: 0.7,
			Strategy:   "build-tool",
			Reasoning:  "found build tool marker " + tool.marker,
		}, true
	}
	return Result{}, false
}

func (e *Engine) llmRetry(ctx context.Context, _ Hint) (Result, bool) {
	if e.llm == nil {
		return Result{}, false
	}
	topFiles, _ := e.fs.Glob("*")
	sort.Strings(topFiles)
	if len(topFiles) > 50 {
		topFiles = topFiles[:50]
	}
	prompt := "Given these top-level repo files, guess the command that runs this project's test suite:\n" + strings.Join(topFiles, "\n")
	command, err := e.llm.Generate(ctx, prompt)
	if err != nil || strings.TrimSpace(command) == "" {
		return Result{}, false
	}
	return Result{
		Command:    strings.TrimSpace(command),
		Confidence: 0.6,
		Strategy:   "llm-retry",
		Reasoning:  "LLM best guess from top-level file listing",
	}, true
}

func (e *Engine) safeScan(_ context.Context, _ Hint) (Result, bool) {
	matches, _ := e.fs.Glob("tests")
	if len(matches) == 0 {
		matches, _ = e.fs.Glob("tests/*")
	}
	if len(matches) > 0 {
		return Result{
			Command:    "make test",
			Confidence: 0.5,
			Strategy:   "safe-scan",
			Reasoning:  "found a tests/ directory",
		}, true
	}
	if matches, _ := e.fs.Glob("test.*"); len(matches) > 0 {
		return Result{
			Command:    "make test",
			Confidence: 0.5,
			Strategy:   "safe-scan",
			Reasoning:  "found a test.* file",
		}, true
	}
	return Result{}, false
}

// inferForRecovery (behind AsReproductionInferrer's
// pkg/reliability.ReproductionInferrer) adapts the engine to the
// recovery strategy service's narrower seam: repoRoot is currently
// unused since FileSystem is already scoped to one repo tree.
func (e *Engine) inferForRecovery(ctx context.Context, _ string, hint reliability.ReproductionHint) (string, bool) {
	result := e.Infer(ctx, Hint{WorkflowPath: hint.WorkflowPath, LogText: hint.LogText})
	return result.Command, result.Ok
}

// AsReproductionInferrer adapts Engine to the
// pkg/reliability.ReproductionInferrer interface expected by
// RecoveryStrategyService.
func (e *Engine) AsReproductionInferrer() reliability.ReproductionInferrer {
	return reproductionInferrerFunc(e.inferForRecovery)
}

type reproductionInferrerFunc func(ctx context.Context, repoRoot string, hint reliability.ReproductionHint) (string, bool)

func (f reproductionInferrerFunc) Infer(ctx context.Context, repoRoot string, hint reliability.ReproductionHint) (string, bool) {
	return f(ctx, repoRoot, hint)
}
