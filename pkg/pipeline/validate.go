package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/codeready-toolchain/repairagent/pkg/sandbox"
)

// ValidationCriteria configures validatePatches for one session.
type ValidationCriteria struct {
	TargetPath        string
	SyntaxCheckCmd    string
	StaticAnalysisCmd string
	ReproductionCmd   string
}

// validatePatches runs each candidate sequentially — syntax check,
// optional static analysis, then the reproduction command — against a
// shared sandbox (spec.md §4.7 step 4; sandbox exec is single-flight
// per session, so candidates cannot validate concurrently).
func validatePatches(ctx context.Context, box sandbox.Sandbox, candidates []PatchCandidate, criteria ValidationCriteria) []RankedCandidate {
	ranked := make([]RankedCandidate, 0, len(candidates))
	for _, candidate := range candidates {
		ranked = append(ranked, RankedCandidate{
			Candidate:  candidate,
			Validation: validateOne(ctx, box, candidate, criteria),
		})
	}
	return ranked
}

func validateOne(ctx context.Context, box sandbox.Sandbox, candidate PatchCandidate, criteria ValidationCriteria) ValidationResult {
	start := time.Now()
	result := ValidationResult{}

	if err := box.WriteFile(ctx, criteria.TargetPath, []byte(candidate.Code)); err != nil {
		result.ErrorMessage = "writing candidate to sandbox: " + err.Error()
		result.ExecutionTime = time.Since(start)
		return result
	}

	if criteria.SyntaxCheckCmd != "" {
		exec, err := box.RunCommand(ctx, criteria.SyntaxCheckCmd, sandbox.RunOptions{Timeout: 30 * time.Second})
		result.SyntaxValid = err == nil && exec.ExitCode == 0
		if !result.SyntaxValid {
			result.ErrorMessage = firstNonEmpty(exec.Stderr, errString(err))
			result.ExecutionTime = time.Since(start)
			return result
		}
	} else {
		result.SyntaxValid = true
	}

	if criteria.StaticAnalysisCmd != "" {
		exec, err := box.RunCommand(ctx, criteria.StaticAnalysisCmd, sandbox.RunOptions{Timeout: 30 * time.Second})
		result.StaticAnalysisPassed = err == nil && exec.ExitCode == 0
		result.Details.LintErrors = countLines(exec.Stdout) + countLines(exec.Stderr)
		if !result.StaticAnalysisPassed {
			result.Details.TypeErrors = result.Details.LintErrors
		}
	} else {
		result.StaticAnalysisPassed = true
	}

	exec, err := box.RunCommand(ctx, criteria.ReproductionCmd, sandbox.RunOptions{Timeout: 120 * time.Second})
	result.TestsPassed = err == nil && exec.ExitCode == 0
	result.Details.TestsRun = 1
	if !result.TestsPassed {
		result.Details.TestsFailed = 1
		result.ErrorMessage = firstNonEmpty(exec.Stderr, errString(err))
	}

	result.Passed = result.SyntaxValid && result.StaticAnalysisPassed && result.TestsPassed
	result.ExecutionTime = time.Since(start)
	return result
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func countLines(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	return len(strings.Split(s, "\n"))
}
