// Package pipeline implements the multi-candidate Repair Pipeline
// (spec.md §4.7): stack-trace parsing, LLM fault localization, parallel
// patch-candidate generation across three strategies, sandboxed
// validation, confidence-based ranking, and iterative refinement. The
// graph's execution node delegates to this package for high-complexity
// diagnoses rather than generating a single fix directly.
package pipeline

import "time"

// StackFrame is one parsed frame from a Node/Python/Java stack trace.
type StackFrame struct {
	File     string
	Line     int
	Column   int
	Function string
}

// Location identifies a candidate fault site with the LLM's own
// confidence in that assignment.
type Location struct {
	File        string
	Line        int
	Confidence  float64
	Reasoning   string
	SuggestedFix string
}

// FaultLocalization is localizeFault's result.
type FaultLocalization struct {
	PrimaryLocation     Location
	AlternativeLocations []Location
	StackTrace          []StackFrame
	Method              string
}

// Strategy names one of the three parallel patch-generation approaches.
type Strategy string

const (
	StrategyDirect       Strategy = "direct"
	StrategyConservative Strategy = "conservative"
	StrategyAlternative  Strategy = "alternative"
)

// strategyTemperature is the sampling temperature assigned to each
// strategy (spec.md §4.7 step 3).
var strategyTemperature = map[Strategy]float64{
	StrategyDirect:       0.1,
	StrategyConservative: 0.2,
	StrategyAlternative:  0.3,
}

// strategyScore ranks strategies for rankPatches's tie-break: direct >
// conservative > alternative.
var strategyScore = map[Strategy]int{
	StrategyDirect:       3,
	StrategyConservative: 2,
	StrategyAlternative:  1,
}

// PatchCandidate is one generated fix attempt.
type PatchCandidate struct {
	ID          string
	Code        string
	Description string
	Confidence  float64
	Strategy    Strategy
	Reasoning   string
}

// ValidationDetails breaks down what validatePatches actually ran.
type ValidationDetails struct {
	TestsRun      int
	TestsFailed   int
	LintErrors    int
	TypeErrors    int
}

// ValidationResult is validatePatches's per-candidate outcome.
type ValidationResult struct {
	Passed                bool
	TestsPassed           bool
	SyntaxValid           bool
	StaticAnalysisPassed  bool
	Details               ValidationDetails
	ErrorMessage          string
	ExecutionTime         time.Duration
}

// RankedCandidate pairs a candidate with its validation outcome for
// rankPatches's output ordering.
type RankedCandidate struct {
	Candidate  PatchCandidate
	Validation ValidationResult
}

// RefinementAttempt records one iterativeRefinement pass for observability.
type RefinementAttempt struct {
	Iteration  int
	Candidate  PatchCandidate
	Validation ValidationResult
}

// Result is the Pipeline.Run outcome: the best candidate found (which
// may still be failing if every refinement iteration was exhausted),
// plus the full refinement trajectory.
type Result struct {
	Best       *RankedCandidate
	Attempts   []RefinementAttempt
	Succeeded  bool
}

// maxRefinementIterations bounds iterativeRefinement (spec.md §4.7 step 6).
const maxRefinementIterations = 3
