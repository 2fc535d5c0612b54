// Package models defines the repair agent's persisted and in-memory
// entity shapes: AgentRun and its per-session GraphState, the append-only
// audit rows (ErrorFact, FileModification, ReliabilityEvent), and the
// read-only/learned tables (RunbookPattern, FixTrajectory).
package models

import "time"

// RunStatus is the terminal/non-terminal state of an AgentRun.
type RunStatus string

const (
	StatusWorking RunStatus = "working"
	StatusSuccess RunStatus = "success"
	StatusFailed  RunStatus = "failed"
)

// FixAction distinguishes a diagnosis that proposes a shell command from
// one that proposes an in-place file edit.
type FixAction string

const (
	FixActionEdit    FixAction = "edit"
	FixActionCommand FixAction = "command"
)

// ErrorCategory classifies the root cause of a CI failure.
type ErrorCategory string

const (
	CategorySyntax        ErrorCategory = "SYNTAX"
	CategoryDependency    ErrorCategory = "DEPENDENCY"
	CategoryRuntime       ErrorCategory = "RUNTIME"
	CategoryBuild         ErrorCategory = "BUILD"
	CategoryTestFailure   ErrorCategory = "TEST_FAILURE"
	CategoryTimeout       ErrorCategory = "TIMEOUT"
	CategoryConfiguration ErrorCategory = "CONFIGURATION"
	CategoryUnknown       ErrorCategory = "UNKNOWN"
)

// FileStatus marks whether a file in GraphState.Files has been touched.
type FileStatus string

const (
	FileStatusOriginal FileStatus = "original"
	FileStatusModified FileStatus = "modified"
)

// Config is the per-run configuration snapshot carried inside GraphState:
// host credentials, repo location, execution backend, and LLM wiring.
// It is a plain value copied from pkg/config at session admission so the
// graph state can be serialized without a live *config.Config handle.
type Config struct {
	Host             string `json:"host"`
	Token            string `json:"token"`
	RepoURL          string `json:"repoUrl"`
	ExecutionBackend string `json:"executionBackend"`
	LLMProvider      string `json:"llmProvider"`
	LLMModel         string `json:"llmModel"`
	MaxIterations    int    `json:"maxIterations"`
}

// RunGroup identifies the set of related workflow runs a session is
// repairing; MainRunID is the run whose failure triggered the session.
type RunGroup struct {
	MainRunID string   `json:"mainRunId"`
	RunIDs    []string `json:"runIds"`
}

// Diagnosis is the analysis node's output: root-cause summary and the
// proposed remedy.
type Diagnosis struct {
	Summary             string    `json:"summary"`
	FilePath            string    `json:"filePath,omitempty"`
	FixAction           FixAction `json:"fixAction"`
	SuggestedCommand    string    `json:"suggestedCommand,omitempty"`
	ReproductionCommand string    `json:"reproductionCommand,omitempty"`
	Confidence          float64   `json:"confidence"`
}

// Classification is the error-category output of the analysis node.
type Classification struct {
	Category        ErrorCategory `json:"category"`
	AffectedFiles   []string      `json:"affectedFiles"`
	Confidence      float64       `json:"confidence"`
	SuggestedAction string        `json:"suggestedAction,omitempty"`
}

// PlanTaskStatus tracks one task inside a Plan.
type PlanTaskStatus string

const (
	TaskPending    PlanTaskStatus = "pending"
	TaskInProgress PlanTaskStatus = "in_progress"
	TaskDone       PlanTaskStatus = "done"
)

// PlanTask is a single unit of work inside a Plan, with dependencies on
// other tasks by ID.
type PlanTask struct {
	ID           string         `json:"id"`
	Description  string         `json:"description"`
	Status       PlanTaskStatus `json:"status"`
	Dependencies []string       `json:"dependencies,omitempty"`
	TargetFile   string         `json:"targetFile,omitempty"`
}

// Plan is the planning node's output.
type Plan struct {
	Goal             string     `json:"goal"`
	Tasks            []PlanTask `json:"tasks"`
	Approved         bool       `json:"approved"`
	RejectionReason  string     `json:"rejectionReason,omitempty"`
}

// FileContent holds one version (original or modified) of a file's text.
type FileContent struct {
	Content  string `json:"content"`
	Language string `json:"language,omitempty"`
	Name     string `json:"name,omitempty"`
}

// FileEntry is one entry of GraphState.Files, tracking the original and
// (if touched) modified content of a repo file under repair.
type FileEntry struct {
	Path     string       `json:"path"`
	Status   FileStatus   `json:"status"`
	Original FileContent  `json:"original"`
	Modified *FileContent `json:"modified,omitempty"`
}

// HistoryEntry is one append-only record of a node transition.
type HistoryEntry struct {
	Node      string    `json:"node"`
	Action    string    `json:"action"`
	Result    string    `json:"result"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDAGNode is one sub-problem in an optional decomposition of a
// composite diagnosis.
type ErrorDAGNode struct {
	ID           string   `json:"id"`
	Problem      string   `json:"problem"`
	Priority     int      `json:"priority"`
	Complexity   int      `json:"complexity"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// ErrorDAG is the optional decomposition graph emitted by the analysis
// node for composite diagnoses; the DAG executor (pkg/graph) walks it.
type ErrorDAG struct {
	Nodes       []ErrorDAGNode `json:"nodes"`
	RootProblem string         `json:"rootProblem"`
}

// GraphState is the complete in-memory state of the repair state machine
// for one AgentRun. It is serialized into AgentRun.State at every node
// transition.
type GraphState struct {
	Config Config   `json:"config"`
	Group  RunGroup `json:"group"`

	Iteration     int       `json:"iteration"`
	MaxIterations int       `json:"maxIterations"`
	Status        RunStatus `json:"status"`

	CurrentLogText     string `json:"currentLogText"`
	InitialLogText     string `json:"initialLogText"`
	InitialRepoContext string `json:"initialRepoContext"`

	Diagnosis      *Diagnosis      `json:"diagnosis,omitempty"`
	Classification *Classification `json:"classification,omitempty"`
	Plan           *Plan           `json:"plan,omitempty"`

	Files             map[string]FileEntry `json:"files"`
	FileReservations  []string             `json:"fileReservations"`
	Feedback          []string             `json:"feedback"`
	History           []HistoryEntry       `json:"history"`
	ComplexityHistory []int                `json:"complexityHistory"`

	ProblemComplexity       *int    `json:"problemComplexity,omitempty"`
	RefinedProblemStatement string  `json:"refinedProblemStatement,omitempty"`
	IsAtomic                *bool   `json:"isAtomic,omitempty"`

	ErrorDAG     *ErrorDAG `json:"errorDAG,omitempty"`
	SolvedNodes  []string  `json:"solvedNodes,omitempty"`

	CurrentNode   string `json:"currentNode"`
	FailureReason string `json:"failureReason,omitempty"`
}

// NewGraphState constructs the initial state for a freshly admitted
// session: iteration 0, status working, currentNode analysis.
func NewGraphState(cfg Config, group RunGroup, maxIterations int) *GraphState {
	return &GraphState{
		Config:            cfg,
		Group:             group,
		Iteration:         0,
		MaxIterations:     maxIterations,
		Status:            StatusWorking,
		Files:             make(map[string]FileEntry),
		FileReservations:  nil,
		Feedback:          nil,
		History:           nil,
		ComplexityHistory: nil,
		CurrentNode:       "analysis",
	}
}

// Terminal reports whether the state has reached a final status.
func (g *GraphState) Terminal() bool {
	return g.Status != StatusWorking
}
