package models

import "time"

// AgentRun is one repair session row: the parent for every per-session
// artifact. Deleting an AgentRun cascades to its ErrorFacts,
// FileModifications, and ReliabilityEvents.
type AgentRun struct {
	ID        string     `json:"id"`
	GroupID   string     `json:"groupId"`
	Status    RunStatus  `json:"status"`
	State     GraphState `json:"state"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// ErrorFact is a persisted per-iteration diagnosis summary, created only
// on iteration 0 to allow later detection of repeat attempts on the same
// fingerprint.
type ErrorFact struct {
	ID        string         `json:"id"`
	RunID     string         `json:"runId"`
	Summary   string         `json:"summary"`
	FilePath  string         `json:"filePath,omitempty"`
	FixAction FixAction      `json:"fixAction"`
	Notes     ErrorFactNotes `json:"notes"`
	CreatedAt time.Time      `json:"createdAt"`
}

// ErrorFactNotes is the JSON-typed payload of ErrorFact.Notes; unknown
// fields on read are ignored.
type ErrorFactNotes struct {
	Complexity             int           `json:"complexity"`
	IsAtomic               bool          `json:"isAtomic"`
	ClassificationCategory ErrorCategory `json:"classificationCategory"`
}

// FileModification is one row per file write performed by the execution
// node.
type FileModification struct {
	ID          string    `json:"id"`
	RunID       string    `json:"runId"`
	Path        string    `json:"path"`
	BeforeHash  string    `json:"beforeHash"`
	AfterHash   string    `json:"afterHash"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ReliabilityLayer names a defense checkpoint at which reliability
// events are recorded.
type ReliabilityLayer string

const (
	LayerPhase2Reproduction ReliabilityLayer = "phase2-reproduction"
	LayerPhase3LoopDetection ReliabilityLayer = "phase3-loop-detection"
)

// ReliabilityOutcome is the terminal state of a ReliabilityEvent.
type ReliabilityOutcome string

const (
	OutcomePassed          ReliabilityOutcome = "passed"
	OutcomeTriggered       ReliabilityOutcome = "triggered"
	OutcomeHumanRequested  ReliabilityOutcome = "human-requested"
)

// RecoveredBy formats the outcome for a successful recovery via strategy.
func RecoveredBy(strategy string) ReliabilityOutcome {
	return ReliabilityOutcome("recovered-by-" + strategy)
}

// FailedStrategy formats the outcome for a failed recovery attempt via
// strategy.
func FailedStrategy(strategy string) ReliabilityOutcome {
	return ReliabilityOutcome("failed-" + strategy)
}

// ReliabilityEvent is an immutable audit record of a reliability defense
// layer firing (or passing).
type ReliabilityEvent struct {
	ID                 string             `json:"id"`
	Layer              ReliabilityLayer   `json:"layer"`
	Triggered          bool               `json:"triggered"`
	Threshold          float64            `json:"threshold"`
	Context            map[string]any     `json:"context"`
	Outcome            ReliabilityOutcome `json:"outcome"`
	RecoveryStrategy   string             `json:"recoveryStrategy,omitempty"`
	RecoverySuccessful *bool              `json:"recoverySuccessful,omitempty"`
	CreatedAt          time.Time          `json:"createdAt"`
}

// LoopStateSnapshot is the in-memory-only state captured at the end of
// each iteration for loop detection.
type LoopStateSnapshot struct {
	Iteration        int       `json:"iteration"`
	FilesChanged     []string  `json:"filesChanged"`
	ContentChecksum  string    `json:"contentChecksum"`
	ErrorFingerprint string    `json:"errorFingerprint"`
	Timestamp        time.Time `json:"timestamp"`
}

// RunbookPattern is a static, read-only structured repair template keyed
// by error fingerprint, category, and free-form tags.
type RunbookPattern struct {
	ErrorFingerprint string   `json:"errorFingerprint"`
	ErrorCategory    ErrorCategory `json:"errorCategory"`
	Tags             []string `json:"tags"`
	Template         string   `json:"template"`
}

// FixTrajectory is a running-average record of a recorded sequence of
// repair tools for a given error category, used for offline learning.
type FixTrajectory struct {
	ID              string        `json:"id"`
	ErrorCategory   ErrorCategory `json:"errorCategory"`
	Complexity      int           `json:"complexity"`
	ToolSequence    []string      `json:"toolSequence"`
	Success         bool          `json:"success"`
	OccurrenceCount int           `json:"occurrenceCount"`
	TotalCost       float64       `json:"totalCost"`
	TotalLatency    time.Duration `json:"totalLatency"`
	Reward          float64       `json:"reward"`
	LastUsed        time.Time     `json:"lastUsed"`
}
