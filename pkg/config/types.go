package config

import "time"

// ExecutionBackend selects which Sandbox implementation the orchestrator
// constructs for a repair session.
type ExecutionBackend string

// Supported execution backends.
const (
	BackendE2B        ExecutionBackend = "e2b"
	BackendDockerLocal ExecutionBackend = "docker_local"
	BackendKubernetes ExecutionBackend = "kubernetes"
	BackendSimulation ExecutionBackend = "simulation"
)

// LLMConfig wires the LLM capability (§6): provider selection, model,
// per-call timeout, and transport details for the OpenAI-compatible
// fallback.
type LLMConfig struct {
	Provider string        `yaml:"provider"` // "grpc" or "openai_compat"
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
	BaseURL  string        `yaml:"base_url,omitempty"`
	APIKey   string        `yaml:"api_key,omitempty"`
	Addr     string        `yaml:"addr,omitempty"` // gRPC target, provider=grpc
}

// SandboxConfig controls sandbox construction.
type SandboxConfig struct {
	Image            string        `yaml:"image"`
	InitTimeout      time.Duration `yaml:"init_timeout"`
	KubernetesNamespace string     `yaml:"kubernetes_namespace,omitempty"`
	E2BAPIKey        string        `yaml:"e2b_api_key,omitempty"`
	E2BBaseURL       string        `yaml:"e2b_base_url,omitempty"`
}

// ResourceThresholds defines warning/critical levels for sandbox resource
// monitoring (§4.1).
type ResourceThresholds struct {
	CPUWarnPercent  float64 `yaml:"cpu_warn_percent"`
	CPUCritPercent  float64 `yaml:"cpu_crit_percent"`
	MemWarnPercent  float64 `yaml:"mem_warn_percent"`
	MemCritPercent  float64 `yaml:"mem_crit_percent"`
	PIDsWarn        int     `yaml:"pids_warn"`
	PIDsCrit        int     `yaml:"pids_crit"`
}

// Enabled reports whether any critical level is actually configured; the
// zero value (all thresholds 0) would otherwise classify every sample as
// critical immediately, so callers treat it as "monitoring disabled"
// instead.
func (t ResourceThresholds) Enabled() bool {
	return t.CPUCritPercent > 0 || t.MemCritPercent > 0 || t.PIDsCrit > 0
}

// ThresholdLayerConfig is the hot-reloadable tuning knob for a single
// reliability defense layer (§4.4).
type ThresholdLayerConfig struct {
	Threshold  float64 `yaml:"threshold"`
	Min        float64 `yaml:"min"`
	Max        float64 `yaml:"max"`
	AdjustStep float64 `yaml:"adjust_step"`
	MinSample  int     `yaml:"min_sample"`
}

// AdaptiveThresholdsConfig is the process-wide ReliabilityThresholdsConfig
// from spec.md §3/§4.4.
type AdaptiveThresholdsConfig struct {
	Enabled                   bool                 `yaml:"enabled"`
	Phase2Reproduction        ThresholdLayerConfig `yaml:"phase2_reproduction"`
	Phase3ComplexityThreshold ThresholdLayerConfig `yaml:"phase3_complexity_threshold"`
	Phase3IterationThreshold  ThresholdLayerConfig `yaml:"phase3_iteration_threshold"`
}

// LoopDetectorConfig tunes the Loop Detector (§4.3).
type LoopDetectorConfig struct {
	StrategyShiftConsecutive int `yaml:"strategy_shift_consecutive"`
}

// OrchestratorConfig controls session admission and worker scheduling,
// the repair-agent analogue of the teacher's QueueConfig.
type OrchestratorConfig struct {
	MaxConcurrentAgents int           `yaml:"max_concurrent_agents"`
	WorkerCount         int           `yaml:"worker_count"`
	PollInterval        time.Duration `yaml:"poll_interval"`
	PollIntervalJitter  time.Duration `yaml:"poll_interval_jitter"`
	SessionTimeout      time.Duration `yaml:"session_timeout"`
	HeartbeatInterval   time.Duration `yaml:"heartbeat_interval"`
	OrphanThreshold     time.Duration `yaml:"orphan_threshold"`
}

// RepairConfig controls the per-session GraphState defaults.
type RepairConfig struct {
	MaxIterations     int           `yaml:"max_iterations"`
	LintTimeout       time.Duration `yaml:"lint_timeout"`
	ReproductionTimeout time.Duration `yaml:"reproduction_timeout"`
	LLMTimeout        time.Duration `yaml:"llm_timeout"`
}
