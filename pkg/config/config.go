// Package config loads and validates the repair agent's configuration
// surface: execution backend selection, iteration/concurrency limits,
// adaptive reliability thresholds, LLM wiring, and sandbox resource
// policy (spec.md §6).
package config

// Config is the umbrella configuration object, the single source of
// truth passed down to the orchestrator, graph nodes, and sandbox
// factory.
type Config struct {
	configDir string

	ExecutionBackend   ExecutionBackend         `yaml:"execution_backend"`
	Repair             RepairConfig             `yaml:"repair"`
	Orchestrator       OrchestratorConfig       `yaml:"orchestrator"`
	AdaptiveThresholds AdaptiveThresholdsConfig `yaml:"adaptive_thresholds"`
	LLM                LLMConfig                `yaml:"llm"`
	Sandbox            SandboxConfig            `yaml:"sandbox"`
	ResourceThresholds ResourceThresholds       `yaml:"resource_thresholds"`
	LoopDetector       LoopDetectorConfig       `yaml:"loop_detector"`

	// SourceHostToken is a default source-control host bearer token for
	// local/dev use; production deployments resolve a per-session token.
	SourceHostToken string `yaml:"source_host_token,omitempty"`
}

// ConfigDir returns the directory the configuration was loaded from.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// Stats summarizes the loaded configuration for health/debug endpoints.
type Stats struct {
	ExecutionBackend    string
	MaxIterations       int
	MaxConcurrentAgents int
	AdaptiveEnabled     bool
}

// Stats returns configuration statistics for logging/monitoring, mirroring
// the teacher's Config.Stats() used by the health endpoint.
func (c *Config) Stats() Stats {
	return Stats{
		ExecutionBackend:    string(c.ExecutionBackend),
		MaxIterations:       c.Repair.MaxIterations,
		MaxConcurrentAgents: c.Orchestrator.MaxConcurrentAgents,
		AdaptiveEnabled:     c.AdaptiveThresholds.Enabled,
	}
}
