package config

import "time"

// DefaultConfig returns the built-in configuration defaults. Values mirror
// the defaults named in spec.md §3/§6 (maxIterations=5, strategyShiftConsecutive=2).
func DefaultConfig() *Config {
	return &Config{
		ExecutionBackend: BackendDockerLocal,
		Repair: RepairConfig{
			MaxIterations:       5,
			LintTimeout:         30 * time.Second,
			ReproductionTimeout: 120 * time.Second,
			LLMTimeout:          300 * time.Second,
		},
		Orchestrator: OrchestratorConfig{
			MaxConcurrentAgents: 1,
			WorkerCount:         1,
			PollInterval:        1 * time.Second,
			PollIntervalJitter:  250 * time.Millisecond,
			SessionTimeout:      30 * time.Minute,
			HeartbeatInterval:   15 * time.Second,
			OrphanThreshold:     5 * time.Minute,
		},
		AdaptiveThresholds: AdaptiveThresholdsConfig{
			Enabled: true,
			Phase2Reproduction: ThresholdLayerConfig{
				Threshold: 0.5, Min: 0.1, Max: 0.9, AdjustStep: 0.05, MinSample: 20,
			},
			Phase3ComplexityThreshold: ThresholdLayerConfig{
				Threshold: 7, Min: 3, Max: 10, AdjustStep: 0.5, MinSample: 20,
			},
			Phase3IterationThreshold: ThresholdLayerConfig{
				Threshold: 2, Min: 1, Max: 4, AdjustStep: 1, MinSample: 20,
			},
		},
		LLM: LLMConfig{
			Provider: "grpc",
			Model:    "default",
			Timeout:  300 * time.Second,
			Addr:     "localhost:50051",
		},
		Sandbox: SandboxConfig{
			Image:       "ghcr.io/repairagent/sandbox:latest",
			InitTimeout: 120 * time.Second,
		},
		ResourceThresholds: ResourceThresholds{
			CPUWarnPercent: 80, CPUCritPercent: 95,
			MemWarnPercent: 80, MemCritPercent: 95,
			PIDsWarn: 1000, PIDsCrit: 2000,
		},
		LoopDetector: LoopDetectorConfig{
			StrategyShiftConsecutive: 2,
		},
	}
}
