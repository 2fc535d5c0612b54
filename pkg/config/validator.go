package config

import "fmt"

// Validate checks the configuration for internal consistency. It returns
// the first violation found, wrapped in a ValidationError.
func (c *Config) Validate() error {
	switch c.ExecutionBackend {
	case BackendE2B, BackendDockerLocal, BackendKubernetes, BackendSimulation:
	default:
		return NewValidationError("execution_backend", string(c.ExecutionBackend), "", ErrInvalidValue)
	}

	if c.ExecutionBackend == BackendKubernetes && c.Sandbox.KubernetesNamespace == "" {
		return NewValidationError("sandbox", "kubernetes", "kubernetes_namespace", ErrMissingRequiredField)
	}
	if c.ExecutionBackend == BackendE2B && c.Sandbox.E2BAPIKey == "" {
		return NewValidationError("sandbox", "e2b", "e2b_api_key", ErrMissingRequiredField)
	}

	if c.Repair.MaxIterations < 1 {
		return NewValidationError("repair", "max_iterations", "", fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
	}
	if c.Orchestrator.MaxConcurrentAgents < 1 {
		return NewValidationError("orchestrator", "max_concurrent_agents", "", fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
	}
	if c.Orchestrator.WorkerCount < 1 {
		return NewValidationError("orchestrator", "worker_count", "", fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
	}

	switch c.LLM.Provider {
	case "grpc":
		if c.LLM.Addr == "" {
			return NewValidationError("llm", "grpc", "addr", ErrMissingRequiredField)
		}
	case "openai_compat":
		if c.LLM.BaseURL == "" {
			return NewValidationError("llm", "openai_compat", "base_url", ErrMissingRequiredField)
		}
	default:
		return NewValidationError("llm", c.LLM.Provider, "provider", ErrInvalidValue)
	}

	if err := c.AdaptiveThresholds.validate(); err != nil {
		return err
	}

	return nil
}

func (a AdaptiveThresholdsConfig) validate() error {
	for name, layer := range map[string]ThresholdLayerConfig{
		"phase2_reproduction":         a.Phase2Reproduction,
		"phase3_complexity_threshold": a.Phase3ComplexityThreshold,
		"phase3_iteration_threshold":  a.Phase3IterationThreshold,
	} {
		if layer.Min > layer.Max {
			return NewValidationError("adaptive_thresholds", name, "min", fmt.Errorf("%w: min > max", ErrInvalidValue))
		}
		if layer.Threshold < layer.Min || layer.Threshold > layer.Max {
			return NewValidationError("adaptive_thresholds", name, "threshold", fmt.Errorf("%w: outside [min, max]", ErrInvalidValue))
		}
	}
	return nil
}
