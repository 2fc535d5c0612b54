package sandbox

import "github.com/codeready-toolchain/repairagent/pkg/config"

// ResourceLevel classifies a ResourceStats sample against configured
// thresholds.
type ResourceLevel int

const (
	ResourceOK ResourceLevel = iota
	ResourceWarning
	ResourceCritical
)

func (l ResourceLevel) String() string {
	switch l {
	case ResourceWarning:
		return "warning"
	case ResourceCritical:
		return "critical"
	default:
		return "ok"
	}
}

// EvaluateResourceLevel classifies stats against thresholds, returning
// the most severe level triggered across CPU, memory, and PID usage.
func EvaluateResourceLevel(stats ResourceStats, thresholds config.ResourceThresholds) ResourceLevel {
	level := ResourceOK

	raise := func(candidate ResourceLevel) {
		if candidate > level {
			level = candidate
		}
	}

	switch {
	case stats.CPUPercent >= thresholds.CPUCritPercent:
		raise(ResourceCritical)
	case stats.CPUPercent >= thresholds.CPUWarnPercent:
		raise(ResourceWarning)
	}

	switch {
	case stats.MemPercent >= thresholds.MemCritPercent:
		raise(ResourceCritical)
	case stats.MemPercent >= thresholds.MemWarnPercent:
		raise(ResourceWarning)
	}

	switch {
	case stats.PIDs >= thresholds.PIDsCrit:
		raise(ResourceCritical)
	case stats.PIDs >= thresholds.PIDsWarn:
		raise(ResourceWarning)
	}

	return level
}
