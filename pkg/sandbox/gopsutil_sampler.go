package sandbox

import (
	"context"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// HostSampler samples host-visible resource usage for a container
// backend's worker process tree, since testcontainers-go exposes no
// live stats stream of its own (spec.md §4.1 "getResourceStats").
type HostSampler struct {
	rootPID int32
}

// NewHostSampler scopes sampling to the container's root process PID as
// seen from the host (e.g. the PID testcontainers-go reports for the
// "sleep infinity" entrypoint).
func NewHostSampler(rootPID int32) *HostSampler {
	return &HostSampler{rootPID: rootPID}
}

// Sample returns current CPU%, memory%, and a PID count covering the
// root process and its direct children.
func (h *HostSampler) Sample(ctx context.Context) (*ResourceStats, error) {
	proc, err := process.NewProcessWithContext(ctx, h.rootPID)
	if err != nil {
		return nil, err
	}

	cpuPercent, err := proc.CPUPercentWithContext(ctx)
	if err != nil {
		return nil, err
	}

	memInfo, err := proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return nil, err
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, err
	}
	memPercent := 0.0
	if vm.Total > 0 && memInfo != nil {
		memPercent = float64(memInfo.RSS) / float64(vm.Total) * 100
	}

	children, err := proc.ChildrenWithContext(ctx)
	pidCount := 1
	if err == nil {
		pidCount += len(children)
	}

	cores, err := cpu.CountsWithContext(ctx, true)
	if err == nil && cores > 0 {
		cpuPercent /= float64(cores)
	}

	return &ResourceStats{
		CPUPercent: cpuPercent,
		MemPercent: memPercent,
		PIDs:       pidCount,
	}, nil
}
