package orchestrator

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/codeready-toolchain/repairagent/pkg/config"
	repairerrors "github.com/codeready-toolchain/repairagent/pkg/errors"
	"github.com/codeready-toolchain/repairagent/pkg/sandbox"
)

// resourceSampleInterval is the cadence of the per-session sandbox
// resource watcher (spec.md §4.1). A var, not a const, so tests can
// shorten it rather than waiting out the production cadence.
var resourceSampleInterval = 10 * time.Second

var (
	sandboxCPUGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "repair_sandbox_cpu_percent",
		Help: "Most recently sampled sandbox CPU usage percent for an active session.",
	}, []string{"run_id"})
	sandboxMemoryGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "repair_sandbox_memory_percent",
		Help: "Most recently sampled sandbox memory usage percent for an active session.",
	}, []string{"run_id"})
	sandboxPIDsGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "repair_sandbox_pids",
		Help: "Most recently sampled sandbox process count for an active session.",
	}, []string{"run_id"})
)

func init() {
	prometheus.MustRegister(sandboxCPUGauge, sandboxMemoryGauge, sandboxPIDsGauge)
}

// watchResources samples box.GetResourceStats on a ticker, publishes it
// to the repair_sandbox_* gauges, and cancels the session the moment a
// sample crosses thresholds.Enabled()'s critical level, stashing a
// *repairerrors.ResourceExhaustedError into outcome for runSession to
// apply once the driver has unwound (spec.md §5: resource exhaustion is
// a fatal, non-recoverable abort). A nil or errored GetResourceStats
// result (backends that can't observe usage) is skipped rather than
// treated as critical.
func (p *Pool) watchResources(ctx context.Context, runID string, box sandbox.Sandbox, thresholds config.ResourceThresholds, cancel context.CancelFunc, outcome *atomic.Value) {
	if !thresholds.Enabled() {
		return
	}

	ticker := time.NewTicker(resourceSampleInterval)
	defer ticker.Stop()
	defer sandboxCPUGauge.DeleteLabelValues(runID)
	defer sandboxMemoryGauge.DeleteLabelValues(runID)
	defer sandboxPIDsGauge.DeleteLabelValues(runID)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := box.GetResourceStats(ctx)
			if err != nil || stats == nil {
				continue
			}

			sandboxCPUGauge.WithLabelValues(runID).Set(stats.CPUPercent)
			sandboxMemoryGauge.WithLabelValues(runID).Set(stats.MemPercent)
			sandboxPIDsGauge.WithLabelValues(runID).Set(float64(stats.PIDs))

			if sandbox.EvaluateResourceLevel(*stats, thresholds) != sandbox.ResourceCritical {
				continue
			}

			resErr := &repairerrors.ResourceExhaustedError{
				Resource: "sandbox",
				Err:      fmt.Errorf("cpu=%.1f%% mem=%.1f%% pids=%d", stats.CPUPercent, stats.MemPercent, stats.PIDs),
			}
			outcome.Store(resErr)
			p.log.With("run_id", runID).Error("sandbox resource exhausted, aborting session", "error", resErr)
			cancel()
			return
		}
	}
}
