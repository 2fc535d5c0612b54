package reliability

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/codeready-toolchain/repairagent/pkg/config"
	"github.com/codeready-toolchain/repairagent/pkg/models"
)

// thresholdGauge is shared across AdaptiveThresholdService instances so
// repeated construction in tests does not panic on duplicate Prometheus
// registration.
var thresholdGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
	Name: "repair_threshold",
	Help: "Current value of a reliability defense-layer threshold.",
}, []string{"layer"})

func init() {
	prometheus.MustRegister(thresholdGauge)
}

// Adjustment describes one threshold change applied by
// AnalyzeAndAdjustThresholds.
type Adjustment struct {
	Layer        models.ReliabilityLayer
	OldThreshold float64
	NewThreshold float64
	Confidence   float64
}

// AdaptiveThresholdService is the single writer of process-wide
// reliability thresholds; readers take an RLock via Snapshot, matching
// the "single owner, read-only snapshot" design note (spec.md §9).
type AdaptiveThresholdService struct {
	mu      sync.RWMutex
	cfg     config.AdaptiveThresholdsConfig
	metrics *Metrics
}

// NewAdaptiveThresholdService constructs a service seeded with cfg.
func NewAdaptiveThresholdService(cfg config.AdaptiveThresholdsConfig, metrics *Metrics) *AdaptiveThresholdService {
	s := &AdaptiveThresholdService{cfg: cfg, metrics: metrics}
	s.publishGauges()
	return s
}

// Snapshot returns a copy of the current threshold configuration.
func (s *AdaptiveThresholdService) Snapshot() config.AdaptiveThresholdsConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// AnalyzeAndAdjustThresholds re-evaluates every configured layer and, if
// the analysis reaches confidence ≥ 0.8 and the suggested change exceeds
// the layer's hysteresis band (half of adjustStep), applies
// newThreshold = clamp(current ± adjustStep, min, max). Returns the set
// of adjustments actually applied.
func (s *AdaptiveThresholdService) AnalyzeAndAdjustThresholds(ctx context.Context, minSample int) ([]Adjustment, error) {
	if !s.cfg.Enabled {
		return nil, nil
	}

	layers := []struct {
		name  models.ReliabilityLayer
		layer *config.ThresholdLayerConfig
	}{
		{models.LayerPhase2Reproduction, &s.cfg.Phase2Reproduction},
		{models.LayerPhase3LoopDetection, &s.cfg.Phase3ComplexityThreshold},
	}

	var adjustments []Adjustment

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range layers {
		analysis, err := s.metrics.AnalyzeThreshold(ctx, l.name, l.layer.Threshold, l.layer.Min, l.layer.Max, minSample)
		if err != nil {
			return adjustments, fmt.Errorf("analyzing threshold for %s: %w", l.name, err)
		}
		if analysis.Confidence < 0.8 {
			continue
		}

		delta := analysis.Suggested - analysis.CurrentThreshold
		hysteresis := l.layer.AdjustStep / 2
		if delta > -hysteresis && delta < hysteresis {
			continue
		}

		step := l.layer.AdjustStep
		if delta < 0 {
			step = -step
		}
		newThreshold := clamp(l.layer.Threshold+step, l.layer.Min, l.layer.Max)
		if newThreshold == l.layer.Threshold {
			continue
		}

		adjustments = append(adjustments, Adjustment{
			Layer:        l.name,
			OldThreshold: l.layer.Threshold,
			NewThreshold: newThreshold,
			Confidence:   analysis.Confidence,
		})
		l.layer.Threshold = newThreshold
	}

	s.publishGaugesLocked()
	return adjustments, nil
}

func (s *AdaptiveThresholdService) publishGauges() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.publishGaugesLocked()
}

func (s *AdaptiveThresholdService) publishGaugesLocked() {
	thresholdGauge.WithLabelValues(string(models.LayerPhase2Reproduction)).Set(s.cfg.Phase2Reproduction.Threshold)
	thresholdGauge.WithLabelValues(string(models.LayerPhase3LoopDetection)).Set(s.cfg.Phase3ComplexityThreshold.Threshold)
}
