package reliability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/codeready-toolchain/repairagent/pkg/models"
)

// LayerMetrics aggregates event counts and recovery outcomes for one
// defense layer.
type LayerMetrics struct {
	TotalEvents       int
	TriggeredEvents   int
	TriggerRate       float64
	RecoveryAttempts  int
	RecoverySuccesses int
}

// ThresholdAnalysis is the result of comparing a layer's observed
// trigger rate against its configured threshold.
type ThresholdAnalysis struct {
	CurrentThreshold float64
	Suggested        float64
	Confidence       float64
	DataPoints       int
}

// Metrics computes aggregates over the events a Telemetry has recorded.
type Metrics struct {
	store EventStore
}

// NewMetrics constructs a Metrics reader backed by store.
func NewMetrics(store EventStore) *Metrics {
	return &Metrics{store: store}
}

// GetLayerMetrics aggregates the most recent window of events for
// layer. sampleSize bounds how many rows are scanned.
func (m *Metrics) GetLayerMetrics(ctx context.Context, layer models.ReliabilityLayer, sampleSize int) (LayerMetrics, error) {
	events, err := m.store.RecentReliabilityEvents(ctx, layer, sampleSize)
	if err != nil {
		return LayerMetrics{}, err
	}

	var metrics LayerMetrics
	metrics.TotalEvents = len(events)
	for _, e := range events {
		if e.Triggered {
			metrics.TriggeredEvents++
		}
		if e.RecoveryStrategy != "" {
			metrics.RecoveryAttempts++
			if e.RecoverySuccessful != nil && *e.RecoverySuccessful {
				metrics.RecoverySuccesses++
			}
		}
	}
	if metrics.TotalEvents > 0 {
		metrics.TriggerRate = float64(metrics.TriggeredEvents) / float64(metrics.TotalEvents)
	}
	return metrics, nil
}

// AnalyzeThreshold suggests a new threshold for layer given the current
// bounds and a minimum sample size required for full confidence.
// Confidence is min(1, dataPoints/minSample); the suggestion is the
// observed trigger rate clamped to [min, max], or current when there
// are no events.
func (m *Metrics) AnalyzeThreshold(ctx context.Context, layer models.ReliabilityLayer, current, min, max float64, minSample int) (ThresholdAnalysis, error) {
	metrics, err := m.GetLayerMetrics(ctx, layer, minSample*4)
	if err != nil {
		return ThresholdAnalysis{}, err
	}

	confidence := float64(metrics.TotalEvents) / float64(minSample)
	if confidence > 1 {
		confidence = 1
	}

	suggested := current
	if metrics.TotalEvents > 0 {
		suggested = clamp(metrics.TriggerRate, min, max)
	}

	return ThresholdAnalysis{
		CurrentThreshold: current,
		Suggested:        suggested,
		Confidence:       confidence,
		DataPoints:       metrics.TotalEvents,
	}, nil
}

// TrendPoint is one day's aggregate in a threshold trend.
type TrendPoint struct {
	Day         time.Time
	TriggerRate float64
	TotalEvents int
}

// DashboardSummary rolls up all configured layers for an operator view.
type DashboardSummary struct {
	Layers map[models.ReliabilityLayer]LayerMetrics
}

// trendSampleSize bounds how many recent rows GetThresholdTrend scans
// before bucketing by day; RecentReliabilityEvents has no date-range
// query, so this over-fetches relative to any plausible daily volume
// and then discards rows older than the window.
const trendSampleSize = 5000

// GetThresholdTrend buckets layer's events by day over the trailing
// window of days, oldest first.
func (m *Metrics) GetThresholdTrend(ctx context.Context, layer models.ReliabilityLayer, days int) ([]TrendPoint, error) {
	if days <= 0 {
		return nil, nil
	}

	events, err := m.store.RecentReliabilityEvents(ctx, layer, trendSampleSize)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	buckets := make(map[time.Time]*TrendPoint)
	var order []time.Time
	for _, e := range events {
		if e.CreatedAt.Before(cutoff) {
			continue
		}
		day := e.CreatedAt.UTC().Truncate(24 * time.Hour)
		b, ok := buckets[day]
		if !ok {
			b = &TrendPoint{Day: day}
			buckets[day] = b
			order = append(order, day)
		}
		b.TotalEvents++
		if e.Triggered {
			b.TriggerRate++ // running count; normalized to a rate below
		}
	}

	sort.Slice(order, func(i, j int) bool { return order[i].Before(order[j]) })

	points := make([]TrendPoint, 0, len(order))
	for _, day := range order {
		b := buckets[day]
		if b.TotalEvents > 0 {
			b.TriggerRate /= float64(b.TotalEvents)
		}
		points = append(points, *b)
	}
	return points, nil
}

// dashboardSampleSize bounds how many events GetDashboardSummary scans
// per layer.
const dashboardSampleSize = 500

// GetDashboardSummary rolls up every reliability defense layer's
// metrics for an operator dashboard view.
func (m *Metrics) GetDashboardSummary(ctx context.Context) (DashboardSummary, error) {
	layers := []models.ReliabilityLayer{models.LayerPhase2Reproduction, models.LayerPhase3LoopDetection}

	summary := DashboardSummary{Layers: make(map[models.ReliabilityLayer]LayerMetrics, len(layers))}
	for _, layer := range layers {
		lm, err := m.GetLayerMetrics(ctx, layer, dashboardSampleSize)
		if err != nil {
			return DashboardSummary{}, fmt.Errorf("layer metrics for %s: %w", layer, err)
		}
		summary.Layers[layer] = lm
	}
	return summary, nil
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
