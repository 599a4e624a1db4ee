package detector

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/networkbuster/aidefense/internal/models"
	"github.com/networkbuster/aidefense/internal/system"
)

// Baseline holds the expected distribution for one host metric.
type Baseline struct {
	Mean   float64
	StdDev float64
}

// AnomalyDetector scores current host activity against a statistical
// baseline and reports a finding when the deviation confidence crosses the
// configured threshold.
type AnomalyDetector struct {
	threshold float64
	baselines map[string]Baseline

	// collect is swappable for tests
	collect func() (*system.Sample, error)
}

// Default baselines for normal host activity. These mirror the shipped
// model; UpdateBaseline replaces them once enough real samples exist.
func defaultBaselines() map[string]Baseline {
	return map[string]Baseline{
		"cpu_usage_percent":    {Mean: 30, StdDev: 8},
		"memory_usage_percent": {Mean: 50, StdDev: 15},
		"load_1m":              {Mean: 1.0, StdDev: 0.5},
	}
}

func NewAnomalyDetector() *AnomalyDetector {
	return &AnomalyDetector{
		threshold: 0.85,
		baselines: defaultBaselines(),
		collect:   system.Collect,
	}
}

func (d *AnomalyDetector) Name() string {
	return "anomaly_detector"
}

func (d *AnomalyDetector) SetThreshold(threshold float64) {
	d.threshold = threshold
}

// SetCollector overrides the host metric source. Used by tests.
func (d *AnomalyDetector) SetCollector(collect func() (*system.Sample, error)) {
	d.collect = collect
}

// Scan collects one host sample and scores it against the baselines.
// Returns at most one finding per scan.
func (d *AnomalyDetector) Scan(ctx context.Context) ([]models.Finding, error) {
	sample, err := d.collect()
	if err != nil {
		return nil, fmt.Errorf("failed to collect host metrics: %w", err)
	}

	observed := map[string]float64{
		"cpu_usage_percent":    sample.CPUUsagePercent,
		"memory_usage_percent": sample.MemoryUsagePercent,
		"load_1m":              sample.LoadAvg1m,
	}

	confidence, deviations := d.score(observed)
	if confidence < d.threshold {
		return nil, nil
	}

	payload := map[string]interface{}{
		"metrics":     sample.ToMetrics(),
		"deviations":  deviations,
		"description": describeAnomaly(deviations),
	}

	finding := models.Finding{
		Kind:       "anomaly_detected",
		Confidence: confidence,
		OccurredAt: time.Now().UTC(),
		Origin:     d.Name(),
		Payload:    payload,
	}

	return []models.Finding{finding}, nil
}

// score converts the worst per-metric z-score into a confidence in [0,1).
// A metric sitting on its baseline scores 0; three standard deviations out
// scores 0.75; the confidence approaches 1 asymptotically.
func (d *AnomalyDetector) score(observed map[string]float64) (float64, map[string]float64) {
	deviations := make(map[string]float64, len(observed))
	worst := 0.0

	for metric, value := range observed {
		baseline, ok := d.baselines[metric]
		if !ok || baseline.StdDev == 0 {
			continue
		}

		z := math.Abs(value-baseline.Mean) / baseline.StdDev
		deviations[metric] = z
		if z > worst {
			worst = z
		}
	}

	return worst / (worst + 1), deviations
}

// UpdateBaseline retrains the baseline from observed samples. A minimum of
// ten samples is required, matching the original training requirement.
func (d *AnomalyDetector) UpdateBaseline(samples []*system.Sample) error {
	if len(samples) <= 10 {
		return fmt.Errorf("insufficient samples for baseline update: %d", len(samples))
	}

	series := map[string][]float64{}
	for _, s := range samples {
		series["cpu_usage_percent"] = append(series["cpu_usage_percent"], s.CPUUsagePercent)
		series["memory_usage_percent"] = append(series["memory_usage_percent"], s.MemoryUsagePercent)
		series["load_1m"] = append(series["load_1m"], s.LoadAvg1m)
	}

	baselines := make(map[string]Baseline, len(series))
	for metric, values := range series {
		mean, stddev := meanStdDev(values)
		if stddev == 0 {
			stddev = 0.001 // degenerate series, keep scoring defined
		}
		baselines[metric] = Baseline{Mean: mean, StdDev: stddev}
	}

	d.baselines = baselines
	return nil
}

func meanStdDev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))

	return mean, math.Sqrt(variance)
}

func describeAnomaly(deviations map[string]float64) string {
	var parts []string

	if deviations["cpu_usage_percent"] > 2 {
		parts = append(parts, "Elevated CPU usage")
	}
	if deviations["memory_usage_percent"] > 2 {
		parts = append(parts, "Elevated memory usage")
	}
	if deviations["load_1m"] > 2 {
		parts = append(parts, "Abnormal load average")
	}

	if len(parts) == 0 {
		return "Unusual activity pattern detected"
	}
	return strings.Join(parts, "; ")
}
