package detector

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/networkbuster/aidefense/internal/models"
	"github.com/networkbuster/aidefense/internal/system"
)

// PerformanceBaseline is the persisted view of expected model performance.
type PerformanceBaseline struct {
	Accuracy    MetricBand `json:"accuracy"`
	LatencyMs   MetricBand `json:"latency"`
	MemoryMB    MetricBand `json:"memory_usage"`
	CPUPercent  MetricBand `json:"cpu_usage"`
	LastUpdated string     `json:"last_updated"`
}

// MetricBand tracks one performance metric against its threshold.
type MetricBand struct {
	Baseline  float64 `json:"baseline"`
	Current   float64 `json:"current"`
	Threshold float64 `json:"threshold"`
}

// PerformanceDetector monitors classifier model performance and reports a
// finding when degradation warrants scaling or an upgrade. Accuracy and
// latency come from a simulated probe (there is no live model in this
// deployment); memory and CPU come from real host metrics.
type PerformanceDetector struct {
	baselinePath string
	baseline     PerformanceBaseline

	upgradeRecommended bool

	collect func() (*system.Sample, error)
	probe   func(baseline PerformanceBaseline) (accuracy, latencyMs float64)
}

func NewPerformanceDetector(baselinePath string) *PerformanceDetector {
	d := &PerformanceDetector{
		baselinePath: baselinePath,
		collect:      system.Collect,
		probe:        simulatedProbe,
	}
	d.loadBaseline()
	return d
}

func (d *PerformanceDetector) Name() string {
	return "performance_monitor"
}

// SetThresholds applies configured degradation thresholds.
func (d *PerformanceDetector) SetThresholds(accuracy, latencyMs, memoryMB, cpuPercent float64) {
	d.baseline.Accuracy.Threshold = accuracy
	d.baseline.LatencyMs.Threshold = latencyMs
	d.baseline.MemoryMB.Threshold = memoryMB
	d.baseline.CPUPercent.Threshold = cpuPercent
}

// SetCollector overrides the host metric source. Used by tests.
func (d *PerformanceDetector) SetCollector(collect func() (*system.Sample, error)) {
	d.collect = collect
}

// SetProbe overrides the model performance probe. Used by tests.
func (d *PerformanceDetector) SetProbe(probe func(PerformanceBaseline) (float64, float64)) {
	d.probe = probe
}

// UpgradeRecommended reports whether a past scan flagged degradation.
func (d *PerformanceDetector) UpgradeRecommended() bool {
	return d.upgradeRecommended
}

// Scan checks current model performance against thresholds. Returns at most
// one finding per scan.
func (d *PerformanceDetector) Scan(ctx context.Context) ([]models.Finding, error) {
	sample, err := d.collect()
	if err != nil {
		return nil, fmt.Errorf("failed to collect host metrics: %w", err)
	}

	accuracy, latency := d.probe(d.baseline)

	d.baseline.Accuracy.Current = accuracy
	d.baseline.LatencyMs.Current = latency
	d.baseline.MemoryMB.Current = sample.MemoryUsedMB
	d.baseline.CPUPercent.Current = sample.CPUUsagePercent
	d.baseline.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	d.saveBaseline()

	issues := d.analyzeIssues()
	if len(issues) == 0 {
		return nil, nil
	}

	d.upgradeRecommended = true

	// More independent issues mean higher confidence that the model has
	// genuinely degraded rather than hit a transient blip.
	confidence := 0.7 + 0.1*float64(len(issues))
	if confidence > 0.95 {
		confidence = 0.95
	}

	finding := models.Finding{
		Kind:       "performance_degradation",
		Confidence: confidence,
		OccurredAt: time.Now().UTC(),
		Origin:     d.Name(),
		Payload: map[string]interface{}{
			"issues": issues,
			"metrics": map[string]float64{
				"accuracy":        accuracy,
				"latency_ms":      latency,
				"memory_usage_mb": sample.MemoryUsedMB,
				"cpu_percent":     sample.CPUUsagePercent,
			},
			"upgrade_recommended": true,
		},
	}

	return []models.Finding{finding}, nil
}

func (d *PerformanceDetector) analyzeIssues() []string {
	var issues []string

	if d.baseline.Accuracy.Current < d.baseline.Accuracy.Threshold {
		issues = append(issues, fmt.Sprintf("Accuracy degraded: %.2f (threshold %.2f)",
			d.baseline.Accuracy.Current, d.baseline.Accuracy.Threshold))
	}
	if d.baseline.LatencyMs.Current > d.baseline.LatencyMs.Threshold {
		issues = append(issues, fmt.Sprintf("High latency: %.1fms (threshold %.0fms)",
			d.baseline.LatencyMs.Current, d.baseline.LatencyMs.Threshold))
	}
	if d.baseline.MemoryMB.Current > d.baseline.MemoryMB.Threshold {
		issues = append(issues, fmt.Sprintf("High memory usage: %.0fMB (threshold %.0fMB)",
			d.baseline.MemoryMB.Current, d.baseline.MemoryMB.Threshold))
	}
	if d.baseline.CPUPercent.Current > d.baseline.CPUPercent.Threshold {
		issues = append(issues, fmt.Sprintf("High CPU usage: %.1f%% (threshold %.0f%%)",
			d.baseline.CPUPercent.Current, d.baseline.CPUPercent.Threshold))
	}

	return issues
}

func (d *PerformanceDetector) loadBaseline() {
	data, err := os.ReadFile(d.baselinePath)
	if err == nil {
		if err := json.Unmarshal(data, &d.baseline); err == nil {
			return
		}
	}

	// Default baseline, persisted on first save
	d.baseline = PerformanceBaseline{
		Accuracy:    MetricBand{Baseline: 0.95, Current: 0.95, Threshold: 0.90},
		LatencyMs:   MetricBand{Baseline: 50, Current: 50, Threshold: 100},
		MemoryMB:    MetricBand{Baseline: 512, Current: 512, Threshold: 1024},
		CPUPercent:  MetricBand{Baseline: 30, Current: 30, Threshold: 80},
		LastUpdated: time.Now().UTC().Format(time.RFC3339),
	}
}

func (d *PerformanceDetector) saveBaseline() {
	data, err := json.MarshalIndent(d.baseline, "", "  ")
	if err != nil {
		return
	}

	// Best effort, the baseline directory may not exist in test runs
	_ = os.WriteFile(d.baselinePath, data, 0o644)
}

// simulatedProbe stands in for a live model inference check, drifting around
// the recorded baseline.
func simulatedProbe(baseline PerformanceBaseline) (float64, float64) {
	accuracy := baseline.Accuracy.Baseline + rand.NormFloat64()*0.02 - 0.01
	if accuracy > 1 {
		accuracy = 1
	}
	if accuracy < 0 {
		accuracy = 0
	}

	latency := baseline.LatencyMs.Baseline + rand.NormFloat64()*10 + 5
	if latency < 0 {
		latency = 0
	}

	return accuracy, latency
}
