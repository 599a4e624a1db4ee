package system

import (
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// Sample is one point-in-time view of host activity. It feeds the anomaly
// and performance detectors.
type Sample struct {
	CPUUsagePercent    float64
	MemoryUsagePercent float64
	MemoryUsedMB       float64
	MemoryTotalMB      float64
	LoadAvg1m          float64
	LoadAvg5m          float64
	LoadAvg15m         float64
	UptimeSeconds      float64
}

// Collect gathers current host metrics. Individual probe failures leave the
// corresponding fields at zero rather than failing the whole sample.
func Collect() (*Sample, error) {
	s := &Sample{}

	// CPU usage
	cpuPercent, err := cpu.Percent(0, false)
	if err == nil && len(cpuPercent) > 0 {
		s.CPUUsagePercent = cpuPercent[0]
	}

	// Memory
	memStats, err := mem.VirtualMemory()
	if err == nil {
		s.MemoryUsagePercent = memStats.UsedPercent
		s.MemoryUsedMB = float64(memStats.Used) / (1024 * 1024)
		s.MemoryTotalMB = float64(memStats.Total) / (1024 * 1024)
	}

	// Load average
	loadStats, err := load.Avg()
	if err == nil {
		s.LoadAvg1m = loadStats.Load1
		s.LoadAvg5m = loadStats.Load5
		s.LoadAvg15m = loadStats.Load15
	}

	// Uptime
	uptime, err := host.Uptime()
	if err == nil {
		s.UptimeSeconds = float64(uptime)
	}

	return s, nil
}

// ToMetrics converts the sample to a named metric map for inclusion in
// finding payloads.
func (s *Sample) ToMetrics() map[string]float64 {
	return map[string]float64{
		"system.cpu_usage_percent":    s.CPUUsagePercent,
		"system.memory_usage_percent": s.MemoryUsagePercent,
		"system.memory_used_mb":       s.MemoryUsedMB,
		"system.memory_total_mb":      s.MemoryTotalMB,
		"system.load_1m":              s.LoadAvg1m,
		"system.load_5m":              s.LoadAvg5m,
		"system.load_15m":             s.LoadAvg15m,
		"system.uptime_seconds":       s.UptimeSeconds,
	}
}
