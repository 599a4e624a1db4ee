package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the AI Defense service.
type Config struct {
	// Service addresses
	HTTPPort  string
	NatsURL   string
	RedisAddr string
	RedisPass string
	RedisDB   int

	// Coordination defaults (runtime-adjustable via the configuration API)
	MonitoringInterval time.Duration
	AlertThreshold     float64
	AutoResponse       bool
	MaxAlertsPerHour   int

	// Fixed coordinator bounds
	RetentionWindow time.Duration
	HistoryLimit    int
	DetectorTimeout time.Duration
	ActionTimeout   time.Duration

	// Detector tuning
	Thresholds DetectorThresholds

	// Threat detector log sources (comma separated in THREAT_LOG_PATHS)
	ThreatLogPaths []string

	// Performance baseline persistence
	BaselinePath string

	// Feature flags
	AutoStart     bool
	DockerEnabled bool

	// Target container for container-level response actions
	TargetContainer string
}

// DetectorThresholds contains configurable thresholds for each detector.
type DetectorThresholds struct {
	// Anomaly Detector
	AnomalyThreshold float64 // Minimum confidence to report (0.0-1.0)

	// Performance Detector
	AccuracyThreshold   float64 // Minimum acceptable model accuracy
	LatencyThresholdMs  float64 // Maximum acceptable inference latency
	MemoryThresholdMB   float64 // Maximum acceptable memory usage
	CPUThresholdPercent float64 // Maximum acceptable CPU usage
}

// Load reads configuration from environment variables and .env file.
func Load() (*Config, error) {
	// Try multiple .env locations
	envPaths := []string{
		".env",
		"../.env",
		"/app/.env", // Docker
	}

	envLoaded := false
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			log.Printf("Loaded config from: %s", path)
			envLoaded = true
			break
		}
	}

	if !envLoaded {
		log.Printf("No .env file found, using environment variables")
	}

	config := &Config{
		// Service addresses with defaults
		HTTPPort:  getEnvOrDefault("HTTP_PORT", "8080"),
		NatsURL:   getEnvOrDefault("NATS_URL", "nats://localhost:4222"),
		RedisAddr: getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPass: getEnvOrDefault("REDIS_PASSWORD", ""),
		RedisDB:   parseIntOrDefault("REDIS_DB", 0),

		// Coordination defaults
		MonitoringInterval: time.Duration(parseIntOrDefault("MONITORING_INTERVAL", 30)) * time.Second,
		AlertThreshold:     parseFloatOrDefault("ALERT_THRESHOLD", 0.7),
		AutoResponse:       getEnvOrDefault("AUTO_RESPONSE", "true") == "true",
		MaxAlertsPerHour:   parseIntOrDefault("MAX_ALERTS_PER_HOUR", 10),

		// Coordinator bounds
		RetentionWindow: time.Duration(parseIntOrDefault("RETENTION_HOURS", 24)) * time.Hour,
		HistoryLimit:    parseIntOrDefault("HISTORY_LIMIT", 100),
		DetectorTimeout: time.Duration(parseIntOrDefault("DETECTOR_TIMEOUT_SECONDS", 10)) * time.Second,
		ActionTimeout:   time.Duration(parseIntOrDefault("ACTION_TIMEOUT_SECONDS", 30)) * time.Second,

		Thresholds: DetectorThresholds{
			AnomalyThreshold:    parseFloatOrDefault("ANOMALY_THRESHOLD", 0.85),
			AccuracyThreshold:   parseFloatOrDefault("THRESHOLD_MODEL_ACCURACY", 0.90),
			LatencyThresholdMs:  parseFloatOrDefault("THRESHOLD_MODEL_LATENCY_MS", 100.0),
			MemoryThresholdMB:   parseFloatOrDefault("THRESHOLD_MODEL_MEMORY_MB", 1024.0),
			CPUThresholdPercent: parseFloatOrDefault("THRESHOLD_MODEL_CPU_PERCENT", 80.0),
		},

		ThreatLogPaths: splitPaths(getEnvOrDefault("THREAT_LOG_PATHS", "/app/logs/ai-defense.log,/var/log/syslog,/var/log/auth.log")),
		BaselinePath:   getEnvOrDefault("BASELINE_PATH", "/app/models/performance_baseline.json"),

		AutoStart:       getEnvOrDefault("DEFENSE_AUTOSTART", "true") == "true",
		DockerEnabled:   getEnvOrDefault("DOCKER_ENABLED", "false") == "true",
		TargetContainer: getEnvOrDefault("TARGET_CONTAINER", ""),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks that required configuration is present and in range.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT is required")
	}

	if c.AlertThreshold < 0 || c.AlertThreshold > 1 {
		return fmt.Errorf("ALERT_THRESHOLD must be between 0 and 1")
	}

	if c.Thresholds.AnomalyThreshold < 0 || c.Thresholds.AnomalyThreshold > 1 {
		return fmt.Errorf("ANOMALY_THRESHOLD must be between 0 and 1")
	}

	if c.MonitoringInterval <= 0 {
		return fmt.Errorf("MONITORING_INTERVAL must be positive")
	}

	if c.MaxAlertsPerHour <= 0 {
		return fmt.Errorf("MAX_ALERTS_PER_HOUR must be positive")
	}

	return nil
}

// Helper functions
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var result float64
		if _, err := fmt.Sscanf(value, "%f", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func splitPaths(value string) []string {
	parts := strings.Split(value, ",")
	paths := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			paths = append(paths, trimmed)
		}
	}
	return paths
}
