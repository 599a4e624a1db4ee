package coordinator_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/networkbuster/aidefense/internal/coordinator"
	"github.com/networkbuster/aidefense/internal/detector"
	"github.com/networkbuster/aidefense/internal/models"
	"github.com/networkbuster/aidefense/internal/response"
	"github.com/stretchr/testify/assert"
)

type funcDetector struct {
	name string
	scan func(ctx context.Context) ([]models.Finding, error)
}

func (d *funcDetector) Name() string { return d.name }

func (d *funcDetector) Scan(ctx context.Context) ([]models.Finding, error) {
	return d.scan(ctx)
}

var _ detector.Detector = (*funcDetector)(nil)

func testSettings() coordinator.Settings {
	return coordinator.Settings{
		MonitoringInterval: time.Minute,
		AlertThreshold:     0.7,
		AutoResponse:       true,
		MaxAlertsPerHour:   10,
	}
}

// newTestExecutor registers every response action in simulate mode.
func newTestExecutor() *response.Executor {
	executor := response.NewExecutor(time.Second)
	executor.Register(response.NewIsolateResourceAction(nil, ""))
	executor.Register(response.NewScaleResourcesAction(nil, ""))
	executor.Register(response.NewBlockAccessAction(nil))
	executor.Register(response.NewLogIncidentAction(nil))
	executor.Register(response.NewIncreaseMonitoringAction(nil))
	executor.Register(response.NewTriggerUpgradeAction(nil))
	return executor
}

func emitOnce(name, kind string, confidence float64, occurredAt time.Time) *funcDetector {
	emitted := false
	return &funcDetector{name: name, scan: func(ctx context.Context) ([]models.Finding, error) {
		if emitted {
			return nil, nil
		}
		emitted = true
		return []models.Finding{{
			Kind:       kind,
			Confidence: confidence,
			OccurredAt: occurredAt,
			Origin:     name,
		}}, nil
	}}
}

func TestRunCycle_HighConfidenceThreatGetsAutomaticResponse(t *testing.T) {
	c := coordinator.New(testSettings(), newTestExecutor())
	c.RegisterDetector(emitOnce("threat_analyzer", "threat_privilege_escalation", 0.95, time.Now()))

	record, err := c.RunCycle(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 1, record.AlertsAdmitted)
	assert.Equal(t, 1, record.Detectors["threat_analyzer"].Findings)

	alerts := c.GetAlertHistory(time.Hour)
	assert.Len(t, alerts, 1)

	alert := alerts[0]
	assert.Equal(t, models.StatusResponded, alert.Status)
	assert.Len(t, alert.Responses, 2)
	assert.Equal(t, response.ActionBlockAccess, alert.Responses[0].Action)
	assert.Equal(t, response.ActionLogIncident, alert.Responses[1].Action)
	assert.Equal(t, models.OutcomeExecuted, alert.Responses[0].Outcome)
	assert.Equal(t, models.OutcomeExecuted, alert.Responses[1].Outcome)
}

func TestRunCycle_DetectorFailureIsIsolated(t *testing.T) {
	c := coordinator.New(testSettings(), newTestExecutor())
	c.RegisterDetector(&funcDetector{name: "broken", scan: func(ctx context.Context) ([]models.Finding, error) {
		return nil, errors.New("log file vanished")
	}})
	c.RegisterDetector(emitOnce("working", "anomaly_detected", 0.8, time.Now()))

	record, err := c.RunCycle(context.Background())

	assert.NoError(t, err, "One failing detector never fails the cycle.")
	assert.Equal(t, "log file vanished", record.Detectors["broken"].Error)
	assert.Equal(t, 1, record.Detectors["working"].Findings)
	assert.Equal(t, 1, record.AlertsAdmitted)

	status := c.GetStatus()
	assert.Equal(t, "log file vanished", status.Detectors["broken"])
	assert.Equal(t, "ok", status.Detectors["working"])
}

func TestRunCycle_PanickingDetectorIsIsolated(t *testing.T) {
	c := coordinator.New(testSettings(), newTestExecutor())
	c.RegisterDetector(&funcDetector{name: "panicky", scan: func(ctx context.Context) ([]models.Finding, error) {
		panic("unexpected state")
	}})

	record, err := c.RunCycle(context.Background())

	assert.NoError(t, err)
	assert.Contains(t, record.Detectors["panicky"].Error, "panicked")
}

func TestRunCycle_HangingDetectorTimesOut(t *testing.T) {
	c := coordinator.New(testSettings(), newTestExecutor())
	c.SetDetectorTimeout(50 * time.Millisecond)
	c.RegisterDetector(&funcDetector{name: "hanging", scan: func(ctx context.Context) ([]models.Finding, error) {
		time.Sleep(time.Second)
		return nil, nil
	}})

	record, err := c.RunCycle(context.Background())

	assert.NoError(t, err)
	assert.Contains(t, record.Detectors["hanging"].Error, "timed out")
}

func TestRunCycle_ThresholdGatesAutomaticResponse(t *testing.T) {
	settings := testSettings()
	settings.AlertThreshold = 0.85
	c := coordinator.New(settings, newTestExecutor())
	c.RegisterDetector(emitOnce("threat_analyzer", "threat_brute_force_attempt", 0.8, time.Now()))

	_, err := c.RunCycle(context.Background())
	assert.NoError(t, err)

	alerts := c.GetAlertHistory(time.Hour)
	assert.Len(t, alerts, 1, "The alert is admitted even though no response fires.")
	assert.Equal(t, models.StatusDetected, alerts[0].Status)
	assert.Empty(t, alerts[0].Responses)
}

func TestRunCycle_ThresholdIsStrictlyExceeded(t *testing.T) {
	settings := testSettings()
	settings.AlertThreshold = 0.95
	c := coordinator.New(settings, newTestExecutor())
	c.RegisterDetector(emitOnce("threat_analyzer", "threat_privilege_escalation", 0.95, time.Now()))

	_, err := c.RunCycle(context.Background())
	assert.NoError(t, err)

	alerts := c.GetAlertHistory(time.Hour)
	assert.Len(t, alerts, 1)
	assert.Empty(t, alerts[0].Responses, "Confidence equal to the threshold does not trigger responses.")
}

func TestRunCycle_AutoResponseDisabled(t *testing.T) {
	settings := testSettings()
	settings.AutoResponse = false
	c := coordinator.New(settings, newTestExecutor())
	c.RegisterDetector(emitOnce("threat_analyzer", "threat_privilege_escalation", 0.95, time.Now()))

	_, err := c.RunCycle(context.Background())
	assert.NoError(t, err)

	alerts := c.GetAlertHistory(time.Hour)
	assert.Len(t, alerts, 1)
	assert.Equal(t, models.StatusDetected, alerts[0].Status)
	assert.Empty(t, alerts[0].Responses)
}

func TestRunCycle_DeduplicatesAcrossCycles(t *testing.T) {
	current := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	occurred := current

	c := coordinator.New(testSettings(), newTestExecutor())
	c.SetNowFunc(func() time.Time { return current })
	c.RegisterDetector(&funcDetector{name: "threat_analyzer", scan: func(ctx context.Context) ([]models.Finding, error) {
		return []models.Finding{{
			Kind:       "threat_brute_force_attempt",
			Confidence: 0.75,
			OccurredAt: occurred,
			Origin:     "threat_analyzer",
		}}, nil
	}})

	first, err := c.RunCycle(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, first.AlertsAdmitted)

	current = current.Add(2 * time.Minute)
	occurred = current

	second, err := c.RunCycle(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 0, second.AlertsAdmitted, "The same kind 2 minutes later is a duplicate.")
	assert.Len(t, c.GetAlertHistory(time.Hour), 1)
}

func TestRunCycle_PrunesAlertsPastRetention(t *testing.T) {
	current := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	c := coordinator.New(testSettings(), newTestExecutor())
	c.SetNowFunc(func() time.Time { return current })
	c.RegisterDetector(emitOnce("threat_analyzer", "threat_brute_force_attempt", 0.75, current))

	_, err := c.RunCycle(context.Background())
	assert.NoError(t, err)
	assert.Len(t, c.GetAlertHistory(48*time.Hour), 1)

	// Exactly at the retention boundary the alert is kept.
	current = current.Add(24 * time.Hour)
	_, err = c.RunCycle(context.Background())
	assert.NoError(t, err)
	assert.Len(t, c.GetAlertHistory(48*time.Hour), 1)

	// One second past the boundary it is evicted.
	current = current.Add(time.Second)
	_, err = c.RunCycle(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, c.GetAlertHistory(48*time.Hour))
}

func TestRunCycle_HistoryIsBounded(t *testing.T) {
	c := coordinator.New(testSettings(), newTestExecutor())
	c.SetHistoryLimit(5)

	for i := 0; i < 8; i++ {
		_, err := c.RunCycle(context.Background())
		assert.NoError(t, err)
	}

	status := c.GetStatus()
	assert.Equal(t, 5, status.RecentCycles, "Oldest cycle records are evicted first.")
	assert.NotNil(t, status.LastCycle)
}

func TestRunCycle_OverlappingCycleIsSkipped(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	c := coordinator.New(testSettings(), newTestExecutor())
	c.RegisterDetector(&funcDetector{name: "slow", scan: func(ctx context.Context) ([]models.Finding, error) {
		close(started)
		<-release
		return nil, nil
	}})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := c.RunCycle(context.Background())
		assert.NoError(t, err)
	}()

	<-started
	_, err := c.RunCycle(context.Background())
	assert.ErrorIs(t, err, coordinator.ErrCycleInProgress)

	close(release)
	<-done
}

func TestManualResponse_ExecutesSingleAction(t *testing.T) {
	settings := testSettings()
	settings.AutoResponse = false
	c := coordinator.New(settings, newTestExecutor())
	c.RegisterDetector(emitOnce("threat_analyzer", "threat_privilege_escalation", 0.95, time.Now()))

	_, err := c.RunCycle(context.Background())
	assert.NoError(t, err)

	alerts := c.GetAlertHistory(time.Hour)
	assert.Len(t, alerts, 1)

	record, err := c.ManualResponse(context.Background(), alerts[0].ID, response.ActionBlockAccess)
	assert.NoError(t, err)
	assert.Equal(t, models.OutcomeExecuted, record.Outcome)
	assert.Equal(t, alerts[0].ID, record.AlertID)

	updated := c.GetAlertHistory(time.Hour)
	assert.Equal(t, models.StatusResponded, updated[0].Status)
	assert.Len(t, updated[0].Responses, 1)
}

func TestManualResponse_UnknownAlert(t *testing.T) {
	c := coordinator.New(testSettings(), newTestExecutor())

	_, err := c.ManualResponse(context.Background(), "no-such-alert", response.ActionBlockAccess)

	assert.ErrorIs(t, err, coordinator.ErrAlertNotFound)
}

func TestManualResponse_UnknownActionRecordsFailure(t *testing.T) {
	settings := testSettings()
	settings.AutoResponse = false
	c := coordinator.New(settings, newTestExecutor())
	c.RegisterDetector(emitOnce("threat_analyzer", "threat_privilege_escalation", 0.95, time.Now()))

	_, err := c.RunCycle(context.Background())
	assert.NoError(t, err)
	alerts := c.GetAlertHistory(time.Hour)

	record, err := c.ManualResponse(context.Background(), alerts[0].ID, "launch_countermeasures")
	assert.NoError(t, err, "An unknown action is a failed record, not an API error.")
	assert.Equal(t, models.OutcomeFailed, record.Outcome)
	assert.Contains(t, record.Error, "unknown action")
}

func TestGetAlertHistory_ReturnsCopies(t *testing.T) {
	c := coordinator.New(testSettings(), newTestExecutor())
	c.RegisterDetector(emitOnce("threat_analyzer", "threat_privilege_escalation", 0.95, time.Now()))

	_, err := c.RunCycle(context.Background())
	assert.NoError(t, err)

	alerts := c.GetAlertHistory(time.Hour)
	alerts[0].Kind = "tampered"
	alerts[0].Responses = nil

	fresh := c.GetAlertHistory(time.Hour)
	assert.Equal(t, "threat_privilege_escalation", fresh[0].Kind)
	assert.NotEmpty(t, fresh[0].Responses)
}

func TestUpdateConfiguration_AppliesKnownKeys(t *testing.T) {
	c := coordinator.New(testSettings(), newTestExecutor())

	result := c.UpdateConfiguration(map[string]interface{}{
		"monitoring_interval": float64(60),
		"alert_threshold":     0.5,
		"auto_response":       false,
		"max_alerts_per_hour": float64(3),
	})

	assert.Equal(t, 60, result["monitoring_interval"])
	assert.Equal(t, 0.5, result["alert_threshold"])
	assert.Equal(t, false, result["auto_response"])
	assert.Equal(t, 3, result["max_alerts_per_hour"])
}

func TestUpdateConfiguration_IgnoresUnknownAndInvalid(t *testing.T) {
	c := coordinator.New(testSettings(), newTestExecutor())

	result := c.UpdateConfiguration(map[string]interface{}{
		"unknown_knob":        "whatever",
		"monitoring_interval": "fast",
		"alert_threshold":     1.5,
		"max_alerts_per_hour": float64(-2),
	})

	assert.Equal(t, 60, result["monitoring_interval"], "Invalid values leave settings untouched.")
	assert.Equal(t, 0.7, result["alert_threshold"])
	assert.Equal(t, 10, result["max_alerts_per_hour"])
	assert.NotContains(t, result, "unknown_knob")
}

func TestTightenInterval_HalvesDownToFloor(t *testing.T) {
	c := coordinator.New(testSettings(), newTestExecutor())

	assert.Equal(t, 30*time.Second, c.TightenInterval())
	assert.Equal(t, 15*time.Second, c.TightenInterval())

	for i := 0; i < 10; i++ {
		c.TightenInterval()
	}
	assert.Equal(t, 5*time.Second, c.TightenInterval(), "The interval never drops below the floor.")
}

func TestActivateDeactivate_Lifecycle(t *testing.T) {
	settings := testSettings()
	settings.MonitoringInterval = 10 * time.Millisecond
	c := coordinator.New(settings, newTestExecutor())

	assert.Equal(t, coordinator.StateReady, c.State())

	assert.NoError(t, c.Activate())
	assert.Equal(t, coordinator.StateActive, c.State())
	assert.NoError(t, c.Activate(), "Activate is idempotent.")

	time.Sleep(100 * time.Millisecond)

	assert.NoError(t, c.Deactivate())
	assert.Equal(t, coordinator.StateReady, c.State())
	assert.NoError(t, c.Deactivate(), "Deactivate is idempotent.")

	assert.Greater(t, c.GetStatus().RecentCycles, 0, "The loop ran cycles while active.")
}
