package admission_test

import (
	"math"
	"testing"
	"time"

	"github.com/networkbuster/aidefense/internal/admission"
	"github.com/networkbuster/aidefense/internal/models"
	"github.com/stretchr/testify/assert"
)

func finding(kind string, confidence float64, occurredAt time.Time) models.Finding {
	return models.Finding{
		Kind:       kind,
		Confidence: confidence,
		OccurredAt: occurredAt,
		Origin:     "test",
	}
}

func TestAdmit_AdmitsDistinctKinds(t *testing.T) {
	now := time.Now()
	cfg := admission.Config{MaxAlertsPerHour: 10}

	candidates := []models.Finding{
		finding("anomaly_detected", 0.9, now),
		finding("threat_brute_force_attempt", 0.75, now),
	}

	admitted := admission.Admit(nil, candidates, cfg, now)

	assert.Len(t, admitted, 2, "Distinct kinds should both be admitted.")
}

func TestAdmit_CollapsesSameKindWithinWindow(t *testing.T) {
	now := time.Now()
	cfg := admission.Config{MaxAlertsPerHour: 10}

	candidates := []models.Finding{
		finding("anomaly_detected", 0.9, now),
		finding("anomaly_detected", 0.9, now.Add(4*time.Minute)),
	}

	admitted := admission.Admit(nil, candidates, cfg, now)

	assert.Len(t, admitted, 1, "Same kind 4 minutes apart should collapse to one alert.")
	assert.Equal(t, now, admitted[0].OccurredAt, "The earlier finding wins.")
}

func TestAdmit_AdmitsSameKindOutsideWindow(t *testing.T) {
	now := time.Now()
	cfg := admission.Config{MaxAlertsPerHour: 10}

	candidates := []models.Finding{
		finding("anomaly_detected", 0.9, now),
		finding("anomaly_detected", 0.9, now.Add(6*time.Minute)),
	}

	admitted := admission.Admit(nil, candidates, cfg, now)

	assert.Len(t, admitted, 2, "Same kind 6 minutes apart should both be admitted.")
}

func TestAdmit_CollapsesAgainstRecentAlerts(t *testing.T) {
	now := time.Now()
	cfg := admission.Config{MaxAlertsPerHour: 10}

	recent := []*models.Alert{
		models.NewAlert(finding("threat_privilege_escalation", 0.95, now.Add(-2*time.Minute)), now.Add(-2*time.Minute)),
	}

	candidates := []models.Finding{
		finding("threat_privilege_escalation", 0.95, now),
	}

	admitted := admission.Admit(recent, candidates, cfg, now)

	assert.Empty(t, admitted, "A kind already alerted 2 minutes ago is a duplicate.")
}

func TestAdmit_RateLimitIsHardCutoff(t *testing.T) {
	now := time.Now()
	cfg := admission.Config{MaxAlertsPerHour: 3}

	recent := make([]*models.Alert, 0, 3)
	for i := 0; i < 3; i++ {
		admittedAt := now.Add(-time.Duration(i+1) * 10 * time.Minute)
		recent = append(recent, models.NewAlert(finding("anomaly_detected", 0.9, admittedAt), admittedAt))
	}

	candidates := []models.Finding{
		finding("threat_privilege_escalation", 0.99, now),
	}

	admitted := admission.Admit(recent, candidates, cfg, now)

	assert.Empty(t, admitted, "A saturated hour drops every candidate, even high-confidence ones.")
}

func TestAdmit_RateLimitIgnoresOldAlerts(t *testing.T) {
	now := time.Now()
	cfg := admission.Config{MaxAlertsPerHour: 1}

	oldAdmit := now.Add(-2 * time.Hour)
	recent := []*models.Alert{
		models.NewAlert(finding("anomaly_detected", 0.9, oldAdmit), oldAdmit),
	}

	candidates := []models.Finding{
		finding("threat_privilege_escalation", 0.95, now),
	}

	admitted := admission.Admit(recent, candidates, cfg, now)

	assert.Len(t, admitted, 1, "Alerts older than an hour do not count against the limit.")
}

func TestAdmit_NormalizesConfidence(t *testing.T) {
	now := time.Now()
	cfg := admission.Config{MaxAlertsPerHour: 10}

	candidates := []models.Finding{
		finding("threat_a", 1.7, now),
		finding("threat_b", -0.3, now),
		finding("threat_c", math.NaN(), now),
	}

	admitted := admission.Admit(nil, candidates, cfg, now)

	assert.Len(t, admitted, 1, "Only the clamped high-confidence finding survives.")
	assert.Equal(t, "threat_a", admitted[0].Kind)
	assert.Equal(t, 1.0, admitted[0].Confidence, "Confidence above 1 clamps to 1.")
}

func TestAdmit_ZeroConfidenceNeverAdmitted(t *testing.T) {
	now := time.Now()
	cfg := admission.Config{MaxAlertsPerHour: 10}

	admitted := admission.Admit(nil, []models.Finding{finding("threat_a", 0, now)}, cfg, now)

	assert.Empty(t, admitted)
}

func TestAdmit_PreservesDiscoveryOrder(t *testing.T) {
	now := time.Now()
	cfg := admission.Config{MaxAlertsPerHour: 10}

	candidates := []models.Finding{
		finding("threat_a", 0.8, now),
		finding("threat_b", 0.8, now),
		finding("threat_c", 0.8, now),
	}

	admitted := admission.Admit(nil, candidates, cfg, now)

	assert.Len(t, admitted, 3)
	assert.Equal(t, "threat_a", admitted[0].Kind)
	assert.Equal(t, "threat_b", admitted[1].Kind)
	assert.Equal(t, "threat_c", admitted[2].Kind)
}

func TestAdmit_ComparisonDepthIsBounded(t *testing.T) {
	now := time.Now()
	cfg := admission.Config{MaxAlertsPerHour: 100}

	// 15 recent alerts; the matching kind sits outside the last 10.
	recent := make([]*models.Alert, 0, 15)
	recent = append(recent, models.NewAlert(finding("threat_old", 0.9, now.Add(-time.Minute)), now.Add(-time.Minute)))
	for i := 0; i < 14; i++ {
		recent = append(recent, models.NewAlert(finding("anomaly_detected", 0.9, now.Add(-30*time.Minute)), now.Add(-30*time.Minute)))
	}

	candidates := []models.Finding{
		finding("threat_old", 0.9, now),
	}

	admitted := admission.Admit(recent, candidates, cfg, now)

	assert.Len(t, admitted, 1, "Alerts beyond the comparison depth are not consulted.")
}
