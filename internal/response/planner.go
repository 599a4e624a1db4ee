package response

import (
	"strings"

	"github.com/networkbuster/aidefense/internal/models"
)

// Response action identifiers.
const (
	ActionIsolateResource    = "isolate_resource"
	ActionIncreaseMonitoring = "increase_monitoring"
	ActionBlockAccess        = "block_access"
	ActionLogIncident        = "log_incident"
	ActionScaleResources     = "scale_resources"
	ActionTriggerUpgrade     = "trigger_upgrade"
)

// Plan maps an alert to an ordered list of response actions. It is a pure
// function of the alert's confidence and kind.
//
// High-confidence alerts (> 0.9) get kind-specific actions; medium
// confidence (> 0.7) gets a monitoring bump; anything lower gets no
// automatic action. Kind routing is substring containment on the lowercased
// kind, matching the detector taxonomy ("threat_x" routes as a threat).
func Plan(alert *models.Alert) []string {
	kind := strings.ToLower(alert.Kind)
	var actions []string

	switch {
	case alert.Confidence > 0.9:
		switch {
		case strings.Contains(kind, "anomaly"):
			actions = append(actions, ActionIsolateResource, ActionIncreaseMonitoring)
		case strings.Contains(kind, "threat"):
			actions = append(actions, ActionBlockAccess, ActionLogIncident)
		case strings.Contains(kind, "performance"):
			actions = append(actions, ActionScaleResources, ActionTriggerUpgrade)
		}
	case alert.Confidence > 0.7:
		actions = append(actions, ActionIncreaseMonitoring)
	}

	return actions
}
