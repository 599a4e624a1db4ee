package response

import (
	"context"
	"log"
	"time"

	"github.com/networkbuster/aidefense/internal/models"
)

// IncreaseMonitoringAction tightens the coordinator's cycle interval so a
// developing situation is observed more closely. The coordinator supplies
// the tighten callback to avoid a package cycle.
type IncreaseMonitoringAction struct {
	tighten func() time.Duration
}

func NewIncreaseMonitoringAction(tighten func() time.Duration) *IncreaseMonitoringAction {
	return &IncreaseMonitoringAction{tighten: tighten}
}

func (a *IncreaseMonitoringAction) Name() string {
	return ActionIncreaseMonitoring
}

func (a *IncreaseMonitoringAction) Execute(ctx context.Context, alert *models.Alert) error {
	if a.tighten == nil {
		log.Printf("Increase monitoring (simulated): alert=%s", alert.ID)
		return nil
	}

	interval := a.tighten()
	log.Printf("Increased monitoring for alert %s: interval now %s", alert.ID, interval)
	return nil
}
