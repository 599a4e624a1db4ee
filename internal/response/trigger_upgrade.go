package response

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/networkbuster/aidefense/internal/eventbus"
	"github.com/networkbuster/aidefense/internal/models"
)

// TriggerUpgradeAction requests a model upgrade from the deployment system
// via the event bus. Simulate mode without a publisher.
type TriggerUpgradeAction struct {
	publisher *eventbus.Publisher
}

func NewTriggerUpgradeAction(publisher *eventbus.Publisher) *TriggerUpgradeAction {
	return &TriggerUpgradeAction{publisher: publisher}
}

func (a *TriggerUpgradeAction) Name() string {
	return ActionTriggerUpgrade
}

func (a *TriggerUpgradeAction) Execute(ctx context.Context, alert *models.Alert) error {
	if a.publisher == nil {
		log.Printf("Trigger upgrade (simulated): alert=%s kind=%s", alert.ID, alert.Kind)
		return nil
	}

	return a.publisher.PublishUpgradeRequest(&eventbus.UpgradeRequest{
		AlertID:   alert.ID,
		Kind:      alert.Kind,
		Reason:    fmt.Sprintf("performance degradation at confidence %.2f", alert.Confidence),
		Timestamp: time.Now().Unix(),
	})
}
