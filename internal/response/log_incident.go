package response

import (
	"context"
	"log"

	"github.com/networkbuster/aidefense/internal/archive"
	"github.com/networkbuster/aidefense/internal/models"
)

// LogIncidentAction writes a durable incident record for audit. Without an
// archive the incident is only written to the process log.
type LogIncidentAction struct {
	archive *archive.Client
}

func NewLogIncidentAction(archiveClient *archive.Client) *LogIncidentAction {
	return &LogIncidentAction{archive: archiveClient}
}

func (a *LogIncidentAction) Name() string {
	return ActionLogIncident
}

func (a *LogIncidentAction) Execute(ctx context.Context, alert *models.Alert) error {
	log.Printf("INCIDENT: kind=%s confidence=%.2f origin=%s alert=%s",
		alert.Kind, alert.Confidence, alert.Origin, alert.ID)

	if a.archive == nil {
		return nil
	}

	return a.archive.AppendIncident(ctx, alert, a.Name())
}
