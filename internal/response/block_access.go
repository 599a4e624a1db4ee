package response

import (
	"context"
	"log"

	"github.com/networkbuster/aidefense/internal/archive"
	"github.com/networkbuster/aidefense/internal/models"
)

// BlockAccessAction records the offending origin on the shared blocklist
// consumed by the request layer. Simulate mode without an archive.
type BlockAccessAction struct {
	archive *archive.Client
}

func NewBlockAccessAction(archiveClient *archive.Client) *BlockAccessAction {
	return &BlockAccessAction{archive: archiveClient}
}

func (a *BlockAccessAction) Name() string {
	return ActionBlockAccess
}

func (a *BlockAccessAction) Execute(ctx context.Context, alert *models.Alert) error {
	if a.archive == nil {
		log.Printf("Block access (simulated): alert=%s origin=%s", alert.ID, alert.Origin)
		return nil
	}

	if err := a.archive.AddToBlocklist(ctx, alert.Origin); err != nil {
		return err
	}

	log.Printf("Blocked access for origin %s (alert %s)", alert.Origin, alert.ID)
	return nil
}
