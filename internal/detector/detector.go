package detector

import (
	"context"

	"github.com/networkbuster/aidefense/internal/models"
)

// Detector is any subsystem the coordinator can ask for candidate findings.
// Scan must be safe to call repeatedly and side-effect free from the
// coordinator's point of view. A detector may keep its own internal state
// (baselines, queues) but the coordinator only ever calls Scan.
type Detector interface {
	Name() string
	Scan(ctx context.Context) ([]models.Finding, error)
}
