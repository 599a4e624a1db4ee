package response

import (
	"context"

	"github.com/networkbuster/aidefense/internal/models"
)

// Action is one named automated mitigation step. Implementations may be
// slow and may fail; the executor isolates both.
type Action interface {
	Name() string
	Execute(ctx context.Context, alert *models.Alert) error
}
