package detector

import (
	"context"
	"sync"

	"github.com/networkbuster/aidefense/internal/models"
)

// queue cap; oldest entries are dropped when exceeded so a noisy publisher
// cannot grow memory without bound
const externalQueueLimit = 1000

// ExternalDetector buffers findings submitted by other systems (via the
// event bus) and hands them to the coordinator on the next scan.
type ExternalDetector struct {
	mu      sync.Mutex
	pending []models.Finding
}

func NewExternalDetector() *ExternalDetector {
	return &ExternalDetector{}
}

func (d *ExternalDetector) Name() string {
	return "external_findings"
}

// Enqueue adds a submitted finding to the pending buffer. Safe for
// concurrent use; called from the event bus subscriber.
func (d *ExternalDetector) Enqueue(finding models.Finding) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = append(d.pending, finding)
	if len(d.pending) > externalQueueLimit {
		d.pending = d.pending[len(d.pending)-externalQueueLimit:]
	}
}

// Scan drains and returns all pending findings in arrival order.
func (d *ExternalDetector) Scan(ctx context.Context) ([]models.Finding, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.pending) == 0 {
		return nil, nil
	}

	findings := d.pending
	d.pending = nil
	return findings, nil
}

// PendingCount returns the number of buffered findings.
func (d *ExternalDetector) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.pending)
}
