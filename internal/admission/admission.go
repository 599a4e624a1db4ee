// Package admission implements the deduplication and rate-limiting step
// between raw detector findings and the coordinator's alert store.
package admission

import (
	"log"
	"math"
	"time"

	"github.com/networkbuster/aidefense/internal/models"
)

const (
	// DedupWindow collapses same-kind findings observed within this span.
	DedupWindow = 5 * time.Minute

	// CompareDepth bounds the duplicate comparison to the most recently
	// admitted alerts.
	CompareDepth = 10
)

// Config carries the tunables the coordinator owns.
type Config struct {
	MaxAlertsPerHour int
}

// windowEntry is the minimal view of an admitted alert needed for
// duplicate comparison.
type windowEntry struct {
	kind       string
	occurredAt time.Time
}

// Admit evaluates a batch of candidate findings against recently admitted
// alerts and returns the subset to admit, in discovery order.
//
// recent must be the alerts admitted within the trailing hour, oldest
// first. The function is pure: it never mutates its inputs and performs no
// I/O beyond logging.
//
// Known limitation: the hourly rate limit is a hard cutoff. Once the
// trailing hour is saturated, every candidate in the batch is dropped, even
// high-confidence ones. This trades possible misses during an alert storm
// for a bounded load on the response executor.
func Admit(recent []*models.Alert, candidates []models.Finding, cfg Config, now time.Time) []models.Finding {
	if len(candidates) == 0 {
		return nil
	}

	hourAgo := now.Add(-time.Hour)
	inLastHour := 0
	for _, a := range recent {
		if a.AdmittedAt.After(hourAgo) {
			inLastHour++
		}
	}

	if cfg.MaxAlertsPerHour > 0 && inLastHour >= cfg.MaxAlertsPerHour {
		log.Printf("Alert rate limit exceeded (%d in trailing hour), dropping %d candidates",
			inLastHour, len(candidates))
		return nil
	}

	// Duplicate comparison window: the last CompareDepth admitted alerts.
	// Candidates admitted during this call join the window so same-kind
	// findings within one batch also collapse.
	window := make([]windowEntry, 0, CompareDepth+len(candidates))
	start := 0
	if len(recent) > CompareDepth {
		start = len(recent) - CompareDepth
	}
	for _, a := range recent[start:] {
		window = append(window, windowEntry{kind: a.Kind, occurredAt: a.OccurredAt})
	}

	var admitted []models.Finding
	for _, candidate := range candidates {
		candidate.Confidence = normalizeConfidence(candidate.Confidence)
		if candidate.Confidence == 0 {
			continue
		}

		if isDuplicate(window, candidate) {
			log.Printf("Dropping duplicate finding: kind=%s origin=%s", candidate.Kind, candidate.Origin)
			continue
		}

		admitted = append(admitted, candidate)
		window = append(window, windowEntry{kind: candidate.Kind, occurredAt: candidate.OccurredAt})
		if len(window) > CompareDepth {
			window = window[1:]
		}
	}

	return admitted
}

func isDuplicate(window []windowEntry, candidate models.Finding) bool {
	for _, entry := range window {
		if entry.kind != candidate.Kind {
			continue
		}

		diff := candidate.OccurredAt.Sub(entry.occurredAt)
		if diff < 0 {
			diff = -diff
		}
		if diff < DedupWindow {
			return true
		}
	}

	return false
}

// normalizeConfidence clamps into [0,1]; NaN counts as undefined and maps
// to zero, which is never admitted.
func normalizeConfidence(c float64) float64 {
	if math.IsNaN(c) || c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
