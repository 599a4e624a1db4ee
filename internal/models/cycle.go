package models

import "time"

// DetectorResult records one detector's contribution to a cycle.
type DetectorResult struct {
	Findings int    `json:"findings"`
	Error    string `json:"error,omitempty"`
}

// CycleRecord is the audit trail for one monitoring cycle. The coordinator
// keeps a bounded FIFO history of these.
type CycleRecord struct {
	StartedAt      time.Time                 `json:"started_at"`
	Duration       time.Duration             `json:"duration"`
	Detectors      map[string]DetectorResult `json:"detectors"`
	AlertsAdmitted int                       `json:"alerts_admitted"`
}
