package models

import "time"

// Finding is a single candidate signal reported by a detector during one
// scan. Findings are ephemeral: after admission evaluation they are either
// discarded or promoted into an Alert.
type Finding struct {
	// Kind is the detector-defined category, e.g. "anomaly_detected",
	// "threat_privilege_escalation", "performance_degradation".
	Kind string `json:"kind"`

	// Confidence is in [0,1]. Values outside the range are normalised at
	// admission; NaN is treated as zero and never admitted.
	Confidence float64 `json:"confidence"`

	// OccurredAt is when the detector observed the signal.
	OccurredAt time.Time `json:"occurred_at"`

	// Origin identifies the producing detector.
	Origin string `json:"origin"`

	// Payload carries detector-specific detail for description and audit.
	// The coordinator never interprets it.
	Payload map[string]interface{} `json:"payload,omitempty"`
}
