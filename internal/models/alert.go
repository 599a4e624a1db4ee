package models

import (
	"time"

	"github.com/google/uuid"
)

// AlertStatus indicates how far an alert has progressed.
type AlertStatus string

const (
	StatusDetected  AlertStatus = "detected"
	StatusResponded AlertStatus = "responded"
)

// ResponseOutcome is the terminal result of one executed action.
type ResponseOutcome string

const (
	OutcomeExecuted ResponseOutcome = "executed"
	OutcomeFailed   ResponseOutcome = "failed"
)

// ResponseRecord captures one action execution against one alert.
type ResponseRecord struct {
	Action    string          `json:"action"`
	AlertID   string          `json:"alert_id"`
	Timestamp time.Time       `json:"timestamp"`
	Outcome   ResponseOutcome `json:"outcome"`
	Error     string          `json:"error,omitempty"`

	ExecutionTimeMs int64 `json:"execution_time_ms"`
}

// Alert is a Finding that survived deduplication and rate limiting and
// entered in-memory tracking. Alerts are append-only after admission: only
// Status and Responses change, and they only grow.
type Alert struct {
	ID string `json:"id"`

	Kind       string                 `json:"kind"`
	Confidence float64                `json:"confidence"`
	OccurredAt time.Time              `json:"occurred_at"`
	Origin     string                 `json:"origin"`
	Payload    map[string]interface{} `json:"payload,omitempty"`

	AdmittedAt time.Time        `json:"admitted_at"`
	Status     AlertStatus      `json:"status"`
	Responses  []ResponseRecord `json:"responses"`
}

// NewAlert promotes a finding to an alert at admission time.
func NewAlert(finding Finding, admittedAt time.Time) *Alert {
	return &Alert{
		ID:         uuid.NewString(),
		Kind:       finding.Kind,
		Confidence: finding.Confidence,
		OccurredAt: finding.OccurredAt,
		Origin:     finding.Origin,
		Payload:    finding.Payload,
		AdmittedAt: admittedAt,
		Status:     StatusDetected,
		Responses:  make([]ResponseRecord, 0),
	}
}

// Clone returns a deep copy so readers never share mutable state with the
// coordinator.
func (a *Alert) Clone() *Alert {
	clone := *a

	if a.Payload != nil {
		clone.Payload = make(map[string]interface{}, len(a.Payload))
		for k, v := range a.Payload {
			clone.Payload[k] = v
		}
	}

	clone.Responses = make([]ResponseRecord, len(a.Responses))
	copy(clone.Responses, a.Responses)

	return &clone
}
