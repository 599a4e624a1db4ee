package eventbus

import (
	"encoding/json"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/networkbuster/aidefense/internal/models"
)

// Publisher publishes defense events to NATS.
type Publisher struct {
	conn *nats.Conn
}

// NewPublisher creates a new event bus publisher.
func NewPublisher(natsURL string) (*Publisher, error) {
	conn, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}

	log.Printf("Defense (Pub) connected to NATS at %s", natsURL)

	return &Publisher{
		conn: conn,
	}, nil
}

// PublishAlert publishes an admitted alert to the "alerts.admitted" topic.
func (p *Publisher) PublishAlert(alert *models.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return err
	}

	if err := p.conn.Publish("alerts.admitted", data); err != nil {
		return err
	}

	log.Printf("Published alert to event bus: [%s] confidence=%.2f", alert.Kind, alert.Confidence)

	return nil
}

// PublishResponse publishes an executed response record to the
// "responses.executed" topic.
func (p *Publisher) PublishResponse(record models.ResponseRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	if err := p.conn.Publish("responses.executed", data); err != nil {
		return err
	}

	log.Printf("Published response to event bus: action=%s alert=%s outcome=%s",
		record.Action, record.AlertID, record.Outcome)

	return nil
}

// UpgradeRequest is published when the trigger_upgrade action fires.
type UpgradeRequest struct {
	AlertID   string `json:"alert_id"`
	Kind      string `json:"kind"`
	Reason    string `json:"reason"`
	Timestamp int64  `json:"timestamp"`
}

// PublishUpgradeRequest publishes to the "upgrades.requested" topic.
func (p *Publisher) PublishUpgradeRequest(request *UpgradeRequest) error {
	data, err := json.Marshal(request)
	if err != nil {
		return err
	}

	if err := p.conn.Publish("upgrades.requested", data); err != nil {
		return err
	}

	log.Printf("Published upgrade request to event bus: alert=%s reason=%s",
		request.AlertID, request.Reason)

	return nil
}

// Close closes the NATS connection.
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
		log.Println("Defense (Pub) disconnected from NATS")
	}
}

// IsConnected returns true if connected to NATS.
func (p *Publisher) IsConnected() bool {
	return p.conn != nil && p.conn.IsConnected()
}
