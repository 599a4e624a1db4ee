package eventbus

import (
	"encoding/json"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/networkbuster/aidefense/internal/models"
)

// FindingSink receives externally submitted findings. Implemented by the
// external-findings detector.
type FindingSink interface {
	Enqueue(finding models.Finding)
}

// Subscriber listens for findings submitted by other systems on the
// "findings.external" topic and feeds them into the coordinator's next
// cycle via the sink.
type Subscriber struct {
	conn         *nats.Conn
	subscription *nats.Subscription
	sink         FindingSink
}

func NewSubscriber(natsURL string, sink FindingSink) (*Subscriber, error) {
	conn, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
	)

	if err != nil {
		return nil, err
	}

	log.Printf("Defense (Sub) connected to NATS at %s", natsURL)

	return &Subscriber{
		conn: conn,
		sink: sink,
	}, nil
}

// Start begins listening for external findings.
func (s *Subscriber) Start() error {
	var err error

	log.Printf("Subscribing to 'findings.external'...")

	s.subscription, err = s.conn.Subscribe("findings.external", func(msg *nats.Msg) {
		s.handleFinding(msg)
	})

	if err != nil {
		return err
	}

	log.Printf("Subscribed to 'findings.external'")

	return nil
}

func (s *Subscriber) handleFinding(msg *nats.Msg) {
	var finding models.Finding
	if err := json.Unmarshal(msg.Data, &finding); err != nil {
		log.Printf("Failed to unmarshal external finding: %v", err)
		return
	}

	if finding.Kind == "" {
		log.Printf("Dropping external finding without kind")
		return
	}

	if finding.OccurredAt.IsZero() {
		finding.OccurredAt = time.Now().UTC()
	}
	if finding.Origin == "" {
		finding.Origin = "external"
	}

	s.sink.Enqueue(finding)

	log.Printf("Queued external finding: kind=%s confidence=%.2f origin=%s",
		finding.Kind, finding.Confidence, finding.Origin)
}

func (s *Subscriber) Close() {
	if s.subscription != nil {
		s.subscription.Unsubscribe()
	}

	if s.conn != nil {
		s.conn.Close()
		log.Printf("Defense (Sub) disconnected from NATS")
	}
}

func (s *Subscriber) IsConnected() bool {
	return s.conn != nil && s.conn.IsConnected()
}
