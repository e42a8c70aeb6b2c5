package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// subjectPrefix scopes every published subject under the lottery namespace.
const subjectPrefix = "tombola.lottery"

// EventEnvelope wraps an event payload with delivery metadata
type EventEnvelope struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Timestamp time.Time       `json:"timestamp"`
	Source    string          `json:"source_service"`
	Payload   json.RawMessage `json:"payload"`
}

// NATSPublisher implements the Publisher interface over a NATS connection
type NATSPublisher struct {
	nc *nats.Conn
}

// NewNATSPublisher connects to the given NATS servers and returns a publisher
func NewNATSPublisher(servers string) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.Name("tombola-server"),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Error("NATS disconnected with error")
			} else {
				log.Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(servers, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{nc: nc}, nil
}

// Emit publishes the event as a JSON envelope. Publish failures are logged,
// never surfaced to the caller: event delivery must not fail lottery traffic.
func (p *NATSPublisher) Emit(ctx context.Context, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.WithError(err).WithField("eventType", event.Type()).Error("Failed to marshal event payload")
		return
	}

	envelope := EventEnvelope{
		EventID:   uuid.New().String(),
		EventType: string(event.Type()),
		Timestamp: time.Now().UTC(),
		Source:    "tombola",
		Payload:   payload,
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		log.WithError(err).WithField("eventType", event.Type()).Error("Failed to marshal event envelope")
		return
	}

	subject := fmt.Sprintf("%s.%s", subjectPrefix, event.Type())
	if err := p.nc.Publish(subject, data); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"subject":   subject,
			"eventType": event.Type(),
		}).Error("Failed to publish event to NATS")
		return
	}

	log.WithFields(log.Fields{
		"subject": subject,
		"eventId": envelope.EventID,
	}).Debug("Published event to NATS")
}

// Close drains and closes the underlying NATS connection
func (p *NATSPublisher) Close() {
	if err := p.nc.Drain(); err != nil {
		log.WithError(err).Warn("Failed to drain NATS connection")
	}
}
