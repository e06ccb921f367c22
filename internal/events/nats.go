package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/collection-ledger/internal/domain"
)

// SubjectPrefix is prepended to the event type to form the NATS subject
const SubjectPrefix = "ledger."

const sourceService = "collection-ledger"

// Envelope wraps an event payload on the wire
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceService string          `json:"source_service"`
	Payload       json.RawMessage `json:"payload"`
}

// Subject maps an event type to its NATS subject
func Subject(eventType domain.EventType) string {
	return SubjectPrefix + string(eventType)
}

// NewEnvelope serialises an event into its wire envelope
func NewEnvelope(event domain.LedgerEvent) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	data, err := json.Marshal(Envelope{
		EventID:       event.ID.String(),
		EventType:     string(event.Type),
		Timestamp:     event.OccurredAt,
		SourceService: sourceService,
		Payload:       payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event envelope: %w", err)
	}
	return data, nil
}

// NATSPublisher publishes ledger events on core NATS subjects
type NATSPublisher struct {
	conn *nats.Conn
	log  *logrus.Logger
}

// Connect dials the NATS servers with reconnect handling
func Connect(servers string, log *logrus.Logger) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name(sourceService),
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

	log.WithField("servers", servers).Info("Connected to NATS")
	return nc, nil
}

// NewNATSPublisher creates a publisher over an open connection
func NewNATSPublisher(conn *nats.Conn, log *logrus.Logger) *NATSPublisher {
	return &NATSPublisher{conn: conn, log: log}
}

// Publish sends the event to ledger.<type>
func (p *NATSPublisher) Publish(ctx context.Context, event domain.LedgerEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := NewEnvelope(event)
	if err != nil {
		return err
	}

	subject := Subject(event.Type)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish event to NATS: %w", err)
	}

	p.log.WithFields(logrus.Fields{
		"event_type": event.Type,
		"event_id":   event.ID,
		"subject":    subject,
	}).Debug("Published ledger event")

	return nil
}

// Close drains pending messages and closes the connection
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
