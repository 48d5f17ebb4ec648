package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

const (
	SubjectGameSettled    = "coinflip.game.settled"
	SubjectGameCancelled  = "coinflip.game.cancelled"
	SubjectBalanceChanged = "coinflip.balance.changed"

	sourceService = "coinflip"
)

// Envelope wraps every event published on the bus.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceService string          `json:"source_service"`
	Payload       json.RawMessage `json:"payload"`
}

// Bus is the transport the fanout publishes to.
type Bus interface {
	Publish(subject string, data []byte) error
}

func encodeEnvelope(eventType string, payload any, now time.Time) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}
	data, err := json.Marshal(Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		Timestamp:     now.UTC(),
		SourceService: sourceService,
		Payload:       body,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event envelope: %w", err)
	}
	return data, nil
}

type NATSPublisher struct {
	nc *nats.Conn
}

// ConnectNATS dials the server and keeps reconnecting in the background.
func ConnectNATS(url string) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.Name(sourceService),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Error("NATS disconnected with error")
			} else {
				log.Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info("NATS reconnected")
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	log.WithField("url", url).Info("connected to NATS")
	return &NATSPublisher{nc: nc}, nil
}

func (p *NATSPublisher) Publish(subject string, data []byte) error {
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	log.WithFields(log.Fields{"subject": subject, "size": len(data)}).Debug("published event")
	return nil
}

// Close flushes pending publishes before closing the connection.
func (p *NATSPublisher) Close() {
	if err := p.nc.Drain(); err != nil {
		log.WithError(err).Warn("NATS drain failed")
		p.nc.Close()
	}
}
