// Package events publishes workflow domain events to NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/pkg/config"
)

// Event names, appended to the configured subject prefix.
const (
	ApplicationApproved = "application.approved"
	ApplicationRejected = "application.rejected"
	PaymentSettled      = "payment.settled"
	ReviewRecorded      = "review.recorded"
)

// Envelope wraps every published payload.
type Envelope struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurredAt"`
	Data       interface{} `json:"data"`
}

// Publisher emits domain events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event string, data interface{}) error
	Close()
}

type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATSPublisher publishes JSON envelopes on core NATS subjects.
type NATSPublisher struct {
	nc     conn
	prefix string
	logger *zap.Logger
}

// Connect dials NATS. An empty URL yields a Nop publisher.
func Connect(cfg config.EventsConfig, logger *zap.Logger) (Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.NATSURL) == "" {
		return Nop{}, nil
	}
	nc, err := nats.Connect(cfg.NATSURL,
		nats.Name("tutorhub-api"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return newNATSPublisher(nc, cfg.SubjectPrefix, logger), nil
}

func newNATSPublisher(nc conn, prefix string, logger *zap.Logger) *NATSPublisher {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = "tutorhub"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSPublisher{nc: nc, prefix: prefix, logger: logger}
}

// Subject returns the full subject for an event name.
func (p *NATSPublisher) Subject(event string) string {
	return p.prefix + "." + event
}

// Publish marshals data into an Envelope and publishes it.
func (p *NATSPublisher) Publish(ctx context.Context, event string, data interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(Envelope{
		ID:         uuid.NewString(),
		Type:       event,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event, err)
	}
	if err := p.nc.Publish(p.Subject(event), payload); err != nil {
		return fmt.Errorf("publish %s event: %w", event, err)
	}
	return nil
}

// Close drains the connection.
func (p *NATSPublisher) Close() {
	if err := p.nc.Drain(); err != nil {
		p.logger.Warn("nats drain failed", zap.Error(err))
	}
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, string, interface{}) error { return nil }

// Close implements Publisher.
func (Nop) Close() {}
