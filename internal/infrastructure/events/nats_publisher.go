// Package events publishes domain events to NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/coinvault/coinvault/internal/application/ports"
	domainevents "github.com/coinvault/coinvault/internal/domain/events"
)

// publisher is the slice of *nats.Conn this package uses.
type publisher interface {
	Publish(subj string, data []byte) error
}

// Connect dials NATS with reconnect handling suited for a long-lived service.
func Connect(url string, log *slog.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("coinvault"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return conn, nil
}

var _ ports.EventPublisher = (*NATSPublisher)(nil)

// NATSPublisher emits posted-transaction events. Publishing is fire-and
// forget; the mutation outcome never depends on it.
type NATSPublisher struct {
	conn publisher
	log  *slog.Logger
}

func NewNATSPublisher(conn publisher, log *slog.Logger) *NATSPublisher {
	if log == nil {
		log = slog.Default()
	}
	return &NATSPublisher{conn: conn, log: log}
}

func (p *NATSPublisher) PublishTransactionPosted(ctx context.Context, event domainevents.TransactionPosted) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal transaction posted event: %w", err)
	}
	if err := p.conn.Publish(domainevents.SubjectTransactionPosted, payload); err != nil {
		return fmt.Errorf("publish transaction posted event: %w", err)
	}
	return nil
}

var _ ports.EventPublisher = NoopPublisher{}

// NoopPublisher is wired when no NATS URL is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishTransactionPosted(context.Context, domainevents.TransactionPosted) error {
	return nil
}
