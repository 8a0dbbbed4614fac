package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/screentime-server/screentime-server/internal/config"
	"github.com/screentime-server/screentime-server/internal/control"
)

// NATSPublisher publishes state changes to <prefix>.<device id>.state
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
}

// NewNATSPublisher creates a publisher on an open connection
func NewNATSPublisher(nc *nats.Conn, prefix string) *NATSPublisher {
	return &NATSPublisher{nc: nc, prefix: prefix}
}

// ConnectNATS opens a connection with reconnect handling
func ConnectNATS(cfg *config.NATSConfig) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("devicestate-server"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectInterval),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			event := log.Error().Err(err)
			if sub != nil {
				event = event.Str("subject", sub.Subject)
			}
			event.Msg("NATS error")
		}),
	}
	if cfg.Username != "" {
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

// Name implements Sink
func (p *NATSPublisher) Name() string {
	return "nats"
}

// Subject returns the subject a change is published on
func (p *NATSPublisher) Subject(change *control.StateChange) string {
	return fmt.Sprintf("%s.%s.state", p.prefix, change.DeviceID)
}

// Notify implements Sink
func (p *NATSPublisher) Notify(_ context.Context, change *control.StateChange) error {
	data, err := json.Marshal(newMessage(change))
	if err != nil {
		return fmt.Errorf("marshal state change: %w", err)
	}
	if err := p.nc.Publish(p.Subject(change), data); err != nil {
		return fmt.Errorf("publish state change: %w", err)
	}
	return nil
}
