package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"legend-tracker/internal/constants"
	"legend-tracker/internal/domain"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

type NATSNotifier struct {
	conn   *nats.Conn
	logger zerolog.Logger
}

func NewNATSNotifier(url string, logger zerolog.Logger) (*NATSNotifier, error) {
	logger = logger.With().Str("sink", "nats").Logger()
	conn, err := nats.Connect(url,
		nats.Name("legend-tracker"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	logger.Info().Str("url", url).Msg("nats notifier connected")
	return &NATSNotifier{conn: conn, logger: logger}, nil
}

func (n *NATSNotifier) TrophyChange(_ context.Context, ev domain.ChangeEvent) error {
	return n.publish(constants.TrophyChangeSubject, ev)
}

func (n *NATSNotifier) SeasonReset(_ context.Context, ev domain.SeasonResetEvent) error {
	return n.publish(constants.SeasonResetSubject, ev)
}

func (n *NATSNotifier) publish(subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := n.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

func (n *NATSNotifier) Close() error {
	return n.conn.Drain()
}
