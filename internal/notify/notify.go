package notify

import (
	"context"
	"errors"
	"fmt"

	"legend-tracker/internal/config"
	"legend-tracker/internal/domain"
	"legend-tracker/internal/metrics"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// Notifier hands events to whatever renders them. Delivery is best effort.
type Notifier interface {
	TrophyChange(ctx context.Context, ev domain.ChangeEvent) error
	SeasonReset(ctx context.Context, ev domain.SeasonResetEvent) error
	Close() error
}

func NewEventID() string {
	id, err := gonanoid.New()
	if err != nil {
		// Only fails if the system random source is broken.
		panic(fmt.Sprintf("failed to generate nanoid: %v", err))
	}
	return id
}

type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("sink", "log").Logger()}
}

func (n *LogNotifier) TrophyChange(_ context.Context, ev domain.ChangeEvent) error {
	n.logger.Info().
		Str("event_id", ev.ID).
		Str("tag", ev.PlayerTag).
		Str("name", ev.PlayerName).
		Str("kind", string(ev.Kind)).
		Int("delta", ev.Delta).
		Ints("entries", ev.Entries).
		Int("trophies", ev.Trophies).
		Str("day", string(ev.DayKey)).
		Msg("legend update")
	return nil
}

func (n *LogNotifier) SeasonReset(_ context.Context, ev domain.SeasonResetEvent) error {
	n.logger.Info().
		Str("event_id", ev.ID).
		Time("fired_at", ev.FiredAt).
		Str("season_start", string(ev.SeasonStart)).
		Int("players_cleared", ev.PlayersCleared).
		Msg("seasonal data cleared, a new season begins")
	return nil
}

func (n *LogNotifier) Close() error { return nil }

type namedNotifier struct {
	name string
	Notifier
}

// Multi fans an event out to every sink. A failing sink does not stop the others.
type Multi struct {
	sinks   []namedNotifier
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

func NewMulti(logger zerolog.Logger, m *metrics.Metrics) *Multi {
	return &Multi{logger: logger, metrics: m}
}

func (m *Multi) Add(name string, n Notifier) {
	m.sinks = append(m.sinks, namedNotifier{name: name, Notifier: n})
}

func (m *Multi) TrophyChange(ctx context.Context, ev domain.ChangeEvent) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.TrophyChange(ctx, ev); err != nil {
			m.failed(s.name, ev.ID, err)
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) SeasonReset(ctx context.Context, ev domain.SeasonResetEvent) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.SeasonReset(ctx, ev); err != nil {
			m.failed(s.name, ev.ID, err)
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) failed(sink, eventID string, err error) {
	m.logger.Warn().Err(err).Str("sink", sink).Str("event_id", eventID).Msg("notification failed")
	if m.metrics != nil {
		m.metrics.RecordNotifyError(sink)
	}
}

// New builds the sinks named in config and closes them when the app stops.
func New(lc fx.Lifecycle, cfg *config.Config, logger zerolog.Logger, m *metrics.Metrics) (Notifier, error) {
	multi := NewMulti(logger, m)
	for _, sink := range cfg.Sinks() {
		switch sink {
		case "log":
			multi.Add(sink, NewLogNotifier(logger))
		case "nats":
			n, err := NewNATSNotifier(cfg.NATSURL, logger)
			if err != nil {
				multi.Close()
				return nil, err
			}
			multi.Add(sink, n)
		case "kafka":
			multi.Add(sink, NewKafkaNotifier(cfg.Brokers(), logger))
		}
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return multi.Close()
		},
	})
	return multi, nil
}
