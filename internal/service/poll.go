package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"legend-tracker/internal/clock"
	"legend-tracker/internal/config"
	"legend-tracker/internal/domain"
	"legend-tracker/internal/legend"
	"legend-tracker/internal/metrics"
	"legend-tracker/internal/notify"
	"legend-tracker/internal/repository"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type Fetcher interface {
	FetchTrophies(ctx context.Context, tag string) (int, error)
}

type PollService struct {
	store       repository.Store
	fetcher     Fetcher
	processor   *legend.Processor
	clock       *clock.ClashClock
	notifier    notify.Notifier
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	concurrency int
}

func NewPollService(
	store repository.Store,
	fetcher Fetcher,
	processor *legend.Processor,
	clk *clock.ClashClock,
	notifier notify.Notifier,
	m *metrics.Metrics,
	cfg *config.Config,
	logger zerolog.Logger,
) *PollService {
	concurrency := cfg.PollConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &PollService{
		store:       store,
		fetcher:     fetcher,
		processor:   processor,
		clock:       clk,
		notifier:    notifier,
		metrics:     m,
		logger:      logger.With().Str("job", "poll").Logger(),
		concurrency: concurrency,
	}
}

// Poll fetches every tracked player once and records any trophy change. A player whose
// fetch fails is skipped until the next tick. A store failure ends the tick with an error.
func (s *PollService) Poll(ctx context.Context, now time.Time) error {
	st, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load players: %w", err)
	}
	tags := make([]string, 0, len(st.Registry.Players))
	for tag := range st.Registry.Players {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	s.metrics.SetTrackedPlayers(len(tags))
	if len(tags) == 0 {
		return nil
	}

	day := s.clock.DayKey(now)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, tag := range tags {
		g.Go(func() error {
			return s.pollOne(gctx, tag, day, now)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.logger.Debug().Int("players", len(tags)).Str("day", string(day)).Msg("poll finished")
	return nil
}

func (s *PollService) pollOne(ctx context.Context, tag string, day domain.DayKey, now time.Time) error {
	start := time.Now()
	trophies, err := s.fetcher.FetchTrophies(ctx, tag)
	if err != nil {
		s.metrics.RecordFetch(fetchResult(err), time.Since(start))
		if ctx.Err() == nil {
			s.logger.Warn().Err(err).Str("tag", tag).Msg("failed to fetch player, skipping")
		}
		return nil
	}
	s.metrics.RecordFetch("ok", time.Since(start))

	var ev *domain.ChangeEvent
	err = s.store.Update(ctx, func(st *domain.State) error {
		ev = s.processor.Observe(st, tag, trophies, day, now)
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Str("tag", tag).Msg("failed to record trophies")
		return fmt.Errorf("failed to record trophies for %s: %w", tag, err)
	}
	if ev == nil {
		return nil
	}

	ev.ID = notify.NewEventID()
	s.metrics.RecordTrophyEvent(string(ev.Kind))
	s.logger.Info().
		Str("tag", tag).
		Str("kind", string(ev.Kind)).
		Int("delta", ev.Delta).
		Int("trophies", ev.Trophies).
		Msg("trophy change recorded")
	if err := s.notifier.TrophyChange(ctx, *ev); err != nil {
		s.logger.Warn().Err(err).Str("tag", tag).Str("event_id", ev.ID).Msg("failed to deliver trophy change")
	}
	return nil
}

func fetchResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrNetworkTransient):
		return "network"
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return "unavailable"
	case errors.Is(err, domain.ErrDataShape):
		return "bad_payload"
	default:
		return "error"
	}
}
