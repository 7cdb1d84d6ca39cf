package service

import (
	"context"
	"time"

	"legend-tracker/internal/clock"
	"legend-tracker/internal/domain"
	"legend-tracker/internal/metrics"
	"legend-tracker/internal/notify"
	"legend-tracker/internal/repository"

	"github.com/rs/zerolog"
)

type SeasonService struct {
	store    repository.Store
	clock    *clock.ClashClock
	notifier notify.Notifier
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

func NewSeasonService(store repository.Store, clk *clock.ClashClock, notifier notify.Notifier, m *metrics.Metrics, logger zerolog.Logger) *SeasonService {
	return &SeasonService{
		store:    store,
		clock:    clk,
		notifier: notifier,
		metrics:  m,
		logger:   logger.With().Str("job", "season_reset").Logger(),
	}
}

// Reset clears the seasonal log once per season. The armed/fired marker is stored with the
// season so a restart inside the reset minute cannot fire twice.
func (s *SeasonService) Reset(ctx context.Context, now time.Time) error {
	instant := s.clock.IsSeasonResetInstant(now)

	var ev *domain.SeasonResetEvent
	rearmed := false
	err := s.store.Update(ctx, func(st *domain.State) error {
		marker := &st.Season.Reset
		switch {
		case instant && marker.State == domain.ResetArmed:
			cleared := len(st.Season.Players)
			firedAt := now
			start := s.clock.DayKey(now)
			st.Season.Players = map[string]map[domain.DayKey]*domain.SeasonDay{}
			// A poll in the same minute may already have logged the first day of the new season.
			for tag, rec := range st.Registry.Players {
				if log := rec.LegendLog[start]; log != nil {
					st.Season.Players[tag] = map[domain.DayKey]*domain.SeasonDay{start: log.Archive()}
				}
			}
			*marker = domain.ResetMarker{
				State:       domain.ResetFired,
				FiredAt:     &firedAt,
				SeasonStart: start,
			}
			ev = &domain.SeasonResetEvent{
				FiredAt:        now,
				SeasonStart:    marker.SeasonStart,
				PlayersCleared: cleared,
			}
		case !instant && marker.State == domain.ResetFired:
			marker.State = domain.ResetArmed
			rearmed = true
		}
		return nil
	})
	if err != nil {
		return err
	}

	if rearmed {
		s.logger.Debug().Msg("season reset re-armed")
	}
	if ev == nil {
		return nil
	}

	ev.ID = notify.NewEventID()
	s.metrics.RecordSeasonReset()
	s.logger.Info().
		Str("season_start", string(ev.SeasonStart)).
		Int("players_cleared", ev.PlayersCleared).
		Str("next_reset", s.clock.NextSeasonReset(now.Add(time.Minute)).Format(time.RFC3339)).
		Msg("seasonal data cleared")
	if err := s.notifier.SeasonReset(ctx, *ev); err != nil {
		s.logger.Warn().Err(err).Str("event_id", ev.ID).Msg("failed to deliver season reset")
	}
	return nil
}
