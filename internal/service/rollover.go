package service

import (
	"context"
	"time"

	"legend-tracker/internal/clock"
	"legend-tracker/internal/domain"
	"legend-tracker/internal/metrics"
	"legend-tracker/internal/repository"

	"github.com/rs/zerolog"
)

type RolloverService struct {
	store   repository.Store
	clock   *clock.ClashClock
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewRolloverService(store repository.Store, clk *clock.ClashClock, m *metrics.Metrics, logger zerolog.Logger) *RolloverService {
	return &RolloverService{
		store:   store,
		clock:   clk,
		metrics: m,
		logger:  logger.With().Str("job", "rollover").Logger(),
	}
}

// Rollover closes the legend day. During the reset minute every live day older than the
// new day is copied into the season and dropped from the live log. Entries already logged
// under the new day stay live, and the totals are recomputed from them. It runs at most
// once per day.
func (s *RolloverService) Rollover(ctx context.Context, now time.Time) error {
	if !s.clock.IsResetMinute(now) {
		return nil
	}
	today := s.clock.DayKey(now)

	var archived, dropped int
	done := false
	err := s.store.Update(ctx, func(st *domain.State) error {
		if st.Registry.LastRollover == today {
			return nil
		}
		seasonStart := st.Season.Reset.SeasonStart
		for tag, rec := range st.Registry.Players {
			for day, log := range rec.LegendLog {
				if day >= today {
					continue
				}
				delete(rec.LegendLog, day)
				if seasonStart != "" && day < seasonStart {
					dropped++
					continue
				}
				archiveDay(&st.Season, tag, day, log)
				archived++
			}
			rec.Legend = domain.Totals{}
			if log, ok := rec.LegendLog[today]; ok {
				rec.Legend = log.Totals()
			}
		}
		st.Registry.LastRollover = today
		done = true
		return nil
	})
	if err != nil {
		return err
	}
	if !done {
		return nil
	}

	s.metrics.RecordRollover()
	s.logger.Info().
		Str("day", string(today)).
		Int("archived", archived).
		Int("dropped", dropped).
		Msg("daily rollover complete")
	return nil
}

func archiveDay(season *domain.Season, tag string, day domain.DayKey, log *domain.DayLog) {
	if season.Players == nil {
		season.Players = map[string]map[domain.DayKey]*domain.SeasonDay{}
	}
	days := season.Players[tag]
	if days == nil {
		days = map[domain.DayKey]*domain.SeasonDay{}
		season.Players[tag] = days
	}
	sd := log.Archive()
	if prev, ok := days[day]; ok && sd.StartTrophies == nil {
		sd.StartTrophies = prev.StartTrophies
	}
	days[day] = sd
}
