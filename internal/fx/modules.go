package fx

import (
	"legend-tracker/internal/api"
	"legend-tracker/internal/clock"
	"legend-tracker/internal/config"
	"legend-tracker/internal/legend"
	"legend-tracker/internal/logger"
	"legend-tracker/internal/metrics"
	"legend-tracker/internal/notify"
	"legend-tracker/internal/repository"
	"legend-tracker/internal/scheduler"
	"legend-tracker/internal/server"
	"legend-tracker/internal/service"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func ProvideClashClock(cfg *config.Config) (*clock.ClashClock, error) {
	return clock.NewClashClock(cfg.TimeZone, cfg.ResetHour, cfg.ResetMinute)
}

func ProvideProcessor(c *clock.ClashClock) *legend.Processor {
	return legend.NewProcessor(c)
}

func ProvideFetcher(c *api.CocClient) service.Fetcher {
	return c
}

func ProvideScheduler(
	cfg *config.Config,
	c clock.Clock,
	poll *service.PollService,
	rollover *service.RolloverService,
	season *service.SeasonService,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *scheduler.Scheduler {
	return scheduler.New(c, logger, m,
		scheduler.Job{Name: "season_reset", Every: cfg.SeasonInterval, Run: season.Reset},
		scheduler.Job{Name: "rollover", Every: cfg.RolloverInterval, Run: rollover.Rollover},
		scheduler.Job{Name: "poll", Every: cfg.PollInterval, Run: poll.Poll},
	)
}

var Module = fx.Options(
	logger.Module,
	config.Module,
	fx.Provide(metrics.New),
	// storage
	fx.Provide(repository.New),
	// time
	fx.Provide(clock.Real),
	fx.Provide(ProvideClashClock),
	fx.Provide(ProvideProcessor),
	// api client
	fx.Provide(api.NewCocClient),
	fx.Provide(ProvideFetcher),
	// notifications
	fx.Provide(notify.New),
	// svc
	fx.Provide(service.NewPlayerService),
	fx.Provide(service.NewPollService),
	fx.Provide(service.NewRolloverService),
	fx.Provide(service.NewSeasonService),
	fx.Provide(ProvideScheduler),
	// server
	fx.Provide(server.NewTrackerServer),
)
