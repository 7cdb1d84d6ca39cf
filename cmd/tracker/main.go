package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	_ "time/tzdata"

	"legend-tracker/internal/clock"
	"legend-tracker/internal/config"
	"legend-tracker/internal/constants"
	fxmodules "legend-tracker/internal/fx"
	"legend-tracker/internal/scheduler"
	"legend-tracker/internal/server"
	"legend-tracker/internal/service"

	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"
	"go.uber.org/fx"
)

func main() {
	fs := flag.NewFlagSet("legend-tracker", flag.ExitOnError)
	envFile := fs.String("env-file", ".env", "dotenv file loaded before the environment")
	configFile := fs.String("config", "", "optional YAML config file")
	once := fs.Bool("once", false, "run a single poll and exit")
	_ = fs.Parse(os.Args[1:])

	opts := []fx.Option{
		fx.Supply(config.Options{EnvFile: *envFile, ConfigFile: *configFile}),
		fxmodules.Module,
	}
	if *once {
		opts = append(opts, fx.Invoke(runOnce))
	} else {
		opts = append(opts, fx.Invoke(runScheduler), fx.Invoke(runServer))
	}

	app := fx.New(opts...)
	if err := app.Err(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	app.Run()
}

func runOnce(lc fx.Lifecycle, sd fx.Shutdowner, poll *service.PollService, c clock.Clock, logger zerolog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				code := 0
				if err := poll.Poll(context.Background(), c.Now()); err != nil {
					logger.Error().Err(err).Msg("poll failed")
					code = 1
				}
				_ = sd.Shutdown(fx.ExitCode(code))
			}()
			return nil
		},
	})
}

func runScheduler(lc fx.Lifecycle, s *scheduler.Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return s.Start(context.Background())
		},
		OnStop: func(ctx context.Context) error {
			return s.Stop()
		},
	})
}

func runServer(lc fx.Lifecycle, trackerServer *server.TrackerServer, cfg *config.Config, logger zerolog.Logger) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           trackerServer.Handler(),
		ReadHeaderTimeout: constants.ReadTimeout,
		WriteTimeout:      constants.RequestTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info().Str("addr", srv.Addr).Msg("server starting")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Fatal().Err(err).Msg("server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("server shutdown failed")
				return err
			}
			logger.Info().Msg("server stopped gracefully")
			return nil
		},
	})
}
