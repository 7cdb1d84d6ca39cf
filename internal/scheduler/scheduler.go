package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"legend-tracker/internal/clock"
	"legend-tracker/internal/metrics"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type Job struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context, now time.Time) error
}

// Scheduler runs each job on wall-clock boundaries that are multiples of its interval.
// Runs of the same job never overlap; a failed run is logged and retried on the next tick.
type Scheduler struct {
	clock   clock.Clock
	logger  zerolog.Logger
	metrics *metrics.Metrics
	jobs    []Job

	mu     sync.Mutex
	cancel context.CancelFunc
	group  *errgroup.Group
}

func New(c clock.Clock, logger zerolog.Logger, m *metrics.Metrics, jobs ...Job) *Scheduler {
	return &Scheduler{
		clock:   c,
		logger:  logger.With().Str("component", "scheduler").Logger(),
		metrics: m,
		jobs:    jobs,
	}
}

// Start launches one loop per job. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return errors.New("scheduler already started")
	}
	for _, job := range s.jobs {
		if job.Every <= 0 {
			return fmt.Errorf("job %s has no interval", job.Name)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	for _, job := range s.jobs {
		g.Go(func() error {
			s.loop(ctx, job)
			return nil
		})
	}
	s.cancel = cancel
	s.group = g
	s.logger.Info().Int("jobs", len(s.jobs)).Msg("scheduler started")
	return nil
}

// Stop cancels every loop and waits for in-flight runs to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	cancel, g := s.cancel, s.group
	s.cancel, s.group = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	err := g.Wait()
	s.logger.Info().Msg("scheduler stopped")
	return err
}

// Tick runs every job once, in registration order, at the given instant.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) error {
	var errs []error
	for _, job := range s.jobs {
		if err := s.run(ctx, job, now); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", job.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	for {
		now := s.clock.Now()
		select {
		case <-ctx.Done():
			return
		case t := <-s.clock.After(NextBoundary(now, job.Every).Sub(now)):
			_ = s.run(ctx, job, t)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, job Job, now time.Time) error {
	start := time.Now()
	err := job.Run(ctx, now)
	took := time.Since(start)
	if s.metrics != nil {
		s.metrics.RecordJob(job.Name, err, took)
	}
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error().Err(err).Str("job", job.Name).Dur("took", took).Msg("job failed")
		}
		return err
	}
	s.logger.Debug().Str("job", job.Name).Dur("took", took).Msg("job done")
	return nil
}

// NextBoundary returns the first multiple of every strictly after now.
func NextBoundary(now time.Time, every time.Duration) time.Time {
	return now.Truncate(every).Add(every)
}
