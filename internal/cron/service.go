package cron

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderbridge-backend/pkg/logger"
	"github.com/angelmondragon/orderbridge-backend/pkg/metrics"
)

const maxTick = time.Minute

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Locker   Locker
	Metrics  *metrics.CronJobMetrics
	// Tick is how often due jobs are checked. Defaults to the shortest job
	// interval, capped at a minute.
	Tick time.Duration
}

// Service runs due jobs on each tick. Every job takes its own fleet-wide lock,
// so a slow retention pass never holds back the intent sweep.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	locker   Locker
	metrics  *metrics.CronJobMetrics
	tick     time.Duration
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Locker == nil {
		return nil, errors.New("locker required")
	}
	if params.Registry == nil || len(params.Registry.entries) == 0 {
		return nil, errors.New("at least one job required")
	}
	tick := params.Tick
	if tick <= 0 {
		tick = min(params.Registry.shortest(), maxTick)
	}
	return &Service{
		logg:     params.Logger,
		registry: params.Registry,
		locker:   params.Locker,
		metrics:  params.Metrics,
		tick:     tick,
		now:      time.Now,
	}, nil
}

func (s *Service) Run(ctx context.Context) error {
	s.runDue(ctx)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service stopping")
			return ctx.Err()
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

// runDue returns the number of jobs that ran and failed.
func (s *Service) runDue(ctx context.Context) (ran, failed int) {
	for _, e := range s.registry.due(s.now()) {
		if ctx.Err() != nil {
			return ran, failed
		}
		executed, err := s.runEntry(ctx, e)
		if executed {
			ran++
			if err != nil {
				failed++
			}
		}
	}
	return ran, failed
}

func (s *Service) runEntry(ctx context.Context, e *entry) (bool, error) {
	name := e.job.Name()
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": name, "run_id": uuid.NewString()})

	// the lease outlives one interval so a long run is never doubled up
	unlock, ok, err := s.locker.TryLock(jobCtx, name, 2*e.every)
	if err != nil {
		// leave next untouched so the job is retried on the next tick
		s.logg.Error(jobCtx, "cron lock unavailable", err)
		return false, err
	}
	e.next = s.now().Add(e.every)
	if !ok {
		s.logg.Debug(jobCtx, "job held by another worker")
		s.metrics.IncSkipped(name)
		return false, nil
	}
	defer func() {
		if err := unlock(context.WithoutCancel(jobCtx)); err != nil {
			s.logg.Error(jobCtx, "failed to release cron lock", err)
		}
	}()

	start := time.Now()
	err = e.job.Run(jobCtx)
	elapsed := time.Since(start)
	s.metrics.ObserveRun(name, err, elapsed)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		return true, err
	}
	s.logg.Info(jobCtx, "job completed")
	return true, nil
}
