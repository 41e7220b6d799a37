package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/tableorders-backend/pkg/logger"
	"github.com/angelmondragon/tableorders-backend/pkg/metrics"
)

const defaultInterval = time.Minute

var (
	errServiceLogger = errors.New("cron service: logger required")
	errServiceLock   = errors.New("cron service: lock required")
)

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

// Service wakes every interval and, while holding the cluster-wide lock, runs the
// registered jobs whose period has elapsed.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration

	lastRun map[string]time.Time
	now     func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errServiceLogger
	case params.Lock == nil:
		return nil, errServiceLock
	}
	svc := &Service{
		logg:     params.Logger,
		registry: params.Registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: params.Interval,
		lastRun:  make(map[string]time.Time),
		now:      time.Now,
	}
	if svc.registry == nil {
		svc.registry = NewRegistry()
	}
	if svc.interval <= 0 {
		svc.interval = defaultInterval
	}
	return svc, nil
}

// Run ticks until ctx is canceled. The first cycle starts immediately.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.runCycle(ctx); err != nil {
			s.logg.Error(ctx, "cron cycle failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce executes a single cycle with every job treated as due.
func (s *Service) RunOnce(ctx context.Context) error {
	clear(s.lastRun)
	return s.runCycle(ctx)
}

func (s *Service) runCycle(ctx context.Context) error {
	due := s.dueJobs()
	if len(due) == 0 {
		return nil
	}

	held, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire cron lock: %w", err)
	}
	if !held {
		s.logg.Debug(ctx, "cron lock held elsewhere, skipping cycle")
		s.metrics.IncSkipped()
		return nil
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "cron lock release failed", err)
		}
	}()

	for i, job := range due {
		if i > 0 && !s.stillHeld(ctx) {
			s.logg.Warn(s.logg.WithField(ctx, "remaining_jobs", len(due)-i), "cron lease lost mid-cycle")
			return nil
		}
		s.runJob(ctx, job)
	}
	return nil
}

func (s *Service) dueJobs() []Job {
	now := s.now()
	var due []Job
	for _, job := range s.registry.Jobs() {
		every := time.Duration(0)
		if p, ok := job.(Periodic); ok {
			every = p.Every()
		}
		last, ran := s.lastRun[job.Name()]
		if every <= 0 || !ran || now.Sub(last) >= every {
			due = append(due, job)
		}
	}
	return due
}

// stillHeld renews the lease between jobs when the lock supports it.
func (s *Service) stillHeld(ctx context.Context) bool {
	renewer, ok := s.lock.(Renewer)
	if !ok {
		return true
	}
	held, err := renewer.Renew(ctx)
	if err != nil {
		s.logg.Error(ctx, "cron lease renewal failed", err)
		return false
	}
	return held
}

func (s *Service) runJob(ctx context.Context, job Job) {
	name := job.Name()
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": name, "event": "cron.job"})

	started := s.now()
	s.lastRun[name] = started
	err := job.Run(jobCtx)
	elapsed := s.now().Sub(started)
	s.metrics.ObserveRun(name, elapsed, err)

	jobCtx = s.logg.WithField(jobCtx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "cron job failed", err)
		return
	}
	s.logg.Info(jobCtx, "cron job finished")
}
