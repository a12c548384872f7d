package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/aquaflow-backend/pkg/logger"
	"github.com/angelmondragon/aquaflow-backend/pkg/metrics"
)

const defaultInterval = 24 * time.Hour

// ErrLockHeld means another worker owns the cron lock.
var ErrLockHeld = errors.New("cron lock held by another worker")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

// Service runs every registered job once per interval. Only the worker
// holding the lock runs a cycle; the others skip it.
type Service struct {
	logg     *logger.Logger
	jobs     *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
}

func NewService(p ServiceParams) (*Service, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger required")
	case p.Lock == nil:
		return nil, errors.New("lock required")
	}
	s := &Service{
		logg:     p.Logger,
		jobs:     p.Registry,
		lock:     p.Lock,
		metrics:  p.Metrics,
		interval: p.Interval,
	}
	if s.jobs == nil {
		s.jobs = NewRegistry()
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	return s, nil
}

// Run starts a cycle right away, then one per interval until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		switch err := s.runCycle(ctx); {
		case errors.Is(err, ErrLockHeld):
			s.logg.Info(ctx, "cron.cycle.skipped")
		case err != nil:
			s.logg.Error(ctx, "cron.cycle.failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron.stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// runCycle keeps going after a failed job and returns every failure combined.
func (s *Service) runCycle(ctx context.Context) error {
	return s.locked(ctx, func() error {
		var errs error
		jobs := s.jobs.Jobs()
		for _, job := range jobs {
			errs = multierr.Append(errs, s.runJob(ctx, job))
		}
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"jobs":   len(jobs),
			"failed": len(multierr.Errors(errs)),
		}), "cron.cycle.done")
		return errs
	})
}

// RunJob runs one named job under the lock, for manual invocations.
func (s *Service) RunJob(ctx context.Context, name string) error {
	job, ok := s.jobs.Lookup(name)
	if !ok {
		return fmt.Errorf("unknown cron job %q", name)
	}
	return s.locked(ctx, func() error { return s.runJob(ctx, job) })
}

// RunLocked runs fn under the cron lock without going through the registry.
func (s *Service) RunLocked(ctx context.Context, fn func() error) error {
	return s.locked(ctx, fn)
}

func (s *Service) locked(ctx context.Context, fn func() error) error {
	ok, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !ok {
		return ErrLockHeld
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "cron.lock.release_failed", err)
		}
	}()
	return fn()
}

// runJob converts a panicking job into an error so the cycle continues.
func (s *Service) runJob(ctx context.Context, job Job) (err error) {
	ctx = s.logg.WithField(ctx, "job", job.Name())
	began := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
		took := time.Since(began)
		s.metrics.Observe(job.Name(), took, err)
		ctx = s.logg.WithField(ctx, "duration_ms", took.Milliseconds())
		if err != nil {
			s.logg.Error(ctx, "cron.job.failed", err)
			err = fmt.Errorf("%s: %w", job.Name(), err)
			return
		}
		s.logg.Info(ctx, "cron.job.done")
	}()
	return job.Run(ctx)
}
