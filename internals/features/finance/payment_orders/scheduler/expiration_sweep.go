package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"olimpiada_backend/internals/helpers/lock"
	"olimpiada_backend/internals/helpers/metrics"
)

const JobName = "expire_pending_orders"

// Expirer is the sweep body: it expires overdue pending orders and returns how many.
type Expirer interface {
	ExpireOverdue(ctx context.Context) (int, error)
}

type SweepResult struct {
	Ran     bool `json:"ran"`
	Skipped bool `json:"skipped"`
	Expired int  `json:"expired"`
}

type SweepConfig struct {
	LockTTL time.Duration
	Timeout time.Duration
}

// ExpirationSweep runs at most once at a time: an in-process guard handles
// overlapping ticks and the lease handles other processes. A tick that cannot
// get either is skipped, never queued.
type ExpirationSweep struct {
	expirer Expirer
	locker  lock.Locker
	cfg     SweepConfig
	log     *zap.Logger
	metrics *metrics.Metrics
	running atomic.Bool
}

func NewExpirationSweep(expirer Expirer, locker lock.Locker, cfg SweepConfig, log *zap.Logger, m *metrics.Metrics) *ExpirationSweep {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 55 * time.Minute
	}
	if cfg.Timeout <= 0 || cfg.Timeout > cfg.LockTTL {
		cfg.Timeout = cfg.LockTTL
	}
	return &ExpirationSweep{
		expirer: expirer,
		locker:  locker,
		cfg:     cfg,
		log:     log.Named("sweep").With(zap.String("job", JobName)),
		metrics: m,
	}
}

// RunExpirationSweep is the scheduler entry point.
func (s *ExpirationSweep) RunExpirationSweep() error {
	_, err := s.Run(context.Background())
	return err
}

func (s *ExpirationSweep) Run(ctx context.Context) (SweepResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Info("sweep already running in this process, skipping tick")
		s.metrics.ObserveSweep(metrics.SweepSkipped, 0, 0)
		return SweepResult{Skipped: true}, nil
	}
	defer s.running.Store(false)

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	acquired, err := s.locker.TryAcquire(ctx, JobName, s.cfg.LockTTL)
	if err != nil {
		s.log.Error("sweep lease unavailable, run failed", zap.Error(err))
		s.metrics.ObserveSweep(metrics.SweepFailed, 0, time.Since(start).Seconds())
		return SweepResult{}, fmt.Errorf("acquire %s lease: %w", JobName, err)
	}
	if !acquired {
		s.log.Info("sweep lease held by another instance, skipping tick")
		s.metrics.ObserveSweep(metrics.SweepSkipped, 0, 0)
		return SweepResult{Skipped: true}, nil
	}
	defer s.release()

	n, err := s.expirer.ExpireOverdue(ctx)
	elapsed := time.Since(start)
	if err != nil {
		s.log.Error("sweep run failed, retrying on next tick", zap.Duration("elapsed", elapsed), zap.Error(err))
		s.metrics.ObserveSweep(metrics.SweepFailed, 0, elapsed.Seconds())
		return SweepResult{Ran: true}, err
	}

	result := metrics.SweepSuccess
	if n == 0 {
		result = metrics.SweepNoop
	}
	s.metrics.ObserveSweep(result, n, elapsed.Seconds())
	s.log.Info("sweep finished", zap.Int("expired", n), zap.Duration("elapsed", elapsed))
	return SweepResult{Ran: true, Expired: n}, nil
}

// release uses its own context so a timed-out run still frees the lease.
func (s *ExpirationSweep) release() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.locker.Release(ctx, JobName); err != nil {
		s.log.Warn("sweep lease release failed, it will lapse on its own", zap.Error(err))
	}
}

// Schedule registers the sweep on a new cron. The caller starts and stops it.
func (s *ExpirationSweep) Schedule(schedule string) (*cron.Cron, error) {
	l := NewCronLogger(s.log)
	c := cron.New(
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)
	if _, err := c.AddFunc(schedule, func() { _ = s.RunExpirationSweep() }); err != nil {
		return nil, fmt.Errorf("schedule %s %q: %w", JobName, schedule, err)
	}
	s.log.Info("sweep scheduled", zap.String("schedule", schedule), zap.Duration("lease_ttl", s.cfg.LockTTL))
	return c, nil
}
