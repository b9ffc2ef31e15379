package app

import (
	"context"
	"errors"
	"time"
)

// defaultRunInterval and defaultRunTimeout apply when the scheduler is configured without values.
const (
	defaultRunInterval = time.Hour
	defaultRunTimeout  = 2 * time.Minute
)

// Runner executes one reminder pass.
type Runner interface {
	Run(context.Context) (RunReport, error)
}

// SchedulerConfig holds cadence settings for periodic runs.
type SchedulerConfig struct {
	Interval time.Duration
	Timeout  time.Duration
	RunNow   bool
}

// Scheduler invokes a Runner on a fixed cadence until its context ends.
type Scheduler struct {
	runner Runner
	logger Logger
	cfg    SchedulerConfig
	tick   func(time.Duration) (<-chan time.Time, func())
}

// NewScheduler constructs a periodic reminder scheduler.
func NewScheduler(runner Runner, logger Logger, cfg SchedulerConfig) *Scheduler {
	if logger == nil {
		logger = nopLogger{}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultRunInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRunTimeout
	}
	return &Scheduler{
		runner: runner,
		logger: logger,
		cfg:    cfg,
		tick: func(d time.Duration) (<-chan time.Time, func()) {
			ticker := time.NewTicker(d)
			return ticker.C, ticker.Stop
		},
	}
}

// Run blocks until ctx is done. A failed run is logged and the next tick proceeds.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("reminder scheduler start", "interval", s.cfg.Interval, "timeout", s.cfg.Timeout, "run_now", s.cfg.RunNow)
	if s.cfg.RunNow {
		s.runOnce(ctx)
	}
	ticks, stop := s.tick(s.cfg.Interval)
	defer stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reminder scheduler stop")
			return nil
		case <-ticks:
			s.runOnce(ctx)
		}
	}
}

// runOnce bounds one run by the configured timeout.
func (s *Scheduler) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	report, err := s.runner.Run(runCtx)
	switch {
	case err == nil:
		s.logger.Debug("scheduled run complete", "run_id", report.RunID, "sent", report.Dispatch.Sent)
	case errors.Is(err, ErrRunAlreadyActive):
		s.logger.Warn("scheduled run skipped", "reason", err)
	default:
		s.logger.Error("scheduled run failed", "err", err)
	}
}
