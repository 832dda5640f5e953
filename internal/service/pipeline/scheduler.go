// internal/service/pipeline/scheduler.go

package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"trendscope/internal/domain/trend"
)

// ErrRunPending is returned by Trigger when a run is already queued
var ErrRunPending = errors.New("a run is already pending")

// Runnable is a single collection run
type Runnable interface {
	Run(ctx context.Context) (*trend.Report, error)
}

// Scheduler runs the pipeline on start, on a fixed interval and on demand.
// Runs never overlap.
type Scheduler struct {
	pipeline Runnable
	interval time.Duration
	logger   *slog.Logger
	trigger  chan struct{}
}

// NewScheduler creates a scheduler. A zero interval disables periodic runs.
func NewScheduler(p Runnable, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		pipeline: p,
		interval: interval,
		logger:   logger,
		trigger:  make(chan struct{}, 1),
	}
}

// Trigger queues a run. At most one run is queued at a time.
func (s *Scheduler) Trigger() error {
	select {
	case s.trigger <- struct{}{}:
		return nil
	default:
		return ErrRunPending
	}
}

// Run blocks until ctx is cancelled
func (s *Scheduler) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			s.runOnce(ctx)
		case <-s.trigger:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	report, err := s.pipeline.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.logger.Error("scheduled run failed", "error", err)
		return
	}

	s.logger.Info("scheduled run finished", "report", report.ID, "next", s.interval)
}
