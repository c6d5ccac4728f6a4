package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"
)

// Runner runs one ingestion of a feed over a window.
type Runner interface {
	Run(ctx context.Context, feed Feed, window Window) (Report, error)
}

// Scheduler re-ingests a trailing window for each feed at a fixed interval
// until its context is cancelled.
type Scheduler struct {
	runner     Runner
	feeds      []Feed
	windowDays int
	interval   time.Duration
	clock      clockwork.Clock
	logger     *slog.Logger
	ready      atomic.Bool
}

// NewScheduler creates a Scheduler. A nil clock uses real time.
func NewScheduler(r Runner, feeds []Feed, windowDays int, interval time.Duration, clock clockwork.Clock, logger *slog.Logger) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		runner:     r,
		feeds:      feeds,
		windowDays: windowDays,
		interval:   interval,
		clock:      clock,
		logger:     logger,
	}
}

// CheckReadiness returns nil once one full round of ingestion has completed.
func (s *Scheduler) CheckReadiness(_ context.Context) error {
	if !s.ready.Load() {
		return errors.New("scheduler has not completed an ingestion round yet")
	}
	return nil
}

// Run ingests every feed immediately and then once per interval. An aborted
// round is retried with exponential backoff, capped at the interval.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval, "window_days", s.windowDays, "feeds", len(s.feeds))

	backoff := time.Second
	for {
		wait := s.interval
		if !s.round(ctx) {
			if ctx.Err() != nil {
				break
			}
			wait = backoff
			backoff = retry.NextBackoff(backoff, s.interval)
		} else {
			backoff = time.Second
			s.ready.Store(true)
		}

		if !s.sleep(ctx, wait) {
			break
		}
	}
	s.logger.Info("scheduler stopping", "reason", ctx.Err())
	return nil
}

// round runs each feed once and reports whether all of them finished.
func (s *Scheduler) round(ctx context.Context) bool {
	window := TrailingWindow(s.clock.Now().UTC(), s.windowDays)
	ok := true
	for _, feed := range s.feeds {
		if _, err := s.runner.Run(ctx, feed, window); err != nil {
			s.logger.Error("scheduled ingestion failed", "feed", feed.Name, "error", err)
			ok = false
		}
		if ctx.Err() != nil {
			return false
		}
	}
	return ok
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := s.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
