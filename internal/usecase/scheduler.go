package usecase

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Scheduler states.
const (
	StateIdle = iota
	StateRunning
	StateStopping
	StateStopped
)

const (
	stopGracePeriod = 30 * time.Second
	stopPollEvery   = time.Second
)

// SweepRunner is the unit of work a tick drives.
type SweepRunner interface {
	Sweep(ctx context.Context, epoch *Epoch) error
}

// PollScheduler re-runs the sweep on a single-shot timer that is re-armed
// only after a run completes, so runs never overlap. A tick that fires while
// a run is still in flight is skipped and the timer re-armed.
type PollScheduler struct {
	interval time.Duration
	runner   SweepRunner
	logger   *slog.Logger

	mu       sync.Mutex
	state    int
	inFlight bool
	timer    *time.Timer
	epoch    *Epoch

	grace     time.Duration
	pollEvery time.Duration
	exit      func(code int)
}

// NewPollScheduler creates a scheduler ticking at interval.
func NewPollScheduler(interval time.Duration, runner SweepRunner, logger *slog.Logger) *PollScheduler {
	return &PollScheduler{
		interval:  interval,
		runner:    runner,
		logger:    logger,
		state:     StateIdle,
		epoch:     NewEpoch(),
		grace:     stopGracePeriod,
		pollEvery: stopPollEvery,
		exit:      os.Exit,
	}
}

// Start transitions to Running and fires the first tick immediately.
func (s *PollScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return
	}
	s.state = StateRunning
	s.mu.Unlock()

	s.logger.Info("scheduler started", "interval", s.interval)
	go s.tick(ctx)
}

func (s *PollScheduler) tick(ctx context.Context) {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	if s.inFlight {
		s.logger.Warn("previous run still in progress, skipping tick")
		s.rearmLocked(ctx)
		s.mu.Unlock()
		return
	}
	s.inFlight = true
	epoch := s.epoch
	s.mu.Unlock()

	logger := s.logger.With("run_id", uuid.NewString())
	logger.Info("run started", "epoch", epoch.Number())

	start := time.Now()
	if err := s.runner.Sweep(ctx, epoch); err != nil {
		logger.Error("run failed", "duration", time.Since(start), "error", err)
	} else {
		logger.Info("run finished", "duration", time.Since(start))
	}

	s.mu.Lock()
	s.inFlight = false
	if s.state == StateRunning {
		s.rearmLocked(ctx)
	}
	s.mu.Unlock()
}

func (s *PollScheduler) rearmLocked(ctx context.Context) {
	s.timer = time.AfterFunc(s.interval, func() { s.tick(ctx) })
}

// Stop cancels the pending timer and waits for an in-flight run, polling
// until the grace period expires. A run that outlives the grace period
// forces process exit.
func (s *PollScheduler) Stop() {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	s.state = StateStopping
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	busy := s.inFlight
	s.mu.Unlock()

	if busy {
		s.logger.Info("waiting for in-flight run to finish", "grace", s.grace)
		deadline := time.Now().Add(s.grace)
		for time.Now().Before(deadline) {
			time.Sleep(s.pollEvery)
			s.mu.Lock()
			busy = s.inFlight
			s.mu.Unlock()
			if !busy {
				break
			}
		}
		if busy {
			s.logger.Error("run did not finish within grace period, forcing exit")
			s.exit(1)
			return
		}
	}

	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
	s.logger.Info("scheduler stopped")
}

// State returns the current scheduler state.
func (s *PollScheduler) State() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
