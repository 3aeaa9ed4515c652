package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aevon-lab/stats-indexer/internal/indexer"
	"github.com/robfig/cron/v3"
)

// shutdownTimeout bounds how long Start waits for an in-flight run after
// its context is cancelled.
const shutdownTimeout = 30 * time.Second

// ErrRunInProgress is returned by RunNow when a run is already active.
var ErrRunInProgress = errors.New("pipeline run already in progress")

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context) (*indexer.Report, error)
}

// Scheduler runs the pipeline on a cron schedule, never more than one run at
// a time. Run failures are logged and kept in the last report; they do not
// stop the scheduler.
type Scheduler struct {
	schedule   string
	runner     Runner
	runOnStart bool

	running atomic.Bool
	mu      sync.RWMutex
	last    *indexer.Report
	lastErr error
}

// New validates schedule (standard 5-field cron syntax or a descriptor such
// as "@daily") and returns a scheduler for runner.
func New(schedule string, runner Runner, runOnStart bool) (*Scheduler, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, err
	}
	return &Scheduler{
		schedule:   schedule,
		runner:     runner,
		runOnStart: runOnStart,
	}, nil
}

// Start blocks until ctx is cancelled, running the pipeline on every tick.
func (s *Scheduler) Start(ctx context.Context) error {
	logger := cron.PrintfLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelDebug))
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	if _, err := c.AddFunc(s.schedule, func() { s.tick(ctx) }); err != nil {
		return err
	}

	slog.Info("[Scheduler] Starting indexing scheduler",
		"schedule", s.schedule,
		"run_on_start", s.runOnStart)

	c.Start()

	if s.runOnStart {
		s.tick(ctx)
	}

	<-ctx.Done()
	slog.Info("[Scheduler] Stopping (context cancelled)")

	stopped := c.Stop()
	select {
	case <-stopped.Done():
		slog.Info("[Scheduler] Stopped")
	case <-time.After(shutdownTimeout):
		slog.Warn("[Scheduler] Timed out waiting for in-flight run", "timeout", shutdownTimeout)
	}
	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.RunNow(ctx); err != nil {
		if errors.Is(err, ErrRunInProgress) {
			slog.Warn("[Scheduler] Skipping tick, previous run still active")
			return
		}
		slog.Error("[Scheduler] Scheduled run failed", "error", err)
	}
}

// RunNow runs the pipeline synchronously unless a run is already active.
func (s *Scheduler) RunNow(ctx context.Context) (*indexer.Report, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer s.running.Store(false)

	report, err := s.runner.Run(ctx)

	s.mu.Lock()
	s.last = report
	s.lastErr = err
	s.mu.Unlock()

	return report, err
}

// Running reports whether a run is active.
func (s *Scheduler) Running() bool { return s.running.Load() }

// LastReport returns the report and error of the most recent finished run.
// The report is nil before the first run completes.
func (s *Scheduler) LastReport() (*indexer.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.lastErr
}
