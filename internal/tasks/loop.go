package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// Task is one unit of background work. Run is invoked once per interval and
// may return an error; the scheduler logs it and keeps going.
type Task interface {
	Name() string
	Interval() time.Duration
	Run(ctx context.Context) error
}

// Scheduler drives a set of tasks, one goroutine each. Every task runs in an
// outer loop that recovers panics, logs failures, and sleeps its interval
// between iterations. Cancellation is checked once per iteration.
type Scheduler struct {
	tasks  []Task
	logger *log.Logger
	wg     sync.WaitGroup
}

// NewScheduler creates an empty scheduler.
func NewScheduler(logger *log.Logger) *Scheduler {
	return &Scheduler{logger: logger}
}

// Register adds a task before Start.
func (s *Scheduler) Register(task Task) {
	s.tasks = append(s.tasks, task)
}

// Start launches every registered task. It returns immediately; call Wait to
// block until cancellation stops them all.
func (s *Scheduler) Start(ctx context.Context) {
	for _, task := range s.tasks {
		s.wg.Add(1)
		go func(task Task) {
			defer s.wg.Done()
			s.runLoop(ctx, task)
		}(task)
	}
}

// Wait blocks until every task loop has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) runLoop(ctx context.Context, task Task) {
	logger := s.logger.With("task", task.Name())
	logger.Info("task loop started", "interval", task.Interval())

	for {
		if ctx.Err() != nil {
			logger.Info("task loop stopped")
			return
		}

		s.runOnce(ctx, task, logger)

		timer := time.NewTimer(task.Interval())
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Info("task loop stopped")
			return
		case <-timer.C:
		}
	}
}

// runOnce isolates a single iteration so a panic unwinds no further than
// this frame.
func (s *Scheduler) runOnce(ctx context.Context, task Task, logger *log.Logger) {
	runID := uuid.NewString()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("task iteration panicked", "run_id", runID, "panic", r)
		}
	}()

	start := time.Now()
	if err := task.Run(ctx); err != nil {
		logger.Warn("task iteration failed", "run_id", runID, "error", err)
		return
	}
	logger.Debug("task iteration finished", "run_id", runID, "elapsed", time.Since(start))
}

// sleepFor blocks for d or until the context is cancelled.
func sleepFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
