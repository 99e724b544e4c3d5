package engine

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/stlalpha/brepview/internal/display"
	"github.com/stlalpha/brepview/internal/logging"
)

// StepFunc runs one task. It returns the successors to enqueue and whether
// the task changed anything; a task that only yielded reports false.
type StepFunc func(Task) (next []Task, progressed bool)

// Scheduler drains a FIFO of tasks on the calling goroutine. A task that has
// to wait re-enqueues itself. When a whole pass over the queue has made no
// progress the scheduler parks until Wake is called, a command arrives or it
// is stopped.
type Scheduler struct {
	step     StepFunc
	commands <-chan display.Command
	apply    func(display.Command)

	queue    taskQueue
	stopped  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
	wake     chan struct{}

	parks atomic.Uint64
}

// NewScheduler creates a scheduler. commands may be nil, in which case apply
// is never called.
func NewScheduler(step StepFunc, commands <-chan display.Command, apply func(display.Command)) *Scheduler {
	return &Scheduler{
		step:     step,
		commands: commands,
		apply:    apply,
		stopCh:   make(chan struct{}),
		wake:     make(chan struct{}, 1),
	}
}

// Push enqueues tasks. Only call it before Run or from within a step.
func (s *Scheduler) Push(ts ...Task) {
	s.queue.Push(ts...)
}

// Wake unparks the scheduler. Safe to call from any goroutine; wake-ups that
// arrive while the scheduler is busy are remembered.
func (s *Scheduler) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Stop asks Run to return before the next task. The running task finishes.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		close(s.stopCh)
	})
}

func (s *Scheduler) Stopping() bool { return s.stopped.Load() }

// Parks returns how many times the scheduler has gone idle.
func (s *Scheduler) Parks() uint64 { return s.parks.Load() }

// Run executes tasks until the queue is empty, Stop is called or ctx is
// done. It returns the number of queued tasks that were discarded unrun.
func (s *Scheduler) Run(ctx context.Context) int {
	idle := 0
	for {
		if s.stopped.Load() || ctx.Err() != nil {
			return s.queue.Discard()
		}
		if s.drainCommands() {
			idle = 0
		}

		t, ok := s.queue.Pop()
		if !ok {
			return 0
		}
		next, progressed := s.step(t)
		s.queue.Push(next...)

		if progressed {
			idle = 0
			continue
		}
		idle++
		if idle >= s.queue.Len() {
			s.park(ctx)
			idle = 0
		}
	}
}

func (s *Scheduler) drainCommands() bool {
	if s.commands == nil {
		return false
	}
	applied := false
	for {
		select {
		case cmd := <-s.commands:
			s.apply(cmd)
			applied = true
		default:
			return applied
		}
	}
}

func (s *Scheduler) park(ctx context.Context) {
	s.parks.Add(1)
	logging.Debug("engine: parked with %d tasks queued", s.queue.Len())
	select {
	case <-s.wake:
	case cmd := <-s.commands:
		s.apply(cmd)
	case <-s.stopCh:
	case <-ctx.Done():
	}
}
