package eventloop

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

var ErrStopped = errors.New("event loop stopped")

// Runner executes commands and due tasks on a single goroutine.
type Runner struct {
	clock   clockwork.Clock
	queue   *Queue
	inbox   chan func()
	stopped chan struct{}
	logger  *slog.Logger
}

// NewRunner creates a runner on clock; nil uses the real clock.
func NewRunner(clock clockwork.Clock, logger *slog.Logger) *Runner {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		clock:   clock,
		queue:   NewQueue(clock.Now()),
		inbox:   make(chan func()),
		stopped: make(chan struct{}),
		logger:  logger,
	}
}

// Now returns the clock time.
func (r *Runner) Now() time.Time {
	return r.clock.Now()
}

// After schedules fn d after the clock's current time. It must be called
// from the loop goroutine, i.e. from inside a command or a task. Due tasks
// only run from Run, never nested inside the caller.
func (r *Runner) After(key string, d time.Duration, fn func()) {
	r.queue.setNow(r.clock.Now())
	r.queue.After(key, d, fn)
}

// Pending counts scheduled tasks for key. Loop goroutine only.
func (r *Runner) Pending(key string) int {
	return r.queue.Pending(key)
}

// Run processes commands and tasks until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.stopped)
	r.logger.Debug("Event loop started")

	for {
		r.queue.AdvanceTo(r.clock.Now())

		var timer clockwork.Timer
		var fire <-chan time.Time
		if next, ok := r.queue.Next(); ok {
			timer = r.clock.NewTimer(next.Sub(r.clock.Now()))
			fire = timer.Chan()
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			r.logger.Debug("Event loop stopped", "pending_tasks", r.queue.Len())
			return ctx.Err()
		case fn := <-r.inbox:
			r.queue.AdvanceTo(r.clock.Now())
			fn()
		case <-fire:
		}

		if timer != nil {
			timer.Stop()
		}
	}
}

// Do runs fn on the loop goroutine and waits for it to return.
func (r *Runner) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}

	select {
	case r.inbox <- wrapped:
	case <-r.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	<-done
	return nil
}
