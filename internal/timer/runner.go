package timer

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrStopped is returned by Send once the runner has exited.
var ErrStopped = errors.New("timer: runner stopped")

// Clock abstracts time so the runner can be driven by a fake in tests.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) Timer
}

// Timer is a single scheduled re-check.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// SystemClock returns a Clock backed by the time package.
func SystemClock() Clock { return systemClock{} }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) NewTimer(d time.Duration) Timer { return systemTimer{time.NewTimer(d)} }

type systemTimer struct{ t *time.Timer }

func (s systemTimer) C() <-chan time.Time { return s.t.C }
func (s systemTimer) Stop() bool          { return s.t.Stop() }

// Runner owns a Machine on its own goroutine. Commands go in through Send and
// formatted times, "" and "done" come out of Messages. Nothing else is
// shared with the caller.
type Runner struct {
	clock    Clock
	logger   *slog.Logger
	warmUp   time.Duration
	interval time.Duration
	cmds     chan Command
	out      chan string
	stopped  chan struct{}
}

// NewRunner creates a runner. Call Run to start it.
func NewRunner(clock Clock, logger *slog.Logger) *Runner {
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		clock:   clock,
		logger:  logger,
		cmds:    make(chan Command),
		out:     make(chan string, 16),
		stopped: make(chan struct{}),
	}
}

// SetSchedule overrides the machine's warm-up and interval delays. It must be
// called before Run.
func (r *Runner) SetSchedule(warmUp, interval time.Duration) {
	r.warmUp, r.interval = warmUp, interval
}

// Messages returns the output stream. It is closed when Run returns.
func (r *Runner) Messages() <-chan string { return r.out }

// Send validates cmd and hands it to the runner goroutine.
func (r *Runner) Send(ctx context.Context, cmd Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	select {
	case r.cmds <- cmd:
		return nil
	case <-r.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes commands and re-checks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.out)
	defer close(r.stopped)

	m := NewMachine(r.clock.Now)
	m.SetSchedule(r.warmUp, r.interval)
	var pending Timer
	var tick <-chan time.Time

	apply := func(step Step) bool {
		if step.Cancel || step.Next > 0 {
			if pending != nil {
				pending.Stop()
			}
			// A fired-but-unread channel is abandoned here, so a stale
			// re-check can never reach the machine.
			pending, tick = nil, nil
		}
		if step.Next > 0 {
			pending = r.clock.NewTimer(step.Next)
			tick = pending.C()
		}
		for _, msg := range step.Messages {
			select {
			case r.out <- msg:
			case <-ctx.Done():
				return false
			}
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			if pending != nil {
				pending.Stop()
			}
			return nil

		case cmd := <-r.cmds:
			step, err := m.Apply(cmd)
			if err != nil {
				r.logger.Warn("timer: rejected command", slog.String("error", err.Error()))
				continue
			}
			r.logger.Debug("timer: command",
				slog.String("action", cmd.Action),
				slog.String("phase", m.Phase().String()))
			if !apply(step) {
				return nil
			}

		case <-tick:
			if !apply(m.Tick()) {
				return nil
			}
		}
	}
}
