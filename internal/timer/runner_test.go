package timer

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"
)

// fakeClock fires timers only when Advance is called.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	timers  []*fakeTimer
	created chan struct{}
}

type fakeTimer struct {
	clock  *fakeClock
	c      chan time.Time
	at     time.Time
	active bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		now:     time.Date(2024, time.August, 12, 9, 0, 0, 0, time.UTC),
		created: make(chan struct{}, 1024),
	}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTimer(d time.Duration) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, c: make(chan time.Time, 1), at: c.now.Add(d), active: true}
	c.timers = append(c.timers, t)
	c.created <- struct{}{}
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	for _, t := range c.timers {
		if t.active && !t.at.After(c.now) {
			t.active = false
			t.c <- c.now
		}
	}
}

func (c *fakeClock) activeTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if t.active {
			n++
		}
	}
	return n
}

func (t *fakeTimer) C() <-chan time.Time { return t.c }

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := t.active
	t.active = false
	return was
}

func startRunner(t *testing.T) (*Runner, *fakeClock, context.Context) {
	t.Helper()
	clk := newFakeClock()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	r := NewRunner(clk, logger)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = r.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return r, clk, ctx
}

func expectMsg(t *testing.T, r *Runner, want string) {
	t.Helper()
	select {
	case got := <-r.Messages():
		if got != want {
			t.Fatalf("message = %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for %q", want)
	}
}

func recv(t *testing.T, r *Runner) string {
	t.Helper()
	select {
	case msg := <-r.Messages():
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for tick")
		return ""
	}
}

func expectSilence(t *testing.T, r *Runner) {
	t.Helper()
	select {
	case got := <-r.Messages():
		t.Fatalf("unexpected message %q", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func waitTimer(t *testing.T, clk *fakeClock) {
	t.Helper()
	select {
	case <-clk.created:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for a scheduled re-check")
	}
}

func TestRunnerCountdownToDone(t *testing.T) {
	r, clk, ctx := startRunner(t)
	if err := r.Send(ctx, Command{Action: ActionStart, Minutes: 1}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	expectMsg(t, r, "01:00")
	waitTimer(t, clk)
	clk.Advance(DefaultWarmUp)
	expectMsg(t, r, "00:59")

	var msgs []string
	elapsed := DefaultWarmUp
	scheduled := false
	for done := false; !done; {
		if !scheduled {
			waitTimer(t, clk)
		}
		scheduled = false
		clk.Advance(DefaultInterval)
		elapsed += DefaultInterval
		msg := recv(t, r)
		msgs = append(msgs, msg)
		if msg != "00:00" {
			continue
		}
		// Either the final "done" follows, or another re-check was scheduled.
		select {
		case next := <-r.Messages():
			msgs = append(msgs, next)
			done = true
		case <-clk.created:
			scheduled = true
		case <-time.After(2 * time.Second):
			t.Fatal("timeout after 00:00")
		}
	}
	if got := msgs[len(msgs)-1]; got != DoneMessage {
		t.Fatalf("last message = %q, want %q", got, DoneMessage)
	}
	if elapsed > 61*time.Second {
		t.Errorf("done after %v of simulated time, want <= 61s", elapsed)
	}

	clk.Advance(10 * time.Second)
	expectSilence(t, r)
	if n := clk.activeTimers(); n != 0 {
		t.Errorf("active timers after done = %d, want 0", n)
	}
}

func TestRunnerPauseStopsTicks(t *testing.T) {
	r, clk, ctx := startRunner(t)
	_ = r.Send(ctx, Command{Action: ActionStart, Minutes: 5})
	expectMsg(t, r, "05:00")
	waitTimer(t, clk)

	if err := r.Send(ctx, Command{Action: ActionPause}); err != nil {
		t.Fatalf("Send pause: %v", err)
	}
	// The warm-up re-check is due now but was cancelled.
	clk.Advance(time.Minute)
	expectSilence(t, r)

	_ = r.Send(ctx, Command{Action: ActionContinue})
	waitTimer(t, clk)
	clk.Advance(DefaultInterval)
	expectMsg(t, r, "04:59")
}

func TestRunnerDeleteEmitsEmpty(t *testing.T) {
	r, clk, ctx := startRunner(t)
	_ = r.Send(ctx, Command{Action: ActionStart, Minutes: 2})
	expectMsg(t, r, "02:00")
	waitTimer(t, clk)

	_ = r.Send(ctx, Command{Action: ActionDelete})
	expectMsg(t, r, "")
	clk.Advance(time.Minute)
	expectSilence(t, r)

	_ = r.Send(ctx, Command{Action: ActionStart, Minutes: 1})
	expectMsg(t, r, "01:00")
}

func TestRunnerSendValidates(t *testing.T) {
	r, _, ctx := startRunner(t)
	if err := r.Send(ctx, Command{Action: "explode"}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestRunnerSendAfterStop(t *testing.T) {
	r := NewRunner(newFakeClock(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = r.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	if err := r.Send(context.Background(), Command{Action: ActionPause}); !errors.Is(err, ErrStopped) {
		t.Errorf("err = %v, want ErrStopped", err)
	}
	if _, ok := <-r.Messages(); ok {
		t.Error("messages channel should be closed")
	}
}
