// Package timer implements the single countdown timer: a state machine that
// is advanced by commands and by scheduled re-checks, and a runner that
// drives it from its own goroutine.
package timer

import (
	"fmt"
	"time"
)

// Phase is the lifecycle state of the countdown.
type Phase int

const (
	Idle Phase = iota
	Running
	Paused
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Paused:
		return "paused"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// DoneMessage is emitted once after the final "00:00" when a countdown ends.
const DoneMessage = "done"

// Default scheduling delays.
const (
	DefaultWarmUp   = 500 * time.Millisecond
	DefaultInterval = time.Second
)

// Step is the outcome of one transition: the messages to emit and how the
// next re-check should be scheduled.
type Step struct {
	Messages []string
	Next     time.Duration // schedule a re-check after Next when > 0
	Cancel   bool          // drop the pending re-check
}

// Machine is the countdown state machine. It is not safe for concurrent use;
// Runner owns one from a single goroutine.
type Machine struct {
	now       func() time.Time
	warmUp    time.Duration
	interval  time.Duration
	phase     Phase
	remaining time.Duration
	target    time.Time
}

// NewMachine returns an idle machine reading time from now.
func NewMachine(now func() time.Time) *Machine {
	return &Machine{now: now, warmUp: DefaultWarmUp, interval: DefaultInterval}
}

// SetSchedule overrides the warm-up and interval delays. Non-positive values
// keep the current setting.
func (m *Machine) SetSchedule(warmUp, interval time.Duration) {
	if warmUp > 0 {
		m.warmUp = warmUp
	}
	if interval > 0 {
		m.interval = interval
	}
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase { return m.phase }

// Remaining returns the remaining time as last computed.
func (m *Machine) Remaining() time.Duration { return m.remaining }

// Apply dispatches cmd to the matching transition.
func (m *Machine) Apply(cmd Command) (Step, error) {
	if err := cmd.Validate(); err != nil {
		return Step{}, err
	}
	switch cmd.Action {
	case ActionStart:
		return m.Start(cmd.Duration()), nil
	case ActionPause:
		return m.Pause(), nil
	case ActionContinue:
		return m.Continue(), nil
	default:
		return m.Delete(), nil
	}
}

// Start begins a countdown of d. It is ignored unless the machine is idle
// with nothing remaining.
func (m *Machine) Start(d time.Duration) Step {
	if m.phase != Idle || m.remaining != 0 {
		return Step{}
	}
	m.phase = Running
	m.remaining = d
	m.target = m.now().Add(d)
	return Step{Messages: []string{Format(d)}, Next: m.warmUp}
}

// Tick recomputes the remaining time from the absolute target.
func (m *Machine) Tick() Step {
	if m.phase != Running {
		return Step{}
	}
	m.remaining = m.target.Sub(m.now())
	if m.remaining <= 0 {
		return m.finish()
	}
	return Step{Messages: []string{Format(m.remaining)}, Next: m.interval}
}

func (m *Machine) finish() Step {
	m.phase = Idle
	m.remaining = 0
	return Step{Messages: []string{Format(0), DoneMessage}, Cancel: true}
}

// Pause freezes the countdown. The remaining time is taken at the moment of
// the pause so paused time never counts as running time. Pausing after the
// target has passed finishes the countdown instead.
func (m *Machine) Pause() Step {
	if m.phase != Running {
		return Step{}
	}
	left := m.target.Sub(m.now())
	if left <= 0 {
		return m.finish()
	}
	m.phase = Paused
	m.remaining = left
	return Step{Cancel: true}
}

// Continue resumes a paused countdown.
func (m *Machine) Continue() Step {
	if m.phase != Paused || m.remaining <= 0 {
		return Step{}
	}
	m.phase = Running
	m.target = m.now().Add(m.remaining)
	return Step{Next: m.interval}
}

// Delete resets to idle from any phase and clears the display.
func (m *Machine) Delete() Step {
	m.phase = Idle
	m.remaining = 0
	m.target = time.Time{}
	return Step{Messages: []string{""}, Cancel: true}
}

// Format renders d as MM:SS, truncated to whole seconds. Minutes are not
// wrapped into hours.
func Format(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
