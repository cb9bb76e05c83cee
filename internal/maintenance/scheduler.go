// Package maintenance tracks the periodic drain, refresh and sample actions.
package maintenance

import (
	"fmt"
	"time"

	"github.com/verte-zerg/inputsim/internal/config"
)

// Action is one maintenance task.
type Action int

const (
	Drain Action = iota
	Refresh
	Sample
)

// Actions lists every action in check order.
var Actions = []Action{Drain, Refresh, Sample}

func (a Action) String() string {
	switch a {
	case Drain:
		return "drain"
	case Refresh:
		return "refresh"
	case Sample:
		return "sample"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Intervals holds the period of each action.
type Intervals struct {
	Drain   time.Duration
	Refresh time.Duration
	Sample  time.Duration
}

// DefaultIntervals returns the built-in periods.
func DefaultIntervals() Intervals {
	return Intervals{
		Drain:   5 * time.Second,
		Refresh: 600 * time.Second,
		Sample:  30 * time.Second,
	}
}

// LoadIntervals reads message_process_interval, cleanup_interval and
// resource_monitor_interval (seconds).
func LoadIntervals(r *config.Reader) Intervals {
	def := DefaultIntervals()
	return Intervals{
		Drain:   r.Seconds("message_process_interval", def.Drain),
		Refresh: r.Seconds("cleanup_interval", def.Refresh),
		Sample:  r.Seconds("resource_monitor_interval", def.Sample),
	}
}

func (iv Intervals) of(a Action) time.Duration {
	switch a {
	case Drain:
		return iv.Drain
	case Refresh:
		return iv.Refresh
	default:
		return iv.Sample
	}
}

// Timer is an interval and the time its action last fired.
type Timer struct {
	Interval time.Duration
	Last     time.Time
}

// Due reports whether the interval has elapsed at now.
func (t Timer) Due(now time.Time) bool {
	return now.Sub(t.Last) >= t.Interval
}

// Scheduler owns one independent timer per action. It is not safe for
// concurrent use; the engine goroutine is its only user.
type Scheduler struct {
	timers [3]Timer
}

// NewScheduler validates intervals and starts every timer at now.
func NewScheduler(iv Intervals, now time.Time) (*Scheduler, error) {
	s := &Scheduler{}
	for _, a := range Actions {
		interval := iv.of(a)
		if interval <= 0 {
			return nil, fmt.Errorf("%s interval must be positive", a)
		}
		s.timers[a] = Timer{Interval: interval, Last: now}
	}
	return s, nil
}

func (s *Scheduler) timer(a Action) *Timer {
	if a < Drain || a > Sample {
		panic(fmt.Sprintf("maintenance: unknown action %d", int(a)))
	}
	return &s.timers[a]
}

// Due reports whether a should fire at now.
func (s *Scheduler) Due(a Action, now time.Time) bool {
	return s.timer(a).Due(now)
}

// Reset marks a as fired at now.
func (s *Scheduler) Reset(a Action, now time.Time) {
	s.timer(a).Last = now
}

// ResetAll restarts every timer at now.
func (s *Scheduler) ResetAll(now time.Time) {
	for _, a := range Actions {
		s.timers[a].Last = now
	}
}

// Timer returns a copy of the timer for a.
func (s *Scheduler) Timer(a Action) Timer {
	return *s.timer(a)
}

// Run calls fn when a is due. The timer is reset only when fn succeeds, so a
// failed action is retried on the next check.
func (s *Scheduler) Run(a Action, now time.Time, fn func() error) (bool, error) {
	if !s.Due(a, now) {
		return false, nil
	}
	if err := fn(); err != nil {
		return true, fmt.Errorf("%s: %w", a, err)
	}
	s.Reset(a, now)
	return true, nil
}
