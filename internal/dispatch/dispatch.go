// Package dispatch posts primitive events to a surface and counts deliveries.
package dispatch

import (
	"log/slog"
	"sync/atomic"

	"github.com/verte-zerg/inputsim/internal/model"
	"github.com/verte-zerg/inputsim/internal/surface"
)

// Dispatcher posts one event at a time. It never retries: the caller decides
// whether to recreate the surface.
type Dispatcher struct {
	provider surface.Provider
	logger   *slog.Logger
	count    atomic.Int64
	failures atomic.Int64
}

// New builds a Dispatcher over provider.
func New(provider surface.Provider, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{provider: provider, logger: logger}
}

// Dispatch posts ev to h and reports whether it was accepted.
func (d *Dispatcher) Dispatch(h surface.Handle, ev model.Event) bool {
	if err := d.provider.Post(h, ev); err != nil {
		d.failures.Add(1)
		d.logger.Warn("event dispatch failed", "event", ev.String(), "err", err)
		return false
	}
	d.count.Add(1)
	return true
}

// Count returns the number of delivered events.
func (d *Dispatcher) Count() int64 {
	return d.count.Load()
}

// Failures returns the number of rejected events.
func (d *Dispatcher) Failures() int64 {
	return d.failures.Load()
}

// Reset zeroes both counters.
func (d *Dispatcher) Reset() {
	d.count.Store(0)
	d.failures.Store(0)
}
