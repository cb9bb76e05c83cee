package control

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrJoinTimeout is returned when the engine does not finish in time after a stop.
var ErrJoinTimeout = errors.New("control: engine did not stop within join timeout")

// Runner is the engine as seen by the supervisor.
type Runner interface {
	Run(ctx context.Context) error
	Stop()
}

// Options configure Supervise.
type Options struct {
	PollInterval time.Duration
	JoinTimeout  time.Duration
	Logger       *slog.Logger
}

// Supervise runs r on its own goroutine and polls p every PollInterval.
// Once cancellation is requested (or ctx ends) it stops r and waits up to
// JoinTimeout for it to return. The engine goroutine is abandoned after the
// timeout so it never blocks process exit.
func Supervise(ctx context.Context, r Runner, p Poller, opts Options) error {
	poll := opts.PollInterval
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	join := opts.JoinTimeout
	if join <= 0 {
		join = time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if p == nil {
		p = &Flag{}
	}

	done := make(chan error, 1)
	go func() {
		done <- r.Run(ctx)
	}()

	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			logger.Info("context cancelled, stopping engine")
			r.Stop()
			return wait(done, join, logger)
		case <-ticker.C:
			if p.Requested() {
				logger.Info("stop requested, stopping engine")
				r.Stop()
				return wait(done, join, logger)
			}
		}
	}
}

func wait(done <-chan error, timeout time.Duration, logger *slog.Logger) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
		logger.Warn("engine did not stop in time", "timeout", timeout.String())
		return ErrJoinTimeout
	}
}
