// Package surface defines the event-delivery boundary and an in-process sandbox receiver.
package surface

import (
	"context"
	"errors"

	"github.com/verte-zerg/inputsim/internal/model"
)

// Sentinel errors returned by providers.
var (
	ErrQueueFull   = errors.New("surface: message queue full")
	ErrClosed      = errors.New("surface: handle closed")
	ErrOutOfBounds = errors.New("surface: pointer outside surface bounds")
)

// Handle is an opaque token naming one receiving surface.
type Handle string

// Options are the creation parameters supplied by an input device.
type Options struct {
	Title  string
	Bounds model.Bounds
}

// Provider creates, feeds and destroys receiving surfaces.
type Provider interface {
	Create(ctx context.Context, opts Options) (Handle, error)
	Destroy(h Handle) error
	Post(h Handle, ev model.Event) error
	Drain(h Handle) (int, error)
}
