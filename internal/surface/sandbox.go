package surface

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/verte-zerg/inputsim/internal/model"
)

// DefaultQueueCapacity bounds the pending events of a sandbox receiver.
const DefaultQueueCapacity = 10000

// View is a point-in-time copy of a sandbox receiver.
type View struct {
	Handle    Handle
	Title     string
	Bounds    model.Bounds
	Text      string
	Pointer   model.Point
	Pressed   []model.Button
	Held      []model.KeyCode
	Wheel     int
	Pending   int
	Delivered int
}

type receiver struct {
	title     string
	bounds    model.Bounds
	queue     []model.Event
	text      []rune
	pointer   model.Point
	pressed   map[model.Button]bool
	held      map[model.KeyCode]bool
	wheel     int
	delivered int
}

func (r *receiver) apply(ev model.Event) {
	switch ev.Kind {
	case model.KeyDown:
		r.held[ev.Code] = true
		switch ev.Code {
		case model.KeyBackspace:
			r.backspace()
		case model.KeyEnter:
			r.text = append(r.text, '\n')
		case model.KeyTab:
			r.text = append(r.text, '\t')
		}
	case model.KeyUp:
		delete(r.held, ev.Code)
	case model.CharInput:
		r.text = append(r.text, ev.Char)
	case model.PointerMove:
		r.pointer = model.Point{X: ev.X, Y: ev.Y}
	case model.ButtonDown:
		r.pressed[ev.Button] = true
	case model.ButtonUp:
		delete(r.pressed, ev.Button)
	case model.WheelDelta:
		r.wheel += ev.Delta
	}
	r.delivered++
}

func (r *receiver) backspace() {
	if len(r.text) == 0 {
		return
	}
	r.text = r.text[:len(r.text)-1]
}

func (r *receiver) view(h Handle) View {
	pressed := make([]model.Button, 0, len(r.pressed))
	for b := range r.pressed {
		pressed = append(pressed, b)
	}
	sort.Slice(pressed, func(i, j int) bool { return pressed[i] < pressed[j] })
	held := make([]model.KeyCode, 0, len(r.held))
	for k := range r.held {
		held = append(held, k)
	}
	sort.Slice(held, func(i, j int) bool { return held[i] < held[j] })
	return View{
		Handle:    h,
		Title:     r.title,
		Bounds:    r.bounds,
		Text:      string(r.text),
		Pointer:   r.pointer,
		Pressed:   pressed,
		Held:      held,
		Wheel:     r.wheel,
		Pending:   len(r.queue),
		Delivered: r.delivered,
	}
}

// SandboxOptions configure a Sandbox.
type SandboxOptions struct {
	QueueCapacity int
	Logger        *slog.Logger
}

// Sandbox is an isolated in-process receiver. Posted events wait in a bounded
// queue until Drain applies them to a virtual widget.
type Sandbox struct {
	mu        sync.Mutex
	capacity  int
	logger    *slog.Logger
	receivers map[Handle]*receiver
	latest    Handle
	lastView  View
}

// NewSandbox builds a sandbox provider.
func NewSandbox(opts SandboxOptions) *Sandbox {
	capacity := opts.QueueCapacity
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Sandbox{
		capacity:  capacity,
		logger:    logger,
		receivers: map[Handle]*receiver{},
	}
}

// Create opens a new receiver.
func (s *Sandbox) Create(ctx context.Context, opts Options) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if opts.Bounds.Width < 1 || opts.Bounds.Height < 1 {
		return "", fmt.Errorf("create surface: invalid bounds %dx%d", opts.Bounds.Width, opts.Bounds.Height)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("create surface: %w", err)
	}
	h := Handle(id.String())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.receivers[h] = &receiver{
		title:   opts.Title,
		bounds:  opts.Bounds,
		pointer: opts.Bounds.Center(),
		pressed: map[model.Button]bool{},
		held:    map[model.KeyCode]bool{},
	}
	s.latest = h
	s.logger.Debug("sandbox surface created", "handle", string(h), "title", opts.Title,
		"width", opts.Bounds.Width, "height", opts.Bounds.Height)
	return h, nil
}

// Destroy closes a receiver, discarding anything still queued.
func (s *Sandbox) Destroy(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.receivers[h]
	if !ok {
		return fmt.Errorf("destroy %s: %w", h, ErrClosed)
	}
	if h == s.latest {
		s.lastView = r.view(h)
	}
	delete(s.receivers, h)
	s.logger.Debug("sandbox surface destroyed", "handle", string(h), "discarded", len(r.queue))
	return nil
}

// Post queues ev for the receiver.
func (s *Sandbox) Post(h Handle, ev model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.receivers[h]
	if !ok {
		return fmt.Errorf("post %s: %w", ev, ErrClosed)
	}
	if ev.Kind == model.PointerMove && !r.bounds.Contains(model.Point{X: ev.X, Y: ev.Y}) {
		return fmt.Errorf("post %s: %w", ev, ErrOutOfBounds)
	}
	if len(r.queue) >= s.capacity {
		return fmt.Errorf("post %s: %w", ev, ErrQueueFull)
	}
	r.queue = append(r.queue, ev)
	return nil
}

// Drain applies every queued event and reports how many were processed.
func (s *Sandbox) Drain(h Handle) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.receivers[h]
	if !ok {
		return 0, fmt.Errorf("drain %s: %w", h, ErrClosed)
	}
	n := len(r.queue)
	for _, ev := range r.queue {
		r.apply(ev)
	}
	r.queue = r.queue[:0]
	return n, nil
}

// View returns the state of a live receiver.
func (s *Sandbox) View(h Handle) (View, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.receivers[h]
	if !ok {
		return View{}, false
	}
	return r.view(h), true
}

// Latest returns the most recently created receiver, or its final state when
// it has already been destroyed.
func (s *Sandbox) Latest() (View, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.receivers[s.latest]; ok {
		return r.view(s.latest), true
	}
	if s.lastView.Handle != "" {
		return s.lastView, true
	}
	return View{}, false
}

// Open reports how many receivers are alive.
func (s *Sandbox) Open() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.receivers)
}
