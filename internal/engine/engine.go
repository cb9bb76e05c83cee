// Package engine runs the long-lived input session: it asks a device for
// patterns, delivers their events to a surface and keeps the surface healthy
// with periodic maintenance.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/inputsim/internal/dispatch"
	"github.com/verte-zerg/inputsim/internal/maintenance"
	"github.com/verte-zerg/inputsim/internal/model"
	"github.com/verte-zerg/inputsim/internal/pattern"
	"github.com/verte-zerg/inputsim/internal/sampler"
	"github.com/verte-zerg/inputsim/internal/surface"
)

// ErrEngineUsed is returned by Run on an engine that has already run.
var ErrEngineUsed = errors.New("engine: session already run")

var errNoSurface = errors.New("no surface handle")

const (
	defaultSlice        = 100 * time.Millisecond
	defaultBackoff      = 5 * time.Second
	defaultRefreshPause = 500 * time.Millisecond
)

// State is the engine lifecycle position.
type State int32

const (
	Idle State = iota
	Acquiring
	Running
	Recovering
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Acquiring:
		return "acquiring"
	case Running:
		return "running"
	case Recovering:
		return "recovering"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Device supplies patterns and surface parameters for one input variant.
type Device interface {
	Name() string
	Bounds() model.Bounds
	Patterns() []pattern.Descriptor
	Plan(rng *rand.Rand, cursor model.Point) pattern.Sequence
}

// Recorder persists finished sessions.
type Recorder interface {
	RecordSession(ctx context.Context, rec model.SessionRecord) error
}

// Options configure an Engine. Device, Provider and Sampler are required.
type Options struct {
	Device       Device
	Provider     surface.Provider
	Sampler      sampler.Sampler
	Recorder     Recorder
	Logger       *slog.Logger
	Intervals    maintenance.Intervals
	EventMin     time.Duration
	EventMax     time.Duration
	ConfigSource string

	Clock        func() time.Time
	Sleeper      func(context.Context, time.Duration) error
	Rand         *rand.Rand
	Slice        time.Duration
	Backoff      time.Duration
	RefreshPause time.Duration
}

// Snapshot is a consistent copy of the engine's observable state.
type Snapshot struct {
	State       State
	Variant     string
	Handle      surface.Handle
	Events      int64
	Failures    int64
	Recoveries  int
	Refreshes   int
	Cursor      model.Point
	LastPattern pattern.Pattern
	LastSummary string
	Usage       model.Usage
	StartedAt   time.Time
}

// Engine is a single-use session runner.
type Engine struct {
	device       Device
	provider     surface.Provider
	sampler      sampler.Sampler
	recorder     Recorder
	logger       *slog.Logger
	eventMin     time.Duration
	eventMax     time.Duration
	configSource string
	clock        func() time.Time
	sleeper      func(context.Context, time.Duration) error
	rng          *rand.Rand
	slice        time.Duration
	backoff      time.Duration
	refreshPause time.Duration

	dispatcher *dispatch.Dispatcher
	used       atomic.Bool
	running    atomic.Bool
	stopReq    atomic.Bool
	state      atomic.Int32

	// Owned by the engine goroutine.
	sched      *maintenance.Scheduler
	handle     surface.Handle
	cursor     model.Point
	recoveries int
	refreshes  int
	counts     map[pattern.Pattern]*model.PatternCount

	mu   sync.Mutex
	snap Snapshot
}

// New validates options and builds an idle engine.
func New(opts Options) (*Engine, error) {
	if opts.Device == nil {
		return nil, errors.New("engine: device is required")
	}
	if opts.Provider == nil {
		return nil, errors.New("engine: surface provider is required")
	}
	if opts.Sampler == nil {
		return nil, errors.New("engine: resource sampler is required")
	}
	if opts.EventMin < 0 || opts.EventMax < opts.EventMin {
		return nil, fmt.Errorf("engine: invalid event interval [%s, %s]", opts.EventMin, opts.EventMax)
	}
	if b := opts.Device.Bounds(); b.Width < 1 || b.Height < 1 {
		return nil, fmt.Errorf("engine: invalid surface bounds %dx%d", b.Width, b.Height)
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	sched, err := maintenance.NewScheduler(opts.Intervals, clock())
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	sleeper := opts.Sleeper
	if sleeper == nil {
		sleeper = defaultSleeper
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	e := &Engine{
		device:       opts.Device,
		provider:     opts.Provider,
		sampler:      opts.Sampler,
		recorder:     opts.Recorder,
		logger:       logger.With("variant", opts.Device.Name()),
		eventMin:     opts.EventMin,
		eventMax:     opts.EventMax,
		configSource: opts.ConfigSource,
		clock:        clock,
		sleeper:      sleeper,
		rng:          rng,
		slice:        orDefault(opts.Slice, defaultSlice),
		backoff:      orDefault(opts.Backoff, defaultBackoff),
		refreshPause: orDefault(opts.RefreshPause, defaultRefreshPause),
		sched:        sched,
		cursor:       opts.Device.Bounds().Center(),
		counts:       map[pattern.Pattern]*model.PatternCount{},
	}
	e.dispatcher = dispatch.New(opts.Provider, e.logger)
	e.snap = Snapshot{State: Idle, Variant: opts.Device.Name(), Cursor: e.cursor}
	return e, nil
}

func orDefault(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Stop asks the session loop to finish. It returns immediately and may be
// called before Run.
func (e *Engine) Stop() {
	e.stopReq.Store(true)
	e.running.Store(false)
}

// Snapshot returns the current observable state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.snap
	s.State = e.State()
	s.Events = e.dispatcher.Count()
	s.Failures = e.dispatcher.Failures()
	return s
}

func (e *Engine) update(fn func(*Snapshot)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.snap)
}

func (e *Engine) setState(s State) {
	prev := State(e.state.Swap(int32(s)))
	if prev != s {
		e.logger.Debug("engine state changed", "from", prev.String(), "to", s.String())
	}
}

func (e *Engine) active(ctx context.Context) bool {
	return e.running.Load() && !e.stopReq.Load() && ctx.Err() == nil
}

// Run executes the session until ctx is cancelled or Stop is called. It
// returns nil on a normal stop; an engine runs at most once.
func (e *Engine) Run(ctx context.Context) error {
	if !e.used.CompareAndSwap(false, true) {
		return ErrEngineUsed
	}
	e.running.Store(true)

	started := e.clock()
	e.sched.ResetAll(started)
	e.dispatcher.Reset()
	e.update(func(s *Snapshot) { s.StartedAt = started })
	e.logger.Info("session started",
		"patterns", describePatterns(e.device.Patterns()),
		"event_interval_min", e.eventMin.String(),
		"event_interval_max", e.eventMax.String(),
		"config", e.configSource)
	_ = e.sample()

	e.setState(Acquiring)
	for e.active(ctx) {
		switch e.State() {
		case Acquiring:
			if err := e.acquire(ctx); err != nil {
				e.enterRecovery(err)
				continue
			}
			e.setState(Running)
		case Running:
			if err := e.step(ctx); err != nil {
				e.enterRecovery(err)
			}
		case Recovering:
			if !e.sleep(ctx, e.backoff) {
				continue
			}
			if e.handle == "" {
				e.setState(Acquiring)
			} else {
				e.setState(Running)
			}
		}
	}

	e.teardown(ctx, started)
	return nil
}

func (e *Engine) enterRecovery(err error) {
	e.recoveries++
	e.update(func(s *Snapshot) { s.Recoveries = e.recoveries })
	e.logger.Warn("session error, recovering", "err", err, "backoff", e.backoff.String())
	e.setState(Recovering)
}

func (e *Engine) acquire(ctx context.Context) error {
	h, err := e.provider.Create(ctx, surface.Options{
		Title:  "inputsim " + e.device.Name(),
		Bounds: e.device.Bounds(),
	})
	if err != nil {
		return fmt.Errorf("create surface: %w", err)
	}
	e.setHandle(h)
	e.logger.Info("surface acquired", "handle", string(h))
	return nil
}

func (e *Engine) setHandle(h surface.Handle) {
	e.handle = h
	e.update(func(s *Snapshot) { s.Handle = h })
}

// step plays one pattern and performs due maintenance.
func (e *Engine) step(ctx context.Context) error {
	if e.handle == "" {
		return errNoSurface
	}
	seq := e.device.Plan(e.rng, e.cursor)
	e.play(ctx, seq)
	if !e.active(ctx) {
		return nil
	}

	if _, err := e.provider.Drain(e.handle); err != nil {
		return fmt.Errorf("drain after pattern: %w", err)
	}
	e.maintain(ctx)
	if !e.active(ctx) {
		return nil
	}
	if e.handle == "" {
		return errNoSurface
	}

	e.sleep(ctx, e.uniform(e.eventMin, e.eventMax))
	return nil
}

func (e *Engine) play(ctx context.Context, seq pattern.Sequence) {
	count := e.counts[seq.Pattern]
	if count == nil {
		count = &model.PatternCount{Pattern: string(seq.Pattern)}
		e.counts[seq.Pattern] = count
	}
	count.Runs++

	delivered := 0
	defer func() {
		count.Events += delivered
		e.update(func(s *Snapshot) {
			s.Cursor = e.cursor
			s.LastPattern = seq.Pattern
			s.LastSummary = seq.Summary
		})
	}()

	for i, te := range seq.Events {
		e.hold(ctx, te.Delay)
		if e.handle == "" || !e.dispatcher.Dispatch(e.handle, te.Event) {
			count.Failures++
			e.logger.Warn("pattern partially failed", "pattern", string(seq.Pattern),
				"failed_at", i, "total", len(seq.Events))
			return
		}
		delivered++
		if te.Event.Kind == model.PointerMove {
			e.cursor = model.Point{X: te.Event.X, Y: te.Event.Y}
		}
	}
	e.logger.Info("pattern completed", "pattern", string(seq.Pattern), "summary", seq.Summary,
		"events", len(seq.Events), "total_events", e.dispatcher.Count())
}

func (e *Engine) maintain(ctx context.Context) {
	now := e.clock()
	actions := []struct {
		action maintenance.Action
		fn     func() error
	}{
		{maintenance.Drain, e.drain},
		{maintenance.Refresh, func() error { return e.refresh(ctx) }},
		{maintenance.Sample, e.sample},
	}
	for _, a := range actions {
		if fired, err := e.sched.Run(a.action, now, a.fn); err != nil {
			e.logger.Warn("maintenance action failed", "action", a.action.String(), "err", err)
		} else if fired {
			e.logger.Debug("maintenance action completed", "action", a.action.String())
		}
		if !e.active(ctx) {
			return
		}
	}
}

func (e *Engine) drain() error {
	if e.handle == "" {
		return errNoSurface
	}
	n, err := e.provider.Drain(e.handle)
	if err != nil {
		return err
	}
	e.logger.Debug("drained surface queue", "processed", n)
	return nil
}

// refresh destroys the surface, pauses and creates a new one. On failure the
// handle stays empty and the engine recovers.
func (e *Engine) refresh(ctx context.Context) error {
	if e.handle != "" {
		if err := e.provider.Destroy(e.handle); err != nil {
			e.logger.Warn("failed to destroy surface", "handle", string(e.handle), "err", err)
		}
		e.setHandle("")
	}
	if !e.sleep(ctx, e.refreshPause) {
		return nil
	}
	if err := e.acquire(ctx); err != nil {
		return err
	}
	e.refreshes++
	e.update(func(s *Snapshot) { s.Refreshes = e.refreshes })
	e.logger.Info("surface refreshed", "refreshes", e.refreshes)
	return nil
}

func (e *Engine) sample() error {
	usage, err := e.sampler.Sample()
	if err != nil {
		e.logger.Warn("resource sample failed", "err", err)
		return err
	}
	e.update(func(s *Snapshot) { s.Usage = usage })
	e.logger.Info("resource usage",
		"cpu_percent", fmt.Sprintf("%.1f", usage.CPUPercent),
		"memory_mb", fmt.Sprintf("%.1f", usage.MemoryMB()))
	return nil
}

// sleep waits d in slices, running due drains between slices. It reports
// whether the session is still active.
func (e *Engine) sleep(ctx context.Context, d time.Duration) bool {
	for d > 0 {
		if !e.active(ctx) {
			return false
		}
		chunk := min(d, e.slice)
		if err := e.sleeper(ctx, chunk); err != nil {
			return false
		}
		d -= chunk
		e.drainIfDue()
	}
	return e.active(ctx)
}

// hold waits d between the events of a started pattern. A stop request does
// not cut it short, so down/up pairs stay balanced; a cancelled ctx skips the
// remaining wait and the pattern finishes without delays.
func (e *Engine) hold(ctx context.Context, d time.Duration) {
	for d > 0 && ctx.Err() == nil {
		chunk := min(d, e.slice)
		if err := e.sleeper(ctx, chunk); err != nil {
			return
		}
		d -= chunk
		e.drainIfDue()
	}
}

func (e *Engine) drainIfDue() {
	if e.handle == "" || !e.sched.Due(maintenance.Drain, e.clock()) {
		return
	}
	if _, err := e.sched.Run(maintenance.Drain, e.clock(), e.drain); err != nil {
		e.logger.Warn("maintenance action failed", "action", "drain", "err", err)
	}
}

func (e *Engine) uniform(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(e.rng.Int63n(int64(hi-lo)+1))
}

func (e *Engine) teardown(ctx context.Context, started time.Time) {
	e.running.Store(false)
	if e.handle != "" {
		if _, err := e.provider.Drain(e.handle); err != nil {
			e.logger.Debug("final drain failed", "err", err)
		}
		if err := e.provider.Destroy(e.handle); err != nil {
			e.logger.Warn("failed to destroy surface", "err", err)
		}
		e.setHandle("")
	}
	_ = e.sample()
	e.setState(Stopped)

	ended := e.clock()
	e.logger.Info("session stopped",
		"total_events", e.dispatcher.Count(),
		"failures", e.dispatcher.Failures(),
		"recoveries", e.recoveries,
		"refreshes", e.refreshes,
		"duration", ended.Sub(started).Round(time.Millisecond).String())

	if e.recorder == nil {
		return
	}
	rec := e.record(started, ended)
	if err := e.recorder.RecordSession(context.WithoutCancel(ctx), rec); err != nil {
		e.logger.Warn("failed to record session", "err", err)
	}
}

func (e *Engine) record(started, ended time.Time) model.SessionRecord {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	counts := make([]model.PatternCount, 0, len(e.counts))
	for _, c := range e.counts {
		counts = append(counts, *c)
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].Pattern < counts[j].Pattern })
	return model.SessionRecord{
		ID:           id.String(),
		Variant:      e.device.Name(),
		StartedAt:    started,
		EndedAt:      ended,
		Events:       e.dispatcher.Count(),
		Failures:     e.dispatcher.Failures(),
		Recoveries:   e.recoveries,
		Refreshes:    e.refreshes,
		FinalUsage:   e.Snapshot().Usage,
		ConfigSource: e.configSource,
		Patterns:     counts,
	}
}

func describePatterns(ds []pattern.Descriptor) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, fmt.Sprintf("%s=%.2f", d.Pattern, d.Weight))
	}
	return out
}

func defaultSleeper(ctx context.Context, wait time.Duration) error {
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
