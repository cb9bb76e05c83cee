package engine

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/inputsim/internal/maintenance"
	"github.com/verte-zerg/inputsim/internal/model"
	"github.com/verte-zerg/inputsim/internal/pattern"
	"github.com/verte-zerg/inputsim/internal/sampler"
	"github.com/verte-zerg/inputsim/internal/surface"
)

var testBounds = model.Bounds{Width: 300, Height: 200}

type stubDevice struct {
	moves bool
}

func (d stubDevice) Name() string         { return "stub" }
func (d stubDevice) Bounds() model.Bounds { return testBounds }
func (d stubDevice) Patterns() []pattern.Descriptor {
	return []pattern.Descriptor{{Pattern: "stub", Weight: 1}}
}

func (d stubDevice) Plan(_ *rand.Rand, cursor model.Point) pattern.Sequence {
	if d.moves {
		to := testBounds.Clamp(model.Point{X: cursor.X + 5, Y: cursor.Y + 3})
		return pattern.Sequence{
			Pattern: "move",
			Events:  []model.TimedEvent{{Event: model.NewPointerMove(to)}},
			Summary: "move",
		}
	}
	return pattern.Sequence{
		Pattern: "stub",
		Events: []model.TimedEvent{
			{Event: model.NewCharInput('a')},
			{Event: model.NewCharInput('b'), Delay: 50 * time.Millisecond},
			{Event: model.NewCharInput('c'), Delay: 50 * time.Millisecond},
		},
		Summary: "typed abc",
	}
}

// fakeTime advances a virtual clock on every sleep and stops the engine once
// the budget is spent.
type fakeTime struct {
	mu     sync.Mutex
	now    time.Time
	slept  time.Duration
	budget time.Duration
	engine *Engine
}

func newFakeTime(budget time.Duration) *fakeTime {
	return &fakeTime{now: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC), budget: budget}
}

func (f *fakeTime) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeTime) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.slept += d
	done := f.slept >= f.budget
	f.mu.Unlock()
	if done && f.engine != nil {
		f.engine.Stop()
	}
	return nil
}

type flakyProvider struct {
	*surface.Sandbox
	createFails int
	creates     int
	postErr     error
}

func (p *flakyProvider) Create(ctx context.Context, opts surface.Options) (surface.Handle, error) {
	p.creates++
	if p.creates <= p.createFails {
		return "", errors.New("surface unavailable")
	}
	return p.Sandbox.Create(ctx, opts)
}

func (p *flakyProvider) Post(h surface.Handle, ev model.Event) error {
	if p.postErr != nil {
		return p.postErr
	}
	return p.Sandbox.Post(h, ev)
}

// recordingProvider remembers posted events and runs onPost after the first one.
type recordingProvider struct {
	*surface.Sandbox
	once   sync.Once
	onPost func()
	posted []model.Event
}

func (p *recordingProvider) Post(h surface.Handle, ev model.Event) error {
	p.posted = append(p.posted, ev)
	if p.onPost != nil {
		p.once.Do(p.onPost)
	}
	return p.Sandbox.Post(h, ev)
}

func assertBalanced(t *testing.T, posted []model.Event) {
	t.Helper()
	keys := map[model.KeyCode]int{}
	buttons := map[model.Button]int{}
	for _, ev := range posted {
		switch ev.Kind {
		case model.KeyDown:
			keys[ev.Code]++
		case model.KeyUp:
			keys[ev.Code]--
		case model.ButtonDown:
			buttons[ev.Button]++
		case model.ButtonUp:
			buttons[ev.Button]--
		}
	}
	for code, n := range keys {
		assert.Zero(t, n, "key %#x unbalanced in %v", code, posted)
	}
	for b, n := range buttons {
		assert.Zero(t, n, "button %s unbalanced in %v", b, posted)
	}
}

type clickDevice struct{}

func (clickDevice) Name() string         { return "click" }
func (clickDevice) Bounds() model.Bounds { return testBounds }
func (clickDevice) Patterns() []pattern.Descriptor {
	return []pattern.Descriptor{{Pattern: "click", Weight: 1}}
}

func (clickDevice) Plan(_ *rand.Rand, _ model.Point) pattern.Sequence {
	return pattern.Sequence{
		Pattern: "click",
		Events: []model.TimedEvent{
			{Event: model.NewKeyDown(model.KeyShift)},
			{Event: model.NewButtonDown(model.ButtonLeft), Delay: 50 * time.Millisecond},
			{Event: model.NewButtonUp(model.ButtonLeft), Delay: 50 * time.Millisecond},
			{Event: model.NewKeyUp(model.KeyShift), Delay: 50 * time.Millisecond},
		},
		Summary: "shift click",
	}
}

type memRecorder struct {
	records []model.SessionRecord
}

func (r *memRecorder) RecordSession(_ context.Context, rec model.SessionRecord) error {
	r.records = append(r.records, rec)
	return nil
}

var fixedUsage = sampler.Func(func() (model.Usage, error) {
	return model.Usage{CPUPercent: 3, MemoryBytes: 32 << 20}, nil
})

func newTestEngine(t *testing.T, ft *fakeTime, opts Options) *Engine {
	t.Helper()
	if opts.Device == nil {
		opts.Device = stubDevice{}
	}
	if opts.Sampler == nil {
		opts.Sampler = fixedUsage
	}
	if opts.Intervals == (maintenance.Intervals{}) {
		opts.Intervals = maintenance.DefaultIntervals()
	}
	if opts.EventMin == 0 && opts.EventMax == 0 {
		opts.EventMin, opts.EventMax = time.Second, time.Second
	}
	opts.Clock = ft.Now
	opts.Sleeper = ft.Sleep
	opts.Rand = rand.New(rand.NewSource(1))
	e, err := New(opts)
	require.NoError(t, err)
	ft.engine = e
	return e
}

func TestRunDeliversPatternsUntilStopped(t *testing.T) {
	ft := newFakeTime(30 * time.Second)
	sandbox := surface.NewSandbox(surface.SandboxOptions{})
	rec := &memRecorder{}
	e := newTestEngine(t, ft, Options{Provider: sandbox, Recorder: rec, ConfigSource: "test.toml"})

	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, Stopped, e.State())

	snap := e.Snapshot()
	assert.Positive(t, snap.Events)
	assert.Zero(t, snap.Failures)
	assert.Zero(t, snap.Recoveries)
	assert.Equal(t, "typed abc", snap.LastSummary)
	assert.Equal(t, 3.0, snap.Usage.CPUPercent)
	assert.Empty(t, snap.Handle)
	assert.Zero(t, sandbox.Open())

	view, ok := sandbox.Latest()
	require.True(t, ok)
	assert.Len(t, view.Text, int(snap.Events))

	require.Len(t, rec.records, 1)
	record := rec.records[0]
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, "stub", record.Variant)
	assert.Equal(t, snap.Events, record.Events)
	assert.Equal(t, "test.toml", record.ConfigSource)
	require.Len(t, record.Patterns, 1)
	assert.Equal(t, "stub", record.Patterns[0].Pattern)
	assert.EqualValues(t, record.Events, record.Patterns[0].Events)
	assert.True(t, record.EndedAt.After(record.StartedAt))
}

func TestRunTwiceReturnsErrEngineUsed(t *testing.T) {
	ft := newFakeTime(2 * time.Second)
	e := newTestEngine(t, ft, Options{Provider: surface.NewSandbox(surface.SandboxOptions{})})
	require.NoError(t, e.Run(context.Background()))
	assert.ErrorIs(t, e.Run(context.Background()), ErrEngineUsed)
}

func TestNewRequiresCollaborators(t *testing.T) {
	sandbox := surface.NewSandbox(surface.SandboxOptions{})
	valid := Options{
		Device:    stubDevice{},
		Provider:  sandbox,
		Sampler:   fixedUsage,
		Intervals: maintenance.DefaultIntervals(),
		EventMin:  time.Second,
		EventMax:  2 * time.Second,
	}
	_, err := New(valid)
	require.NoError(t, err)

	cases := map[string]func(o *Options){
		"device":    func(o *Options) { o.Device = nil },
		"provider":  func(o *Options) { o.Provider = nil },
		"sampler":   func(o *Options) { o.Sampler = nil },
		"intervals": func(o *Options) { o.Intervals.Drain = 0 },
		"events":    func(o *Options) { o.EventMax = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			opts := valid
			mutate(&opts)
			_, err := New(opts)
			assert.Error(t, err)
		})
	}
}

func TestRecoveryReacquiresSurface(t *testing.T) {
	ft := newFakeTime(20 * time.Second)
	provider := &flakyProvider{Sandbox: surface.NewSandbox(surface.SandboxOptions{}), createFails: 2}
	e := newTestEngine(t, ft, Options{Provider: provider})

	require.NoError(t, e.Run(context.Background()))
	snap := e.Snapshot()
	assert.Equal(t, 2, snap.Recoveries)
	assert.Equal(t, 3, provider.creates)
	assert.Positive(t, snap.Events)
}

func TestRefreshRecreatesSurface(t *testing.T) {
	ft := newFakeTime(10 * time.Second)
	provider := &flakyProvider{Sandbox: surface.NewSandbox(surface.SandboxOptions{})}
	e := newTestEngine(t, ft, Options{
		Provider:  provider,
		Intervals: maintenance.Intervals{Drain: time.Second, Refresh: 2 * time.Second, Sample: 30 * time.Second},
	})

	require.NoError(t, e.Run(context.Background()))
	snap := e.Snapshot()
	assert.GreaterOrEqual(t, snap.Refreshes, 2)
	assert.Equal(t, 1+snap.Refreshes, provider.creates)
	assert.Zero(t, snap.Recoveries)
	assert.Zero(t, provider.Open())
}

func TestDispatchFailureDoesNotRecover(t *testing.T) {
	ft := newFakeTime(10 * time.Second)
	provider := &flakyProvider{Sandbox: surface.NewSandbox(surface.SandboxOptions{}), postErr: surface.ErrQueueFull}
	rec := &memRecorder{}
	e := newTestEngine(t, ft, Options{Provider: provider, Recorder: rec})

	require.NoError(t, e.Run(context.Background()))
	snap := e.Snapshot()
	assert.Zero(t, snap.Events)
	assert.Positive(t, snap.Failures)
	assert.Zero(t, snap.Recoveries)

	require.Len(t, rec.records, 1)
	require.Len(t, rec.records[0].Patterns, 1)
	p := rec.records[0].Patterns[0]
	assert.Equal(t, p.Runs, p.Failures)
}

func TestCursorFollowsMoves(t *testing.T) {
	ft := newFakeTime(5 * time.Second)
	e := newTestEngine(t, ft, Options{
		Device:   stubDevice{moves: true},
		Provider: surface.NewSandbox(surface.SandboxOptions{}),
	})
	require.NoError(t, e.Run(context.Background()))
	snap := e.Snapshot()
	center := testBounds.Center()
	n := int(snap.Events)
	require.Positive(t, n)
	assert.Equal(t, model.Point{X: center.X + 5*n, Y: center.Y + 3*n}, snap.Cursor)
	assert.Equal(t, pattern.Pattern("move"), snap.LastPattern)
}

func TestStopBeforeRun(t *testing.T) {
	ft := newFakeTime(time.Hour)
	sandbox := surface.NewSandbox(surface.SandboxOptions{})
	e := newTestEngine(t, ft, Options{Provider: sandbox})
	e.Stop()
	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, Stopped, e.State())
	assert.Zero(t, e.Snapshot().Events)
	assert.Zero(t, sandbox.Open())
}

func TestCancellationIsResponsive(t *testing.T) {
	e, err := New(Options{
		Device:    stubDevice{},
		Provider:  surface.NewSandbox(surface.SandboxOptions{}),
		Sampler:   fixedUsage,
		Intervals: maintenance.DefaultIntervals(),
		EventMin:  10 * time.Second,
		EventMax:  10 * time.Second,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, Running, e.State())
	start := time.Now()
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
		assert.Less(t, time.Since(start), time.Second)
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop after cancellation")
	}
	assert.Equal(t, Stopped, e.State())
}

func TestStopDuringKeystrokeFinishesPattern(t *testing.T) {
	ft := newFakeTime(time.Hour)
	provider := &recordingProvider{Sandbox: surface.NewSandbox(surface.SandboxOptions{})}
	e := newTestEngine(t, ft, Options{
		Device:   pattern.NewKeyboard(pattern.DefaultKeyboardSettings(), nil),
		Provider: provider,
	})
	provider.onPost = e.Stop

	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, Stopped, e.State())
	require.NotEmpty(t, provider.posted)
	assertBalanced(t, provider.posted)

	view, ok := provider.Latest()
	require.True(t, ok)
	assert.Empty(t, view.Held)
	assert.EqualValues(t, len(provider.posted), e.Snapshot().Events)
}

func TestStopDuringHoldReleasesButtons(t *testing.T) {
	ft := newFakeTime(time.Millisecond)
	provider := &recordingProvider{Sandbox: surface.NewSandbox(surface.SandboxOptions{})}
	e := newTestEngine(t, ft, Options{Device: clickDevice{}, Provider: provider})

	require.NoError(t, e.Run(context.Background()))
	require.Len(t, provider.posted, 4)
	assertBalanced(t, provider.posted)

	view, ok := provider.Latest()
	require.True(t, ok)
	assert.Empty(t, view.Held)
	assert.Empty(t, view.Pressed)
}
