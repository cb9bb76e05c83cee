// Package tui provides the Bubble Tea session monitor.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/inputsim/internal/control"
	"github.com/verte-zerg/inputsim/internal/engine"
	"github.com/verte-zerg/inputsim/internal/model"
	"github.com/verte-zerg/inputsim/internal/surface"
)

const (
	tickInterval  = 100 * time.Millisecond
	recentRunes   = 8
	pointerMapW   = 48
	pointerMapH   = 12
	contentFactor = 0.70
)

var (
	typedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	recentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	cursorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C")).Underline(true)
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#C0C0C0")).Bold(true)
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	mapStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder(), true).BorderForeground(lipgloss.Color("#4A4A4A"))
	pointerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
)

// Source exposes the running engine to the monitor.
type Source interface {
	Snapshot() engine.Snapshot
}

// ViewFunc returns the current state of the surface receiving events.
type ViewFunc func() (surface.View, bool)

type tickMsg time.Time

type doneMsg struct{}

// Model implements the Bubble Tea monitor. It is also a control.Poller that
// reports a stop request once the operator presses Esc, q or Ctrl-C.
type Model struct {
	control.Flag

	src     Source
	view    ViewFunc
	clock   func() time.Time
	spinner spinner.Model

	width  int
	height int

	snap    engine.Snapshot
	surface surface.View
	hasView bool
	done    bool
}

// NewModel constructs a monitor for src. view may be nil.
func NewModel(src Source, view ViewFunc) *Model {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
	)
	return &Model{src: src, view: view, clock: time.Now, spinner: s}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			m.Request()
			return m, nil
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tickMsg:
		m.poll()
		return m, tick()
	case doneMsg:
		m.done = true
		m.poll()
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) poll() {
	m.snap = m.src.Snapshot()
	if m.view != nil {
		m.surface, m.hasView = m.view()
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	header := m.renderHeader()
	body := m.renderBody()
	footer := m.renderFooter()
	if m.width == 0 || m.height == 0 {
		return header + "\n\n" + body + "\n\n" + footer
	}
	bodyHeight := max(1, m.height-2)
	return lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Top, header) + "\n" +
		lipgloss.Place(m.width, bodyHeight, lipgloss.Center, lipgloss.Center, body) + "\n" +
		lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Bottom, footer)
}

func (m *Model) renderHeader() string {
	status := m.snap.State.String()
	if m.Requested() && !m.done {
		status = "stopping"
	}
	indicator := m.spinner.View()
	if m.done {
		indicator = "■"
	}
	title := fmt.Sprintf("%s %s session · %s", indicator, m.snap.Variant, status)
	if m.snap.State == engine.Recovering {
		return warnStyle.Render(title)
	}
	return titleStyle.Render(title)
}

func (m *Model) renderBody() string {
	if !m.hasView {
		return footerStyle.Render("waiting for surface…")
	}
	if m.snap.Variant == "mouse" {
		return m.renderPointer()
	}
	return m.renderText()
}

func (m *Model) renderText() string {
	width := 60
	if m.width > 0 {
		width = max(1, int(float64(m.width)*contentFactor))
	}
	wrapped := wrapStyledRunes(buildStyledRunes([]rune(m.surface.Text), recentRunes), width)
	lines := 10
	if m.height > 0 {
		lines = max(1, m.height-4)
	}
	return lipgloss.NewStyle().Width(width).Render(tailLines(wrapped, lines))
}

func (m *Model) renderPointer() string {
	grid := pointerMap(m.surface.Bounds, m.surface.Pointer, pointerMapW, pointerMapH)
	caption := fmt.Sprintf("pointer %d,%d  buttons %s  wheel %d",
		m.surface.Pointer.X, m.surface.Pointer.Y, pressedLabel(m.surface.Pressed), m.surface.Wheel)
	return mapStyle.Render(grid) + "\n" + footerStyle.Render(caption)
}

func pointerMap(bounds model.Bounds, p model.Point, w, h int) string {
	col, row := 0, 0
	if bounds.Width > 0 && bounds.Height > 0 {
		col = min(w-1, p.X*w/bounds.Width)
		row = min(h-1, p.Y*h/bounds.Height)
	}
	var b strings.Builder
	for y := 0; y < h; y++ {
		if y > 0 {
			b.WriteByte('\n')
		}
		for x := 0; x < w; x++ {
			if x == col && y == row {
				b.WriteString(pointerStyle.Render("●"))
				continue
			}
			b.WriteByte(' ')
		}
	}
	return b.String()
}

func pressedLabel(buttons []model.Button) string {
	if len(buttons) == 0 {
		return "-"
	}
	names := make([]string, len(buttons))
	for i, b := range buttons {
		names[i] = string(b)
	}
	return strings.Join(names, "+")
}

func (m *Model) renderFooter() string {
	segments := []string{
		fmt.Sprintf("Events %d", m.snap.Events),
		fmt.Sprintf("Failures %d", m.snap.Failures),
		fmt.Sprintf("Recoveries %d", m.snap.Recoveries),
		fmt.Sprintf("Refreshes %d", m.snap.Refreshes),
		fmt.Sprintf("CPU %.1f%%", m.snap.Usage.CPUPercent),
		fmt.Sprintf("Mem %.1f MB", m.snap.Usage.MemoryMB()),
	}
	if !m.snap.StartedAt.IsZero() {
		segments = append(segments, fmt.Sprintf("Up %s", m.clock().Sub(m.snap.StartedAt).Round(time.Second)))
	}
	if m.snap.LastSummary != "" {
		segments = append(segments, "Last "+m.snap.LastSummary)
	}
	if !m.done {
		segments = append(segments, "esc/q: stop")
	}
	return footerStyle.Render(strings.Join(segments, "  "))
}

// Run drives the monitor until stop returns, then shows the final state and
// exits. stop is typically control.Supervise bound to the engine.
func Run(ctx context.Context, m *Model, stop func() error) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(context.WithoutCancel(ctx)))
	errCh := make(chan error, 1)
	go func() {
		errCh <- stop()
		p.Send(doneMsg{})
	}()
	if _, err := p.Run(); err != nil {
		m.Request()
		<-errCh
		return err
	}
	return <-errCh
}
