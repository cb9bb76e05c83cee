// Package statsui provides the Bubble Tea session history browser.
package statsui

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/inputsim/internal/model"
	"github.com/verte-zerg/inputsim/internal/stats"
)

const (
	tabOverview = iota
	tabSessions
	tabPatterns
)

var tabNames = []string{"Overview", "Sessions", "Patterns"}

const headerLines = 2

// Model implements the Bubble Tea history UI.
type Model struct {
	src    stats.Source
	cfg    model.HistoryConfig
	window int

	report  stats.Report
	loadErr error

	active   int
	overview viewport.Model
	sessions table.Model
	patterns table.Model
	form     filterForm

	width, height int
}

// NewModel constructs a history UI model and loads the first report.
func NewModel(src stats.Source, cfg model.HistoryConfig, window int) *Model {
	m := &Model{
		src:      src,
		cfg:      cfg,
		window:   max(1, window),
		overview: viewport.New(0, 0),
		sessions: table.New(table.WithStyles(historyTableStyles())),
		patterns: table.New(table.WithStyles(historyTableStyles())),
		form:     newFilterForm(),
	}
	m.reload()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		m.populate()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.form.active {
			return m, m.updateForm(msg)
		}
		return m, m.updateBrowse(msg)
	}
	return m, nil
}

func (m *Model) updateBrowse(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q", "esc":
		return tea.Quit
	case "left", "h", "shift+tab":
		m.selectTab(m.active - 1)
		return tea.ClearScreen
	case "right", "l", "tab":
		m.selectTab(m.active + 1)
		return tea.ClearScreen
	case "=", "+":
		m.window++
		m.populate()
		return nil
	case "-":
		m.window = max(1, m.window-1)
		m.populate()
		return nil
	case "r":
		m.reload()
		return nil
	case "/":
		return m.form.open(m.cfg, m.window)
	}

	var cmd tea.Cmd
	switch m.active {
	case tabSessions:
		m.sessions, cmd = m.sessions.Update(msg)
	case tabPatterns:
		m.patterns, cmd = m.patterns.Update(msg)
	default:
		m.overview, cmd = m.overview.Update(msg)
	}
	return cmd
}

func (m *Model) updateForm(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.form.active = false
		return nil
	case "enter":
		cfg, window, err := m.form.parse()
		if err != nil {
			m.form.err = err.Error()
			return nil
		}
		m.cfg, m.window = cfg, window
		m.form.active = false
		m.reload()
		return nil
	case "tab", "down":
		return m.form.focusAt(m.form.focus + 1)
	case "shift+tab", "up":
		return m.form.focusAt(m.form.focus - 1)
	}
	var cmd tea.Cmd
	m.form.inputs[m.form.focus], cmd = m.form.inputs[m.form.focus].Update(msg)
	return cmd
}

func (m *Model) selectTab(idx int) {
	n := len(tabNames)
	m.active = (idx%n + n) % n
	if m.active == tabSessions {
		m.sessions.Focus()
	} else {
		m.sessions.Blur()
	}
	if m.active == tabPatterns {
		m.patterns.Focus()
	} else {
		m.patterns.Blur()
	}
}

func (m *Model) bodyHeight() int {
	footer := 1
	if m.loadErr != nil && !m.form.active {
		footer++
	}
	return max(1, m.height-headerLines-footer)
}

func (m *Model) resize() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	body := m.bodyHeight()
	m.overview.Width, m.overview.Height = m.width, body
	for _, t := range []*table.Model{&m.sessions, &m.patterns} {
		t.SetWidth(m.width)
		t.SetHeight(max(1, body-1))
	}
	m.form.setWidth(m.width)
}

func (m *Model) reload() {
	report, err := stats.BuildReport(context.Background(), m.src, m.cfg)
	m.loadErr = err
	if err != nil {
		m.overview.SetContent("Failed to load history.")
		return
	}
	m.report = report
	m.populate()
}

func (m *Model) populate() {
	if m.loadErr != nil {
		return
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.overview.SetContent(overviewContent(m.report, m.window, width))

	cols, rows := sessionRows(m.report.Sessions)
	m.sessions.SetRows(nil)
	m.sessions.SetColumns(cols)
	m.sessions.SetRows(rows)
	cols, rows = patternRows(m.report.Patterns)
	m.patterns.SetRows(nil)
	m.patterns.SetColumns(cols)
	m.patterns.SetRows(rows)
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	header := m.tabBar() + "\n" + styles.muted.Render(clip(m.querySummary(), m.width))
	footer := m.helpLine()
	if m.loadErr != nil && !m.form.active {
		footer += "\n" + styles.err.Render(clip(m.loadErr.Error(), m.width))
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		frame(header, m.width, headerLines),
		frame(m.body(), m.width, m.bodyHeight()),
		footer,
	)
}

func (m *Model) tabBar() string {
	parts := make([]string, 0, 2*len(tabNames))
	for i, name := range tabNames {
		if i > 0 {
			parts = append(parts, styles.separator.Render("│"))
		}
		if i == m.active {
			parts = append(parts, styles.tabActive.Render(name))
		} else {
			parts = append(parts, styles.tab.Render(name))
		}
	}
	return strings.Join(parts, "")
}

func (m *Model) querySummary() string {
	variant, since, last := "any", "any", "all"
	if m.cfg.Variant != "" {
		variant = m.cfg.Variant
	}
	if m.cfg.Since != nil {
		since = m.cfg.Since.Format(dateLayout)
	}
	if m.cfg.Last > 0 {
		last = strconv.Itoa(m.cfg.Last)
	}
	return fmt.Sprintf("variant %s · since %s · last %s · window %d", variant, since, last, m.window)
}

func (m *Model) helpLine() string {
	if m.form.active {
		return styles.muted.Render("tab/up/down: field  enter: apply  esc: cancel")
	}
	return styles.muted.Render(clip("←/→: tab  ↑/↓: scroll  -/=: window  /: filter  r: reload  q: quit", m.width))
}

func (m *Model) body() string {
	if m.form.active {
		return m.form.view()
	}
	if m.active == tabOverview {
		return m.overview.View()
	}
	if len(m.report.Sessions) == 0 {
		return "No sessions found."
	}
	if m.active == tabSessions {
		return m.sessions.View()
	}
	return m.patterns.View()
}

func overviewContent(report stats.Report, window, width int) string {
	if len(report.Sessions) == 0 {
		return "No sessions found."
	}
	var events, failures int64
	var runtime time.Duration
	for _, s := range report.Sessions {
		events += s.Events
		failures += s.Failures
		runtime += s.EndedAt.Sub(s.StartedAt)
	}
	rate, failureRate := stats.SessionMetrics(events, failures, runtime)
	cards := lipgloss.JoinHorizontal(lipgloss.Top,
		card("Sessions", strconv.Itoa(len(report.Sessions))),
		card("Runtime", runtime.Round(time.Second).String()),
		card("Events", strconv.FormatInt(events, 10)),
		card("Events/min", fmt.Sprintf("%.1f", rate)),
		card("Failure rate", fmt.Sprintf("%.2f%%", failureRate*100)),
	)
	var trends bytes.Buffer
	if err := stats.RenderTrends(&trends, report.Sessions, window, max(10, width-40)); err != nil {
		return cards
	}
	return strings.TrimRight(cards+"\n\n"+trends.String(), "\n")
}

func card(label, value string) string {
	return styles.card.Render(styles.cardLabel.Render(label) + "\n" + styles.cardValue.Render(value))
}

func sessionRows(sessions []model.SessionAggregate) ([]table.Column, []table.Row) {
	cols := []table.Column{
		{Title: "Ended", Width: 16},
		{Title: "Variant", Width: 8},
		{Title: "Duration", Width: 10},
		{Title: "Events", Width: 8},
		{Title: "Events/min", Width: 10},
		{Title: "Failures", Width: 8},
		{Title: "Recoveries", Width: 10},
		{Title: "Refreshes", Width: 9},
	}
	rows := make([]table.Row, 0, len(sessions))
	for i := len(sessions) - 1; i >= 0; i-- {
		s := sessions[i]
		d := s.EndedAt.Sub(s.StartedAt)
		rate, _ := stats.SessionMetrics(s.Events, s.Failures, d)
		rows = append(rows, table.Row{
			s.EndedAt.Local().Format("2006-01-02 15:04"),
			s.Variant,
			d.Round(time.Second).String(),
			strconv.FormatInt(s.Events, 10),
			fmt.Sprintf("%.1f", rate),
			strconv.FormatInt(s.Failures, 10),
			strconv.Itoa(s.Recoveries),
			strconv.Itoa(s.Refreshes),
		})
	}
	return cols, rows
}

func patternRows(aggs []model.PatternAggregate) ([]table.Column, []table.Row) {
	cols := []table.Column{
		{Title: "Pattern", Width: 16},
		{Title: "Runs", Width: 6},
		{Title: "Events", Width: 8},
		{Title: "Events/run", Width: 10},
		{Title: "Failed runs", Width: 11},
	}
	byName := make(map[string]model.PatternAggregate, len(aggs))
	for _, agg := range aggs {
		byName[agg.Pattern] = agg
	}
	rows := make([]table.Row, 0, len(aggs))
	for _, name := range stats.TopPatterns(aggs, len(aggs)) {
		agg := byName[name]
		perRun := 0.0
		if agg.Runs > 0 {
			perRun = float64(agg.Events) / float64(agg.Runs)
		}
		rows = append(rows, table.Row{
			strings.ReplaceAll(agg.Pattern, "_", " "),
			strconv.Itoa(agg.Runs),
			strconv.Itoa(agg.Events),
			fmt.Sprintf("%.1f", perRun),
			strconv.Itoa(agg.Failures),
		})
	}
	return cols, rows
}
