package statsui

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

type theme struct {
	tab       lipgloss.Style
	tabActive lipgloss.Style
	separator lipgloss.Style
	muted     lipgloss.Style
	err       lipgloss.Style
	card      lipgloss.Style
	cardLabel lipgloss.Style
	cardValue lipgloss.Style
}

var (
	colorAccent = lipgloss.Color("#5FB3B3")
	colorText   = lipgloss.Color("#E5E9F0")
	colorDim    = lipgloss.Color("#7B8494")
	colorLine   = lipgloss.Color("#3B4252")
	colorError  = lipgloss.Color("#E06C75")
)

var styles = theme{
	tab:       lipgloss.NewStyle().Foreground(colorDim).Padding(0, 1),
	tabActive: lipgloss.NewStyle().Foreground(colorAccent).Bold(true).Underline(true).Padding(0, 1),
	separator: lipgloss.NewStyle().Foreground(colorLine),
	muted:     lipgloss.NewStyle().Foreground(colorDim),
	err:       lipgloss.NewStyle().Foreground(colorError),
	card: lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(colorAccent).
		PaddingLeft(1).
		MarginRight(2),
	cardLabel: lipgloss.NewStyle().Foreground(colorDim),
	cardValue: lipgloss.NewStyle().Foreground(colorText).Bold(true),
}

func historyTableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = lipgloss.NewStyle().
		Foreground(colorAccent).
		Bold(true).
		PaddingRight(1).
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(colorLine)
	s.Cell = lipgloss.NewStyle().Foreground(colorText).PaddingRight(1)
	s.Selected = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	return s
}

// frame pads or cuts s to exactly width x height cells.
func frame(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	return lipgloss.NewStyle().
		Width(width).MaxWidth(width).
		Height(height).MaxHeight(height).
		Render(s)
}

func clip(s string, width int) string {
	if width <= 0 {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}
