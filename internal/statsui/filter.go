package statsui

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/inputsim/internal/model"
)

const dateLayout = "2006-01-02"

const (
	filterVariant = iota
	filterSince
	filterLast
	filterWindow
)

// filterForm edits the history query and the trend window.
type filterForm struct {
	active bool
	inputs []textinput.Model
	focus  int
	err    string
}

func newFilterForm() filterForm {
	prompts := []string{"Variant   ", "Since     ", "Last      ", "Window    "}
	placeholders := []string{"keyboard | mouse", dateLayout, "all", "sessions"}
	f := filterForm{inputs: make([]textinput.Model, len(prompts))}
	for i, prompt := range prompts {
		in := textinput.New()
		in.Prompt = prompt
		in.Placeholder = placeholders[i]
		in.Cursor.SetMode(cursor.CursorBlink)
		f.inputs[i] = in
	}
	return f
}

func (f *filterForm) open(cfg model.HistoryConfig, window int) tea.Cmd {
	values := []string{cfg.Variant, "", "", strconv.Itoa(window)}
	if cfg.Since != nil {
		values[filterSince] = cfg.Since.Format(dateLayout)
	}
	if cfg.Last > 0 {
		values[filterLast] = strconv.Itoa(cfg.Last)
	}
	for i, v := range values {
		f.inputs[i].SetValue(v)
	}
	f.active = true
	f.err = ""
	return f.focusAt(0)
}

func (f *filterForm) focusAt(idx int) tea.Cmd {
	n := len(f.inputs)
	f.focus = (idx%n + n) % n
	var cmd tea.Cmd
	for i := range f.inputs {
		if i == f.focus {
			cmd = f.inputs[i].Focus()
			continue
		}
		f.inputs[i].Blur()
	}
	return cmd
}

func (f *filterForm) setWidth(width int) {
	for i := range f.inputs {
		f.inputs[i].Width = max(10, width-len(f.inputs[i].Prompt)-2)
	}
}

func (f *filterForm) value(idx int) string {
	return strings.TrimSpace(f.inputs[idx].Value())
}

// parse validates the form into a history query and a trend window.
func (f *filterForm) parse() (model.HistoryConfig, int, error) {
	cfg := model.HistoryConfig{Variant: strings.ToLower(f.value(filterVariant))}
	switch cfg.Variant {
	case "", "keyboard", "mouse":
	default:
		return cfg, 0, errors.New("variant must be keyboard or mouse")
	}
	if raw := f.value(filterSince); raw != "" {
		since, err := time.ParseInLocation(dateLayout, raw, time.Local)
		if err != nil {
			return cfg, 0, errors.New("since must be YYYY-MM-DD")
		}
		cfg.Since = &since
	}
	if raw := f.value(filterLast); raw != "" {
		last, err := strconv.Atoi(raw)
		if err != nil || last < 0 {
			return cfg, 0, errors.New("last must be a non-negative integer")
		}
		cfg.Last = last
	}
	window, err := strconv.Atoi(f.value(filterWindow))
	if err != nil || window < 1 {
		return cfg, 0, errors.New("window must be a positive integer")
	}
	return cfg, window, nil
}

func (f *filterForm) view() string {
	lines := make([]string, 0, len(f.inputs)+2)
	lines = append(lines, styles.cardValue.Render("Filter"))
	for _, in := range f.inputs {
		lines = append(lines, in.View())
	}
	if f.err != "" {
		lines = append(lines, styles.err.Render(f.err))
	}
	return strings.Join(lines, "\n")
}
