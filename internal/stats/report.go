package stats

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/verte-zerg/inputsim/internal/model"
)

const (
	terminalWidthBackup = 80
	trendLabelWidth     = 40
)

// Source is the read side of the session store.
type Source interface {
	ListSessions(ctx context.Context, cfg model.HistoryConfig) ([]model.SessionAggregate, error)
	ListPatternAggregates(ctx context.Context, sessionIDs []string) ([]model.PatternAggregate, error)
}

// Report contains precomputed data for history rendering.
type Report struct {
	Sessions []model.SessionAggregate
	Patterns []model.PatternAggregate
}

// RenderOptions tune Render.
type RenderOptions struct {
	Window   int
	Width    int
	Sessions bool
}

// BuildReport loads and prepares data for history rendering.
func BuildReport(ctx context.Context, src Source, cfg model.HistoryConfig) (Report, error) {
	sessions, err := src.ListSessions(ctx, cfg)
	if err != nil {
		return Report{}, err
	}
	if cfg.Last > 0 && len(sessions) > cfg.Last {
		sessions = sessions[len(sessions)-cfg.Last:]
	}
	ids := make([]string, len(sessions))
	for i, s := range sessions {
		ids[i] = s.ID
	}
	patterns, err := src.ListPatternAggregates(ctx, ids)
	if err != nil {
		return Report{}, err
	}
	return Report{Sessions: sessions, Patterns: patterns}, nil
}

// Render prints the full history report.
func Render(w io.Writer, report Report, opts RenderOptions) error {
	if err := RenderSummary(w, report.Sessions); err != nil {
		return err
	}
	if len(report.Sessions) == 0 {
		return nil
	}
	width := opts.Width
	if width <= 0 {
		width = TerminalWidth(os.Stdout)
	}
	if err := RenderTrends(w, report.Sessions, opts.Window, max(width-trendLabelWidth, 10)); err != nil {
		return err
	}
	if opts.Sessions {
		if err := RenderSessionTable(w, report.Sessions); err != nil {
			return err
		}
	}
	if err := RenderPatternTable(w, report.Patterns); err != nil {
		return err
	}
	if top := TopPatterns(report.Patterns, 3); len(top) > 0 {
		if _, err := fmt.Fprintf(w, "Busiest: %s\n", strings.ReplaceAll(strings.Join(top, ", "), "_", " ")); err != nil {
			return err
		}
	}
	failing := FailingPatterns(report.Patterns, 3)
	if len(failing) == 0 {
		return nil
	}
	names := make([]string, len(failing))
	for i, agg := range failing {
		names[i] = fmt.Sprintf("%s (%d/%d)", strings.ReplaceAll(agg.Pattern, "_", " "), agg.Failures, agg.Runs)
	}
	_, err := fmt.Fprintf(w, "Most failing: %s\n", strings.Join(names, ", "))
	return err
}

// TerminalWidth returns the column count of f, or a fallback when f is not a terminal.
func TerminalWidth(f *os.File) int {
	if f == nil || !term.IsTerminal(int(f.Fd())) {
		return terminalWidthBackup
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}
