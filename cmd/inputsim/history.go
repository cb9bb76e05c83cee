package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/inputsim/internal/model"
	"github.com/verte-zerg/inputsim/internal/stats"
	"github.com/verte-zerg/inputsim/internal/statsui"
	"github.com/verte-zerg/inputsim/internal/store"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded sessions",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().StringVar(&historyVariant, "variant", "", "variant filter (keyboard or mouse)")
	cmd.Flags().StringVar(&historySince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&historyLast, "last", 0, "limit to last N sessions")
	cmd.Flags().IntVar(&historyWindow, "window", defaultTrendWindow, "moving average window for trends")
	cmd.Flags().BoolVar(&historySessions, "sessions", false, "list every session")
	cmd.Flags().BoolVar(&historyTUI, "tui", false, "browse history interactively")
	return cmd
}

func historyConfig() (model.HistoryConfig, error) {
	cfg := model.HistoryConfig{
		Variant: strings.ToLower(strings.TrimSpace(historyVariant)),
		Last:    historyLast,
	}
	switch cfg.Variant {
	case "", variantKeyboard, variantMouse:
	default:
		return cfg, fmt.Errorf("--variant must be %s or %s", variantKeyboard, variantMouse)
	}
	if cfg.Last < 0 {
		return cfg, fmt.Errorf("--last must be >= 0")
	}
	if historyWindow < 1 {
		return cfg, fmt.Errorf("--window must be > 0")
	}
	if historySince != "" {
		parsed, err := time.ParseInLocation("2006-01-02", historySince, time.Local)
		if err != nil {
			return cfg, fmt.Errorf("invalid --since value: %w", err)
		}
		cfg.Since = &parsed
	}
	return cfg, nil
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := historyConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	if historyTUI {
		program := tea.NewProgram(statsui.NewModel(st, cfg, historyWindow), tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("failed to run history TUI: %w", err)
		}
		return nil
	}

	report, err := stats.BuildReport(cmd.Context(), st, cfg)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	return stats.Render(cmd.OutOrStdout(), report, stats.RenderOptions{
		Window:   historyWindow,
		Sessions: historySessions,
	})
}
