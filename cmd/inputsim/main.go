// Package main provides the CLI entrypoint for inputsim.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/inputsim/internal/config"
)

const (
	defaultEventMin    = 1.0
	defaultEventMax    = 5.0
	defaultTrendWindow = 5
	defaultLogLevel    = "info"
	defaultLogFormat   = "text"
	variantKeyboard    = "keyboard"
	variantMouse       = "mouse"
)

var (
	configPath string
	dbPath     string

	sessionTUI     bool
	sessionSeed    int64
	sessionHistory bool
	sessionJournal string
	sessionLogDir  string
	logLevel       string
	logFormat      string
	consoleLogging bool

	historyVariant  string
	historySince    string
	historyLast     int
	historyWindow   int
	historySessions bool
	historyTUI      bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "inputsim",
		Short:         "Synthetic keyboard and mouse input into an isolated surface",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath(), "config file (TOML, YAML, or JSON with comments)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", config.DefaultDBPath(), "session history database")

	rootCmd.AddCommand(newSessionCmd(variantKeyboard, "Simulate typing"))
	rootCmd.AddCommand(newSessionCmd(variantMouse, "Simulate pointer movement, clicks and scrolling"))
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newHistoryCmd())
	return rootCmd
}

func newSessionCmd(variant, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   fmt.Sprintf("%s [min [max]]", variant),
		Short: short,
		Long: short + ".\n\nOptional min and max override event_interval_min and event_interval_max (seconds).\n" +
			"Press Esc (or Ctrl-C) to stop.",
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, variant, args)
		},
	}
	cmd.Flags().BoolVar(&sessionTUI, "tui", false, "show a live monitor of the surface")
	cmd.Flags().Int64Var(&sessionSeed, "seed", 0, "random seed (0 picks one from the clock)")
	cmd.Flags().BoolVar(&sessionHistory, "history", true, "record the session in the history database")
	cmd.Flags().StringVar(&sessionJournal, "journal", "", "append every surface operation to this JSON Lines file")
	cmd.Flags().StringVar(&sessionLogDir, "log-dir", config.DefaultLogDir(), "directory for session log files")
	cmd.Flags().StringVar(&logLevel, "log-level", defaultLogLevel, "log level (debug, info, warning, error)")
	cmd.Flags().StringVar(&logFormat, "log-format", defaultLogFormat, "log format (text or json)")
	cmd.Flags().BoolVar(&consoleLogging, "console-log", true, "mirror log records to stderr")
	return cmd
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

// stringParam returns the configured value of key, or nil when it is absent.
// Malformed values resolve to current.
func stringParam(r *config.Reader, key, current string) *string {
	if _, ok := r.Params().Lookup(key); !ok {
		return nil
	}
	v := r.String(key, current)
	return &v
}

func boolParam(r *config.Reader, key string, current bool) *bool {
	if _, ok := r.Params().Lookup(key); !ok {
		return nil
	}
	v := r.Bool(key, current)
	return &v
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
