package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/inputsim/internal/config"
	"github.com/verte-zerg/inputsim/internal/control"
	"github.com/verte-zerg/inputsim/internal/engine"
	"github.com/verte-zerg/inputsim/internal/logging"
	"github.com/verte-zerg/inputsim/internal/maintenance"
	"github.com/verte-zerg/inputsim/internal/pattern"
	"github.com/verte-zerg/inputsim/internal/sampler"
	"github.com/verte-zerg/inputsim/internal/store"
	"github.com/verte-zerg/inputsim/internal/surface"
	"github.com/verte-zerg/inputsim/internal/tui"
)

const (
	pollInterval = 100 * time.Millisecond
	joinTimeout  = time.Second
)

func runSession(cmd *cobra.Command, variant string, args []string) error {
	params := config.Load(configPath, variant)
	boot := config.NewReader(params, nil)
	applyStringConfig(cmd, "log-level", &logLevel, stringParam(boot, "log_level", logLevel))
	applyStringConfig(cmd, "log-format", &logFormat, stringParam(boot, "log_format", logFormat))
	applyStringConfig(cmd, "log-dir", &sessionLogDir, stringParam(boot, "log_dir", sessionLogDir))
	applyBoolConfig(cmd, "console-log", &consoleLogging, boolParam(boot, "console_logging_enabled", consoleLogging))
	applyBoolConfig(cmd, "history", &sessionHistory, boolParam(boot, "history_enabled", sessionHistory))
	applyStringConfig(cmd, "journal", &sessionJournal, stringParam(boot, "journal_file", sessionJournal))
	applyStringConfig(cmd, "db", &dbPath, stringParam(boot, "history_db", dbPath))

	var out io.Writer = os.Stderr
	var keys *control.KeyPoller
	if !sessionTUI {
		var err error
		keys, err = control.WatchKeys(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to watch keyboard: %w", err)
		}
		defer func() {
			if cerr := keys.Close(); cerr != nil {
				logErrf("failed to restore terminal: %v\n", cerr)
			}
		}()
		if keys.Active() {
			out = control.CRLF(os.Stderr)
		}
	}

	var console io.Writer
	if consoleLogging && !sessionTUI {
		console = out
	}
	sess, err := logging.OpenSession(logging.SessionOptions{
		Dir:     sessionLogDir,
		Variant: variant,
		Level:   logLevel,
		Format:  logFormat,
		Console: console,
	})
	if err != nil {
		return fmt.Errorf("failed to open session log: %w", err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			logErrf("failed to close session log: %v\n", cerr)
		}
	}()
	logger := sess.Logger
	for _, note := range params.Notes() {
		logger.Warn(note)
	}
	r := config.NewReader(params, logger)

	device, err := buildDevice(variant, r)
	if err != nil {
		return err
	}
	eventMin, eventMax, err := resolveEventInterval(args, r)
	if err != nil {
		return err
	}

	sandbox := surface.NewSandbox(surface.SandboxOptions{
		QueueCapacity: r.Int("queue_capacity", surface.DefaultQueueCapacity),
		Logger:        logger,
	})
	var provider surface.Provider = sandbox
	if sessionJournal != "" {
		f, err := os.OpenFile(sessionJournal, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		journal := surface.NewJournal(sandbox, f, nil)
		provider = journal
		defer func() {
			if jerr := journal.Err(); jerr != nil {
				logger.Warn("journal write failed", "path", sessionJournal, "err", jerr)
			}
			if cerr := f.Close(); cerr != nil {
				logErrf("failed to close journal: %v\n", cerr)
			}
		}()
	}

	smp, err := sampler.New(sampler.Options{})
	if err != nil {
		return fmt.Errorf("failed to start resource sampler: %w", err)
	}

	var recorder engine.Recorder
	if sessionHistory {
		st, err := store.Open(dbPath)
		if err != nil {
			logger.Warn("session history disabled", "path", dbPath, "err", err)
		} else {
			defer func() {
				if cerr := st.Close(); cerr != nil {
					logErrf("failed to close db: %v\n", cerr)
				}
			}()
			recorder = st
		}
	}

	seed := sessionSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	eng, err := engine.New(engine.Options{
		Device:       device,
		Provider:     provider,
		Sampler:      smp,
		Recorder:     recorder,
		Logger:       logger,
		Intervals:    maintenance.LoadIntervals(r),
		EventMin:     eventMin,
		EventMax:     eventMax,
		ConfigSource: params.Source(),
		Rand:         rand.New(rand.NewSource(seed)),
	})
	if err != nil {
		return err
	}
	logger.Info("session configured", "config", params.Source(), "log", sess.Path, "seed", seed)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	signals, stopSignals := control.WatchSignals(ctx)
	defer stopSignals()

	supervise := func(p control.Poller) error {
		err := control.Supervise(ctx, eng, p, control.Options{
			PollInterval: pollInterval,
			JoinTimeout:  joinTimeout,
			Logger:       logger,
		})
		if errors.Is(err, control.ErrJoinTimeout) {
			logger.Warn("abandoning engine after join timeout")
			return nil
		}
		return err
	}

	if sessionTUI {
		monitor := tui.NewModel(eng, sandbox.Latest)
		err = tui.Run(ctx, monitor, func() error {
			return supervise(control.Any(signals, monitor))
		})
	} else {
		notify(out, "inputsim %s session: events every %s-%s, press Esc to stop\n", variant, eventMin, eventMax)
		err = supervise(control.Any(signals, keys))
	}
	if err != nil {
		return err
	}

	snap := eng.Snapshot()
	notify(out, "Simulated %d events (%d failed, %d recoveries). Log: %s\n",
		snap.Events, snap.Failures, snap.Recoveries, sess.Path)
	return nil
}

func buildDevice(variant string, r *config.Reader) (engine.Device, error) {
	switch variant {
	case variantKeyboard:
		return pattern.NewKeyboard(pattern.LoadKeyboardSettings(r), r.Logger()), nil
	case variantMouse:
		return pattern.NewMouse(pattern.LoadMouseSettings(r), r.Logger()), nil
	default:
		return nil, fmt.Errorf("unknown variant %q", variant)
	}
}

// resolveEventInterval applies the optional [min [max]] arguments over the
// configured event interval. Unparseable arguments are ignored with a
// warning; parseable but inconsistent ones are an error.
func resolveEventInterval(args []string, r *config.Reader) (time.Duration, time.Duration, error) {
	lo, hi := r.FloatRange("event_interval_min", "event_interval_max", defaultEventMin, defaultEventMax, 0)
	configured := func() (time.Duration, time.Duration, error) {
		return seconds(lo), seconds(hi), nil
	}
	if len(args) == 0 {
		return configured()
	}
	logger := r.Logger()
	minArg, err := parseSeconds(args[0])
	if err != nil {
		logger.Warn("invalid interval argument, using configured values", "arg", args[0])
		return configured()
	}
	maxArg := math.Max(hi, minArg)
	if len(args) > 1 {
		if maxArg, err = parseSeconds(args[1]); err != nil {
			logger.Warn("invalid interval argument, using configured values", "arg", args[1])
			return configured()
		}
	}
	if minArg < 0 || maxArg < minArg {
		return 0, 0, fmt.Errorf("invalid event interval: min %gs, max %gs", minArg, maxArg)
	}
	logger.Info("using custom event interval", "min", minArg, "max", maxArg)
	return seconds(minArg), seconds(maxArg), nil
}

func parseSeconds(raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q is not a finite number", raw)
	}
	return v, nil
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func notify(w io.Writer, format string, args ...any) {
	if _, err := fmt.Fprintf(w, format, args...); err != nil {
		// Best-effort status output.
		_ = err
	}
}
