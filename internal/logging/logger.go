// Package logging builds slog loggers and per-session log files.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Options describe how to configure a logger instance.
type Options struct {
	Level  string
	Format string
	Output io.Writer
}

// New creates a structured logger backed by Go's slog package.
func New(opts Options) (*slog.Logger, error) {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	handlerOpts := slog.HandlerOptions{
		Level:       lvl,
		ReplaceAttr: replaceTimeAttr,
	}

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	var handler slog.Handler
	switch format {
	case "", "text", "console":
		handler = slog.NewTextHandler(out, &handlerOpts)
	case "json":
		handler = slog.NewJSONHandler(out, &handlerOpts)
	default:
		return nil, fmt.Errorf("unsupported log format %q", opts.Format)
	}

	return slog.New(handler), nil
}

// ParseLevel maps a textual level (case-insensitive) to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error", "critical":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unhandled log level %q", level)
	}
}

func replaceTimeAttr(_ []string, attr slog.Attr) slog.Attr {
	if attr.Key == slog.TimeKey && attr.Value.Kind() == slog.KindTime {
		attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(time.RFC3339))
	}
	return attr
}

// SessionOptions configure a per-session log.
type SessionOptions struct {
	Dir     string
	Variant string
	Level   string
	Format  string
	Console io.Writer
	Clock   func() time.Time
}

// Session is a logger bound to a log file for the lifetime of one engine session.
type Session struct {
	Logger *slog.Logger
	Path   string
	file   *os.File
}

// OpenSession creates <dir>/<variant>_<YYYYMMDD_HHMMSS>.log and returns a logger
// writing to it, and to Console when non-nil.
func OpenSession(opts SessionOptions) (*Session, error) {
	if strings.TrimSpace(opts.Dir) == "" {
		return nil, fmt.Errorf("log directory must not be empty")
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	name := fmt.Sprintf("%s_%s.log", strings.ToLower(opts.Variant), clock().Format("20060102_150405"))
	path := filepath.Join(opts.Dir, name)
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open session log: %w", err)
	}

	var out io.Writer = file
	if opts.Console != nil {
		out = io.MultiWriter(file, opts.Console)
	}
	logger, err := New(Options{Level: opts.Level, Format: opts.Format, Output: out})
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return &Session{Logger: logger, Path: abs, file: file}, nil
}

// Close flushes and closes the session log file.
func (s *Session) Close() error {
	if s == nil || s.file == nil {
		return nil
	}
	if err := s.file.Sync(); err != nil {
		_ = s.file.Close()
		return fmt.Errorf("sync session log: %w", err)
	}
	err := s.file.Close()
	s.file = nil
	return err
}
