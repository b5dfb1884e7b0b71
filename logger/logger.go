// Package logger provides the structured logger used by the engine and its
// modules. Output goes to stderr, colorized when stderr is a terminal.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

var level = &slog.LevelVar{}

// SetLevelByName sets the global log level ("debug", "info", "warning",
// "error").
func SetLevelByName(name string) error {
	switch name {
	case "debug":
		level.Set(slog.LevelDebug)
	case "info":
		level.Set(slog.LevelInfo)
	case "warning", "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		return fmt.Errorf("unknown log level %q", name)
	}
	return nil
}

// Logger is a thin wrapper around slog.Logger.
type Logger struct {
	sl *slog.Logger
}

// New returns a logger writing to stderr.
func New() *Logger {
	return &Logger{sl: slog.New(newHandler(os.Stderr))}
}

// NewWithWriter returns a logger writing to w.
func NewWithWriter(w io.Writer) *Logger {
	return &Logger{sl: slog.New(newHandler(w))}
}

func newHandler(w io.Writer) slog.Handler {
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return tint.NewHandler(w, &tint.Options{Level: level, TimeFormat: time.TimeOnly})
	}
	return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
}

// With returns a logger that includes the given attributes in every record.
func (l *Logger) With(args ...any) *Logger {
	if l == nil {
		l = New()
	}
	return &Logger{sl: l.sl.With(args...)}
}

func (l *Logger) Debug(msg string, args ...any) { l.handler().Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.handler().Info(msg, args...) }
func (l *Logger) Warning(msg string, args ...any) {
	l.handler().Warn(msg, args...)
}
func (l *Logger) Error(msg string, args ...any) { l.handler().Error(msg, args...) }

func (l *Logger) handler() *slog.Logger {
	if l == nil || l.sl == nil {
		return slog.New(newHandler(os.Stderr))
	}
	return l.sl
}
