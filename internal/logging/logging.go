// Package logging provides the structured logger used across the
// navigator: JSON records through log/slog, written to a rotating file
// when one is configured and to stderr otherwise.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger struct {
	*slog.Logger
	LogFile string
	Start   time.Time
}

// New returns a logger at the given level (debug, info, warn or error).
// An empty file logs to stderr.
func New(level, file string) *Logger {
	var w io.Writer = os.Stderr
	if file != "" {
		w = &lumberjack.Logger{
			Filename: file,
			MaxSize:  64, // MB
			MaxAge:   14,
			Compress: true,
		}
	}
	return NewWithWriter(level, w, file)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(level string, w io.Writer, name string) *Logger {
	lvl, err := ParseLevel(level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v, using info\n", err)
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	l := &Logger{
		Logger:  slog.New(h),
		LogFile: name,
		Start:   time.Now(),
	}
	l.Info("logging started",
		slog.String("level", lvl.String()),
		slog.String("GOOS", runtime.GOOS),
		slog.String("GOARCH", runtime.GOARCH),
		slog.Int("NumCPUs", runtime.NumCPU()))
	return l
}

func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log level %q", level)
}

// The logging methods accept a nil *Logger, in which case debug and info
// messages are discarded and warnings and errors go to the slog default.

func (l *Logger) Debug(msg string, args ...any) {
	if l != nil && l.Logger.Enabled(context.Background(), slog.LevelDebug) {
		l.Logger.Debug(msg, args...)
	}
}

func (l *Logger) Debugf(msg string, args ...any) {
	if l != nil && l.Logger.Enabled(context.Background(), slog.LevelDebug) {
		l.Logger.Debug(fmt.Sprintf(msg, args...))
	}
}

func (l *Logger) Info(msg string, args ...any) {
	if l != nil && l.Logger.Enabled(context.Background(), slog.LevelInfo) {
		l.Logger.Info(msg, args...)
	}
}

func (l *Logger) Infof(msg string, args ...any) {
	if l != nil && l.Logger.Enabled(context.Background(), slog.LevelInfo) {
		l.Logger.Info(fmt.Sprintf(msg, args...))
	}
}

func (l *Logger) Warn(msg string, args ...any) {
	if l == nil {
		slog.Warn(msg, args...)
	} else {
		l.Logger.Warn(msg, args...)
	}
}

func (l *Logger) Warnf(msg string, args ...any) {
	l.Warn(fmt.Sprintf(msg, args...))
}

func (l *Logger) Error(msg string, args ...any) {
	if l == nil {
		slog.Error(msg, args...)
	} else {
		l.Logger.Error(msg, args...)
	}
}

func (l *Logger) Errorf(msg string, args ...any) {
	l.Error(fmt.Sprintf(msg, args...))
}

// With returns a logger that adds args to every record. It returns nil for
// a nil receiver.
func (l *Logger) With(args ...any) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{
		Logger:  l.Logger.With(args...),
		LogFile: l.LogFile,
		Start:   l.Start,
	}
}
