// Package gslog is the ambient structured logger: console output at
// info/warn/error/debug levels plus an optional rotated file sink,
// adapted from the teacher's own console+file logger.
package gslog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/natefinch/lumberjack.v2"
)

// consoleHandler writes bare messages (no timestamp, no level prefix)
// to the console, honoring a debug flag and a dynamic quiet switch.
type consoleHandler struct {
	writer io.Writer
	debug  bool
	quiet  *bool
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	if level == slog.LevelDebug {
		return h.debug
	}
	return true
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	if *h.quiet {
		return nil
	}
	_, err := fmt.Fprintln(h.writer, record.Message)
	return err
}

func (h *consoleHandler) WithAttrs(_ []slog.Attr) slog.Handler { return h }
func (h *consoleHandler) WithGroup(_ string) slog.Handler      { return h }

// fanoutHandler dispatches every record to each of its handlers.
type fanoutHandler struct {
	handlers []slog.Handler
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, record.Level) {
			if err := handler.Handle(ctx, record); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithAttrs(attrs)
	}
	return &fanoutHandler{handlers: next}
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithGroup(name)
	}
	return &fanoutHandler{handlers: next}
}

// rotatedWriter builds a lumberjack.Logger for path, with limits
// overridable via GITSTACK_LOG_MAX_SIZE/MAX_BACKUPS/MAX_AGE (MB/count/days).
func rotatedWriter(path string) *lumberjack.Logger {
	l := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    1,
		MaxBackups: 2,
		MaxAge:     30,
	}
	if v := os.Getenv("GITSTACK_LOG_MAX_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			l.MaxSize = n
		}
	}
	if v := os.Getenv("GITSTACK_LOG_MAX_BACKUPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			l.MaxBackups = n
		}
	}
	if v := os.Getenv("GITSTACK_LOG_MAX_AGE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			l.MaxAge = n
		}
	}
	return l
}

// Logger is the ambient logger passed through every orchestration
// verb: plain console output plus, if configured, a rotated file copy
// with full level/timestamp detail for post-mortem debugging.
type Logger struct {
	logger    *slog.Logger
	out       io.Writer
	fileSink  io.WriteCloser
	quiet     bool
}

// New returns a console-only Logger. Debug messages are enabled when
// the GITSTACK_DEBUG environment variable is set.
func New() *Logger {
	l, _ := NewWithFile("")
	return l
}

// NewWithFile returns a Logger that also writes every level to a
// rotated file at logPath, if non-empty.
func NewWithFile(logPath string) (*Logger, error) {
	out := os.Stderr
	l := &Logger{out: out}

	handlers := []slog.Handler{&consoleHandler{
		writer: out,
		debug:  os.Getenv("GITSTACK_DEBUG") != "",
		quiet:  &l.quiet,
	}}

	if logPath != "" {
		if err := os.MkdirAll(filepath.Dir(logPath), 0o750); err != nil {
			return nil, fmt.Errorf("gslog: create log directory: %w", err)
		}
		sink := rotatedWriter(logPath)
		l.fileSink = sink
		handlers = append(handlers, slog.NewTextHandler(sink, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	l.logger = slog.New(&fanoutHandler{handlers: handlers})
	return l, nil
}

// SetQuiet suppresses console output while still writing to the file sink.
func (l *Logger) SetQuiet(quiet bool) { l.quiet = quiet }

func (l *Logger) log(level slog.Level, format string, args ...any) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	l.logger.Log(context.Background(), level, msg)
}

func (l *Logger) Info(format string, args ...any)  { l.log(slog.LevelInfo, format, args...) }
func (l *Logger) Debug(format string, args ...any) { l.log(slog.LevelDebug, format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.log(slog.LevelWarn, "warning: "+format, args...) }
func (l *Logger) Error(format string, args ...any) { l.log(slog.LevelError, "error: "+format, args...) }

// Close releases the file sink, if any.
func (l *Logger) Close() error {
	if l.fileSink != nil {
		return l.fileSink.Close()
	}
	return nil
}
