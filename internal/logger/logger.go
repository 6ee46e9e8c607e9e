package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Logger provides structured logging with a subsystem attribute per call.
type Logger struct {
	slog *slog.Logger
	file *os.File
}

// Options configures a Logger.
type Options struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string
	// Output receives log lines. Defaults to stderr.
	Output io.Writer
	// Dir, when set, additionally writes to a timestamped file in Dir.
	Dir string
}

// NewLogger creates a new logger instance
func NewLogger(opts Options) (*Logger, error) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	var file *os.File
	if opts.Dir != "" {
		// Create log directory if it doesn't exist
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		timestamp := time.Now().Format("2006-01-02_15-04-05")
		logPath := filepath.Join(opts.Dir, fmt.Sprintf("apitest_%s.log", timestamp))
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to create log file: %w", err)
		}
		file = f
		out = io.MultiWriter(out, f)
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: ParseLevel(opts.Level)})
	return &Logger{
		slog: slog.New(handler),
		file: file,
	}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{slog: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// OrNop returns l, or a discarding logger when l is nil.
func OrNop(l *Logger) *Logger {
	if l == nil {
		return Nop()
	}
	return l
}

// ParseLevel maps a level name to a slog level. Unknown names mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Close closes the log file
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

func (l *Logger) log(level slog.Level, subsystem string, err error, format string, args ...interface{}) {
	ctx := context.Background()
	if !l.slog.Enabled(ctx, level) {
		return
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	attrs := []slog.Attr{slog.String("subsystem", subsystem)}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	l.slog.LogAttrs(ctx, level, msg, attrs...)
}

// Debug logs a debug message.
func (l *Logger) Debug(subsystem, format string, args ...interface{}) {
	l.log(slog.LevelDebug, subsystem, nil, format, args...)
}

// Info logs an informational message.
func (l *Logger) Info(subsystem, format string, args ...interface{}) {
	l.log(slog.LevelInfo, subsystem, nil, format, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(subsystem, format string, args ...interface{}) {
	l.log(slog.LevelWarn, subsystem, nil, format, args...)
}

// Error logs an error message.
func (l *Logger) Error(subsystem string, err error, format string, args ...interface{}) {
	l.log(slog.LevelError, subsystem, err, format, args...)
}

// LogLLMInteraction logs an LLM interaction
func (l *Logger) LogLLMInteraction(operation string, input interface{}, output interface{}, err error) {
	if err != nil {
		l.log(slog.LevelWarn, "LLM", err, "operation=%s input=%+v", operation, input)
		return
	}
	l.log(slog.LevelDebug, "LLM", nil, "operation=%s input=%+v output=%+v", operation, input, output)
}
