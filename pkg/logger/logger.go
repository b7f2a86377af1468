// Package logger is a thin structured-logging facade over log/slog
// used by the HTTP layer. It emits one JSON object per line and keeps
// the call sites free of slog's attr plumbing.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Level is the minimum severity a logger emits.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel maps a config string to a Level, defaulting to INFO on
// anything unrecognised.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// Field is one structured key-value pair.
type Field struct {
	Key   string
	Value any
}

// F builds a field of any value type.
func F(key string, value any) Field { return Field{Key: key, Value: value} }

// String builds a string field.
func String(key, value string) Field { return Field{Key: key, Value: value} }

// Int builds an integer field.
func Int(key string, value int) Field { return Field{Key: key, Value: value} }

// Err builds the conventional "error" field.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error"}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Duration renders a duration as its string form.
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

// Latency is the request-duration field of the HTTP access log.
func Latency(d time.Duration) Field { return Duration("latency", d) }

// Logger writes JSON log lines at or above its level.
type Logger struct {
	s *slog.Logger
}

// New builds a logger writing to output; nil output means stdout.
func New(output io.Writer, level Level) *Logger {
	if output == nil {
		output = os.Stdout
	}
	h := slog.NewJSONHandler(output, &slog.HandlerOptions{
		Level: level.slogLevel(),
	})
	return &Logger{s: slog.New(h)}
}

// Default returns a stdout logger at INFO.
func Default() *Logger {
	return New(os.Stdout, LevelInfo)
}

// With returns a logger that adds the fields to every line.
func (l *Logger) With(fields ...Field) *Logger {
	return &Logger{s: l.s.With(attrs(fields)...)}
}

// Debug logs at DEBUG level.
func (l *Logger) Debug(msg string, fields ...Field) {
	l.s.Debug(msg, attrs(fields)...)
}

// Info logs at INFO level.
func (l *Logger) Info(msg string, fields ...Field) {
	l.s.Info(msg, attrs(fields)...)
}

// Warn logs at WARN level.
func (l *Logger) Warn(msg string, fields ...Field) {
	l.s.Warn(msg, attrs(fields)...)
}

// Error logs at ERROR level.
func (l *Logger) Error(msg string, fields ...Field) {
	l.s.Error(msg, attrs(fields)...)
}

func attrs(fields []Field) []any {
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		out = append(out, slog.Any(f.Key, f.Value))
	}
	return out
}
