// Package observability provides structured logging and Prometheus-style metrics
// for the quote wizard service.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type contextKey string

const (
	requestIDKey contextKey = "requestID"
	sessionIDKey contextKey = "sessionID"
	componentKey contextKey = "component"
)

// Logger is the structured logger used throughout the service.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	// The *Context variants append request_id, session_id and component
	// when they are present on ctx.
	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)

	With(args ...any) Logger
	WithComponent(name string) Logger

	// Slog exposes the wrapped *slog.Logger.
	Slog() *slog.Logger
}

// Config holds configuration for the logger.
type Config struct {
	// Level is one of debug, info, warn, error.
	Level string
	// Format is json or text.
	Format string
	// Output defaults to os.Stdout.
	Output    io.Writer
	AddSource bool
}

// DefaultConfig returns JSON logging at info level to stdout.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "json",
		Output: os.Stdout,
	}
}

// ConfigFromEnv reads QUOTEWIZARD_LOG_LEVEL and QUOTEWIZARD_LOG_FORMAT on top
// of DefaultConfig.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if level := os.Getenv("QUOTEWIZARD_LOG_LEVEL"); level != "" {
		cfg.Level = level
	}
	if format := os.Getenv("QUOTEWIZARD_LOG_FORMAT"); format != "" {
		cfg.Format = format
	}
	if v := os.Getenv("QUOTEWIZARD_LOG_SOURCE"); v == "1" || strings.EqualFold(v, "true") {
		cfg.AddSource = true
	}
	return cfg
}

type slogLogger struct {
	slogger *slog.Logger
}

// NewLogger builds a Logger from cfg.
func NewLogger(cfg Config) Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level), AddSource: cfg.AddSource}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	return &slogLogger{slogger: slog.New(handler)}
}

// NewLoggerFromSlog wraps an existing *slog.Logger. A nil logger wraps slog.Default().
func NewLoggerFromSlog(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return &slogLogger{slogger: l}
}

// NopLogger discards everything. Tests use it to keep output quiet.
func NopLogger() Logger {
	return NewLogger(Config{Output: io.Discard, Level: "error"})
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

func (l *slogLogger) Debug(msg string, args ...any) { l.slogger.Debug(msg, args...) }
func (l *slogLogger) Info(msg string, args ...any)  { l.slogger.Info(msg, args...) }
func (l *slogLogger) Warn(msg string, args ...any)  { l.slogger.Warn(msg, args...) }
func (l *slogLogger) Error(msg string, args ...any) { l.slogger.Error(msg, args...) }

func (l *slogLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.slogger.DebugContext(ctx, msg, appendContextFields(ctx, args)...)
}

func (l *slogLogger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.slogger.InfoContext(ctx, msg, appendContextFields(ctx, args)...)
}

func (l *slogLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.slogger.WarnContext(ctx, msg, appendContextFields(ctx, args)...)
}

func (l *slogLogger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.slogger.ErrorContext(ctx, msg, appendContextFields(ctx, args)...)
}

func (l *slogLogger) With(args ...any) Logger {
	return &slogLogger{slogger: l.slogger.With(args...)}
}

func (l *slogLogger) WithComponent(name string) Logger {
	return l.With("component", name)
}

func (l *slogLogger) Slog() *slog.Logger { return l.slogger }

func appendContextFields(ctx context.Context, args []any) []any {
	if ctx == nil {
		return args
	}
	if id := RequestIDFromContext(ctx); id != "" {
		args = append(args, "request_id", id)
	}
	if id := SessionIDFromContext(ctx); id != "" {
		args = append(args, "session_id", id)
	}
	if c := ComponentFromContext(ctx); c != "" {
		args = append(args, "component", c)
	}
	return args
}

func withString(ctx context.Context, key contextKey, v string) context.Context {
	if v == "" {
		return ctx
	}
	return context.WithValue(ctx, key, v)
}

func stringFrom(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return withString(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request ID stored by WithRequestID.
func RequestIDFromContext(ctx context.Context) string { return stringFrom(ctx, requestIDKey) }

// WithSessionID stores the wizard session ID in the context.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return withString(ctx, sessionIDKey, sessionID)
}

// SessionIDFromContext returns the wizard session ID stored by WithSessionID.
func SessionIDFromContext(ctx context.Context) string { return stringFrom(ctx, sessionIDKey) }

// WithComponent stores a component name in the context.
func WithComponent(ctx context.Context, component string) context.Context {
	return withString(ctx, componentKey, component)
}

// ComponentFromContext returns the component name stored by WithComponent.
func ComponentFromContext(ctx context.Context) string { return stringFrom(ctx, componentKey) }

// FromContext returns l with the context fields bound as attributes.
func FromContext(ctx context.Context, l Logger) Logger {
	if l == nil {
		l = NewLogger(DefaultConfig())
	}
	if args := appendContextFields(ctx, nil); len(args) > 0 {
		return l.With(args...)
	}
	return l
}
