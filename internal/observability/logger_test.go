package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		name  string
		level string
		emit  string
		want  bool
	}{
		{"info logs info", "info", "info", true},
		{"info drops debug", "info", "debug", false},
		{"debug logs debug", "debug", "debug", true},
		{"error logs error", "error", "error", true},
		{"error drops warn", "error", "warn", false},
		{"unknown level falls back to info", "loud", "info", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			l := NewLogger(Config{Level: tt.level, Format: "json", Output: buf})
			switch tt.emit {
			case "debug":
				l.Debug("hello")
			case "info":
				l.Info("hello")
			case "warn":
				l.Warn("hello")
			case "error":
				l.Error("hello")
			}
			if got := strings.Contains(buf.String(), "hello"); got != tt.want {
				t.Fatalf("message present=%v, want %v; output=%q", got, tt.want, buf.String())
			}
		})
	}
}

func TestNewLogger_TextFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	l := NewLogger(Config{Level: "info", Format: "text", Output: buf})
	l.Info("quote priced", "total", 2495)
	out := buf.String()
	if !strings.Contains(out, "msg=\"quote priced\"") || !strings.Contains(out, "total=2495") {
		t.Fatalf("unexpected text output: %q", out)
	}
}

func TestContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	l := NewLogger(Config{Level: "debug", Format: "json", Output: buf}).WithComponent("wizard")

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithSessionID(ctx, "sess-9")
	l.InfoContext(ctx, "step advanced", "step", 3)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	for key, want := range map[string]any{
		"request_id": "req-1",
		"session_id": "sess-9",
		"component":  "wizard",
		"msg":        "step advanced",
		"step":       float64(3),
	} {
		if entry[key] != want {
			t.Errorf("%s = %v, want %v", key, entry[key], want)
		}
	}
}

func TestContextHelpers_EmptyValues(t *testing.T) {
	ctx := context.Background()
	if WithRequestID(ctx, "") != ctx {
		t.Error("empty request id should not wrap the context")
	}
	if RequestIDFromContext(nil) != "" { //nolint:staticcheck
		t.Error("nil context should yield empty request id")
	}
	if SessionIDFromContext(ctx) != "" || ComponentFromContext(ctx) != "" {
		t.Error("expected empty values on a bare context")
	}
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	base := NewLogger(Config{Level: "info", Output: buf})
	ctx := WithComponent(WithRequestID(context.Background(), "abc"), "api")

	FromContext(ctx, base).Info("bound")
	if !strings.Contains(buf.String(), `"request_id":"abc"`) || !strings.Contains(buf.String(), `"component":"api"`) {
		t.Fatalf("fields not bound: %s", buf.String())
	}

	if got := FromContext(context.Background(), base); got != base {
		t.Error("FromContext without fields should return the same logger")
	}
}

func TestNewLoggerFromSlog(t *testing.T) {
	buf := &bytes.Buffer{}
	s := slog.New(slog.NewJSONHandler(buf, nil))
	l := NewLoggerFromSlog(s)
	if l.Slog() != s {
		t.Fatal("expected wrapped slog logger")
	}
	if NewLoggerFromSlog(nil).Slog() == nil {
		t.Fatal("nil input should wrap slog.Default()")
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("QUOTEWIZARD_LOG_LEVEL", "debug")
	t.Setenv("QUOTEWIZARD_LOG_FORMAT", "text")
	t.Setenv("QUOTEWIZARD_LOG_SOURCE", "true")

	cfg := ConfigFromEnv()
	if cfg.Level != "debug" || cfg.Format != "text" || !cfg.AddSource {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
