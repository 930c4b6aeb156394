package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestSetup(t *testing.T) {
	// Reset logger for testing
	logger = nil
	once = *new(sync.Once)

	Setup("DEBUG", "json")
	if logger == nil {
		t.Fatal("Logger should not be nil")
	}
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug level should be enabled")
	}

	// Second call is a no-op.
	Setup("ERROR", "text")
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Setup should only apply once")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewFormats(t *testing.T) {
	var jsonBuf bytes.Buffer
	New(&jsonBuf, "info", "json").Info("hello", "order_key", "1001")

	var out map[string]any
	if err := json.Unmarshal(jsonBuf.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode JSON: %v", err)
	}
	if out["order_key"] != "1001" {
		t.Errorf("Expected order_key '1001', got %v", out["order_key"])
	}

	var textBuf bytes.Buffer
	New(&textBuf, "info", "text").Info("hello", "order_key", "1001")
	if !strings.Contains(textBuf.String(), "order_key=1001") {
		t.Errorf("text output missing attribute: %q", textBuf.String())
	}

	var quiet bytes.Buffer
	New(&quiet, "error", "json").Warn("dropped")
	if quiet.Len() != 0 {
		t.Errorf("warn should be filtered at error level, got %q", quiet.String())
	}
}

func TestContextHelpers(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewJSONHandler(&buf, nil)
	l := slog.New(h)

	// Inject this logger as the global logger for the test
	logger = l

	l2 := WithComponent("test-comp")
	l2.Info("hello")

	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode JSON: %v", err)
	}

	if out["component"] != "test-comp" {
		t.Errorf("Expected component 'test-comp', got %v", out["component"])
	}
	if out["msg"] != "hello" {
		t.Errorf("Expected msg 'hello', got %v", out["msg"])
	}
}

func TestLevelHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger = slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	Debug("d")
	Info("i")
	Warn("w")
	Error("e")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 log lines, got %d: %q", len(lines), buf.String())
	}
	for i, want := range []string{"DEBUG", "INFO", "WARN", "ERROR"} {
		var out map[string]any
		if err := json.Unmarshal([]byte(lines[i]), &out); err != nil {
			t.Fatalf("line %d: %v", i, err)
		}
		if out["level"] != want {
			t.Errorf("line %d level = %v, want %s", i, out["level"], want)
		}
	}
}
