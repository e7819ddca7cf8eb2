package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestLogLevel(t *testing.T) {
	tests := []struct {
		env  string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tt.env)
			if got := LogLevel(); got != tt.want {
				t.Errorf("LogLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewLogger_Format(t *testing.T) {
	t.Setenv("LOG_LEVEL", "INFO")

	t.Setenv("LOG_FORMAT", "")
	var buf bytes.Buffer
	WithBlockID(NewLogger(&buf), 7, "mult0").Info("evaluated")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("expected json record, got %q: %v", buf.String(), err)
	}
	if record["block_id"] != "mult0" || record["block_uid"] != float64(7) {
		t.Errorf("unexpected record %v", record)
	}

	t.Setenv("LOG_FORMAT", "text")
	buf.Reset()
	WithZone(NewLogger(&buf), "gpu").Info("dialed")
	if out := buf.String(); !strings.Contains(out, "zone=gpu") {
		t.Errorf("expected text record with zone, got %q", out)
	}
}

func TestContextLogger(t *testing.T) {
	if FromContext(context.Background()) != slog.Default() {
		t.Error("expected default logger without context value")
	}

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	ctx := WithLogger(context.Background(), logger)
	if FromContext(ctx) != logger {
		t.Error("expected logger from context")
	}
}
