package log_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/cvforge/cvforge/internal/log"
)

func TestNewWithWriter(t *testing.T) {
	t.Parallel()

	t.Run("text handler writes readable lines", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := log.NewWithWriter(&buf, log.Config{})
		logger.Info("run started", "run_id", 7)

		out := buf.String()
		if !strings.Contains(out, "run started") || !strings.Contains(out, "run_id=7") {
			t.Errorf("unexpected log output: %q", out)
		}
	})

	t.Run("json handler writes json", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := log.NewWithWriter(&buf, log.Config{JSON: true})
		logger.Info("run started")

		if !strings.HasPrefix(buf.String(), "{") {
			t.Errorf("expected JSON output, got %q", buf.String())
		}
	})

	t.Run("level filters records", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := log.NewWithWriter(&buf, log.Config{Level: slog.LevelWarn})
		logger.Info("dropped")
		logger.Warn("kept")

		out := buf.String()
		if strings.Contains(out, "dropped") {
			t.Error("info record should have been filtered")
		}
		if !strings.Contains(out, "kept") {
			t.Error("warn record should have been emitted")
		}
	})
}

func TestNewNop(t *testing.T) {
	t.Parallel()

	// Must not panic and must accept all levels.
	logger := log.NewNop()
	logger.Debug("a")
	logger.Info("b")
	logger.Warn("c")
	logger.Error("d")
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := log.ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
