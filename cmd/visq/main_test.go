package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/snehjoshi/visq/internal/config"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, config.LogConfig{Level: "info", Format: "json"})

	l.Debug("hidden")
	l.Info("hello", "queue", "orders")

	line := strings.TrimSpace(buf.String())
	if strings.Contains(line, "hidden") {
		t.Fatalf("debug line logged at info level: %s", line)
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		t.Fatalf("not JSON: %v: %s", err, line)
	}
	if rec["msg"] != "hello" || rec["queue"] != "orders" {
		t.Errorf("unexpected record: %v", rec)
	}
}

func TestNewLogger_TextDebug(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, config.LogConfig{Level: "debug", Format: "text"})
	l.Debug("sweep armed", "queue", "orders")

	out := buf.String()
	if !strings.Contains(out, "level=DEBUG") || !strings.Contains(out, "queue=orders") {
		t.Errorf("unexpected text output: %s", out)
	}
	if !l.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug level not enabled")
	}
}
