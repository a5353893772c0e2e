package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestBuildJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "log.json")
	log, err := build(true, false, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	log.Debug("hidden")
	WithStage(log, "strategy_creator").Info("stage finished", zap.Duration("took", 1500*time.Millisecond))
	_ = log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected only the info entry, got %d lines", len(lines))
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry["step"] != "stage finished" || entry[FieldStage] != "strategy_creator" || entry["took"] != "1.5s" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestBuildDebugConsole(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "log.txt")
	log, err := build(false, true, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	log.Debug("model request")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(data), "debug") || !strings.Contains(string(data), "model request") {
		t.Fatalf("unexpected output %q", data)
	}
}
