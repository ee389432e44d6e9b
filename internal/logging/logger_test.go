package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestLoggerWritesJSONLines(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(dir, false)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Info("pipeline started", zap.String("choice", "2"))
	logger.Debug("hidden without verbose")
	logger.Info("task finished", zap.String("task", "tech-spec"))
	if err := logger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, ".agency", "logs", FileName))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %q", len(lines), data)
	}
	if !strings.Contains(lines[0], `"msg":"pipeline started"`) {
		t.Fatalf("unexpected first line %s", lines[0])
	}
	if !strings.Contains(lines[1], `"task":"tech-spec"`) {
		t.Fatalf("missing structured field in %s", lines[1])
	}
}

func TestNilAndNopLoggersAreSafe(t *testing.T) {
	var nilLogger *Logger
	if err := nilLogger.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
	nop := Nop()
	nop.Info("ignored")
	if err := nop.Close(); err != nil {
		t.Fatalf("nop close: %v", err)
	}
}
