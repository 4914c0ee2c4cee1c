package logging

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewLogger_WritesFile(t *testing.T) {
	dir := t.TempDir()
	lg, err := NewLogger(dir)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	lg.Info("test_event")
	_ = lg.Sync()

	if _, err := os.Stat(filepath.Join(dir, "vcwatch.log")); err != nil {
		t.Fatalf("expected log file to exist: %v", err)
	}
}

func TestNewConsoleLogger_NotNil(t *testing.T) {
	if NewConsoleLogger() == nil {
		t.Fatal("expected a logger")
	}
}
