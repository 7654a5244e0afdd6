package rclog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInit_WritesToLogFile(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "readcache.log")
	if err := Init("debug", logFile); err != nil {
		t.Fatalf("Init: %v", err)
	}
	Info("hello from test", "k", "v")

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected log file to contain output")
	}
}

func TestWithPath_ScopesLogger(t *testing.T) {
	l := WithPath("/repo/a.txt")
	if l == nil {
		t.Fatalf("expected non-nil scoped logger")
	}
}
