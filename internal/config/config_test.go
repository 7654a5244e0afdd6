package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfig_LoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "readcache.toml")
	os.WriteFile(configPath, []byte(`
[store]
path = "/var/cache/readcache"
retention_days = 7

[diff]
max_bytes = 1048576
max_lines = 4000

[telemetry]
enabled = true
protocol = "otlp"
`), 0644)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}

	if cfg.Store.Path != "/var/cache/readcache" {
		t.Errorf("expected store path '/var/cache/readcache', got %s", cfg.Store.Path)
	}
	if cfg.Store.RetentionDays != 7 {
		t.Errorf("expected retention_days 7, got %d", cfg.Store.RetentionDays)
	}
	if cfg.Diff.MaxBytes != 1048576 {
		t.Errorf("expected max_bytes 1048576, got %d", cfg.Diff.MaxBytes)
	}
	if cfg.Diff.MaxLines != 4000 {
		t.Errorf("expected max_lines 4000, got %d", cfg.Diff.MaxLines)
	}
	if !cfg.Telemetry.Enabled || cfg.Telemetry.Protocol != "otlp" {
		t.Errorf("expected telemetry enabled with protocol otlp, got %+v", cfg.Telemetry)
	}
}

func TestConfig_PartialFileKeepsDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "readcache.toml")
	os.WriteFile(configPath, []byte(`
[store]
retention_days = 90
`), 0644)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Store.RetentionDays != 90 {
		t.Errorf("expected overridden retention_days 90, got %d", cfg.Store.RetentionDays)
	}
	if cfg.Diff.MaxBytes != New().Diff.MaxBytes {
		t.Errorf("expected untouched diff.max_bytes to keep its default, got %d", cfg.Diff.MaxBytes)
	}
}

func TestConfig_LoadDefaultWithoutFileReturnsDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	defer os.Chdir(oldWd)
	os.Chdir(tmpDir)

	cfg, err := LoadDefault()
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Store.RetentionDays != New().Store.RetentionDays {
		t.Errorf("expected default retention_days, got %d", cfg.Store.RetentionDays)
	}
}

func TestResolveStorePath(t *testing.T) {
	cfg := New()
	cfg.Store.Path = ".pi/readcache"
	got := cfg.ResolveStorePath("/repo")
	want := filepath.Join("/repo", ".pi", "readcache")
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}

	cfg.Store.Path = "/abs/path"
	if got := cfg.ResolveStorePath("/repo"); got != "/abs/path" {
		t.Errorf("got %s, want absolute path unchanged", got)
	}
}
