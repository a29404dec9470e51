package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "surgeon.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	c := Default()
	if c.DBPath != "surgeon.db" || c.Listen != ":8420" || c.LogLevel != "info" {
		t.Fatalf("defaults: %+v", c)
	}
	if c.Fetch.Timeout != 30*time.Second || c.Fetch.UserAgent == "" {
		t.Fatalf("fetch defaults: %+v", c.Fetch)
	}
	if !c.AuditEnabled() {
		t.Fatal("audit should default to enabled")
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
db_path: /var/lib/surgeon/s.db
listen: 127.0.0.1:9000
log_level: debug
audit: false
full_document: true
sanitize: true
fetch:
  timeout: 5s
  browser: true
  remote_url: ws://127.0.0.1:9222
  allow_private: true
`)
	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.DBPath != "/var/lib/surgeon/s.db" || c.Listen != "127.0.0.1:9000" {
		t.Fatalf("paths: %+v", c)
	}
	if c.AuditEnabled() || !c.FullDocument || !c.Sanitize {
		t.Fatalf("flags: %+v", c)
	}
	if c.SlogLevel() != slog.LevelDebug {
		t.Fatalf("level: %v", c.SlogLevel())
	}
	if c.Fetch.Timeout != 5*time.Second || !c.Fetch.Browser || c.Fetch.RemoteURL != "ws://127.0.0.1:9222" || !c.Fetch.AllowPrivate {
		t.Fatalf("fetch: %+v", c.Fetch)
	}
}

func TestLoadFile_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "db_path: from-file.db\n")
	t.Setenv("SURGEON_DB", "from-env.db")
	t.Setenv("SURGEON_LISTEN", ":7000")
	t.Setenv("SURGEON_LOG_LEVEL", "warn")

	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.DBPath != "from-env.db" || c.Listen != ":7000" || c.SlogLevel() != slog.LevelWarn {
		t.Fatalf("env overrides not applied: %+v", c)
	}
}

func TestLoadFile_NoPath(t *testing.T) {
	c, err := LoadFile("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Listen == "" {
		t.Fatal("defaults not applied")
	}
}

func TestLoadFile_Errors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
	if _, err := LoadFile(writeConfig(t, "listen: [")); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := LoadFile(writeConfig(t, "log_level: loud\n")); err == nil {
		t.Fatal("expected log level error")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
