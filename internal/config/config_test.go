package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/glenn-edgar/kbcoord/internal/config"
)

func TestLoad_NoPathReturnsDefaults(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Addr = %s, want :8080", cfg.Server.Addr)
	}
	if cfg.Retry.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", cfg.Retry.MaxAttempts)
	}
}

func TestLoad_OverlaysYAMLOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	yaml := "server:\n  addr: \":9090\"\ndatabase:\n  host: dbhost\n  port: 5432\n  user: kb\n  database: kb\n  max_open_conns: 10\n"
	if err := os.WriteFile(p, []byte(yaml), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := config.Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("Addr = %s, want :9090", cfg.Server.Addr)
	}
	if cfg.Database.Host != "dbhost" {
		t.Errorf("Host = %s, want dbhost", cfg.Database.Host)
	}
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := config.Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
