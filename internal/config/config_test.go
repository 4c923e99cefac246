package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected defaults to load, got error: %v", err)
	}

	if cfg.Provider.BaseURL != "https://api.schwab.com" {
		t.Errorf("expected default base URL, got %q", cfg.Provider.BaseURL)
	}
	if cfg.Cache.TTLSec != 1800 {
		t.Errorf("expected default TTL 1800s, got %d", cfg.Cache.TTLSec)
	}
	if cfg.TTL() != 30*time.Minute {
		t.Errorf("expected TTL duration 30m, got %v", cfg.TTL())
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %q", cfg.Server.Port)
	}
	if !cfg.Server.WSEnabled {
		t.Error("expected websocket enabled by default")
	}
	if cfg.Refresh.Enabled {
		t.Error("expected auto-refresh disabled by default")
	}
}

func TestLoadTokenFromEnv(t *testing.T) {
	_ = os.Setenv("GEXD_PROVIDER_TOKEN", "test-token-123")
	defer func() { _ = os.Unsetenv("GEXD_PROVIDER_TOKEN") }()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider.Token != "test-token-123" {
		t.Errorf("expected token from env, got %q", cfg.Provider.Token)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
cache:
  ttl_sec: 60
server:
  port: "9090"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Cache.TTLSec != 60 {
		t.Errorf("expected TTL from file, got %d", cfg.Cache.TTLSec)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("expected port from file, got %q", cfg.Server.Port)
	}
	// Untouched keys keep their defaults.
	if cfg.Provider.RetryCount != 3 {
		t.Errorf("expected default retry count, got %d", cfg.Provider.RetryCount)
	}
}

func TestValidateRejectsBadTTL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("cache:\n  ttl_sec: 0\n"), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for ttl_sec 0")
	}
}

func TestValidateRefreshRequiresTokenAndSymbols(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
refresh:
  enabled: true
  symbols: [SPX]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	_ = os.Unsetenv("GEXD_PROVIDER_TOKEN")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error when refresh is enabled without a token")
	}

	_ = os.Setenv("GEXD_PROVIDER_TOKEN", "tok")
	defer func() { _ = os.Unsetenv("GEXD_PROVIDER_TOKEN") }()

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error with token set: %v", err)
	}
	if len(cfg.Refresh.Symbols) != 1 || cfg.Refresh.Symbols[0] != "SPX" {
		t.Errorf("expected refresh symbols [SPX], got %v", cfg.Refresh.Symbols)
	}
}
