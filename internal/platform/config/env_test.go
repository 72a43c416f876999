package config

import (
	"strings"
	"testing"
	"time"
)

type envTestConfig struct {
	Port int `env:"CROWDSHARE_TEST_PORT" envDefault:"123"`
}

type prefixedTestConfig struct {
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"15s"`
	Admin        string        `env:"ADMIN_ID,notEmpty"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 123 {
		t.Fatalf("port = %d, want 123", cfg.Port)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("CROWDSHARE_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestParseEnvPrefixed(t *testing.T) {
	t.Setenv(EnvPrefix+"ADMIN_ID", "admin-1")
	t.Setenv(EnvPrefix+"POLL_INTERVAL", "2s")

	var cfg prefixedTestConfig
	if err := ParseEnvPrefixed(&cfg, EnvPrefix); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Admin != "admin-1" {
		t.Fatalf("admin = %q, want %q", cfg.Admin, "admin-1")
	}
	if cfg.PollInterval != 2*time.Second {
		t.Fatalf("poll interval = %v, want 2s", cfg.PollInterval)
	}
}

func TestParseEnvPrefixedNotEmpty(t *testing.T) {
	t.Setenv(EnvPrefix+"ADMIN_ID", "")

	var cfg prefixedTestConfig
	if err := ParseEnvPrefixed(&cfg, EnvPrefix); err == nil {
		t.Fatal("expected missing required variable to fail")
	}
}
