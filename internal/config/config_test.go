package config

import (
	"os"
	"testing"
)

func TestConfigLoad_Defaults(t *testing.T) {
	// clear env vars
	_ = os.Unsetenv("TOWN_BUILD_TARGET")
	_ = os.Unsetenv("TOWN_HTTP_PORT")
	_ = os.Unsetenv("TOWN_SUMMARIZER_URL")

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.HTTPPort != 8080 || cfg.SummarizerURL != "http://localhost:8090" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.NudgeIntervalSeconds != 3600 {
		t.Fatalf("unexpected default nudge interval: %d", cfg.NudgeIntervalSeconds)
	}
}

func TestConfigLoad_EnvOverride(t *testing.T) {
	_ = os.Setenv("TOWN_SUMMARIZER_URL", "http://summarizer:9000")
	defer func() { _ = os.Unsetenv("TOWN_SUMMARIZER_URL") }()

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.SummarizerURL != "http://summarizer:9000" {
		t.Fatalf("summarizer url env override failed, got %s", cfg.SummarizerURL)
	}
}

func TestConfigLoad_BootstrapTimeoutDefault(t *testing.T) {
	// clear env vars
	_ = os.Unsetenv("TOWN_BOOTSTRAP_TIMEOUT_SECONDS")

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.BootstrapTimeoutSeconds != 5 {
		t.Fatalf("unexpected default bootstrap timeout: %d", cfg.BootstrapTimeoutSeconds)
	}
}

func TestConfigLoad_BootstrapTimeoutEnvOverride(t *testing.T) {
	_ = os.Setenv("TOWN_BOOTSTRAP_TIMEOUT_SECONDS", "10")
	defer func() { _ = os.Unsetenv("TOWN_BOOTSTRAP_TIMEOUT_SECONDS") }()

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.BootstrapTimeoutSeconds != 10 {
		t.Fatalf("bootstrap timeout env override failed, got %d", cfg.BootstrapTimeoutSeconds)
	}
}
