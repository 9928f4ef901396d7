package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func chdirTemp(t *testing.T) {
	t.Helper()

	tmpDir := t.TempDir()
	oldWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(oldWd) })
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error loading defaults, got %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("expected default host '0.0.0.0', got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.Addr() != "0.0.0.0:8080" {
		t.Errorf("expected addr '0.0.0.0:8080', got %s", cfg.Server.Addr())
	}
	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("expected 25 max open conns, got %d", cfg.Database.MaxOpenConns)
	}
	if cfg.Redis.Enabled {
		t.Error("expected redis disabled by default")
	}
	if cfg.Auth.TokenTTL != 24*time.Hour {
		t.Errorf("expected 24h token TTL, got %v", cfg.Auth.TokenTTL)
	}
	if cfg.Fanout.Mode != FanoutModeService {
		t.Errorf("expected service fan-out mode, got %s", cfg.Fanout.Mode)
	}
	if cfg.Push.Enabled() {
		t.Error("expected push disabled without VAPID keys")
	}
	if cfg.Jobs.Workers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.Jobs.Workers)
	}
	if cfg.RateLimit.MessagesPerMinute != 30 {
		t.Errorf("expected 30 messages per minute, got %d", cfg.RateLimit.MessagesPerMinute)
	}
	if cfg.RateLimit.RequestsPerMinute != 300 {
		t.Errorf("expected 300 requests per minute, got %d", cfg.RateLimit.RequestsPerMinute)
	}
	if cfg.Retention.NotificationDays != 30 {
		t.Errorf("expected 30 notification retention days, got %d", cfg.Retention.NotificationDays)
	}
	if cfg.Retention.JobDays != 7 {
		t.Errorf("expected 7 job retention days, got %d", cfg.Retention.JobDays)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Log.Level)
	}
}

func TestLoadWithConfigFile(t *testing.T) {
	chdirTemp(t)

	configContent := `
server:
  port: 9090
database:
  url: postgres://localhost/tradefloor_test
fanout:
  mode: trigger
push:
  vapid_public_key: BPk
  vapid_private_key: sk
ratelimit:
  messages_per_minute: 10
`
	if err := os.WriteFile("tradefloor.yaml", []byte(configContent), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error loading config, got %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Database.URL != "postgres://localhost/tradefloor_test" {
		t.Errorf("expected database URL from file, got %s", cfg.Database.URL)
	}
	if cfg.Fanout.Mode != FanoutModeTrigger {
		t.Errorf("expected trigger fan-out mode, got %s", cfg.Fanout.Mode)
	}
	if !cfg.Push.Enabled() {
		t.Error("expected push enabled with VAPID keys set")
	}
	if cfg.RateLimit.MessagesPerMinute != 10 {
		t.Errorf("expected 10 messages per minute, got %d", cfg.RateLimit.MessagesPerMinute)
	}
	// Untouched keys keep their defaults.
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("expected default host, got %s", cfg.Server.Host)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	chdirTemp(t)

	t.Setenv("TRADEFLOOR_SERVER_PORT", "9999")
	t.Setenv("TRADEFLOOR_DATABASE_URL", "postgres://env/tradefloor")
	t.Setenv("TRADEFLOOR_AUTH_JWT_SECRET", "env-secret")
	t.Setenv("TRADEFLOOR_FANOUT_MODE", "trigger")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("expected port 9999 from environment, got %d", cfg.Server.Port)
	}
	if cfg.Database.URL != "postgres://env/tradefloor" {
		t.Errorf("expected database URL from environment, got %s", cfg.Database.URL)
	}
	if cfg.Auth.JWTSecret != "env-secret" {
		t.Errorf("expected JWT secret from environment, got %s", cfg.Auth.JWTSecret)
	}
	if cfg.Fanout.Mode != FanoutModeTrigger {
		t.Errorf("expected trigger fan-out mode from environment, got %s", cfg.Fanout.Mode)
	}
}

func TestLoadEnvOverridesConfigFile(t *testing.T) {
	chdirTemp(t)

	if err := os.WriteFile("tradefloor.yaml", []byte("server:\n  port: 9090\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TRADEFLOOR_SERVER_PORT", "7000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Server.Port != 7000 {
		t.Errorf("expected environment to win over config file, got %d", cfg.Server.Port)
	}
}

func TestLoadInvalidFanoutMode(t *testing.T) {
	chdirTemp(t)

	t.Setenv("TRADEFLOOR_FANOUT_MODE", "both")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for invalid fanout mode")
	}
	if !strings.Contains(err.Error(), "fanout.mode") {
		t.Errorf("expected fanout.mode in error, got %v", err)
	}
}

func TestLoadInvalidWorkers(t *testing.T) {
	chdirTemp(t)

	t.Setenv("TRADEFLOOR_JOBS_WORKERS", "0")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for zero workers")
	}
	if !strings.Contains(err.Error(), "jobs.workers") {
		t.Errorf("expected jobs.workers in error, got %v", err)
	}
}

func TestLoadInvalidRateLimit(t *testing.T) {
	chdirTemp(t)

	t.Setenv("TRADEFLOOR_RATELIMIT_MESSAGES_PER_MINUTE", "0")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for zero message rate limit")
	}
	if !strings.Contains(err.Error(), "ratelimit.messages_per_minute") {
		t.Errorf("expected ratelimit.messages_per_minute in error, got %v", err)
	}
}
