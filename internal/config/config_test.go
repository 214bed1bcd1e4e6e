package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad_FullFile(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: postgres
  postgres:
    dsn: "host=db user=signalsai dbname=signalsai"
agents:
  base_url: "https://agents.internal"
  endpoints:
    guardian: "https://audit.internal/guardian"
  timeout_s: 120
pipeline:
  max_attempts: 5
  retry_delay_s: 10
metrics:
  analytics_url: "https://metrics.internal/analytics"
http:
  enabled: true
  listen_addr: ":9090"
  api_keys:
    secret-key: ops
scheduler:
  enabled: true
  daily_cron: "15 5 * * *"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Storage.StorageDriver() != "postgres" {
		t.Errorf("driver = %q", cfg.Storage.StorageDriver())
	}
	if cfg.Agents.Endpoint("summary") != "https://agents.internal/summary" {
		t.Errorf("summary endpoint = %q", cfg.Agents.Endpoint("summary"))
	}
	if cfg.Agents.Endpoint("guardian") != "https://audit.internal/guardian" {
		t.Errorf("guardian endpoint = %q", cfg.Agents.Endpoint("guardian"))
	}
	if cfg.Agents.Timeout() != 2*time.Minute {
		t.Errorf("timeout = %v", cfg.Agents.Timeout())
	}
	if cfg.Pipeline.Attempts() != 5 {
		t.Errorf("attempts = %d", cfg.Pipeline.Attempts())
	}
	if cfg.Pipeline.RetryDelay() != 10*time.Second {
		t.Errorf("retry delay = %v", cfg.Pipeline.RetryDelay())
	}
	if cfg.HTTP.Addr() != ":9090" {
		t.Errorf("addr = %q", cfg.HTTP.Addr())
	}
	if cfg.HTTP.APIKeys["secret-key"] != "ops" {
		t.Errorf("api keys = %v", cfg.HTTP.APIKeys)
	}
	if cfg.Scheduler.Daily() != "15 5 * * *" {
		t.Errorf("daily cron = %q", cfg.Scheduler.Daily())
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.StorageDriver() != "sqlite" {
		t.Errorf("default driver = %q", cfg.Storage.StorageDriver())
	}
	if cfg.Pipeline.Attempts() != 3 {
		t.Errorf("default attempts = %d", cfg.Pipeline.Attempts())
	}
	if cfg.Pipeline.RetryDelay() != 30*time.Second {
		t.Errorf("default retry delay = %v", cfg.Pipeline.RetryDelay())
	}
	if cfg.Pipeline.PacingDelay() != 15*time.Second {
		t.Errorf("default pacing delay = %v", cfg.Pipeline.PacingDelay())
	}
	if cfg.Pipeline.MinMonthlyDay() != 3 {
		t.Errorf("default monthly min day = %d", cfg.Pipeline.MinMonthlyDay())
	}
	if cfg.Agents.Timeout() != 10*time.Minute {
		t.Errorf("default agent timeout = %v", cfg.Agents.Timeout())
	}
}

func TestLoad_PostgresWithoutDSN(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: postgres
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for postgres without DSN")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SIGNALSAI_AGENT_BASE_URL", "https://override.internal")
	t.Setenv("SIGNALSAI_API_KEY", "env-key")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Agents.BaseURL != "https://override.internal" {
		t.Errorf("base url = %q", cfg.Agents.BaseURL)
	}
	if cfg.HTTP == nil || cfg.HTTP.APIKeys["env-key"] == "" {
		t.Error("SIGNALSAI_API_KEY should register an API key")
	}
}

func TestAgentsConfig_UnboundEndpoint(t *testing.T) {
	var a AgentsConfig
	if got := a.Endpoint("gbp_optimizer"); got != "" {
		t.Errorf("endpoint = %q, want empty", got)
	}

	a = AgentsConfig{BaseURL: "https://agents.internal/"}
	if got := a.Endpoint("proofline"); got != "https://agents.internal/proofline" {
		t.Errorf("endpoint = %q", got)
	}
}

func TestSchedulerConfig_Defaults(t *testing.T) {
	s := &SchedulerConfig{}
	if s.Daily() != "0 6 * * *" {
		t.Errorf("daily = %q", s.Daily())
	}
	if s.Monthly() != "0 7 * * *" {
		t.Errorf("monthly = %q", s.Monthly())
	}
	if s.Audit() != "0 9 5 * *" {
		t.Errorf("audit = %q", s.Audit())
	}
}
