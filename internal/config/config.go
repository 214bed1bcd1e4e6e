// Package config handles loading and validating SignalsAI configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	goutils "github.com/jkaninda/go-utils"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

func init() {
	// Load .env file if it exists
	_ = godotenv.Load()
}

// Config is the root configuration for the orchestrator service.
type Config struct {
	Storage       *StorageConfig       `json:"storage,omitempty" yaml:"storage,omitempty"` // nil = SQLite default.
	Agents        AgentsConfig         `json:"agents" yaml:"agents"`
	Pipeline      PipelineConfig       `json:"pipeline" yaml:"pipeline"`
	Metrics       MetricSourcesConfig  `json:"metrics" yaml:"metrics"`
	HTTP          *HTTPConfig          `json:"http,omitempty" yaml:"http,omitempty"`                   // nil = HTTP gateway disabled.
	Scheduler     *SchedulerConfig     `json:"scheduler,omitempty" yaml:"scheduler,omitempty"`         // nil = cron triggers disabled.
	Notification  *NotificationConfig  `json:"notification,omitempty" yaml:"notification,omitempty"`   // nil = notifications disabled.
	Observability *ObservabilityConfig `json:"observability,omitempty" yaml:"observability,omitempty"` // nil = metrics/tracing disabled.
}

// StorageConfig configures the persistence backend.
type StorageConfig struct {
	Driver   string                 `json:"driver" yaml:"driver"` // "sqlite" (default) or "postgres".
	SQLite   *SQLiteStorageConfig   `json:"sqlite,omitempty" yaml:"sqlite,omitempty"`
	Postgres *PostgresStorageConfig `json:"postgres,omitempty" yaml:"postgres,omitempty"`
}

// StorageDriver returns the configured driver, defaulting to "sqlite".
func (s *StorageConfig) StorageDriver() string {
	if s != nil && s.Driver != "" {
		return s.Driver
	}
	return "sqlite"
}

// SQLiteStorageConfig holds SQLite-specific settings.
type SQLiteStorageConfig struct {
	Path string `json:"path,omitempty" yaml:"path,omitempty"` // Default: ./signalsai.db
}

// PostgresStorageConfig holds PostgreSQL-specific settings.
// DSN can be overridden by the SIGNALSAI_DB_DSN env var.
type PostgresStorageConfig struct {
	DSN              string `json:"dsn" yaml:"dsn"`
	MaxOpenConns     int    `json:"max_open_conns" yaml:"max_open_conns"`           // Default: 25
	MaxIdleConns     int    `json:"max_idle_conns" yaml:"max_idle_conns"`           // Default: 5
	ConnMaxLifetimeS int    `json:"conn_max_lifetime_s" yaml:"conn_max_lifetime_s"` // Default: 1800 (30 min)
}

// AgentsConfig configures the remote analysis agent endpoints.
// Each stage resolves its endpoint from Endpoints[stage] first, then falls
// back to BaseURL + "/" + stage. A stage with neither is not configured.
type AgentsConfig struct {
	BaseURL   string            `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Endpoints map[string]string `json:"endpoints,omitempty" yaml:"endpoints,omitempty"`
	TimeoutS  int               `json:"timeout_s" yaml:"timeout_s"` // Per-call ceiling. Default: 600 (10 min).
}

// Endpoint resolves the endpoint URL for a stage. Empty = not configured.
func (a AgentsConfig) Endpoint(stage string) string {
	if url, ok := a.Endpoints[stage]; ok && url != "" {
		return url
	}
	if a.BaseURL == "" {
		return ""
	}
	return strings.TrimSuffix(a.BaseURL, "/") + "/" + stage
}

// Timeout returns the per-call wall-clock ceiling.
func (a AgentsConfig) Timeout() time.Duration {
	if a.TimeoutS > 0 {
		return time.Duration(a.TimeoutS) * time.Second
	}
	return 10 * time.Minute
}

// PipelineConfig tunes retry budgets and pacing.
// The remote agents and third-party metric providers impose rate limits, so
// every loop over accounts inserts PacingDelay between iterations and every
// retry waits RetryDelay before the next attempt.
type PipelineConfig struct {
	MaxAttempts   int `json:"max_attempts" yaml:"max_attempts"`       // Default: 3.
	RetryDelayS   int `json:"retry_delay_s" yaml:"retry_delay_s"`     // Default: 30.
	PacingDelayS  int `json:"pacing_delay_s" yaml:"pacing_delay_s"`   // Default: 15.
	MonthlyMinDay int `json:"monthly_min_day" yaml:"monthly_min_day"` // Day of month after which last month's metrics are consolidated. Default: 3.
}

func (p PipelineConfig) Attempts() int {
	if p.MaxAttempts > 0 {
		return p.MaxAttempts
	}
	return 3
}

func (p PipelineConfig) RetryDelay() time.Duration {
	if p.RetryDelayS > 0 {
		return time.Duration(p.RetryDelayS) * time.Second
	}
	return 30 * time.Second
}

func (p PipelineConfig) PacingDelay() time.Duration {
	if p.PacingDelayS > 0 {
		return time.Duration(p.PacingDelayS) * time.Second
	}
	return 15 * time.Second
}

func (p PipelineConfig) MinMonthlyDay() int {
	if p.MonthlyMinDay > 0 {
		return p.MonthlyMinDay
	}
	return 3
}

// MetricSourcesConfig configures the third-party metric collaborators.
// Each source is an HTTP endpoint returning the sub-bundle JSON for an
// account and date range. A missing URL disables that source (its sub-bundle
// stays null, which the orchestrator treats as usable partial input).
type MetricSourcesConfig struct {
	AnalyticsURL          string `json:"analytics_url,omitempty" yaml:"analytics_url,omitempty"`
	BusinessListingURL    string `json:"business_listing_url,omitempty" yaml:"business_listing_url,omitempty"`
	SearchConsoleURL      string `json:"search_console_url,omitempty" yaml:"search_console_url,omitempty"`
	OnPageBehaviorURL     string `json:"on_page_behavior_url,omitempty" yaml:"on_page_behavior_url,omitempty"`
	PracticeManagementURL string `json:"practice_management_url,omitempty" yaml:"practice_management_url,omitempty"`
	ProductionURL         string `json:"production_url,omitempty" yaml:"production_url,omitempty"`
	TimeoutS              int    `json:"timeout_s" yaml:"timeout_s"` // Default: 60.
}

func (m MetricSourcesConfig) Timeout() time.Duration {
	if m.TimeoutS > 0 {
		return time.Duration(m.TimeoutS) * time.Second
	}
	return 60 * time.Second
}

// HTTPConfig configures the HTTP trigger gateway.
type HTTPConfig struct {
	Enabled    bool              `json:"enabled" yaml:"enabled"`
	ListenAddr string            `json:"listen_addr" yaml:"listen_addr"` // Default: ":8080".
	APIKeys    map[string]string `json:"api_keys,omitempty" yaml:"api_keys,omitempty"`
	EnableDocs bool              `json:"enable_docs" yaml:"enable_docs"`
}

func (h *HTTPConfig) Addr() string {
	if h != nil && h.ListenAddr != "" {
		return h.ListenAddr
	}
	return ":8080"
}

// SchedulerConfig configures cron-driven triggers. Empty expression = that
// trigger disabled.
type SchedulerConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	DailyCron   string `json:"daily_cron" yaml:"daily_cron"`     // Default: "0 6 * * *".
	MonthlyCron string `json:"monthly_cron" yaml:"monthly_cron"` // Default: "0 7 * * *" (self-gated by calendar + idempotency).
	AuditCron   string `json:"audit_cron" yaml:"audit_cron"`     // Default: "0 9 5 * *".
}

func (s *SchedulerConfig) Daily() string {
	if s.DailyCron != "" {
		return s.DailyCron
	}
	return "0 6 * * *"
}

func (s *SchedulerConfig) Monthly() string {
	if s.MonthlyCron != "" {
		return s.MonthlyCron
	}
	return "0 7 * * *"
}

func (s *SchedulerConfig) Audit() string {
	if s.AuditCron != "" {
		return s.AuditCron
	}
	return "0 9 5 * *"
}

// NotificationConfig configures failure notifications.
type NotificationConfig struct {
	WebhookURL      string `json:"webhook_url,omitempty" yaml:"webhook_url,omitempty"`
	SlackWebhookURL string `json:"slack_webhook_url,omitempty" yaml:"slack_webhook_url,omitempty"`
}

// ObservabilityConfig configures metrics and tracing.
type ObservabilityConfig struct {
	Metrics *MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Tracing *TracingConfig `json:"tracing,omitempty" yaml:"tracing,omitempty"`
}

// MetricsConfig configures Prometheus metrics exposition.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"` // Default: "/metrics".
}

// TracingConfig configures OTLP trace export.
type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	ServiceName string  `json:"service_name" yaml:"service_name"` // Default: "signalsai".
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`         // OTLP collector endpoint.
	Protocol    string  `json:"protocol" yaml:"protocol"`         // "grpc" (default) or "http".
	Insecure    bool    `json:"insecure" yaml:"insecure"`
	SampleRate  float64 `json:"sample_rate" yaml:"sample_rate"` // Default: 1.0.
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	return goutils.Env("SIGNALSAI_CONFIG", "config.yaml")
}

// Load reads and validates a config file. A missing file returns defaults so
// the service can run entirely from env vars.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Env-only configuration.
	default:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables on top of file values.
func (c *Config) applyEnv() {
	if dsn := goutils.Env("SIGNALSAI_DB_DSN", ""); dsn != "" {
		if c.Storage == nil {
			c.Storage = &StorageConfig{Driver: "postgres"}
		}
		if c.Storage.Postgres == nil {
			c.Storage.Postgres = &PostgresStorageConfig{}
		}
		c.Storage.Postgres.DSN = dsn
	}
	if base := goutils.Env("SIGNALSAI_AGENT_BASE_URL", ""); base != "" {
		c.Agents.BaseURL = base
	}
	if key := goutils.Env("SIGNALSAI_API_KEY", ""); key != "" {
		if c.HTTP == nil {
			c.HTTP = &HTTPConfig{Enabled: true}
		}
		if c.HTTP.APIKeys == nil {
			c.HTTP.APIKeys = map[string]string{}
		}
		c.HTTP.APIKeys[key] = "env-operator"
	}
}

func (c *Config) validate() error {
	if c.Storage.StorageDriver() == "postgres" {
		if c.Storage == nil || c.Storage.Postgres == nil || c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("storage driver is postgres but no DSN configured")
		}
	}
	return nil
}
