// Package config loads the tradefloor configuration from file and
// environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the full tradefloor configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Billing   BillingConfig   `mapstructure:"billing"`
	Fanout    FanoutConfig    `mapstructure:"fanout"`
	Push      PushConfig      `mapstructure:"push"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Retention RetentionConfig `mapstructure:"retention"`
	Log       LogConfig       `mapstructure:"log"`
	Debug     DebugConfig     `mapstructure:"debug"`
}

// ServerConfig represents HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig represents database configuration.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig represents the optional Redis backend. When disabled the
// cache and rate limiter fall back to in-memory implementations.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig represents token issuing configuration.
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// BillingConfig represents webhook ingestion configuration.
type BillingConfig struct {
	WebhookSecret string        `mapstructure:"webhook_secret"`
	Tolerance     time.Duration `mapstructure:"tolerance"`
}

// Fan-out modes. In service mode notifications are inserted by the
// message transaction; in trigger mode a database trigger owns the
// insert and the process listens for NOTIFY events.
const (
	FanoutModeService = "service"
	FanoutModeTrigger = "trigger"
)

// FanoutConfig selects how notification fan-out runs.
type FanoutConfig struct {
	Mode string `mapstructure:"mode"`
}

// PushConfig represents Web Push (VAPID) configuration. Push dispatch
// is disabled when the keys are empty.
type PushConfig struct {
	VAPIDPublicKey  string `mapstructure:"vapid_public_key"`
	VAPIDPrivateKey string `mapstructure:"vapid_private_key"`
	Subject         string `mapstructure:"subject"`
}

// Enabled reports whether push dispatch is configured.
func (p PushConfig) Enabled() bool {
	return p.VAPIDPublicKey != "" && p.VAPIDPrivateKey != ""
}

// JobsConfig represents background worker configuration.
type JobsConfig struct {
	Workers      int           `mapstructure:"workers"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// RateLimitConfig represents the per-user message posting limit and
// the broader per-user API request limit.
type RateLimitConfig struct {
	MessagesPerMinute int `mapstructure:"messages_per_minute"`
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
}

// RetentionConfig controls the scheduled purge of read notifications
// and completed jobs.
type RetentionConfig struct {
	NotificationDays int `mapstructure:"notification_days"`
	JobDays          int `mapstructure:"job_days"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DebugConfig represents debug tooling configuration. The pprof
// listener exposes goroutine stacks and heap contents, so it binds its
// own address and is never routed on the public API port.
type DebugConfig struct {
	PprofAddr string `mapstructure:"pprof_addr"`
}

// Load loads the configuration from tradefloor.yaml, with environment
// overrides under the TRADEFLOOR_ prefix (TRADEFLOOR_DATABASE_URL etc).
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults. Secret-bearing keys get an empty default so viper
	// knows them; env-only values never reach Unmarshal otherwise.
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("billing.webhook_secret", "")
	v.SetDefault("billing.tolerance", 5*time.Minute)
	v.SetDefault("fanout.mode", FanoutModeService)
	v.SetDefault("push.vapid_public_key", "")
	v.SetDefault("push.vapid_private_key", "")
	v.SetDefault("push.subject", "mailto:support@tradefloor.io")
	v.SetDefault("jobs.workers", 4)
	v.SetDefault("jobs.poll_interval", time.Second)
	v.SetDefault("ratelimit.messages_per_minute", 30)
	v.SetDefault("ratelimit.requests_per_minute", 300)
	v.SetDefault("retention.notification_days", 30)
	v.SetDefault("retention.job_days", 7)
	v.SetDefault("log.level", "info")
	v.SetDefault("debug.pprof_addr", "")

	// Set config name and paths
	v.SetConfigName("tradefloor")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/tradefloor")

	// Enable environment variable support
	v.SetEnvPrefix("TRADEFLOOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults and environment
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// validateConfig validates the configuration.
func validateConfig(cfg *Config) error {
	if cfg.Fanout.Mode != FanoutModeService && cfg.Fanout.Mode != FanoutModeTrigger {
		return fmt.Errorf("fanout.mode must be %q or %q, got: %s",
			FanoutModeService, FanoutModeTrigger, cfg.Fanout.Mode)
	}
	if cfg.Jobs.Workers < 1 {
		return fmt.Errorf("jobs.workers must be at least 1, got: %d", cfg.Jobs.Workers)
	}
	if cfg.RateLimit.MessagesPerMinute < 1 {
		return fmt.Errorf("ratelimit.messages_per_minute must be at least 1, got: %d", cfg.RateLimit.MessagesPerMinute)
	}
	if cfg.RateLimit.RequestsPerMinute < 1 {
		return fmt.Errorf("ratelimit.requests_per_minute must be at least 1, got: %d", cfg.RateLimit.RequestsPerMinute)
	}
	return nil
}
