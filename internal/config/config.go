// Package config loads and validates the shopdesk configuration using Viper.
//
// Configuration is layered: built-in defaults < YAML config file < environment
// variables. Environment variables use the SHOPDESK_ prefix (e.g., SHOPDESK_DATABASE_HOST
// overrides database.host in the YAML). Secrets may also be written as ${VAR} references
// in the YAML and are expanded from the process environment at load time.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopdesk/shopdesk/internal/audit"
	"github.com/shopdesk/shopdesk/internal/notify"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment override
const EnvPrefix = "SHOPDESK"

// Config holds all application configuration
type Config struct {
	Server        ServerConfig    `mapstructure:"server"`
	Database      DatabaseConfig  `mapstructure:"database"`
	Auth          AuthConfig      `mapstructure:"auth"`
	Security      SecurityConfig  `mapstructure:"security"`
	Logging       LoggingConfig   `mapstructure:"logging"`
	Telemetry     TelemetryConfig `mapstructure:"telemetry"`
	Approvals     ApprovalsConfig `mapstructure:"approvals"`
	Audit         AuditConfig     `mapstructure:"audit"`
	Notifications notify.Config   `mapstructure:"notifications"`
	Redis         RedisConfig     `mapstructure:"redis"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	Name               string `mapstructure:"name"`
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	SSLMode            string `mapstructure:"ssl_mode"`
	MaxConnections     int    `mapstructure:"max_connections"`
	MinIdleConnections int    `mapstructure:"min_idle_connections"`
}

// AuthConfig holds bearer token configuration
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	// DevMode allows an empty jwt_secret to be replaced with a random one
	DevMode bool `mapstructure:"dev_mode"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	CORS         CORSConfig         `mapstructure:"cors"`
	RateLimiting RateLimitingConfig `mapstructure:"rate_limiting"`
	TLS          TLSConfig          `mapstructure:"tls"`
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RateLimitingConfig holds rate limiting configuration
type RateLimitingConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
	// Backend is "memory" (per replica) or "redis" (shared, uses redis.url)
	Backend string `mapstructure:"backend"`
}

// TLSConfig holds TLS/HTTPS configuration
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// MetricsConfig holds Prometheus metrics configuration
type MetricsConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	PrometheusPort int  `mapstructure:"prometheus_port"`
}

// ApprovalsConfig tunes the transactional core
type ApprovalsConfig struct {
	// TxTimeout bounds every serializable transaction; a transaction still running at the
	// deadline is rolled back.
	TxTimeout time.Duration `mapstructure:"tx_timeout"`
	// ReminderAfter is how long a request may stay PENDING before reminders go out; 0 disables them
	ReminderAfter    time.Duration `mapstructure:"reminder_after"`
	ReminderInterval time.Duration `mapstructure:"reminder_interval"`
}

// AuditConfig configures external shipping of committed audit entries. The audit_logs table is
// always written; shippers are an additional copy.
type AuditConfig struct {
	Shippers []audit.ShipperConfig `mapstructure:"shippers"`
}

// RedisConfig is the shared redis connection used by the redis rate limiter
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

func bindEnvVars(v *viper.Viper) error {
	keys := []string{
		// Server
		"server.host",
		"server.port",
		"server.read_timeout",
		"server.write_timeout",
		"server.shutdown_timeout",

		// Database
		"database.host",
		"database.port",
		"database.name",
		"database.user",
		"database.password",
		"database.ssl_mode",
		"database.max_connections",
		"database.min_idle_connections",

		// Auth
		"auth.jwt_secret",
		"auth.token_ttl",
		"auth.dev_mode",

		// Security
		"security.cors.allowed_origins",
		"security.rate_limiting.enabled",
		"security.rate_limiting.requests_per_minute",
		"security.rate_limiting.burst",
		"security.rate_limiting.backend",
		"security.tls.enabled",
		"security.tls.cert_file",
		"security.tls.key_file",

		// Logging
		"logging.level",
		"logging.format",

		// Telemetry
		"telemetry.metrics.enabled",
		"telemetry.metrics.prometheus_port",

		// Approvals
		"approvals.tx_timeout",
		"approvals.reminder_after",
		"approvals.reminder_interval",

		// Notifications
		"notifications.redis_url",
		"notifications.redis_channel",
		"notifications.webhook_url",
		"notifications.timeout",

		// Redis
		"redis.url",
	}
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind env var %q: %w", key, err)
		}
	}
	return nil
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/shopdesk")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv alone does not reach nested keys during Unmarshal
	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.Database.Password = os.ExpandEnv(cfg.Database.Password)
	cfg.Auth.JWTSecret = os.ExpandEnv(cfg.Auth.JWTSecret)
	cfg.Notifications.RedisURL = os.ExpandEnv(cfg.Notifications.RedisURL)
	cfg.Redis.URL = os.ExpandEnv(cfg.Redis.URL)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "shopdesk")
	v.SetDefault("database.user", "shopdesk")
	v.SetDefault("database.ssl_mode", "require")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_idle_connections", 5)

	v.SetDefault("auth.token_ttl", "8h")
	v.SetDefault("auth.dev_mode", false)

	v.SetDefault("security.cors.allowed_origins", []string{})
	v.SetDefault("security.rate_limiting.enabled", true)
	v.SetDefault("security.rate_limiting.requests_per_minute", 120)
	v.SetDefault("security.rate_limiting.burst", 30)
	v.SetDefault("security.rate_limiting.backend", "memory")
	v.SetDefault("security.tls.enabled", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("telemetry.metrics.enabled", true)
	v.SetDefault("telemetry.metrics.prometheus_port", 9090)

	v.SetDefault("approvals.tx_timeout", "10s")
	v.SetDefault("approvals.reminder_after", "24h")
	v.SetDefault("approvals.reminder_interval", "1h")

	v.SetDefault("notifications.redis_channel", notify.DefaultRedisChannel)
	v.SetDefault("notifications.timeout", "10s")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}

	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}

	if c.Approvals.TxTimeout <= 0 {
		return fmt.Errorf("approvals.tx_timeout must be positive, got %s", c.Approvals.TxTimeout)
	}
	if c.Approvals.ReminderAfter < 0 {
		return fmt.Errorf("approvals.reminder_after must not be negative")
	}
	if c.Approvals.ReminderAfter > 0 && c.Approvals.ReminderInterval <= 0 {
		return fmt.Errorf("approvals.reminder_interval must be positive when reminders are enabled")
	}

	rl := c.Security.RateLimiting
	if rl.Enabled {
		if rl.RequestsPerMinute < 1 || rl.Burst < 1 {
			return fmt.Errorf("security.rate_limiting requires positive requests_per_minute and burst")
		}
		switch rl.Backend {
		case "memory":
		case "redis":
			if c.Redis.URL == "" {
				return fmt.Errorf("redis.url is required when security.rate_limiting.backend is redis")
			}
		default:
			return fmt.Errorf("invalid rate limiting backend: %s (must be memory or redis)", rl.Backend)
		}
	}

	if c.Security.TLS.Enabled {
		if c.Security.TLS.CertFile == "" {
			return fmt.Errorf("security.tls.cert_file is required when TLS is enabled")
		}
		if c.Security.TLS.KeyFile == "" {
			return fmt.Errorf("security.tls.key_file is required when TLS is enabled")
		}
	}

	if c.Telemetry.Metrics.Enabled {
		p := c.Telemetry.Metrics.PrometheusPort
		if p < 1 || p > 65535 || p == c.Server.Port {
			return fmt.Errorf("invalid telemetry.metrics.prometheus_port: %d", p)
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid logging format: %s (must be json or text)", c.Logging.Format)
	}

	for i, s := range c.Audit.Shippers {
		if !s.Enabled {
			continue
		}
		switch s.Type {
		case "webhook":
			if s.Webhook == nil || s.Webhook.URL == "" {
				return fmt.Errorf("audit.shippers[%d]: webhook.url is required", i)
			}
		case "file":
			if s.File == nil || s.File.Path == "" {
				return fmt.Errorf("audit.shippers[%d]: file.path is required", i)
			}
		default:
			return fmt.Errorf("audit.shippers[%d]: unknown type %q (must be webhook or file)", i, s.Type)
		}
	}

	return nil
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// GetAddress returns the server address in host:port format
func (c *ServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
