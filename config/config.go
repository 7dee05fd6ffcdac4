package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"partyboard/adapters/pgx"
	"partyboard/adapters/redis"
	"partyboard/adapters/sqlx"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Storage adapter names.
const (
	AdapterMemory   = "memory"
	AdapterFile     = "file"
	AdapterRedis    = "redis"
	AdapterSQL      = "sql"
	AdapterPostgres = "postgres"
)

// Config holds the complete application configuration
type Config struct {
	// Environment and profile settings
	Environment Environment `json:"environment" env:"PARTYBOARD_ENV"`
	Profile     string      `json:"profile" env:"PARTYBOARD_PROFILE"`

	// Server configuration
	Server ServerConfig `json:"server"`

	// Storage configuration
	Storage StorageConfig `json:"storage"`

	// Leaderboard API behaviour
	Leaderboard LeaderboardConfig `json:"leaderboard"`

	// Party session settings
	Session SessionConfig `json:"session"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`

	// Submission analytics and reporting
	Analytics AnalyticsConfig `json:"analytics"`

	// Outgoing event webhooks
	Webhook WebhookConfig `json:"webhook"`

	// Security configuration
	Security SecurityConfig `json:"security"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address           string        `json:"address" env:"PARTYBOARD_SERVER_ADDR"`
	PathPrefix        string        `json:"path_prefix" env:"PARTYBOARD_SERVER_PATH_PREFIX"`
	CORSOrigin        string        `json:"cors_origin" env:"PARTYBOARD_SERVER_CORS_ORIGIN"`
	ShareURL          string        `json:"share_url" env:"PARTYBOARD_SERVER_SHARE_URL"`
	ReadTimeout       time.Duration `json:"read_timeout" env:"PARTYBOARD_SERVER_READ_TIMEOUT"`
	WriteTimeout      time.Duration `json:"write_timeout" env:"PARTYBOARD_SERVER_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `json:"idle_timeout" env:"PARTYBOARD_SERVER_IDLE_TIMEOUT"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" env:"PARTYBOARD_SERVER_READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" env:"PARTYBOARD_SERVER_SHUTDOWN_TIMEOUT"`
}

// StorageConfig holds storage adapter configuration
type StorageConfig struct {
	Adapter  string       `json:"adapter" env:"PARTYBOARD_STORAGE_ADAPTER"`
	Redis    redis.Config `json:"redis,omitempty"`
	SQL      sqlx.Config  `json:"sql,omitempty"`
	Postgres pgx.Config   `json:"postgres,omitempty"`
	File     FileConfig   `json:"file,omitempty"`
}

// FileConfig holds JSON file storage configuration
type FileConfig struct {
	Path string `json:"path" env:"PARTYBOARD_STORAGE_FILE_PATH"`
}

// LeaderboardConfig tunes the score API.
type LeaderboardConfig struct {
	DefaultLimit int    `json:"default_limit" env:"PARTYBOARD_LEADERBOARD_DEFAULT_LIMIT"`
	MaxBodyBytes int64  `json:"max_body_bytes" env:"PARTYBOARD_LEADERBOARD_MAX_BODY_BYTES"`
	Dispatch     string `json:"dispatch" env:"PARTYBOARD_LEADERBOARD_DISPATCH"`
}

// SessionConfig configures the party session run by the demo binary.
type SessionConfig struct {
	TransitionDelay  time.Duration `json:"transition_delay" env:"PARTYBOARD_SESSION_TRANSITION_DELAY"`
	LeaderboardLimit int           `json:"leaderboard_limit" env:"PARTYBOARD_SESSION_LEADERBOARD_LIMIT"`
	Sequence         []string      `json:"sequence,omitempty" env:"PARTYBOARD_SESSION_SEQUENCE"`
	Seed             uint64        `json:"seed" env:"PARTYBOARD_SESSION_SEED"`
	FrameInterval    time.Duration `json:"frame_interval" env:"PARTYBOARD_SESSION_FRAME_INTERVAL"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string            `json:"level" env:"PARTYBOARD_LOG_LEVEL"`
	Format     string            `json:"format" env:"PARTYBOARD_LOG_FORMAT"`
	Output     string            `json:"output" env:"PARTYBOARD_LOG_OUTPUT"`
	Attributes map[string]string `json:"attributes,omitempty" env:"PARTYBOARD_LOG_ATTRIBUTES"`
}

// AnalyticsConfig holds submission analytics configuration
type AnalyticsConfig struct {
	Enabled        bool          `json:"enabled" env:"PARTYBOARD_ANALYTICS_ENABLED"`
	ReportInterval time.Duration `json:"report_interval" env:"PARTYBOARD_ANALYTICS_REPORT_INTERVAL"`
	ExportURL      string        `json:"export_url" env:"PARTYBOARD_ANALYTICS_EXPORT_URL"`
	ExportAPIKey   string        `json:"export_api_key" env:"PARTYBOARD_ANALYTICS_EXPORT_API_KEY"`
	ExportBatch    int           `json:"export_batch" env:"PARTYBOARD_ANALYTICS_EXPORT_BATCH"`
}

// WebhookConfig lists endpoints notified of leaderboard events.
type WebhookConfig struct {
	Endpoints []string      `json:"endpoints,omitempty" env:"PARTYBOARD_WEBHOOK_ENDPOINTS"`
	Events    []string      `json:"events,omitempty" env:"PARTYBOARD_WEBHOOK_EVENTS"`
	Timeout   time.Duration `json:"timeout" env:"PARTYBOARD_WEBHOOK_TIMEOUT"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	EnableRateLimit bool            `json:"enable_rate_limit" env:"PARTYBOARD_SECURITY_RATE_LIMIT_ENABLED"`
	RateLimit       RateLimitConfig `json:"rate_limit,omitempty"`
	APIKeys         []string        `json:"api_keys,omitempty" env:"PARTYBOARD_SECURITY_API_KEYS"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `json:"requests_per_minute" env:"PARTYBOARD_SECURITY_RATE_LIMIT_RPM"`
	BurstSize         int `json:"burst_size" env:"PARTYBOARD_SECURITY_RATE_LIMIT_BURST"`
}

// Validate validates security settings.
func (s SecurityConfig) Validate() error {
	var errs []string
	if s.EnableRateLimit {
		if s.RateLimit.RequestsPerMinute <= 0 {
			errs = append(errs, "rate_limit.requests_per_minute must be > 0 when rate limiting is enabled")
		}
		if s.RateLimit.BurstSize <= 0 {
			errs = append(errs, "rate_limit.burst_size must be > 0 when rate limiting is enabled")
		}
	}
	for i, key := range s.APIKeys {
		if strings.TrimSpace(key) == "" {
			errs = append(errs, fmt.Sprintf("api_keys[%d] is empty", i))
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Load loads configuration from environment variables and validates it
func Load() (*Config, error) {
	return finish(DefaultConfig())
}

// finish applies environment overrides and validates.
func finish(cfg *Config) (*Config, error) {
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// validateConfigPath validates that the config file path is safe
func validateConfigPath(path string) error {
	if path == "" {
		return errors.New("config file path cannot be empty")
	}

	cleanPath := filepath.Clean(path)

	if !strings.HasSuffix(strings.ToLower(cleanPath), ".json") {
		return errors.New("config file must have .json extension")
	}

	if _, err := os.Stat(cleanPath); err != nil {
		return fmt.Errorf("config file not accessible: %w", err)
	}

	return nil
}

// LoadFromFile loads configuration from a JSON file on top of the defaults of
// the profile it names (development when none).
func LoadFromFile(path string) (*Config, error) {
	if err := validateConfigPath(path); err != nil {
		return nil, fmt.Errorf("invalid config file path: %w", err)
	}

	file, err := os.Open(path) // #nosec G304 - Path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var head struct {
		Profile string `json:"profile"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if head.Profile != "" {
		if cfg, err = profileDefaults(head.Profile); err != nil {
			return nil, err
		}
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	// Environment variables override file values
	return finish(cfg)
}

// DefaultConfig returns a configuration with sensible defaults for development
func DefaultConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Profile:     "default",
		Server: ServerConfig{
			Address:           ":8080",
			PathPrefix:        "/api",
			CORSOrigin:        "*",
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Storage: StorageConfig{
			Adapter:  AdapterMemory,
			Redis:    redis.DefaultConfig(),
			SQL:      sqlx.DefaultConfig(sqlx.DriverPostgres),
			Postgres: pgx.DefaultConfig(),
			File: FileConfig{
				Path: "./data/leaderboard.json",
			},
		},
		Leaderboard: LeaderboardConfig{
			DefaultLimit: 10,
			MaxBodyBytes: 1 << 16,
			Dispatch:     "async",
		},
		Session: SessionConfig{
			TransitionDelay:  3 * time.Second,
			LeaderboardLimit: 10,
			FrameInterval:    16 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Analytics: AnalyticsConfig{
			Enabled:        true,
			ReportInterval: 5 * time.Minute,
			ExportBatch:    10,
		},
		Webhook: WebhookConfig{
			Timeout: 5 * time.Second,
		},
		Security: SecurityConfig{
			EnableRateLimit: false,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
				BurstSize:         10,
			},
			APIKeys: []string{},
		},
	}
}

// Validate validates the configuration and returns detailed error messages
func (c *Config) Validate() error {
	var errs []string

	if c.Environment == "" {
		errs = append(errs, "environment cannot be empty")
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Storage.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("storage config: %v", err))
	}

	if err := c.Leaderboard.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("leaderboard config: %v", err))
	}

	if err := c.Session.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("session config: %v", err))
	}

	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("logging config: %v", err))
	}

	if err := c.Analytics.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("analytics config: %v", err))
	}

	if err := c.Webhook.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("webhook config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// String returns a JSON representation of the config (with secrets redacted)
func (c *Config) String() string {
	cfg := *c

	if cfg.Storage.SQL.DSN != "" {
		cfg.Storage.SQL.DSN = "[REDACTED]"
	}
	if cfg.Storage.Postgres.DSN != "" {
		cfg.Storage.Postgres.DSN = "[REDACTED]"
	}
	if cfg.Storage.Redis.Password != "" {
		cfg.Storage.Redis.Password = "[REDACTED]"
	}
	if cfg.Analytics.ExportAPIKey != "" {
		cfg.Analytics.ExportAPIKey = "[REDACTED]"
	}
	if len(cfg.Security.APIKeys) > 0 {
		cfg.Security.APIKeys = []string{fmt.Sprintf("[%d REDACTED]", len(c.Security.APIKeys))}
	}

	data, _ := json.MarshalIndent(cfg, "", "  ")
	return string(data)
}
