// Package config loads the orchestrator configuration from a YAML file with
// environment variable overrides. A .env file is loaded first if present.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultServiceName    = "interview-orchestrator"
	defaultVersion        = "0.1.0"
	defaultServerPort     = 8087
	defaultHTTPTimeoutSec = 30 // seconds, read/write timeouts
	defaultDatabasePort   = 5432

	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5 * time.Minute

	defaultTokenTTL          = 2 * time.Hour
	defaultProviderTimeout   = 10 * time.Second
	defaultMaxAttempts       = 5
	defaultBaseBackoff       = 30 * time.Second
	defaultMaxBackoff        = 30 * time.Minute
	defaultPollInterval      = 5 * time.Second
	defaultDispatchBatch     = 50
	defaultReconcileInterval = time.Minute
	defaultMaxBatchSegments  = 500
)

// Config holds the application configuration.
type Config struct {
	Service       ServiceConfig       `yaml:"service"`
	Database      DatabaseConfig      `yaml:"database"`
	Video         VideoConfig         `yaml:"video"`
	Messaging     MessagingConfig     `yaml:"messaging"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Transcripts   TranscriptsConfig   `yaml:"transcripts"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name         string        `yaml:"name"`
	Version      string        `yaml:"version"`
	Port         int           `yaml:"port"`
	Debug        bool          `yaml:"debug"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// MigrateURL returns the connection URL used by golang-migrate.
func (d *DatabaseConfig) MigrateURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// VideoConfig holds video provider credentials and call limits.
type VideoConfig struct {
	BaseURL   string        `yaml:"base_url"`
	ServerURL string        `yaml:"server_url"` // handed to participants for joining
	APIKey    string        `yaml:"api_key"`
	APISecret string        `yaml:"api_secret"`
	Timeout   time.Duration `yaml:"timeout"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// MessagingConfig holds messaging provider credentials and call limits.
type MessagingConfig struct {
	BaseURL  string        `yaml:"base_url"`
	APIToken string        `yaml:"api_token"`
	Timeout  time.Duration `yaml:"timeout"`
}

// NotificationsConfig controls the dispatch worker.
type NotificationsConfig struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	BaseBackoff       time.Duration `yaml:"base_backoff"`
	MaxBackoff        time.Duration `yaml:"max_backoff"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	BatchSize         int           `yaml:"batch_size"`
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
}

// TranscriptsConfig controls transcript ingestion limits.
type TranscriptsConfig struct {
	MaxBatchSegments int `yaml:"max_batch_segments"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the YAML config at path, applies defaults, then applies
// environment overrides (environment always wins).
func Load(path string) (*Config, error) {
	// Non-fatal if the .env file does not exist.
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(&cfg)
	overrideFromEnv(&cfg)

	return &cfg, nil
}

// GetConfigPath returns the config path from ORCHESTRATOR_CONFIG or the default.
func GetConfigPath(fallback string) string {
	if p := os.Getenv("ORCHESTRATOR_CONFIG"); p != "" {
		return p
	}
	return fallback
}

func setDefaults(cfg *Config) {
	svc := &cfg.Service
	if svc.Name == "" {
		svc.Name = defaultServiceName
	}
	if svc.Version == "" {
		svc.Version = defaultVersion
	}
	if svc.Port == 0 {
		svc.Port = defaultServerPort
	}
	if svc.ReadTimeout == 0 {
		svc.ReadTimeout = defaultHTTPTimeoutSec * time.Second
	}
	if svc.WriteTimeout == 0 {
		svc.WriteTimeout = defaultHTTPTimeoutSec * time.Second
	}

	db := &cfg.Database
	if db.Host == "" {
		db.Host = "localhost"
	}
	if db.Port == 0 {
		db.Port = defaultDatabasePort
	}
	if db.User == "" {
		db.User = "postgres"
	}
	if db.Database == "" {
		db.Database = "interview_orchestrator"
	}
	if db.SSLMode == "" {
		db.SSLMode = "disable"
	}
	if db.MaxOpenConns == 0 {
		db.MaxOpenConns = defaultMaxOpenConns
	}
	if db.MaxIdleConns == 0 {
		db.MaxIdleConns = defaultMaxIdleConns
	}
	if db.ConnMaxLifetime == 0 {
		db.ConnMaxLifetime = defaultConnMaxLifetime
	}

	if cfg.Video.Timeout == 0 {
		cfg.Video.Timeout = defaultProviderTimeout
	}
	if cfg.Video.TokenTTL == 0 {
		cfg.Video.TokenTTL = defaultTokenTTL
	}
	if cfg.Messaging.Timeout == 0 {
		cfg.Messaging.Timeout = defaultProviderTimeout
	}

	n := &cfg.Notifications
	if n.MaxAttempts == 0 {
		n.MaxAttempts = defaultMaxAttempts
	}
	if n.BaseBackoff == 0 {
		n.BaseBackoff = defaultBaseBackoff
	}
	if n.MaxBackoff == 0 {
		n.MaxBackoff = defaultMaxBackoff
	}
	if n.PollInterval == 0 {
		n.PollInterval = defaultPollInterval
	}
	if n.BatchSize == 0 {
		n.BatchSize = defaultDispatchBatch
	}
	if n.ReconcileInterval == 0 {
		n.ReconcileInterval = defaultReconcileInterval
	}

	if cfg.Transcripts.MaxBatchSegments == 0 {
		cfg.Transcripts.MaxBatchSegments = defaultMaxBatchSegments
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func overrideFromEnv(cfg *Config) {
	setString(&cfg.Database.Host, "POSTGRES_ORCHESTRATOR_HOST")
	setInt(&cfg.Database.Port, "POSTGRES_ORCHESTRATOR_PORT")
	setString(&cfg.Database.User, "POSTGRES_ORCHESTRATOR_USER")
	setString(&cfg.Database.Password, "POSTGRES_ORCHESTRATOR_PASSWORD")
	setString(&cfg.Database.Database, "POSTGRES_ORCHESTRATOR_DB")
	setString(&cfg.Database.SSLMode, "POSTGRES_ORCHESTRATOR_SSLMODE")

	setInt(&cfg.Service.Port, "ORCHESTRATOR_PORT")
	setBool(&cfg.Service.Debug, "APP_DEBUG")

	setString(&cfg.Video.BaseURL, "VIDEO_PROVIDER_URL")
	setString(&cfg.Video.ServerURL, "VIDEO_SERVER_URL")
	setString(&cfg.Video.APIKey, "VIDEO_API_KEY")
	setString(&cfg.Video.APISecret, "VIDEO_API_SECRET")
	setDuration(&cfg.Video.TokenTTL, "VIDEO_TOKEN_TTL")

	setString(&cfg.Messaging.BaseURL, "MESSAGING_PROVIDER_URL")
	setString(&cfg.Messaging.APIToken, "MESSAGING_API_TOKEN")

	setInt(&cfg.Notifications.MaxAttempts, "NOTIFY_MAX_ATTEMPTS")
	setDuration(&cfg.Notifications.BaseBackoff, "NOTIFY_BASE_BACKOFF")
	setDuration(&cfg.Notifications.PollInterval, "NOTIFY_POLL_INTERVAL")

	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(strings.TrimSpace(v))
		*dst = v == "true" || v == "1" || v == "yes"
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// Validate checks that everything required to reach the outside world is set.
func (c *Config) Validate() error {
	if c.Service.Port <= 0 || c.Service.Port > 65535 {
		return fmt.Errorf("service.port %d is out of range", c.Service.Port)
	}
	if c.Database.Host == "" {
		return errors.New("database.host is required")
	}
	if c.Database.User == "" {
		return errors.New("database.user is required")
	}
	if c.Database.Database == "" {
		return errors.New("database.database is required")
	}
	if c.Video.BaseURL == "" {
		return errors.New("video.base_url is required")
	}
	if c.Video.APIKey == "" || c.Video.APISecret == "" {
		return errors.New("video.api_key and video.api_secret are required")
	}
	if c.Messaging.BaseURL == "" {
		return errors.New("messaging.base_url is required")
	}
	if c.Messaging.APIToken == "" {
		return errors.New("messaging.api_token is required")
	}
	if c.Notifications.MaxAttempts < 1 {
		return errors.New("notifications.max_attempts must be at least 1")
	}
	if c.Notifications.BaseBackoff <= 0 {
		return errors.New("notifications.base_backoff must be positive")
	}
	return nil
}
