// Package config provides configuration management for a2ad.
// It supports loading configuration from environment variables, config files, and defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage drivers.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Push providers.
const (
	PushWebhook = "webhook"
	PushNATS    = "nats"
	PushLog     = "log"
)

// Bus providers.
const (
	BusMemory = "memory"
	BusNATS   = "nats"
)

// Built-in executors.
const (
	ExecutorEcho  = "echo"
	ExecutorShell = "shell"
)

// Config holds all configuration sections for a2ad.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	NATS    NATSConfig    `mapstructure:"nats"`
	Push    PushConfig    `mapstructure:"push"`
	Bus     BusConfig     `mapstructure:"bus"`
	Agent   AgentConfig   `mapstructure:"agent"`
	Card    CardConfig    `mapstructure:"card"`
	Limits  LimitsConfig  `mapstructure:"limits"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"readTimeout"`  // in seconds
	WriteTimeout int    `mapstructure:"writeTimeout"` // in seconds
}

// StorageConfig selects and configures the task/message/push-config stores.
type StorageConfig struct {
	Driver   string         `mapstructure:"driver"` // memory, sqlite, postgres
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// SQLiteConfig holds SQLite storage configuration.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// PostgresConfig holds PostgreSQL storage configuration.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbName"`
	SSLMode  string `mapstructure:"sslMode"`
	MaxConns int    `mapstructure:"maxConns"`
	MinConns int    `mapstructure:"minConns"`
}

// NATSConfig holds NATS connection configuration, shared by the NATS event
// bus and the NATS push provider.
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	ClientID      string `mapstructure:"clientId"`
	MaxReconnects int    `mapstructure:"maxReconnects"`
}

// PushConfig selects and configures push-notification delivery.
type PushConfig struct {
	Provider string `mapstructure:"provider"` // webhook, nats, log
	Webhook  struct {
		Timeout int `mapstructure:"timeout"` // in seconds
	} `mapstructure:"webhook"`
}

// BusConfig selects the event bus used for task lifecycle notifications.
type BusConfig struct {
	Provider string `mapstructure:"provider"` // memory, nats
}

// AgentConfig selects the hosted executor and its card.
type AgentConfig struct {
	// CardPath is the YAML file describing the agent card.
	CardPath string `mapstructure:"cardPath"`

	// Executor names the built-in executor to host: echo or shell.
	Executor string `mapstructure:"executor"`

	// ShellCommand is the command run by the shell executor for each message.
	ShellCommand string `mapstructure:"shellCommand"`
}

// CardConfig controls serving of the authenticated extended card.
type CardConfig struct {
	ExtendedEnabled bool `mapstructure:"extendedEnabled"`

	// ExtendedPath is the YAML file for the extended card; empty serves
	// the public card to authenticated callers.
	ExtendedPath string `mapstructure:"extendedPath"`

	AuthToken string `mapstructure:"authToken"` // empty disables the auth check
}

// LimitsConfig bounds runtime resources.
type LimitsConfig struct {
	// MaxConcurrentSessions caps simultaneously running sessions; 0 means unbounded.
	MaxConcurrentSessions int `mapstructure:"maxConcurrentSessions"`

	// SubscriberBuffer is the per-subscriber event buffer size.
	SubscriberBuffer int `mapstructure:"subscriberBuffer"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"outputPath"`
}

// ReadTimeoutDuration returns the read timeout as a time.Duration.
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns the write timeout as a time.Duration.
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// TimeoutDuration returns the webhook timeout as a time.Duration.
func (p *PushConfig) TimeoutDuration() time.Duration {
	return time.Duration(p.Webhook.Timeout) * time.Second
}

// detectDefaultLogFormat returns the appropriate log format based on environment.
func detectDefaultLogFormat() string {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "json"
	}
	if env := os.Getenv("A2AD_ENV"); env == "production" || env == "prod" {
		return "json"
	}
	return "text"
}

// setDefaults configures default values for all configuration options.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8089)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 0) // streaming responses must not be cut off

	// Storage defaults
	v.SetDefault("storage.driver", StorageMemory)
	v.SetDefault("storage.sqlite.path", "a2ad.db")
	v.SetDefault("storage.postgres.host", "")
	v.SetDefault("storage.postgres.port", 5432)
	v.SetDefault("storage.postgres.user", "a2ad")
	v.SetDefault("storage.postgres.password", "")
	v.SetDefault("storage.postgres.dbName", "a2ad")
	v.SetDefault("storage.postgres.sslMode", "disable")
	v.SetDefault("storage.postgres.maxConns", 25)
	v.SetDefault("storage.postgres.minConns", 5)

	// NATS defaults - empty URL means NATS-backed providers are unavailable
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.clientId", "a2ad")
	v.SetDefault("nats.maxReconnects", 10)

	// Push defaults
	v.SetDefault("push.provider", PushWebhook)
	v.SetDefault("push.webhook.timeout", 10)

	// Bus defaults
	v.SetDefault("bus.provider", BusMemory)

	// Agent defaults
	v.SetDefault("agent.cardPath", "agentcard.yaml")
	v.SetDefault("agent.executor", "echo")
	v.SetDefault("agent.shellCommand", "")

	// Card defaults
	v.SetDefault("card.extendedEnabled", true)
	v.SetDefault("card.extendedPath", "")
	v.SetDefault("card.authToken", "")

	// Limits defaults
	v.SetDefault("limits.maxConcurrentSessions", 0)
	v.SetDefault("limits.subscriberBuffer", 256)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", detectDefaultLogFormat())
	v.SetDefault("logging.outputPath", "stdout")
}

// Load reads configuration from environment variables, config file, and defaults.
// Environment variables use the prefix A2AD_ with snake_case naming.
// Config file should be named a2ad.yaml and placed in the current directory or /etc/a2ad/.
func Load() (*Config, error) {
	return LoadWithPath("")
}

// LoadWithPath reads configuration from the specified path or default locations.
func LoadWithPath(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults first
	setDefaults(v)

	// Configure environment variables
	v.SetEnvPrefix("A2AD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicit bindings for snake_case env vars (camelCase config keys).
	// AutomaticEnv does not handle camelCase to SNAKE_CASE conversion.
	_ = v.BindEnv("storage.sqlite.path", "A2AD_STORAGE_SQLITE_PATH")
	_ = v.BindEnv("agent.cardPath", "A2AD_AGENT_CARD_PATH")
	_ = v.BindEnv("agent.shellCommand", "A2AD_AGENT_SHELL_COMMAND")
	_ = v.BindEnv("limits.maxConcurrentSessions", "A2AD_LIMITS_MAX_CONCURRENT_SESSIONS")
	_ = v.BindEnv("limits.subscriberBuffer", "A2AD_LIMITS_SUBSCRIBER_BUFFER")

	// Configure config file
	v.SetConfigName("a2ad")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/a2ad/")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// validate checks that all required configuration fields are set.
func validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	switch cfg.Storage.Driver {
	case StorageMemory:
	case StorageSQLite:
		if cfg.Storage.SQLite.Path == "" {
			errs = append(errs, "storage.sqlite.path is required for the sqlite driver")
		}
	case StoragePostgres:
		if cfg.Storage.Postgres.Host == "" {
			errs = append(errs, "storage.postgres.host is required for the postgres driver")
		}
		if cfg.Storage.Postgres.User == "" {
			errs = append(errs, "storage.postgres.user is required for the postgres driver")
		}
		if cfg.Storage.Postgres.DBName == "" {
			errs = append(errs, "storage.postgres.dbName is required for the postgres driver")
		}
	default:
		errs = append(errs, "storage.driver must be one of: memory, sqlite, postgres")
	}

	switch cfg.Push.Provider {
	case PushWebhook, PushLog:
	case PushNATS:
		if cfg.NATS.URL == "" {
			errs = append(errs, "nats.url is required for the nats push provider")
		}
	default:
		errs = append(errs, "push.provider must be one of: webhook, nats, log")
	}

	switch cfg.Bus.Provider {
	case BusMemory:
	case BusNATS:
		if cfg.NATS.URL == "" {
			errs = append(errs, "nats.url is required for the nats bus provider")
		}
	default:
		errs = append(errs, "bus.provider must be one of: memory, nats")
	}

	switch cfg.Agent.Executor {
	case ExecutorEcho:
	case ExecutorShell:
		if cfg.Agent.ShellCommand == "" {
			errs = append(errs, "agent.shellCommand is required for the shell executor")
		}
	default:
		errs = append(errs, "agent.executor must be one of: echo, shell")
	}

	if cfg.Limits.MaxConcurrentSessions < 0 {
		errs = append(errs, "limits.maxConcurrentSessions must not be negative")
	}
	if cfg.Limits.SubscriberBuffer <= 0 {
		errs = append(errs, "limits.subscriberBuffer must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, "logging.format must be one of: json, text")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (d *PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}
