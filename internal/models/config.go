// Package models - Service configuration and operational settings.
// This file defines the configuration structures for all service components.
//
// Configuration Philosophy:
// - Hierarchical configuration with logical grouping (server, storage, security, etc.)
// - Environment-friendly defaults that work out of the box
// - Comprehensive validation to catch misconfigurations early
// - Support for multiple deployment scenarios (development, production, cloud)
package models

import (
	"errors"
	"fmt"
	"time"
)

// Storage type constants
const (
	StorageTypeMemory   = "memory"
	StorageTypePostgres = "postgres"
	StorageTypeSQLite   = "sqlite"
)

// Config is the root configuration structure containing all service settings.
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`               // HTTP server configuration
	Storage       StorageConfig       `yaml:"storage" json:"storage"`             // Data persistence settings
	Security      SecurityConfig      `yaml:"security" json:"security"`           // Authentication and request admission
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`             // Logging and output configuration
	Cache         CacheConfig         `yaml:"cache" json:"cache"`                 // Shared key-value store for admission state
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`             // Monitoring and metrics
	Observability ObservabilityConfig `yaml:"observability" json:"observability"` // Tracing configuration
}

type ServerConfig struct {
	Port         int           `yaml:"port" json:"port"`
	Host         string        `yaml:"host" json:"host"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	TLSEnabled   bool          `yaml:"tls_enabled" json:"tls_enabled"`
	TLSCertFile  string        `yaml:"tls_cert_file" json:"tls_cert_file"`
	TLSKeyFile   string        `yaml:"tls_key_file" json:"tls_key_file"`
	CORS         CORSConfig    `yaml:"cors" json:"cors"`
}

type CORSConfig struct {
	Enabled        bool     `yaml:"enabled" json:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" json:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" json:"allowed_headers"`
	MaxAge         int      `yaml:"max_age" json:"max_age"`
}

type StorageConfig struct {
	Type     string         `yaml:"type" json:"type"`
	Database DatabaseConfig `yaml:"database" json:"database"`
}

type DatabaseConfig struct {
	DSN             string        `yaml:"dsn" json:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
}

type SecurityConfig struct {
	EnableAuth   bool              `yaml:"enable_auth" json:"enable_auth"`
	BootstrapKey string            `yaml:"bootstrap_key" json:"bootstrap_key"`
	APIKeyHeader string            `yaml:"api_key_header" json:"api_key_header"`
	RateLimit    RateLimitConfig   `yaml:"rate_limit" json:"rate_limit"`
	Idempotency  IdempotencyConfig `yaml:"idempotency" json:"idempotency"`
}

// RatePolicy is one quota bucket definition attached to a route tag.
// Scope selects the counting dimension: global, ip, user or api-key.
type RatePolicy struct {
	Limit           int           `yaml:"limit" json:"limit"`
	Window          time.Duration `yaml:"window" json:"window"`
	Scope           string        `yaml:"scope" json:"scope"`
	IncludeEndpoint bool          `yaml:"include_endpoint" json:"include_endpoint"`
}

// RateLimitConfig controls the admission rate limiter. Overrides replace the
// built-in preset for the named route tag; unnamed tags keep their preset.
type RateLimitConfig struct {
	Enabled   bool                  `yaml:"enabled" json:"enabled"`
	FailOpen  bool                  `yaml:"fail_open" json:"fail_open"`
	Overrides map[string]RatePolicy `yaml:"overrides" json:"overrides"`
}

// IdempotencyConfig controls the idempotent-request coordinator.
// LockTTL bounds how long a crashed handler can hold a key; ResponseTTL is
// how long a completed response is replayed for.
type IdempotencyConfig struct {
	Enabled     bool          `yaml:"enabled" json:"enabled"`
	LockTTL     time.Duration `yaml:"lock_ttl" json:"lock_ttl"`
	ResponseTTL time.Duration `yaml:"response_ttl" json:"response_ttl"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// CacheConfig selects the shared key-value store backing rate counters and
// idempotency records. The memory backend is single-instance only.
type CacheConfig struct {
	Type   string       `yaml:"type" json:"type"`
	Redis  RedisConfig  `yaml:"redis" json:"redis"`
	Memory MemoryConfig `yaml:"memory" json:"memory"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	PoolSize int    `yaml:"pool_size" json:"pool_size"`
}

type MemoryConfig struct {
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	Port    int    `yaml:"port" json:"port"`
}

type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name" json:"service_name"`
	Tracing     TracingConfig `yaml:"tracing" json:"tracing"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter" json:"exporter"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate" json:"sample_rate"`
}

// NewDefaultConfig creates a configuration with production-ready defaults.
//
// Default Values Rationale:
// - Port 8080: standard non-privileged HTTP port
// - 30-second timeouts: balance between user experience and resource protection
// - Memory storage and cache: simple setup without external dependencies,
//   suitable for a single instance; switch cache to redis for multi-instance
// - Rate limiting and idempotency enabled: request admission from the start
// - Structured logging: better for log aggregation and analysis
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			TLSEnabled:   false,
			CORS: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"*"},
				MaxAge:         86400,
			},
		},
		Storage: StorageConfig{
			Type: StorageTypeMemory,
			Database: DatabaseConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Security: SecurityConfig{
			EnableAuth:   false,
			APIKeyHeader: "X-API-Key",
			RateLimit: RateLimitConfig{
				Enabled:  true,
				FailOpen: true,
			},
			Idempotency: IdempotencyConfig{
				Enabled:     true,
				LockTTL:     30 * time.Second,
				ResponseTTL: 24 * time.Hour,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Cache: CacheConfig{
			Type: "memory",
			Memory: MemoryConfig{
				CleanupInterval: time.Minute,
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9090,
		},
		Observability: ObservabilityConfig{
			ServiceName: "grantdesk",
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   "stdout",
				SampleRate: 1.0,
			},
		},
	}
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("invalid storage config: %w", err)
	}

	if err := c.Security.Validate(); err != nil {
		return fmt.Errorf("invalid security config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}

	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("invalid cache config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}

	return nil
}

func (sc *ServerConfig) Validate() error {
	if sc.Port <= 0 || sc.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}

	if sc.Host == "" {
		return errors.New("host cannot be empty")
	}

	if sc.ReadTimeout < 0 || sc.WriteTimeout < 0 || sc.IdleTimeout < 0 {
		return errors.New("timeouts cannot be negative")
	}

	if sc.TLSEnabled {
		if sc.TLSCertFile == "" {
			return errors.New("TLS cert file is required when TLS is enabled")
		}
		if sc.TLSKeyFile == "" {
			return errors.New("TLS key file is required when TLS is enabled")
		}
	}

	return nil
}

func (stc *StorageConfig) Validate() error {
	switch stc.Type {
	case StorageTypeMemory:
		return nil
	case StorageTypePostgres, StorageTypeSQLite:
		if stc.Database.DSN == "" {
			return errors.New("database DSN is required for database storage")
		}
		return nil
	default:
		return fmt.Errorf("invalid storage type: %s", stc.Type)
	}
}

func (sec *SecurityConfig) Validate() error {
	if sec.APIKeyHeader == "" {
		return errors.New("api key header cannot be empty")
	}

	for tag, policy := range sec.RateLimit.Overrides {
		if err := policy.Validate(); err != nil {
			return fmt.Errorf("invalid rate policy for tag %q: %w", tag, err)
		}
	}

	if sec.Idempotency.Enabled {
		if sec.Idempotency.LockTTL <= 0 {
			return errors.New("idempotency lock TTL must be positive")
		}
		if sec.Idempotency.ResponseTTL <= 0 {
			return errors.New("idempotency response TTL must be positive")
		}
	}

	return nil
}

func (rp *RatePolicy) Validate() error {
	if rp.Limit <= 0 {
		return errors.New("limit must be positive")
	}
	if rp.Window <= 0 {
		return errors.New("window must be positive")
	}
	switch rp.Scope {
	case "global", "ip", "user", "api-key":
		return nil
	default:
		return fmt.Errorf("invalid scope: %s", rp.Scope)
	}
}

func (lc *LoggingConfig) Validate() error {
	switch lc.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", lc.Level)
	}

	switch lc.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", lc.Format)
	}

	switch lc.Output {
	case "stdout", "stderr":
	case "file":
		if lc.FilePath == "" {
			return errors.New("file path is required when output is file")
		}
	default:
		return fmt.Errorf("invalid log output: %s", lc.Output)
	}

	return nil
}

func (cc *CacheConfig) Validate() error {
	switch cc.Type {
	case "memory":
		return nil
	case "redis":
		if cc.Redis.Addr == "" {
			return errors.New("Redis address is required when cache type is redis")
		}
		return nil
	default:
		return fmt.Errorf("invalid cache type: %s", cc.Type)
	}
}

func (mc *MetricsConfig) Validate() error {
	if !mc.Enabled {
		return nil
	}

	if mc.Path == "" {
		return errors.New("metrics path cannot be empty")
	}

	if mc.Port <= 0 || mc.Port > 65535 {
		return errors.New("metrics port must be between 1 and 65535")
	}

	return nil
}
