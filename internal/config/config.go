// Package config loads service configuration from a YAML file and
// GRANTDESK_* environment variables, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"grantdesk/internal/models"
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*models.Config, error) {
	// Start with default configuration
	config := models.NewDefaultConfig()

	// Load from file if provided and exists
	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Override with environment variables
	loadFromEnvironment(config)

	// Validate the final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(config *models.Config, filePath string) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", filePath)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

// loadFromEnvironment loads configuration from environment variables
func loadFromEnvironment(config *models.Config) {
	// Server configuration
	if port := os.Getenv("GRANTDESK_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if host := os.Getenv("GRANTDESK_HOST"); host != "" {
		config.Server.Host = host
	}

	if timeout := os.Getenv("GRANTDESK_READ_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Server.ReadTimeout = d
		}
	}

	if timeout := os.Getenv("GRANTDESK_WRITE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Server.WriteTimeout = d
		}
	}

	if timeout := os.Getenv("GRANTDESK_IDLE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Server.IdleTimeout = d
		}
	}

	if tls := os.Getenv("GRANTDESK_TLS_ENABLED"); tls != "" {
		config.Server.TLSEnabled = strings.ToLower(tls) == "true"
	}

	if certFile := os.Getenv("GRANTDESK_TLS_CERT_FILE"); certFile != "" {
		config.Server.TLSCertFile = certFile
	}

	if keyFile := os.Getenv("GRANTDESK_TLS_KEY_FILE"); keyFile != "" {
		config.Server.TLSKeyFile = keyFile
	}

	// Storage configuration
	if storageType := os.Getenv("GRANTDESK_STORAGE_TYPE"); storageType != "" {
		config.Storage.Type = storageType
	}

	if dsn := os.Getenv("GRANTDESK_DATABASE_DSN"); dsn != "" {
		config.Storage.Database.DSN = dsn
	}

	if maxOpen := os.Getenv("GRANTDESK_DATABASE_MAX_OPEN_CONNS"); maxOpen != "" {
		if conns, err := strconv.Atoi(maxOpen); err == nil {
			config.Storage.Database.MaxOpenConns = conns
		}
	}

	if maxIdle := os.Getenv("GRANTDESK_DATABASE_MAX_IDLE_CONNS"); maxIdle != "" {
		if conns, err := strconv.Atoi(maxIdle); err == nil {
			config.Storage.Database.MaxIdleConns = conns
		}
	}

	// Security configuration
	if auth := os.Getenv("GRANTDESK_ENABLE_AUTH"); auth != "" {
		config.Security.EnableAuth = strings.ToLower(auth) == "true"
	}

	if bk := os.Getenv("GRANTDESK_BOOTSTRAP_KEY"); bk != "" {
		config.Security.BootstrapKey = bk
	}

	if header := os.Getenv("GRANTDESK_API_KEY_HEADER"); header != "" {
		config.Security.APIKeyHeader = header
	}

	if rl := os.Getenv("GRANTDESK_RATE_LIMIT_ENABLED"); rl != "" {
		config.Security.RateLimit.Enabled = strings.ToLower(rl) == "true"
	}

	if fo := os.Getenv("GRANTDESK_RATE_LIMIT_FAIL_OPEN"); fo != "" {
		config.Security.RateLimit.FailOpen = strings.ToLower(fo) == "true"
	}

	if idem := os.Getenv("GRANTDESK_IDEMPOTENCY_ENABLED"); idem != "" {
		config.Security.Idempotency.Enabled = strings.ToLower(idem) == "true"
	}

	if ttl := os.Getenv("GRANTDESK_IDEMPOTENCY_LOCK_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			config.Security.Idempotency.LockTTL = d
		}
	}

	if ttl := os.Getenv("GRANTDESK_IDEMPOTENCY_RESPONSE_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			config.Security.Idempotency.ResponseTTL = d
		}
	}

	// Logging configuration
	if level := os.Getenv("GRANTDESK_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if format := os.Getenv("GRANTDESK_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}

	if output := os.Getenv("GRANTDESK_LOG_OUTPUT"); output != "" {
		config.Logging.Output = output
	}

	if filePath := os.Getenv("GRANTDESK_LOG_FILE_PATH"); filePath != "" {
		config.Logging.FilePath = filePath
	}

	// Cache configuration
	if cacheType := os.Getenv("GRANTDESK_CACHE_TYPE"); cacheType != "" {
		config.Cache.Type = cacheType
	}

	if addr := os.Getenv("GRANTDESK_REDIS_ADDR"); addr != "" {
		config.Cache.Redis.Addr = addr
	}

	if password := os.Getenv("GRANTDESK_REDIS_PASSWORD"); password != "" {
		config.Cache.Redis.Password = password
	}

	if db := os.Getenv("GRANTDESK_REDIS_DB"); db != "" {
		if dbNum, err := strconv.Atoi(db); err == nil {
			config.Cache.Redis.DB = dbNum
		}
	}

	if poolSize := os.Getenv("GRANTDESK_REDIS_POOL_SIZE"); poolSize != "" {
		if size, err := strconv.Atoi(poolSize); err == nil {
			config.Cache.Redis.PoolSize = size
		}
	}

	if cleanup := os.Getenv("GRANTDESK_MEMORY_CACHE_CLEANUP_INTERVAL"); cleanup != "" {
		if d, err := time.ParseDuration(cleanup); err == nil {
			config.Cache.Memory.CleanupInterval = d
		}
	}

	// Metrics configuration
	if metrics := os.Getenv("GRANTDESK_METRICS_ENABLED"); metrics != "" {
		config.Metrics.Enabled = strings.ToLower(metrics) == "true"
	}

	if path := os.Getenv("GRANTDESK_METRICS_PATH"); path != "" {
		config.Metrics.Path = path
	}

	if port := os.Getenv("GRANTDESK_METRICS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Metrics.Port = p
		}
	}

	// Observability configuration
	if name := os.Getenv("GRANTDESK_SERVICE_NAME"); name != "" {
		config.Observability.ServiceName = name
	}

	if tracing := os.Getenv("GRANTDESK_TRACING_ENABLED"); tracing != "" {
		config.Observability.Tracing.Enabled = strings.ToLower(tracing) == "true"
	}

	if exporter := os.Getenv("GRANTDESK_TRACING_EXPORTER"); exporter != "" {
		config.Observability.Tracing.Exporter = exporter
	}

	if endpoint := os.Getenv("GRANTDESK_OTLP_ENDPOINT"); endpoint != "" {
		config.Observability.Tracing.OTLPEndpoint = endpoint
	}
}

// SaveExample saves an example configuration file
func SaveExample(filePath string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	config := models.NewDefaultConfig()

	// Example values an operator would change
	config.Security.BootstrapKey = "grd_your-bootstrap-key-here"
	config.Security.EnableAuth = true
	config.Cache.Type = "redis"
	config.Cache.Redis.Addr = "localhost:6379"

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
