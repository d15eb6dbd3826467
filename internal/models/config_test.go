package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"grantdesk/internal/models"
)

func TestNewDefaultConfigIsValid(t *testing.T) {
	config := models.NewDefaultConfig()
	assert.NoError(t, config.Validate())

	// Request admission is on by default
	assert.True(t, config.Security.RateLimit.Enabled)
	assert.True(t, config.Security.RateLimit.FailOpen)
	assert.True(t, config.Security.Idempotency.Enabled)
}

func TestServerConfigValidate(t *testing.T) {
	valid := func() models.ServerConfig {
		return models.ServerConfig{Port: 8080, Host: "0.0.0.0"}
	}

	sc := valid()
	assert.NoError(t, sc.Validate())

	sc = valid()
	sc.Port = 0
	assert.ErrorContains(t, sc.Validate(), "port must be between 1 and 65535")

	sc = valid()
	sc.Port = 70000
	assert.ErrorContains(t, sc.Validate(), "port must be between 1 and 65535")

	sc = valid()
	sc.Host = ""
	assert.ErrorContains(t, sc.Validate(), "host cannot be empty")

	sc = valid()
	sc.ReadTimeout = -time.Second
	assert.ErrorContains(t, sc.Validate(), "timeouts cannot be negative")

	sc = valid()
	sc.TLSEnabled = true
	assert.ErrorContains(t, sc.Validate(), "TLS cert file is required")

	sc.TLSCertFile = "/cert.pem"
	assert.ErrorContains(t, sc.Validate(), "TLS key file is required")

	sc.TLSKeyFile = "/key.pem"
	assert.NoError(t, sc.Validate())
}

func TestStorageConfigValidate(t *testing.T) {
	sc := models.StorageConfig{Type: models.StorageTypeMemory}
	assert.NoError(t, sc.Validate())

	sc = models.StorageConfig{Type: models.StorageTypeSQLite}
	assert.ErrorContains(t, sc.Validate(), "DSN is required")

	sc = models.StorageConfig{
		Type:     models.StorageTypePostgres,
		Database: models.DatabaseConfig{DSN: "postgres://localhost/grantdesk"},
	}
	assert.NoError(t, sc.Validate())

	sc = models.StorageConfig{Type: "cassandra"}
	assert.ErrorContains(t, sc.Validate(), "invalid storage type")
}

func TestSecurityConfigValidate(t *testing.T) {
	valid := func() models.SecurityConfig {
		return models.SecurityConfig{
			APIKeyHeader: "X-API-Key",
			Idempotency: models.IdempotencyConfig{
				Enabled:     true,
				LockTTL:     30 * time.Second,
				ResponseTTL: 24 * time.Hour,
			},
		}
	}

	sec := valid()
	assert.NoError(t, sec.Validate())

	sec = valid()
	sec.APIKeyHeader = ""
	assert.ErrorContains(t, sec.Validate(), "api key header cannot be empty")

	sec = valid()
	sec.Idempotency.LockTTL = 0
	assert.ErrorContains(t, sec.Validate(), "lock TTL must be positive")

	sec = valid()
	sec.Idempotency.Enabled = false
	sec.Idempotency.LockTTL = 0
	assert.NoError(t, sec.Validate(), "TTLs are only checked when idempotency is enabled")

	sec = valid()
	sec.RateLimit.Overrides = map[string]models.RatePolicy{
		"search": {Limit: 10, Window: time.Minute, Scope: "orbit"},
	}
	assert.ErrorContains(t, sec.Validate(), "invalid scope")
}

func TestRatePolicyValidate(t *testing.T) {
	valid := models.RatePolicy{Limit: 5, Window: time.Minute, Scope: "user"}
	assert.NoError(t, valid.Validate())

	for _, scope := range []string{"global", "ip", "user", "api-key"} {
		p := models.RatePolicy{Limit: 1, Window: time.Second, Scope: scope}
		assert.NoError(t, p.Validate(), "scope %q should be accepted", scope)
	}

	p := models.RatePolicy{Limit: 0, Window: time.Minute, Scope: "ip"}
	assert.ErrorContains(t, p.Validate(), "limit must be positive")

	p = models.RatePolicy{Limit: 5, Window: 0, Scope: "ip"}
	assert.ErrorContains(t, p.Validate(), "window must be positive")
}

func TestCacheConfigValidate(t *testing.T) {
	cc := models.CacheConfig{Type: "memory"}
	assert.NoError(t, cc.Validate())

	cc = models.CacheConfig{Type: "redis"}
	assert.ErrorContains(t, cc.Validate(), "Redis address is required")

	cc = models.CacheConfig{Type: "redis", Redis: models.RedisConfig{Addr: "localhost:6379"}}
	assert.NoError(t, cc.Validate())

	cc = models.CacheConfig{Type: "memcached"}
	assert.ErrorContains(t, cc.Validate(), "invalid cache type")
}

func TestMetricsConfigValidate(t *testing.T) {
	mc := models.MetricsConfig{Enabled: false}
	assert.NoError(t, mc.Validate(), "disabled metrics skip validation")

	mc = models.MetricsConfig{Enabled: true, Path: "/metrics", Port: 9090}
	assert.NoError(t, mc.Validate())

	mc = models.MetricsConfig{Enabled: true, Port: 9090}
	assert.ErrorContains(t, mc.Validate(), "path cannot be empty")

	mc = models.MetricsConfig{Enabled: true, Path: "/metrics", Port: 0}
	assert.ErrorContains(t, mc.Validate(), "port must be between")
}
