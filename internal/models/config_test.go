package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig_IsValid(t *testing.T) {
	config := NewDefaultConfig()
	require.NoError(t, config.Validate())

	assert.False(t, config.IsProduction())
	assert.True(t, config.IncludeErrorDetails())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr []string
	}{
		{
			name:   "production hides details",
			mutate: func(c *Config) { c.Environment = EnvProduction },
		},
		{
			name:    "unknown environment",
			mutate:  func(c *Config) { c.Environment = "qa" },
			wantErr: []string{"environment: must be one of"},
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: []string{"server.port: must be at least 1"},
		},
		{
			name:    "postgres without dsn",
			mutate:  func(c *Config) { c.Storage.Type = StorageTypePostgres },
			wantErr: []string{"storage.database.dsn: is required for postgres storage"},
		},
		{
			name: "sqlite with dsn",
			mutate: func(c *Config) {
				c.Storage.Type = StorageTypeSQLite
				c.Storage.Database.DSN = "catalog.db"
			},
		},
		{
			name:    "unsupported storage",
			mutate:  func(c *Config) { c.Storage.Type = "json" },
			wantErr: []string{"storage.type: must be one of [memory postgres sqlite]"},
		},
		{
			name: "redis without addr",
			mutate: func(c *Config) {
				c.KV.Type = KVTypeRedis
				c.KV.Redis.Addr = ""
			},
			wantErr: []string{"kv.redis.addr: is required when kv type is redis"},
		},
		{
			name:    "zero op timeout",
			mutate:  func(c *Config) { c.KV.OpTimeout = 0 },
			wantErr: []string{"kv.op_timeout: must be greater than 0"},
		},
		{
			name: "non-positive policy",
			mutate: func(c *Config) {
				c.RateLimit.MaxRequests = 0
				c.RateLimit.WindowSeconds = -1
			},
			wantErr: []string{"rate_limit.max_requests", "rate_limit.window_seconds"},
		},
		{
			name:    "relative skip path",
			mutate:  func(c *Config) { c.RateLimit.SkipPaths = []string{"health"} },
			wantErr: []string{`must start with "/"`},
		},
		{
			name:    "file logging without path",
			mutate:  func(c *Config) { c.Logging.Output = "file" },
			wantErr: []string{"logging.file_path: is required"},
		},
		{
			name: "metrics disabled needs no port",
			mutate: func(c *Config) {
				c.Metrics = MetricsConfig{Enabled: false}
			},
		},
		{
			name:    "metrics enabled without path",
			mutate:  func(c *Config) { c.Metrics.Path = "" },
			wantErr: []string{"metrics.path: is required"},
		},
		{
			name: "otlp without endpoint",
			mutate: func(c *Config) {
				c.Observability.Tracing.Enabled = true
				c.Observability.Tracing.Exporter = "otlp"
			},
			wantErr: []string{"observability.tracing.otlp_endpoint"},
		},
		{
			name:    "sample rate above one",
			mutate:  func(c *Config) { c.Observability.Tracing.SampleRate = 1.5 },
			wantErr: []string{"observability.tracing.sample_rate: must be at most 1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := NewDefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestConfig_ValidateReportsAllErrors(t *testing.T) {
	config := NewDefaultConfig()
	config.Server.Port = -1
	config.Logging.Level = "trace"
	config.KV.Type = "memcached"

	err := config.Validate()
	require.Error(t, err)
	assert.Len(t, strings.Split(err.Error(), "\n"), 3)
}

func TestNewDefaultConfig_Values(t *testing.T) {
	config := NewDefaultConfig()
	assert.Equal(t, 25*time.Millisecond, config.KV.OpTimeout)
	assert.Equal(t, "rl", config.RateLimit.KeyPrefix)
	assert.Equal(t, "storefront", config.Observability.ServiceName)
	assert.Equal(t, 9090, config.Metrics.Port)
}
