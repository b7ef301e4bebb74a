// Package models - Service configuration and operational settings.
// This file defines the configuration tree for every storefront component.
//
// Configuration Philosophy:
// - Hierarchical configuration grouped by component (server, storage, kv, rate limit)
// - Defaults that run locally with no external services
// - Declarative validation through struct tags, checked once at startup
// - Every invalid field is reported, not only the first one
package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Storage type constants
const (
	StorageTypeMemory   = "memory"
	StorageTypePostgres = "postgres"
	StorageTypeSQLite   = "sqlite"
)

// Key-value store type constants
const (
	KVTypeMemory = "memory"
	KVTypeRedis  = "redis"
)

// Environment names
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Config is the root configuration structure containing all service settings.
//
// Configuration Structure:
// - Server: HTTP listener settings
// - Storage: product repository backend
// - KV: shared counter store used by the rate limiter
// - RateLimit: default limiter policy and global switch
// - Logging, Analytics, Metrics, Observability: ambient instrumentation
type Config struct {
	Environment   string              `yaml:"environment" json:"environment" validate:"oneof=development staging production test"`
	Server        ServerConfig        `yaml:"server" json:"server"`
	Storage       StorageConfig       `yaml:"storage" json:"storage"`
	KV            KVConfig            `yaml:"kv" json:"kv"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit" json:"rate_limit"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
	Analytics     AnalyticsConfig     `yaml:"analytics" json:"analytics"`
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" json:"port" validate:"min=1,max=65535"`
	Host            string        `yaml:"host" json:"host" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout" validate:"gte=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" json:"idle_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" validate:"gt=0"`
}

type StorageConfig struct {
	Type     string         `yaml:"type" json:"type" validate:"oneof=memory postgres sqlite"`
	Database DatabaseConfig `yaml:"database" json:"database"`
}

type DatabaseConfig struct {
	DSN            string        `yaml:"dsn" json:"dsn"`
	MaxConns       int32         `yaml:"max_conns" json:"max_conns" validate:"gte=0"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout" validate:"gte=0"`
}

type KVConfig struct {
	Type      string        `yaml:"type" json:"type" validate:"oneof=memory redis"`
	OpTimeout time.Duration `yaml:"op_timeout" json:"op_timeout" validate:"gt=0"`
	Redis     RedisConfig   `yaml:"redis" json:"redis"`
	Memory    MemoryConfig  `yaml:"memory" json:"memory"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db" validate:"min=0,max=15"`
	PoolSize int    `yaml:"pool_size" json:"pool_size" validate:"gte=0"`
}

type MemoryConfig struct {
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval" validate:"gt=0"`
}

type RateLimitConfig struct {
	Enabled       bool     `yaml:"enabled" json:"enabled"`
	MaxRequests   int      `yaml:"max_requests" json:"max_requests" validate:"gt=0"`
	WindowSeconds int      `yaml:"window_seconds" json:"window_seconds" validate:"gt=0"`
	KeyPrefix     string   `yaml:"key_prefix" json:"key_prefix" validate:"required"`
	SkipPaths     []string `yaml:"skip_paths" json:"skip_paths" validate:"dive,startswith=/"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" json:"level" validate:"oneof=debug info warn error"`
	Format   string `yaml:"format" json:"format" validate:"oneof=json text"`
	Output   string `yaml:"output" json:"output" validate:"oneof=stdout stderr file"`
	FilePath string `yaml:"file_path" json:"file_path" validate:"required_if=Output file"`
}

type AnalyticsConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path" validate:"required_if=Enabled true"`
	Port    int    `yaml:"port" json:"port" validate:"required_if=Enabled true,max=65535"`
}

type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name" json:"service_name" validate:"required"`
	Tracing     TracingConfig `yaml:"tracing" json:"tracing"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter" json:"exporter" validate:"oneof=stdout otlp"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate" json:"sample_rate" validate:"gte=0,lte=1"`
}

// NewDefaultConfig creates a configuration that runs with no external
// services: in-memory repository, in-memory counter store, rate limiting on.
//
// Default Values Rationale:
// - Port 8080: Standard non-privileged HTTP port
// - 100 requests per 60 seconds: generous for browsing, tight for scrapers
// - 25ms store timeout: a slow counter store must not slow every request
// - /health paths skipped: probes must never be throttled
func NewDefaultConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Server: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			Type: StorageTypeMemory,
			Database: DatabaseConfig{
				MaxConns:       10,
				ConnectTimeout: 5 * time.Second,
			},
		},
		KV: KVConfig{
			Type:      KVTypeMemory,
			OpTimeout: 25 * time.Millisecond,
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
			Memory: MemoryConfig{
				CleanupInterval: time.Minute,
			},
		},
		RateLimit: RateLimitConfig{
			Enabled:       true,
			MaxRequests:   100,
			WindowSeconds: 60,
			KeyPrefix:     "rl",
			SkipPaths:     []string{"/health", "/api/v1/health"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Analytics: AnalyticsConfig{
			Enabled: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9090,
		},
		Observability: ObservabilityConfig{
			ServiceName: "storefront",
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   "stdout",
				SampleRate: 1.0,
			},
		},
	}
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// IncludeErrorDetails reports whether error responses may carry details and
// stack traces.
func (c *Config) IncludeErrorDetails() bool {
	return !c.IsProduction()
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]; name != "" && name != "-" {
			return name
		}
		if name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]; name != "" && name != "-" {
			return name
		}
		return fld.Name
	})

	v.RegisterStructValidation(func(sl validator.StructLevel) {
		sc := sl.Current().Interface().(StorageConfig)
		if sc.Type != StorageTypeMemory && sc.Database.DSN == "" {
			sl.ReportError(sc.Database.DSN, "database.dsn", "DSN", "required_for_database", sc.Type)
		}
	}, StorageConfig{})

	v.RegisterStructValidation(func(sl validator.StructLevel) {
		kc := sl.Current().Interface().(KVConfig)
		if kc.Type == KVTypeRedis && kc.Redis.Addr == "" {
			sl.ReportError(kc.Redis.Addr, "redis.addr", "Addr", "required_for_redis", "")
		}
	}, KVConfig{})

	v.RegisterStructValidation(func(sl validator.StructLevel) {
		tc := sl.Current().Interface().(TracingConfig)
		if tc.Enabled && tc.Exporter == "otlp" && tc.OTLPEndpoint == "" {
			sl.ReportError(tc.OTLPEndpoint, "otlp_endpoint", "OTLPEndpoint", "required_for_otlp", "")
		}
	}, TracingConfig{})

	return v
}

// Validate checks every field and returns one joined error listing all
// violations, each prefixed with its YAML path.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, fmt.Errorf("%s: %s", fieldPath(fe), describe(fe)))
	}
	return errors.Join(errs...)
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "required_for_database":
		return fmt.Sprintf("is required for %s storage", fe.Param())
	case "required_for_redis":
		return "is required when kv type is redis"
	case "required_for_otlp":
		return "is required when the otlp exporter is enabled"
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %q", fe.Param(), fmt.Sprint(fe.Value()))
	case "min", "gte":
		return fmt.Sprintf("must be at least %s, got %v", fe.Param(), fe.Value())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s, got %v", fe.Param(), fe.Value())
	case "gt":
		return fmt.Sprintf("must be greater than %s, got %v", fe.Param(), fe.Value())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "uppercase":
		return "must be upper case"
	case "startswith":
		return fmt.Sprintf("must start with %q", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}
