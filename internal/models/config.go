// Package models - Service configuration and operational settings.
// This file defines the configuration structures for all service components.
//
// Configuration Philosophy:
// - Hierarchical configuration with logical grouping (server, admission, etc.)
// - Environment-friendly defaults that work out of the box
// - Comprehensive validation to catch misconfigurations early
// - The admission defaults mirror the production route table: heavy
//   computation routes get tight limits, everything else the default
package models

import (
	"errors"
	"fmt"
	"time"
)

// Admission backend constants. BackendMemory disables the shared store
// entirely; no fallback logic runs and limits are per-process only.
const (
	BackendRedis  = "redis"
	BackendSQL    = "sql"
	BackendMemory = "memory"
)

// Config is the root configuration structure containing all service settings.
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`               // HTTP server configuration
	Admission     AdmissionConfig     `yaml:"admission" json:"admission"`         // Rate limiting and exemptions
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`             // Logging and output configuration
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`             // Prometheus metrics
	Observability ObservabilityConfig `yaml:"observability" json:"observability"` // Tracing and service identity
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

// AdmissionConfig controls the rate-limiting gate in front of the API.
//
// Route overrides share the default window; only the request budget
// differs per route. Exempt paths match exactly, or as a prefix when the
// request path continues with "/".
type AdmissionConfig struct {
	Enabled           bool           `yaml:"enabled" json:"enabled"`
	RequestsPerWindow int            `yaml:"requests_per_window" json:"requests_per_window"`
	Window            time.Duration  `yaml:"window" json:"window"`
	Routes            map[string]int `yaml:"routes" json:"routes"`
	ExemptPaths       []string       `yaml:"exempt_paths" json:"exempt_paths"`
	Backend           string         `yaml:"backend" json:"backend"`
	StoreTimeout      time.Duration  `yaml:"store_timeout" json:"store_timeout"`
	SweepInterval     time.Duration  `yaml:"sweep_interval" json:"sweep_interval"`
	Redis             RedisConfig    `yaml:"redis" json:"redis"`
	Database          DatabaseConfig `yaml:"database" json:"database"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	PoolSize int    `yaml:"pool_size" json:"pool_size"`
}

type DatabaseConfig struct {
	Driver          string        `yaml:"driver" json:"driver"`
	DSN             string        `yaml:"dsn" json:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
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
	Exporter     string  `yaml:"exporter" json:"exporter"` // "stdout" or "otlp"
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate" json:"sample_rate"`
}

// NewDefaultConfig creates a configuration with production-ready defaults.
//
// Default Values Rationale:
// - Port 8080: standard non-privileged HTTP port
// - 100 requests per 60s default: generous enough for dashboards,
//   tight enough to protect the analysis pipeline
// - Route overrides: heavy computation (analysis, backtest, quantum
//   optimization, agent debate) and trade execution get small budgets
// - Memory backend: works without external dependencies; switch to
//   redis for multi-instance deployments
// - 500ms store timeout: an admission decision must never cost more
//   than a fraction of the request's own budget
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
				Enabled:        false,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"*"},
				MaxAge:         86400,
			},
		},
		Admission: AdmissionConfig{
			Enabled:           true,
			RequestsPerWindow: 100,
			Window:            time.Minute,
			Routes: map[string]int{
				"/api/v1/analyze":          10, // heavy computation
				"/api/v1/trade":            5,  // critical operations
				"/api/v1/backtest":         5,  // resource intensive
				"/api/v1/quantum/optimize": 5,  // quantum optimization
				"/api/v1/agent/debate":     10, // multi-agent debate
			},
			ExemptPaths: []string{
				"/health",
				"/health/ready",
				"/health/live",
				"/metrics",
				"/docs",
				"/redoc",
				"/openapi.json",
				"/static/",
			},
			Backend:       BackendMemory,
			StoreTimeout:  500 * time.Millisecond,
			SweepInterval: 5 * time.Minute,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				DB:       0,
				PoolSize: 10,
			},
			Database: DatabaseConfig{
				Driver:          "sqlite",
				DSN:             "./data/admission.db",
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
				ConnMaxIdleTime: 5 * time.Minute,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9090,
		},
		Observability: ObservabilityConfig{
			ServiceName: "tradegate",
			Tracing: TracingConfig{
				Enabled:      false,
				Exporter:     "stdout",
				OTLPEndpoint: "localhost:4317",
				SampleRate:   1.0,
			},
		},
	}
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	if err := c.Admission.Validate(); err != nil {
		return fmt.Errorf("invalid admission config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}

	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("invalid observability config: %w", err)
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

	if sc.ReadTimeout < 0 {
		return errors.New("read timeout cannot be negative")
	}

	if sc.WriteTimeout < 0 {
		return errors.New("write timeout cannot be negative")
	}

	if sc.IdleTimeout < 0 {
		return errors.New("idle timeout cannot be negative")
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

func (ac *AdmissionConfig) Validate() error {
	if !ac.Enabled {
		return nil
	}

	if ac.RequestsPerWindow <= 0 {
		return errors.New("requests per window must be positive")
	}

	if ac.Window <= 0 {
		return errors.New("window must be positive")
	}

	for pattern, limit := range ac.Routes {
		if pattern == "" {
			return errors.New("route pattern cannot be empty")
		}
		if limit <= 0 {
			return fmt.Errorf("route %s: limit must be positive", pattern)
		}
	}

	switch ac.Backend {
	case BackendRedis:
		if ac.Redis.Addr == "" {
			return errors.New("redis address is required for the redis backend")
		}
	case BackendSQL:
		if ac.Database.DSN == "" {
			return errors.New("database DSN is required for the sql backend")
		}
		if ac.Database.Driver != "sqlite" && ac.Database.Driver != "postgres" {
			return fmt.Errorf("unsupported database driver: %s", ac.Database.Driver)
		}
	case BackendMemory:
		// No external dependencies to validate.
	default:
		return fmt.Errorf("invalid admission backend: %s", ac.Backend)
	}

	if ac.StoreTimeout < 0 {
		return errors.New("store timeout cannot be negative")
	}

	if ac.SweepInterval <= 0 {
		return errors.New("sweep interval must be positive")
	}

	return nil
}

func (lc *LoggingConfig) Validate() error {
	validLevels := []string{"debug", "info", "warn", "error"}
	found := false
	for _, vl := range validLevels {
		if lc.Level == vl {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("invalid log level: %s", lc.Level)
	}

	validFormats := []string{"json", "text"}
	found = false
	for _, vf := range validFormats {
		if lc.Format == vf {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("invalid log format: %s", lc.Format)
	}

	validOutputs := []string{"stdout", "stderr", "file"}
	found = false
	for _, vo := range validOutputs {
		if lc.Output == vo {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("invalid log output: %s", lc.Output)
	}

	if lc.Output == "file" && lc.FilePath == "" {
		return errors.New("file path is required when output is file")
	}

	return nil
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

func (oc *ObservabilityConfig) Validate() error {
	if oc.ServiceName == "" {
		return errors.New("service name cannot be empty")
	}

	if oc.Tracing.Enabled {
		if oc.Tracing.Exporter != "stdout" && oc.Tracing.Exporter != "otlp" {
			return fmt.Errorf("unsupported trace exporter: %s", oc.Tracing.Exporter)
		}
		if oc.Tracing.Exporter == "otlp" && oc.Tracing.OTLPEndpoint == "" {
			return errors.New("OTLP endpoint is required for the otlp exporter")
		}
	}

	return nil
}
