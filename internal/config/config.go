// Package config loads the gateway configuration from a YAML file and
// environment variables, in that order of precedence over the defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"tradegate/internal/models"
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
	if port := os.Getenv("TRADEGATE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if host := os.Getenv("TRADEGATE_HOST"); host != "" {
		config.Server.Host = host
	}

	if timeout := os.Getenv("TRADEGATE_READ_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Server.ReadTimeout = d
		}
	}

	if timeout := os.Getenv("TRADEGATE_WRITE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Server.WriteTimeout = d
		}
	}

	if timeout := os.Getenv("TRADEGATE_IDLE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Server.IdleTimeout = d
		}
	}

	if tls := os.Getenv("TRADEGATE_TLS_ENABLED"); tls != "" {
		config.Server.TLSEnabled = strings.ToLower(tls) == "true"
	}

	if certFile := os.Getenv("TRADEGATE_TLS_CERT_FILE"); certFile != "" {
		config.Server.TLSCertFile = certFile
	}

	if keyFile := os.Getenv("TRADEGATE_TLS_KEY_FILE"); keyFile != "" {
		config.Server.TLSKeyFile = keyFile
	}

	// Admission configuration
	if enabled := os.Getenv("TRADEGATE_ADMISSION_ENABLED"); enabled != "" {
		config.Admission.Enabled = strings.ToLower(enabled) == "true"
	}

	if limit := os.Getenv("TRADEGATE_ADMISSION_REQUESTS_PER_WINDOW"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			config.Admission.RequestsPerWindow = n
		}
	}

	if window := os.Getenv("TRADEGATE_ADMISSION_WINDOW"); window != "" {
		if d, err := time.ParseDuration(window); err == nil {
			config.Admission.Window = d
		}
	}

	if backend := os.Getenv("TRADEGATE_ADMISSION_BACKEND"); backend != "" {
		config.Admission.Backend = backend
	}

	if timeout := os.Getenv("TRADEGATE_ADMISSION_STORE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Admission.StoreTimeout = d
		}
	}

	if interval := os.Getenv("TRADEGATE_ADMISSION_SWEEP_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			config.Admission.SweepInterval = d
		}
	}

	// Redis configuration
	if addr := os.Getenv("TRADEGATE_REDIS_ADDR"); addr != "" {
		config.Admission.Redis.Addr = addr
	}

	if password := os.Getenv("TRADEGATE_REDIS_PASSWORD"); password != "" {
		config.Admission.Redis.Password = password
	}

	if db := os.Getenv("TRADEGATE_REDIS_DB"); db != "" {
		if dbNum, err := strconv.Atoi(db); err == nil {
			config.Admission.Redis.DB = dbNum
		}
	}

	if poolSize := os.Getenv("TRADEGATE_REDIS_POOL_SIZE"); poolSize != "" {
		if size, err := strconv.Atoi(poolSize); err == nil {
			config.Admission.Redis.PoolSize = size
		}
	}

	// Database configuration
	if driver := os.Getenv("TRADEGATE_DATABASE_DRIVER"); driver != "" {
		config.Admission.Database.Driver = driver
	}

	if dsn := os.Getenv("TRADEGATE_DATABASE_DSN"); dsn != "" {
		config.Admission.Database.DSN = dsn
	}

	if maxOpen := os.Getenv("TRADEGATE_DATABASE_MAX_OPEN_CONNS"); maxOpen != "" {
		if conns, err := strconv.Atoi(maxOpen); err == nil {
			config.Admission.Database.MaxOpenConns = conns
		}
	}

	if maxIdle := os.Getenv("TRADEGATE_DATABASE_MAX_IDLE_CONNS"); maxIdle != "" {
		if conns, err := strconv.Atoi(maxIdle); err == nil {
			config.Admission.Database.MaxIdleConns = conns
		}
	}

	// Logging configuration
	if level := os.Getenv("TRADEGATE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if format := os.Getenv("TRADEGATE_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}

	if output := os.Getenv("TRADEGATE_LOG_OUTPUT"); output != "" {
		config.Logging.Output = output
	}

	if filePath := os.Getenv("TRADEGATE_LOG_FILE_PATH"); filePath != "" {
		config.Logging.FilePath = filePath
	}

	// Metrics configuration
	if metrics := os.Getenv("TRADEGATE_METRICS_ENABLED"); metrics != "" {
		config.Metrics.Enabled = strings.ToLower(metrics) == "true"
	}

	if path := os.Getenv("TRADEGATE_METRICS_PATH"); path != "" {
		config.Metrics.Path = path
	}

	if port := os.Getenv("TRADEGATE_METRICS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Metrics.Port = p
		}
	}

	// Observability configuration
	if name := os.Getenv("TRADEGATE_SERVICE_NAME"); name != "" {
		config.Observability.ServiceName = name
	}

	if tracing := os.Getenv("TRADEGATE_TRACING_ENABLED"); tracing != "" {
		config.Observability.Tracing.Enabled = strings.ToLower(tracing) == "true"
	}

	if exporter := os.Getenv("TRADEGATE_TRACING_EXPORTER"); exporter != "" {
		config.Observability.Tracing.Exporter = exporter
	}

	if endpoint := os.Getenv("TRADEGATE_OTLP_ENDPOINT"); endpoint != "" {
		config.Observability.Tracing.OTLPEndpoint = endpoint
	}
}
