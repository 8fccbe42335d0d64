package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hiredeck/hiredeck/pkg/observability"
	"github.com/hiredeck/hiredeck/pkg/storage/postgres"
	"github.com/hiredeck/hiredeck/pkg/storage/s3"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Postgres      postgres.ConnectionConfig
	Redis         RedisConfig
	S3            s3.Config
	OIDC          OIDCConfig
	Billing       BillingConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// RedisConfig holds Redis connection settings for rate limiting.
type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

// OIDCConfig holds identity provider settings.
type OIDCConfig struct {
	IssuerURL string
	ClientID  string
}

// BillingConfig holds quota settings.
type BillingConfig struct {
	// LimitOverridesPath points at the per-org active-job override YAML.
	// Empty disables overrides.
	LimitOverridesPath string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("HIREDECK_HOST", "0.0.0.0"),
			Port:            getEnv("HIREDECK_PORT", "8080"),
			ReadTimeout:     getEnvDuration("HIREDECK_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("HIREDECK_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("HIREDECK_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("HIREDECK_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("HIREDECK_HEALTH_PORT", "9090"),
		},
		Postgres: postgres.ConnectionConfig{
			URL:         getEnv("HIREDECK_POSTGRES_URL", ""),
			MaxConns:    getEnvInt("HIREDECK_POSTGRES_MAX_CONNS", 25),
			MinConns:    getEnvInt("HIREDECK_POSTGRES_MIN_CONNS", 5),
			Timeout:     getEnvDuration("HIREDECK_POSTGRES_TIMEOUT", 10*time.Second),
			MaxLifetime: getEnvDuration("HIREDECK_POSTGRES_MAX_LIFETIME", 30*time.Minute),
			MaxIdleTime: getEnvDuration("HIREDECK_POSTGRES_MAX_IDLE_TIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:      getEnv("HIREDECK_REDIS_URL", ""),
			Password: getEnv("HIREDECK_REDIS_PASSWORD", ""),
			DB:       getEnvInt("HIREDECK_REDIS_DB", 0),
		},
		S3: s3.Config{
			Bucket:       getEnv("HIREDECK_S3_BUCKET", ""),
			Region:       getEnv("HIREDECK_S3_REGION", "us-east-1"),
			Endpoint:     getEnv("HIREDECK_S3_ENDPOINT", ""),
			AccessKey:    getEnv("HIREDECK_S3_ACCESS_KEY", ""),
			SecretKey:    getEnv("HIREDECK_S3_SECRET_KEY", ""),
			UsePathStyle: getEnvBool("HIREDECK_S3_USE_PATH_STYLE", false),
			PublicURL:    getEnv("HIREDECK_S3_PUBLIC_URL", ""),
		},
		OIDC: OIDCConfig{
			IssuerURL: getEnv("HIREDECK_OIDC_ISSUER_URL", ""),
			ClientID:  getEnv("HIREDECK_OIDC_CLIENT_ID", ""),
		},
		Billing: BillingConfig{
			LimitOverridesPath: getEnv("HIREDECK_LIMIT_OVERRIDES_PATH", ""),
		},
		Observability: ObservabilityConfig{
			LogLevel:           parseLogLevel(getEnv("HIREDECK_LOG_LEVEL", "info")),
			MetricsEnabled:     getEnvBool("HIREDECK_METRICS_ENABLED", true),
			OTelEnabled:        getEnvBool("HIREDECK_OTEL_ENABLED", false),
			OTelEndpoint:       getEnv("HIREDECK_OTEL_ENDPOINT", "localhost:4317"),
			OTelServiceName:    getEnv("HIREDECK_OTEL_SERVICE_NAME", "hiredeck"),
			OTelServiceVersion: getEnv("HIREDECK_OTEL_SERVICE_VERSION", "1.0.0"),
			OTelInsecure:       getEnvBool("HIREDECK_OTEL_INSECURE", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Postgres.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.OIDC.IssuerURL == "" {
		return fmt.Errorf("OIDC issuer URL is required")
	}
	if c.OIDC.ClientID == "" {
		return fmt.Errorf("OIDC client ID is required")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
