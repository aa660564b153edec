package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/taskhive/taskhive/pkg/observability"
	"github.com/taskhive/taskhive/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Storage configuration
	Storage storage.Config

	// Auth configuration
	Auth AuthConfig

	// SSO configuration
	SSO SSOConfig

	// Observability configuration
	Observability ObservabilityConfig

	// Maintenance configuration (janitor binary)
	Maintenance MaintenanceConfig
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

// AuthConfig holds authentication settings
type AuthConfig struct {
	// TokenTTL bounds bearer token lifetime. Zero means no expiry.
	TokenTTL time.Duration
	// PrincipalCacheSize is the LRU capacity for token lookups.
	PrincipalCacheSize int
	// PrincipalCacheTTL is how long a token lookup may be reused.
	// Zero disables the cache.
	PrincipalCacheTTL time.Duration
}

// SSOConfig holds OIDC single sign-on settings
type SSOConfig struct {
	Enabled      bool
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// MaintenanceConfig holds janitor settings
type MaintenanceConfig struct {
	// Schedule is a cron expression for maintenance runs.
	Schedule string
	// InvitationTTL is how long a pending invitation may sit before it
	// is expired.
	InvitationTTL time.Duration
	// AuditRetention is how long audit entries are kept.
	AuditRetention time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("TASKHIVE_HOST", "0.0.0.0"),
			Port:            getEnv("TASKHIVE_PORT", "8080"),
			ReadTimeout:     getEnvDuration("TASKHIVE_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("TASKHIVE_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("TASKHIVE_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("TASKHIVE_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("TASKHIVE_HEALTH_PORT", "9090"),
		},
		Storage: storage.Config{
			Driver:       getEnv("TASKHIVE_DB_DRIVER", "postgres"),
			PostgresURL:  getEnv("TASKHIVE_POSTGRES_URL", ""),
			SQLitePath:   getEnv("TASKHIVE_SQLITE_PATH", ""),
			MaxOpenConns: getEnvInt("TASKHIVE_DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("TASKHIVE_DB_MAX_IDLE_CONNS", 5),
			ConnLifetime: getEnvDuration("TASKHIVE_DB_CONN_LIFETIME", 30*time.Minute),
			RedisURL:     getEnv("TASKHIVE_REDIS_URL", ""),
			MigrateOnBoot: getEnvBool("TASKHIVE_MIGRATE_ON_BOOT", true),
		},
		Auth: AuthConfig{
			TokenTTL:           getEnvDuration("TASKHIVE_TOKEN_TTL", 30*24*time.Hour),
			PrincipalCacheSize: getEnvInt("TASKHIVE_PRINCIPAL_CACHE_SIZE", 1024),
			PrincipalCacheTTL:  getEnvDuration("TASKHIVE_PRINCIPAL_CACHE_TTL", 30*time.Second),
		},
		SSO: SSOConfig{
			Enabled:      getEnvBool("TASKHIVE_SSO_ENABLED", false),
			IssuerURL:    getEnv("TASKHIVE_SSO_ISSUER_URL", ""),
			ClientID:     getEnv("TASKHIVE_SSO_CLIENT_ID", ""),
			ClientSecret: getEnv("TASKHIVE_SSO_CLIENT_SECRET", ""),
			RedirectURL:  getEnv("TASKHIVE_SSO_REDIRECT_URL", ""),
		},
		Observability: ObservabilityConfig{
			LogLevel:           observability.ParseLogLevel(getEnv("TASKHIVE_LOG_LEVEL", "info")),
			MetricsEnabled:     getEnvBool("TASKHIVE_METRICS_ENABLED", true),
			OTelEnabled:        getEnvBool("TASKHIVE_OTEL_ENABLED", false),
			OTelEndpoint:       getEnv("TASKHIVE_OTEL_ENDPOINT", "localhost:4317"),
			OTelServiceName:    getEnv("TASKHIVE_OTEL_SERVICE_NAME", "taskhive"),
			OTelServiceVersion: getEnv("TASKHIVE_OTEL_SERVICE_VERSION", "dev"),
			OTelInsecure:       getEnvBool("TASKHIVE_OTEL_INSECURE", true),
		},
		Maintenance: MaintenanceConfig{
			Schedule:       getEnv("TASKHIVE_MAINTENANCE_SCHEDULE", "@hourly"),
			InvitationTTL:  getEnvDuration("TASKHIVE_INVITATION_TTL", 14*24*time.Hour),
			AuditRetention: getEnvDuration("TASKHIVE_AUDIT_RETENTION", 90*24*time.Hour),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for inconsistencies
func (c *Config) Validate() error {
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must differ")
	}
	if c.SSO.Enabled {
		if c.SSO.IssuerURL == "" || c.SSO.ClientID == "" || c.SSO.ClientSecret == "" {
			return fmt.Errorf("SSO enabled but issuer URL, client ID, or client secret missing")
		}
	}
	if c.Maintenance.InvitationTTL <= 0 {
		return fmt.Errorf("invitation TTL must be positive")
	}
	if c.Maintenance.AuditRetention <= 0 {
		return fmt.Errorf("audit retention must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		return strings.ToLower(val) == "true"
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}
