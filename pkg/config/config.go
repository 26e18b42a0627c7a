package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/accounts/pkg/auth"
	"github.com/platinummonkey/accounts/pkg/observability"
	"github.com/platinummonkey/accounts/pkg/storage"
)

// ConfigFileEnv names an optional YAML file applied before the environment
const ConfigFileEnv = "ACCOUNTS_CONFIG_FILE"

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Auth          AuthConfig          `yaml:"auth"`
	Storage       storage.Config      `yaml:"storage"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Audit         AuditConfig         `yaml:"audit"`
	Bootstrap     BootstrapConfig     `yaml:"bootstrap"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`

	// PathPrefix mounts the API below a prefix such as /api/v1/users
	PathPrefix     string   `yaml:"path_prefix"`
	MaxBodyBytes   int64    `yaml:"max_body_bytes"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	// TrustProxy honours X-Forwarded-For when resolving client addresses
	TrustProxy bool `yaml:"trust_proxy"`
}

// AuthConfig holds credential settings
type AuthConfig struct {
	JWTSecret         string `yaml:"jwt_secret"`
	JWTExpiresIn      string `yaml:"jwt_expires_in"`
	BcryptCost        int    `yaml:"bcrypt_cost"`
	MinPasswordLength int    `yaml:"min_password_length"`

	// TokenTTL is JWTExpiresIn parsed by LoadConfig
	TokenTTL time.Duration `yaml:"-"`
}

// RateLimitConfig limits /login and /signup per client address
type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
	Burst    int           `yaml:"burst"`
}

// AuditConfig controls the audit trail sinks
type AuditConfig struct {
	Enabled bool `yaml:"enabled"`
	// Database also writes events to the audit_logs table when storage is SQL
	Database bool          `yaml:"database"`
	Timeout  time.Duration `yaml:"timeout"`
}

// BootstrapConfig describes an administrator created at startup when absent
type BootstrapConfig struct {
	AdminName     string `yaml:"admin_name"`
	AdminEmail    string `yaml:"admin_email"`
	AdminPassword string `yaml:"admin_password"`
}

// Enabled reports whether an admin should be bootstrapped
func (b BootstrapConfig) Enabled() bool {
	return b.AdminEmail != ""
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel string `yaml:"log_level"`

	MetricsEnabled bool `yaml:"metrics_enabled"`
	// DBStatsSchedule is a cron spec for sampling connection pool stats
	DBStatsSchedule string `yaml:"db_stats_schedule"`

	// OpenTelemetry
	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"`
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Level returns the parsed log level
func (o ObservabilityConfig) Level() observability.LogLevel {
	return parseLogLevel(o.LogLevel)
}

// Default returns the configuration used before any file or environment overrides
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			HealthPort:      "9090",
			MaxBodyBytes:    10 * 1024,
		},
		Auth: AuthConfig{
			JWTExpiresIn:      "90d",
			BcryptCost:        12,
			MinPasswordLength: 6,
		},
		Storage: storage.DefaultConfig(),
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Requests: 100,
			Window:   time.Hour,
		},
		Audit: AuditConfig{
			Enabled:  true,
			Database: true,
			Timeout:  5 * time.Second,
		},
		Bootstrap: BootstrapConfig{
			AdminName: "Administrator",
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			DBStatsSchedule:    "@every 15s",
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "accounts",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
			OTelSampleRatio:    1,
		},
	}
}

// LoadConfig loads defaults, then the optional YAML file named by
// ACCOUNTS_CONFIG_FILE, then environment variables, and validates the result.
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadFile overlays the YAML document at path onto c
func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = getEnv("ACCOUNTS_HOST", s.Host)
	s.Port = getEnv("ACCOUNTS_PORT", s.Port)
	s.ReadTimeout = getEnvDuration("ACCOUNTS_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("ACCOUNTS_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("ACCOUNTS_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("ACCOUNTS_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.HealthPort = getEnv("ACCOUNTS_HEALTH_PORT", s.HealthPort)
	s.PathPrefix = getEnv("ACCOUNTS_PATH_PREFIX", s.PathPrefix)
	s.MaxBodyBytes = getEnvInt64("ACCOUNTS_MAX_BODY_BYTES", s.MaxBodyBytes)
	s.AllowedOrigins = getEnvList("ACCOUNTS_ALLOWED_ORIGINS", s.AllowedOrigins)
	s.TrustProxy = getEnvBool("ACCOUNTS_TRUST_PROXY", s.TrustProxy)

	a := &c.Auth
	a.JWTSecret = getEnv("JWT_SECRET", a.JWTSecret)
	a.JWTExpiresIn = getEnv("JWT_EXPIRES_IN", a.JWTExpiresIn)
	a.BcryptCost = getEnvInt("ACCOUNTS_BCRYPT_COST", a.BcryptCost)
	a.MinPasswordLength = getEnvInt("ACCOUNTS_MIN_PASSWORD_LENGTH", a.MinPasswordLength)

	st := &c.Storage
	st.Type = getEnv("ACCOUNTS_STORAGE_TYPE", st.Type)
	st.PostgresURL = getEnv("ACCOUNTS_POSTGRES_URL", st.PostgresURL)
	st.SQLitePath = getEnv("ACCOUNTS_SQLITE_PATH", st.SQLitePath)
	st.MaxOpenConns = getEnvInt("ACCOUNTS_DB_MAX_OPEN_CONNS", st.MaxOpenConns)
	st.MaxIdleConns = getEnvInt("ACCOUNTS_DB_MAX_IDLE_CONNS", st.MaxIdleConns)
	st.ConnMaxLifetime = getEnvDuration("ACCOUNTS_DB_CONN_MAX_LIFETIME", st.ConnMaxLifetime)
	st.QueryTimeout = getEnvDuration("ACCOUNTS_DB_QUERY_TIMEOUT", st.QueryTimeout)
	st.RedisURL = getEnv("ACCOUNTS_REDIS_URL", st.RedisURL)
	st.RedisPassword = getEnv("ACCOUNTS_REDIS_PASSWORD", st.RedisPassword)
	st.RedisDB = getEnvInt("ACCOUNTS_REDIS_DB", st.RedisDB)
	st.RedisMaxRetries = getEnvInt("ACCOUNTS_REDIS_MAX_RETRIES", st.RedisMaxRetries)
	st.RedisPoolSize = getEnvInt("ACCOUNTS_REDIS_POOL_SIZE", st.RedisPoolSize)
	st.CacheEnabled = getEnvBool("ACCOUNTS_CACHE_ENABLED", st.CacheEnabled)
	st.CacheTTL = getEnvDuration("ACCOUNTS_CACHE_TTL", st.CacheTTL)
	st.L1CacheSize = getEnvInt("ACCOUNTS_L1_CACHE_SIZE", st.L1CacheSize)

	rl := &c.RateLimit
	rl.Enabled = getEnvBool("ACCOUNTS_RATE_LIMIT_ENABLED", rl.Enabled)
	rl.Requests = getEnvInt("ACCOUNTS_RATE_LIMIT_REQUESTS", rl.Requests)
	rl.Window = getEnvDuration("ACCOUNTS_RATE_LIMIT_WINDOW", rl.Window)
	rl.Burst = getEnvInt("ACCOUNTS_RATE_LIMIT_BURST", rl.Burst)

	au := &c.Audit
	au.Enabled = getEnvBool("ACCOUNTS_AUDIT_ENABLED", au.Enabled)
	au.Database = getEnvBool("ACCOUNTS_AUDIT_DATABASE", au.Database)
	au.Timeout = getEnvDuration("ACCOUNTS_AUDIT_TIMEOUT", au.Timeout)

	b := &c.Bootstrap
	b.AdminName = getEnv("ACCOUNTS_ADMIN_NAME", b.AdminName)
	b.AdminEmail = getEnv("ACCOUNTS_ADMIN_EMAIL", b.AdminEmail)
	b.AdminPassword = getEnv("ACCOUNTS_ADMIN_PASSWORD", b.AdminPassword)

	o := &c.Observability
	o.LogLevel = getEnv("ACCOUNTS_LOG_LEVEL", o.LogLevel)
	o.MetricsEnabled = getEnvBool("ACCOUNTS_METRICS_ENABLED", o.MetricsEnabled)
	o.DBStatsSchedule = getEnv("ACCOUNTS_DB_STATS_SCHEDULE", o.DBStatsSchedule)
	o.OTelEnabled = getEnvBool("ACCOUNTS_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("ACCOUNTS_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("ACCOUNTS_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("ACCOUNTS_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("ACCOUNTS_OTEL_INSECURE", o.OTelInsecure)
	o.OTelSampleRatio = getEnvFloat("ACCOUNTS_OTEL_SAMPLE_RATIO", o.OTelSampleRatio)
}

// Validate checks if the configuration is valid. It also resolves
// Auth.TokenTTL from Auth.JWTExpiresIn.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server port is required")
	}
	if c.Server.HealthPort == "" {
		return errors.New("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return errors.New("server port and health port must be different")
	}
	if c.Server.PathPrefix != "" && (!strings.HasPrefix(c.Server.PathPrefix, "/") || strings.HasSuffix(c.Server.PathPrefix, "/")) {
		return fmt.Errorf("path prefix %q must start with / and not end with /", c.Server.PathPrefix)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return errors.New("max body bytes must be positive")
	}

	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if len(c.Auth.JWTSecret) < auth.MinSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", auth.MinSecretLength)
	}
	ttl, err := auth.ParseLifetime(c.Auth.JWTExpiresIn)
	if err != nil {
		return fmt.Errorf("invalid JWT_EXPIRES_IN: %w", err)
	}
	c.Auth.TokenTTL = ttl
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.Auth.MinPasswordLength < 1 || c.Auth.MinPasswordLength > 72 {
		return errors.New("minimum password length must be between 1 and 72")
	}

	switch c.Storage.Type {
	case "memory":
	case "postgres":
		if c.Storage.PostgresURL == "" {
			return errors.New("postgres URL is required for postgres storage")
		}
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return errors.New("sqlite path is required for sqlite storage")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be memory, postgres, or sqlite)", c.Storage.Type)
	}
	if c.Storage.CacheEnabled && c.Storage.CacheTTL <= 0 {
		return errors.New("cache TTL must be positive when the cache is enabled")
	}

	if c.RateLimit.Enabled && (c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0) {
		return errors.New("rate limit requests and window must be positive when enabled")
	}

	if c.Bootstrap.Enabled() && c.Bootstrap.AdminPassword == "" {
		return errors.New("ACCOUNTS_ADMIN_PASSWORD is required when ACCOUNTS_ADMIN_EMAIL is set")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return errors.New("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return errors.New("OpenTelemetry service name is required when OTel is enabled")
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

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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

// getEnvList returns a comma separated environment variable or a default
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
