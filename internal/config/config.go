package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server       ServerConfig
	Auth         AuthConfig
	Logging      LoggingConfig
	Persistence  PersistenceConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Storage      StorageConfig
	Queue        QueueConfig
	Entitlements EntitlementsConfig
	AllowList    AllowListConfig
	Quota        QuotaConfig
	LLM          LLMConfig
	Prompts      PromptsConfig
	RateLimit    RateLimitConfig
	Metrics      MetricsConfig
	Tracing      TracingConfig
	Worker       WorkerConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// AuthConfig holds token signing configuration
type AuthConfig struct {
	JWTSecret      string
	TokenTTL       time.Duration
	MinPasswordLen int
}

// LoggingConfig mirrors logging.Config
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// PersistenceConfig selects the backend for accounts, usage and items
type PersistenceConfig struct {
	Driver        string // redis, postgres
	RetryAttempts uint
	RetryDelay    time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	LockTTL  time.Duration
}

// StorageConfig holds object storage configuration
type StorageConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
	UseSSL          bool
}

// QueueConfig holds message queue configuration
type QueueConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Vhost    string
}

// EntitlementsConfig points at an optional tier table override
type EntitlementsConfig struct {
	File string
}

// AllowListConfig points at the externally maintained allow-list
type AllowListConfig struct {
	File  string
	Watch bool
}

// QuotaConfig holds accountant settings
type QuotaConfig struct {
	Locker string // local, redis
}

// LLMConfig holds generative-model client configuration
type LLMConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// PromptsConfig points at the utility catalog
type PromptsConfig struct {
	CatalogFile string
}

// RateLimitConfig holds per-client request limits
type RateLimitConfig struct {
	RPS   int
	Burst int
}

// MetricsConfig holds Prometheus exporter configuration
type MetricsConfig struct {
	Enabled bool
	Port    int
}

// TracingConfig holds Jaeger configuration
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
}

// WorkerConfig holds usage worker configuration
type WorkerConfig struct {
	ReconcileSchedule string
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("PROMPTDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects settings the services cannot start with
func (c *Config) Validate() error {
	switch c.Persistence.Driver {
	case "redis", "postgres":
	default:
		return fmt.Errorf("invalid persistence driver %q", c.Persistence.Driver)
	}
	switch c.Quota.Locker {
	case "local", "redis":
	default:
		return fmt.Errorf("invalid quota locker %q", c.Quota.Locker)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwtSecret is required")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.readTimeout", "30s")
	v.SetDefault("server.writeTimeout", "90s")
	v.SetDefault("server.shutdownTimeout", "10s")

	// Auth defaults
	v.SetDefault("auth.jwtSecret", "")
	v.SetDefault("auth.tokenTTL", "24h")
	v.SetDefault("auth.minPasswordLen", 8)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// Persistence defaults
	v.SetDefault("persistence.driver", "redis")
	v.SetDefault("persistence.retryAttempts", 3)
	v.SetDefault("persistence.retryDelay", "100ms")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "promptdesk")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.maxConns", 25)
	v.SetDefault("database.minConns", 5)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lockTTL", "10s")

	// Storage defaults
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.accessKeyID", "minioadmin")
	v.SetDefault("storage.secretAccessKey", "minioadmin")
	v.SetDefault("storage.bucketName", "saved-items")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.useSSL", false)

	// Queue defaults
	v.SetDefault("queue.enabled", false)
	v.SetDefault("queue.host", "localhost")
	v.SetDefault("queue.port", 5672)
	v.SetDefault("queue.user", "guest")
	v.SetDefault("queue.password", "guest")
	v.SetDefault("queue.vhost", "/")

	// Entitlement and allow-list defaults
	v.SetDefault("entitlements.file", "")
	v.SetDefault("allowList.file", "allowlist.yaml")
	v.SetDefault("allowList.watch", true)
	v.SetDefault("quota.locker", "local")

	// LLM defaults
	v.SetDefault("llm.apiKey", "")
	v.SetDefault("llm.baseURL", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.maxRetries", 2)
	v.SetDefault("prompts.catalogFile", "")

	// Middleware defaults
	v.SetDefault("rateLimit.rps", 5)
	v.SetDefault("rateLimit.burst", 10)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.serviceName", "promptdesk")
	v.SetDefault("tracing.endpoint", "http://localhost:14268/api/traces")

	// Worker defaults
	v.SetDefault("worker.reconcileSchedule", "@daily")
}
