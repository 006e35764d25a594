// Package config loads platform configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"github.com/earnhub/platform/pkg/logger"
)

// Config is the root configuration for the platform server.
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Auth         AuthConfig
	SMTP         SMTPConfig
	Storage      StorageConfig
	Verification VerificationConfig
	RateLimit    RateLimitConfig
	Logging      logger.LoggingConfig
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `env:"SERVER_HOST,default=0.0.0.0"`
	Port            int           `env:"SERVER_PORT,default=8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT,default=15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT,default=30s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT,default=10s"`
	AllowedOrigins  string        `env:"SERVER_ALLOWED_ORIGINS,default=*"`
	AuditLogPath    string        `env:"SERVER_AUDIT_LOG"`
}

// DatabaseConfig controls the SQL connection pool. An empty DSN selects the
// in-memory store.
type DatabaseConfig struct {
	Driver          string `env:"DB_DRIVER,default=postgres"`
	DSN             string `env:"DB_DSN"`
	MaxOpenConns    int    `env:"DB_MAX_OPEN_CONNS,default=25"`
	MaxIdleConns    int    `env:"DB_MAX_IDLE_CONNS,default=5"`
	ConnMaxLifetime int    `env:"DB_CONN_MAX_LIFETIME,default=300"`
	MigrationsPath  string `env:"DB_MIGRATIONS_PATH,default=file://internal/app/storage/postgres/migrations"`
}

// RedisConfig controls the optional cache. An empty address disables caching.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,default=0"`
}

// AuthConfig controls token issuing.
type AuthConfig struct {
	JWTSecret  string        `env:"AUTH_JWT_SECRET"`
	TokenTTL   time.Duration `env:"AUTH_TOKEN_TTL,default=24h"`
	Issuer     string        `env:"AUTH_ISSUER,default=earnhub"`
	BcryptCost int           `env:"AUTH_BCRYPT_COST,default=10"`
}

// SMTPConfig controls transactional email. An empty host disables sending.
type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT,default=587"`
	Username string `env:"SMTP_USER"`
	Password string `env:"SMTP_PASS"`
	From     string `env:"SMTP_FROM"`
}

// StorageConfig controls the S3-compatible object store used for uploads.
type StorageConfig struct {
	Endpoint  string `env:"STORAGE_ENDPOINT"`
	Bucket    string `env:"STORAGE_BUCKET,default=earnhub-uploads"`
	AccessKey string `env:"STORAGE_ACCESS_KEY"`
	SecretKey string `env:"STORAGE_SECRET_KEY"`
	Region    string `env:"STORAGE_REGION,default=us-east-1"`
}

// VerificationConfig controls the third-party phone verification provider.
type VerificationConfig struct {
	BaseURL string        `env:"VERIFY_BASE_URL"`
	APIKey  string        `env:"VERIFY_API_KEY"`
	Timeout time.Duration `env:"VERIFY_TIMEOUT,default=10s"`
}

// RateLimitConfig controls per-user request throttling.
type RateLimitConfig struct {
	RequestsPerSecond int `env:"RATE_LIMIT_RPS,default=20"`
	Burst             int `env:"RATE_LIMIT_BURST,default=40"`
}

// Load reads configuration from the environment, honouring a local .env file
// when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("AUTH_JWT_SECRET is required")
	}

	return &cfg, nil
}
