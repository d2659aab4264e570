package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Env       string
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	OTP       OTPConfig
	AWS       AWSConfig
	Email     EmailConfig
	RateLimit RateLimitConfig
	Events    EventDefaults
	Worker    WorkerConfig
}

// EmailConfig holds sender identity and the Resend API key.
type EmailConfig struct {
	FromAddress string
	FromName    string
	APIKey      string // RESEND_API_KEY; empty = log-only delivery
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/campus?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// OTPConfig controls email verification codes.
type OTPConfig struct {
	ExpireMinutes int
	Digits        int
}

// AWSConfig holds AWS credentials and the reports bucket.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	ReportsBucket        string
	PresignExpireMinutes int
}

// S3Enabled reports whether report archival is configured.
func (c AWSConfig) S3Enabled() bool {
	return c.ReportsBucket != ""
}

// RateLimitConfig throttles the unauthenticated auth endpoints per client IP.
type RateLimitConfig struct {
	LoginPerMinute int
	LoginBurst     int
}

// WorkerConfig holds settings for the background job worker.
type WorkerConfig struct {
	MetricsPort string
}

// EventDefaults are applied when an event is created without these fields.
type EventDefaults struct {
	Capacity int
	Category string
	Time     string
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// ErrMissingJWTSecret is returned when production runs without JWT_SECRET.
var ErrMissingJWTSecret = errors.New("JWT_SECRET must be set in production")

const devJWTSecret = "change-me-in-development"

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Env: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "campus"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 0),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      os.Getenv("JWT_SECRET"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 720),
		},
		OTP: OTPConfig{
			ExpireMinutes: getEnvInt("OTP_EXPIRE_MINUTES", 10),
			Digits:        6,
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			ReportsBucket:        getEnv("AWS_S3_REPORTS_BUCKET", ""),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Email: EmailConfig{
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", "noreply@example.com"),
			FromName:    getEnv("EMAIL_FROM_NAME", "Campus Events"),
			APIKey:      getEnv("RESEND_API_KEY", ""),
		},
		RateLimit: RateLimitConfig{
			LoginPerMinute: getEnvInt("LOGIN_RATE_PER_MINUTE", 10),
			LoginBurst:     getEnvInt("LOGIN_RATE_BURST", 5),
		},
		Events: EventDefaults{
			Capacity: getEnvInt("DEFAULT_EVENT_CAPACITY", 50),
			Category: getEnv("DEFAULT_EVENT_CATEGORY", "Technical"),
			Time:     getEnv("DEFAULT_EVENT_TIME", "14:30"),
		},
		Worker: WorkerConfig{
			MetricsPort: getEnv("WORKER_METRICS_PORT", "9091"),
		},
	}

	if cfg.JWT.Secret == "" {
		if cfg.IsProduction() {
			return nil, ErrMissingJWTSecret
		}
		cfg.JWT.Secret = devJWTSecret
	}
	if cfg.Events.Capacity < 1 {
		return nil, fmt.Errorf("DEFAULT_EVENT_CAPACITY must be >= 1, got %d", cfg.Events.Capacity)
	}
	return cfg, nil
}

// AllowedOrigins splits CORSAllowedOrigins into trimmed entries.
func (c ServerConfig) AllowedOrigins() []string {
	return splitTrim(c.CORSAllowedOrigins, ",")
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
