package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	Environment     string        `env:"APP_ENV" envDefault:"production"`
	ClientURL       string        `env:"CLIENT_URL" envDefault:"http://localhost:5173"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	StoreDriver     string        `env:"STORE_DRIVER" envDefault:"postgres"`
	AutoMigrate     bool          `env:"AUTO_MIGRATE" envDefault:"false"`
	RedisURL        string        `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
	JWTSecret       string        `env:"JWT_SECRET"`
	TokenTTL        time.Duration `env:"TOKEN_TTL" envDefault:"168h"`
	CodeTTL         time.Duration `env:"CODE_TTL" envDefault:"15m"`
	BcryptCost      int           `env:"BCRYPT_COST" envDefault:"10"`
	ExternalTimeout time.Duration `env:"EXTERNAL_TIMEOUT" envDefault:"10s"`
	GoogleClientID  string        `env:"GOOGLE_CLIENT_ID"`
	TrustedProxies  []string      `env:"TRUSTED_PROXIES" envSeparator:","`
	Email           EmailConfig
	Storage         StorageConfig
	RateLimit       RateLimitConfig
	Log             LogConfig
}

type EmailConfig struct {
	Host     string `env:"EMAIL_SERVER_HOST"`
	Port     int    `env:"EMAIL_SERVER_PORT" envDefault:"587"`
	Username string `env:"EMAIL_SERVER_USER"`
	Password string `env:"EMAIL_SERVER_PASSWORD"`
	From     string `env:"EMAIL_FROM"`
	Secure   bool   `env:"EMAIL_SERVER_SECURE" envDefault:"false"`
}

func (e EmailConfig) Enabled() bool {
	return e.Host != "" && e.Port != 0 && e.From != ""
}

// StorageConfig points at an S3-compatible bucket for profile photos.
type StorageConfig struct {
	Bucket          string `env:"S3_BUCKET"`
	Region          string `env:"S3_REGION" envDefault:"us-east-1"`
	Endpoint        string `env:"S3_ENDPOINT"`
	AccessKey       string `env:"S3_ACCESS_KEY"`
	SecretKey       string `env:"S3_SECRET_KEY"`
	PublicBaseURL   string `env:"S3_PUBLIC_BASE_URL"`
	Folder          string `env:"S3_FOLDER" envDefault:"follow-mate"`
	MaxUploadSizeKB int64  `env:"MAX_UPLOAD_SIZE_KB" envDefault:"10240"`
}

func (s StorageConfig) Enabled() bool {
	return s.Bucket != "" && s.AccessKey != "" && s.SecretKey != ""
}

func (s StorageConfig) MaxUploadBytes() int64 {
	return s.MaxUploadSizeKB * 1024
}

type RateLimitConfig struct {
	Points int64         `env:"RATE_LIMIT_POINTS" envDefault:"500"`
	Window time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"15m"`
}

type LogConfig struct {
	File       string `env:"LOG_FILE"`
	MaxSizeMB  int64  `env:"LOG_MAX_SIZE_MB" envDefault:"50"`
	MaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"5"`
}

func (c Config) Development() bool {
	return strings.EqualFold(c.Environment, "development")
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.JWTSecret = clean(cfg.JWTSecret)
	cfg.GoogleClientID = clean(cfg.GoogleClientID)
	cfg.Email.Host = clean(cfg.Email.Host)
	cfg.Email.Username = clean(cfg.Email.Username)
	cfg.Email.Password = clean(cfg.Email.Password)
	cfg.Email.From = clean(cfg.Email.From)
	cfg.StoreDriver = strings.ToLower(clean(cfg.StoreDriver))
	cfg.TrustedProxies = parseList(cfg.TrustedProxies)
	cfg.ClientURL = strings.TrimRight(clean(cfg.ClientURL), "/")

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL is required")
		}
	case StoreDriverMemory:
	default:
		return Config{}, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 7 * 24 * time.Hour
	}
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = 15 * time.Minute
	}
	if cfg.ExternalTimeout <= 0 {
		cfg.ExternalTimeout = 10 * time.Second
	}
	if cfg.Storage.PublicBaseURL == "" && cfg.Storage.Bucket != "" {
		cfg.Storage.PublicBaseURL = defaultPublicBaseURL(cfg.Storage)
	}
	cfg.Storage.PublicBaseURL = strings.TrimRight(cfg.Storage.PublicBaseURL, "/")

	return cfg, nil
}

func clean(val string) string {
	return strings.Trim(val, "\"' \t\r\n")
}

func parseList(values []string) []string {
	var out []string
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func defaultPublicBaseURL(s StorageConfig) string {
	if s.Endpoint == "" {
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", s.Bucket, s.Region)
	}
	u, err := url.Parse(s.Endpoint)
	if err != nil {
		return s.Endpoint
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + s.Bucket
	return u.String()
}
