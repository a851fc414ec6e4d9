package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
)

const (
	StorageModeMock    = "mock"
	StorageModeDurable = "durable"

	StorageProviderMinio = "minio"
	StorageProviderS3    = "s3"
)

// Config - структура для хранения конфигурации приложения
type Config struct {
	DatabaseURL string `env:"DATABASE_URL"`
	DBMaxConns  int    `env:"DB_MAX_CONNS" envDefault:"10"`
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json"`

	// Redis Config
	RedisAddr string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string        `env:"REDIS_PASSWORD"`
	RedisDB   int           `env:"REDIS_DB" envDefault:"0"`
	CacheTTL  time.Duration `env:"CACHE_TTL" envDefault:"5m"`

	// Webhook Config
	WebhookURL        string        `env:"WEBHOOK_URL"`
	WebhookSecret     string        `env:"WEBHOOK_SECRET"`
	WebhookTimeout    time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"5s"`
	WebhookMaxRetries int           `env:"WEBHOOK_MAX_RETRIES" envDefault:"3"`
	WebhookBaseDelay  time.Duration `env:"WEBHOOK_BASE_DELAY" envDefault:"1s"`

	// Object storage Config
	StorageMode             string        `env:"STORAGE_MODE" envDefault:"mock"`
	StorageProvider         string        `env:"STORAGE_PROVIDER" envDefault:"minio"`
	StorageConnectionString string        `env:"STORAGE_CONNECTION_STRING"`
	StorageEndpoint         string        `env:"STORAGE_ENDPOINT"`
	StorageAccessKey        string        `env:"STORAGE_ACCESS_KEY"`
	StorageSecretKey        string        `env:"STORAGE_SECRET_KEY"`
	StorageRegion           string        `env:"STORAGE_REGION" envDefault:"us-east-1"`
	StorageUseSSL           bool          `env:"STORAGE_USE_SSL" envDefault:"true"`
	StorageBucket           string        `env:"STORAGE_BUCKET" envDefault:"incident-documents"`
	StorageTimeout          time.Duration `env:"STORAGE_TIMEOUT" envDefault:"30s"`
	StorageMaxRetries       int           `env:"STORAGE_MAX_RETRIES" envDefault:"2"`

	// Upload Config
	MaxFileSize       int64 `env:"MAX_FILE_SIZE" envDefault:"16777216"`
	UploadConcurrency int   `env:"UPLOAD_CONCURRENCY" envDefault:"4"`

	// API Keys for authentication
	APIKeys []string `env:"API_KEYS" envSeparator:","`
}

// LoadConfig загружает конфигурацию из переменных окружения и .env файла
func LoadConfig() (*Config, error) {
	// Загрузка переменных окружения из .env файла (если есть)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("ошибка загрузки файла .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	keys := cfg.APIKeys[:0]
	for _, key := range cfg.APIKeys {
		if key = strings.TrimSpace(key); key != "" {
			keys = append(keys, key)
		}
	}
	cfg.APIKeys = keys

	cfg.StorageMode = strings.ToLower(strings.TrimSpace(cfg.StorageMode))
	cfg.StorageProvider = strings.ToLower(strings.TrimSpace(cfg.StorageProvider))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность конфигурации
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}
	switch c.StorageMode {
	case StorageModeMock, StorageModeDurable:
	default:
		return fmt.Errorf("unsupported STORAGE_MODE %q (supported: mock, durable)", c.StorageMode)
	}
	if c.StorageMode == StorageModeDurable {
		switch c.StorageProvider {
		case StorageProviderMinio, StorageProviderS3:
		default:
			return fmt.Errorf("unsupported STORAGE_PROVIDER %q (supported: minio, s3)", c.StorageProvider)
		}
		if c.StorageBucket == "" {
			return fmt.Errorf("STORAGE_BUCKET must not be empty")
		}
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE must be positive, got %d", c.MaxFileSize)
	}
	if c.UploadConcurrency < 1 {
		return fmt.Errorf("UPLOAD_CONCURRENCY must be at least 1, got %d", c.UploadConcurrency)
	}
	if c.StorageTimeout <= 0 {
		return fmt.Errorf("STORAGE_TIMEOUT must be positive")
	}
	return nil
}

// HasStaticStorageCredentials - задана пара ключ доступа / секрет
func (c *Config) HasStaticStorageCredentials() bool {
	return c.StorageAccessKey != "" && c.StorageSecretKey != ""
}
