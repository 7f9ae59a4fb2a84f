package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the headshot server.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Blob      BlobConfig
	Generator GeneratorConfig
	Worker    WorkerConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port            int           `env:"HEADSHOT_PORT"             envDefault:"8080"`
	Env             string        `env:"HEADSHOT_ENV"              envDefault:"development"`
	MaxUploadBytes  int64         `env:"HEADSHOT_MAX_UPLOAD_BYTES" envDefault:"10485760"`
	ShutdownTimeout time.Duration `env:"HEADSHOT_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

type DatabaseConfig struct {
	Driver          string        `env:"DATABASE_DRIVER"            envDefault:"postgres"`
	URL             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DATABASE_MAX_OPEN_CONNS"    envDefault:"25"`
	MaxIdleConns    int           `env:"DATABASE_MAX_IDLE_CONNS"    envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME" envDefault:"5m"`
	MigrationsDir   string        `env:"MIGRATIONS_DIR"             envDefault:"migrations"`
}

type RedisConfig struct {
	URL string `env:"REDIS_URL"`
}

type BlobConfig struct {
	Driver   string `env:"BLOB_DRIVER"    envDefault:"local"`
	LocalDir string `env:"BLOB_LOCAL_DIR" envDefault:"./data/blobs"`
	S3       S3Config
}

type S3Config struct {
	Bucket          string `env:"S3_BUCKET"`
	Region          string `env:"S3_REGION"             envDefault:"us-east-1"`
	Prefix          string `env:"S3_PREFIX"`
	EndpointURL     string `env:"S3_ENDPOINT_URL"`
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
}

type GeneratorConfig struct {
	Provider      string        `env:"GENERATOR_PROVIDER"       envDefault:"local"`
	BaseURL       string        `env:"GENERATOR_BASE_URL"`
	APIKey        string        `env:"GENERATOR_API_KEY"`
	Timeout       time.Duration `env:"GENERATOR_TIMEOUT"        envDefault:"120s"`
	MaxConcurrent int           `env:"GENERATOR_MAX_CONCURRENT" envDefault:"0"`
	OutputSize    int           `env:"GENERATOR_OUTPUT_SIZE"    envDefault:"1024"`
}

type WorkerConfig struct {
	Concurrency int `env:"WORKER_CONCURRENCY" envDefault:"4"`
	QueueSize   int `env:"WORKER_QUEUE_SIZE"  envDefault:"100"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`
}

var validDatabaseDrivers = map[string]bool{
	"postgres": true,
	"sqlite":   true,
}

var validBlobDrivers = map[string]bool{
	"local": true,
	"s3":    true,
}

var validProviders = map[string]bool{
	"http":  true,
	"local": true,
}

// LoadEnvFiles loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set. Missing files
// are ignored.
func LoadEnvFiles(paths ...string) {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("could not load env file", "path", p, "error", err)
		}
	}
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("HEADSHOT_MAX_UPLOAD_BYTES must be positive")
	}
	if !validDatabaseDrivers[c.Database.Driver] {
		return fmt.Errorf("DATABASE_DRIVER must be one of postgres, sqlite; got %q", c.Database.Driver)
	}
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if !validBlobDrivers[c.Blob.Driver] {
		return fmt.Errorf("BLOB_DRIVER must be one of local, s3; got %q", c.Blob.Driver)
	}
	if c.Blob.Driver == "local" && c.Blob.LocalDir == "" {
		return fmt.Errorf("BLOB_LOCAL_DIR is required when BLOB_DRIVER is local")
	}
	if c.Blob.Driver == "s3" && c.Blob.S3.Bucket == "" {
		return fmt.Errorf("S3_BUCKET is required when BLOB_DRIVER is s3")
	}
	if c.Generator.Provider == "" {
		return fmt.Errorf("GENERATOR_PROVIDER is required")
	}
	if !validProviders[c.Generator.Provider] {
		return fmt.Errorf("GENERATOR_PROVIDER must be one of http, local; got %q", c.Generator.Provider)
	}
	if c.Generator.Provider == "http" {
		if c.Generator.BaseURL == "" {
			return fmt.Errorf("GENERATOR_BASE_URL is required when GENERATOR_PROVIDER is http")
		}
		if !strings.HasPrefix(c.Generator.BaseURL, "http://") && !strings.HasPrefix(c.Generator.BaseURL, "https://") {
			return fmt.Errorf("GENERATOR_BASE_URL must start with http:// or https://, got %q", c.Generator.BaseURL)
		}
	}
	if c.Generator.Timeout <= 0 {
		return fmt.Errorf("GENERATOR_TIMEOUT must be positive")
	}
	if c.Generator.MaxConcurrent < 0 {
		return fmt.Errorf("GENERATOR_MAX_CONCURRENT must not be negative")
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("WORKER_CONCURRENCY must be positive, got %d", c.Worker.Concurrency)
	}
	if c.Worker.QueueSize <= 0 {
		return fmt.Errorf("WORKER_QUEUE_SIZE must be positive, got %d", c.Worker.QueueSize)
	}
	return nil
}
