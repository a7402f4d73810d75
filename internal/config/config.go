package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the application's configuration values.
// Tags like `envconfig:"APP_PORT"` specify the environment variable name.
// `default:""` provides a default value if the env var is not set.
// `required:"true"` makes an environment variable mandatory.
type Config struct {
	AppEnv     string `envconfig:"APP_ENV" default:"development"` // development, staging, production
	Log        LogConfig
	HttpServer ServerConfig
	GrpcServer GrpcServerConfig
	Postgres   PostgresConfig
	Catalog    CatalogConfig
	Migration  MigrationConfig
}

// LogConfig controls the zerolog logger.
type LogConfig struct {
	Level      string `envconfig:"LOG_LEVEL" default:"info"` // debug, info, warn, error
	Format     string `envconfig:"LOG_FORMAT" default:"console"`
	File       string `envconfig:"LOG_FILE"`
	MaxSizeMB  int    `envconfig:"LOG_FILE_MAX_SIZE_MB" default:"64"`
	MaxBackups int    `envconfig:"LOG_FILE_MAX_BACKUPS" default:"7"`
	MaxAgeDays int    `envconfig:"LOG_FILE_MAX_AGE_DAYS" default:"7"`
}

// ServerConfig holds HTTP server-specific configurations.
type ServerConfig struct {
	Port           string        `envconfig:"HTTP_SERVER_PORT" default:"8080"`
	TimeoutRead    time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_READ" default:"15s"`
	TimeoutWrite   time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_WRITE" default:"15s"`
	TimeoutIdle    time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_IDLE" default:"60s"`
	RequestTimeout time.Duration `envconfig:"HTTP_SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// GrpcServerConfig holds gRPC server-specific configurations.
type GrpcServerConfig struct {
	Port string `envconfig:"GRPC_SERVER_PORT" default:"9090"`
}

// PostgresConfig holds PostgreSQL database connection details.
type PostgresConfig struct {
	Host        string `envconfig:"POSTGRES_HOST" required:"true"`
	Port        string `envconfig:"POSTGRES_PORT" default:"5432"`
	User        string `envconfig:"POSTGRES_USER" required:"true"`
	Password    string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	DBName      string `envconfig:"POSTGRES_DBNAME" required:"true"`
	SSLMode     string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
	ApplySchema bool   `envconfig:"POSTGRES_APPLY_SCHEMA" default:"true"`
}

// CatalogConfig points at the product catalog. An empty path uses the built-in catalog.
type CatalogConfig struct {
	Path string `envconfig:"CATALOG_PATH"`
}

// MigrationConfig controls the legacy data migration run at startup.
type MigrationConfig struct {
	AutoRun bool          `envconfig:"MIGRATION_AUTO_RUN" default:"true"`
	Backup  bool          `envconfig:"MIGRATION_BACKUP" default:"true"`
	Timeout time.Duration `envconfig:"MIGRATION_TIMEOUT" default:"60s"`
}

// DSN constructs the Data Source Name string for connecting to PostgreSQL.
func (pc *PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		pc.Host, pc.Port, pc.User, pc.Password, pc.DBName, pc.SSLMode)
}

// Validate checks values envconfig cannot.
func (c *Config) Validate() error {
	switch c.AppEnv {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("invalid APP_ENV: %s", c.AppEnv)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("invalid LOG_FORMAT: %s", c.Log.Format)
	}
	return nil
}

var cfg Config

// Load initializes the configuration from environment variables.
// It should be called once during application startup.
func Load() (*Config, error) {
	var loaded Config
	if err := envconfig.Process("", &loaded); err != nil {
		return nil, fmt.Errorf("failed to process configuration: %w", err)
	}
	if err := loaded.Validate(); err != nil {
		return nil, err
	}
	cfg = loaded
	return &cfg, nil
}

// Get returns the loaded configuration.
// Panics if Load() has not been called successfully.
func Get() *Config {
	if cfg.Postgres.Host == "" {
		panic("config: configuration has not been loaded, call config.Load() first")
	}
	return &cfg
}
