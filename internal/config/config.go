// Package config provides application configuration management.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (./helpgrid.yaml)
//  3. Default values
//
// Sensitive values (database password, OpenAI key, encryption key) are
// masked in String()/MarshalJSON and must never be logged raw.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrMissingOpenAIKey indicates OPENAI_API_KEY is not set.
	ErrMissingOpenAIKey = errors.New("missing OpenAI API key")

	// ErrMissingEncryptionKey indicates ENCRYPTION_KEY is not set.
	ErrMissingEncryptionKey = errors.New("missing encryption key")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is empty.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is empty.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPollInterval indicates the worker poll interval is out of range.
	ErrInvalidPollInterval = errors.New("invalid worker poll interval")

	// ErrInvalidTopK indicates the default top-K is out of range.
	ErrInvalidTopK = errors.New("invalid default top_k")
)

// Model defaults matching the provider the embeddings were produced with.
// Changing EmbeddingModel requires re-embedding every stored document.
const (
	DefaultEmbeddingModel  = "text-embedding-3-small"
	DefaultCompletionModel = "gpt-4o-mini"
)

// Config stores application configuration.
type Config struct {
	// HTTP server
	ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`

	// PostgreSQL
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// OpenAI
	OpenAIAPIKey    string `mapstructure:"openai_api_key" json:"openai_api_key"` // SENSITIVE
	EmbeddingModel  string `mapstructure:"embedding_model" json:"embedding_model"`
	CompletionModel string `mapstructure:"completion_model" json:"completion_model"`

	// Credential encryption key, base64-encoded 32 bytes.
	EncryptionKey string `mapstructure:"encryption_key" json:"encryption_key"` // SENSITIVE

	// Worker
	WorkerPollInterval time.Duration `mapstructure:"worker_poll_interval" json:"worker_poll_interval"`

	// Retrieval
	DefaultTopK int `mapstructure:"default_top_k" json:"default_top_k"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("helpgrid")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/helpgrid")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults plus env cover it.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", "127.0.0.1:8080")

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "helpgrid")
	v.SetDefault("postgres_password", "helpgrid_dev_password")
	v.SetDefault("postgres_db_name", "helpgrid")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("embedding_model", DefaultEmbeddingModel)
	v.SetDefault("completion_model", DefaultCompletionModel)

	v.SetDefault("worker_poll_interval", 5*time.Second)
	v.SetDefault("default_top_k", 5)
}

func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("listen_addr", "HELPGRID_LISTEN_ADDR")
	mustBind("postgres_host", "HELPGRID_POSTGRES_HOST")
	mustBind("postgres_port", "HELPGRID_POSTGRES_PORT")
	mustBind("postgres_user", "HELPGRID_POSTGRES_USER")
	mustBind("postgres_password", "HELPGRID_POSTGRES_PASSWORD")
	mustBind("postgres_db_name", "HELPGRID_POSTGRES_DB_NAME")
	mustBind("postgres_ssl_mode", "HELPGRID_POSTGRES_SSL_MODE")
	mustBind("openai_api_key", "OPENAI_API_KEY")
	mustBind("encryption_key", "ENCRYPTION_KEY")
	mustBind("worker_poll_interval", "HELPGRID_WORKER_POLL_INTERVAL")
	mustBind("default_top_k", "HELPGRID_DEFAULT_TOP_K")
}

// DatabaseURL assembles the pgx connection string.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPassword, c.PostgresHost, c.PostgresPort,
		c.PostgresDBName, c.PostgresSSLMode)
}

const maskedValue = "********"

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	return maskedValue
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	a.OpenAIAPIKey = maskSecret(a.OpenAIAPIKey)
	a.EncryptionKey = maskSecret(a.EncryptionKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
