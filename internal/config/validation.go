package config

import (
	"fmt"
	"time"
)

// Validate performs fail-fast validation of the configuration.
// Server- and worker-only requirements are checked by the callers that
// need them (ValidateServe / ValidateWorker).
func (c *Config) Validate() error {
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host must not be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: port %d out of range 1-65535", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name must not be empty", ErrInvalidPostgresDBName)
	}
	if c.DefaultTopK < 1 || c.DefaultTopK > 50 {
		return fmt.Errorf("%w: default_top_k %d out of range 1-50", ErrInvalidTopK, c.DefaultTopK)
	}
	return nil
}

// ValidateServe checks requirements for the HTTP API server.
func (c *Config) ValidateServe() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("%w: set OPENAI_API_KEY", ErrMissingOpenAIKey)
	}
	if c.EncryptionKey == "" {
		return fmt.Errorf("%w: set ENCRYPTION_KEY", ErrMissingEncryptionKey)
	}
	return nil
}

// ValidateWorker checks requirements for the sync worker.
func (c *Config) ValidateWorker() error {
	if err := c.ValidateServe(); err != nil {
		return err
	}
	if c.WorkerPollInterval < time.Second || c.WorkerPollInterval > time.Hour {
		return fmt.Errorf("%w: %s out of range 1s-1h", ErrInvalidPollInterval, c.WorkerPollInterval)
	}
	return nil
}
