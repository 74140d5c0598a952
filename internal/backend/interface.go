package backend

import (
	"context"
	"fmt"

	"budgetbook/internal/amqp"
	"budgetbook/internal/config"
	"budgetbook/internal/ports"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the store, the optional event broker client and a
// cleanup function releasing both.
type BackendResult struct {
	Store ports.Store
	// Broker is nil when no AMQP URL is configured or the broker was
	// unreachable at startup.
	Broker  *amqp.Client
	Cleanup CleanupFunc
}

// Publisher returns the broker as an event publisher, or nil. A nil
// *amqp.Client must not leak into the interface.
func (r *BackendResult) Publisher() ports.EventPublisher {
	if r.Broker == nil {
		return nil
	}
	return r.Broker
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string
	PostgresDSN  string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Memory backend demo data
	SeedUserID         string
	SeedCategoriesFile string
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:               backendType,
		SQLiteDBPath:       appConfig.SQLiteDBPath,
		PostgresDSN:        appConfig.PostgresDSN,
		AMQPURL:            appConfig.AMQPURL,
		AMQPExchange:       appConfig.AMQPExchange,
		AMQPQueue:          appConfig.AMQPQueue,
		SeedUserID:         appConfig.SeedUserID,
		SeedCategoriesFile: appConfig.SeedCategoriesFile,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case PostgresBackend:
		if c.PostgresDSN == "" {
			return fmt.Errorf("Postgres DSN is required for postgres backend")
		}
	case MemoryBackend:
		if c.SeedCategoriesFile != "" && c.SeedUserID == "" {
			return fmt.Errorf("seed user id is required when a seed file is given")
		}
	}

	return nil
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}
