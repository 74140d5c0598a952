package backend

import (
	"context"
	"errors"
	"fmt"

	"budgetbook/internal/amqp"
	"budgetbook/internal/log"
	"budgetbook/internal/ports"
	"budgetbook/internal/storage"
	"budgetbook/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		store ports.Store
		err   error
	)
	switch config.Type {
	case SQLiteBackend:
		store, err = f.createSQLiteStore(config)
	case PostgresBackend:
		store, err = f.createPostgresStore(config)
	case MemoryBackend:
		store, err = f.createMemoryStore(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	broker := f.connectBroker(config)

	result := &BackendResult{Store: store, Broker: broker}
	result.Cleanup = func() error {
		var errs []error
		if broker != nil {
			errs = append(errs, broker.Close())
		}
		errs = append(errs, store.Close())
		return errors.Join(errs...)
	}
	return result, nil
}

func (f *DefaultFactory) createSQLiteStore(config Config) (ports.Store, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return repo, nil
}

func (f *DefaultFactory) createPostgresStore(config Config) (ports.Store, error) {
	repo, err := storage.NewPostgresRepository(config.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Postgres repository: %w", err)
	}
	f.logger.Info("Initialized Postgres backend")
	return repo, nil
}

func (f *DefaultFactory) createMemoryStore(config Config) (ports.Store, error) {
	store := memory.New()
	if config.SeedCategoriesFile != "" {
		n, err := store.SeedCategoriesFromFile(config.SeedUserID, config.SeedCategoriesFile)
		if err != nil {
			return nil, fmt.Errorf("seed categories: %w", err)
		}
		f.logger.Info("Seeded categories", log.FieldUserID, config.SeedUserID, "count", n)
	}
	f.logger.Info("Initialized memory backend")
	return store, nil
}

// connectBroker dials AMQP when configured. The broker is optional, so a
// failure is logged and the backend runs without events.
func (f *DefaultFactory) connectBroker(config Config) *amqp.Client {
	if config.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without ledger events", log.FieldError, err)
		return nil
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}
