package backend

import (
	"context"
	"errors"
	"fmt"

	"khata/internal/amqp"
	"khata/internal/log"
	"khata/internal/storage"
	"khata/internal/storage/file"
	"khata/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend opens the configured storage and, when AMQP_URL is set,
// the event publisher. A broker that cannot be reached only disables events.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		st      storage.Storage
		cleanup []CleanupFunc
	)
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		st = repo
		cleanup = append(cleanup, repo.Close)
		f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	case FileBackend:
		fs, err := file.New(config.DataDirectory)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize file storage: %w", err)
		}
		st = fs
		f.logger.InfoContext(ctx, "Initialized file backend", "data_directory", fs.Dir())
	case MemoryBackend:
		ms := memory.New()
		if config.SeedFile != "" {
			seeded, err := memory.NewFromFile(config.SeedFile)
			if err != nil {
				return nil, fmt.Errorf("failed to seed memory backend: %w", err)
			}
			ms = seeded
		}
		st = ms
		f.logger.InfoContext(ctx, "Initialized memory backend", "seed_file", config.SeedFile, "keys", ms.Len())
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	result := &BackendResult{Storage: st}
	if config.AMQPURL != "" {
		attempts := config.AMQPDialAttempts
		if attempts < 1 {
			attempts = 1
		}
		client, err := amqp.DialWithRetry(ctx, config.AMQPURL, config.AMQPExchange, config.AMQPQueue, attempts)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", log.FieldError, err.Error())
		} else {
			result.Publisher = client
			cleanup = append(cleanup, client.Close)
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	result.Cleanup = func() error {
		var errs []error
		for i := len(cleanup) - 1; i >= 0; i-- {
			if err := cleanup[i](); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	return result, nil
}
