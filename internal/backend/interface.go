package backend

import (
	"context"

	"khata/internal/ledger"
	"khata/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds the storage adapter the ledger loads from, the
// optional event publisher and a cleanup for both.
type BackendResult struct {
	Storage   storage.Storage
	Publisher ledger.Publisher
	Cleanup   CleanupFunc
}

// Close runs Cleanup when set.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// LedgerOptions returns the store options this backend contributes.
func (r *BackendResult) LedgerOptions() []ledger.Option {
	if r.Publisher == nil {
		return nil
	}
	return []ledger.Option{ledger.WithPublisher(r.Publisher)}
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// File specific
	DataDirectory string

	// SQLite specific
	SQLiteDBPath string

	// Memory specific; empty starts from nothing.
	SeedFile string

	// AMQP, optional for every backend
	AMQPURL          string
	AMQPExchange     string
	AMQPQueue        string
	AMQPDialAttempts int
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	FileBackend   BackendType = "file"
	SQLiteBackend BackendType = "sqlite"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, FileBackend, SQLiteBackend:
		return true
	default:
		return false
	}
}
