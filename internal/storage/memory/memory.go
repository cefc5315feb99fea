package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"khata/internal/storage"
)

type Store struct {
	mu     sync.Mutex
	values map[string][]byte
}

func New() *Store {
	return &Store{values: make(map[string][]byte)}
}

// NewFromFile seeds the store from a backup document on disk. Each top-level
// key of the document becomes a storage value: "users" is stored under
// khata_users and so on. A missing file yields an empty store.
func NewFromFile(path string) (*Store, error) {
	s := New()
	b, err := os.ReadFile(filepath.Clean(path))
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	seedKeys := map[string]string{
		"users":        storage.KeyUsers,
		"customers":    storage.KeyCustomers,
		"transactions": storage.KeyTransactions,
		"categories":   storage.KeyCategories,
		"currentUser":  storage.KeyCurrentUser,
	}
	for field, key := range seedKeys {
		if v, ok := doc[field]; ok {
			s.values[key] = append([]byte(nil), v...)
		}
	}
	return s, nil
}

// Load returns a copy of the stored value.
func (s *Store) Load(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *Store) Save(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = append([]byte(nil), value...)
	return nil
}

func (s *Store) SaveAll(_ context.Context, values map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		s.values[k] = append([]byte(nil), v...)
	}
	return nil
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}

var (
	_ storage.Storage    = (*Store)(nil)
	_ storage.BatchSaver = (*Store)(nil)
)
