package storage

import "context"

// Keys of the persisted ledger blobs. Each holds one JSON document.
const (
	KeyUsers        = "khata_users"
	KeyCustomers    = "khata_customers"
	KeyTransactions = "khata_transactions"
	KeyCategories   = "khata_categories"
	KeyCurrentUser  = "khata_current_user"
)

// Keys lists every key the ledger writes, in save order.
func Keys() []string {
	return []string{KeyUsers, KeyCustomers, KeyTransactions, KeyCategories, KeyCurrentUser}
}

// Ports for persistence adapters.
type (
	// Storage is a synchronous key/value store for ledger blobs.
	Storage interface {
		// Load returns the stored value and whether the key exists.
		Load(ctx context.Context, key string) (value []byte, found bool, err error)
		Save(ctx context.Context, key string, value []byte) error
	}

	// BatchSaver is implemented by stores that can write several keys at once.
	BatchSaver interface {
		SaveAll(ctx context.Context, values map[string][]byte) error
	}

	// Closer is implemented by stores holding resources.
	Closer interface {
		Close() error
	}
)

// SaveAll writes every value, in one batch when the store supports it.
func SaveAll(ctx context.Context, s Storage, values map[string][]byte) error {
	if b, ok := s.(BatchSaver); ok {
		return b.SaveAll(ctx, values)
	}
	for _, k := range Keys() {
		v, ok := values[k]
		if !ok {
			continue
		}
		if err := s.Save(ctx, k, v); err != nil {
			return err
		}
	}
	return nil
}
