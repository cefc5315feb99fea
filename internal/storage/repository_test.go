package storage

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "db", "khata.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepositorySaveAndLoad(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if _, found, err := repo.Load(ctx, KeyUsers); found || err != nil {
		t.Fatalf("expected missing key, found=%v err=%v", found, err)
	}

	if err := repo.Save(ctx, KeyUsers, []byte(`[{"id":"1"}]`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.Save(ctx, KeyUsers, []byte(`[{"id":"2"}]`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, found, err := repo.Load(ctx, KeyUsers)
	if err != nil || !found || string(got) != `[{"id":"2"}]` {
		t.Fatalf("unexpected load: %q found=%v err=%v", got, found, err)
	}
}

func TestSQLiteRepositorySaveAll(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	values := map[string][]byte{
		KeyCustomers:    []byte(`[]`),
		KeyTransactions: []byte(`[]`),
	}
	if err := SaveAll(ctx, repo, values); err != nil {
		t.Fatalf("save all: %v", err)
	}
	keys, err := repo.StoredKeys(ctx)
	if err != nil {
		t.Fatalf("stored keys: %v", err)
	}
	if want := []string{KeyCustomers, KeyTransactions}; !reflect.DeepEqual(keys, want) {
		t.Fatalf("expected %v, got %v", want, keys)
	}
}

func TestRunMigrationsIsRepeatable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "khata.db")
	first, err := RunMigrations(path)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := RunMigrations(path)
	if err != nil || second != first {
		t.Fatalf("second run: version %d err=%v", second, err)
	}
}
