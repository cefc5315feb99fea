package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteRepository keeps the ledger blobs in a local SQLite key/value table.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("SQLite ledger storage ready", "path", dbPath, "schema_version", version)

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Load implements Storage
func (r *SQLiteRepository) Load(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load %s: %w", key, err)
	}
	return []byte(value), true, nil
}

// Save implements Storage
func (r *SQLiteRepository) Save(ctx context.Context, key string, value []byte) error {
	if err := upsert(ctx, r.db, key, value); err != nil {
		return err
	}
	slog.DebugContext(ctx, "Ledger key saved to SQLite", "key", key, "bytes", len(value))
	return nil
}

// SaveAll implements BatchSaver. All keys are written in one transaction.
func (r *SQLiteRepository) SaveAll(ctx context.Context, values map[string][]byte) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, k := range Keys() {
		v, ok := values[k]
		if !ok {
			continue
		}
		if err := upsert(ctx, tx, k, v); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	slog.DebugContext(ctx, "Ledger snapshot saved to SQLite", "keys", len(values))
	return nil
}

// StoredKeys returns the keys present in the table, for diagnostics.
func (r *SQLiteRepository) StoredKeys(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key FROM kv ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsert(ctx context.Context, db execer, key string, value []byte) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, string(value))
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

var (
	_ Storage    = (*SQLiteRepository)(nil)
	_ BatchSaver = (*SQLiteRepository)(nil)
	_ Closer     = (*SQLiteRepository)(nil)
)
