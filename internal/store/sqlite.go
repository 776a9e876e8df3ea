package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/adamscao/agentca/internal/db"
)

// SQLiteBackend stores records in the records table
type SQLiteBackend struct {
	db *db.DB
}

// NewSQLiteBackend creates a backend over a migrated database
func NewSQLiteBackend(database *db.DB) *SQLiteBackend {
	return &SQLiteBackend{db: database}
}

// EnsureNamespace is a no-op; namespaces are key prefixes in the table
func (b *SQLiteBackend) EnsureNamespace(_ context.Context, prefix string) error {
	return validateKey(strings.TrimSuffix(prefix, "/"))
}

// Exists reports whether a row exists for key
func (b *SQLiteBackend) Exists(ctx context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	var exists bool
	err := b.db.QueryRowContext(ctx, `SELECT COUNT(*) > 0 FROM records WHERE key = ?`, key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check record %s: %w", key, err)
	}
	return exists, nil
}

// Get returns the value stored for key
func (b *SQLiteBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	var value []byte
	err := b.db.QueryRowContext(ctx, `SELECT value FROM records WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record %s: %w", key, err)
	}
	return value, nil
}

// Put upserts the value for key
func (b *SQLiteBackend) Put(ctx context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	query := `
		INSERT INTO records (key, value)
		VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`
	if _, err := b.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to put record %s: %w", key, err)
	}
	return nil
}

// PutIfAbsent inserts the value only when no row exists for key
func (b *SQLiteBackend) PutIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	result, err := b.db.ExecContext(ctx,
		`INSERT INTO records (key, value) VALUES (?, ?) ON CONFLICT(key) DO NOTHING`, key, value)
	if err != nil {
		return false, fmt.Errorf("failed to create record %s: %w", key, err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return count == 1, nil
}

// Delete removes the row for key
func (b *SQLiteBackend) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	result, err := b.db.ExecContext(ctx, `DELETE FROM records WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete record %s: %w", key, err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return nil
}

// List returns keys below prefix in key order
func (b *SQLiteBackend) List(ctx context.Context, prefix string) ([]string, error) {
	prefix = strings.TrimSuffix(prefix, "/")
	if err := validateKey(prefix); err != nil {
		return nil, err
	}
	prefix += "/"

	rows, err := b.db.QueryContext(ctx,
		`SELECT key FROM records WHERE instr(key, ?) = 1 ORDER BY key`, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan record key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return keys, nil
}

// Close is a no-op; the database is owned by the caller
func (b *SQLiteBackend) Close() error {
	return nil
}
