package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

// dialect holds the statements that differ between SQL engines.
type dialect struct {
	name     string
	schema   string
	get      string
	scanFrom string // keys >= $1
	scanAll  string // keys >= $1 AND < $2
	upsert   string
	remove   string
	count    string
}

// sqlBackend stores the flat map in a two-column kv table.
type sqlBackend struct {
	db *sql.DB
	mu sync.RWMutex
	d  dialect
}

func newSQLBackend(db *sql.DB, d dialect) (*sqlBackend, error) {
	if _, err := db.Exec(d.schema); err != nil {
		return nil, fmt.Errorf("failed to create kv table: %w", err)
	}
	return &sqlBackend{db: db, d: d}, nil
}

// Get retrieves a value by key.
func (b *sqlBackend) Get(ctx context.Context, key []byte) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var v []byte
	err := b.db.QueryRowContext(ctx, b.d.get, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key: %w", err)
	}
	return v, nil
}

// Scan returns the pairs under prefix sorted by key.
func (b *sqlBackend) Scan(ctx context.Context, prefix []byte) ([]KV, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var (
		rows *sql.Rows
		err  error
	)
	if end := prefixEnd(prefix); end != nil {
		rows, err = b.db.QueryContext(ctx, b.d.scanAll, prefix, end)
	} else {
		rows, err = b.db.QueryContext(ctx, b.d.scanFrom, prefix)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan prefix: %w", err)
	}
	defer rows.Close()

	var out []KV
	for rows.Next() {
		var kv KV
		if err := rows.Scan(&kv.Key, &kv.Value); err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		out = append(out, kv)
	}
	return out, rows.Err()
}

// Apply commits the batch in one SQL transaction.
func (b *sqlBackend) Apply(ctx context.Context, writes []Write) error {
	if len(writes) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	upsert, err := tx.PrepareContext(ctx, b.d.upsert)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer upsert.Close()

	remove, err := tx.PrepareContext(ctx, b.d.remove)
	if err != nil {
		return fmt.Errorf("failed to prepare delete: %w", err)
	}
	defer remove.Close()

	for _, w := range writes {
		if w.Delete {
			_, err = remove.ExecContext(ctx, w.Key)
		} else {
			_, err = upsert.ExecContext(ctx, w.Key, w.Value)
		}
		if err != nil {
			return fmt.Errorf("failed to apply write: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Stats returns statistics about the kv table.
func (b *sqlBackend) Stats(ctx context.Context) (map[string]interface{}, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var count int64
	if err := b.db.QueryRowContext(ctx, b.d.count).Scan(&count); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"backend":    b.d.name,
		"total_keys": count,
	}, nil
}

// Close closes the database connection.
func (b *sqlBackend) Close() error {
	return b.db.Close()
}
