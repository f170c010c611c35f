package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: `
	CREATE TABLE IF NOT EXISTS kv (
		k BLOB PRIMARY KEY,
		v BLOB NOT NULL
	) WITHOUT ROWID;`,
	get:      `SELECT v FROM kv WHERE k = ?`,
	scanFrom: `SELECT k, v FROM kv WHERE k >= ? ORDER BY k`,
	scanAll:  `SELECT k, v FROM kv WHERE k >= ? AND k < ? ORDER BY k`,
	upsert:   `INSERT INTO kv (k, v) VALUES (?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v`,
	remove:   `DELETE FROM kv WHERE k = ?`,
	count:    `SELECT COUNT(*) FROM kv`,
}

// SQLiteBackend implements Backend on an embedded SQLite file.
// Thread-safe with WAL mode for concurrent reads.
type SQLiteBackend struct {
	*sqlBackend
}

// NewSQLiteBackend opens (and if needed creates) the database at dbPath.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports 1 writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	core, err := newSQLBackend(db, sqliteDialect)
	if err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[SQLiteStore] Initialized with database: %s", dbPath)
	return &SQLiteBackend{sqlBackend: core}, nil
}

// Checkpoint folds the WAL back into the main database file.
func (s *SQLiteBackend) Checkpoint(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("failed to checkpoint WAL: %w", err)
	}
	return nil
}

// Stats adds the database file size to the common statistics.
func (s *SQLiteBackend) Stats(ctx context.Context) (map[string]interface{}, error) {
	stats, err := s.sqlBackend.Stats(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var pageCount, pageSize int64
	s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
	s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
	stats["db_size_bytes"] = pageCount * pageSize
	return stats, nil
}

var (
	_ Backend      = (*SQLiteBackend)(nil)
	_ Checkpointer = (*SQLiteBackend)(nil)
)
