package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

var mysqlDialect = dialect{
	name: "mysql",
	schema: `
	CREATE TABLE IF NOT EXISTS kv (
		k VARBINARY(512) NOT NULL PRIMARY KEY,
		v LONGBLOB NOT NULL
	) ENGINE=InnoDB`,
	get:      `SELECT v FROM kv WHERE k = ?`,
	scanFrom: `SELECT k, v FROM kv WHERE k >= ? ORDER BY k`,
	scanAll:  `SELECT k, v FROM kv WHERE k >= ? AND k < ? ORDER BY k`,
	upsert:   `INSERT INTO kv (k, v) VALUES (?, ?) ON DUPLICATE KEY UPDATE v = VALUES(v)`,
	remove:   `DELETE FROM kv WHERE k = ?`,
	count:    `SELECT COUNT(*) FROM kv`,
}

// MySQLBackend implements Backend on a MySQL kv table.
type MySQLBackend struct {
	*sqlBackend
}

// NewMySQLBackend connects to dsn and ensures the kv table exists.
// dsn format: "user:password@tcp(host:port)/dbname"
func NewMySQLBackend(dsn string) (*MySQLBackend, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	core, err := newSQLBackend(db, mysqlDialect)
	if err != nil {
		db.Close()
		return nil, err
	}

	log.Println("[MySQLStore] Connected")
	return &MySQLBackend{sqlBackend: core}, nil
}

var _ Backend = (*MySQLBackend)(nil)
