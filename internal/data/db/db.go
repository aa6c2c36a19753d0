// Package db owns the SQLite database backing the persisted buckets.
package db

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema/schema.sql
var schemaSQL string

const (
	maxRetries  = 5
	initialWait = 100 * time.Millisecond
	busyTimeout = 5000 // milliseconds
)

// DB wraps a SQL database connection with retry logic.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates a new database connection with connection pooling and retry
// logic. The database file is created in the specified data directory.
func Open(dataDir string) (*DB, error) {
	dbPath := filepath.Join(dataDir, "duetoday.db")

	// Open with pragmas for WAL mode and busy timeout
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)", dbPath, busyTimeout)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Two processes at most (daemon + one CLI invocation); keep the pool small.
	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn, path: dbPath}

	if err := db.pingWithRetry(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := db.initSchema(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Path returns the database file path. The daemon watches this path to
// observe writes made by other processes.
func (db *DB) Path() string {
	return db.path
}

// pingWithRetry attempts to ping the database with exponential backoff.
func (db *DB) pingWithRetry(ctx context.Context) error {
	wait := initialWait
	for i := 0; i < maxRetries; i++ {
		if err := db.conn.PingContext(ctx); err == nil {
			return nil
		}

		if i < maxRetries-1 {
			time.Sleep(wait)
			wait *= 2
		}
	}

	return fmt.Errorf("ping database after %d retries", maxRetries)
}

// initSchema creates the database schema if it doesn't exist.
func (db *DB) initSchema(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}
