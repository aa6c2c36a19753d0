// Package stores provides SQLite-backed implementations of the
// persistence interfaces in internal/core.
package stores

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/colonyops/duetoday/internal/core/kv"
	"github.com/colonyops/duetoday/internal/data/db"
)

// Bucket names for the two independent persisted buckets. The synced
// bucket holds the credential and settings record; the local bucket
// holds device-scoped state (active timers, badge, install id).
const (
	BucketSynced = "synced"
	BucketLocal  = "local"
)

// KVStore implements kv.KV over a single named bucket in SQLite.
type KVStore struct {
	db     *db.DB
	bucket string
}

var _ kv.KV = (*KVStore)(nil)

// NewKVStore creates a KV store bound to the given bucket.
func NewKVStore(database *db.DB, bucket string) *KVStore {
	return &KVStore{db: database, bucket: bucket}
}

// Get retrieves and deserializes a value by key.
// Returns an error wrapping sql.ErrNoRows if the key does not exist.
// Expired entries are lazily deleted and treated as missing.
func (s *KVStore) Get(ctx context.Context, key string, dest any) error {
	var (
		value     []byte
		expiresAt sql.NullInt64
	)
	row := s.db.Conn().QueryRowContext(ctx,
		`SELECT value, expires_at FROM kv_store WHERE bucket = ? AND key = ?`,
		s.bucket, key)
	if err := row.Scan(&value, &expiresAt); err != nil {
		return fmt.Errorf("kv get %s/%q: %w", s.bucket, key, err)
	}

	if isExpired(expiresAt) {
		_ = s.Delete(ctx, key)
		return fmt.Errorf("kv get %s/%q: %w", s.bucket, key, sql.ErrNoRows)
	}

	if err := json.Unmarshal(value, dest); err != nil {
		return fmt.Errorf("kv get %s/%q unmarshal: %w", s.bucket, key, err)
	}

	return nil
}

// Set stores a value with no expiry.
func (s *KVStore) Set(ctx context.Context, key string, value any) error {
	return s.set(ctx, key, value, sql.NullInt64{})
}

// SetTTL stores a value that expires after the given duration.
func (s *KVStore) SetTTL(ctx context.Context, key string, value any, ttl time.Duration) error {
	expiresAt := time.Now().Add(ttl).UnixNano()
	return s.set(ctx, key, value, sql.NullInt64{Int64: expiresAt, Valid: true})
}

// Delete removes a key.
func (s *KVStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.Conn().ExecContext(ctx,
		`DELETE FROM kv_store WHERE bucket = ? AND key = ?`, s.bucket, key)
	if err != nil {
		return fmt.Errorf("kv delete %s/%q: %w", s.bucket, key, err)
	}
	return nil
}

// Has returns whether a key exists (and is not expired).
func (s *KVStore) Has(ctx context.Context, key string) (bool, error) {
	var expiresAt sql.NullInt64
	row := s.db.Conn().QueryRowContext(ctx,
		`SELECT expires_at FROM kv_store WHERE bucket = ? AND key = ?`,
		s.bucket, key)
	err := row.Scan(&expiresAt)
	if IsNotFoundError(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("kv has %s/%q: %w", s.bucket, key, err)
	}

	if isExpired(expiresAt) {
		_ = s.Delete(ctx, key)
		return false, nil
	}

	return true, nil
}

// ListKeys returns all non-expired keys in sorted order.
func (s *KVStore) ListKeys(ctx context.Context) ([]string, error) {
	now := time.Now().UnixNano()
	rows, err := s.db.Conn().QueryContext(ctx,
		`SELECT key FROM kv_store
		 WHERE bucket = ? AND (expires_at IS NULL OR expires_at >= ?)
		 ORDER BY key`, s.bucket, now)
	if err != nil {
		return nil, fmt.Errorf("kv list keys %s: %w", s.bucket, err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("kv list keys %s scan: %w", s.bucket, err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("kv list keys %s rows: %w", s.bucket, err)
	}

	return keys, nil
}

// SweepExpired deletes all entries in the bucket whose TTL has passed.
func (s *KVStore) SweepExpired(ctx context.Context) error {
	now := time.Now().UnixNano()
	_, err := s.db.Conn().ExecContext(ctx,
		`DELETE FROM kv_store WHERE bucket = ? AND expires_at IS NOT NULL AND expires_at < ?`,
		s.bucket, now)
	if err != nil {
		return fmt.Errorf("kv sweep expired %s: %w", s.bucket, err)
	}
	return nil
}

func (s *KVStore) set(ctx context.Context, key string, value any, expiresAt sql.NullInt64) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("kv set %s/%q marshal: %w", s.bucket, key, err)
	}

	now := time.Now().UnixNano()
	_, err = s.db.Conn().ExecContext(ctx,
		`INSERT INTO kv_store (bucket, key, value, expires_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (bucket, key) DO UPDATE SET
		   value = excluded.value,
		   expires_at = excluded.expires_at,
		   updated_at = excluded.updated_at`,
		s.bucket, key, data, expiresAt, now, now)
	if err != nil {
		return fmt.Errorf("kv set %s/%q: %w", s.bucket, key, err)
	}

	return nil
}

func isExpired(expiresAt sql.NullInt64) bool {
	return expiresAt.Valid && expiresAt.Int64 < time.Now().UnixNano()
}
