// Package kv defines the persistent key-value contract shared by the
// daemon and the one-shot CLI surfaces.
package kv

import (
	"context"
	"time"
)

// KV is the interface for a persistent key-value bucket.
// Keys are strings, values are JSON-serializable.
// Get on a missing key returns an error wrapping sql.ErrNoRows.
type KV interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any) error
	SetTTL(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Has(ctx context.Context, key string) (bool, error)
	ListKeys(ctx context.Context) ([]string, error)
}
