package settings

import (
	"context"
	"fmt"

	"github.com/colonyops/duetoday/internal/core/kv"
	"github.com/colonyops/duetoday/internal/data/stores"
)

const (
	keySettings   = "settings"
	keyCredential = "credential"
)

// Store reads and writes the settings record and the API credential in
// the synced bucket.
type Store struct {
	bucket kv.KV
}

// NewStore creates a settings store over the synced bucket.
func NewStore(bucket kv.KV) *Store {
	return &Store{bucket: bucket}
}

// Load returns the persisted settings, or defaults when none exist.
func (s *Store) Load(ctx context.Context) (Settings, error) {
	var loaded Settings
	err := s.bucket.Get(ctx, keySettings, &loaded)
	if stores.IsNotFoundError(err) {
		return Default(), nil
	}
	if err != nil {
		return Default(), fmt.Errorf("load settings: %w", err)
	}
	if loaded.Features == nil {
		loaded.Features = map[Feature]bool{}
	}
	return loaded, nil
}

// Save validates and persists the settings record.
func (s *Store) Save(ctx context.Context, st Settings) error {
	if err := st.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	if err := s.bucket.Set(ctx, keySettings, st); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// Credential returns the stored API token, empty when unset.
func (s *Store) Credential(ctx context.Context) (string, error) {
	var token string
	err := s.bucket.Get(ctx, keyCredential, &token)
	if stores.IsNotFoundError(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load credential: %w", err)
	}
	return token, nil
}

// SetCredential stores the API token.
func (s *Store) SetCredential(ctx context.Context, token string) error {
	if err := s.bucket.Set(ctx, keyCredential, token); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}
