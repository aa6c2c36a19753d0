// Package badge models the toolbar badge surfaced by status bars.
package badge

import (
	"context"
	"fmt"

	"github.com/colonyops/duetoday/internal/core/kv"
	"github.com/colonyops/duetoday/internal/data/stores"
)

const storageKey = "badge"

// Badge is the rendered toolbar state. Text is empty when there is
// nothing to show; Recording takes display priority over any count.
type Badge struct {
	Text      string `json:"text"`
	Recording bool   `json:"recording"`
}

// Clear is the empty badge.
var Clear = Badge{}

// RecordingBadge is the fixed indicator shown while a timer is accruing.
func RecordingBadge() Badge {
	return Badge{Text: "REC", Recording: true}
}

// Count renders a due-task count; zero renders empty text.
func Count(n int) Badge {
	if n <= 0 {
		return Clear
	}
	return Badge{Text: fmt.Sprintf("%d", n)}
}

// Store persists the badge in the local bucket so one-shot CLI
// invocations (status bars) can read what the daemon last computed.
type Store struct {
	bucket kv.KV
}

// NewStore creates a badge store over the local bucket.
func NewStore(bucket kv.KV) *Store {
	return &Store{bucket: bucket}
}

// Get returns the last persisted badge; missing means Clear.
func (s *Store) Get(ctx context.Context) (Badge, error) {
	var b Badge
	err := s.bucket.Get(ctx, storageKey, &b)
	if stores.IsNotFoundError(err) {
		return Clear, nil
	}
	if err != nil {
		return Clear, fmt.Errorf("load badge: %w", err)
	}
	return b, nil
}

// Set persists the badge.
func (s *Store) Set(ctx context.Context, b Badge) error {
	if err := s.bucket.Set(ctx, storageKey, b); err != nil {
		return fmt.Errorf("save badge: %w", err)
	}
	return nil
}
