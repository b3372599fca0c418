package store

import (
	"context"

	"github.com/beaconhq/beacon/internal/queue"
)

// Store persists the delivery queue across process restarts. The queue itself
// stays in memory; implementations only serialize and deserialize snapshots.
type Store interface {
	// Load returns the persisted entries, oldest first. A missing spool is
	// not an error; it returns an empty list.
	Load(ctx context.Context) ([]queue.Entry, error)
	// Save replaces the persisted snapshot with the given entries.
	Save(ctx context.Context, entries []queue.Entry) error
}
