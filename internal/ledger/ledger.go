package ledger

import (
	"context"
	"errors"
)

// ErrPersist marks a failure to durably record a synced id. It is the one
// error class the sync core treats as fatal: continuing after a lost write
// risks double-publishing on the next restart.
var ErrPersist = errors.New("ledger persist failed")

//go:generate go run go.uber.org/mock/mockgen -source=ledger.go -destination=mocks/mock.go

// Repository is the durable, monotonic set of post ids already published to
// at least one target. MarkSynced is the only mutator; ids are never
// removed automatically.
type Repository interface {
	// Load reads the persisted set at startup. A missing store is an
	// empty set, not an error.
	Load(ctx context.Context) error

	// Contains reports whether id has been synced. Reads the in-memory
	// set populated by Load and grown by MarkSynced.
	Contains(id string) bool

	// MarkSynced adds id to the set and persists durably before
	// returning. Re-marking an already-synced id is a no-op.
	MarkSynced(ctx context.Context, id string) error
}
