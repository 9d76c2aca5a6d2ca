package syncer

import (
	"context"
)

// Client drives the fetch-normalize-filter-publish cycle.
type Client interface {
	// Start waits for the source and every publisher to become ready,
	// then schedules recurring sync ticks. Non-blocking; the wait runs
	// in the background and holds the syncer in Initializing until all
	// readiness gates open.
	Start(ctx context.Context) error

	// SyncOnce runs one full tick. Only ledger persistence failures are
	// returned; per-item and per-target failures are logged and
	// contained.
	SyncOnce(ctx context.Context) error
}
