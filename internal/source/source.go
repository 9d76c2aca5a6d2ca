package source

import (
	"context"
)

//go:generate go run go.uber.org/mock/mockgen -source=source.go -destination=mocks/mock.go

// Client supplies raw candidate items from the source platform. The syncer
// imposes no ordering expectation on FetchRecent; candidates are re-sorted
// downstream.
type Client interface {
	// Authenticate establishes the session against the source platform and
	// opens the readiness gate on success. Called once at startup.
	Authenticate(ctx context.Context) error

	// WaitReady blocks until the client has an authenticated session,
	// or the context is cancelled.
	WaitReady(ctx context.Context) error

	// FetchRecent returns the source's notion of recent items for the
	// configured user, already scoped to own posts with reposts removed.
	FetchRecent(ctx context.Context) ([]RawItem, error)
}
