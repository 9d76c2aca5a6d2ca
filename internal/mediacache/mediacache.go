package mediacache

import (
	"context"
	"errors"
)

var (
	// ErrNotStaged is returned by Resolve for a URL that was never staged
	// (or whose staging failed). Resolve never fetches implicitly.
	ErrNotStaged = errors.New("media not staged")

	// ErrFetch wraps network or IO failures during staging.
	ErrFetch = errors.New("media fetch failed")
)

// Client stages remote media on local disk for the duration of one publish
// attempt. Handles are keyed by remote URL and live until released.
type Client interface {
	// Stage downloads the asset unless it is already staged, and returns
	// the local path. Concurrent calls for the same URL collapse into one
	// download.
	Stage(ctx context.Context, remoteURL string) (string, error)

	// Resolve returns the local path for an already-staged URL.
	Resolve(remoteURL string) (string, error)

	// Release deletes the staged file and forgets the mapping. A no-op
	// for URLs that were never staged.
	Release(remoteURL string)
}
