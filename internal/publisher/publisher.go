package publisher

import (
	"context"
	"errors"
)

var (
	// ErrNotReady is returned when Publish or UploadMedia is called
	// before the adapter's readiness gate has opened.
	ErrNotReady = errors.New("publisher not ready")

	// ErrUnsupportedMediaType is returned for media the target platform
	// cannot accept.
	ErrUnsupportedMediaType = errors.New("unsupported media type")
)

// MediaRef is an opaque, adapter-specific handle for uploaded media. Only
// the adapter that produced a ref can consume it.
type MediaRef any

// Post is the payload handed to an adapter for one publish attempt.
// VideoURLs carry the short links of the post's video attachments so a
// target that cannot host video can still reference it in text.
type Post struct {
	Body      string
	MediaRefs []MediaRef
	QuotedURL string
	VideoURLs []string
}

//go:generate go run go.uber.org/mock/mockgen -source=publisher.go -destination=mocks/mock.go

// Client publishes posts to one target platform. Adapters are independent:
// the syncer never lets one adapter's failure affect another's attempt.
type Client interface {
	// Name identifies the target in logs and rate-limit keys.
	Name() string

	// Authenticate performs the target's login/credential check and
	// opens the readiness gate on success. Called once at startup.
	Authenticate(ctx context.Context) error

	// WaitReady blocks until the adapter is authenticated or the
	// context is cancelled.
	WaitReady(ctx context.Context) error

	// UploadMedia pushes one staged file to the target and returns an
	// adapter-specific reference for use in a subsequent Publish.
	UploadMedia(ctx context.Context, localPath string) (MediaRef, error)

	// Publish creates the post on the target and returns its
	// platform-side identifier or URL.
	Publish(ctx context.Context, post Post) (string, error)
}
