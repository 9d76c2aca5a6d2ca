package blueskyimpl

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/api/bsky"
	lexutil "github.com/bluesky-social/indigo/lex/util"
	"github.com/bluesky-social/indigo/xrpc"

	"github.com/orgball2608/tweet-crosspost-bot/internal/publisher"
	"github.com/orgball2608/tweet-crosspost-bot/pkg/config"
	pkgerrors "github.com/orgball2608/tweet-crosspost-bot/pkg/errors"
	"github.com/orgball2608/tweet-crosspost-bot/pkg/logger"
	"github.com/orgball2608/tweet-crosspost-bot/pkg/ready"
)

const feedPostCollection = "app.bsky.feed.post"

type Opts struct {
	Config *config.Config
	Logger logger.Logger
}

type BlueskyImpl struct {
	client *xrpc.Client
	config *config.Config
	logger logger.Logger
	gate   *ready.Gate
}

func New(opts Opts) *BlueskyImpl {
	return &BlueskyImpl{
		client: &xrpc.Client{Host: opts.Config.Bluesky.Host},
		config: opts.Config,
		logger: opts.Logger.WithComponent("BlueskyPublisher"),
		gate:   ready.NewGate(),
	}
}

var _ publisher.Client = (*BlueskyImpl)(nil)

func (b *BlueskyImpl) Name() string { return "bluesky" }

func (b *BlueskyImpl) Authenticate(ctx context.Context) error {
	session, err := atproto.ServerCreateSession(ctx, b.client, &atproto.ServerCreateSession_Input{
		Identifier: b.config.Bluesky.Handle,
		Password:   b.config.Bluesky.Pass,
	})
	if err != nil {
		return fmt.Errorf("bluesky session creation failed: %w", err)
	}

	b.client.Auth = &xrpc.AuthInfo{
		AccessJwt:  session.AccessJwt,
		RefreshJwt: session.RefreshJwt,
		Handle:     session.Handle,
		Did:        session.Did,
	}

	b.logger.Info("Authenticated against bluesky", "handle", session.Handle)
	b.gate.Open()
	return nil
}

func (b *BlueskyImpl) WaitReady(ctx context.Context) error {
	return b.gate.Wait(ctx)
}

// UploadMedia accepts jpeg and png images only; the platform has no video
// blob support on this path, so mp4 staged files are rejected as
// unsupported and the post goes out without them.
func (b *BlueskyImpl) UploadMedia(ctx context.Context, localPath string) (publisher.MediaRef, error) {
	if !b.gate.IsOpen() {
		return nil, pkgerrors.WrapWithCode(publisher.ErrNotReady, pkgerrors.CodeNotReady, "bluesky adapter not authenticated")
	}

	mimeType := mime.TypeByExtension(filepath.Ext(localPath))
	if mimeType != "image/jpeg" && mimeType != "image/png" {
		return nil, pkgerrors.WrapWithCode(
			fmt.Errorf("%w: %s (%s)", publisher.ErrUnsupportedMediaType, localPath, mimeType),
			pkgerrors.CodeUnsupportedMedia,
			"bluesky accepts jpeg/png only",
		)
	}

	file, err := os.Open(localPath)
	if err != nil {
		return nil, pkgerrors.WrapWithCode(err, pkgerrors.CodeUpload, fmt.Sprintf("could not open staged file %s", localPath))
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			b.logger.Warn("Could not close staged file", "path", localPath, "error", closeErr)
		}
	}()

	resp, err := atproto.RepoUploadBlob(ctx, b.client, file)
	if err != nil {
		return nil, pkgerrors.WrapWithCode(err, pkgerrors.CodeUpload, fmt.Sprintf("bluesky upload of %s failed", localPath))
	}
	return resp.Blob, nil
}

func (b *BlueskyImpl) Publish(ctx context.Context, post publisher.Post) (string, error) {
	if !b.gate.IsOpen() {
		return "", pkgerrors.WrapWithCode(publisher.ErrNotReady, pkgerrors.CodeNotReady, "bluesky adapter not authenticated")
	}

	record := &bsky.FeedPost{
		LexiconTypeID: feedPostCollection,
		Text:          postText(post),
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
	}

	var images []*bsky.EmbedImages_Image
	for _, ref := range post.MediaRefs {
		blob, ok := ref.(*lexutil.LexBlob)
		if !ok {
			return "", pkgerrors.WrapWithCode(
				fmt.Errorf("media ref %T is not a bluesky blob", ref),
				pkgerrors.CodePublish,
				"foreign media ref",
			)
		}
		images = append(images, &bsky.EmbedImages_Image{Alt: "", Image: blob})
	}
	if len(images) > 0 {
		record.Embed = &bsky.FeedPost_Embed{
			EmbedImages: &bsky.EmbedImages{Images: images},
		}
	}

	resp, err := atproto.RepoCreateRecord(ctx, b.client, &atproto.RepoCreateRecord_Input{
		Collection: feedPostCollection,
		Repo:       b.client.Auth.Did,
		Record:     &lexutil.LexiconTypeDecoder{Val: record},
	})
	if err != nil {
		return "", pkgerrors.WrapWithCode(err, pkgerrors.CodePublish, "bluesky publish failed")
	}

	b.logger.Info("Published post", "uri", resp.Uri)
	return resp.Uri, nil
}

// postText appends the quote permalink and, because the platform cannot
// host video, a link to each video attachment.
func postText(post publisher.Post) string {
	var sb strings.Builder
	sb.WriteString(post.Body)
	if post.QuotedURL != "" {
		sb.WriteString("\n\nQRT:" + post.QuotedURL)
	}
	for _, videoURL := range post.VideoURLs {
		sb.WriteString("\n" + videoURL)
	}
	return sb.String()
}
