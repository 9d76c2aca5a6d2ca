package mastodonimpl

import (
	"context"
	"fmt"

	"github.com/mattn/go-mastodon"

	"github.com/orgball2608/tweet-crosspost-bot/internal/publisher"
	"github.com/orgball2608/tweet-crosspost-bot/pkg/config"
	pkgerrors "github.com/orgball2608/tweet-crosspost-bot/pkg/errors"
	"github.com/orgball2608/tweet-crosspost-bot/pkg/formatter"
	"github.com/orgball2608/tweet-crosspost-bot/pkg/logger"
	"github.com/orgball2608/tweet-crosspost-bot/pkg/ready"
)

// statusLimit is the default instance-side cap on status length.
const statusLimit = 500

type Opts struct {
	Config *config.Config
	Logger logger.Logger
}

type MastodonImpl struct {
	client *mastodon.Client
	logger logger.Logger
	gate   *ready.Gate
}

func New(opts Opts) *MastodonImpl {
	client := mastodon.NewClient(&mastodon.Config{
		Server:      opts.Config.Mastodon.InstanceURL,
		AccessToken: opts.Config.Mastodon.AccessToken,
	})

	return &MastodonImpl{
		client: client,
		logger: opts.Logger.WithComponent("MastodonPublisher"),
		gate:   ready.NewGate(),
	}
}

var _ publisher.Client = (*MastodonImpl)(nil)

func (m *MastodonImpl) Name() string { return "mastodon" }

// Authenticate verifies the access token by fetching the owning account.
func (m *MastodonImpl) Authenticate(ctx context.Context) error {
	account, err := m.client.GetAccountCurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("mastodon credential check failed: %w", err)
	}
	m.logger.Info("Authenticated against mastodon", "account", account.Acct)
	m.gate.Open()
	return nil
}

func (m *MastodonImpl) WaitReady(ctx context.Context) error {
	return m.gate.Wait(ctx)
}

func (m *MastodonImpl) UploadMedia(ctx context.Context, localPath string) (publisher.MediaRef, error) {
	if !m.gate.IsOpen() {
		return nil, pkgerrors.WrapWithCode(publisher.ErrNotReady, pkgerrors.CodeNotReady, "mastodon adapter not authenticated")
	}

	attachment, err := m.client.UploadMedia(ctx, localPath)
	if err != nil {
		return nil, pkgerrors.WrapWithCode(err, pkgerrors.CodeUpload, fmt.Sprintf("mastodon upload of %s failed", localPath))
	}
	return attachment.ID, nil
}

func (m *MastodonImpl) Publish(ctx context.Context, post publisher.Post) (string, error) {
	if !m.gate.IsOpen() {
		return "", pkgerrors.WrapWithCode(publisher.ErrNotReady, pkgerrors.CodeNotReady, "mastodon adapter not authenticated")
	}

	text := post.Body
	if post.QuotedURL != "" {
		text += "\n\nQRT:" + post.QuotedURL
	}
	text = formatter.Truncate(text, statusLimit)

	toot := &mastodon.Toot{Status: text}
	for _, ref := range post.MediaRefs {
		id, ok := ref.(mastodon.ID)
		if !ok {
			return "", pkgerrors.WrapWithCode(
				fmt.Errorf("media ref %T is not a mastodon attachment id", ref),
				pkgerrors.CodePublish,
				"foreign media ref",
			)
		}
		toot.MediaIDs = append(toot.MediaIDs, id)
	}

	status, err := m.client.PostStatus(ctx, toot)
	if err != nil {
		return "", pkgerrors.WrapWithCode(err, pkgerrors.CodePublish, "mastodon publish failed")
	}

	m.logger.Info("Published status", "url", status.URL)
	return status.URL, nil
}
