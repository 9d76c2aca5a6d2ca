package fx

import (
	"errors"

	"github.com/orgball2608/tweet-crosspost-bot/internal/publisher"
	"github.com/orgball2608/tweet-crosspost-bot/internal/publisher/blueskyimpl"
	"github.com/orgball2608/tweet-crosspost-bot/internal/publisher/mastodonimpl"
	"github.com/orgball2608/tweet-crosspost-bot/internal/publisher/telegramimpl"
	"github.com/orgball2608/tweet-crosspost-bot/pkg/config"
	"github.com/orgball2608/tweet-crosspost-bot/pkg/logger"
	"go.uber.org/fx"
)

var Module = fx.Module("publishers",
	fx.Provide(NewPublishers),
)

type Opts struct {
	fx.In

	Config *config.Config
	Logger logger.Logger
}

// NewPublishers assembles one adapter per enabled target.
func NewPublishers(opts Opts) ([]publisher.Client, error) {
	var clients []publisher.Client

	if opts.Config.Mastodon.Enabled {
		clients = append(clients, mastodonimpl.New(mastodonimpl.Opts{
			Config: opts.Config,
			Logger: opts.Logger,
		}))
	}
	if opts.Config.Bluesky.Enabled {
		clients = append(clients, blueskyimpl.New(blueskyimpl.Opts{
			Config: opts.Config,
			Logger: opts.Logger,
		}))
	}
	if opts.Config.Telegram.Enabled {
		clients = append(clients, telegramimpl.New(telegramimpl.Opts{
			Config: opts.Config,
			Logger: opts.Logger,
		}))
	}

	if len(clients) == 0 {
		return nil, errors.New("no publish targets enabled, check MASTODON_ENABLED/BLUESKY_ENABLED/TELEGRAM_ENABLED")
	}
	return clients, nil
}
