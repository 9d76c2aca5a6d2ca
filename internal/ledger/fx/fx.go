package fx

import (
	"fmt"

	"github.com/orgball2608/tweet-crosspost-bot/internal/ledger"
	"github.com/orgball2608/tweet-crosspost-bot/internal/ledger/filestore"
	"github.com/orgball2608/tweet-crosspost-bot/internal/ledger/pgxstore"
	"github.com/orgball2608/tweet-crosspost-bot/pkg/config"
	"github.com/orgball2608/tweet-crosspost-bot/pkg/logger"
	"github.com/orgball2608/tweet-crosspost-bot/pkg/pgx"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger",
	fx.Provide(NewRepository),
)

type Opts struct {
	fx.In

	LC     fx.Lifecycle
	Config *config.Config
	Logger logger.Logger
}

// NewRepository selects the ledger store by the configured storage driver.
func NewRepository(opts Opts) (ledger.Repository, error) {
	switch opts.Config.Storage.Driver {
	case "file", "":
		return filestore.New(filestore.Opts{
			Config: opts.Config,
			Logger: opts.Logger,
		}), nil
	case "postgres":
		pool, err := pgx.New(pgx.Opts{
			LC:     opts.LC,
			Logger: opts.Logger,
			Config: opts.Config,
		})
		if err != nil {
			return nil, err
		}
		return pgxstore.New(pool, opts.Logger), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Config.Storage.Driver)
	}
}
