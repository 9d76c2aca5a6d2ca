package syncerimpl

import (
	"time"

	"github.com/orgball2608/tweet-crosspost-bot/internal/ledger"
	"github.com/orgball2608/tweet-crosspost-bot/internal/mediacache"
	"github.com/orgball2608/tweet-crosspost-bot/internal/publisher"
	"github.com/orgball2608/tweet-crosspost-bot/internal/ratelimit"
	"github.com/orgball2608/tweet-crosspost-bot/internal/source"
	"github.com/orgball2608/tweet-crosspost-bot/internal/syncer"
	"github.com/orgball2608/tweet-crosspost-bot/pkg/config"
	"github.com/orgball2608/tweet-crosspost-bot/pkg/logger"
	"go.uber.org/fx"
)

type Opts struct {
	fx.In

	Config     *config.Config
	Logger     logger.Logger
	Source     source.Client
	Publishers []publisher.Client
	Ledger     ledger.Repository
	MediaCache mediacache.Client
	Shutdowner fx.Shutdowner `optional:"true"`
}

type SyncerImpl struct {
	config     *config.Config
	logger     logger.Logger
	source     source.Client
	publishers []publisher.Client
	ledger     ledger.Repository
	mediaCache mediacache.Client
	limiter    ratelimit.Limiter
	shutdowner fx.Shutdowner

	// cutoff is the age gate for candidates: posts created before it are
	// never synced. Defaults to process start unless configured.
	cutoff int64
}

func New(opts Opts) *SyncerImpl {
	cutoff := opts.Config.Sync.AfterTimestamp
	if cutoff <= 0 {
		cutoff = time.Now().Unix()
	}

	return &SyncerImpl{
		config:     opts.Config,
		logger:     opts.Logger.WithComponent("Syncer"),
		source:     opts.Source,
		publishers: opts.Publishers,
		ledger:     opts.Ledger,
		mediaCache: opts.MediaCache,
		limiter:    ratelimit.NewInMemoryLimiter(1, time.Second, 3),
		shutdowner: opts.Shutdowner,
		cutoff:     cutoff,
	}
}

var _ syncer.Client = (*SyncerImpl)(nil)

func (s *SyncerImpl) requestShutdown() {
	if s.shutdowner == nil {
		return
	}
	if err := s.shutdowner.Shutdown(); err != nil {
		s.logger.Error("Could not request process shutdown", "error", err)
	}
}
