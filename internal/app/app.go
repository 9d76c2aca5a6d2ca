package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"go.uber.org/fx"

	"github.com/orgball2608/tweet-crosspost-bot/internal/ledger"
	ledgerfx "github.com/orgball2608/tweet-crosspost-bot/internal/ledger/fx"
	"github.com/orgball2608/tweet-crosspost-bot/internal/mediacache"
	"github.com/orgball2608/tweet-crosspost-bot/internal/mediacache/cacheimpl"
	_ "github.com/orgball2608/tweet-crosspost-bot/internal/migrations"
	"github.com/orgball2608/tweet-crosspost-bot/internal/publisher"
	publisherfx "github.com/orgball2608/tweet-crosspost-bot/internal/publisher/fx"
	"github.com/orgball2608/tweet-crosspost-bot/internal/source"
	"github.com/orgball2608/tweet-crosspost-bot/internal/source/twitterimpl"
	"github.com/orgball2608/tweet-crosspost-bot/internal/syncer"
	"github.com/orgball2608/tweet-crosspost-bot/internal/syncer/syncerimpl"
	"github.com/orgball2608/tweet-crosspost-bot/pkg/config"
	"github.com/orgball2608/tweet-crosspost-bot/pkg/logger"
)

var Module = fx.Options(
	fx.Provide(
		config.New,
		logger.FxOption,
	),
	fx.Provide(
		fx.Annotate(
			twitterimpl.New,
			fx.As(new(source.Client)),
		),
		fx.Annotate(
			cacheimpl.New,
			fx.As(new(mediacache.Client)),
		),
		fx.Annotate(
			syncerimpl.New,
			fx.As(new(syncer.Client)),
		),
	),
	ledgerfx.Module,
	publisherfx.Module,
	fx.Invoke(migrate),
	fx.Invoke(run),
)

// migrate applies goose migrations at startup when the postgres ledger is
// selected. The file ledger needs no schema.
func migrate(cfg *config.Config, log logger.Logger) error {
	if cfg.Storage.Driver != "postgres" {
		return nil
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	db, err := sql.Open("postgres",
		fmt.Sprintf("dbname=%s user=%s password=%s host=%s port=%d sslmode=%s",
			cfg.Postgres.Name, cfg.Postgres.User, cfg.Postgres.Pass,
			cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.SslMode,
		),
	)
	if err != nil {
		return err
	}
	defer db.Close()

	// Go migrations are registered by the migrations package import.
	if err := goose.Up(db, "."); err != nil {
		return err
	}
	log.Info("Database migrations applied")
	return nil
}

func run(lc fx.Lifecycle, log logger.Logger, cfg *config.Config, srcClient source.Client,
	publishers []publisher.Client, repo ledger.Repository, syncClient syncer.Client) {
	appCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go startHTTPServer(log, cfg)

			// The ledger must be loaded before the first tick ever runs.
			// Without it every post would look new.
			if err := repo.Load(ctx); err != nil {
				return fmt.Errorf("failed to load sync ledger: %w", err)
			}

			go func() {
				if err := srcClient.Authenticate(appCtx); err != nil {
					log.Error("Source authentication failed, syncing will not start", "error", err)
				}
			}()
			for _, target := range publishers {
				target := target
				go func() {
					if err := target.Authenticate(appCtx); err != nil {
						log.Error("Publisher authentication failed", "target", target.Name(), "error", err)
					}
				}()
			}

			return syncClient.Start(appCtx)
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func startHTTPServer(log logger.Logger, cfg *config.Config) {
	http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		healthCheckHandler(w, r, log)
	})

	log.Info(fmt.Sprintf("Starting server on :%d", cfg.App.Port))

	if err := http.ListenAndServe(fmt.Sprintf(":%d", cfg.App.Port), nil); err != nil {
		log.Error("Server failed to start", "error", err)
	}
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request, log logger.Logger) {
	log.Debug("Health check request received", "Method", r.Method, "URL", r.URL.String())
	w.Header().Set("Content-Type", "text/plain")
	if _, err := w.Write([]byte("ok")); err != nil {
		log.Error("Failed to write response", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
