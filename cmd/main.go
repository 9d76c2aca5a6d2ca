package main

import (
	"context"
	"os"

	"go.uber.org/fx"

	"github.com/orgball2608/tweet-crosspost-bot/internal/app"
	"github.com/orgball2608/tweet-crosspost-bot/pkg/logger"
)

func main() {
	log := logger.New(logger.Opts{})

	application := fx.New(
		fx.Logger(log),
		app.Module,
	)

	if err := application.Start(context.Background()); err != nil {
		log.Error("Failed to start application", "error", err)
		os.Exit(1)
	}

	// Done delivers SIGINT/SIGTERM and internal shutdown requests alike.
	sig := <-application.Done()
	log.Info("Shutting down", "signal", sig.String())

	if err := application.Stop(context.Background()); err != nil {
		log.Error("Failed to stop application", "error", err)
		os.Exit(1)
	}
}
