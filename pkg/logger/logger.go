package logger

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
	slogmulti "github.com/samber/slog-multi"
	slogsentry "github.com/samber/slog-sentry/v2"
	slogzerolog "github.com/samber/slog-zerolog/v2"
)

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	WithComponent(name string) Logger

	// Printf lets the logger act as an fx.Printer.
	Printf(format string, args ...interface{})
}

type Opts struct {
	Env       string
	SentryUrl string
}

type Impl struct {
	sl *slog.Logger
}

func New(opts Opts) *Impl {
	level := slog.LevelInfo
	if opts.Env == "development" || opts.Env == "" {
		level = slog.LevelDebug
	}

	var zl zerolog.Logger
	if opts.Env == "production" {
		zl = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		zl = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			With().Timestamp().Logger()
	}

	handlers := []slog.Handler{
		slogzerolog.Option{Level: level, Logger: &zl}.NewZerologHandler(),
	}

	if opts.SentryUrl != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         opts.SentryUrl,
			Environment: opts.Env,
		}); err != nil {
			zl.Warn().Err(err).Msg("Failed to initialize sentry, continuing without it")
		} else {
			handlers = append(handlers, slogsentry.Option{Level: slog.LevelError}.NewSentryHandler())
		}
	}

	return &Impl{sl: slog.New(slogmulti.Fanout(handlers...))}
}

var _ Logger = (*Impl)(nil)

func (i *Impl) Debug(msg string, args ...any) { i.sl.Debug(msg, args...) }
func (i *Impl) Info(msg string, args ...any)  { i.sl.Info(msg, args...) }
func (i *Impl) Warn(msg string, args ...any)  { i.sl.Warn(msg, args...) }
func (i *Impl) Error(msg string, args ...any) { i.sl.Error(msg, args...) }

func (i *Impl) WithComponent(name string) Logger {
	return &Impl{sl: i.sl.With("component", name)}
}

func (i *Impl) Printf(format string, args ...interface{}) {
	i.sl.Debug(fmt.Sprintf(format, args...))
}
