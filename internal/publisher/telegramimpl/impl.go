package telegramimpl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/orgball2608/tweet-crosspost-bot/internal/publisher"
	"github.com/orgball2608/tweet-crosspost-bot/pkg/config"
	pkgerrors "github.com/orgball2608/tweet-crosspost-bot/pkg/errors"
	"github.com/orgball2608/tweet-crosspost-bot/pkg/formatter"
	"github.com/orgball2608/tweet-crosspost-bot/pkg/logger"
	"github.com/orgball2608/tweet-crosspost-bot/pkg/ready"
)

// fileRef is the adapter's media ref: Telegram has no separate upload step,
// files ride along with the send itself.
type fileRef string

type Opts struct {
	Config *config.Config
	Logger logger.Logger
}

type TelegramImpl struct {
	bot    *tgbotapi.BotAPI
	config *config.Config
	logger logger.Logger
	gate   *ready.Gate
}

func New(opts Opts) *TelegramImpl {
	return &TelegramImpl{
		config: opts.Config,
		logger: opts.Logger.WithComponent("TelegramPublisher"),
		gate:   ready.NewGate(),
	}
}

var _ publisher.Client = (*TelegramImpl)(nil)

func (tg *TelegramImpl) Name() string { return "telegram" }

func (tg *TelegramImpl) Authenticate(_ context.Context) error {
	bot, err := tgbotapi.NewBotAPI(tg.config.Telegram.Token)
	if err != nil {
		return fmt.Errorf("telegram bot login failed: %w", err)
	}
	tg.bot = bot

	tg.logger.Info("Authenticated against telegram", "bot", bot.Self.UserName)
	tg.gate.Open()
	return nil
}

func (tg *TelegramImpl) WaitReady(ctx context.Context) error {
	return tg.gate.Wait(ctx)
}

// UploadMedia only validates the staged file; the actual bytes are sent as
// part of Publish.
func (tg *TelegramImpl) UploadMedia(_ context.Context, localPath string) (publisher.MediaRef, error) {
	if !tg.gate.IsOpen() {
		return nil, pkgerrors.WrapWithCode(publisher.ErrNotReady, pkgerrors.CodeNotReady, "telegram adapter not authenticated")
	}

	if _, err := os.Stat(localPath); err != nil {
		return nil, pkgerrors.WrapWithCode(err, pkgerrors.CodeUpload, fmt.Sprintf("staged file %s is not readable", localPath))
	}
	return fileRef(localPath), nil
}

func (tg *TelegramImpl) Publish(_ context.Context, post publisher.Post) (string, error) {
	if !tg.gate.IsOpen() {
		return "", pkgerrors.WrapWithCode(publisher.ErrNotReady, pkgerrors.CodeNotReady, "telegram adapter not authenticated")
	}

	channelName := "@" + tg.config.Telegram.Channel
	text := channelText(post)

	if len(post.MediaRefs) == 0 {
		msg := tgbotapi.NewMessageToChannel(channelName, text)
		msg.ParseMode = tgbotapi.ModeMarkdownV2
		sent, err := tg.bot.Send(msg)
		if err != nil {
			return "", pkgerrors.WrapWithCode(err, pkgerrors.CodePublish, "telegram publish failed")
		}
		return strconv.Itoa(sent.MessageID), nil
	}

	media := make([]interface{}, 0, len(post.MediaRefs))
	for i, ref := range post.MediaRefs {
		path, ok := ref.(fileRef)
		if !ok {
			return "", pkgerrors.WrapWithCode(
				fmt.Errorf("media ref %T is not a telegram file ref", ref),
				pkgerrors.CodePublish,
				"foreign media ref",
			)
		}

		if isVideoFile(string(path)) {
			item := tgbotapi.NewInputMediaVideo(tgbotapi.FilePath(string(path)))
			if i == 0 {
				item.Caption = text
				item.ParseMode = tgbotapi.ModeMarkdownV2
			}
			media = append(media, item)
		} else {
			item := tgbotapi.NewInputMediaPhoto(tgbotapi.FilePath(string(path)))
			if i == 0 {
				item.Caption = text
				item.ParseMode = tgbotapi.ModeMarkdownV2
			}
			media = append(media, item)
		}
	}

	group := tgbotapi.MediaGroupConfig{
		ChannelUsername: channelName,
		Media:           media,
	}
	sent, err := tg.bot.SendMediaGroup(group)
	if err != nil {
		return "", pkgerrors.WrapWithCode(err, pkgerrors.CodePublish, "telegram media publish failed")
	}

	if len(sent) > 0 {
		return strconv.Itoa(sent[0].MessageID), nil
	}
	return "", nil
}

// channelText escapes the body and quote permalink for MarkdownV2 before
// composing the message.
func channelText(post publisher.Post) string {
	text := formatter.EscapeMarkdownV2(post.Body)
	if post.QuotedURL != "" {
		text += "\n\nQRT:" + formatter.EscapeMarkdownV2(post.QuotedURL)
	}
	return text
}

func isVideoFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".mov", ".webm":
		return true
	}
	return false
}
