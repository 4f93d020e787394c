package notify

import (
	"context"
	"fmt"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"crawldash/internal/domain"
)

// Source returns the records to summarise.
type Source func() []domain.URLRecord

// Handler holds dependencies for the Telegram bot handlers.
type Handler struct {
	sender Sender
	chatID int64
	source Source
	log    logrus.FieldLogger
}

// NewHandler creates a handler that only answers chatID.
func NewHandler(sender Sender, chatID int64, source Source, logger logrus.FieldLogger) *Handler {
	return &Handler{
		sender: sender,
		chatID: chatID,
		source: source,
		log:    logger.WithField("component", "bot_handler"),
	}
}

// Bot is a running Telegram client with the crawldash commands registered.
type Bot struct {
	*tgbot.Bot
	log logrus.FieldLogger
}

// NewBot creates the bot instance and registers the command handlers.
func NewBot(token string, chatID int64, source Source, logger logrus.FieldLogger) (*Bot, error) {
	log := logger.WithField("component", "telegram_bot")

	b, err := tgbot.New(token)
	if err != nil {
		log.WithError(err).Error("Failed to create Telegram bot instance")
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	h := NewHandler(b, chatID, source, logger)
	b.RegisterHandler(tgbot.HandlerTypeMessageText, "/start", tgbot.MatchTypeExact, h.startHandler)
	b.RegisterHandler(tgbot.HandlerTypeMessageText, "/urls", tgbot.MatchTypePrefix, h.urlsHandler)

	log.Info("Telegram bot handler initialized")
	return &Bot{Bot: b, log: log}, nil
}

// Start begins polling for updates from Telegram.
// This function blocks until the context is cancelled.
func (b *Bot) Start(ctx context.Context) {
	b.log.Info("Starting Telegram bot polling...")
	b.Bot.Start(ctx)
	b.log.Info("Telegram bot polling stopped.")
}

// startHandler handles the /start command.
func (h *Handler) startHandler(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	h.reply(ctx, update, "/start", "crawldash will post here when a crawl finishes. Send /urls for a status summary.")
}

// urlsHandler handles the /urls command.
func (h *Handler) urlsHandler(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	h.reply(ctx, update, "/urls", Summary(h.source()))
}

func (h *Handler) reply(ctx context.Context, update *models.Update, command, text string) {
	if update == nil || update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	log := h.log.WithFields(logrus.Fields{
		"chat_id": chatID,
		"command": command,
	})
	if chatID != h.chatID {
		log.Warn("Ignoring command from unknown chat")
		return
	}
	log.Info("Received command")

	_, err := h.sender.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		log.WithError(err).Error("Failed to send reply")
	}
}
